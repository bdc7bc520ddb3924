package documents

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medicore/hms/internal/domain/history"
	"github.com/medicore/hms/internal/platform/blobstore"
	"github.com/medicore/hms/internal/platform/ocr"
)

// Extractor runs OCR over one stored document. Satisfied by *ocr.Processor.
type Extractor interface {
	ProcessFile(ctx context.Context, path, typeHint string) *ocr.Result
}

type Service struct {
	docs      DocRepository
	blobs     blobstore.Store
	extractor Extractor
	histories *history.Service
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(
	docs DocRepository,
	blobs blobstore.Store,
	extractor Extractor,
	histories *history.Service,
	logger zerolog.Logger,
) *Service {
	return &Service{
		docs:      docs,
		blobs:     blobs,
		extractor: extractor,
		histories: histories,
		logger:    logger.With().Str("component", "documents").Logger(),
		now:       time.Now,
	}
}

// UploadFile is one file in an upload batch.
type UploadFile struct {
	Name         string
	ContentType  string
	DeclaredType string
	Content      io.Reader
}

// UploadDocuments stores each file and records it for later processing.
// Files fail independently; the summary reports both outcomes.
func (s *Service) UploadDocuments(ctx context.Context, patientID uuid.UUID, files []UploadFile) (*UploadSummary, error) {
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("at least one file is required")
	}

	summary := &UploadSummary{}
	for _, f := range files {
		doc, err := s.uploadOne(ctx, patientID, f)
		if err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, UploadError{FileName: f.Name, Error: err.Error()})
			continue
		}
		summary.Uploaded++
		summary.Docs = append(summary.Docs, doc)
	}
	return summary, nil
}

func (s *Service) uploadOne(ctx context.Context, patientID uuid.UUID, f UploadFile) (*PatientHistoryDoc, error) {
	if f.Name == "" {
		return nil, fmt.Errorf("file name is required")
	}
	if f.ContentType != "" && !blobstore.AllowedContentTypes[f.ContentType] {
		return nil, blobstore.ErrInvalidContentType
	}
	docType := f.DeclaredType
	if !ocr.ValidDocumentTypes[docType] {
		docType = ocr.DocTypeOther
	}

	name := filepath.Base(f.Name)
	path := fmt.Sprintf("patients/%s/%d_%s", patientID, s.now().UnixNano(), name)
	stored, err := s.blobs.Save(ctx, path, f.Content)
	if err != nil {
		return nil, err
	}

	doc := &PatientHistoryDoc{
		PatientID:    patientID,
		FileName:     name,
		FilePath:     stored,
		DocumentType: docType,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		// Don't leave an orphaned blob behind.
		if derr := s.blobs.Delete(ctx, stored); derr != nil {
			s.logger.Error().Err(derr).Str("path", stored).Msg("failed to clean up blob after create failure")
		}
		return nil, err
	}
	return doc, nil
}

// ProcessPatientDocuments runs extraction over the patient's unprocessed
// documents, oldest first, folding each result into the patient's history.
// The history record is the accumulator: it is saved after every successful
// document so a later failure never loses earlier merges. A failing document
// is marked processed with its failure remarks and the batch continues.
func (s *Service) ProcessPatientDocuments(ctx context.Context, patientID uuid.UUID) (*ProcessReport, error) {
	docs, err := s.docs.ListUnprocessed(ctx, patientID)
	if err != nil {
		return nil, err
	}
	report := &ProcessReport{}
	if len(docs) == 0 {
		return report, nil
	}

	record, err := s.histories.GetOrCreate(ctx, patientID)
	if err != nil {
		return nil, err
	}

	for _, doc := range docs {
		if err := s.processOne(ctx, doc, record); err != nil {
			report.Failed++
			s.markFailed(ctx, doc, err.Error())
			continue
		}
		report.Processed++
	}
	return report, nil
}

// processOne extracts one document and merges the result into record.
// A panic in extraction or merging is treated as a document failure.
func (s *Service) processOne(ctx context.Context, doc *PatientHistoryDoc, record *history.PatientHistory) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processing panic: %v", r)
		}
	}()

	path, cleanup, err := s.stageBlob(ctx, doc)
	if err != nil {
		return err
	}
	defer cleanup()

	res := s.extractor.ProcessFile(ctx, path, doc.DocumentType)
	if res.Err {
		return fmt.Errorf("%s", res.ProcessingNotes)
	}

	now := s.now()
	record.History = history.MergeHistory(record.History, res.ExtractedData.History)
	record.Allergies = history.MergeAllergies(record.Allergies, res.ExtractedData.Allergies)
	record.Notes = history.MergeNotes(record.Notes, res.ExtractedData.Notes, res.DocumentType, now)
	if err := s.histories.Save(ctx, record); err != nil {
		return fmt.Errorf("save history: %w", err)
	}

	doc.DocumentType = res.DocumentType
	doc.DocumentProcessed = true
	remarks := fmt.Sprintf("Processed with %s confidence", res.Confidence)
	if res.ProcessingNotes != "" {
		remarks += ": " + res.ProcessingNotes
	}
	doc.ProcessingRemarks = &remarks
	if err := s.docs.Update(ctx, doc); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

// stageBlob copies the blob to a temp file for the extractor, keeping the
// original extension so file type detection works.
func (s *Service) stageBlob(ctx context.Context, doc *PatientHistoryDoc) (string, func(), error) {
	blob, err := s.blobs.Open(ctx, doc.FilePath)
	if err != nil {
		return "", nil, fmt.Errorf("source file missing: %w", err)
	}
	defer blob.Close()

	tmp, err := os.CreateTemp("", "hms-doc-*"+strings.ToLower(filepath.Ext(doc.FileName)))
	if err != nil {
		return "", nil, err
	}
	if _, err := io.Copy(tmp, blob); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", nil, err
	}
	return tmp.Name(), func() { os.Remove(tmp.Name()) }, nil
}

// markFailed records the failure on the document so it is not retried.
func (s *Service) markFailed(ctx context.Context, doc *PatientHistoryDoc, remarks string) {
	s.logger.Error().Str("doc_id", doc.ID.String()).Str("file", doc.FileName).
		Str("remarks", remarks).Msg("document processing failed")
	doc.DocumentProcessed = true
	doc.ProcessingRemarks = &remarks
	if err := s.docs.Update(ctx, doc); err != nil {
		s.logger.Error().Err(err).Str("doc_id", doc.ID.String()).
			Msg("failed to record processing failure")
	}
}

// Status counts the patient's documents by processing state.
func (s *Service) Status(ctx context.Context, patientID uuid.UUID) (*ProcessingStatus, error) {
	total, processed, err := s.docs.CountByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return &ProcessingStatus{
		Total:       total,
		Processed:   processed,
		Unprocessed: total - processed,
	}, nil
}

func (s *Service) ListDocuments(ctx context.Context, patientID uuid.UUID) ([]*PatientHistoryDoc, error) {
	return s.docs.ListByPatient(ctx, patientID)
}
