package documents

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/medicore/hms/internal/domain/history"
	"github.com/medicore/hms/internal/platform/blobstore"
	"github.com/medicore/hms/internal/platform/ocr"
)

type mockDocRepo struct {
	docs []*PatientHistoryDoc
}

func (m *mockDocRepo) Create(_ context.Context, d *PatientHistoryDoc) error {
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	cp := *d
	m.docs = append(m.docs, &cp)
	return nil
}

func (m *mockDocRepo) GetByID(_ context.Context, id uuid.UUID) (*PatientHistoryDoc, error) {
	for _, d := range m.docs {
		if d.ID == id {
			cp := *d
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *mockDocRepo) Update(_ context.Context, d *PatientHistoryDoc) error {
	for i, existing := range m.docs {
		if existing.ID == d.ID {
			cp := *d
			m.docs[i] = &cp
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (m *mockDocRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*PatientHistoryDoc, error) {
	var out []*PatientHistoryDoc
	for _, d := range m.docs {
		if d.PatientID == patientID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockDocRepo) ListUnprocessed(_ context.Context, patientID uuid.UUID) ([]*PatientHistoryDoc, error) {
	// Insertion order stands in for created_at ordering.
	var out []*PatientHistoryDoc
	for _, d := range m.docs {
		if d.PatientID == patientID && !d.DocumentProcessed {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockDocRepo) CountByPatient(_ context.Context, patientID uuid.UUID) (int, int, error) {
	total, processed := 0, 0
	for _, d := range m.docs {
		if d.PatientID == patientID {
			total++
			if d.DocumentProcessed {
				processed++
			}
		}
	}
	return total, processed, nil
}

type mockHistoryRepo struct {
	byPatient map[uuid.UUID]*history.PatientHistory
}

func (m *mockHistoryRepo) Create(_ context.Context, h *history.PatientHistory) error {
	h.ID = uuid.New()
	m.byPatient[h.PatientID] = h
	return nil
}

func (m *mockHistoryRepo) GetByPatient(_ context.Context, patientID uuid.UUID) (*history.PatientHistory, error) {
	h, ok := m.byPatient[patientID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return h, nil
}

func (m *mockHistoryRepo) Update(_ context.Context, h *history.PatientHistory) error {
	if _, ok := m.byPatient[h.PatientID]; !ok {
		return pgx.ErrNoRows
	}
	m.byPatient[h.PatientID] = h
	return nil
}

// mockExtractor maps staged file contents to canned OCR results, since the
// pipeline hands the extractor a temp file path.
type mockExtractor struct {
	byContent map[string]*ocr.Result
	panicOn   string
	calls     int
}

func (m *mockExtractor) ProcessFile(_ context.Context, path, _ string) *ocr.Result {
	m.calls++
	data, err := os.ReadFile(path)
	if err != nil {
		return ocr.ErrorResult("read file: " + err.Error())
	}
	content := string(data)
	if m.panicOn != "" && content == m.panicOn {
		panic("extractor crashed")
	}
	if res, ok := m.byContent[content]; ok {
		return res
	}
	return ocr.ErrorResult("unreadable document")
}

func extractionResult(docType string, diseases, allergies, notes []string) *ocr.Result {
	return &ocr.Result{
		DocumentType: docType,
		Confidence:   "high",
		ExtractedData: ocr.ExtractedData{
			History: map[string][]string{
				"diseases": diseases,
			},
			Allergies: allergies,
			Notes:     notes,
		},
	}
}

type docsTestEnv struct {
	svc       *Service
	docs      *mockDocRepo
	blobs     *blobstore.MemoryStore
	extractor *mockExtractor
	histories *mockHistoryRepo
	patientID uuid.UUID
}

func newDocsTestEnv() *docsTestEnv {
	env := &docsTestEnv{
		docs:      &mockDocRepo{},
		blobs:     blobstore.NewMemoryStore(),
		extractor: &mockExtractor{byContent: make(map[string]*ocr.Result)},
		histories: &mockHistoryRepo{byPatient: make(map[uuid.UUID]*history.PatientHistory)},
		patientID: uuid.New(),
	}
	env.svc = NewService(env.docs, env.blobs, env.extractor,
		history.NewService(env.histories), zerolog.Nop())
	return env
}

// upload stores one document whose blob content keys the extractor result.
func (env *docsTestEnv) upload(t *testing.T, name, content string) *PatientHistoryDoc {
	t.Helper()
	summary, err := env.svc.UploadDocuments(context.Background(), env.patientID, []UploadFile{
		{Name: name, ContentType: "text/plain", Content: strings.NewReader(content)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Uploaded != 1 {
		t.Fatalf("upload failed: %+v", summary.Errors)
	}
	return summary.Docs[0]
}

func TestUploadDocuments_PartialSuccess(t *testing.T) {
	env := newDocsTestEnv()

	summary, err := env.svc.UploadDocuments(context.Background(), env.patientID, []UploadFile{
		{Name: "report.txt", ContentType: "text/plain", Content: strings.NewReader("cbc report")},
		{Name: "archive.zip", ContentType: "application/zip", Content: strings.NewReader("zip")},
		{Name: "", ContentType: "text/plain", Content: strings.NewReader("anonymous")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Uploaded != 1 || summary.Failed != 2 {
		t.Fatalf("expected 1 uploaded / 2 failed, got %d / %d", summary.Uploaded, summary.Failed)
	}

	doc := summary.Docs[0]
	if !strings.HasPrefix(doc.FilePath, "patients/"+env.patientID.String()+"/") {
		t.Fatalf("unexpected blob path: %s", doc.FilePath)
	}
	exists, err := env.blobs.Exists(context.Background(), doc.FilePath)
	if err != nil || !exists {
		t.Fatalf("expected blob at %s", doc.FilePath)
	}
	if doc.DocumentProcessed {
		t.Fatal("fresh upload must be unprocessed")
	}
	if doc.DocumentType != ocr.DocTypeOther {
		t.Fatalf("expected undeclared type to default to other, got %s", doc.DocumentType)
	}
}

func TestProcessPatientDocuments_MergesAndRecordsFailures(t *testing.T) {
	env := newDocsTestEnv()
	env.extractor.byContent["discharge summary text"] = extractionResult(
		ocr.DocTypeDischargeSummary,
		[]string{"diabetes"}, []string{"penicillin"}, []string{"admitted for observation"})

	env.upload(t, "discharge.txt", "discharge summary text")
	env.upload(t, "blurry-scan.txt", "illegible content")

	report, err := env.svc.ProcessPatientDocuments(context.Background(), env.patientID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Processed != 1 || report.Failed != 1 {
		t.Fatalf("expected 1 processed / 1 failed, got %d / %d", report.Processed, report.Failed)
	}

	record, err := env.svc.histories.GetForPatient(context.Background(), env.patientID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(record.History["diseases"]) != 1 || record.History["diseases"][0] != "diabetes" {
		t.Fatalf("unexpected diseases: %v", record.History["diseases"])
	}
	if len(record.Allergies) != 1 || record.Allergies[0] != "penicillin" {
		t.Fatalf("unexpected allergies: %v", record.Allergies)
	}
	if len(record.Notes) != 1 || record.Notes[0].DocumentType != ocr.DocTypeDischargeSummary {
		t.Fatalf("unexpected notes: %+v", record.Notes)
	}

	// Both documents are settled, the failed one carrying its remarks.
	for _, d := range env.docs.docs {
		if !d.DocumentProcessed {
			t.Fatalf("expected all documents processed, %s is not", d.FileName)
		}
	}
	status, err := env.svc.Status(context.Background(), env.patientID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Unprocessed != 0 || status.Processed != 2 {
		t.Fatalf("unexpected status: %+v", status)
	}

	// A second run finds nothing to do.
	again, err := env.svc.ProcessPatientDocuments(context.Background(), env.patientID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.Processed != 0 || again.Failed != 0 {
		t.Fatalf("expected empty rerun, got %+v", again)
	}
}

func TestProcessPatientDocuments_MergeIsCumulative(t *testing.T) {
	env := newDocsTestEnv()
	env.extractor.byContent["first report"] = extractionResult(
		ocr.DocTypeLabReport, []string{"diabetes", "hypertension"}, nil, nil)
	env.extractor.byContent["second report"] = extractionResult(
		ocr.DocTypeLabReport, []string{"hypertension", "asthma"}, nil, nil)

	env.upload(t, "first.txt", "first report")
	env.upload(t, "second.txt", "second report")

	if _, err := env.svc.ProcessPatientDocuments(context.Background(), env.patientID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	record, err := env.svc.histories.GetForPatient(context.Background(), env.patientID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	diseases := record.History["diseases"]
	want := []string{"diabetes", "hypertension", "asthma"}
	if len(diseases) != len(want) {
		t.Fatalf("expected %v, got %v", want, diseases)
	}
	for i, d := range want {
		if diseases[i] != d {
			t.Fatalf("expected %v, got %v", want, diseases)
		}
	}
}

func TestProcessPatientDocuments_CorrectsDeclaredType(t *testing.T) {
	env := newDocsTestEnv()
	env.extractor.byContent["cbc values"] = extractionResult(
		ocr.DocTypeLabReport, nil, nil, nil)

	doc := env.upload(t, "report.txt", "cbc values")
	if doc.DocumentType != ocr.DocTypeOther {
		t.Fatalf("expected declared type other, got %s", doc.DocumentType)
	}

	if _, err := env.svc.ProcessPatientDocuments(context.Background(), env.patientID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	updated, err := env.docs.GetByID(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.DocumentType != ocr.DocTypeLabReport {
		t.Fatalf("expected detected type lab_report, got %s", updated.DocumentType)
	}
}

func TestProcessPatientDocuments_SurvivesPanic(t *testing.T) {
	env := newDocsTestEnv()
	env.extractor.panicOn = "poison pill"
	env.extractor.byContent["healthy doc"] = extractionResult(
		ocr.DocTypeLabReport, []string{"anemia"}, nil, nil)

	env.upload(t, "poison.txt", "poison pill")
	env.upload(t, "healthy.txt", "healthy doc")

	report, err := env.svc.ProcessPatientDocuments(context.Background(), env.patientID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Processed != 1 || report.Failed != 1 {
		t.Fatalf("expected 1 processed / 1 failed, got %d / %d", report.Processed, report.Failed)
	}
	for _, d := range env.docs.docs {
		if d.FileName == "poison.txt" {
			if !d.DocumentProcessed || d.ProcessingRemarks == nil ||
				!strings.Contains(*d.ProcessingRemarks, "panic") {
				t.Fatalf("expected panic recorded on document, got %+v", d)
			}
		}
	}
}

func TestProcessPatientDocuments_MissingBlob(t *testing.T) {
	env := newDocsTestEnv()
	doc := env.upload(t, "report.txt", "cbc values")
	if err := env.blobs.Delete(context.Background(), doc.FilePath); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	report, err := env.svc.ProcessPatientDocuments(context.Background(), env.patientID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Failed != 1 {
		t.Fatalf("expected 1 failure, got %+v", report)
	}
	updated, _ := env.docs.GetByID(context.Background(), doc.ID)
	if updated.ProcessingRemarks == nil || !strings.Contains(*updated.ProcessingRemarks, "source file missing") {
		t.Fatalf("expected missing-source remarks, got %+v", updated.ProcessingRemarks)
	}
}
