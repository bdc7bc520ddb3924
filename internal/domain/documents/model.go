package documents

import (
	"time"

	"github.com/google/uuid"
)

// PatientHistoryDoc maps to the patient_history_docs table. One row per
// uploaded document; processed rows are never re-run through extraction.
type PatientHistoryDoc struct {
	ID                uuid.UUID `db:"id" json:"id"`
	PatientID         uuid.UUID `db:"patient_id" json:"patient_id"`
	FileName          string    `db:"file_name" json:"file_name"`
	FilePath          string    `db:"file_path" json:"file_path"`
	DocumentType      string    `db:"document_type" json:"document_type"`
	DocumentProcessed bool      `db:"document_processed" json:"document_processed"`
	ProcessingRemarks *string   `db:"processing_remarks" json:"processing_remarks,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// UploadSummary reports an upload batch. Files fail independently; a bad
// file never blocks the rest of the batch.
type UploadSummary struct {
	Uploaded int           `json:"uploaded"`
	Failed   int           `json:"failed"`
	Errors   []UploadError `json:"errors,omitempty"`
	Docs     []*PatientHistoryDoc `json:"docs"`
}

// UploadError names the file that failed and why.
type UploadError struct {
	FileName string `json:"file_name"`
	Error    string `json:"error"`
}

// ProcessReport summarizes one extraction run over a patient's backlog.
type ProcessReport struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// ProcessingStatus counts a patient's documents by processing state.
type ProcessingStatus struct {
	Total       int `json:"total"`
	Processed   int `json:"processed"`
	Unprocessed int `json:"unprocessed"`
}
