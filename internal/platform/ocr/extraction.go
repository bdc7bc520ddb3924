// Package ocr drives structured extraction of medical data from patient
// documents. A document-understanding provider (Gemini-style generateContent
// API) is prompted with a fixed JSON schema; responses that fail to parse as
// that schema are recorded as processing errors, never propagated raw.
package ocr

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Document type vocabulary shared with the provider.
const (
	DocTypeLabReport        = "lab_report"
	DocTypePrescription     = "prescription"
	DocTypeDischargeSummary = "discharge_summary"
	DocTypeOther            = "other"
)

// ValidDocumentTypes is the closed set of document types the provider may
// return. Anything else is coerced to "other".
var ValidDocumentTypes = map[string]bool{
	DocTypeLabReport:        true,
	DocTypePrescription:     true,
	DocTypeDischargeSummary: true,
	DocTypeOther:            true,
}

// HistoryCategories is the fixed category list extracted into patient history.
var HistoryCategories = []string{
	"diseases", "surgeries", "medications", "chronic_conditions", "family_history",
}

// Prescription is one prescription line extracted from a document.
type Prescription struct {
	MedicationName string `json:"medication_name"`
	Dosage         string `json:"dosage"`
	Frequency      string `json:"frequency"`
	Duration       string `json:"duration"`
}

// ExtractedData is the structured payload of one extraction.
type ExtractedData struct {
	History       map[string][]string `json:"history"`
	Allergies     []string            `json:"allergies"`
	Notes         []string            `json:"notes"`
	VitalSigns    map[string]string   `json:"vital_signs"`
	LabResults    map[string]string   `json:"lab_results"`
	Prescriptions []Prescription      `json:"prescriptions"`
}

// Result is the outcome of running OCR on one document.
type Result struct {
	DocumentType    string        `json:"document_type"`
	Confidence      string        `json:"confidence"`
	ExtractedData   ExtractedData `json:"extracted_data"`
	ProcessingNotes string        `json:"processing_notes"`
	Err             bool          `json:"error,omitempty"`
}

// ErrorResult builds the standard degraded result for a failed extraction.
// The pipeline records it on the document row instead of aborting the batch.
func ErrorResult(msg string) *Result {
	return &Result{
		DocumentType: DocTypeOther,
		Confidence:   "low",
		ExtractedData: ExtractedData{
			History:    emptyHistory(),
			Allergies:  []string{},
			Notes:      []string{},
			VitalSigns: map[string]string{},
			LabResults: map[string]string{},
		},
		ProcessingNotes: "OCR processing failed: " + msg,
		Err:             true,
	}
}

func emptyHistory() map[string][]string {
	h := make(map[string][]string, len(HistoryCategories))
	for _, c := range HistoryCategories {
		h[c] = []string{}
	}
	return h
}

// ParseResponse validates the provider's raw text response against the
// extraction schema. Markdown code fences around the JSON are tolerated.
func ParseResponse(raw string) (*Result, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &probe); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}
	for _, field := range []string{"document_type", "confidence", "extracted_data"} {
		if _, ok := probe[field]; !ok {
			return nil, fmt.Errorf("missing required field: %s", field)
		}
	}

	var result Result
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}
	if !ValidDocumentTypes[result.DocumentType] {
		result.DocumentType = DocTypeOther
	}
	if result.ExtractedData.History == nil {
		result.ExtractedData.History = emptyHistory()
	}
	return &result, nil
}

// MergePageResults combines per-page extractions of a scanned PDF into one.
// List fields are concatenated and deduplicated; scalar maps (vital signs,
// lab results) take the last page's values.
func MergePageResults(pages []*Result) *Result {
	if len(pages) == 0 {
		return ErrorResult("no pages processed successfully")
	}
	merged := *pages[0]
	if len(pages) == 1 {
		return &merged
	}

	data := merged.ExtractedData
	if data.History == nil {
		data.History = emptyHistory()
	}
	for _, page := range pages[1:] {
		pd := page.ExtractedData
		for cat, items := range pd.History {
			data.History[cat] = append(data.History[cat], items...)
		}
		data.Allergies = append(data.Allergies, pd.Allergies...)
		data.Notes = append(data.Notes, pd.Notes...)
		data.Prescriptions = append(data.Prescriptions, pd.Prescriptions...)
		if len(pd.VitalSigns) > 0 {
			data.VitalSigns = pd.VitalSigns
		}
		if len(pd.LabResults) > 0 {
			data.LabResults = pd.LabResults
		}
	}

	for cat, items := range data.History {
		data.History[cat] = dedupe(items)
	}
	data.Allergies = dedupe(data.Allergies)
	data.Notes = dedupe(data.Notes)

	merged.ExtractedData = data
	merged.ProcessingNotes = fmt.Sprintf("Merged data from %d pages", len(pages))
	return &merged
}

// dedupe collapses exact duplicates while preserving first-seen order.
func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
