package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// Client is the extraction contract the document pipeline depends on.
// Implementations must never return a nil Result: a failed call yields an
// error Result so the pipeline can record it per-document.
type Client interface {
	ExtractFromImage(ctx context.Context, data []byte, mimeType, typeHint string) *Result
	ExtractFromText(ctx context.Context, text, typeHint string) *Result
}

// GeminiClient talks to a Gemini-style generateContent endpoint.
type GeminiClient struct {
	http   *resty.Client
	apiKey string
	model  string
	logger zerolog.Logger
}

// NewGeminiClient builds a client against endpoint (e.g.
// https://generativelanguage.googleapis.com) with the given model name.
func NewGeminiClient(endpoint, apiKey, model string, logger zerolog.Logger) *GeminiClient {
	client := resty.New().
		SetBaseURL(endpoint).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &GeminiClient{
		http:   client,
		apiKey: apiKey,
		model:  model,
		logger: logger.With().Str("component", "ocr").Logger(),
	}
}

type generatePart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *inlineDataPart `json:"inline_data,omitempty"`
}

type inlineDataPart struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generateRequest struct {
	Contents []struct {
		Parts []generatePart `json:"parts"`
	} `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *GeminiClient) ExtractFromImage(ctx context.Context, data []byte, mimeType, typeHint string) *Result {
	parts := []generatePart{
		{Text: extractionPrompt(typeHint)},
		{InlineData: &inlineDataPart{
			MimeType: mimeType,
			Data:     base64.StdEncoding.EncodeToString(data),
		}},
	}
	return c.generate(ctx, parts)
}

func (c *GeminiClient) ExtractFromText(ctx context.Context, text, typeHint string) *Result {
	prompt := extractionPrompt(typeHint) + "\n\nDOCUMENT TEXT:\n" + text
	return c.generate(ctx, []generatePart{{Text: prompt}})
}

// generate issues a single generateContent call. There is no application
// level retry: a failed or malformed response becomes an error Result for
// the one document being processed.
func (c *GeminiClient) generate(ctx context.Context, parts []generatePart) *Result {
	var req generateRequest
	req.Contents = make([]struct {
		Parts []generatePart `json:"parts"`
	}, 1)
	req.Contents[0].Parts = parts

	var out generateResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("key", c.apiKey).
		SetBody(req).
		SetResult(&out).
		SetError(&out).
		Post(fmt.Sprintf("/v1beta/models/%s:generateContent", c.model))
	if err != nil {
		c.logger.Error().Err(err).Msg("OCR provider call failed")
		return ErrorResult(err.Error())
	}
	if resp.IsError() {
		msg := fmt.Sprintf("provider returned status %d", resp.StatusCode())
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		c.logger.Error().Int("status", resp.StatusCode()).Str("message", msg).Msg("OCR provider error")
		return ErrorResult(msg)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return ErrorResult("provider returned no candidates")
	}

	var text strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}

	result, err := ParseResponse(text.String())
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to parse OCR response")
		return ErrorResult(err.Error())
	}
	return result
}

// extractionPrompt asks the model for the exact extraction schema. The
// response contract is enforced by ParseResponse regardless of what comes
// back.
func extractionPrompt(typeHint string) string {
	prompt := `You are a medical document processing AI. Extract information from this medical document and return it in valid JSON format.

DOCUMENT TYPES AVAILABLE: lab_report, prescription, discharge_summary, other

INSTRUCTIONS:
1. First, identify the document type from the available choices.
2. Extract structured medical information based on the document type.
3. Return ONLY valid JSON in this exact format:

{
    "document_type": "one of: lab_report, prescription, discharge_summary, other",
    "confidence": "high/medium/low",
    "extracted_data": {
        "history": {
            "diseases": ["list of diseases/conditions mentioned"],
            "surgeries": ["list of surgeries/procedures"],
            "medications": ["list of current/past medications"],
            "chronic_conditions": ["list of chronic conditions"],
            "family_history": ["relevant family medical history"]
        },
        "allergies": ["list of allergies mentioned"],
        "notes": ["doctor notes, treatment recommendations, follow-up instructions, other unstructured medical text"],
        "vital_signs": {"blood_pressure": "if mentioned", "heart_rate": "if mentioned", "temperature": "if mentioned"},
        "lab_results": {"test_name": "result value and unit"},
        "prescriptions": [{"medication_name": "name", "dosage": "dosage instructions", "frequency": "how often", "duration": "how long"}]
    },
    "processing_notes": "any issues with OCR or unclear text"
}

IMPORTANT RULES:
- Return ONLY the JSON response, no other text
- If information is not available, use empty arrays [] or empty strings ""
- Be specific and accurate, do not hallucinate information
- If text is unclear, mention it in processing_notes
- Focus on medically relevant information only`

	if typeHint != "" {
		prompt += "\n\nDOCUMENT TYPE HINT: This appears to be a " + typeHint
	}
	return prompt
}
