package ocr

import (
	"context"
	"os"

	"github.com/rs/zerolog"
)

// Processor dispatches a file on disk to the right extraction path by
// detected type: images go straight to the provider, PDFs try the text layer
// first and fall back to per-page rendering, everything else is read as text.
type Processor struct {
	client Client
	logger zerolog.Logger
}

func NewProcessor(client Client, logger zerolog.Logger) *Processor {
	return &Processor{
		client: client,
		logger: logger.With().Str("component", "ocr_processor").Logger(),
	}
}

// ProcessFile runs extraction on one document. It never returns nil: all
// failures come back as an error Result for the caller to record.
func (p *Processor) ProcessFile(ctx context.Context, path, typeHint string) *Result {
	kind, mimeType, err := DetectFileType(path)
	if err != nil {
		return ErrorResult(err.Error())
	}

	p.logger.Info().Str("path", path).Str("kind", string(kind)).Str("mime", mimeType).
		Msg("processing document")

	switch kind {
	case KindImage:
		data, err := os.ReadFile(path)
		if err != nil {
			return ErrorResult("read file: " + err.Error())
		}
		return p.client.ExtractFromImage(ctx, data, mimeType, typeHint)

	case KindPDF:
		return p.processPDF(ctx, path, typeHint)

	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return ErrorResult("read file: " + err.Error())
		}
		text := string(data)
		if len(text) == 0 {
			return ErrorResult("document contains no readable text")
		}
		return p.client.ExtractFromText(ctx, text, typeHint)
	}
}

func (p *Processor) processPDF(ctx context.Context, path, typeHint string) *Result {
	text, err := ExtractPDFText(path)
	if err != nil {
		return ErrorResult(err.Error())
	}
	if text != "" {
		return p.client.ExtractFromText(ctx, text, typeHint)
	}

	// No text layer: treat as a scanned PDF and OCR rendered pages.
	p.logger.Info().Str("path", path).Msg("no text layer in PDF, rendering pages")
	pages, err := RenderPDFPages(path)
	if err != nil {
		return ErrorResult(err.Error())
	}

	results := make([]*Result, 0, len(pages))
	for _, page := range pages {
		res := p.client.ExtractFromImage(ctx, page, "image/jpeg", typeHint)
		if res.Err {
			continue
		}
		results = append(results, res)
	}
	return MergePageResults(results)
}
