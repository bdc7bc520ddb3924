package ocr

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"os"

	"github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"
)

// maxScannedPages caps how many pages of a scanned PDF are rendered and sent
// to the provider in the image fallback path.
const maxScannedPages = 5

// ExtractPDFText pulls the text layer out of a PDF, page by page. Pages that
// fail to extract are skipped. Encrypted PDFs get one empty-password decrypt
// attempt. An empty return with nil error means the PDF has no text layer.
func ExtractPDFText(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat pdf: %w", err)
	}

	reader, err := pdf.NewReaderEncrypted(f, fi.Size(), func() string { return "" })
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}

	var buf bytes.Buffer
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil || text == "" {
			continue
		}
		fmt.Fprintf(&buf, "\n--- Page %d ---\n%s\n", i, text)
	}
	return buf.String(), nil
}

// RenderPDFPages rasterizes up to maxScannedPages pages of a PDF to JPEG
// bytes for image OCR. Used when the PDF has no extractable text layer.
func RenderPDFPages(path string) ([][]byte, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf for rendering: %w", err)
	}
	defer doc.Close()

	n := doc.NumPage()
	if n > maxScannedPages {
		n = maxScannedPages
	}

	pages := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		img, err := doc.Image(i)
		if err != nil {
			continue
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
			continue
		}
		pages = append(pages, buf.Bytes())
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("could not render any pages from %s", path)
	}
	return pages, nil
}
