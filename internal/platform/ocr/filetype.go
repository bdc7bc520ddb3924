package ocr

import (
	"fmt"
	"image"
	"mime"
	"os"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// FileKind classifies a document for OCR dispatch.
type FileKind string

const (
	KindImage FileKind = "image"
	KindPDF   FileKind = "pdf"
	KindText  FileKind = "text"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".tiff": true, ".tif": true, ".webp": true,
	".heic": true, ".heif": true,
}

var textExtensions = map[string]bool{
	".txt": true, ".rtf": true, ".md": true, ".csv": true,
}

// DetectFileType classifies a file by extension first, MIME type second,
// and as a last resort by attempting to decode it as an image.
func DetectFileType(path string) (FileKind, string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	mimeType := mime.TypeByExtension(ext)

	switch {
	case imageExtensions[ext]:
		if mimeType == "" {
			mimeType = "image/jpeg"
		}
		return KindImage, mimeType, nil
	case ext == ".pdf":
		return KindPDF, "application/pdf", nil
	case textExtensions[ext]:
		if mimeType == "" {
			mimeType = "text/plain"
		}
		return KindText, mimeType, nil
	}

	if mimeType != "" {
		switch {
		case strings.HasPrefix(mimeType, "image/"):
			return KindImage, mimeType, nil
		case mimeType == "application/pdf":
			return KindPDF, mimeType, nil
		case strings.HasPrefix(mimeType, "text/"):
			return KindText, mimeType, nil
		}
	}

	// Unknown extension: see if the bytes decode as an image.
	if f, err := os.Open(path); err == nil {
		_, format, decErr := image.DecodeConfig(f)
		f.Close()
		if decErr == nil {
			return KindImage, "image/" + format, nil
		}
	}

	return "", "", fmt.Errorf("unsupported file format: %s (MIME: %s)", ext, mimeType)
}
