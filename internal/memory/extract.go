package memory

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// maxUploadSize bounds decoded knowledge uploads (menu PDFs and the like).
const maxUploadSize = 5 << 20 // 5MB

// ExtractContent resolves the content field of a memory-store request.
// contentType "text" (or empty) passes the content through; "pdf" expects a
// base64-encoded PDF document and returns its plain text, so restaurants
// can upload menus straight into the knowledge base.
func ExtractContent(content, contentType string) (string, error) {
	switch contentType {
	case "", "text":
		return content, nil
	case "pdf":
		data, err := base64.StdEncoding.DecodeString(content)
		if err != nil {
			return "", fmt.Errorf("invalid base64 content: %w", err)
		}
		if len(data) > maxUploadSize {
			return "", fmt.Errorf("upload exceeds %d bytes", maxUploadSize)
		}
		return extractPDFText(data)
	default:
		return "", fmt.Errorf("unsupported content type %q", contentType)
	}
}

func extractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("reading pdf: %w", err)
	}

	textReader, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(textReader); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}

	text := strings.TrimSpace(buf.String())
	if text == "" {
		return "", fmt.Errorf("pdf contains no extractable text")
	}
	return text, nil
}
