package extract

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// MinTextLength is the minimum extracted-text length worth analyzing.
// Shorter results are treated as insufficient content by the analysis worker.
const MinTextLength = 20

// Extractor pulls raw text out of file bytes for the AI analyzer.
type Extractor interface {
	Extract(filename string, data []byte) (string, error)
}

// FileExtractor dispatches on the file extension.
type FileExtractor struct{}

func NewFileExtractor() *FileExtractor {
	return &FileExtractor{}
}

// Extract returns the file's text, or "" for formats without extractable
// text. Errors mean the file claimed a supported format but could not be
// parsed.
func (e *FileExtractor) Extract(filename string, data []byte) (string, error) {
	ext := extension(filename)

	switch ext {
	case "pdf":
		return extractPDF(data)
	case "txt", "csv", "json", "xml", "log", "md":
		return extractPlainText(data)
	case "doc", "docx":
		// Word parsing is not wired up; keep the analyzer informed instead
		// of failing the record.
		return fmt.Sprintf("Word document: %s. Content analysis requires additional libraries.", filename), nil
	default:
		// Images would need OCR, which this build does not carry.
		return "", nil
	}
}

func extension(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(filename[idx+1:])
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	textReader, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract PDF text: %w", err)
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, textReader); err != nil {
		return "", fmt.Errorf("failed to read PDF text: %w", err)
	}
	return strings.TrimSpace(sb.String()), nil
}

func extractPlainText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("file is not valid UTF-8 text")
	}
	return strings.TrimSpace(string(data)), nil
}
