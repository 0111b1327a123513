package docs

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// PlainTextExtractor reads a downloaded file as UTF-8 text. Rich
// formats (PDF, Office) need a dedicated extractor behind the same
// port.
type PlainTextExtractor struct{}

// Extract returns the file's text with NUL bytes stripped. NULs break
// PostgreSQL text columns downstream.
func (PlainTextExtractor) Extract(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}

	text := strings.ReplaceAll(string(data), "\x00", "")
	if !utf8.ValidString(text) {
		return "", fmt.Errorf("document is not valid UTF-8 text")
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no text found in document")
	}
	return text, nil
}
