package pdfextract

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractText reads the entire content of r and extracts plain text from the
// PDF. Returns empty string and nil error when the PDF has no extractable
// text.
func ExtractText(r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if len(b) == 0 {
		return "", nil
	}
	readerAt := bytes.NewReader(b)
	pdfReader, err := pdf.NewReader(readerAt, int64(len(b)))
	if err != nil {
		return "", err
	}
	plainReader, err := pdfReader.GetPlainText()
	if err != nil {
		return "", err
	}
	out, err := io.ReadAll(plainReader)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ExtractFromBase64 decodes an uploaded base64 document and extracts its
// text. Data URI prefixes ("data:application/pdf;base64,") are tolerated.
func ExtractFromBase64(encoded string) (string, error) {
	if idx := strings.Index(encoded, ","); idx != -1 && strings.Contains(encoded[:idx], "base64") {
		encoded = encoded[idx+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", fmt.Errorf("decode pdf payload: %w", err)
	}
	return ExtractText(bytes.NewReader(raw))
}
