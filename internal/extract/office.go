package extract

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"code.sajari.com/docconv/v2"
)

const (
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// extractOffice converts an Office Open XML document (xlsx, docx) to text.
func extractOffice(data []byte, mimeType string) (string, error) {
	res, err := docconv.Convert(bytes.NewReader(data), mimeType, true)
	if err != nil {
		return "", fmt.Errorf("%w: converting %s: %v", ErrUnsupportedFormat, mimeType, err)
	}
	if res == nil || strings.TrimSpace(res.Body) == "" {
		return "", fmt.Errorf("%w: office document", ErrEmptyContent)
	}
	return res.Body, nil
}

// extractCSV renders CSV rows as comma-joined lines so each row chunks as a
// unit of text.
func extractCSV(data []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	var sb strings.Builder
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: parsing CSV: %v", ErrUnsupportedFormat, err)
		}
		sb.WriteString(strings.Join(record, ", "))
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
