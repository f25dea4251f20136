// Package pdf extracts text from PDF files.
package pdf

import (
	"context"
	"fmt"
	"strings"

	lpdf "github.com/ledongthuc/pdf"
)

// Text returns the plain text of every page of the PDF at path, one page per
// line block. Pages the library cannot decode are skipped.
func Text(ctx context.Context, path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	f, reader, err := lpdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	numPages := reader.NumPage()
	skipped := 0
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, ok := pagePlainText(page)
		if !ok {
			skipped++
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(pageText)
	}

	if sb.Len() == 0 && skipped > 0 {
		return "", fmt.Errorf("no page of %d could be decoded", numPages)
	}
	return sb.String(), nil
}

// pagePlainText isolates a single page so a malformed font table only costs
// that page.
func pagePlainText(page lpdf.Page) (text string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	t, err := page.GetPlainText(nil)
	if err != nil {
		return "", false
	}
	return t, true
}
