package backend

import (
	"context"

	"textract/extract/pdf"
)

// PDF extracts text with the PDF text engine.
type PDF struct{}

// Extract implements extract.TextBackend.
func (PDF) Extract(ctx context.Context, path string) (string, error) {
	return pdf.Text(ctx, path)
}
