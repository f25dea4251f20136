package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/h2non/filetype"
)

// sniffHeaderSize covers the filetype signatures and PDFs with a short
// preamble before the marker.
const sniffHeaderSize = 1024

var pdfMarker = []byte("%PDF-")

// Sniffer detects PDFs by content, independent of the extension.
type Sniffer interface {
	IsPDF(path string) (bool, error)
}

// SignatureSniffer matches the file header against known magic numbers.
type SignatureSniffer struct{}

// IsPDF implements Sniffer.
func (SignatureSniffer) IsPDF(path string) (bool, error) {
	head, err := ReadHeader(path, sniffHeaderSize)
	if err != nil {
		return false, err
	}
	if filetype.Is(head, "pdf") {
		return true, nil
	}
	return bytes.Contains(head, pdfMarker), nil
}

// ReadHeader returns up to n leading bytes of the file at path.
func ReadHeader(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, n)
	read, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return head[:read], nil
}
