package backend

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/h2non/filetype"

	"textract/extract"
	"textract/extract/pdf"
)

// sniffBytes is how much of the file filetype looks at.
const sniffBytes = 8192

// ErrUnknownContent is returned for binary content the splitter has no
// reader for.
var ErrUnknownContent = errors.New("unrecognized document content")

type contentKind int

const (
	kindUnknown contentKind = iota
	kindZip
	kindOLE
	kindRTF
	kindPDF
	kindText
)

// DocSplitter is the generic splitter. It identifies the container by
// content and writes one part-NNNN.txt per page, slide, sheet or document
// part it can read. A readable document without text writes no parts.
type DocSplitter struct{}

// Split implements extract.Splitter.
func (DocSplitter) Split(ctx context.Context, path, outDir string) error {
	head, err := extract.ReadHeader(path, sniffBytes)
	if err != nil {
		return err
	}
	w := &partWriter{dir: outDir}

	switch detectKind(head) {
	case kindZip:
		err = splitZip(ctx, path, w)
	case kindOLE:
		err = splitOLE(ctx, path, w)
	case kindRTF:
		err = splitRTF(path, w)
	case kindPDF:
		return pdf.SplitPages(ctx, path, outDir)
	case kindText:
		err = splitText(path, w)
	default:
		return fmt.Errorf("%s: %w", filepath.Base(path), ErrUnknownContent)
	}
	return err
}

// detectKind maps the file header to a reader. filetype covers the binary
// containers; RTF and plain text are recognised directly.
func detectKind(head []byte) contentKind {
	if kind, err := filetype.Match(head); err == nil && kind != filetype.Unknown {
		switch kind.Extension {
		case "zip", "docx", "xlsx", "pptx", "odt", "ods", "odp", "epub":
			return kindZip
		case "doc", "xls", "ppt", "msi":
			return kindOLE
		case "rtf":
			return kindRTF
		case "pdf":
			return kindPDF
		}
	}
	switch {
	case bytes.HasPrefix(head, oleSignature):
		return kindOLE
	case bytes.HasPrefix(bytes.TrimLeft(head, " \t\r\n"), rtfMagic):
		return kindRTF
	case bytes.HasPrefix(head, []byte("PK\x03\x04")):
		return kindZip
	case looksLikeText(head):
		return kindText
	}
	return kindUnknown
}

// looksLikeText accepts data without NUL bytes that is valid UTF-8 or
// carries a BOM. A truncated trailing rune is tolerated.
func looksLikeText(head []byte) bool {
	if len(head) == 0 {
		return false
	}
	if hasBOM(head) {
		return true
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return false
	}
	for i := 0; i < utf8.UTFMax && len(head) > 0; i++ {
		if utf8.Valid(head) {
			return true
		}
		head = head[:len(head)-1]
	}
	return false
}

func splitZip(ctx context.Context, path string, w *partWriter) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer zr.Close()
	return splitOffice(ctx, &zr.Reader, w)
}

func splitOLE(ctx context.Context, path string, w *partWriter) error {
	entries, err := readOLE(path, MaxInputBytes, func(name string, _ []string) bool {
		return oleTextStreams[name]
	})
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.write(salvageText(e.Data)); err != nil {
			return err
		}
	}
	return nil
}

func splitRTF(path string, w *partWriter) error {
	data, err := readCapped(path)
	if err != nil {
		return err
	}
	text, err := rtfText(data)
	if err != nil {
		return err
	}
	return w.write(text)
}

func splitText(path string, w *partWriter) error {
	data, err := readCapped(path)
	if err != nil {
		return err
	}
	return w.write(DecodeText(data))
}

// partWriter numbers the parts it writes; blank parts are dropped.
type partWriter struct {
	dir   string
	count int
}

func (w *partWriter) write(text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	w.count++
	name := filepath.Join(w.dir, fmt.Sprintf("part-%04d.txt", w.count))
	if err := os.WriteFile(name, []byte(text), 0o600); err != nil {
		return fmt.Errorf("write part: %w", err)
	}
	return nil
}
