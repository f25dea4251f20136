// Package backend holds the concrete extraction engines wired into an
// extract.Dispatcher.
package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/gogs/chardet"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// MaxInputBytes caps how much of a single file a backend reads into memory.
const MaxInputBytes = 256 << 20

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// PlainText reads text files in any charset chardet can identify.
type PlainText struct{}

// Extract implements extract.TextBackend.
func (PlainText) Extract(ctx context.Context, path string) (string, error) {
	data, err := readCapped(path)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return DecodeText(data), nil
}

// DecodeText converts data to UTF-8. A byte order mark wins; otherwise valid
// UTF-8 is returned as is and anything else goes through charset detection.
// Undetectable input is returned unchanged.
func DecodeText(data []byte) string {
	if hasBOM(data) {
		dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
		if out, _, err := transform.Bytes(dec, data); err == nil {
			return string(out)
		}
	}
	if utf8.Valid(data) {
		return string(data)
	}

	res, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil || res == nil {
		return string(data)
	}
	enc, err := htmlindex.Get(res.Charset)
	if err != nil {
		return string(data)
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return string(data)
	}
	return string(out)
}

func hasBOM(data []byte) bool {
	return bytes.HasPrefix(data, bomUTF8) ||
		bytes.HasPrefix(data, bomUTF16LE) ||
		bytes.HasPrefix(data, bomUTF16BE)
}

func readCapped(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxInputBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) > MaxInputBytes {
		return nil, fmt.Errorf("%s exceeds %d bytes", path, MaxInputBytes)
	}
	return data, nil
}
