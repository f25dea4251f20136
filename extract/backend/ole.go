package backend

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/richardlehane/mscfb"
	xunicode "golang.org/x/text/encoding/unicode"
)

// minRunLength is the shortest printable run kept by salvageText.
const minRunLength = 4

var oleSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// Streams that carry the body text of legacy Office binaries.
var oleTextStreams = map[string]bool{
	"WordDocument":        true,
	"1Table":              true,
	"0Table":              true,
	"Workbook":            true,
	"Book":                true,
	"PowerPoint Document": true,
}

// oleEntry is one stream of a compound file.
type oleEntry struct {
	Name string
	Path []string
	Data []byte
}

// readOLE returns the streams of the compound file at path that keep
// returns true for. Reads stop once budget bytes have been collected.
func readOLE(path string, budget int64, keep func(name string, path []string) bool) ([]oleEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	cf, err := mscfb.New(f)
	if err != nil {
		return nil, fmt.Errorf("open compound file: %w", err)
	}

	var (
		out   []oleEntry
		total int64
	)
	for ent, err := cf.Next(); err == nil; ent, err = cf.Next() {
		if total >= budget {
			break
		}
		if !keep(ent.Name, ent.Path) {
			continue
		}
		data, rerr := io.ReadAll(io.LimitReader(ent, budget-total))
		if rerr != nil {
			return nil, fmt.Errorf("read stream %s: %w", ent.Name, rerr)
		}
		total += int64(len(data))
		out = append(out, oleEntry{Name: ent.Name, Path: append([]string(nil), ent.Path...), Data: data})
	}
	return out, nil
}

// salvageText recovers readable runs from a binary stream. It decodes the
// data both as UTF-16LE and as 8-bit text and keeps whichever yields more
// letters.
func salvageText(data []byte) string {
	wide := printableRuns(decodeUTF16LE(data))
	narrow := printableRuns(latin1(data))
	if letterCount(wide) >= letterCount(narrow) {
		return wide
	}
	return narrow
}

func decodeUTF16LE(data []byte) string {
	if len(data)%2 == 1 {
		data = data[:len(data)-1]
	}
	dec := xunicode.UTF16(xunicode.LittleEndian, xunicode.IgnoreBOM).NewDecoder()
	out, err := dec.Bytes(data)
	if err != nil {
		return ""
	}
	return string(out)
}

func latin1(data []byte) string {
	var sb strings.Builder
	sb.Grow(len(data))
	for _, b := range data {
		sb.WriteRune(rune(b))
	}
	return sb.String()
}

// printableRuns keeps runs of at least minRunLength printable runes, one
// run per line.
func printableRuns(s string) string {
	var (
		out strings.Builder
		run []rune
	)
	flush := func() {
		if len(run) >= minRunLength && strings.IndexFunc(string(run), unicode.IsLetter) >= 0 {
			if out.Len() > 0 {
				out.WriteByte('\n')
			}
			out.WriteString(strings.TrimSpace(string(run)))
		}
		run = run[:0]
	}
	for _, r := range s {
		if r == utf8.RuneError || !(unicode.IsPrint(r) || r == '\t') || unicode.Is(unicode.Co, r) {
			flush()
			continue
		}
		run = append(run, r)
	}
	flush()
	return out.String()
}

func letterCount(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}
