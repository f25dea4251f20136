package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Default caps for page content splitting.
const (
	DefaultPageCap    = 2000
	DefaultPerPageCap = 512 * 1024
)

var (
	pageNumberRegex = regexp.MustCompile(`_(\d+)\.txt$`)

	// pdfcpu otherwise installs a config dir under the user's home on first use
	disableConfigDir sync.Once
)

// SplitPages dumps the content stream of every page with pdfcpu and writes
// the text shown on each page to outDir as part-NNNN.txt. It does not rely on
// the font tables, so it also works on files the text engine rejects.
// Pages without text are skipped, so a blank document writes no parts.
func SplitPages(ctx context.Context, path, outDir string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdfcpu panic: %v", r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	disableConfigDir.Do(api.DisableConfigDir)

	rawDir := filepath.Join(outDir, "content")
	if err := os.MkdirAll(rawDir, 0o700); err != nil {
		return fmt.Errorf("content dir: %w", err)
	}
	defer os.RemoveAll(rawDir)

	if err := api.ExtractContentFile(path, rawDir, nil, nil); err != nil {
		return fmt.Errorf("pdfcpu extract content: %w", err)
	}

	pages, err := contentFiles(rawDir)
	if err != nil {
		return err
	}

	written := 0
	for i, page := range pages {
		if i >= DefaultPageCap {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := os.ReadFile(page)
		if err != nil {
			return fmt.Errorf("read page content: %w", err)
		}
		text := strings.TrimSpace(parseStringLiterals(data, DefaultPerPageCap))
		if text == "" {
			continue
		}
		written++
		name := filepath.Join(outDir, fmt.Sprintf("part-%04d.txt", written))
		if err := os.WriteFile(name, []byte(text), 0o600); err != nil {
			return fmt.Errorf("write page: %w", err)
		}
	}
	return nil
}

// contentFiles lists the dumped content streams in page order.
func contentFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read content dir: %w", err)
	}

	type page struct {
		path string
		num  int
	}
	pages := make([]page, 0, len(ents))
	for _, de := range ents {
		if de.IsDir() {
			continue
		}
		num := 0
		if m := pageNumberRegex.FindStringSubmatch(de.Name()); m != nil {
			num, _ = strconv.Atoi(m[1])
		}
		pages = append(pages, page{path: filepath.Join(dir, de.Name()), num: num})
	}
	sort.SliceStable(pages, func(i, j int) bool {
		if pages[i].num != pages[j].num {
			return pages[i].num < pages[j].num
		}
		return pages[i].path < pages[j].path
	})

	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.path
	}
	return out, nil
}

// parseStringLiterals collects the text inside balanced parentheses of a
// content stream, decoding backslash escapes. A TJ/Tj sequence ends in a
// space; a T* or ' operator after a literal starts a new line.
func parseStringLiterals(s []byte, maxOut int) string {
	var out strings.Builder
	depth := 0
	for i := 0; i < len(s) && out.Len() < maxOut; i++ {
		c := s[i]
		if depth == 0 {
			switch {
			case c == '(':
				depth = 1
			case c == '\'' || c == '"':
				out.WriteByte('\n')
			case c == 'T' && i+1 < len(s) && s[i+1] == '*':
				out.WriteByte('\n')
				i++
			}
			continue
		}
		switch c {
		case '\\':
			if i+1 >= len(s) {
				continue
			}
			i++
			i += writeEscape(&out, s[i:]) - 1
		case '(':
			depth++
			out.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				out.WriteByte(' ')
			} else {
				out.WriteByte(c)
			}
		default:
			out.WriteByte(c)
		}
	}
	return out.String()
}

// writeEscape decodes the escape sequence at the start of s (just after the
// backslash) and returns how many bytes it consumed.
func writeEscape(out *strings.Builder, s []byte) int {
	switch c := s[0]; c {
	case 'n':
		out.WriteByte('\n')
	case 'r':
		out.WriteByte('\r')
	case 't':
		out.WriteByte('\t')
	case 'b', 'f':
		out.WriteByte(' ')
	case '\r', '\n':
		// line continuation
		if c == '\r' && len(s) > 1 && s[1] == '\n' {
			return 2
		}
	default:
		if c >= '0' && c <= '7' {
			n, v := 0, 0
			for n < 3 && n < len(s) && s[n] >= '0' && s[n] <= '7' {
				v = v*8 + int(s[n]-'0')
				n++
			}
			out.WriteByte(byte(v))
			return n
		}
		out.WriteByte(c)
	}
	return 1
}
