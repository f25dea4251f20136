package backend

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// maxPartBytes caps the uncompressed size read from one archive member.
const maxPartBytes = 64 << 20

var partNumberRegex = regexp.MustCompile(`(\d+)\.xml$`)

// zipPart is one text-bearing member of an office archive.
type zipPart struct {
	name string
	// only collect character data inside these local element names; nil
	// means everywhere
	only map[string]bool
}

var ooxmlText = map[string]bool{"t": true}

// officeParts picks the members of an OOXML or OpenDocument archive that
// hold body text, in reading order.
func officeParts(zr *zip.Reader) ([]zipPart, error) {
	var (
		slides, sheets, notes []string
		hasDoc, hasODF, hasSS bool
		extras                []string
	)
	for _, f := range zr.File {
		name := f.Name
		switch {
		case name == "word/document.xml":
			hasDoc = true
		case name == "word/footnotes.xml" || name == "word/endnotes.xml":
			extras = append(extras, name)
		case strings.HasPrefix(name, "ppt/slides/slide") && path.Ext(name) == ".xml":
			slides = append(slides, name)
		case strings.HasPrefix(name, "ppt/notesSlides/notesSlide") && path.Ext(name) == ".xml":
			notes = append(notes, name)
		case name == "xl/sharedStrings.xml":
			hasSS = true
		case strings.HasPrefix(name, "xl/worksheets/sheet") && path.Ext(name) == ".xml":
			sheets = append(sheets, name)
		case name == "content.xml":
			hasODF = true
		}
	}

	var parts []zipPart
	switch {
	case hasDoc:
		parts = append(parts, zipPart{name: "word/document.xml", only: ooxmlText})
		sort.Strings(extras)
		for _, n := range extras {
			parts = append(parts, zipPart{name: n, only: ooxmlText})
		}
	case len(slides) > 0:
		sortByNumber(slides)
		sortByNumber(notes)
		for _, n := range append(slides, notes...) {
			parts = append(parts, zipPart{name: n, only: ooxmlText})
		}
	case hasSS || len(sheets) > 0:
		if hasSS {
			parts = append(parts, zipPart{name: "xl/sharedStrings.xml", only: ooxmlText})
		}
		// inline strings only; shared string cells are indexes
		sortByNumber(sheets)
		for _, n := range sheets {
			parts = append(parts, zipPart{name: n, only: ooxmlText})
		}
	case hasODF:
		parts = append(parts, zipPart{name: "content.xml"})
	default:
		return nil, errors.New("zip archive is not an office document")
	}
	return parts, nil
}

func sortByNumber(names []string) {
	num := func(s string) int {
		if m := partNumberRegex.FindStringSubmatch(s); m != nil {
			n, _ := strconv.Atoi(m[1])
			return n
		}
		return 0
	}
	sort.SliceStable(names, func(i, j int) bool { return num(names[i]) < num(names[j]) })
}

// splitOffice writes one text part per archive member.
func splitOffice(ctx context.Context, zr *zip.Reader, w *partWriter) error {
	parts, err := officeParts(zr)
	if err != nil {
		return err
	}
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	for _, p := range parts {
		if err := ctx.Err(); err != nil {
			return err
		}
		f := files[p.name]
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open %s: %w", p.name, err)
		}
		text, err := xmlText(io.LimitReader(rc, maxPartBytes), p.only)
		rc.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", p.name, err)
		}
		if err := w.write(text); err != nil {
			return err
		}
	}
	return nil
}

// xmlText streams character data out of an office XML part. Paragraph-like
// elements end a line; tab and space elements emit whitespace.
func xmlText(r io.Reader, only map[string]bool) (string, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false

	var (
		sb    strings.Builder
		depth int
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse XML: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr", "line-break":
				sb.WriteByte('\n')
			case "s":
				if t.Name.Space != "" && strings.Contains(t.Name.Space, "opendocument") {
					sb.WriteByte(' ')
				}
			}
			if only[t.Name.Local] {
				depth++
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p", "h", "tr", "si", "row", "table-row":
				sb.WriteByte('\n')
			case "tc", "table-cell", "c":
				sb.WriteByte('\t')
			}
			if only[t.Name.Local] && depth > 0 {
				depth--
			}
		case xml.CharData:
			if only == nil || depth > 0 {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}
