// Package extracttest builds small in-memory documents for backend and
// dispatcher tests. Every builder returns a complete, well-formed file.
package extracttest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteFile writes data to name inside a fresh temp dir and returns the path.
func WriteFile(t testing.TB, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

// PDF returns a PDF with one page per entry, each showing its text in
// Helvetica. Text must not contain parentheses or backslashes.
func PDF(pages ...string) []byte {
	var objs []string
	// 1 catalog, 2 pages, 3 font, then page/content pairs
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objs = append(objs,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	)
	for i, text := range pages {
		stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, obj := range objs {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return b.Bytes()
}

// Zip packs name/content pairs into a zip archive, preserving order. A
// "mimetype" entry is stored uncompressed, as OpenDocument requires.
func Zip(entries ...[2]string) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		hdr := &zip.FileHeader{Name: e[0], Method: zip.Deflate}
		if e[0] == "mimetype" {
			hdr.Method = zip.Store
		}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			panic(err)
		}
		if _, err := w.Write([]byte(e[1])); err != nil {
			panic(err)
		}
	}
	if err := zw.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

const contentTypes = `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"></Types>`

// DOCX returns a Word document with one paragraph per entry.
func DOCX(paragraphs ...string) []byte {
	var body strings.Builder
	for _, p := range paragraphs {
		fmt.Fprintf(&body, `<w:p><w:r><w:t xml:space="preserve">%s</w:t></w:r></w:p>`, html.EscapeString(p))
	}
	doc := `<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body.String() + `</w:body></w:document>`
	return Zip(
		[2]string{"[Content_Types].xml", contentTypes},
		[2]string{"word/document.xml", doc},
	)
}

// PPTX returns a presentation with one slide per entry.
func PPTX(slides ...string) []byte {
	entries := [][2]string{{"[Content_Types].xml", contentTypes}}
	for i, s := range slides {
		xml := `<?xml version="1.0" encoding="UTF-8"?>` +
			`<p:sld xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">` +
			`<p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>` + html.EscapeString(s) +
			`</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`
		entries = append(entries, [2]string{fmt.Sprintf("ppt/slides/slide%d.xml", i+1), xml})
	}
	return Zip(entries...)
}

// XLSX returns a workbook whose shared strings table holds cells.
func XLSX(cells ...string) []byte {
	var sst strings.Builder
	for _, c := range cells {
		fmt.Fprintf(&sst, `<si><t>%s</t></si>`, html.EscapeString(c))
	}
	xml := `<?xml version="1.0" encoding="UTF-8"?>` +
		`<sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">` + sst.String() + `</sst>`
	return Zip(
		[2]string{"[Content_Types].xml", contentTypes},
		[2]string{"xl/sharedStrings.xml", xml},
	)
}

// ODT returns an OpenDocument text file with one paragraph per entry.
func ODT(paragraphs ...string) []byte {
	var body strings.Builder
	for _, p := range paragraphs {
		fmt.Fprintf(&body, `<text:p>%s</text:p>`, html.EscapeString(p))
	}
	xml := `<?xml version="1.0" encoding="UTF-8"?>` +
		`<office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0" xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0">` +
		`<office:body><office:text>` + body.String() + `</office:text></office:body></office:document-content>`
	return Zip(
		[2]string{"mimetype", "application/vnd.oasis.opendocument.text"},
		[2]string{"content.xml", xml},
	)
}

// EML returns a single-part plain-text RFC 5322 message.
func EML(subject, body string) []byte {
	return []byte("From: Alice <alice@example.com>\r\n" +
		"To: Bob <bob@example.com>\r\n" +
		"Subject: " + subject + "\r\n" +
		"Date: Mon, 02 Jan 2006 15:04:05 -0700\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" + body + "\r\n")
}

// HTMLEmail returns a message whose only body part is HTML.
func HTMLEmail(subject, htmlBody string) []byte {
	return []byte("From: alice@example.com\r\n" +
		"To: bob@example.com\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" + htmlBody + "\r\n")
}

// Mbox returns an mboxrd archive holding one plain-text message per
// subject/body pair.
func Mbox(pairs ...[2]string) []byte {
	var b bytes.Buffer
	for _, p := range pairs {
		b.WriteString("From alice@example.com Mon Jan  2 15:04:05 2006\n")
		msg := strings.ReplaceAll(string(EML(p[0], p[1])), "\r\n", "\n")
		b.WriteString(msg)
		b.WriteString("\n")
	}
	return b.Bytes()
}

// RTF returns a minimal RTF document containing the given paragraphs.
func RTF(paragraphs ...string) []byte {
	var b strings.Builder
	b.WriteString(`{\rtf1\ansi\ansicpg1252\deff0{\fonttbl{\f0 Helvetica;}}{\colortbl;\red0\green0\blue0;}`)
	b.WriteString("\n")
	for _, p := range paragraphs {
		b.WriteString(`\f0\fs24 `)
		b.WriteString(p)
		b.WriteString(`\par`)
		b.WriteString("\n")
	}
	b.WriteString("}")
	return []byte(b.String())
}
