package backend

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

const msgPropertyPrefix = "__substg1.0_"

// Message properties in output order: subject, sender name, display-to and
// the plain text body.
var outlookProperties = []struct {
	tag   string
	label string
}{
	{tag: "0037"},
	{tag: "0C1A", label: "From: "},
	{tag: "0E04", label: "To: "},
	{tag: "1000"},
}

// Outlook extracts the headers and body of an Outlook .msg file.
type Outlook struct{}

// Extract implements extract.TextBackend.
func (Outlook) Extract(ctx context.Context, path string) (string, error) {
	entries, err := readOLE(path, MaxInputBytes, func(name string, p []string) bool {
		return strings.HasPrefix(name, msgPropertyPrefix) && !inSubStorage(p)
	})
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	props := make(map[string]string, len(entries))
	for _, e := range entries {
		id := strings.TrimPrefix(e.Name, msgPropertyPrefix)
		if len(id) != 8 {
			continue
		}
		tag, typ := strings.ToUpper(id[:4]), strings.ToUpper(id[4:])
		switch typ {
		case "001F":
			props[tag] = trimNUL(decodeUTF16LE(e.Data))
		case "001E":
			if _, ok := props[tag]; !ok {
				s, _ := charmap.Windows1252.NewDecoder().Bytes(e.Data)
				props[tag] = trimNUL(string(s))
			}
		}
	}

	var sb strings.Builder
	for _, p := range outlookProperties {
		v := strings.TrimSpace(props[p.tag])
		if v == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(p.label)
		sb.WriteString(v)
	}
	if sb.Len() == 0 {
		return "", errors.New("no subject or body properties")
	}
	return sb.String(), nil
}

// inSubStorage reports whether an entry belongs to an attachment, recipient
// or named-property storage rather than the message itself.
func inSubStorage(path []string) bool {
	for _, p := range path {
		if strings.HasPrefix(p, "__attach_") || strings.HasPrefix(p, "__recip_") || strings.HasPrefix(p, "__nameid_") {
			return true
		}
	}
	return false
}

func trimNUL(s string) string {
	return strings.TrimRight(s, "\x00")
}
