package extract

import (
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const fallbackStem = "document"

var (
	// Characters that break naive shell interpolation of a path
	fileNameHazardRegex = regexp.MustCompile(`[()\s]`)

	// Control characters other than tab, newline and carriage return
	controlCharRegex = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f-\x9f\x{feff}]`)

	// Horizontal whitespace, including Unicode space separators
	blankRunRegex = regexp.MustCompile(`[\t\v\f \p{Zs}]+`)

	// Any whitespace run that contains a line break
	lineBreakRunRegex = regexp.MustCompile(` ?\n\s*`)

	nonWordRegex = regexp.MustCompile(`[^\p{L}\p{N}_]+`)

	shellSafeRegex = regexp.MustCompile(`^[A-Za-z0-9_@%+=:,./-]+$`)
)

// SanitizeFileName strips parentheses and whitespace from a basename.
// A name left without a stem becomes "document" plus its extension.
func SanitizeFileName(name string) string {
	clean := fileNameHazardRegex.ReplaceAllString(name, "")
	if clean == name {
		return name
	}
	if clean == "" {
		return fallbackStem
	}
	ext := filepath.Ext(clean)
	if strings.TrimSuffix(clean, ext) == "" {
		return fallbackStem + ext
	}
	return clean
}

// RepairUTF8 drops invalid byte sequences and control characters and returns
// NFC-normalized text.
func RepairUTF8(text string) string {
	text = strings.ToValidUTF8(text, "")
	text = controlCharRegex.ReplaceAllString(text, " ")
	return norm.NFC.String(text)
}

// NormalizeWhitespace collapses whitespace runs: a run containing a line break
// becomes a single newline, any other run a single space.
func NormalizeWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = blankRunRegex.ReplaceAllString(text, " ")
	text = lineBreakRunRegex.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}

// IsEmptyResult reports whether text holds no letters, digits or underscores.
func IsEmptyResult(text string) bool {
	return nonWordRegex.ReplaceAllString(text, "") == ""
}

// ShellQuote quotes s for a POSIX shell.
func ShellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if shellSafeRegex.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// ShellJoin renders argv as a copy-pasteable command line.
func ShellJoin(argv []string) string {
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = ShellQuote(a)
	}
	return strings.Join(quoted, " ")
}
