package config

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// AllowedExtensions is a compiled, case-insensitive set of extension patterns.
//
// A pattern is one of:
//   - a bare extension, with or without the dot ("pdf", ".pdf")
//   - a glob matched against the dotted extension ("*.doc*", ".od?")
//   - a regular expression wrapped in slashes ("/^\.docx?$/")
type AllowedExtensions struct {
	patterns []extPattern
}

type extPattern struct {
	raw   string
	exact string
	glob  string
	re    *regexp.Regexp
}

// CompileAllowed builds an AllowedExtensions from raw patterns.
func CompileAllowed(patterns []string) (*AllowedExtensions, error) {
	a := &AllowedExtensions{patterns: make([]extPattern, 0, len(patterns))}
	for _, raw := range patterns {
		p, err := compilePattern(raw)
		if err != nil {
			return nil, err
		}
		a.patterns = append(a.patterns, p)
	}
	return a, nil
}

// MustCompileAllowed is like CompileAllowed but panics on a bad pattern.
func MustCompileAllowed(patterns []string) *AllowedExtensions {
	a, err := CompileAllowed(patterns)
	if err != nil {
		panic(err)
	}
	return a
}

func compilePattern(raw string) (extPattern, error) {
	p := strings.TrimSpace(raw)
	if p == "" {
		return extPattern{}, fmt.Errorf("empty extension pattern")
	}

	if len(p) >= 2 && strings.HasPrefix(p, "/") && strings.HasSuffix(p, "/") {
		re, err := regexp.Compile("(?i)" + p[1:len(p)-1])
		if err != nil {
			return extPattern{}, fmt.Errorf("pattern %q: %w", raw, err)
		}
		return extPattern{raw: raw, re: re}, nil
	}

	if strings.ContainsAny(p, "*?[") {
		glob := strings.ToLower(p)
		if !strings.HasPrefix(glob, ".") && !strings.HasPrefix(glob, "*") {
			glob = "." + glob
		}
		if _, err := path.Match(glob, ""); err != nil {
			return extPattern{}, fmt.Errorf("pattern %q: %w", raw, err)
		}
		return extPattern{raw: raw, glob: glob}, nil
	}

	return extPattern{raw: raw, exact: NormalizeExt(p)}, nil
}

// Allows reports whether ext matches any configured pattern.
func (a *AllowedExtensions) Allows(ext string) bool {
	if a == nil {
		return false
	}
	ext = NormalizeExt(ext)
	for _, p := range a.patterns {
		switch {
		case p.re != nil:
			if p.re.MatchString(ext) {
				return true
			}
		case p.glob != "":
			if ok, _ := path.Match(p.glob, ext); ok {
				return true
			}
		default:
			if ext != "" && p.exact == ext {
				return true
			}
		}
	}
	return false
}

// Patterns returns the raw patterns in configuration order.
func (a *AllowedExtensions) Patterns() []string {
	out := make([]string, 0, len(a.patterns))
	for _, p := range a.patterns {
		out = append(out, p.raw)
	}
	return out
}
