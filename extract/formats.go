package extract

import (
	"sort"

	"textract/config"
)

// Strategy selects the backend that handles a file.
type Strategy int

const (
	// StrategySplitter is the default for extensions without a mapping.
	StrategySplitter Strategy = iota
	StrategyPDF
	StrategyText
	StrategyHTML
	StrategyEmail
	StrategyMailbox
	StrategyOutlook
	// StrategyComplexTools tries the rich engine first and falls back to the splitter.
	StrategyComplexTools
)

func (s Strategy) String() string {
	switch s {
	case StrategySplitter:
		return "splitter"
	case StrategyPDF:
		return "pdf"
	case StrategyText:
		return "text"
	case StrategyHTML:
		return "html"
	case StrategyEmail:
		return "email"
	case StrategyMailbox:
		return "mailbox"
	case StrategyOutlook:
		return "outlook"
	case StrategyComplexTools:
		return "complex_tools"
	default:
		return "unknown"
	}
}

// Family is one format family's extension table.
type Family struct {
	Name    string
	Formats map[string]Strategy
}

// DefaultFamilies returns the built-in families in merge order.
func DefaultFamilies() []Family {
	return []Family{
		{Name: "pdf", Formats: map[string]Strategy{
			".pdf": StrategyPDF,
		}},
		{Name: "text", Formats: map[string]Strategy{
			".txt": StrategyText, ".text": StrategyText,
			".md": StrategyText, ".markdown": StrategyText,
			".csv": StrategyText, ".tsv": StrategyText,
			".log": StrategyText, ".json": StrategyText,
			".yaml": StrategyText, ".yml": StrategyText,
			".ini": StrategyText, ".cfg": StrategyText, ".conf": StrategyText,
			".xml": StrategyText,
		}},
		{Name: "markup", Formats: map[string]Strategy{
			".html": StrategyHTML, ".htm": StrategyHTML, ".xhtml": StrategyHTML,
		}},
		{Name: "mail", Formats: map[string]Strategy{
			".eml":  StrategyEmail,
			".mbox": StrategyMailbox,
			".msg":  StrategyOutlook,
		}},
		{Name: "office", Formats: map[string]Strategy{
			".doc": StrategyComplexTools, ".docx": StrategyComplexTools,
			".xls": StrategyComplexTools, ".xlsx": StrategyComplexTools,
			".ppt": StrategyComplexTools, ".pptx": StrategyComplexTools,
			".odt": StrategyComplexTools, ".ods": StrategyComplexTools,
			".odp": StrategyComplexTools, ".rtf": StrategyComplexTools,
		}},
	}
}

// Registry maps extensions to strategies. It is immutable once built and
// safe to share between dispatchers.
type Registry struct {
	formats  map[string]Strategy
	families []string
}

// NewRegistry merges families in order. When two families map the same
// extension the later one wins.
func NewRegistry(families ...Family) *Registry {
	r := &Registry{formats: make(map[string]Strategy)}
	for _, f := range families {
		r.families = append(r.families, f.Name)
		for ext, s := range f.Formats {
			r.formats[config.NormalizeExt(ext)] = s
		}
	}
	return r
}

// DefaultRegistry builds a registry from DefaultFamilies.
func DefaultRegistry() *Registry {
	return NewRegistry(DefaultFamilies()...)
}

// Lookup returns the strategy mapped to ext.
func (r *Registry) Lookup(ext string) (Strategy, bool) {
	s, ok := r.formats[config.NormalizeExt(ext)]
	return s, ok
}

// Extensions returns every mapped extension, sorted.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.formats))
	for ext := range r.formats {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Families returns family names in merge order.
func (r *Registry) Families() []string {
	return append([]string(nil), r.families...)
}
