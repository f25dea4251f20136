package extract

import "context"

// TextBackend turns one file into raw text.
type TextBackend interface {
	Extract(ctx context.Context, path string) (string, error)
}

// TextBackendFunc adapts a function to TextBackend.
type TextBackendFunc func(ctx context.Context, path string) (string, error)

// Extract implements TextBackend.
func (f TextBackendFunc) Extract(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}

// ResultKind classifies a rich engine run.
type ResultKind int

const (
	ResultOK ResultKind = iota
	// ResultUnavailable means the engine is not installed or not configured.
	ResultUnavailable
	ResultFailed
	ResultTimedOut
)

func (k ResultKind) String() string {
	switch k {
	case ResultOK:
		return "ok"
	case ResultUnavailable:
		return "unavailable"
	case ResultFailed:
		return "failed"
	case ResultTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Result is the outcome of RichEngine.ToText. Text is set only for ResultOK;
// Err describes every other kind.
type Result struct {
	Kind ResultKind
	Text string
	Err  error
}

// RichEngine is the primary engine for complex office formats. It writes the
// extracted text to dst and also returns it.
type RichEngine interface {
	Name() string
	ToText(ctx context.Context, src, dst string) Result
}

// Splitter breaks a document into one or more .txt files inside outDir.
type Splitter interface {
	Split(ctx context.Context, path, outDir string) error
}

// SplitterFunc adapts a function to Splitter.
type SplitterFunc func(ctx context.Context, path, outDir string) error

// Split implements Splitter.
func (f SplitterFunc) Split(ctx context.Context, path, outDir string) error {
	return f(ctx, path, outDir)
}

// Backends is the set of engines a Dispatcher can route to. A nil member is
// treated as not installed.
type Backends struct {
	PDF      TextBackend
	Text     TextBackend
	HTML     TextBackend
	Email    TextBackend
	Mailbox  TextBackend
	Outlook  TextBackend
	Rich     RichEngine
	Splitter Splitter
}
