package extract

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error kinds. Every error returned by Dispatcher.Extract matches exactly one
// of these with errors.Is.
var (
	ErrUnsupportedFormat  = errors.New("unsupported format")
	ErrEmptyResult        = errors.New("extraction produced no text")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrBackendExecution   = errors.New("backend execution failed")
	ErrTimeout            = errors.New("extraction timed out")
)

// ExtractionError carries the kind of failure plus where it happened.
type ExtractionError struct {
	Kind    error
	Backend string
	Path    string
	Err     error
}

func (e *ExtractionError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Backend != "" {
		fmt.Fprintf(&b, " [%s]", e.Backend)
	}
	if e.Path != "" {
		b.WriteString(": ")
		b.WriteString(e.Path)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *ExtractionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// UnsupportedFormat reports an extension outside the allow-list.
func UnsupportedFormat(path, ext string) error {
	if ext == "" {
		ext = "(none)"
	}
	return &ExtractionError{Kind: ErrUnsupportedFormat, Path: path, Err: fmt.Errorf("extension %s is not allowed", ext)}
}

// EmptyResult reports text without any word characters.
func EmptyResult(backend, path string) error {
	return &ExtractionError{Kind: ErrEmptyResult, Backend: backend, Path: path}
}

// BackendUnavailable reports a backend that is not installed or configured.
func BackendUnavailable(backend string, err error) error {
	return &ExtractionError{Kind: ErrBackendUnavailable, Backend: backend, Err: err}
}

// BackendExecution reports a backend that ran and failed.
func BackendExecution(backend string, err error) error {
	return &ExtractionError{Kind: ErrBackendExecution, Backend: backend, Err: err}
}

// Timeout reports a backend that exceeded its time budget.
func Timeout(backend string, limit time.Duration, err error) error {
	if err == nil {
		err = fmt.Errorf("limit %s exceeded", limit)
	} else {
		err = fmt.Errorf("limit %s exceeded: %w", limit, err)
	}
	return &ExtractionError{Kind: ErrTimeout, Backend: backend, Err: err}
}

// withPath fills in the path of an ExtractionError that does not carry one yet.
func withPath(err error, path string) error {
	var xe *ExtractionError
	if errors.As(err, &xe) && xe.Path == "" {
		cp := *xe
		cp.Path = path
		return &cp
	}
	return err
}
