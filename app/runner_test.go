package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textract/extract"
)

type fakeExtractor struct {
	texts map[string]string
	errs  map[string]error
	delay time.Duration
}

func (f *fakeExtractor) ExtractFile(ctx context.Context, _ string, path string) (string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err, ok := f.errs[path]; ok {
		return "", err
	}
	return f.texts[path], nil
}

func TestRunner_ResultsInInputOrder(t *testing.T) {
	fx := &fakeExtractor{texts: map[string]string{}}
	var files []string
	for i := 0; i < 20; i++ {
		p := fmt.Sprintf("doc-%02d.txt", i)
		files = append(files, p)
		fx.texts[p] = "text of " + p
	}
	fx.delay = time.Millisecond

	seen := 0
	r := &Runner{Extractor: fx, Workers: 4}
	results, stats := r.Run(context.Background(), files, func(Result) { seen++ })

	require.Len(t, results, len(files))
	assert.Equal(t, len(files), seen)
	for i, res := range results {
		assert.Equal(t, i, res.Index)
		assert.Equal(t, files[i], res.Path)
		assert.Equal(t, "text of "+files[i], res.Text)
		assert.NoError(t, res.Err)
	}
	assert.Equal(t, int64(len(files)), stats.Succeeded)
	assert.Zero(t, stats.Failed)
}

func TestRunner_CountsFailures(t *testing.T) {
	boom := extract.BackendExecution("pdf", errors.New("boom"))
	fx := &fakeExtractor{
		texts: map[string]string{"a.txt": "alpha"},
		errs:  map[string]error{"b.pdf": boom},
	}
	r := &Runner{Extractor: fx, Workers: 2}
	results, stats := r.Run(context.Background(), []string{"a.txt", "b.pdf"}, nil)

	assert.Equal(t, int64(1), stats.Succeeded)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(len("alpha")), stats.Bytes)
	assert.ErrorIs(t, results[1].Err, extract.ErrBackendExecution)
}

func TestRunner_WritesOutputFiles(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out")
	fx := &fakeExtractor{texts: map[string]string{
		"a/report.docx": "first",
		"b/report.pdf":  "second",
		"notes.md":      "third",
	}}
	r := &Runner{Extractor: fx, Workers: 1, OutputDir: out}
	results, stats := r.Run(context.Background(), []string{"a/report.docx", "b/report.pdf", "notes.md"}, nil)
	require.Equal(t, int64(3), stats.Succeeded)

	assert.Equal(t, filepath.Join(out, "report.txt"), results[0].Output)
	assert.Equal(t, filepath.Join(out, "report-1.txt"), results[1].Output)
	assert.Equal(t, filepath.Join(out, "notes.txt"), results[2].Output)

	data, err := os.ReadFile(results[1].Output)
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(data))
}

func TestRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fx := &fakeExtractor{texts: map[string]string{"a.txt": "a", "b.txt": "b", "c.txt": "c"}}
	r := &Runner{Extractor: fx, Workers: 2}
	results, stats := r.Run(ctx, []string{"a.txt", "b.txt", "c.txt"}, nil)

	assert.Equal(t, int64(3), stats.Failed)
	for _, res := range results {
		assert.ErrorIs(t, res.Err, context.Canceled)
	}
}

func TestRunner_NoFiles(t *testing.T) {
	r := &Runner{Extractor: &fakeExtractor{}}
	results, stats := r.Run(context.Background(), nil, nil)
	assert.Empty(t, results)
	assert.Zero(t, stats.Files)
}

func TestFailureKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{extract.UnsupportedFormat("a.exe", ".exe"), "unsupported"},
		{extract.EmptyResult("text", "a.txt"), "empty"},
		{extract.Timeout("splitter", time.Second, context.DeadlineExceeded), "timeout"},
		{extract.BackendUnavailable("rich", errors.New("missing")), "unavailable"},
		{extract.BackendExecution("pdf", errors.New("bad xref")), "failed"},
		{errors.New("other"), "error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, failureKind(tt.err), "%v", tt.err)
	}
}
