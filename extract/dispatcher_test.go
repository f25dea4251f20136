package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"textract/config"
	"textract/logging"
)

type countingBackend struct {
	calls atomic.Int32
	paths []string
	text  string
	err   error
}

func (b *countingBackend) Extract(_ context.Context, path string) (string, error) {
	b.calls.Add(1)
	b.paths = append(b.paths, path)
	return b.text, b.err
}

type fakeRich struct {
	calls  atomic.Int32
	result Result
	srcs   []string
	write  bool
}

func (r *fakeRich) Name() string { return "fake-rich" }

func (r *fakeRich) ToText(_ context.Context, src, dst string) Result {
	r.calls.Add(1)
	r.srcs = append(r.srcs, src)
	if r.write && r.result.Kind == ResultOK {
		_ = os.WriteFile(dst, []byte(r.result.Text), 0o600)
	}
	return r.result
}

type fakeSplitter struct {
	calls atomic.Int32
	parts map[string]string
	err   error
	block bool
	sleep time.Duration
}

func (s *fakeSplitter) Split(ctx context.Context, _ string, outDir string) error {
	s.calls.Add(1)
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if s.sleep > 0 {
		time.Sleep(s.sleep)
	}
	if s.err != nil {
		return s.err
	}
	for name, body := range s.parts {
		if err := os.WriteFile(filepath.Join(outDir, name), []byte(body), 0o600); err != nil {
			return err
		}
	}
	return nil
}

type errSniffer struct{}

func (errSniffer) IsPDF(string) (bool, error) { return false, errors.New("disk on fire") }

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n")

func writeSource(t *testing.T, name string, body []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, body, 0o600))
	return path
}

func assertRootEmpty(t *testing.T, root string) {
	t.Helper()
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Empty(t, names, "temp root should be empty after extraction")
}

func TestExtract_UnsupportedExtension(t *testing.T) {
	root := t.TempDir()
	text := &countingBackend{text: "hello"}
	split := &fakeSplitter{parts: map[string]string{"a.txt": "x"}}
	d := NewDispatcher(DefaultRegistry(), nil, Backends{Text: text, Splitter: split})

	_, err := d.ExtractFile(context.Background(), root, writeSource(t, "tool.exe", []byte("MZ")))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	var xe *ExtractionError
	require.ErrorAs(t, err, &xe)
	assert.Contains(t, xe.Path, "tool.exe")
	assert.Zero(t, text.calls.Load())
	assert.Zero(t, split.calls.Load())
	assertRootEmpty(t, root)
}

func TestExtract_NoExtensionIsUnsupported(t *testing.T) {
	root := t.TempDir()
	d := NewDispatcher(nil, nil, Backends{})

	_, err := d.ExtractFile(context.Background(), root, writeSource(t, "README", []byte("words")))

	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assertRootEmpty(t, root)
}

func TestExtract_PDFSniffOverridesRegistry(t *testing.T) {
	root := t.TempDir()
	pdf := &countingBackend{text: "from the pdf engine"}
	rich := &fakeRich{result: Result{Kind: ResultOK, Text: "from rich"}}
	d := NewDispatcher(DefaultRegistry(), nil, Backends{PDF: pdf, Rich: rich})

	got, err := d.ExtractFile(context.Background(), root, writeSource(t, "report.docx", pdfBytes))

	require.NoError(t, err)
	assert.Equal(t, "from the pdf engine", got)
	assert.EqualValues(t, 1, pdf.calls.Load())
	assert.Zero(t, rich.calls.Load())
	assertRootEmpty(t, root)
}

func TestExtract_PDFSniffWithLeadingJunk(t *testing.T) {
	root := t.TempDir()
	pdf := &countingBackend{text: "ok"}
	d := NewDispatcher(nil, nil, Backends{PDF: pdf, Text: &countingBackend{text: "text"}})

	body := append([]byte("garbage preamble\n"), pdfBytes...)
	_, err := d.ExtractFile(context.Background(), root, writeSource(t, "scan.txt", body))

	require.NoError(t, err)
	assert.EqualValues(t, 1, pdf.calls.Load())
}

func TestExtract_PDFSniffDoesNotBypassAllowList(t *testing.T) {
	root := t.TempDir()
	pdf := &countingBackend{text: "pdf"}
	d := NewDispatcher(nil, nil, Backends{PDF: pdf})

	_, err := d.ExtractFile(context.Background(), root, writeSource(t, "payload.bin", pdfBytes))

	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Zero(t, pdf.calls.Load())
	assertRootEmpty(t, root)
}

func TestExtract_RegistryStrategies(t *testing.T) {
	tests := []struct {
		file string
		pick func(*Backends) *countingBackend
	}{
		{file: "notes.txt", pick: func(b *Backends) *countingBackend { return b.Text.(*countingBackend) }},
		{file: "page.HTML", pick: func(b *Backends) *countingBackend { return b.HTML.(*countingBackend) }},
		{file: "mail.eml", pick: func(b *Backends) *countingBackend { return b.Email.(*countingBackend) }},
		{file: "archive.mbox", pick: func(b *Backends) *countingBackend { return b.Mailbox.(*countingBackend) }},
		{file: "outlook.msg", pick: func(b *Backends) *countingBackend { return b.Outlook.(*countingBackend) }},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			root := t.TempDir()
			b := Backends{
				Text:    &countingBackend{text: "text"},
				HTML:    &countingBackend{text: "html"},
				Email:   &countingBackend{text: "email"},
				Mailbox: &countingBackend{text: "mailbox"},
				Outlook: &countingBackend{text: "outlook"},
			}
			d := NewDispatcher(DefaultRegistry(), nil, b)

			got, err := d.ExtractFile(context.Background(), root, writeSource(t, tt.file, []byte("body")))

			require.NoError(t, err)
			want := tt.pick(&b)
			assert.Equal(t, want.text, got)
			assert.EqualValues(t, 1, want.calls.Load())
			assertRootEmpty(t, root)
		})
	}
}

func TestExtract_ComplexToolsSuccess(t *testing.T) {
	root := t.TempDir()
	rich := &fakeRich{result: Result{Kind: ResultOK, Text: "  Quarterly\r\n\r\n report  "}, write: true}
	split := &fakeSplitter{}
	d := NewDispatcher(DefaultRegistry(), nil, Backends{Rich: rich, Splitter: split})

	got, err := d.ExtractFile(context.Background(), root, writeSource(t, "q3.docx", []byte("PK\x03\x04")))

	require.NoError(t, err)
	assert.Equal(t, "Quarterly\nreport", got)
	assert.Zero(t, split.calls.Load())
	assertRootEmpty(t, root)
}

func TestExtract_ComplexToolsFallsBackOnce(t *testing.T) {
	for _, kind := range []ResultKind{ResultUnavailable, ResultFailed, ResultTimedOut} {
		t.Run(kind.String(), func(t *testing.T) {
			root := t.TempDir()
			logger := logging.NewTestLogger()
			rich := &fakeRich{result: Result{Kind: kind, Err: errors.New("engine said no")}}
			split := &fakeSplitter{parts: map[string]string{
				"part-0002.txt": "second",
				"part-0001.txt": "first",
			}}
			d := NewDispatcher(DefaultRegistry(), nil, Backends{Rich: rich, Splitter: split}, WithLogger(logger.Logger))

			got, err := d.ExtractFile(context.Background(), root, writeSource(t, "deck.pptx", []byte("PK\x03\x04")))

			require.NoError(t, err)
			assert.Equal(t, "first\nsecond", got)
			assert.EqualValues(t, 1, rich.calls.Load())
			assert.EqualValues(t, 1, split.calls.Load())
			logger.AssertLogged(t, zapcore.WarnLevel, "falling back to splitter")
			assertRootEmpty(t, root)
		})
	}
}

func TestExtract_MissingRichEngineFallsBack(t *testing.T) {
	root := t.TempDir()
	split := &fakeSplitter{parts: map[string]string{"a.txt": "salvaged"}}
	d := NewDispatcher(DefaultRegistry(), nil, Backends{Splitter: split})

	got, err := d.ExtractFile(context.Background(), root, writeSource(t, "old.doc", []byte{0xD0, 0xCF, 0x11, 0xE0}))

	require.NoError(t, err)
	assert.Equal(t, "salvaged", got)
	assert.EqualValues(t, 1, split.calls.Load())
}

func TestExtract_SplitterFailureAfterFallbackPropagates(t *testing.T) {
	root := t.TempDir()
	rich := &fakeRich{result: Result{Kind: ResultFailed, Err: errors.New("exit status 1")}}
	split := &fakeSplitter{err: errors.New("corrupt container")}
	d := NewDispatcher(DefaultRegistry(), nil, Backends{Rich: rich, Splitter: split})

	_, err := d.ExtractFile(context.Background(), root, writeSource(t, "sheet.xlsx", []byte("PK")))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackendExecution)
	assert.Contains(t, err.Error(), "corrupt container")
	assert.Contains(t, err.Error(), "exit status 1")
	assert.EqualValues(t, 1, split.calls.Load())
	assertRootEmpty(t, root)
}

func TestExtract_UnknownExtensionUsesSplitter(t *testing.T) {
	root := t.TempDir()
	split := &fakeSplitter{parts: map[string]string{"out.txt": "page one"}}
	allowed := config.MustCompileAllowed([]string{"pages"})
	d := NewDispatcher(DefaultRegistry(), nil, Backends{Splitter: split}, WithAllowedExtensions(allowed))

	got, err := d.ExtractFile(context.Background(), root, writeSource(t, "doc.pages", []byte("whatever")))

	require.NoError(t, err)
	assert.Equal(t, "page one", got)
}

func TestExtract_SplitterPartsReadThroughTextBackend(t *testing.T) {
	root := t.TempDir()
	text := &countingBackend{text: "decoded"}
	split := &fakeSplitter{parts: map[string]string{"a.txt": "raw", "b.txt": "raw", "skip.bin": "x"}}
	allowed := config.MustCompileAllowed([]string{"pages"})
	d := NewDispatcher(nil, nil, Backends{Text: text, Splitter: split}, WithAllowedExtensions(allowed))

	got, err := d.ExtractFile(context.Background(), root, writeSource(t, "doc.pages", []byte("x")))

	require.NoError(t, err)
	assert.Equal(t, "decoded\ndecoded", got)
	assert.EqualValues(t, 2, text.calls.Load())
}

func TestExtract_SplitterWithoutOutputIsEmpty(t *testing.T) {
	root := t.TempDir()
	d := NewDispatcher(nil, nil, Backends{Splitter: &fakeSplitter{}},
		WithAllowedExtensions(config.MustCompileAllowed([]string{"*"})))

	_, err := d.ExtractFile(context.Background(), root, writeSource(t, "blob.dat", []byte("x")))

	assert.ErrorIs(t, err, ErrEmptyResult)
	assert.NotErrorIs(t, err, ErrBackendExecution)
	assertRootEmpty(t, root)
}

func TestExtract_ComplexToolsFallbackWithoutOutputIsEmpty(t *testing.T) {
	root := t.TempDir()
	rich := &fakeRich{result: Result{Kind: ResultFailed, Err: errors.New("boom")}}
	split := &fakeSplitter{parts: map[string]string{"part-0001.txt": " \n\t "}}
	d := NewDispatcher(nil, nil, Backends{Rich: rich, Splitter: split})

	_, err := d.ExtractFile(context.Background(), root, writeSource(t, "blank.docx", []byte("PK")))

	assert.ErrorIs(t, err, ErrEmptyResult)
	assert.EqualValues(t, 1, split.calls.Load())
	assertRootEmpty(t, root)
}

func TestExtract_SplitterTimeout(t *testing.T) {
	root := t.TempDir()
	split := &fakeSplitter{block: true}
	d := NewDispatcher(DefaultRegistry(), nil, Backends{Splitter: split},
		WithSplitTimeout(50*time.Millisecond),
		WithAllowedExtensions(config.MustCompileAllowed([]string{"*"})))

	start := time.Now()
	_, err := d.ExtractFile(context.Background(), root, writeSource(t, "big.dat", []byte("x")))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
	assertRootEmpty(t, root)
}

func TestExtract_SplitterIgnoringContextStillTimesOut(t *testing.T) {
	root := t.TempDir()
	split := &fakeSplitter{sleep: 300 * time.Millisecond, parts: map[string]string{"late.txt": "late"}}
	d := NewDispatcher(DefaultRegistry(), nil, Backends{Splitter: split},
		WithSplitTimeout(50*time.Millisecond),
		WithAllowedExtensions(config.MustCompileAllowed([]string{"*"})))

	_, err := d.ExtractFile(context.Background(), root, writeSource(t, "slow.dat", []byte("x")))

	assert.ErrorIs(t, err, ErrTimeout)
	assertRootEmpty(t, root)
}

func TestExtract_TimeoutAfterRichFailureHasNoFurtherFallback(t *testing.T) {
	root := t.TempDir()
	rich := &fakeRich{result: Result{Kind: ResultFailed, Err: errors.New("boom")}}
	split := &fakeSplitter{block: true}
	d := NewDispatcher(DefaultRegistry(), nil, Backends{Rich: rich, Splitter: split},
		WithSplitTimeout(30*time.Millisecond))

	_, err := d.ExtractFile(context.Background(), root, writeSource(t, "big.odt", []byte("PK")))

	assert.ErrorIs(t, err, ErrTimeout)
	assert.EqualValues(t, 1, rich.calls.Load())
	assert.EqualValues(t, 1, split.calls.Load())
	assertRootEmpty(t, root)
}

func TestExtract_EmptyResult(t *testing.T) {
	for _, body := range []string{"", "   \n\t  ", "-- ... !!", "\x00\x01"} {
		root := t.TempDir()
		d := NewDispatcher(nil, nil, Backends{Text: &countingBackend{text: body}})

		_, err := d.ExtractFile(context.Background(), root, writeSource(t, "blank.txt", []byte("x")))

		assert.ErrorIs(t, err, ErrEmptyResult, "body %q", body)
		assertRootEmpty(t, root)
	}
}

func TestExtract_BackendErrorIsExecutionError(t *testing.T) {
	root := t.TempDir()
	d := NewDispatcher(nil, nil, Backends{HTML: &countingBackend{err: errors.New("bad markup")}})

	_, err := d.ExtractFile(context.Background(), root, writeSource(t, "x.html", []byte("<p>")))

	assert.ErrorIs(t, err, ErrBackendExecution)
	var xe *ExtractionError
	require.ErrorAs(t, err, &xe)
	assert.Equal(t, "html", xe.Backend)
	assertRootEmpty(t, root)
}

func TestExtract_MissingBackendIsUnavailable(t *testing.T) {
	root := t.TempDir()
	d := NewDispatcher(nil, nil, Backends{})

	_, err := d.ExtractFile(context.Background(), root, writeSource(t, "a.eml", []byte("Subject: hi")))

	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assertRootEmpty(t, root)
}

func TestExtract_SniffErrorIsExecutionError(t *testing.T) {
	root := t.TempDir()
	d := NewDispatcher(nil, errSniffer{}, Backends{Text: &countingBackend{text: "x"}})

	_, err := d.ExtractFile(context.Background(), root, writeSource(t, "a.txt", []byte("x")))

	assert.ErrorIs(t, err, ErrBackendExecution)
	assertRootEmpty(t, root)
}

func TestExtract_SanitizedNameReachesBackend(t *testing.T) {
	root := t.TempDir()
	rich := &fakeRich{result: Result{Kind: ResultOK, Text: "done"}}
	d := NewDispatcher(DefaultRegistry(), nil, Backends{Rich: rich})

	_, err := d.ExtractFile(context.Background(), root, writeSource(t, "my report (final).docx", []byte("PK")))

	require.NoError(t, err)
	require.Len(t, rich.srcs, 1)
	assert.Equal(t, "myreportfinal.docx", filepath.Base(rich.srcs[0]))
	assertRootEmpty(t, root)
}

func TestExtract_RepeatableFromSameSource(t *testing.T) {
	root := t.TempDir()
	src := writeSource(t, "notes.txt", []byte("x"))
	d := NewDispatcher(nil, nil, Backends{Text: &countingBackend{text: "café  au   lait\xff"}})

	first, err := d.ExtractFile(context.Background(), root, src)
	require.NoError(t, err)
	assertRootEmpty(t, root)

	second, err := d.ExtractFile(context.Background(), root, src)
	require.NoError(t, err)
	assertRootEmpty(t, root)

	assert.Equal(t, first, second)
	assert.Equal(t, "café au lait", first)
	_, err = os.Stat(src)
	assert.NoError(t, err, "source must be left alone")
}

func TestExtract_LogsCarrySessionID(t *testing.T) {
	root := t.TempDir()
	logger := logging.NewTestLogger()
	d := NewDispatcher(nil, nil, Backends{Text: &countingBackend{text: "x"}}, WithLogger(logger.Logger))

	s, err := NewSession(root, writeSource(t, "a.txt", []byte("x")))
	require.NoError(t, err)
	_, err = d.Extract(context.Background(), s)
	require.NoError(t, err)

	entries := logger.FilterMessage("strategy selected").All()
	require.Len(t, entries, 1)
	assert.Equal(t, s.ID, entries[0].ContextMap()["session.id"])
	assert.Equal(t, "text", entries[0].ContextMap()["strategy"])
}
