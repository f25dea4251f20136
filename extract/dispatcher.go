package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"textract/config"
	"textract/logging"
)

const splitterName = "splitter"

// Dispatcher routes a session's file to a backend and post-processes the
// text. It holds only immutable state and may be shared between goroutines
// working on different sessions.
type Dispatcher struct {
	registry     *Registry
	sniffer      Sniffer
	backends     Backends
	allowed      *config.AllowedExtensions
	splitTimeout time.Duration
	logger       *logging.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithAllowedExtensions replaces the default allow-list.
func WithAllowedExtensions(a *config.AllowedExtensions) Option {
	return func(d *Dispatcher) {
		if a != nil {
			d.allowed = a
		}
	}
}

// WithSplitTimeout bounds each splitter run.
func WithSplitTimeout(limit time.Duration) Option {
	return func(d *Dispatcher) {
		if limit > 0 {
			d.splitTimeout = limit
		}
	}
}

// WithLogger sets the dispatcher's logger.
func WithLogger(l *logging.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher builds a dispatcher. A nil sniffer means SignatureSniffer.
func NewDispatcher(reg *Registry, sniffer Sniffer, backends Backends, opts ...Option) *Dispatcher {
	if reg == nil {
		reg = DefaultRegistry()
	}
	if sniffer == nil {
		sniffer = SignatureSniffer{}
	}
	d := &Dispatcher{
		registry:     reg,
		sniffer:      sniffer,
		backends:     backends,
		allowed:      config.MustCompileAllowed(config.DocumentTypes),
		splitTimeout: config.DefaultSplitTimeout,
		logger:       logging.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the dispatcher's format registry.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// ExtractFile copies path into a new session under root, extracts it and
// cleans up.
func (d *Dispatcher) ExtractFile(ctx context.Context, root, path string) (string, error) {
	s, err := NewSession(root, path)
	if err != nil {
		return "", err
	}
	return d.Extract(ctx, s)
}

// Extract returns the normalized text of the session's file. The session is
// closed before Extract returns, whatever the outcome.
func (d *Dispatcher) Extract(ctx context.Context, s *Session) (text string, err error) {
	defer func() {
		if cerr := s.Close(); cerr != nil {
			d.logger.Warn(ctx, "session cleanup failed", zap.Error(cerr))
			if err == nil {
				err = fmt.Errorf("cleanup: %w", cerr)
			}
		}
	}()

	ctx = logging.WithSessionID(ctx, s.ID)
	ext := s.Ext()
	if !d.allowed.Allows(ext) {
		return "", UnsupportedFormat(s.Source(), ext)
	}

	strategy, err := d.strategyFor(s.File(), ext)
	if err != nil {
		return "", withPath(err, s.Source())
	}
	d.logger.Debug(ctx, "strategy selected",
		zap.String("file", s.Source()),
		zap.String("ext", ext),
		zap.Stringer("strategy", strategy))

	raw, err := d.run(ctx, s, strategy)
	if err != nil {
		return "", withPath(err, s.Source())
	}

	text = NormalizeWhitespace(RepairUTF8(raw))
	if IsEmptyResult(text) {
		return "", EmptyResult(strategy.String(), s.Source())
	}
	return text, nil
}

func (d *Dispatcher) strategyFor(path, ext string) (Strategy, error) {
	isPDF, err := d.sniffer.IsPDF(path)
	if err != nil {
		return StrategySplitter, BackendExecution("sniffer", err)
	}
	if isPDF {
		return StrategyPDF, nil
	}
	if s, ok := d.registry.Lookup(ext); ok {
		return s, nil
	}
	return StrategySplitter, nil
}

func (d *Dispatcher) run(ctx context.Context, s *Session, strategy Strategy) (string, error) {
	switch strategy {
	case StrategyPDF:
		return d.extractWith(ctx, strategy, d.backends.PDF, s.File())
	case StrategyText:
		return d.extractWith(ctx, strategy, d.backends.Text, s.File())
	case StrategyHTML:
		return d.extractWith(ctx, strategy, d.backends.HTML, s.File())
	case StrategyEmail:
		return d.extractWith(ctx, strategy, d.backends.Email, s.File())
	case StrategyMailbox:
		return d.extractWith(ctx, strategy, d.backends.Mailbox, s.File())
	case StrategyOutlook:
		return d.extractWith(ctx, strategy, d.backends.Outlook, s.File())
	case StrategyComplexTools:
		return d.extractWithComplexTools(ctx, s)
	case StrategySplitter:
		return d.extractWithSplitter(ctx, s)
	default:
		return "", BackendUnavailable(strategy.String(), fmt.Errorf("no backend for strategy %d", int(strategy)))
	}
}

func (d *Dispatcher) extractWith(ctx context.Context, strategy Strategy, b TextBackend, path string) (string, error) {
	if b == nil {
		return "", BackendUnavailable(strategy.String(), errors.New("backend not installed"))
	}
	text, err := b.Extract(ctx, path)
	if err != nil {
		var xe *ExtractionError
		if errors.As(err, &xe) {
			return "", err
		}
		return "", BackendExecution(strategy.String(), err)
	}
	return text, nil
}

// extractWithComplexTools tries the rich engine and falls back to the
// splitter exactly once on any non-OK result.
func (d *Dispatcher) extractWithComplexTools(ctx context.Context, s *Session) (string, error) {
	var primary Result
	name := "rich"
	if d.backends.Rich == nil {
		primary = Result{Kind: ResultUnavailable, Err: errors.New("rich engine not installed")}
	} else {
		name = d.backends.Rich.Name()
		primary = d.backends.Rich.ToText(ctx, s.File(), s.TextPath())
	}
	if primary.Kind == ResultOK {
		return primary.Text, nil
	}

	d.logger.Warn(ctx, "rich engine failed, falling back to splitter",
		zap.String("engine", name),
		zap.Stringer("result", primary.Kind),
		zap.Error(primary.Err))

	text, err := d.extractWithSplitter(ctx, s)
	if err != nil {
		var xe *ExtractionError
		if errors.As(err, &xe) && primary.Err != nil {
			cp := *xe
			cause := fmt.Errorf("after %s %s: %w", name, primary.Kind, primary.Err)
			if xe.Err != nil {
				cause = fmt.Errorf("%w (after %s %s: %v)", xe.Err, name, primary.Kind, primary.Err)
			}
			cp.Err = cause
			return "", &cp
		}
		return "", err
	}
	return text, nil
}

// extractWithSplitter runs the splitter under the split timeout and joins
// the .txt parts it produced in name order. No parts is an empty text.
func (d *Dispatcher) extractWithSplitter(ctx context.Context, s *Session) (string, error) {
	if d.backends.Splitter == nil {
		return "", BackendUnavailable(splitterName, errors.New("splitter not installed"))
	}
	outDir, err := s.ScratchDir("split")
	if err != nil {
		return "", BackendExecution(splitterName, err)
	}
	defer func() {
		if rerr := s.releaseDir(outDir); rerr != nil {
			d.logger.Warn(ctx, "scratch cleanup failed", zap.Error(rerr))
		}
	}()

	err = runWithTimeout(ctx, d.splitTimeout, func(ctx context.Context) error {
		return d.backends.Splitter.Split(ctx, s.File(), outDir)
	})
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "", Timeout(splitterName, d.splitTimeout, err)
	case err != nil:
		return "", BackendExecution(splitterName, err)
	}

	text, err := d.collectParts(ctx, outDir)
	if err != nil {
		return "", BackendExecution(splitterName, err)
	}
	return text, nil
}

func (d *Dispatcher) collectParts(ctx context.Context, dir string) (string, error) {
	parts, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return "", err
	}
	sort.Strings(parts)

	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		var (
			text string
			err  error
		)
		if d.backends.Text != nil {
			text, err = d.backends.Text.Extract(ctx, p)
		} else {
			var b []byte
			b, err = os.ReadFile(p)
			text = string(b)
		}
		if err != nil {
			return "", fmt.Errorf("read part %s: %w", filepath.Base(p), err)
		}
		texts = append(texts, text)
	}
	// parts are separate pages or sheets; keep a line break between them
	return strings.Join(texts, "\n"), nil
}
