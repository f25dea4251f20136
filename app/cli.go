package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"textract/config"
	"textract/extract"
	"textract/extract/backend"
	"textract/logging"
)

var version = "0.3"

// errFailures marks a batch where at least one file failed; the per-file
// errors have already been reported.
var errFailures = errors.New("one or more files failed")

// options holds the command line flags.
type options struct {
	configPath   string
	outputDir    string
	logLevel     string
	splitTimeout time.Duration
	workers      int
	tui          bool
}

// Run executes the command line and returns a process exit code.
func Run() int {
	return Execute(os.Args[1:], os.Stdout, os.Stderr)
}

// Execute runs the CLI with explicit arguments and streams.
func Execute(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errFailures) {
			fmt.Fprintln(stderr, errorStyle.Render("Error: "+err.Error()))
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "textract",
		Short: "Extract plain text from documents",
		Long: `textract converts PDFs, office documents, e-mail, HTML and plain text
files into normalized UTF-8 text.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file")

	extractCmd := &cobra.Command{
		Use:   "extract [paths...]",
		Short: "Extract text from files or directories",
		Long: `Extract text from each file. Directories are walked recursively, skipping
hidden and vendor directories, and only files with an allowed extension are kept.

Examples:
  # Print the text of one document
  textract extract report.docx

  # Write <name>.txt for every document under a directory
  textract extract --output-dir out/ ~/Documents

  # Watch progress in the terminal
  textract extract --tui --workers 4 --output-dir out/ ~/Documents`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, opts, args)
		},
	}
	extractCmd.Flags().StringVarP(&opts.outputDir, "output-dir", "o", "", "write <name>.txt per input instead of printing")
	extractCmd.Flags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	extractCmd.Flags().DurationVar(&opts.splitTimeout, "split-timeout", 0, "time limit for one splitter run (default from config)")
	extractCmd.Flags().IntVarP(&opts.workers, "workers", "w", 1, "files extracted concurrently")
	extractCmd.Flags().BoolVar(&opts.tui, "tui", false, "show a progress view (terminal only)")

	formatsCmd := &cobra.Command{
		Use:   "formats",
		Short: "List supported formats and the allowed extensions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFormats(cmd, opts)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("textract v"+version))
		},
	}

	root.AddCommand(extractCmd, formatsCmd, versionCmd)
	return root
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
		if _, err := logging.ParseLevel(opts.logLevel); err != nil {
			return nil, err
		}
		cfg.Log.Level = opts.logLevel
	}
	if f := cmd.Flags().Lookup("split-timeout"); f != nil && f.Changed {
		if opts.splitTimeout <= 0 {
			return nil, fmt.Errorf("--split-timeout must be positive, got %s", opts.splitTimeout)
		}
		cfg.SplitTimeout = opts.splitTimeout
	}
	return cfg, nil
}

func runExtract(cmd *cobra.Command, opts *options, args []string) error {
	ctx := cmd.Context()
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: stderr})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	allowed, err := cfg.Allowed()
	if err != nil {
		return err
	}
	dispatcher := extract.NewDispatcher(nil, nil, backend.NewSet(cfg, logger),
		extract.WithAllowedExtensions(allowed),
		extract.WithSplitTimeout(cfg.SplitTimeout),
		extract.WithLogger(logger.Named("extract")))

	files, err := NewFileWalker(allowed).FindFiles(ctx, args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.New("no files to extract")
	}
	logger.Debug(ctx, "starting batch",
		zap.Int("files", len(files)),
		zap.Int("workers", opts.workers),
		zap.Duration("split_timeout", cfg.SplitTimeout))

	runner := &Runner{
		Extractor: dispatcher,
		TempRoot:  cfg.TempRoot,
		OutputDir: opts.outputDir,
		Workers:   opts.workers,
		Logger:    logger,
	}

	var (
		results []Result
		stats   *Stats
	)
	out, _ := stdout.(*os.File)
	if opts.tui && isTerminal(out) {
		results, stats, err = runTUI(ctx, runner, files, out)
		if err != nil {
			return err
		}
	} else {
		if opts.tui {
			logger.Warn(ctx, "--tui ignored: stdout is not a terminal")
		}
		results, stats = runner.Run(ctx, files, nil)
	}

	if opts.outputDir == "" {
		printTexts(stdout, results, terminalWidth(out))
	}
	printSummary(stderr, results, stats)

	if stats.Failed > 0 {
		return errFailures
	}
	return nil
}

// printTexts writes each extracted text to w, with a header per file when
// there is more than one.
func printTexts(w io.Writer, results []Result, width int) {
	multi := len(results) > 1
	first := true
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		if multi {
			if !first {
				fmt.Fprintln(w)
			}
			fmt.Fprintln(w, subHeaderStyle.Render("==> "+r.Path+" <=="))
		}
		fmt.Fprintln(w, r.Text)
		first = false
	}
	if multi && !first {
		fmt.Fprintln(w, separatorStyle.Render(strings.Repeat("─", min(width, 80))))
	}
}

func printSummary(w io.Writer, results []Result, stats *Stats) {
	for _, r := range results {
		switch {
		case r.Err != nil:
			fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("✗ %s [%s]: %v", r.Path, failureKind(r.Err), r.Err)))
		case r.Output != "":
			fmt.Fprintln(w, infoStyle.Render(fmt.Sprintf("✓ %s → %s", r.Path, r.Output)))
		}
	}
	line := fmt.Sprintf("Extracted %d of %d files (%s) in %s",
		stats.Succeeded, stats.Files, formatBytes(stats.Bytes), stats.Elapsed.Round(time.Millisecond))
	if stats.Failed > 0 {
		fmt.Fprintln(w, warningStyle.Render(line))
		return
	}
	fmt.Fprintln(w, successStyle.Render(line))
}

func runFormats(cmd *cobra.Command, opts *options) error {
	w := cmd.OutOrStdout()
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	allowed, err := cfg.Allowed()
	if err != nil {
		return err
	}

	reg := extract.DefaultRegistry()
	fmt.Fprintln(w, headerStyle.Render("textract v"+version))
	fmt.Fprintln(w)

	fmt.Fprintln(w, subHeaderStyle.Render("FAMILIES"))
	fmt.Fprintln(w, infoStyle.Render("  "+strings.Join(reg.Families(), ", ")))
	fmt.Fprintln(w)

	byStrategy := make(map[extract.Strategy][]string)
	for _, ext := range reg.Extensions() {
		s, _ := reg.Lookup(ext)
		byStrategy[s] = append(byStrategy[s], ext)
	}
	strategies := make([]extract.Strategy, 0, len(byStrategy))
	for s := range byStrategy {
		strategies = append(strategies, s)
	}
	sort.Slice(strategies, func(i, j int) bool { return strategies[i] < strategies[j] })

	fmt.Fprintln(w, subHeaderStyle.Render("EXTENSIONS"))
	for _, s := range strategies {
		prefix := fmt.Sprintf("  %-14s ", s)
		fmt.Fprintln(w, infoStyle.Render(wrapTextWithIndent(prefix, strings.Join(byStrategy[s], " "), 80)))
	}
	fmt.Fprintln(w, infoStyle.Render(fmt.Sprintf("  %-14s %s", extract.StrategySplitter, "any other allowed extension")))
	fmt.Fprintln(w)

	fmt.Fprintln(w, subHeaderStyle.Render("ALLOWED"))
	fmt.Fprintln(w, infoStyle.Render(wrapTextWithIndent("  ", strings.Join(allowed.Patterns(), " "), 80)))

	var disabled []string
	for _, ext := range reg.Extensions() {
		if !allowed.Allows(ext) {
			disabled = append(disabled, ext)
		}
	}
	if len(disabled) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, warningStyle.Render("Not allowed by config: "+strings.Join(disabled, " ")))
	}
	return nil
}
