package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"textract/logging"
)

// DocumentTypes defines the file extensions accepted when no allow-list is configured
var DocumentTypes = []string{
	"pdf",
	"txt", "text", "md", "markdown", "csv", "tsv", "log", "json", "yaml", "yml",
	"ini", "cfg", "conf", "xml",
	"html", "htm", "xhtml",
	"eml", "mbox", "msg",
	"doc", "docx", "xls", "xlsx", "ppt", "pptx",
	"odt", "ods", "odp", "rtf",
}

const (
	// DefaultSplitTimeout bounds one run of the generic document splitter.
	DefaultSplitTimeout = 30 * time.Second
	// DefaultRichTimeout bounds one run of the rich text engine command.
	DefaultRichTimeout = 60 * time.Second
)

// DefaultRichCommand is the Apache Tika CLI invocation; the input path is appended.
var DefaultRichCommand = []string{"tika", "--text"}

// Config holds all runtime options.
type Config struct {
	AllowedExtensions []string      `koanf:"allowed_extensions"`
	SplitTimeout      time.Duration `koanf:"split_timeout"`
	RichTimeout       time.Duration `koanf:"rich_timeout"`
	RichCommand       []string      `koanf:"rich_command"`
	TempRoot          string        `koanf:"temp_root"`
	Log               LogConfig     `koanf:"log"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns a Config populated with built-in defaults.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills zero values.
func applyDefaults(cfg *Config) {
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = append([]string(nil), DocumentTypes...)
	}
	if cfg.SplitTimeout == 0 {
		cfg.SplitTimeout = DefaultSplitTimeout
	}
	if cfg.RichTimeout == 0 {
		cfg.RichTimeout = DefaultRichTimeout
	}
	if len(cfg.RichCommand) == 0 {
		cfg.RichCommand = append([]string(nil), DefaultRichCommand...)
	}
	if cfg.TempRoot == "" {
		cfg.TempRoot = os.TempDir()
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}

// Validate checks the configuration for values the extractor cannot run with.
func (c *Config) Validate() error {
	if len(c.AllowedExtensions) == 0 {
		return fmt.Errorf("allowed_extensions must not be empty")
	}
	if _, err := CompileAllowed(c.AllowedExtensions); err != nil {
		return fmt.Errorf("allowed_extensions: %w", err)
	}
	if c.SplitTimeout <= 0 {
		return fmt.Errorf("split_timeout must be positive, got %s", c.SplitTimeout)
	}
	if c.RichTimeout <= 0 {
		return fmt.Errorf("rich_timeout must be positive, got %s", c.RichTimeout)
	}
	if len(c.RichCommand) == 0 || strings.TrimSpace(c.RichCommand[0]) == "" {
		return fmt.Errorf("rich_command must name an executable")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}
	return nil
}

// Allowed compiles the configured allow-list.
func (c *Config) Allowed() (*AllowedExtensions, error) {
	return CompileAllowed(c.AllowedExtensions)
}

// NormalizeExt lower-cases an extension and ensures the leading dot.
// The empty extension stays empty.
func NormalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || strings.HasPrefix(ext, ".") {
		return ext
	}
	return "." + ext
}
