package extract

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const (
	sessionDirPattern = "textract-*"
	textSuffix        = ".out.txt"
)

// Session owns the temporary working copy of one input file and every
// artifact produced while extracting it. Close removes all of them.
type Session struct {
	ID string

	root     string
	source   string
	workDir  string
	file     string
	textPath string

	mu   sync.Mutex
	dirs []string

	closeOnce sync.Once
	closeErr  error
}

// NewSession copies src into a fresh directory under root. The copy is
// renamed to a shell-safe basename. An empty root means os.TempDir.
func NewSession(root, src string) (*Session, error) {
	if root == "" {
		root = os.TempDir()
	}

	info, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("stat source: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("source %s is not a regular file", src)
	}

	workDir, err := os.MkdirTemp(root, sessionDirPattern)
	if err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	s := &Session{
		ID:      uuid.NewString(),
		root:    root,
		source:  src,
		workDir: workDir,
		dirs:    []string{workDir},
	}

	name := SanitizeFileName(filepath.Base(src))
	s.file = filepath.Join(workDir, name)
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	s.textPath = filepath.Join(workDir, stem+textSuffix)

	if err := copyFile(src, s.file); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Source returns the path the session was created from.
func (s *Session) Source() string { return s.source }

// File returns the sanitized working copy.
func (s *Session) File() string { return s.file }

// TextPath is where a backend writing text to disk should put it.
func (s *Session) TextPath() string { return s.textPath }

// Ext returns the lower-cased extension of the working copy.
func (s *Session) Ext() string {
	return strings.ToLower(filepath.Ext(s.file))
}

// ScratchDir allocates a registered temporary directory under the session
// root. It is removed by Close at the latest.
func (s *Session) ScratchDir(prefix string) (string, error) {
	dir, err := os.MkdirTemp(s.root, "textract-"+prefix+"-*")
	if err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}
	s.mu.Lock()
	s.dirs = append(s.dirs, dir)
	s.mu.Unlock()
	return dir, nil
}

// releaseDir removes a scratch directory ahead of Close.
func (s *Session) releaseDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove %s: %w", dir, err)
	}
	return nil
}

// Close removes the working copy, the text artifact and every registered
// directory. Paths that are already gone are not errors. Close is safe to
// call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		for _, p := range []string{s.file, s.textPath} {
			if p == "" {
				continue
			}
			if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, fmt.Errorf("remove %s: %w", p, err))
			}
		}

		s.mu.Lock()
		dirs := s.dirs
		s.dirs = nil
		s.mu.Unlock()

		for i := len(dirs) - 1; i >= 0; i-- {
			if err := os.RemoveAll(dirs[i]); err != nil {
				errs = append(errs, fmt.Errorf("remove %s: %w", dirs[i], err))
			}
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create working copy: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy source: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close working copy: %w", err)
	}
	dropPageCache(in)
	return nil
}
