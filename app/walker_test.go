package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textract/config"
)

func touch(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	return path
}

func TestFindFiles(t *testing.T) {
	dir := t.TempDir()
	a := touch(t, filepath.Join(dir, "a.txt"))
	b := touch(t, filepath.Join(dir, "b.DOCX"))
	touch(t, filepath.Join(dir, "c.exe"))
	touch(t, filepath.Join(dir, ".git", "notes.txt"))
	touch(t, filepath.Join(dir, "vendor", "readme.md"))
	d := touch(t, filepath.Join(dir, "sub", "d.pdf"))

	fw := NewFileWalker(config.MustCompileAllowed(config.DocumentTypes))
	files, err := fw.FindFiles(context.Background(), []string{dir})
	require.NoError(t, err)
	assert.Equal(t, []string{a, b, d}, files)
}

func TestFindFiles_ExplicitFilesKeptAndDeduplicated(t *testing.T) {
	dir := t.TempDir()
	a := touch(t, filepath.Join(dir, "a.txt"))
	exe := touch(t, filepath.Join(t.TempDir(), "tool.exe"))

	fw := NewFileWalker(config.MustCompileAllowed([]string{"txt"}))
	files, err := fw.FindFiles(context.Background(), []string{exe, dir, a})
	require.NoError(t, err)
	assert.Equal(t, []string{exe, a}, files)
}

func TestFindFiles_Errors(t *testing.T) {
	fw := NewFileWalker(config.MustCompileAllowed(config.DocumentTypes))

	_, err := fw.FindFiles(context.Background(), []string{filepath.Join(t.TempDir(), "missing")})
	assert.ErrorIs(t, err, os.ErrNotExist)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = fw.FindFiles(ctx, []string{t.TempDir()})
	assert.ErrorIs(t, err, context.Canceled)
}
