package app

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"textract/config"
)

// skipDirs are never descended into.
var skipDirs = map[string]bool{
	"node_modules": true,
	"__pycache__":  true,
	"vendor":       true,
	"target":       true,
	"build":        true,
	"dist":         true,
	"coverage":     true,
}

// FileWalker expands command line paths into the files to extract.
type FileWalker struct {
	allowed *config.AllowedExtensions
}

// NewFileWalker creates a walker that keeps files whose extension is allowed.
func NewFileWalker(allowed *config.AllowedExtensions) *FileWalker {
	return &FileWalker{allowed: allowed}
}

// shouldSkipDir determines if we should skip a directory
func (fw *FileWalker) shouldSkipDir(name string) bool {
	return skipDirs[name] || (strings.HasPrefix(name, ".") && name != "." && name != "..")
}

// FindFiles returns every file named directly plus the allowed files found
// under each directory, de-duplicated and in walk order. Files named directly
// are kept whatever their extension so the extractor can report them.
func (fw *FileWalker) FindFiles(ctx context.Context, paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", root, err)
		}
		if !info.IsDir() {
			add(root)
			continue
		}

		var found []string
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // Skip files we can't access
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && fw.shouldSkipDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() && fw.allowed.Allows(filepath.Ext(path)) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Strings(found)
		for _, p := range found {
			add(p)
		}
	}
	return files, nil
}
