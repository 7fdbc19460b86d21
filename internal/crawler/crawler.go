// Package crawler discovers the Python source files of a tree, honoring the
// configured exclusion patterns. Discovery is streaming; filtering decisions
// about file contents belong to the caller.
package crawler

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/DNYoussef/connascence-safety-analyzer-sub001/internal/config"
)

// File is one discovered source file.
type File struct {
	Path string
	Size int64
}

// Crawler scans a directory tree for analyzable sources.
type Crawler struct {
	exclusions []string
}

func New(cfg *config.Config) *Crawler {
	return &Crawler{exclusions: cfg.Exclusions}
}

// Scan walks root and streams every matching file through onFile. Entries
// the walk cannot read are reported through onSkip and the scan continues;
// only an unreadable root, a callback error, or context cancellation aborts
// the walk.
func (c *Crawler) Scan(ctx context.Context, root string, onFile func(File) error, onSkip func(path string, err error)) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err != nil {
			if path == root {
				return err
			}
			if onSkip != nil {
				onSkip(path, err)
			}
			return nil
		}

		if d.IsDir() {
			if path != root && c.excludedDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if !strings.HasSuffix(d.Name(), ".py") || c.excludedFile(d.Name()) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			if onSkip != nil {
				onSkip(path, err)
			}
			return nil
		}
		return onFile(File{Path: path, Size: info.Size()})
	})
}

// excludedDir matches directory-style patterns (trailing slash) and bare
// directory names against one path segment.
func (c *Crawler) excludedDir(name string) bool {
	for _, p := range c.exclusions {
		trimmed := strings.TrimSuffix(p, "/")
		if trimmed == "" || trimmed != p && name == trimmed {
			return true
		}
		if !strings.Contains(p, "/") && !strings.Contains(p, ".") && name == p {
			return true
		}
	}
	return false
}

// excludedFile matches prefix and suffix patterns against the base name.
func (c *Crawler) excludedFile(name string) bool {
	for _, p := range c.exclusions {
		if strings.HasSuffix(p, "/") {
			continue
		}
		if strings.HasPrefix(name, p) || strings.HasSuffix(name, p) {
			return true
		}
	}
	return false
}
