package ingest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultMaxFileSize is the largest note read during ingestion (1 MB).
const DefaultMaxFileSize int64 = 1 << 20

// Note is a reference file selected for ingestion.
type Note struct {
	Path    string // absolute path on disk
	RelPath string // slash-separated path relative to the root
	Hash    string // SHA-256 hex digest of the content
	Content string
}

// skipDirs are never descended into.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	".osbuddy":     true,
	".venv":        true,
	".idea":        true,
	".vscode":      true,
}

// Walk returns every text file under root matching one of include and none
// of exclude. Binary, non-UTF-8 and oversized files are skipped.
func Walk(root string, include, exclude []string, maxSize int64) ([]Note, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("ingest: resolve root: %w", err)
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	var notes []Note
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Skip entries we cannot read instead of aborting.
			return nil
		}
		if d.IsDir() {
			if path != root && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if !matchesAny(rel, include, true) || matchesAny(rel, exclude, false) {
			return nil
		}

		info, err := d.Info()
		if err != nil || info.Size() > maxSize {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil || bytes.IndexByte(data, 0) >= 0 || !utf8.Valid(data) {
			return nil
		}

		sum := sha256.Sum256(data)
		notes = append(notes, Note{
			Path:    path,
			RelPath: rel,
			Hash:    hex.EncodeToString(sum[:]),
			Content: string(data),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ingest: traversal: %w", err)
	}
	return notes, nil
}

// matchesAny reports whether rel matches one of patterns, either as a full
// path or by base name. An empty pattern list yields empty.
func matchesAny(rel string, patterns []string, empty bool) bool {
	if len(patterns) == 0 {
		return empty
	}
	base := rel[strings.LastIndex(rel, "/")+1:]
	for _, pattern := range patterns {
		pattern = filepath.ToSlash(pattern)
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
		if ok, err := doublestar.Match(pattern, base); err == nil && ok {
			return true
		}
	}
	return false
}
