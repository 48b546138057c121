// Package loader reads documents from a data directory for ingestion.
package loader

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/config"
	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/pipeline"
)

// textExtensions are the file types loaded from the data directory.
var textExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// Load reads every matching text file under cfg.DataDir. Document ids are
// derived from the path relative to the data dir, so re-running ingestion
// over the same tree supersedes rather than duplicates.
func Load(cfg config.IngestConfig) ([]pipeline.Document, error) {
	root := cfg.DataDir
	if root == "" {
		return nil, fmt.Errorf("no data directory configured")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	var docs []pipeline.Document
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !shouldLoad(rel, cfg) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", rel, err)
		}
		docs = append(docs, pipeline.Document{
			ID:         DocumentID(rel),
			Title:      titleFromPath(rel),
			Text:       string(data),
			SourcePath: rel,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// FromReader builds a document from a stream, for stdin ingestion. With no
// name to derive an id from, it gets a random one.
func FromReader(r io.Reader, title string) (pipeline.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return pipeline.Document{}, fmt.Errorf("failed to read input: %w", err)
	}
	if title == "" {
		title = "stdin"
	}
	return pipeline.Document{
		ID:    uuid.NewString(),
		Title: title,
		Text:  string(data),
	}, nil
}

// DocumentID derives a stable id from a relative source path.
func DocumentID(relPath string) string {
	id := filepath.ToSlash(relPath)
	id = strings.TrimSuffix(id, filepath.Ext(id))
	return strings.ReplaceAll(id, "/", ":")
}

func titleFromPath(relPath string) string {
	base := filepath.Base(relPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ReplaceAll(base, "_", " ")
}

func shouldLoad(relPath string, cfg config.IngestConfig) bool {
	if !textExtensions[strings.ToLower(filepath.Ext(relPath))] {
		return false
	}
	for _, pattern := range cfg.Exclude {
		if matched, _ := doublestar.Match(pattern, relPath); matched {
			return false
		}
		if matched, _ := doublestar.Match(pattern, filepath.Base(relPath)); matched {
			return false
		}
	}
	if len(cfg.Include) == 0 {
		return true
	}
	for _, pattern := range cfg.Include {
		if matched, _ := doublestar.Match(pattern, relPath); matched {
			return true
		}
	}
	return false
}
