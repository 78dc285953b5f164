package store

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/b08x/blueprints-rag/internal/logging"
)

// LoaderOptions tunes directory ingestion.
type LoaderOptions struct {
	Include []string // glob patterns relative to the root; empty means everything
	Exclude []string
	Logger  logging.Logger
}

// Loader walks a directory tree and stores matching files as blueprints.
// Each file becomes one blueprint: the relative path is its name, the file
// body its code, the detected language its tag.
type Loader struct {
	store   *BlueprintStore
	include []string
	exclude []string
	logger  logging.Logger
}

// NewLoader creates a loader over the given store.
func NewLoader(store *BlueprintStore, opts LoaderOptions) *Loader {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Loader{
		store:   store,
		include: opts.Include,
		exclude: opts.Exclude,
		logger:  logger,
	}
}

// LoadDirectory ingests every matching file under root. Per-file failures
// are logged and skipped; the walk itself failing is an error.
func (l *Loader) LoadDirectory(ctx context.Context, root string) ([]*Blueprint, error) {
	var loaded []*Blueprint

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if d.Name() != "." && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !l.matches(rel) {
			return nil
		}

		bp, loadErr := l.loadFile(path, rel)
		if loadErr != nil {
			l.logger.Warn("skipping blueprint file", map[string]interface{}{
				"path":  rel,
				"error": loadErr.Error(),
			})
			return nil
		}
		if saveErr := l.store.Save(bp); saveErr != nil {
			l.logger.Warn("failed to store blueprint", map[string]interface{}{
				"path":  rel,
				"error": saveErr.Error(),
			})
			return nil
		}
		loaded = append(loaded, bp)
		return nil
	})
	if err != nil {
		return loaded, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	l.logger.Info("directory load completed", map[string]interface{}{
		"root":   root,
		"loaded": len(loaded),
	})
	return loaded, nil
}

// matches applies include patterns first, then exclude patterns.
func (l *Loader) matches(rel string) bool {
	if len(l.include) > 0 {
		included := false
		for _, pattern := range l.include {
			if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
				included = true
				break
			}
		}
		if !included {
			return false
		}
	}
	for _, pattern := range l.exclude {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return false
		}
	}
	return true
}

func (l *Loader) loadFile(path, rel string) (*Blueprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	tags := []string{}
	if lang := languageForExt(filepath.Ext(rel)); lang != "" {
		tags = append(tags, lang)
	}

	return &Blueprint{
		ID:          uuid.NewString(),
		Name:        rel,
		Description: firstCommentLine(string(data)),
		Code:        string(data),
		Tags:        tags,
	}, nil
}

// firstCommentLine pulls a leading line comment to use as the description.
func firstCommentLine(code string) string {
	for _, line := range strings.Split(code, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, marker := range []string{"//", "#", "--"} {
			if strings.HasPrefix(line, marker) {
				return strings.TrimSpace(strings.TrimPrefix(line, marker))
			}
		}
		return ""
	}
	return ""
}

func languageForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".go":
		return "go"
	case ".rb":
		return "ruby"
	case ".py":
		return "python"
	case ".js", ".jsx":
		return "javascript"
	case ".ts", ".tsx":
		return "typescript"
	case ".rs":
		return "rust"
	case ".java":
		return "java"
	case ".c", ".h":
		return "c"
	case ".sh":
		return "shell"
	default:
		return ""
	}
}
