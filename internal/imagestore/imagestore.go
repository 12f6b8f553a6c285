// Package imagestore resolves opaque image references to readable files.
package imagestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/partlens/partlens/constants"
)

// ErrImageNotFound marks a reference that resolves to nothing. Callers can
// tell it apart from a transient I/O error with errors.Is.
var ErrImageNotFound = errors.New("image not found")

// Resolver turns an image reference into a local file path.
type Resolver interface {
	Resolve(ctx context.Context, imageRef string) (string, error)
}

// FSResolver resolves references against a root directory. Absolute
// references are accepted as-is so the CLI can point at arbitrary files.
type FSResolver struct {
	root string
	log  *slog.Logger
}

func NewFSResolver(root string, logger *slog.Logger) (*FSResolver, error) {
	if strings.TrimSpace(root) == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving image root %q: %w", root, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FSResolver{root: abs, log: logger}, nil
}

func (r *FSResolver) Resolve(_ context.Context, imageRef string) (string, error) {
	if strings.TrimSpace(imageRef) == "" {
		return "", fmt.Errorf("image reference is empty")
	}

	path := imageRef
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.root, imageRef)
	}

	if !constants.IsImagePath(path) {
		return "", fmt.Errorf("%q is not a supported image type", imageRef)
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%q: %w", imageRef, ErrImageNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("stat %q: %w", imageRef, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%q is a directory, not an image", imageRef)
	}
	return path, nil
}

// ListImages walks root and returns every readable image path in lexical
// order. Hidden files and directories are skipped when skipHidden is set.
func ListImages(root string, skipHidden bool) ([]string, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root path is required")
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if skipHidden && isHidden(path) && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if constants.IsImagePath(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %q: %w", root, err)
	}
	return paths, nil
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
