// Package walker enumerates the supported image files under a run root.
package walker

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/trailhead-retreats/mediaingest/internal/models"
)

// ErrRootUnreadable is returned when the run root is missing, is not a
// directory, or cannot be listed.
var ErrRootUnreadable = errors.New("root directory unreadable")

var supported = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// Supported reports whether the extension (with dot, any case) is ingested
func Supported(ext string) bool {
	return supported[strings.ToLower(ext)]
}

// Walk returns every supported image under root in lexical order.
// Unreadable subdirectories are logged and skipped; an empty tree is not an error.
func Walk(root string) ([]models.ImageAsset, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRootUnreadable, root, err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRootUnreadable, root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrRootUnreadable, root)
	}
	if _, err := os.ReadDir(absRoot); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRootUnreadable, root, err)
	}

	var assets []models.ImageAsset

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == absRoot {
				return err
			}
			slog.Warn("Skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if path != absRoot && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		ext := filepath.Ext(d.Name())
		if !Supported(ext) {
			slog.Debug("Skipping unsupported file", "path", path)
			return nil
		}

		rel, err := filepath.Rel(absRoot, filepath.Dir(path))
		if err != nil {
			return err
		}
		if rel == "." {
			rel = ""
		}

		assets = append(assets, models.ImageAsset{
			Path:               path,
			RelativeFolderPath: filepath.ToSlash(rel),
			Filename:           d.Name(),
			Extension:          strings.ToLower(ext),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRootUnreadable, root, err)
	}

	return assets, nil
}
