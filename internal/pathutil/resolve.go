// Package pathutil resolves user-supplied paths for uploads and downloads.
package pathutil

import (
	"os"
	"path/filepath"

	"github.com/retribution/retctl/internal/config"
)

// Resolve turns path into a clean absolute path. "~" is expanded and
// symlinks are resolved in the part of the path that already exists, so a
// download directory that is about to be created under a linked folder
// still resolves to its real location. An empty path is the working
// directory.
func Resolve(path string) (string, error) {
	if path == "" {
		return os.Getwd()
	}

	abs, err := filepath.Abs(config.ExpandHome(path))
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}

	// Walk up to the deepest existing ancestor and re-attach the rest
	existing := abs
	var missing []string
	for {
		if _, err := os.Stat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return abs, nil
		}
		missing = append([]string{filepath.Base(existing)}, missing...)
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		resolved = existing
	}
	return filepath.Join(append([]string{resolved}, missing...)...), nil
}
