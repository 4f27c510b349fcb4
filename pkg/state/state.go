package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnsureCacheDirs ensures the canonical cache folder layout exists under
// the provided cache dir. It rejects symlinks and permissive modes, and
// verifies the process can write into each directory.
func EnsureCacheDirs(cacheDir string) error {
	storePath := filepath.Join(cacheDir, "store")
	statePath := filepath.Join(cacheDir, "state")
	stagingPath := filepath.Join(statePath, "staging")
	tmpPath := filepath.Join(statePath, "tmp")

	paths := []string{storePath, stagingPath, tmpPath}

	for _, p := range paths {
		if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
			return fmt.Errorf("cannot create parent for %s: %w", p, err)
		}

		// if path exists, reject symlinks and non-directories
		if fi, err := os.Lstat(p); err == nil {
			if fi.Mode()&os.ModeSymlink != 0 {
				return fmt.Errorf("path is a symlink: %s", p)
			}
			if !fi.IsDir() {
				return fmt.Errorf("path exists and is not a directory: %s", p)
			}
			if fi.Mode().Perm()&0o022 != 0 {
				return fmt.Errorf("path has permissive mode (group/other write): %s", p)
			}
		}

		if err := os.MkdirAll(p, 0o700); err != nil {
			return fmt.Errorf("cannot create path %s: %w", p, err)
		}

		// writability check: create and remove a temp file
		tmp, err := os.CreateTemp(p, ".validate-*")
		if err != nil {
			return fmt.Errorf("path not writable: %s: %w", p, err)
		}
		tmp.Close()
		_ = os.Remove(tmp.Name())
	}

	return nil
}

// LoadOrCreateNodeID returns the persisted device node id under cacheDir,
// writing the provided fallback on first run. The id participates in
// logical clock tie-breaks so it must stay stable across restarts.
func LoadOrCreateNodeID(cacheDir, fallback string) (string, error) {
	path := filepath.Join(cacheDir, "state", "node_id")
	if b, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(b)); id != "" {
			return id, nil
		}
	}
	if err := os.WriteFile(path, []byte(fallback+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("persist node id: %w", err)
	}
	return fallback, nil
}
