package session

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// atomicWriteFile safely writes data by using a temporary sibling file and an
// atomic rename. On platforms that refuse to rename over an existing file,
// the destination is deleted and the rename retried.
func atomicWriteFile(filename string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Create the temp file in the same directory to guarantee the rename
	// stays on one filesystem.
	tempFile, err := os.CreateTemp(dir, ".tmp-workspace-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	var success bool
	defer func() {
		if !success {
			if err := os.Remove(tempFile.Name()); err != nil {
				slog.Warn("failed to remove temporary file", "path", tempFile.Name(), "error", err)
			}
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil { // Ensure data is on disk.
		tempFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file %q: %w", tempFile.Name(), err)
	}
	if err := os.Chmod(tempFile.Name(), perm); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}

	if err := os.Rename(tempFile.Name(), filename); err != nil {
		// Cross-platform fallback: delete the destination, then retry once.
		if rmErr := os.Remove(filename); rmErr == nil || os.IsNotExist(rmErr) {
			if err = os.Rename(tempFile.Name(), filename); err == nil {
				success = true
				return nil
			}
		}
		return fmt.Errorf("failed to rename temp file over %q: %w", filename, err)
	}
	success = true
	return nil
}
