// Package fsutil provides crash-safe file replacement for ctverify outputs.
package fsutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// AtomicWrite replaces path with data. Readers see either the old or the new
// content, never a partial file.
func AtomicWrite(path string, data []byte, perm os.FileMode) error {
	return AtomicWriteFunc(path, perm, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// AtomicWriteFunc streams fill into a temp file next to path, fsyncs it and
// renames it over path. The temp file is removed when fill fails.
func AtomicWriteFunc(path string, perm os.FileMode, fill func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".ctverify-tmp-*")
	if err != nil {
		return fmt.Errorf("atomic write create tmp: %w", err)
	}
	tmpPath := tmp.Name()

	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if err = fill(tmp); err != nil {
		return fmt.Errorf("atomic write: %w", err)
	}
	if err = tmp.Chmod(perm); err != nil {
		return fmt.Errorf("atomic write chmod: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("atomic write fsync: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("atomic write close: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("atomic write rename: %w", err)
	}
	if err = FsyncDir(dir); err != nil {
		return fmt.Errorf("atomic write fsync dir: %w", err)
	}
	return nil
}

// FsyncDir fsyncs a directory to ensure rename visibility is durable.
func FsyncDir(dirPath string) error {
	d, err := os.Open(dirPath)
	if err != nil {
		return fmt.Errorf("fsync dir open: %w", err)
	}
	defer d.Close()
	return d.Sync()
}
