package importer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// CopyFile copies a file from src to dst.
// Creates destination directory if it doesn't exist.
// Returns ErrDestinationExists if dst already exists.
func CopyFile(src, dst string) (int64, error) {
	if _, err := os.Stat(dst); err == nil {
		return 0, ErrDestinationExists
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return 0, fmt.Errorf("%w: create directory: %v", ErrCopyFailed, err)
	}

	srcFile, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("%w: open source: %v", ErrCopyFailed, err)
	}
	defer func() { _ = srcFile.Close() }()

	dstFile, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("%w: create destination: %v", ErrCopyFailed, err)
	}
	defer func() { _ = dstFile.Close() }()

	size, err := io.Copy(dstFile, srcFile)
	if err != nil {
		_ = os.Remove(dst)
		return 0, fmt.Errorf("%w: copy content: %v", ErrCopyFailed, err)
	}

	if err := dstFile.Sync(); err != nil {
		return 0, fmt.Errorf("%w: sync: %v", ErrCopyFailed, err)
	}

	return size, nil
}

// MoveFile renames src to dst, falling back to copy and delete when the
// two paths are on different filesystems.
func MoveFile(src, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return ErrDestinationExists
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("%w: create directory: %v", ErrCopyFailed, err)
	}

	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return fmt.Errorf("%w: rename: %v", ErrCopyFailed, err)
	}

	if _, err := CopyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// LargestVideo returns the largest non-sample video among paths.
// Returns ErrNoVideoFile if none qualify.
func LargestVideo(paths []string) (string, int64, error) {
	var largestPath string
	var largestSize int64

	for _, p := range paths {
		if !IsVideoFile(p) || isSample(p) {
			continue
		}
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			continue
		}
		if info.Size() > largestSize || largestPath == "" {
			largestSize = info.Size()
			largestPath = p
		}
	}

	if largestPath == "" {
		return "", 0, ErrNoVideoFile
	}
	return largestPath, largestSize, nil
}
