package importer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var videoExtensions = map[string]bool{
	".mkv": true, ".mp4": true, ".avi": true, ".m4v": true,
	".mov": true, ".wmv": true, ".ts": true, ".webm": true,
}

// IsVideoFile reports whether path has a known video extension.
func IsVideoFile(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}

func isSample(path string) bool {
	return strings.Contains(strings.ToLower(filepath.Base(path)), "sample")
}

// FindAllVideos finds all video files in a directory (recursive).
// Skips files with "sample" in the name.
func FindAllVideos(root string) ([]string, error) {
	var videos []string

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !IsVideoFile(path) || isSample(path) {
			return nil
		}
		videos = append(videos, path)
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}

	return videos, nil
}
