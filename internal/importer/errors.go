package importer

import "errors"

var (
	// ErrNoVideoFile indicates no video file was found in the download.
	ErrNoVideoFile = errors.New("no video file found in download")

	// ErrCopyFailed indicates the file copy operation failed.
	ErrCopyFailed = errors.New("failed to copy file")

	// ErrDestinationExists indicates the destination file already exists.
	ErrDestinationExists = errors.New("destination file already exists")

	// ErrPathTraversal indicates a path traversal attack was detected.
	ErrPathTraversal = errors.New("path traversal detected")

	// ErrUnsupported is returned for content that is not a single video.
	ErrUnsupported = errors.New("unsupported content")
)
