// Package importer moves finished downloads into the media library.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/vmunix/swiper/internal/content"
	"github.com/vmunix/swiper/internal/transfer"
)

// Exporter files completed videos under root/movies and root/tv.
type Exporter struct {
	root    string
	renamer *Renamer
	log     *slog.Logger
}

// NewExporter creates an exporter writing below root. Empty templates use
// the defaults.
func NewExporter(root, movieTemplate, episodeTemplate string, log *slog.Logger) *Exporter {
	return &Exporter{
		root:    root,
		renamer: NewRenamer(movieTemplate, episodeTemplate),
		log:     log.With("component", "exporter"),
	}
}

// Export moves the video file of a finished download into the library and
// returns its destination. Leftover files of the download are removed.
func (e *Exporter) Export(ctx context.Context, v content.Video, res transfer.Result) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	files := res.Files
	if len(files) == 0 && res.Dir != "" {
		found, err := FindAllVideos(res.Dir)
		if err != nil {
			return "", err
		}
		files = found
	}

	var (
		src string
		rel string
		err error
	)
	switch v := v.(type) {
	case *content.Movie:
		src, _, err = LargestVideo(files)
		if err == nil {
			rel = filepath.Join("movies", e.renamer.MoviePath(v.Desc(), ext(src)))
		}
	case *content.Episode:
		src, err = FileForEpisode(files, v)
		if err == nil {
			rel = filepath.Join("tv", e.renamer.EpisodePath(v.Title(), v.Season(), v.Number(), ext(src)))
		}
	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupported, v)
	}
	if err != nil {
		return "", fmt.Errorf("export %s: %w", v.Desc(), err)
	}

	dst := filepath.Join(e.root, rel)
	if err := ValidatePath(dst, e.root); err != nil {
		return "", err
	}
	if err := MoveFile(src, dst); err != nil {
		return "", fmt.Errorf("export %s: %w", v.Desc(), err)
	}
	e.log.Info("exported", "content", v.Desc(), "path", dst)

	e.cleanup(files, res.Dir)
	return dst, nil
}

// cleanup removes the remaining files of a download and any directories
// left empty below dir.
func (e *Exporter) cleanup(files []string, dir string) {
	dirs := make(map[string]bool)
	for _, f := range files {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			e.log.Debug("cleanup failed", "path", f, "error", err)
		}
		for d := filepath.Dir(f); dir != "" && d != dir && strings.HasPrefix(d, dir); d = filepath.Dir(d) {
			dirs[d] = true
		}
	}
	// deepest first
	sorted := make([]string, 0, len(dirs))
	for d := range dirs {
		sorted = append(sorted, d)
	}
	slices.SortFunc(sorted, func(a, b string) int { return depth(b) - depth(a) })
	for _, d := range sorted {
		_ = os.Remove(d) // fails unless empty
	}
}

func depth(p string) int { return strings.Count(p, string(filepath.Separator)) }

func ext(path string) string {
	return strings.TrimPrefix(filepath.Ext(path), ".")
}
