package importer

import (
	"path/filepath"

	"github.com/vmunix/swiper/internal/content"
	"github.com/vmunix/swiper/pkg/release"
)

// FileForEpisode picks the file among paths whose parsed name matches ep.
// When nothing matches, the largest video is returned so single-file
// releases with unusual names still import.
func FileForEpisode(paths []string, ep *content.Episode) (string, error) {
	for _, p := range paths {
		if !IsVideoFile(p) || isSample(p) {
			continue
		}
		info := release.Parse(filepath.Base(p))
		if info.Season == ep.Season() && info.Episode == ep.Number() {
			return p, nil
		}
	}
	path, _, err := LargestVideo(paths)
	return path, err
}
