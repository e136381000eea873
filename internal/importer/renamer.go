package importer

import (
	"fmt"
	"regexp"
	"strconv"
)

// Default naming templates, relative to the movies and tv roots.
const (
	DefaultMovieTemplate   = "{name}/{name}.{ext}"
	DefaultEpisodeTemplate = "{title}/Season {season}/{title} S{season:02}E{episode:02}.{ext}"
)

// Renamer applies naming templates to generate file paths.
type Renamer struct {
	movieTemplate   string
	episodeTemplate string
}

// NewRenamer creates a new Renamer with the given templates.
// Empty strings use default templates.
func NewRenamer(movieTemplate, episodeTemplate string) *Renamer {
	if movieTemplate == "" {
		movieTemplate = DefaultMovieTemplate
	}
	if episodeTemplate == "" {
		episodeTemplate = DefaultEpisodeTemplate
	}
	return &Renamer{
		movieTemplate:   movieTemplate,
		episodeTemplate: episodeTemplate,
	}
}

// MoviePath generates the relative path for a movie file. name is the
// movie's display name, e.g. "Heat (1995)".
func (r *Renamer) MoviePath(name, ext string) string {
	return applyTemplate(r.movieTemplate, map[string]any{
		"name": SanitizeFilename(name),
		"ext":  ext,
	})
}

// EpisodePath generates the relative path for an episode file.
func (r *Renamer) EpisodePath(title string, season, episode int, ext string) string {
	return applyTemplate(r.episodeTemplate, map[string]any{
		"title":   SanitizeFilename(title),
		"season":  season,
		"episode": episode,
		"ext":     ext,
	})
}

// formatPattern matches {name} or {name:02} style placeholders.
var formatPattern = regexp.MustCompile(`\{(\w+)(?::(\d+))?\}`)

func applyTemplate(template string, vars map[string]any) string {
	return formatPattern.ReplaceAllStringFunc(template, func(match string) string {
		parts := formatPattern.FindStringSubmatch(match)
		val, ok := vars[parts[1]]
		if !ok {
			return match
		}

		if parts[2] != "" {
			if width, err := strconv.Atoi(parts[2]); err == nil {
				if v, ok := val.(int); ok {
					return fmt.Sprintf("%0*d", width, v)
				}
			}
		}
		return fmt.Sprintf("%v", val)
	})
}
