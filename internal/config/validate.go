package config

import (
	"fmt"
	"regexp"
	"slices"
	"time"
)

var validLogLevels = []string{"debug", "info", "warn", "error", ""}

// Validate checks the configuration for errors.
// Returns a slice of error messages (empty if valid).
func (c *Config) Validate() []string {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if !slices.Contains(validLogLevels, c.Swiper.LogLevel) {
		add("swiper.log_level: must be one of debug, info, warn, error; got %q", c.Swiper.LogLevel)
	}
	if c.Swiper.MaxDownloads < 0 {
		add("swiper.max_downloads: must be at least 1, got %d", c.Swiper.MaxDownloads)
	}
	if c.Swiper.SearchRetries < 0 {
		add("swiper.search_retries: must not be negative, got %d", c.Swiper.SearchRetries)
	}

	if c.Monitor.DailyHour < 0 || c.Monitor.DailyHour > 23 {
		add("monitor.daily_hour: must be between 0 and 23, got %d", c.Monitor.DailyHour)
	}
	for i, m := range c.Monitor.Backoff {
		if m <= 0 {
			add("monitor.backoff[%d]: must be a positive number of minutes, got %d", i, m)
		}
	}

	if len(c.Quality.TV) == 0 {
		add("quality.tv: at least one quality keyword required")
	}
	if len(c.Quality.Movie) == 0 {
		add("quality.movie: at least one quality keyword required")
	}
	for _, p := range c.Quality.Reject {
		if _, err := regexp.Compile("(?i)" + p); err != nil {
			add("quality.reject: invalid pattern %q: %v", p, err)
		}
	}
	if c.Quality.MinSeeders < 0 {
		add("quality.min_seeders: must not be negative, got %d", c.Quality.MinSeeders)
	}
	for name, r := range map[string]SizeRange{"tv": c.Quality.Size.TV, "movie": c.Quality.Size.Movie} {
		if r.Max != 0 && r.Min > r.Max {
			add("quality.size.%s: min %d is larger than max %d", name, r.Min, r.Max)
		}
	}

	if len(c.Indexers) == 0 {
		add("indexers: at least one indexer must be configured")
	}
	for name, indexer := range c.Indexers {
		if indexer == nil || indexer.URL == "" {
			add("indexers.%s.url: required", name)
		}
		if indexer == nil || indexer.APIKey == "" {
			add("indexers.%s.api_key: required", name)
		}
	}

	if c.Transmission.URL == "" {
		add("transmission.url: required")
	}
	if c.Library.Root == "" {
		add("library.root: required")
	}

	if c.Metadata.OMDbAPIKey == "" {
		add("metadata.omdb_api_key: required")
	}
	if c.Metadata.TVDBAPIKey == "" {
		add("metadata.tvdb_api_key: required")
	}
	if c.Metadata.Timezone != "" {
		if _, err := time.LoadLocation(c.Metadata.Timezone); err != nil {
			add("metadata.timezone: unknown time zone %q", c.Metadata.Timezone)
		}
	}

	if c.Gateway.Enabled && c.Gateway.URL == "" {
		add("gateway.url: required when the gateway is enabled")
	}

	slices.Sort(errs)
	return errs
}
