// Package config handles TOML configuration loading with environment variable substitution.
package config

import (
	"fmt"
	"os"
	"os/user"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure.
type Config struct {
	Swiper       SwiperConfig       `toml:"swiper"`
	Memory       MemoryConfig       `toml:"memory"`
	Database     DatabaseConfig     `toml:"database"`
	Monitor      MonitorConfig      `toml:"monitor"`
	Quality      QualityConfig      `toml:"quality"`
	Indexers     IndexersConfig     `toml:"indexers"`
	Transmission TransmissionConfig `toml:"transmission"`
	Library      LibraryConfig      `toml:"library"`
	Metadata     MetadataConfig     `toml:"metadata"`
	Gateway      GatewayConfig      `toml:"gateway"`
}

type SwiperConfig struct {
	LogLevel        string `toml:"log_level"`
	User            string `toml:"user"` // session id of the terminal user
	MaxDownloads    int    `toml:"max_downloads"`
	DisplayTorrents int    `toml:"display_torrents"`
	SearchRetries   int    `toml:"search_retries"`
}

type MemoryConfig struct {
	Path        string   `toml:"path"`
	LockTimeout Duration `toml:"lock_timeout"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type MonitorConfig struct {
	DailyHour      int      `toml:"daily_hour"`
	Backoff        []int    `toml:"backoff"` // minutes
	Cooldown       Duration `toml:"cooldown"`
	UpcomingWindow Duration `toml:"upcoming_window"`
}

// BackoffSchedule returns Backoff as durations.
func (m MonitorConfig) BackoffSchedule() []time.Duration {
	out := make([]time.Duration, len(m.Backoff))
	for i, n := range m.Backoff {
		out[i] = time.Duration(n) * time.Minute
	}
	return out
}

type QualityConfig struct {
	TV         []string    `toml:"tv"`
	Movie      []string    `toml:"movie"`
	Reject     []string    `toml:"reject"`
	MinSeeders int         `toml:"min_seeders"`
	Size       SizesConfig `toml:"size"`
}

type SizesConfig struct {
	TV    SizeRange `toml:"tv"`
	Movie SizeRange `toml:"movie"`
}

// SizeRange is in megabytes. Zero is unbounded.
type SizeRange struct {
	Min int64 `toml:"min"`
	Max int64 `toml:"max"`
}

// IndexersConfig maps indexer names to their Torznab endpoints.
type IndexersConfig map[string]*TorznabConfig

type TorznabConfig struct {
	URL    string `toml:"url"`
	APIKey string `toml:"api_key"`
}

type TransmissionConfig struct {
	URL          string   `toml:"url"`
	Username     string   `toml:"username"`
	Password     string   `toml:"password"`
	DownloadDir  string   `toml:"download_dir"`
	PollInterval Duration `toml:"poll_interval"`
}

type LibraryConfig struct {
	Root          string `toml:"root"`
	MovieNaming   string `toml:"movie_naming"`
	EpisodeNaming string `toml:"episode_naming"`
}

type MetadataConfig struct {
	OMDbAPIKey string `toml:"omdb_api_key"`
	TVDBAPIKey string `toml:"tvdb_api_key"`
	Timezone   string `toml:"timezone"` // zone episode air times are given in
}

// Location returns the configured time zone, or Local.
func (m MetadataConfig) Location() *time.Location {
	if m.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(m.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

type GatewayConfig struct {
	Enabled     bool     `toml:"enabled"`
	URL         string   `toml:"url"`
	PollTimeout Duration `toml:"poll_timeout"`
}

// Duration is a time.Duration written as a string such as "5s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Load reads, parses and validates the configuration file.
func Load(path string) (*Config, error) {
	return load(path, true)
}

// LoadWithoutValidation reads and parses the configuration file, substituting
// environment variables and applying defaults, but skips validation.
func LoadWithoutValidation(path string) (*Config, error) {
	return load(path, false)
}

func load(path string, validate bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	content, missing := substituteEnvVars(string(data))
	if len(missing) > 0 {
		return nil, &ConfigError{Path: path, Missing: missing}
	}

	var cfg Config
	md, err := toml.Decode(content, &cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults(md)

	if validate {
		if errs := cfg.Validate(); len(errs) > 0 {
			return nil, &ConfigError{Path: path, Errors: errs}
		}
	}
	return &cfg, nil
}

func (c *Config) applyDefaults(md toml.MetaData) {
	if c.Swiper.LogLevel == "" {
		c.Swiper.LogLevel = "info"
	}
	if c.Swiper.User == "" {
		c.Swiper.User = defaultUser()
	}
	if c.Swiper.MaxDownloads == 0 {
		c.Swiper.MaxDownloads = 3
	}
	if c.Swiper.DisplayTorrents == 0 {
		c.Swiper.DisplayTorrents = 4
	}
	if !md.IsDefined("swiper", "search_retries") {
		c.Swiper.SearchRetries = 3
	}
	if c.Memory.Path == "" {
		c.Memory.Path = "./data/memory.json"
	}
	if c.Memory.LockTimeout.Duration == 0 {
		c.Memory.LockTimeout.Duration = 5 * time.Second
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/swiper.db"
	}
	// Midnight is a valid hour, so only an absent key gets the default.
	if !md.IsDefined("monitor", "daily_hour") {
		c.Monitor.DailyHour = 3
	}
	if len(c.Monitor.Backoff) == 0 {
		c.Monitor.Backoff = []int{45, 15, 15, 15, 30, 30, 60, 60, 120, 240}
	}
	if c.Monitor.Cooldown.Duration == 0 {
		c.Monitor.Cooldown.Duration = time.Minute
	}
	if c.Monitor.UpcomingWindow.Duration == 0 {
		c.Monitor.UpcomingWindow.Duration = 24 * time.Hour
	}
	if !md.IsDefined("quality", "min_seeders") {
		c.Quality.MinSeeders = 10
	}
	if c.Quality.Size.TV == (SizeRange{}) {
		c.Quality.Size.TV = SizeRange{Min: 300, Max: 2000}
	}
	if c.Quality.Size.Movie == (SizeRange{}) {
		c.Quality.Size.Movie = SizeRange{Min: 600, Max: 4000}
	}
	if c.Transmission.PollInterval.Duration == 0 {
		c.Transmission.PollInterval.Duration = 5 * time.Second
	}
	if c.Gateway.PollTimeout.Duration == 0 {
		c.Gateway.PollTimeout.Duration = 30 * time.Second
	}
}

func defaultUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "local"
}
