package config

import (
	_ "embed"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

//go:embed default_config.toml
var defaultConfig string

// WriteDefault writes the commented example config to path.
func WriteDefault(path string) error {
	return writeFile(path, func(w io.Writer) error {
		_, err := io.WriteString(w, defaultConfig)
		return err
	})
}

// Write encodes c as TOML to path. Comments and env references are not
// preserved.
func (c *Config) Write(path string) error {
	return writeFile(path, func(w io.Writer) error {
		return toml.NewEncoder(w).Encode(c)
	})
}

// writeFile creates path with owner-only permissions since configs hold
// API keys.
func writeFile(path string, encode func(io.Writer) error) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return encode(f)
}
