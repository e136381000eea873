package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/swiper/internal/content"
	"github.com/vmunix/swiper/internal/memory"
	"github.com/vmunix/swiper/internal/reconcile"
)

// execute runs the root command with args and returns what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath, jsonOutput = "", false
	require.NoError(t, configInitCmd.Flags().Set("force", "false"))
	require.NoError(t, statusCmd.Flags().Set("session", ""))

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func setKeys(t *testing.T) {
	t.Setenv("JACKETT_API_KEY", "jackett")
	t.Setenv("OMDB_API_KEY", "omdb")
	t.Setenv("TVDB_API_KEY", "tvdb")
}

// writeConfig writes a valid config whose state lives under a temp dir.
func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
[swiper]
user = "tester"

[memory]
path = "` + filepath.Join(dir, "memory.json") + `"

[database]
path = "` + filepath.Join(dir, "swiper.db") + `"

[quality]
tv = ["720p"]
movie = ["1080p"]

[indexers.local]
url = "http://127.0.0.1:1/torznab"
api_key = "key"

[transmission]
url = "http://127.0.0.1:1/transmission/rpc"

[library]
root = "` + filepath.Join(dir, "media") + `"

[metadata]
omdb_api_key = "omdb"
tvdb_api_key = "tvdb"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))
	return path, dir
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "swiper dev\n", out)
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swiper", "config.toml")

	out, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)
	assert.FileExists(t, path)

	_, err = execute(t, "config", "init", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = execute(t, "config", "init", "--force", path)
	require.NoError(t, err)
}

func TestConfigTest_Default(t *testing.T) {
	setKeys(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	_, err := execute(t, "config", "init", path)
	require.NoError(t, err)

	out, err := execute(t, "config", "test", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration valid!")
	assert.Contains(t, out, "Indexers:    jackett")
}

func TestConfigTest_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[swiper]
max_downloads = 0

[metadata]
omdb_api_key = "${SWIPER_TEST_UNSET_OMDB_KEY}"
`), 0644))

	out, err := execute(t, "config", "test", path)
	require.Error(t, err)
	assert.Contains(t, out, "Missing environment variables:")
	assert.Contains(t, out, "SWIPER_TEST_UNSET_OMDB_KEY")
}

func TestStatus(t *testing.T) {
	path, dir := writeConfig(t)
	ctx := context.Background()

	store := memory.NewStore(filepath.Join(dir, "memory.json"))
	require.NoError(t, store.Init(ctx))
	require.NoError(t, store.SaveSession(ctx, memory.SessionRef{Type: "cli", ID: "tester"}))
	res := store.Update(ctx, "tester", memory.TargetQueued, reconcile.MethodAdd, content.NewMovie("Fargo", 1996))
	require.NoError(t, res.Err)
	aired := time.Now().Add(-48 * time.Hour)
	show := content.NewCollection("Severance", []*content.Episode{
		content.NewEpisode("Severance", 1, 1, &aired),
	}, "series", 0)
	res = store.Update(ctx, "someone", memory.TargetMonitored, reconcile.MethodAdd, show)
	require.NoError(t, res.Err)

	out, err := execute(t, "status", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Sessions: 1")
	assert.Contains(t, out, "Fargo (1996)")
	assert.Contains(t, out, "Severance")

	out, err = execute(t, "status", "--config", path, "--session", "tester")
	require.NoError(t, err)
	assert.Contains(t, out, "Fargo (1996)")
	assert.NotContains(t, out, "Severance")

	out, err = execute(t, "status", "--config", path, "--json")
	require.NoError(t, err)
	var got statusOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Queued, 1)
	assert.Equal(t, "Fargo", got.Queued[0].Title)
	assert.Len(t, got.Monitored, 1)
}

func TestStatus_NoMemoryFile(t *testing.T) {
	path, _ := writeConfig(t)

	out, err := execute(t, "status", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Sessions: 0")
	assert.Contains(t, out, "(none)")
}

func TestEvents_NoDatabase(t *testing.T) {
	path, _ := writeConfig(t)

	out, err := execute(t, "events", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "No events")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLogLevel("debug").String())
	assert.Equal(t, "WARN", parseLogLevel("WARN").String())
	assert.Equal(t, "INFO", parseLogLevel("").String())
}
