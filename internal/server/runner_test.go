package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/swiper/internal/config"
)

// syncBuffer is written by the terminal and read by the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// testConfig points every remote service at an address nothing listens
// on. None of them is contacted unless a user asks for content.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[swiper]
user = "tester"

[memory]
path = "` + filepath.Join(dir, "memory.json") + `"

[database]
path = "` + filepath.Join(dir, "db", "swiper.db") + `"

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
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func waitDone(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for runner to stop")
	}
}

func TestRunner_StartsAndStops(t *testing.T) {
	cfg := testConfig(t)
	runner := NewRunner(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runner.Run(ctx)
	}()

	// Give components time to start
	time.Sleep(50 * time.Millisecond)
	cancel()
	waitDone(t, done)

	assert.FileExists(t, cfg.Database.Path)
	assert.FileExists(t, cfg.Memory.Path)
}

func TestNewRunner_DefaultLogger(t *testing.T) {
	runner := NewRunner(testConfig(t), nil)
	require.NotNil(t, runner)
	require.NotNil(t, runner.logger)
	assert.Nil(t, runner.stdin)
}

func TestRunner_TerminalSession(t *testing.T) {
	cfg := testConfig(t)
	in, w := io.Pipe()
	out := &syncBuffer{}
	runner := NewRunner(cfg, nil, WithTerminal(in, out))

	done := make(chan error, 1)
	go func() {
		done <- runner.Run(context.Background())
	}()
	t.Cleanup(func() { _ = w.Close() })

	_, err := io.WriteString(w, "help\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Commands:")
	}, 2*time.Second, 10*time.Millisecond)

	// Quitting the terminal stops everything else.
	_, err = io.WriteString(w, "quit\n")
	require.NoError(t, err)
	waitDone(t, done)

	data, err := os.ReadFile(cfg.Memory.Path)
	require.NoError(t, err)
	var mem struct {
		Sessions []struct {
			Type string `json:"sessionType"`
			ID   string `json:"sessionId"`
		} `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(data, &mem))
	require.Len(t, mem.Sessions, 1)
	assert.Equal(t, "cli", mem.Sessions[0].Type)
	assert.Equal(t, "tester", mem.Sessions[0].ID)
}

func TestRunner_BadQualityPattern(t *testing.T) {
	cfg := testConfig(t)
	cfg.Quality.Reject = []string{"(cam"}

	err := NewRunner(cfg, nil).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quality")
}
