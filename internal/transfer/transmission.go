package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmunix/swiper/internal/torrent"
)

const sessionHeader = "X-Transmission-Session-Id"

var getFields = []string{
	"id", "name", "hashString", "status", "error", "errorString",
	"percentDone", "rateDownload", "eta", "peersConnected", "downloadDir", "files",
}

// TransmissionConfig configures a TransmissionClient.
type TransmissionConfig struct {
	URL          string // e.g. http://localhost:9091/transmission/rpc
	Username     string
	Password     string
	DownloadDir  string
	PollInterval time.Duration
}

// TransmissionClient talks to the Transmission RPC API.
type TransmissionClient struct {
	cfg  TransmissionConfig
	http *http.Client
	log  *slog.Logger

	mu      sync.Mutex
	session string
	ids     map[string]int // torrent key to Transmission id
}

// NewTransmissionClient creates a client. A nil httpClient uses a 30s timeout default.
func NewTransmissionClient(cfg TransmissionConfig, httpClient *http.Client, log *slog.Logger) *TransmissionClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	return &TransmissionClient{
		cfg:  cfg,
		http: httpClient,
		log:  log.With("component", "transmission"),
		ids:  make(map[string]int),
	}
}

type rpcRequest struct {
	Method    string `json:"method"`
	Arguments any    `json:"arguments,omitempty"`
}

type rpcResponse struct {
	Result    string          `json:"result"`
	Arguments json.RawMessage `json:"arguments"`
}

type addedTorrent struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	HashString string `json:"hashString"`
}

type rpcFile struct {
	Name           string `json:"name"`
	Length         int64  `json:"length"`
	BytesCompleted int64  `json:"bytesCompleted"`
}

type rpcTorrent struct {
	ID             int       `json:"id"`
	Name           string    `json:"name"`
	HashString     string    `json:"hashString"`
	Status         int       `json:"status"`
	Error          int       `json:"error"`
	ErrorString    string    `json:"errorString"`
	PercentDone    float64   `json:"percentDone"`
	RateDownload   int64     `json:"rateDownload"`
	ETA            int64     `json:"eta"`
	PeersConnected int       `json:"peersConnected"`
	DownloadDir    string    `json:"downloadDir"`
	Files          []rpcFile `json:"files"`
}

// Download adds t and polls until Transmission reports it complete. The
// torrent is then removed from Transmission with its data left in place.
func (c *TransmissionClient) Download(ctx context.Context, t *torrent.Torrent) (Result, error) {
	id, err := c.add(ctx, t)
	if err != nil {
		return Result{}, err
	}
	c.log.Info("transfer started", "torrent", t.Name, "id", id)

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()
	for {
		rt, err := c.get(ctx, t)
		switch {
		case errors.Is(err, ErrNotTracked):
			return Result{}, ErrCancelled
		case err != nil:
			c.log.Warn("transfer poll failed", "torrent", t.Name, "error", err)
		case rt.Error != 0:
			return Result{}, fmt.Errorf("%w: %s", ErrTransfer, rt.ErrorString)
		case rt.PercentDone >= 1:
			res := Result{Dir: rt.DownloadDir}
			for _, f := range rt.Files {
				res.Files = append(res.Files, filepath.Join(rt.DownloadDir, f.Name))
			}
			if err := c.remove(ctx, t, false); err != nil {
				c.log.Warn("failed to remove finished torrent", "torrent", t.Name, "error", err)
			}
			c.log.Info("transfer complete", "torrent", t.Name, "files", len(res.Files))
			return res, nil
		}

		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Cancel removes t and deletes any downloaded data.
func (c *TransmissionClient) Cancel(ctx context.Context, t *torrent.Torrent) error {
	return c.remove(ctx, t, true)
}

// Progress reports live statistics for t.
func (c *TransmissionClient) Progress(ctx context.Context, t *torrent.Torrent) (Progress, error) {
	rt, err := c.get(ctx, t)
	if err != nil {
		return Progress{}, err
	}
	eta := time.Duration(-1)
	if rt.ETA >= 0 {
		eta = time.Duration(rt.ETA) * time.Second
	}
	return Progress{
		Peers:   rt.PeersConnected,
		Speed:   rt.RateDownload,
		Percent: rt.PercentDone * 100,
		ETA:     eta,
	}, nil
}

func (c *TransmissionClient) add(ctx context.Context, t *torrent.Torrent) (int, error) {
	args := map[string]any{"filename": t.Magnet}
	if c.cfg.DownloadDir != "" {
		args["download-dir"] = c.cfg.DownloadDir
	}
	var out struct {
		Added     *addedTorrent `json:"torrent-added"`
		Duplicate *addedTorrent `json:"torrent-duplicate"`
	}
	if err := c.call(ctx, "torrent-add", args, &out); err != nil {
		return 0, err
	}
	added := out.Added
	if added == nil {
		added = out.Duplicate
	}
	if added == nil {
		return 0, fmt.Errorf("%w: torrent-add returned no torrent", ErrTransfer)
	}

	c.mu.Lock()
	c.ids[t.Key()] = added.ID
	c.mu.Unlock()
	return added.ID, nil
}

func (c *TransmissionClient) idOf(t *torrent.Torrent) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.ids[t.Key()]
	return id, ok
}

func (c *TransmissionClient) get(ctx context.Context, t *torrent.Torrent) (rpcTorrent, error) {
	id, ok := c.idOf(t)
	if !ok {
		return rpcTorrent{}, ErrNotTracked
	}
	var out struct {
		Torrents []rpcTorrent `json:"torrents"`
	}
	args := map[string]any{"ids": []int{id}, "fields": getFields}
	if err := c.call(ctx, "torrent-get", args, &out); err != nil {
		return rpcTorrent{}, err
	}
	if len(out.Torrents) == 0 {
		c.forget(t)
		return rpcTorrent{}, ErrNotTracked
	}
	return out.Torrents[0], nil
}

func (c *TransmissionClient) remove(ctx context.Context, t *torrent.Torrent, deleteData bool) error {
	id, ok := c.idOf(t)
	if !ok {
		return ErrNotTracked
	}
	args := map[string]any{"ids": []int{id}, "delete-local-data": deleteData}
	if err := c.call(ctx, "torrent-remove", args, nil); err != nil {
		return err
	}
	c.forget(t)
	return nil
}

func (c *TransmissionClient) forget(t *torrent.Torrent) {
	c.mu.Lock()
	delete(c.ids, t.Key())
	c.mu.Unlock()
}

// call performs one RPC, refreshing the CSRF session id once on 409.
func (c *TransmissionClient) call(ctx context.Context, method string, args any, out any) error {
	body, err := json.Marshal(rpcRequest{Method: method, Arguments: args})
	if err != nil {
		return err
	}

	for attempt := 0; attempt < 2; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		c.mu.Lock()
		req.Header.Set(sessionHeader, c.session)
		c.mu.Unlock()
		if c.cfg.Username != "" {
			req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%s: %w", method, err)
		}
		data, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusConflict:
			session := resp.Header.Get(sessionHeader)
			if session == "" {
				return fmt.Errorf("%s: empty session id", method)
			}
			c.mu.Lock()
			c.session = session
			c.mu.Unlock()
			continue
		case http.StatusOK:
		default:
			return fmt.Errorf("%s: unexpected status %s", method, resp.Status)
		}
		if readErr != nil {
			return fmt.Errorf("%s: read response: %w", method, readErr)
		}

		var rr rpcResponse
		if err := json.Unmarshal(data, &rr); err != nil {
			return fmt.Errorf("%s: decode response: %w", method, err)
		}
		if rr.Result != "success" {
			return fmt.Errorf("%w: %s: %s", ErrTransfer, method, rr.Result)
		}
		if out != nil && len(rr.Arguments) > 0 {
			if err := json.Unmarshal(rr.Arguments, out); err != nil {
				return fmt.Errorf("%s: decode arguments: %w", method, err)
			}
		}
		return nil
	}
	return fmt.Errorf("%s: session id rejected after retry", method)
}
