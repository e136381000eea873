package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vmunix/swiper/internal/memory"
)

// ErrGateway is returned when the chat bridge answers with an error status.
var ErrGateway = errors.New("gateway error")

// Message is one chat message exchanged with the bridge.
type Message struct {
	ID      string `json:"id"` // chat user id
	Message string `json:"message"`
}

// GatewayConfig configures the chat bridge connection.
type GatewayConfig struct {
	URL         string
	PollTimeout time.Duration // how long the bridge may hold a poll open
	RetryDelay  time.Duration // wait after a failed poll
}

// Gateway long-polls a chat bridge for inbound messages and posts replies
// back to it. Every chat user becomes its own session.
type Gateway struct {
	cfg        GatewayConfig
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

// NewGateway creates a gateway client. A nil httpClient gets one whose
// timeout leaves room for the long poll.
func NewGateway(cfg GatewayConfig, httpClient *http.Client, log *slog.Logger) *Gateway {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.PollTimeout + 10*time.Second}
	}
	return &Gateway{
		cfg:        cfg,
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		httpClient: httpClient,
		log:        log.With("component", "gateway"),
	}
}

// Run polls for messages until ctx is cancelled. Poll failures are logged
// and retried.
func (g *Gateway) Run(ctx context.Context, to Acceptor) error {
	g.log.Info("polling chat bridge", "url", g.baseURL)
	for {
		msgs, err := g.Poll(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			g.log.Warn("poll failed", "error", err, "retry_in", g.cfg.RetryDelay)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(g.cfg.RetryDelay):
			}
			continue
		}
		for _, m := range msgs {
			if err := to.Accept(ctx, ChatRef(m.ID), m.Message); err != nil {
				g.log.Warn("message not accepted", "session", m.ID, "error", err)
			}
		}
	}
}

// ChatRef returns the session for a chat user.
func ChatRef(userID string) memory.SessionRef {
	return memory.SessionRef{Type: TypeChat, ID: userID}
}

// Poll waits for pending messages. An empty result means the poll timed
// out with nothing new.
func (g *Gateway) Poll(ctx context.Context) ([]Message, error) {
	u, err := url.Parse(g.baseURL + "/messages")
	if err != nil {
		return nil, fmt.Errorf("invalid gateway URL: %w", err)
	}
	u.RawQuery = url.Values{"timeout": {strconv.Itoa(int(g.cfg.PollTimeout / time.Second))}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		return nil, nil
	default:
		return nil, statusError(resp)
	}

	var msgs []Message
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return msgs, nil
}

// Send posts a reply for the chat user sessionID.
func (g *Gateway) Send(ctx context.Context, sessionID, message string) error {
	body, err := json.Marshal(Message{ID: sessionID, Message: message})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/replies", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode/100 != 2 {
		return statusError(resp)
	}
	return nil
}

func statusError(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%w: status %d: %s", ErrGateway, resp.StatusCode, strings.TrimSpace(string(msg)))
}
