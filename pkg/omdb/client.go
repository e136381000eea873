// Package omdb provides a client for the Open Movie Database API.
package omdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://www.omdbapi.com"

// Title types accepted by Lookup.
const (
	TypeMovie  = "movie"
	TypeSeries = "series"
)

var (
	// ErrNotFound is returned when OMDb has no matching title.
	ErrNotFound = errors.New("title not found")
	// ErrUnauthorized is returned for a missing or invalid API key.
	ErrUnauthorized = errors.New("unauthorized: invalid API key")
)

// Title is an OMDb title record.
type Title struct {
	Title  string `json:"Title"`
	Year   string `json:"Year"` // "2008" or "2008–2013"
	IMDbID string `json:"imdbID"`
	Type   string `json:"Type"` // movie, series, episode
}

// StartYear returns the first year of Year, or 0.
func (t *Title) StartYear() int {
	if len(t.Year) < 4 {
		return 0
	}
	y, err := strconv.Atoi(t.Year[:4])
	if err != nil {
		return 0
	}
	return y
}

// IsSeries reports whether the title is a TV series.
func (t *Title) IsSeries() bool { return t.Type == TypeSeries }

type response struct {
	Title
	Response string `json:"Response"`
	Error    string `json:"Error"`
}

// Client is an OMDb API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(url, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets a logger for debug output.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log.With("component", "omdb") }
}

// NewClient creates a new OMDb client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup finds the best match for title. A zero year and an empty kind
// leave those filters off.
func (c *Client) Lookup(ctx context.Context, title string, year int, kind string) (*Title, error) {
	q := url.Values{}
	q.Set("apikey", c.apiKey)
	q.Set("t", title)
	if year > 0 {
		q.Set("y", strconv.Itoa(year))
	}
	if kind != "" {
		q.Set("type", kind)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, ErrUnauthorized
	default:
		return nil, fmt.Errorf("OMDb API error: %s", resp.Status)
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if r.Response != "True" {
		c.log.Debug("no match", "title", title, "year", year, "error", r.Error)
		if strings.Contains(strings.ToLower(r.Error), "api key") {
			return nil, ErrUnauthorized
		}
		return nil, ErrNotFound
	}

	c.log.Debug("matched", "title", r.Title.Title, "type", r.Type, "imdb", r.IMDbID)
	return &r.Title, nil
}
