package tvdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultBaseURL = "https://api4.thetvdb.com/v4"
	maxPages       = 100
)

// Sentinel errors for TVDB API responses.
var (
	ErrNotFound     = errors.New("series not found")
	ErrUnauthorized = errors.New("unauthorized: invalid or expired API key")
	ErrRateLimited  = errors.New("rate limited: too many requests")
)

// Client is a TVDB API v4 client. It logs in lazily and refreshes its
// bearer token once when a request is rejected.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger

	mu    sync.RWMutex
	token string
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
	return func(c *Client) { c.log = log.With("component", "tvdb") }
}

// New creates a new TVDB API v4 client.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) login(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{"apikey": c.apiKey})
	if err != nil {
		return fmt.Errorf("marshal login body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login failed: %s", resp.Status)
	}

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("decode login response: %w", err)
	}
	if lr.Data.Token == "" {
		return errors.New("login response missing token")
	}

	c.mu.Lock()
	c.token = lr.Data.Token
	c.mu.Unlock()
	c.log.Debug("authenticated with TVDB")
	return nil
}

func (c *Client) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// get performs an authenticated GET and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	if c.currentToken() == "" {
		if err := c.login(ctx); err != nil {
			return err
		}
	}

	resp, err := c.send(ctx, endpoint)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		c.log.Debug("token expired, refreshing")
		if err := c.login(ctx); err != nil {
			return err
		}
		if resp, err = c.send(ctx, endpoint); err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.currentToken())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	return resp, nil
}

// Search searches for series by name.
func (c *Client) Search(ctx context.Context, query string) ([]SearchResult, error) {
	var sr searchResponse
	if err := c.get(ctx, "/search?query="+url.QueryEscape(query)+"&type=series", &sr); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(sr.Data))
	for _, item := range sr.Data {
		id, _ := strconv.Atoi(item.TVDBID)
		if id == 0 {
			id, _ = strconv.Atoi(strings.TrimPrefix(item.ObjectID, "series-"))
		}
		year, _ := strconv.Atoi(item.Year)
		results = append(results, SearchResult{
			ID:      id,
			Name:    item.Name,
			Year:    year,
			Status:  item.Status,
			Network: item.Network,
		})
	}
	c.log.Debug("search completed", "query", query, "results", len(results))
	return results, nil
}

// SeriesByIMDbID finds the TVDB series id for an IMDb id like "tt0944947".
func (c *Client) SeriesByIMDbID(ctx context.Context, imdbID string) (int, error) {
	var rr remoteIDResponse
	if err := c.get(ctx, "/search/remoteid/"+url.PathEscape(imdbID), &rr); err != nil {
		return 0, err
	}
	for _, d := range rr.Data {
		if d.Series != nil && d.Series.ID != 0 {
			return d.Series.ID, nil
		}
	}
	return 0, ErrNotFound
}

// GetSeries fetches series metadata, including airs time, by TVDB ID.
func (c *Client) GetSeries(ctx context.Context, id int) (*Series, error) {
	var sr seriesResponse
	if err := c.get(ctx, fmt.Sprintf("/series/%d/extended?short=true", id), &sr); err != nil {
		return nil, err
	}

	var year int
	if len(sr.Data.FirstAired) >= 4 {
		year, _ = strconv.Atoi(sr.Data.FirstAired[:4])
	}
	return &Series{
		ID:       sr.Data.ID,
		Name:     sr.Data.Name,
		Year:     year,
		Status:   sr.Data.Status.Name,
		AirsTime: sr.Data.AirsTime,
		Overview: sr.Data.Overview,
	}, nil
}

// GetEpisodes fetches all aired-order episodes for a series, following
// pagination. Specials (season 0) are skipped.
func (c *Client) GetEpisodes(ctx context.Context, seriesID int) ([]Episode, error) {
	var episodes []Episode

	for page := 0; page < maxPages; page++ {
		var er episodesResponse
		if err := c.get(ctx, fmt.Sprintf("/series/%d/episodes/default?page=%d", seriesID, page), &er); err != nil {
			return nil, err
		}

		for _, ep := range er.Data.Episodes {
			if ep.SeasonNumber == 0 {
				continue
			}
			var aired time.Time
			if ep.Aired != "" {
				aired, _ = time.Parse("2006-01-02", ep.Aired)
			}
			episodes = append(episodes, Episode{
				ID:      ep.ID,
				Season:  ep.SeasonNumber,
				Episode: ep.Number,
				Name:    ep.Name,
				AirDate: aired,
			})
		}

		if er.Links.Next == nil || *er.Links.Next == "" {
			c.log.Debug("fetched episodes", "series_id", seriesID, "count", len(episodes), "pages", page+1)
			return episodes, nil
		}
	}

	c.log.Warn("hit pagination limit", "series_id", seriesID, "pages", maxPages)
	return episodes, nil
}

func checkResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return fmt.Errorf("TVDB API error: %s", resp.Status)
	}
}
