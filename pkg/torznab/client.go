// Package torznab implements the Torznab torrent indexer API, the torrent
// flavour of the Newznab protocol served by Jackett and Prowlarr.
package torznab

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Standard Newznab category ids.
const (
	CategoryMovies = 2000
	CategoryTV     = 5000
)

// ErrUnauthorized is returned when the indexer rejects the API key.
var ErrUnauthorized = errors.New("torznab: unauthorized")

// APIError is an error document returned by the indexer.
type APIError struct {
	Code        int
	Description string
}

type errorResponse struct {
	XMLName     xml.Name `xml:"error"`
	Code        int      `xml:"code,attr"`
	Description string   `xml:"description,attr"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("torznab error %d: %s", e.Code, e.Description)
}

// Client is a Torznab API client for a single indexer.
type Client struct {
	name       string
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *slog.Logger
}

// Release is a torrent search result.
type Release struct {
	Title       string
	GUID        string
	Link        string // .torrent download URL
	MagnetURI   string
	InfoHash    string
	Size        int64
	Seeders     int
	Leechers    int
	PublishDate time.Time
	Indexer     string
}

// DownloadURI returns the magnet URI when present, the torrent link otherwise.
func (r Release) DownloadURI() string {
	if r.MagnetURI != "" {
		return r.MagnetURI
	}
	return r.Link
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient creates a client for the indexer at baseURL, for example
// "http://localhost:9117/api/v2.0/indexers/all/results/torznab".
func NewClient(name, baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		name:       name,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("component", "torznab", "indexer", name)
	return c
}

// Name returns the indexer name.
func (c *Client) Name() string {
	return c.name
}

type rssResponse struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title     string        `xml:"title"`
	GUID      string        `xml:"guid"`
	Link      string        `xml:"link"`
	Size      int64         `xml:"size"`
	PubDate   string        `xml:"pubDate"`
	Enclosure rssEnclosure  `xml:"enclosure"`
	Attrs     []torznabAttr `xml:"http://torznab.com/schemas/2015/feed attr"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
}

type torznabAttr struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// Search queries the indexer for torrents matching query.
func (c *Client) Search(ctx context.Context, query string, categories []int) ([]Release, error) {
	start := time.Now()

	reqURL, err := url.Parse(c.baseURL + "/api")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	params := url.Values{}
	params.Set("apikey", c.apiKey)
	params.Set("t", "search")
	params.Set("q", query)
	if len(categories) > 0 {
		cats := make([]string, len(categories))
		for i, cat := range categories {
			cats[i] = strconv.Itoa(cat)
		}
		params.Set("cat", strings.Join(cats, ","))
	}
	reqURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var errDoc errorResponse
	if xml.Unmarshal(body, &errDoc) == nil {
		if errDoc.Code == 100 {
			return nil, fmt.Errorf("%w: %s", ErrUnauthorized, errDoc.Description)
		}
		return nil, &APIError{Code: errDoc.Code, Description: errDoc.Description}
	}

	var rss rssResponse
	if err := xml.Unmarshal(body, &rss); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	releases := make([]Release, 0, len(rss.Channel.Items))
	for _, item := range rss.Channel.Items {
		releases = append(releases, c.toRelease(item))
	}

	c.log.Debug("search complete", "query", query, "results", len(releases), "duration_ms", time.Since(start).Milliseconds())
	return releases, nil
}

func (c *Client) toRelease(item rssItem) Release {
	rel := Release{
		Title:   item.Title,
		GUID:    item.GUID,
		Link:    item.Link,
		Size:    item.Size,
		Indexer: c.name,
	}
	if item.Enclosure.Length > 0 {
		rel.Size = item.Enclosure.Length
	}
	if rel.Link == "" {
		rel.Link = item.Enclosure.URL
	}
	if item.PubDate != "" {
		for _, format := range []string{time.RFC1123Z, time.RFC1123} {
			if t, err := time.Parse(format, item.PubDate); err == nil {
				rel.PublishDate = t
				break
			}
		}
	}

	peers := -1
	for _, attr := range item.Attrs {
		switch attr.Name {
		case "seeders":
			rel.Seeders, _ = strconv.Atoi(attr.Value)
		case "peers":
			peers, _ = strconv.Atoi(attr.Value)
		case "leechers":
			rel.Leechers, _ = strconv.Atoi(attr.Value)
		case "magneturl":
			rel.MagnetURI = attr.Value
		case "infohash":
			rel.InfoHash = strings.ToLower(attr.Value)
		case "size":
			if rel.Size == 0 {
				rel.Size, _ = strconv.ParseInt(attr.Value, 10, 64)
			}
		}
	}
	// Torznab reports peers as seeders plus leechers.
	if rel.Leechers == 0 && peers > rel.Seeders {
		rel.Leechers = peers - rel.Seeders
	}
	if rel.MagnetURI == "" && strings.HasPrefix(rel.Link, "magnet:") {
		rel.MagnetURI = rel.Link
	}
	return rel
}
