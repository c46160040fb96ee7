// Package catalog is a client for the tagged-media catalog's JSON API: post
// search and the tag implication listing.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	furbototel "github.com/vaisest/fakefurbot/internal/otel"
)

var tracer = furbototel.Tracer("github.com/vaisest/fakefurbot/internal/catalog")

// Timeouts and pacing for catalog calls. The catalog enforces a hard limit
// of two requests per second.
const (
	DefaultBaseURL   = "https://e621.net"
	TimeoutCall      = 30 * time.Second
	DefaultRate      = rate.Limit(2)
	maxErrorBodySize = 4 << 10
)

// ErrMissingCredentials is returned when a search is attempted without
// credentials. Anonymous searches silently null out results carrying
// globally blacklisted tags, so they are refused.
var ErrMissingCredentials = errors.New("catalog credentials not configured")

// HTTPError is a non-2xx answer from the catalog.
type HTTPError struct {
	StatusCode int
	Status     string
	Endpoint   string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("catalog %s: %s", e.Endpoint, e.Status)
}

// Credentials authenticate API calls with HTTP basic auth.
type Credentials struct {
	Username string
	APIKey   string
}

// Post is a single catalog post.
type Post struct {
	ID     int64               `json:"id"`
	Rating string              `json:"rating"`
	Tags   map[string][]string `json:"tags"`
	File   File                `json:"file"`
	Score  Score               `json:"score"`
}

// File describes a post's media file. URL may be empty when the catalog
// withholds it.
type File struct {
	Ext string `json:"ext"`
	URL string `json:"url"`
}

// Score is a post's community score.
type Score struct {
	Up    int `json:"up"`
	Down  int `json:"down"`
	Total int `json:"total"`
}

// Query is a post search. Terms are sent space separated, exactly as given.
type Query struct {
	Terms []string
	Limit int
}

// Client talks to the catalog API.
type Client struct {
	baseURL    string
	userAgent  string
	creds      Credentials
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit replaces the default request pacing.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(limit, burst) }
}

// NewClient creates a catalog client. userAgent must identify the bot and
// its operator; the catalog rejects generic agents.
func NewClient(baseURL, userAgent string, creds Credentials, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		creds:      creds,
		httpClient: &http.Client{Timeout: TimeoutCall},
		limiter:    rate.NewLimiter(DefaultRate, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PostURL returns the human-facing page of a post.
func (c *Client) PostURL(id int64) string {
	return c.baseURL + "/posts/" + strconv.FormatInt(id, 10)
}

type postsResponse struct {
	Posts []Post `json:"posts"`
}

// Posts runs a post search.
func (c *Client) Posts(ctx context.Context, q Query) ([]Post, error) {
	ctx, span := tracer.Start(ctx, "catalog.posts",
		trace.WithAttributes(
			attribute.Int("catalog.terms", len(q.Terms)),
			attribute.Int("catalog.limit", q.Limit),
		))
	defer span.End()

	if c.creds.Username == "" || c.creds.APIKey == "" {
		return nil, ErrMissingCredentials
	}

	params := url.Values{}
	params.Set("tags", strings.Join(q.Terms, " "))
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	var resp postsResponse
	if err := c.getJSON(ctx, "/posts.json", params, true, &resp); err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("catalog.results", len(resp.Posts)))
	return resp.Posts, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, auth bool, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for catalog rate limit: %w", err)
	}

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating catalog request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if auth {
		req.SetBasicAuth(c.creds.Username, c.creds.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("catalog %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Endpoint:   path,
			Body:       string(bytes.TrimSpace(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding catalog %s response: %w", path, err)
	}
	return nil
}
