// Package platform is a minimal client for the social platform (Reddit) the
// bot lives on: the subreddit comment feed, parent lookups, replies, and the
// bot's own comment history.
//
// Authentication uses the OAuth2 password grant for script apps. Every
// Client owns its own token source and HTTP client, so separate activities
// must create separate Clients.
package platform

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
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	furbototel "github.com/vaisest/fakefurbot/internal/otel"
)

var tracer = furbototel.Tracer("github.com/vaisest/fakefurbot/internal/platform")

// Defaults for the hosted platform.
const (
	DefaultAuthURL   = "https://www.reddit.com"
	DefaultBaseURL   = "https://oauth.reddit.com"
	TimeoutCall      = 30 * time.Second
	MaxListingLimit  = 100
	maxErrorBodySize = 4 << 10
)

// DefaultRate keeps well under the platform's 100 requests per minute.
var DefaultRate = rate.Every(time.Second)

var (
	// ErrNotFound is returned when a thing does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAuthorUnavailable is returned when a thing's author was deleted.
	ErrAuthorUnavailable = errors.New("author unavailable")
)

// APIError is a failed platform call: either a non-2xx status or a 2xx
// answer whose JSON envelope carried errors.
type APIError struct {
	StatusCode int
	Status     string
	Endpoint   string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("platform %s: %s: %s", e.Endpoint, e.Status, e.Message)
	}
	return fmt.Sprintf("platform %s: %s", e.Endpoint, e.Status)
}

// ServerError reports whether the platform answered with a 5xx status.
func (e *APIError) ServerError() bool {
	return e.StatusCode >= 500
}

// IsServerError reports whether err wraps a 5xx APIError.
func IsServerError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.ServerError()
}

// Credentials for a script-type OAuth app.
type Credentials struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
}

// Config configures a Client.
type Config struct {
	AuthURL     string
	BaseURL     string
	UserAgent   string
	Credentials Credentials
	// Transport is the base round tripper. nil uses http.DefaultTransport.
	Transport http.RoundTripper
	// RateLimit paces requests. Zero uses DefaultRate.
	RateLimit rate.Limit
}

// Client is an authenticated platform session.
type Client struct {
	baseURL   string
	userAgent string
	username  string
	http      *http.Client
	limiter   *rate.Limiter
}

// NewClient creates a session. No request is made until the first call,
// which fetches the access token.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	creds := cfg.Credentials
	if creds.ClientID == "" || creds.ClientSecret == "" || creds.Username == "" || creds.Password == "" {
		return nil, fmt.Errorf("platform credentials incomplete (client id, client secret, username and password are required)")
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("platform user agent is required")
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultRate
	}
	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	transport := &http.Client{
		Transport: &userAgentTransport{base: base, userAgent: cfg.UserAgent},
		Timeout:   TimeoutCall,
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, transport)

	oc := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  strings.TrimRight(cfg.AuthURL, "/") + "/api/v1/access_token",
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
	src := oauth2.ReuseTokenSource(nil, &passwordTokenSource{
		ctx:      ctx,
		cfg:      oc,
		username: creds.Username,
		password: creds.Password,
	})

	hc := oauth2.NewClient(ctx, src)
	hc.Timeout = TimeoutCall

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		username:  creds.Username,
		http:      hc,
		limiter:   rate.NewLimiter(cfg.RateLimit, 2),
	}, nil
}

// Username is the account the session is logged in as.
func (c *Client) Username() string {
	return c.username
}

// passwordTokenSource fetches a fresh token with the password grant. The
// grant issues no refresh token, so ReuseTokenSource calls it again on
// expiry.
type passwordTokenSource struct {
	ctx      context.Context
	cfg      *oauth2.Config
	username string
	password string
}

func (s *passwordTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.cfg.PasswordCredentialsToken(s.ctx, s.username, s.password)
	if err != nil {
		return nil, fmt.Errorf("platform token: %w", err)
	}
	return tok, nil
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(req)
}

// Comment is a platform comment.
type Comment struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Author     string  `json:"author"`
	Body       string  `json:"body"`
	ParentID   string  `json:"parent_id"`
	LinkID     string  `json:"link_id"`
	Subreddit  string  `json:"subreddit"`
	Score      int     `json:"score"`
	Permalink  string  `json:"permalink"`
	CreatedUTC float64 `json:"created_utc"`
}

// FullName returns the comment's "t1_" prefixed identifier.
func (c Comment) FullName() string {
	if c.Name != "" {
		return c.Name
	}
	return "t1_" + c.ID
}

// IsRoot reports whether the comment replies directly to the submission.
func (c Comment) IsRoot() bool {
	return !strings.HasPrefix(c.ParentID, "t1_")
}

type listing struct {
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Kind string  `json:"kind"`
			Data Comment `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (l *listing) comments() []Comment {
	out := make([]Comment, 0, len(l.Data.Children))
	for _, child := range l.Data.Children {
		if child.Kind == "t1" {
			out = append(out, child.Data)
		}
	}
	return out
}

// NewComments returns up to limit of the newest comments in subreddit,
// newest first.
func (c *Client) NewComments(ctx context.Context, subreddit string, limit int) ([]Comment, error) {
	ctx, span := tracer.Start(ctx, "platform.new_comments",
		trace.WithAttributes(attribute.String("platform.subreddit", subreddit)))
	defer span.End()

	params := url.Values{}
	params.Set("limit", strconv.Itoa(clampLimit(limit)))
	params.Set("raw_json", "1")

	var l listing
	if err := c.do(ctx, http.MethodGet, "/r/"+url.PathEscape(subreddit)+"/comments", params, &l); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return l.comments(), nil
}

// Info looks up comments by full name.
func (c *Client) Info(ctx context.Context, fullNames ...string) ([]Comment, error) {
	ctx, span := tracer.Start(ctx, "platform.info",
		trace.WithAttributes(attribute.Int("platform.ids", len(fullNames))))
	defer span.End()

	params := url.Values{}
	params.Set("id", strings.Join(fullNames, ","))
	params.Set("raw_json", "1")

	var l listing
	if err := c.do(ctx, http.MethodGet, "/api/info", params, &l); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return l.comments(), nil
}

// Author returns the author of the comment with the given full name.
func (c *Client) Author(ctx context.Context, fullName string) (string, error) {
	found, err := c.Info(ctx, fullName)
	if err != nil {
		return "", err
	}
	if len(found) == 0 {
		return "", fmt.Errorf("comment %s: %w", fullName, ErrNotFound)
	}
	author := found[0].Author
	if author == "" || author == "[deleted]" {
		return "", fmt.Errorf("comment %s: %w", fullName, ErrAuthorUnavailable)
	}
	return author, nil
}

type commentResponse struct {
	JSON struct {
		Errors [][]interface{} `json:"errors"`
		Data   struct {
			Things []struct {
				Kind string  `json:"kind"`
				Data Comment `json:"data"`
			} `json:"things"`
		} `json:"data"`
	} `json:"json"`
}

// Reply posts text as a reply to the thing with the given full name.
func (c *Client) Reply(ctx context.Context, parentFullName, text string) (Comment, error) {
	ctx, span := tracer.Start(ctx, "platform.reply",
		trace.WithAttributes(attribute.String("platform.parent", parentFullName)))
	defer span.End()

	form := url.Values{}
	form.Set("api_type", "json")
	form.Set("thing_id", parentFullName)
	form.Set("text", text)

	var resp commentResponse
	if err := c.do(ctx, http.MethodPost, "/api/comment", form, &resp); err != nil {
		span.RecordError(err)
		return Comment{}, err
	}
	if len(resp.JSON.Errors) > 0 {
		err := &APIError{
			StatusCode: http.StatusOK,
			Status:     "200 OK",
			Endpoint:   "/api/comment",
			Message:    fmt.Sprint(resp.JSON.Errors),
		}
		span.RecordError(err)
		return Comment{}, err
	}
	for _, thing := range resp.JSON.Data.Things {
		if thing.Kind == "t1" {
			return thing.Data, nil
		}
	}
	return Comment{}, nil
}

// UserComments returns up to limit of the user's newest comments, reading
// as many listing pages as needed.
func (c *Client) UserComments(ctx context.Context, username string, limit int) ([]Comment, error) {
	ctx, span := tracer.Start(ctx, "platform.user_comments",
		trace.WithAttributes(
			attribute.String("platform.user", username),
			attribute.Int("platform.limit", limit),
		))
	defer span.End()

	var out []Comment
	after := ""
	for len(out) < limit {
		params := url.Values{}
		params.Set("limit", strconv.Itoa(clampLimit(limit-len(out))))
		params.Set("sort", "new")
		params.Set("raw_json", "1")
		if after != "" {
			params.Set("after", after)
		}

		var l listing
		if err := c.do(ctx, http.MethodGet, "/user/"+url.PathEscape(username)+"/comments", params, &l); err != nil {
			span.RecordError(err)
			return nil, err
		}
		out = append(out, l.comments()...)
		if l.Data.After == "" || len(l.Data.Children) == 0 {
			break
		}
		after = l.Data.After
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete removes one of the account's own things.
func (c *Client) Delete(ctx context.Context, fullName string) error {
	ctx, span := tracer.Start(ctx, "platform.delete",
		trace.WithAttributes(attribute.String("platform.id", fullName)))
	defer span.End()

	form := url.Values{}
	form.Set("id", fullName)
	if err := c.do(ctx, http.MethodPost, "/api/del", form, nil); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Me returns the name of the authenticated account.
func (c *Client) Me(ctx context.Context) (string, error) {
	var me struct {
		Name string `json:"name"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/me", nil, &me); err != nil {
		return "", err
	}
	return me.Name, nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for platform rate limit: %w", err)
	}

	endpoint := c.baseURL + path
	var body io.Reader
	if method == http.MethodGet {
		if len(params) > 0 {
			endpoint += "?" + params.Encode()
		}
	} else {
		body = strings.NewReader(params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("creating platform request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("platform %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return &APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Endpoint:   path,
			Message:    string(bytes.TrimSpace(msg)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding platform %s response: %w", path, err)
	}
	return nil
}

func clampLimit(n int) int {
	if n <= 0 || n > MaxListingLimit {
		return MaxListingLimit
	}
	return n
}
