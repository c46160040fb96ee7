package catalog

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/vaisest/fakefurbot/internal/tags"
	"github.com/vaisest/fakefurbot/internal/testutil"
)

const testAgent = "furbot-test/1.0 (by tester)"

func newTestClient(url string, creds Credentials) *Client {
	return NewClient(url, testAgent, creds, WithRateLimit(rate.Inf, 1))
}

func TestPosts_SendsTermsAuthAndAgent(t *testing.T) {
	srv := testutil.NewCatalogServer(func(terms []string) []testutil.CatalogPost {
		return []testutil.CatalogPost{{
			ID:     42,
			Rating: "s",
			Tags:   map[string][]string{"species": {"wolf"}},
			File:   testutil.CatalogFile{Ext: "png", URL: "https://static.example/42.png"},
			Score:  testutil.CatalogScore{Up: 30, Down: -2, Total: 28},
		}}
	})
	defer srv.Close()

	c := newTestClient(srv.URL, Credentials{Username: "user", APIKey: "key"})
	posts, err := c.Posts(context.Background(), Query{Terms: []string{"order:random", "wolf", "-gore"}, Limit: 1})
	require.NoError(t, err)
	require.Len(t, posts, 1)

	assert.Equal(t, int64(42), posts[0].ID)
	assert.Equal(t, []string{"wolf"}, posts[0].Tags["species"])
	assert.Equal(t, "png", posts[0].File.Ext)
	assert.Equal(t, 28, posts[0].Score.Total)

	reqs := srv.Searches()
	require.Len(t, reqs, 1)
	assert.Equal(t, []string{"order:random", "wolf", "-gore"}, reqs[0].Terms)
	assert.Equal(t, "1", reqs[0].Query.Get("limit"))
	assert.Equal(t, "user", reqs[0].Username)
	assert.Equal(t, "key", reqs[0].Password)
	assert.Equal(t, testAgent, reqs[0].UserAgent)
}

func TestPosts_EmptyResult(t *testing.T) {
	srv := testutil.NewCatalogServer(nil)
	defer srv.Close()

	c := newTestClient(srv.URL, Credentials{Username: "user", APIKey: "key"})
	posts, err := c.Posts(context.Background(), Query{Terms: []string{"order:random"}})
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestPosts_MissingCredentials(t *testing.T) {
	srv := testutil.NewCatalogServer(nil)
	defer srv.Close()

	c := newTestClient(srv.URL, Credentials{Username: "user"})
	_, err := c.Posts(context.Background(), Query{})
	assert.ErrorIs(t, err, ErrMissingCredentials)
	assert.Empty(t, srv.Requests())
}

func TestPosts_HTTPError(t *testing.T) {
	srv := testutil.NewCatalogServer(nil)
	defer srv.Close()
	srv.FailWith(http.StatusServiceUnavailable)

	c := newTestClient(srv.URL, Credentials{Username: "user", APIKey: "key"})
	_, err := c.Posts(context.Background(), Query{Terms: []string{"wolf"}})
	require.Error(t, err)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	assert.Equal(t, "/posts.json", httpErr.Endpoint)
	assert.Contains(t, httpErr.Body, "fake failure")
}

func TestPosts_CanceledContext(t *testing.T) {
	srv := testutil.NewCatalogServer(nil)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(srv.URL, testAgent, Credentials{Username: "user", APIKey: "key"})
	_, err := c.Posts(ctx, Query{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPostURL(t *testing.T) {
	c := NewClient("https://catalog.example/", testAgent, Credentials{})
	assert.Equal(t, "https://catalog.example/posts/123", c.PostURL(123))
	assert.Equal(t, DefaultBaseURL+"/posts/7", NewClient("", testAgent, Credentials{}).PostURL(7))
}

func implicationPage(n int, prefix string) []testutil.CatalogImplication {
	page := make([]testutil.CatalogImplication, n)
	for i := range page {
		page[i] = testutil.CatalogImplication{
			ID:             int64(i),
			AntecedentName: prefix + string(rune('a'+i%26)),
			ConsequentName: "general",
			Status:         "active",
		}
	}
	return page
}

func TestAllImplications_StopsAtShortPage(t *testing.T) {
	srv := testutil.NewCatalogServer(nil)
	defer srv.Close()
	srv.SetImplications(implicationPage(ImplicationPageSize, "x_"), implicationPage(3, "y_"))

	c := newTestClient(srv.URL, Credentials{})
	pairs, err := c.AllImplications(context.Background())
	require.NoError(t, err)
	assert.Len(t, pairs, ImplicationPageSize+3)
	assert.Equal(t, tags.Pair{Antecedent: "y_c", Consequent: "general"}, pairs[len(pairs)-1])

	reqs := srv.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "active", reqs[0].Query.Get("search[status]"))
	assert.Equal(t, "name", reqs[0].Query.Get("search[order]"))
	assert.Equal(t, "2", reqs[1].Query.Get("page"))
	assert.Empty(t, reqs[0].Username, "anonymous client sends no basic auth")
}

func TestAllImplications_ObjectAnswerEndsListing(t *testing.T) {
	srv := testutil.NewCatalogServer(nil)
	defer srv.Close()
	srv.SetImplications(implicationPage(ImplicationPageSize, "x_"))

	c := newTestClient(srv.URL, Credentials{Username: "user", APIKey: "key"})
	pairs, err := c.AllImplications(context.Background())
	require.NoError(t, err)
	assert.Len(t, pairs, ImplicationPageSize)
	assert.Len(t, srv.Requests(), 2)
}

func TestAllImplications_PropagatesErrors(t *testing.T) {
	srv := testutil.NewCatalogServer(nil)
	defer srv.Close()
	srv.FailWith(http.StatusInternalServerError)

	c := newTestClient(srv.URL, Credentials{})
	_, err := c.AllImplications(context.Background())
	var httpErr *HTTPError
	assert.True(t, errors.As(err, &httpErr))
}
