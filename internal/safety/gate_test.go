package safety

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vaisest/fakefurbot/internal/command"
	"github.com/vaisest/fakefurbot/internal/tags"
)

func testCatalog() *tags.Catalog {
	return tags.NewCatalog(
		tags.NewSet("gore", "scat", "foo"),
		tags.NewSet("gore", "guro", "scat", "foo"),
		nil,
	)
}

func request(n int, extra ...string) command.Request {
	req := command.Request{Tags: append([]string{}, extra...)}
	for i := len(extra); i < n; i++ {
		req.Tags = append(req.Tags, fmt.Sprintf("tag_%d", i))
	}
	return req
}

func TestCheck_UnratedTagBudget(t *testing.T) {
	g := NewGate(testCatalog(), Options{})
	budget := DefaultQueryTermLimit - 3 - 1

	d := g.Check(request(budget))
	assert.True(t, d.Allowed)
	assert.Equal(t, ReasonNone, d.Reason)

	d = g.Check(request(budget + 1))
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonTooManyTags, d.Reason)
	assert.Equal(t, budget, d.Limit)
}

func TestCheck_UnratedRejectedWhenQueryReachesLimit(t *testing.T) {
	g := NewGate(testCatalog(), Options{})

	// Three base tags plus 37 requested tags make a 40 term query.
	d := g.Check(request(DefaultQueryTermLimit - 3))
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonTooManyTags, d.Reason)
	assert.Equal(t, DefaultQueryTermLimit-3-1, d.Limit)
}

func TestUnratedBudget(t *testing.T) {
	assert.Equal(t, 36, UnratedBudget(40, 3))
	assert.Equal(t, 39, UnratedBudget(40, 0))
	assert.Equal(t, 0, UnratedBudget(3, 2))
}

func TestCheck_SafeRatedTagBudget(t *testing.T) {
	g := NewGate(testCatalog(), Options{})

	d := g.Check(request(40, "rating:s"))
	assert.True(t, d.Allowed)

	d = g.Check(request(41, "rating:s"))
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonTooManyTags, d.Reason)
	assert.Equal(t, 40, d.Limit)
}

func TestCheck_BlacklistListsExactIntersection(t *testing.T) {
	g := NewGate(testCatalog(), Options{})

	d := g.Check(command.Request{Tags: []string{"wolf", "guro", "fox", "gore", "guro"}})
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonBlacklisted, d.Reason)
	assert.Equal(t, []string{"guro", "gore"}, d.Tags)
}

func TestCheck_SafeRatedBypassesBlacklist(t *testing.T) {
	g := NewGate(testCatalog(), Options{})

	for _, marker := range DefaultSafeMarkers {
		d := g.Check(command.Request{Tags: []string{marker, "foo"}})
		assert.True(t, d.Allowed, "marker %s", marker)
	}
}

func TestCheck_TooManyTagsWinsOverBlacklist(t *testing.T) {
	g := NewGate(testCatalog(), Options{})

	d := g.Check(request(DefaultQueryTermLimit, "gore"))
	assert.Equal(t, ReasonTooManyTags, d.Reason)
	assert.Empty(t, d.Tags)
}

func TestCheck_EmptyRequestAllowed(t *testing.T) {
	g := NewGate(testCatalog(), Options{})
	assert.True(t, g.Check(command.Request{}).Allowed)
}

func TestCheck_CustomOptions(t *testing.T) {
	g := NewGate(testCatalog(), Options{QueryTermLimit: 6, SafeMarkers: []string{"rating:g"}})

	assert.True(t, g.Check(request(2)).Allowed)
	assert.False(t, g.Check(request(3)).Allowed)

	d := g.Check(command.Request{Tags: []string{"rating:g", "gore"}})
	assert.True(t, d.Allowed)

	d = g.Check(command.Request{Tags: []string{"rating:s", "gore"}})
	assert.Equal(t, ReasonBlacklisted, d.Reason)
}

func TestSafeRated(t *testing.T) {
	g := NewGate(testCatalog(), Options{})
	assert.True(t, g.SafeRated(command.Request{Tags: []string{"wolf", "rating:safe"}}))
	assert.False(t, g.SafeRated(command.Request{Tags: []string{"rating:e"}}))
}
