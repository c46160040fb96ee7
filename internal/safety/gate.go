// Package safety decides whether a parsed search request may be sent to the
// catalog.
//
// Two checks run in order and the first failure wins:
//
//  1. Term budget. The catalog caps a query at QueryTermLimit terms. Requests
//     that are not safe-rated also carry one negated term per base
//     blacklist tag, and the combined query must stay below QueryTermLimit,
//     so they may hold at most UnratedBudget tags.
//  2. Blacklist. Requests that are not safe-rated must not contain any tag
//     of the alias-expanded blacklist. Safe-rated requests skip this check.
package safety

import (
	"github.com/vaisest/fakefurbot/internal/command"
	"github.com/vaisest/fakefurbot/internal/tags"
)

// DefaultQueryTermLimit is the catalog's maximum number of query terms.
const DefaultQueryTermLimit = 40

// UnratedBudget is the most tags a request that is not safe-rated may carry
// when baseSize negated blacklist terms are added to a query capped at limit.
// A request is rejected once its tags plus the blacklist reach the limit.
func UnratedBudget(limit, baseSize int) int {
	return limit - baseSize - 1
}

// DefaultSafeMarkers are the request tags that mark a request safe-rated.
var DefaultSafeMarkers = []string{"rating:s", "rating:safe"}

// Reason identifies why a request was rejected.
type Reason string

// Rejection reasons.
const (
	ReasonNone        Reason = ""
	ReasonTooManyTags Reason = "too_many_tags"
	ReasonBlacklisted Reason = "blacklisted"
)

// Decision is the outcome of Check.
type Decision struct {
	Allowed bool
	Reason  Reason
	// Limit is the most tags the request may carry in its rating mode. Set when Reason is ReasonTooManyTags.
	Limit int
	// Tags lists the requested tags found on the blacklist, in request
	// order. Set when Reason is ReasonBlacklisted.
	Tags []string
}

// Options tunes the gate.
type Options struct {
	QueryTermLimit int
	SafeMarkers    []string
}

// Gate evaluates requests against the tag catalog. It holds no mutable
// state and is safe for concurrent use.
type Gate struct {
	catalog     *tags.Catalog
	limit       int
	safeMarkers []string
}

// NewGate creates a gate. Zero options fall back to the defaults.
func NewGate(catalog *tags.Catalog, opts Options) *Gate {
	if opts.QueryTermLimit <= 0 {
		opts.QueryTermLimit = DefaultQueryTermLimit
	}
	if len(opts.SafeMarkers) == 0 {
		opts.SafeMarkers = DefaultSafeMarkers
	}
	return &Gate{catalog: catalog, limit: opts.QueryTermLimit, safeMarkers: opts.SafeMarkers}
}

// SafeRated reports whether req carries a safe-rating marker.
func (g *Gate) SafeRated(req command.Request) bool {
	return req.ContainsAny(g.safeMarkers)
}

// Check decides whether req may proceed.
func (g *Gate) Check(req command.Request) Decision {
	n := len(req.Tags)

	if g.SafeRated(req) {
		if n > g.limit {
			return Decision{Reason: ReasonTooManyTags, Limit: g.limit}
		}
		return Decision{Allowed: true}
	}

	budget := UnratedBudget(g.limit, g.catalog.Base.Len())
	if n > budget {
		return Decision{Reason: ReasonTooManyTags, Limit: budget}
	}

	if hits := g.catalog.Aliased.Intersect(req.Tags); len(hits) > 0 {
		return Decision{Reason: ReasonBlacklisted, Tags: hits}
	}

	return Decision{Allowed: true}
}
