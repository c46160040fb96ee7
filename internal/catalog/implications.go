package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vaisest/fakefurbot/internal/tags"
)

// ImplicationPageSize is the largest page the implication listing serves.
const ImplicationPageSize = 320

// Implication is one active tag implication.
type Implication struct {
	ID             int64  `json:"id"`
	AntecedentName string `json:"antecedent_name"`
	ConsequentName string `json:"consequent_name"`
	Status         string `json:"status"`
}

// TagImplications returns one page (1-based) of active implications ordered
// by name.
func (c *Client) TagImplications(ctx context.Context, page, limit int) ([]Implication, error) {
	ctx, span := tracer.Start(ctx, "catalog.tag_implications",
		trace.WithAttributes(attribute.Int("catalog.page", page)))
	defer span.End()

	if limit <= 0 || limit > ImplicationPageSize {
		limit = ImplicationPageSize
	}
	params := url.Values{}
	params.Set("search[order]", "name")
	params.Set("search[status]", "active")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("page", strconv.Itoa(page))

	var raw json.RawMessage
	if err := c.getJSON(ctx, "/tag_implications.json", params, c.creds.Username != "", &raw); err != nil {
		span.RecordError(err)
		return nil, err
	}

	// An exhausted listing answers with an object wrapper instead of an
	// empty array.
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '{' {
		return nil, nil
	}

	var out []Implication
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding tag implications page %d: %w", page, err)
	}
	return out, nil
}

// AllImplications walks the implication listing until a short page and
// returns every pair. Pages are paced by the client's rate limiter.
func (c *Client) AllImplications(ctx context.Context) ([]tags.Pair, error) {
	var pairs []tags.Pair
	for page := 1; ; page++ {
		items, err := c.TagImplications(ctx, page, ImplicationPageSize)
		if err != nil {
			return nil, fmt.Errorf("fetching implications page %d: %w", page, err)
		}
		for _, it := range items {
			pairs = append(pairs, tags.Pair{Antecedent: it.AntecedentName, Consequent: it.ConsequentName})
		}
		log.Debug().Int("page", page).Int("items", len(items)).Msg("implication_page_fetched")
		if len(items) < ImplicationPageSize {
			return pairs, nil
		}
	}
}
