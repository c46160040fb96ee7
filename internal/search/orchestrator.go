// Package search turns a validated request into catalog queries and shapes
// the first result into a reply payload.
package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vaisest/fakefurbot/internal/catalog"
	"github.com/vaisest/fakefurbot/internal/command"
	furbototel "github.com/vaisest/fakefurbot/internal/otel"
	"github.com/vaisest/fakefurbot/internal/platform"
	"github.com/vaisest/fakefurbot/internal/requestctx"
	"github.com/vaisest/fakefurbot/internal/safety"
	"github.com/vaisest/fakefurbot/internal/tags"
)

var tracer = furbototel.Tracer("github.com/vaisest/fakefurbot/internal/search")

// Defaults.
const (
	DefaultScoreFloor       = 20
	DefaultTagCutoff        = 25
	DefaultFallbackCooldown = time.Second
	DefaultSelfToken        = "furbot"
)

// Explanation sentences.
const (
	ExplainResults = "Here are the results for your search:"
	ExplainNoTags  = "It seems that you did not input any tags in your search. Anyway, here is a random result from e621:"
	ExplainSelf    = "You are searching for me? I'm flattered, but I'm not on e621. Here is what I found anyway:"
	NoResults      = "No results found. You may have an invalid tag, or all possible results had blacklisted tags."
	FlashNotice    = "Flash animation. Check the post."
)

// Mode selects whether the score floor applies.
type Mode int

const (
	// Scored applies the score floor and falls back to Unscored when
	// nothing qualifies.
	Scored Mode = iota
	// Unscored drops the score floor.
	Unscored
)

func (m Mode) String() string {
	if m == Unscored {
		return "unscored"
	}
	return "scored"
}

// Searcher is the catalog surface the orchestrator needs.
type Searcher interface {
	Posts(ctx context.Context, q catalog.Query) ([]catalog.Post, error)
	PostURL(id int64) string
}

// Payload is everything a reply shows about a search. Tags are already
// markdown escaped.
type Payload struct {
	Explanation string
	RequestTags []string
	// Result is the link line of the shown post, or the sentence explaining
	// why no post is shown.
	Result string
	// PostTags is the capped, implication-free tag summary. Empty when no
	// post is shown.
	PostTags []string
	// MoreTags counts tags left out of PostTags, both past the cutoff and
	// removed as implied.
	MoreTags int
	Found    bool
	PostID   int64
	// FellBack is set when the unscored fallback query ran.
	FellBack bool
}

// Options tunes an Orchestrator. Zero values use the defaults.
type Options struct {
	ScoreFloor       int
	TagCutoff        int
	FallbackCooldown time.Duration
	SafeMarkers      []string
	SelfToken        string
	// Sleep waits between the scored query and its fallback.
	Sleep func(context.Context, time.Duration) error
}

// Orchestrator runs searches against the catalog.
type Orchestrator struct {
	client  Searcher
	catalog *tags.Catalog
	opts    Options
}

// New creates an Orchestrator. A FallbackCooldown below one second is
// raised to one second; the catalog allows no faster pacing.
func New(client Searcher, catalog *tags.Catalog, opts Options) *Orchestrator {
	if opts.ScoreFloor <= 0 {
		opts.ScoreFloor = DefaultScoreFloor
	}
	if opts.TagCutoff <= 0 {
		opts.TagCutoff = DefaultTagCutoff
	}
	if opts.FallbackCooldown < DefaultFallbackCooldown {
		opts.FallbackCooldown = DefaultFallbackCooldown
	}
	if len(opts.SafeMarkers) == 0 {
		opts.SafeMarkers = safety.DefaultSafeMarkers
	}
	if opts.SelfToken == "" {
		opts.SelfToken = DefaultSelfToken
	}
	if opts.Sleep == nil {
		opts.Sleep = platform.Sleep
	}
	return &Orchestrator{client: client, catalog: catalog, opts: opts}
}

// ScoreFloor returns the effective score floor.
func (o *Orchestrator) ScoreFloor() int {
	return o.opts.ScoreFloor
}

// Terms builds the catalog query for req: random ordering, the score floor
// in Scored mode, one negated term per base blacklist tag unless req is
// safe-rated, then the request tags.
func (o *Orchestrator) Terms(req command.Request, mode Mode) []string {
	terms := []string{"order:random"}
	if mode == Scored {
		terms = append(terms, "score:>="+strconv.Itoa(o.opts.ScoreFloor))
	}
	if !req.ContainsAny(o.opts.SafeMarkers) {
		for _, t := range o.catalog.Base.Tags() {
			terms = append(terms, "-"+t)
		}
	}
	return append(terms, req.Tags...)
}

// Search runs req. In Scored mode an empty result triggers one unscored
// query after the fallback cooldown; its posts only decide which
// explanation is given and are never shown. Catalog errors are returned
// wrapped and are not retried.
func (o *Orchestrator) Search(ctx context.Context, req command.Request, mode Mode) (Payload, error) {
	ctx, span := tracer.Start(ctx, "search.run",
		trace.WithAttributes(
			attribute.String("search.mode", mode.String()),
			attribute.Int("search.tags", len(req.Tags)),
		))
	defer span.End()

	p := Payload{
		Explanation: o.explanation(req),
		RequestTags: Escape(req.Tags),
	}

	posts, err := o.query(ctx, req, mode)
	if err != nil {
		span.RecordError(err)
		return Payload{}, err
	}

	if len(posts) == 0 {
		if mode == Unscored {
			p.Result = NoResults
			return p, nil
		}

		if err := o.opts.Sleep(ctx, o.opts.FallbackCooldown); err != nil {
			return Payload{}, err
		}
		p.FellBack = true
		span.SetAttributes(attribute.Bool("search.fallback", true))

		unscored, err := o.query(ctx, req, Unscored)
		if err != nil {
			span.RecordError(err)
			return Payload{}, err
		}
		log.Debug().
			Int("unscored_results", len(unscored)).
			Func(requestctx.LogFields(ctx)).
			Msg("search_fallback")
		if len(unscored) == 0 {
			p.Result = NoResults
		} else {
			p.Result = fmt.Sprintf("No results found. All results had a score below %d.", o.opts.ScoreFloor)
		}
		return p, nil
	}

	o.shape(&p, posts[0])
	span.SetAttributes(attribute.Int64("search.post_id", p.PostID))
	return p, nil
}

func (o *Orchestrator) query(ctx context.Context, req command.Request, mode Mode) ([]catalog.Post, error) {
	posts, err := o.client.Posts(ctx, catalog.Query{Terms: o.Terms(req, mode), Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("%s catalog search: %w", mode, err)
	}
	return posts, nil
}

func (o *Orchestrator) shape(p *Payload, post catalog.Post) {
	flat, removed := tags.Deimplicate(post.Tags, o.catalog.Implications)

	shown := flat
	overflow := 0
	if len(flat) > o.opts.TagCutoff {
		shown = flat[:o.opts.TagCutoff]
		overflow = len(flat) - o.opts.TagCutoff
	}

	direct := fmt.Sprintf("[Direct Link](%s)", post.File.URL)
	if post.File.Ext == "swf" {
		direct = FlashNotice
	}

	p.Found = true
	p.PostID = post.ID
	p.Result = fmt.Sprintf("[Post](%s) | %s | Score: %d", o.client.PostURL(post.ID), direct, post.Score.Total)
	p.PostTags = Escape(shown)
	p.MoreTags = overflow + removed
}

func (o *Orchestrator) explanation(req command.Request) string {
	switch {
	case req.Contains(o.opts.SelfToken):
		return ExplainSelf
	case req.Empty():
		return ExplainNoTags
	default:
		return ExplainResults
	}
}

var markdownEscaper = strings.NewReplacer("_", `\_`, "*", `\*`, "`", "\\`")

// Escape returns tags with markdown control characters backslash escaped.
func Escape(in []string) []string {
	out := make([]string, len(in))
	for i, t := range in {
		out[i] = markdownEscaper.Replace(t)
	}
	return out
}
