// Package bot runs the comment loop: each comment from the feed goes
// through the gate, and commands through parsing, the safety gate and the
// catalog search before a reply is posted.
package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vaisest/fakefurbot/internal/command"
	"github.com/vaisest/fakefurbot/internal/gate"
	"github.com/vaisest/fakefurbot/internal/metrics"
	furbototel "github.com/vaisest/fakefurbot/internal/otel"
	"github.com/vaisest/fakefurbot/internal/platform"
	"github.com/vaisest/fakefurbot/internal/processed"
	"github.com/vaisest/fakefurbot/internal/reply"
	"github.com/vaisest/fakefurbot/internal/requestctx"
	"github.com/vaisest/fakefurbot/internal/safety"
	"github.com/vaisest/fakefurbot/internal/search"
)

var tracer = furbototel.Tracer("github.com/vaisest/fakefurbot/internal/bot")

// DefaultReplyCooldown is the pause after every posted reply.
const DefaultReplyCooldown = 5 * time.Second

// Replier posts replies on the platform.
type Replier interface {
	Reply(ctx context.Context, parentFullName, text string) (platform.Comment, error)
}

// Processor handles one comment at a time.
type Processor struct {
	Gate      *gate.Gate
	Parser    *command.Parser
	Safety    *safety.Gate
	Search    *search.Orchestrator
	Composer  *reply.Composer
	Replier   Replier
	Processed processed.Set

	// Cooldown follows every posted reply. Zero uses DefaultReplyCooldown.
	Cooldown time.Duration
	// Sleep waits out the cooldown. nil uses platform.Sleep.
	Sleep func(context.Context, time.Duration) error
}

// Handle processes c. Comments that get no reply are marked processed right
// away. Comments that get a reply are marked only after the reply is
// posted, so a failure anywhere before that leaves the comment to be
// retried. Errors are returned for the supervisor to classify.
func (p *Processor) Handle(ctx context.Context, c platform.Comment) error {
	correlationID := uuid.New().String()
	ctx = requestctx.WithCorrelationID(ctx, correlationID)
	ctx, span := tracer.Start(ctx, "bot.handle_comment",
		trace.WithAttributes(
			attribute.String("correlation_id", correlationID),
			attribute.String("comment.id", c.ID),
		))
	defer span.End()

	verdict, err := p.Gate.Evaluate(ctx, c)
	if err != nil {
		span.RecordError(err)
		return err
	}
	metrics.CommentsSeen.WithLabelValues(verdict.Track.String()).Inc()
	span.SetAttributes(attribute.String("gate.track", verdict.Track.String()))

	var text, kind string
	switch verdict.Track {
	case gate.TrackIgnore:
		if err := p.Processed.MarkProcessed(ctx, c.ID); err != nil {
			span.RecordError(err)
			return fmt.Errorf("marking ignored comment %s: %w", c.ID, err)
		}
		log.Debug().
			Str("comment_id", c.ID).
			Str("reason", verdict.Reason).
			Func(requestctx.LogFields(ctx)).
			Msg("comment_ignored")
		return nil

	case gate.TrackAcknowledge:
		text, kind = p.Composer.Acknowledgment(c.Author), "acknowledgment"

	case gate.TrackCommand:
		text, kind, err = p.answer(ctx, c)
		if err != nil {
			span.RecordError(err)
			return err
		}
	}

	if _, err := p.Replier.Reply(ctx, c.FullName(), text); err != nil {
		span.RecordError(err)
		return fmt.Errorf("replying to %s: %w", c.ID, err)
	}
	if err := p.Processed.MarkProcessed(ctx, c.ID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("marking answered comment %s: %w", c.ID, err)
	}
	metrics.RepliesPosted.WithLabelValues(kind).Inc()

	log.Info().
		Func(requestctx.LogFields(ctx)).
		Str("comment_id", c.ID).
		Str("author", c.Author).
		Str("kind", kind).
		Func(furbototel.LogTraceFields(ctx)).
		Msg("comment_replied")

	return p.sleep(ctx, p.cooldown())
}

func (p *Processor) answer(ctx context.Context, c platform.Comment) (text, kind string, err error) {
	req := p.Parser.Parse(c.Body)

	decision := p.Safety.Check(req)
	if !decision.Allowed {
		log.Info().
			Str("comment_id", c.ID).
			Str("reason", string(decision.Reason)).
			Strs("blacklisted", decision.Tags).
			Func(requestctx.LogFields(ctx)).
			Msg("search_rejected")
		return p.Composer.Rejection(c.Author, decision), "rejection", nil
	}

	start := time.Now()
	payload, err := p.Search.Search(ctx, req, search.Scored)
	metrics.SearchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return "", "", fmt.Errorf("searching for %s: %w", c.ID, err)
	}
	if payload.FellBack {
		metrics.SearchFallbacks.Inc()
	}
	log.Debug().
		Str("comment_id", c.ID).
		Strs("tags", req.Tags).
		Bool("found", payload.Found).
		Int64("post_id", payload.PostID).
		Func(requestctx.LogFields(ctx)).
		Msg("search_completed")
	return p.Composer.Results(c.Author, payload), "results", nil
}

func (p *Processor) cooldown() time.Duration {
	if p.Cooldown <= 0 {
		return DefaultReplyCooldown
	}
	return p.Cooldown
}

func (p *Processor) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return platform.Sleep(ctx, d)
}
