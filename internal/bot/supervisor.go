package bot

import (
	"context"
	"errors"
	"net"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vaisest/fakefurbot/internal/catalog"
	"github.com/vaisest/fakefurbot/internal/metrics"
	"github.com/vaisest/fakefurbot/internal/platform"
)

// Error classes and their default backoffs.
const (
	ClassPlatformUnavailable = "platform_unavailable"
	ClassPlatformAPI         = "platform_api"
	ClassCatalog             = "catalog"
	ClassTransport           = "transport"
	ClassUnknown             = "unknown"
)

// Backoff holds the pause applied per error class.
type Backoff struct {
	// ServerError follows a 5xx from the platform.
	ServerError time.Duration
	// APIError follows platform API errors, catalog errors and network
	// failures.
	APIError time.Duration
	// Unknown follows anything else.
	Unknown time.Duration
}

// DefaultBackoff mirrors the long-standing production pauses.
var DefaultBackoff = Backoff{
	ServerError: 300 * time.Second,
	APIError:    60 * time.Second,
	Unknown:     120 * time.Second,
}

// Classify maps an error from the comment loop to its class and pause.
func (b Backoff) Classify(err error) (class string, wait time.Duration) {
	var (
		apiErr  *platform.APIError
		httpErr *catalog.HTTPError
		urlErr  *url.Error
		netErr  net.Error
	)
	switch {
	case platform.IsServerError(err):
		return ClassPlatformUnavailable, b.ServerError
	case errors.As(err, &apiErr):
		return ClassPlatformAPI, b.APIError
	case errors.As(err, &httpErr):
		return ClassCatalog, b.APIError
	case errors.As(err, &urlErr), errors.As(err, &netErr):
		return ClassTransport, b.APIError
	default:
		return ClassUnknown, b.Unknown
	}
}

// CommentSource yields comments in feed order.
type CommentSource interface {
	Next(ctx context.Context) (platform.Comment, error)
}

// Handler processes one comment.
type Handler interface {
	Handle(ctx context.Context, c platform.Comment) error
}

// Supervisor keeps the comment loop alive: any error is classified, logged,
// waited out, and the loop resumes with a fresh source.
type Supervisor struct {
	NewSource func() CommentSource
	Handler   Handler
	Backoff   Backoff
	// Sleep waits out backoffs. nil uses platform.Sleep.
	Sleep func(context.Context, time.Duration) error
}

// Run loops until ctx is done and then returns nil.
func (s *Supervisor) Run(ctx context.Context) error {
	backoff := s.Backoff
	if backoff == (Backoff{}) {
		backoff = DefaultBackoff
	}
	sleep := s.Sleep
	if sleep == nil {
		sleep = platform.Sleep
	}

	for {
		log.Info().Msg("comment_loop_started")
		err := s.drain(ctx)
		if ctx.Err() != nil {
			log.Info().Msg("comment_loop_stopped")
			return nil
		}

		class, wait := backoff.Classify(err)
		metrics.LoopErrors.WithLabelValues(class).Inc()
		ev := log.Error()
		if class == ClassPlatformUnavailable {
			ev = log.Warn()
		}
		ev.Err(err).Str("class", class).Dur("backoff", wait).Msg("comment_loop_failed")

		if err := sleep(ctx, wait); err != nil {
			log.Info().Msg("comment_loop_stopped")
			return nil
		}
	}
}

// drain handles comments from a fresh source until something fails.
func (s *Supervisor) drain(ctx context.Context) error {
	src := s.NewSource()
	for {
		c, err := src.Next(ctx)
		if err != nil {
			return err
		}
		if err := s.Handler.Handle(ctx, c); err != nil {
			return err
		}
	}
}
