// Package sweep removes the bot's own comments once the community has
// voted them below zero.
package sweep

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/vaisest/fakefurbot/internal/metrics"
	"github.com/vaisest/fakefurbot/internal/platform"
)

// DefaultPageSize is how many of the newest own comments a sweep reads.
const DefaultPageSize = 200

// Account is the platform surface a sweep needs.
type Account interface {
	UserComments(ctx context.Context, username string, limit int) ([]platform.Comment, error)
	Delete(ctx context.Context, fullName string) error
}

// Result summarizes one sweep.
type Result struct {
	Scanned int
	Removed []string
}

// Sweeper deletes own comments scored below zero.
type Sweeper struct {
	Account  Account
	Username string
	// PageSize defaults to DefaultPageSize.
	PageSize int
	// DryRun reports what would be removed without deleting.
	DryRun bool
}

// Run performs one sweep. It stops at the first failed call; comments
// removed before the failure stay in Result.
func (s *Sweeper) Run(ctx context.Context) (Result, error) {
	limit := s.PageSize
	if limit <= 0 {
		limit = DefaultPageSize
	}

	comments, err := s.Account.UserComments(ctx, s.Username, limit)
	if err != nil {
		return Result{}, fmt.Errorf("listing own comments: %w", err)
	}

	res := Result{Scanned: len(comments)}
	for _, c := range comments {
		if c.Score >= 0 {
			continue
		}
		if !s.DryRun {
			if err := s.Account.Delete(ctx, c.FullName()); err != nil {
				return res, fmt.Errorf("removing comment %s: %w", c.ID, err)
			}
			metrics.SweepRemoved.Inc()
		}
		res.Removed = append(res.Removed, c.ID)
		log.Info().
			Str("comment_id", c.ID).
			Int("score", c.Score).
			Bool("dry_run", s.DryRun).
			Str("body", c.Body).
			Msg("sweep_comment_removed")
	}
	return res, nil
}
