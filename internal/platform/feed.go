package platform

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultPollInterval is how long a Feed waits after a poll that brought
// nothing new.
const DefaultPollInterval = 10 * time.Second

// seenCapacity bounds the ids a Feed remembers. It must exceed one listing
// page so a page is never re-emitted.
const seenCapacity = 4 * MaxListingLimit

// CommentLister lists a subreddit's newest comments, newest first.
type CommentLister interface {
	NewComments(ctx context.Context, subreddit string, limit int) ([]Comment, error)
}

// Feed turns subreddit polling into a stream of comments in the order they
// were posted. Each comment is yielded at most once per Feed. The first
// poll yields the latest page of existing comments.
//
// A Feed is not safe for concurrent use.
type Feed struct {
	lister    CommentLister
	subreddit string
	interval  time.Duration
	sleep     func(context.Context, time.Duration) error

	queue []Comment
	seen  map[string]struct{}
	order []string
	polls int
}

// FeedOption configures a Feed.
type FeedOption func(*Feed)

// WithPollInterval sets the idle poll interval.
func WithPollInterval(d time.Duration) FeedOption {
	return func(f *Feed) { f.interval = d }
}

// WithFeedSleep replaces the idle wait. Tests use it to skip real sleeps.
func WithFeedSleep(sleep func(context.Context, time.Duration) error) FeedOption {
	return func(f *Feed) { f.sleep = sleep }
}

// NewFeed creates a feed over subreddit.
func NewFeed(lister CommentLister, subreddit string, opts ...FeedOption) *Feed {
	f := &Feed{
		lister:    lister,
		subreddit: subreddit,
		interval:  DefaultPollInterval,
		sleep:     Sleep,
		seen:      make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Next blocks until a new comment is available, ctx is done, or a poll
// fails. Poll errors are returned as is; the Feed stays usable.
func (f *Feed) Next(ctx context.Context) (Comment, error) {
	for len(f.queue) == 0 {
		if f.polls > 0 {
			if err := f.sleep(ctx, f.interval); err != nil {
				return Comment{}, err
			}
		}
		if err := f.poll(ctx); err != nil {
			return Comment{}, err
		}
	}
	c := f.queue[0]
	f.queue = f.queue[1:]
	return c, nil
}

func (f *Feed) poll(ctx context.Context) error {
	f.polls++
	batch, err := f.lister.NewComments(ctx, f.subreddit, MaxListingLimit)
	if err != nil {
		return err
	}

	fresh := 0
	for i := len(batch) - 1; i >= 0; i-- {
		c := batch[i]
		if _, ok := f.seen[c.ID]; ok {
			continue
		}
		f.remember(c.ID)
		f.queue = append(f.queue, c)
		fresh++
	}
	log.Debug().Str("subreddit", f.subreddit).Int("fetched", len(batch)).Int("new", fresh).Msg("feed_polled")
	return nil
}

func (f *Feed) remember(id string) {
	f.seen[id] = struct{}{}
	f.order = append(f.order, id)
	if len(f.order) > seenCapacity {
		delete(f.seen, f.order[0])
		f.order = f.order[1:]
	}
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
