// Package gate decides whether a comment from the feed deserves a reply.
package gate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vaisest/fakefurbot/internal/command"
	"github.com/vaisest/fakefurbot/internal/platform"
)

// DefaultAckPhrase is the praise that earns a thank-you reply.
const DefaultAckPhrase = "good bot"

// Track is the kind of handling a comment gets.
type Track int

// Tracks.
const (
	TrackIgnore Track = iota
	TrackAcknowledge
	TrackCommand
)

func (t Track) String() string {
	switch t {
	case TrackAcknowledge:
		return "acknowledge"
	case TrackCommand:
		return "command"
	default:
		return "ignore"
	}
}

// Why a comment was ignored.
const (
	ReasonProcessed          = "already_processed"
	ReasonOwnComment         = "own_comment"
	ReasonNoTrigger          = "no_trigger"
	ReasonParentUnresolvable = "parent_unresolvable"
	ReasonParentNotBot       = "parent_not_bot"
)

// Verdict is the outcome of Evaluate.
type Verdict struct {
	Track  Track
	Reason string
}

// ProcessedChecker reports whether a comment id was handled before.
type ProcessedChecker interface {
	Contains(ctx context.Context, id string) (bool, error)
}

// ParentResolver resolves the author of a parent comment.
type ParentResolver interface {
	Author(ctx context.Context, fullName string) (string, error)
}

// Gate evaluates comments for one bot account.
type Gate struct {
	processed ProcessedChecker
	resolver  ParentResolver
	parser    *command.Parser
	botName   string
	ackPhrase string
}

// New creates a Gate. An empty ackPhrase uses DefaultAckPhrase.
func New(processed ProcessedChecker, resolver ParentResolver, parser *command.Parser, botName, ackPhrase string) *Gate {
	if ackPhrase == "" {
		ackPhrase = DefaultAckPhrase
	}
	return &Gate{
		processed: processed,
		resolver:  resolver,
		parser:    parser,
		botName:   botName,
		ackPhrase: strings.ToLower(ackPhrase),
	}
}

// Evaluate classifies c. The command track wins over the acknowledgment
// track when a comment qualifies for both. Errors from the processed set or
// from resolving the parent are returned; a parent that no longer exists or
// lost its author just makes the comment ignorable.
func (g *Gate) Evaluate(ctx context.Context, c platform.Comment) (Verdict, error) {
	seen, err := g.processed.Contains(ctx, c.ID)
	if err != nil {
		return Verdict{}, fmt.Errorf("checking processed set for %s: %w", c.ID, err)
	}
	if seen {
		return Verdict{Track: TrackIgnore, Reason: ReasonProcessed}, nil
	}
	if strings.EqualFold(c.Author, g.botName) {
		return Verdict{Track: TrackIgnore, Reason: ReasonOwnComment}, nil
	}

	if g.parser.HasTrigger(c.Body) {
		return Verdict{Track: TrackCommand}, nil
	}

	if c.IsRoot() || !strings.Contains(strings.ToLower(c.Body), g.ackPhrase) {
		return Verdict{Track: TrackIgnore, Reason: ReasonNoTrigger}, nil
	}

	parent, err := g.resolver.Author(ctx, c.ParentID)
	switch {
	case errors.Is(err, platform.ErrNotFound), errors.Is(err, platform.ErrAuthorUnavailable):
		return Verdict{Track: TrackIgnore, Reason: ReasonParentUnresolvable}, nil
	case err != nil:
		return Verdict{}, fmt.Errorf("resolving parent of %s: %w", c.ID, err)
	}
	if !strings.EqualFold(parent, g.botName) {
		return Verdict{Track: TrackIgnore, Reason: ReasonParentNotBot}, nil
	}
	return Verdict{Track: TrackAcknowledge}, nil
}
