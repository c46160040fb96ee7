package gate

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaisest/fakefurbot/internal/command"
	"github.com/vaisest/fakefurbot/internal/platform"
)

type memProcessed map[string]bool

func (m memProcessed) Contains(_ context.Context, id string) (bool, error) {
	return m[id], nil
}

type failingProcessed struct{}

func (failingProcessed) Contains(context.Context, string) (bool, error) {
	return false, errors.New("disk on fire")
}

type parents struct {
	authors map[string]string
	err     error
	calls   int
}

func (p *parents) Author(_ context.Context, fullName string) (string, error) {
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	a, ok := p.authors[fullName]
	if !ok {
		return "", fmt.Errorf("comment %s: %w", fullName, platform.ErrNotFound)
	}
	return a, nil
}

func newGate(processed ProcessedChecker, resolver ParentResolver) *Gate {
	return New(processed, resolver, command.NewParser(""), "FakeFurBot", "")
}

func TestEvaluate(t *testing.T) {
	resolver := &parents{authors: map[string]string{
		"t1_bot":   "fakefurbot",
		"t1_human": "alice",
	}}
	g := newGate(memProcessed{"done": true}, resolver)

	tests := []struct {
		name    string
		comment platform.Comment
		track   Track
		reason  string
	}{
		{"command", platform.Comment{ID: "c1", Author: "alice", Body: "hi\nFurbot Search wolf", ParentID: "t3_x"}, TrackCommand, ""},
		{"mention prefix", platform.Comment{ID: "c2", Author: "alice", Body: "/u/furbot search", ParentID: "t3_x"}, TrackCommand, ""},
		{"trigger inside a word", platform.Comment{ID: "c10", Author: "alice", Body: "is furbot searching yet?", ParentID: "t3_x"}, TrackCommand, ""},
		{"processed", platform.Comment{ID: "done", Author: "alice", Body: "furbot search wolf"}, TrackIgnore, ReasonProcessed},
		{"own comment", platform.Comment{ID: "c3", Author: "FAKEFURBOT", Body: "furbot search wolf"}, TrackIgnore, ReasonOwnComment},
		{"chatter", platform.Comment{ID: "c4", Author: "alice", Body: "nice pic", ParentID: "t3_x"}, TrackIgnore, ReasonNoTrigger},
		{"praise", platform.Comment{ID: "c5", Author: "bob", Body: "Good Bot!", ParentID: "t1_bot"}, TrackAcknowledge, ""},
		{"praise for a human", platform.Comment{ID: "c6", Author: "bob", Body: "good bot", ParentID: "t1_human"}, TrackIgnore, ReasonParentNotBot},
		{"praise at root", platform.Comment{ID: "c7", Author: "bob", Body: "good bot", ParentID: "t3_x"}, TrackIgnore, ReasonNoTrigger},
		{"praise for deleted parent", platform.Comment{ID: "c8", Author: "bob", Body: "good bot", ParentID: "t1_gone"}, TrackIgnore, ReasonParentUnresolvable},
		{"command wins over praise", platform.Comment{ID: "c9", Author: "bob", Body: "good bot\nfurbot search fox", ParentID: "t1_bot"}, TrackCommand, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := g.Evaluate(context.Background(), tt.comment)
			require.NoError(t, err)
			assert.Equal(t, tt.track, v.Track)
			assert.Equal(t, tt.reason, v.Reason)
		})
	}
}

func TestEvaluate_ResolverOnlyForPraise(t *testing.T) {
	resolver := &parents{}
	g := newGate(memProcessed{}, resolver)

	_, err := g.Evaluate(context.Background(), platform.Comment{ID: "a", Author: "x", Body: "furbot search", ParentID: "t1_p"})
	require.NoError(t, err)
	_, err = g.Evaluate(context.Background(), platform.Comment{ID: "b", Author: "x", Body: "hello", ParentID: "t1_p"})
	require.NoError(t, err)
	assert.Zero(t, resolver.calls)
}

func TestEvaluate_PropagatesErrors(t *testing.T) {
	_, err := newGate(failingProcessed{}, &parents{}).Evaluate(context.Background(), platform.Comment{ID: "a"})
	assert.ErrorContains(t, err, "disk on fire")

	outage := &platform.APIError{StatusCode: 503, Status: "503 Service Unavailable", Endpoint: "/api/info"}
	_, err = newGate(memProcessed{}, &parents{err: outage}).Evaluate(context.Background(),
		platform.Comment{ID: "b", Author: "x", Body: "good bot", ParentID: "t1_p"})
	assert.True(t, platform.IsServerError(err))
}

func TestTrackString(t *testing.T) {
	assert.Equal(t, "ignore", TrackIgnore.String())
	assert.Equal(t, "acknowledge", TrackAcknowledge.String())
	assert.Equal(t, "command", TrackCommand.String())
}
