package sweep

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/vaisest/fakefurbot/internal/platform"
	"github.com/vaisest/fakefurbot/internal/testutil"
)

func newAccount(t *testing.T, srv *testutil.PlatformServer) *platform.Client {
	t.Helper()
	c, err := platform.NewClient(context.Background(), platform.Config{
		AuthURL:   srv.URL,
		BaseURL:   srv.URL,
		UserAgent: "furbot-test/1.0",
		Credentials: platform.Credentials{
			ClientID:     testutil.PlatformClientID,
			ClientSecret: testutil.PlatformClientSecret,
			Username:     testutil.PlatformUsername,
			Password:     testutil.PlatformPassword,
		},
		RateLimit: rate.Inf,
	})
	require.NoError(t, err)
	return c
}

func TestSweeper_RemovesNegativeScores(t *testing.T) {
	srv := testutil.NewPlatformServer()
	defer srv.Close()
	srv.SetUserComments(
		testutil.PlatformComment{ID: "a", Score: 5},
		testutil.PlatformComment{ID: "b", Score: -1},
		testutil.PlatformComment{ID: "c", Score: 0},
		testutil.PlatformComment{ID: "d", Score: -12},
	)

	s := &Sweeper{Account: newAccount(t, srv), Username: testutil.PlatformUsername}
	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, res.Scanned)
	assert.Equal(t, []string{"b", "d"}, res.Removed)
	assert.Equal(t, []string{"t1_b", "t1_d"}, srv.Deleted())
}

func TestSweeper_DryRun(t *testing.T) {
	srv := testutil.NewPlatformServer()
	defer srv.Close()
	srv.SetUserComments(testutil.PlatformComment{ID: "b", Score: -1})

	s := &Sweeper{Account: newAccount(t, srv), Username: testutil.PlatformUsername, DryRun: true}
	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, res.Removed)
	assert.Empty(t, srv.Deleted())
}

func TestSweeper_ReadsOnlyThePage(t *testing.T) {
	srv := testutil.NewPlatformServer()
	defer srv.Close()
	history := make([]testutil.PlatformComment, 0, 250)
	for i := 0; i < 250; i++ {
		history = append(history, testutil.PlatformComment{ID: fmt.Sprintf("c%d", i), Score: 1})
	}
	history[249].Score = -5
	srv.SetUserComments(history...)

	s := &Sweeper{Account: newAccount(t, srv), Username: testutil.PlatformUsername}
	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultPageSize, res.Scanned)
	assert.Empty(t, res.Removed)
}

func TestSweeper_StopsAtFailure(t *testing.T) {
	srv := testutil.NewPlatformServer()
	defer srv.Close()
	srv.SetUserComments(
		testutil.PlatformComment{ID: "a", Score: -1},
		testutil.PlatformComment{ID: "b", Score: -1},
	)
	srv.FailNext("/api/del", http.StatusInternalServerError)

	s := &Sweeper{Account: newAccount(t, srv), Username: testutil.PlatformUsername}
	res, err := s.Run(context.Background())
	require.Error(t, err)
	assert.True(t, platform.IsServerError(err))
	assert.Empty(t, res.Removed)
}

type flakyRunner struct {
	mu    sync.Mutex
	fails int
	runs  int
}

func (r *flakyRunner) Run(context.Context) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs++
	if r.runs <= r.fails {
		return Result{}, errors.New("platform down")
	}
	return Result{Scanned: 1}, nil
}

func (r *flakyRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs
}

func TestScheduler_RetriesAfterBackoff(t *testing.T) {
	runner := &flakyRunner{fails: 2}
	var waits atomic.Int32
	s, err := NewScheduler(context.Background(), runner, "@every 1h",
		WithErrorBackoff(time.Minute),
		WithSleep(func(_ context.Context, d time.Duration) error {
			assert.Equal(t, time.Minute, d)
			waits.Add(1)
			return nil
		}))
	require.NoError(t, err)

	s.Trigger()
	s.Stop()
	assert.Equal(t, 3, runner.count())
	assert.Equal(t, int32(2), waits.Load())
}

func TestScheduler_StopsRetryingOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := &flakyRunner{fails: 100}
	s, err := NewScheduler(ctx, runner, "",
		WithSleep(func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		}))
	require.NoError(t, err)

	s.Trigger()
	s.Stop()
	assert.Equal(t, 1, runner.count())
}

func TestScheduler_InvalidSpec(t *testing.T) {
	_, err := NewScheduler(context.Background(), &flakyRunner{}, "not a cron")
	assert.Error(t, err)
}

func TestScheduler_StartStop(t *testing.T) {
	s, err := NewScheduler(context.Background(), &flakyRunner{}, DefaultSchedule)
	require.NoError(t, err)
	assert.True(t, s.Next().IsZero())

	s.Start()
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), s.Next(), time.Minute)
	s.Stop()
}
