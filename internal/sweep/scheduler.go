package sweep

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/vaisest/fakefurbot/internal/metrics"
	"github.com/vaisest/fakefurbot/internal/platform"
)

// Defaults for the sweep schedule.
const (
	DefaultSchedule     = "@every 30m"
	DefaultErrorBackoff = 10 * time.Minute
)

// Runner performs one sweep.
type Runner interface {
	Run(ctx context.Context) (Result, error)
}

// Scheduler runs sweeps on a cron schedule. Runs never overlap: a tick that
// arrives while a sweep (or its error retries) is still going is skipped.
type Scheduler struct {
	cron    *cron.Cron
	entry   cron.EntryID
	ctx     context.Context
	runner  Runner
	backoff time.Duration
	sleep   func(context.Context, time.Duration) error
	manual  sync.WaitGroup
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithErrorBackoff sets the pause before retrying a failed sweep.
func WithErrorBackoff(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.backoff = d }
}

// WithSleep replaces the backoff wait. Tests use it to skip real sleeps.
func WithSleep(sleep func(context.Context, time.Duration) error) SchedulerOption {
	return func(s *Scheduler) { s.sleep = sleep }
}

// NewScheduler registers runner under spec, a standard 5-field cron
// expression or a descriptor such as "@every 30m". Jobs run under ctx and
// stop retrying once it is done.
func NewScheduler(ctx context.Context, runner Runner, spec string, opts ...SchedulerOption) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSchedule
	}
	s := &Scheduler{
		ctx:     ctx,
		runner:  runner,
		backoff: DefaultErrorBackoff,
		sleep:   platform.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{})))
	id, err := s.cron.AddFunc(spec, s.runWithRetry)
	if err != nil {
		return nil, fmt.Errorf("registering sweep schedule %q: %w", spec, err)
	}
	s.entry = id
	return s, nil
}

// Start begins executing the schedule.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Trigger starts a sweep now, through the same overlap guard as scheduled
// runs.
func (s *Scheduler) Trigger() {
	job := s.cron.Entry(s.entry).WrappedJob
	s.manual.Add(1)
	go func() {
		defer s.manual.Done()
		job.Run()
	}()
}

// Stop halts the schedule and waits for a running sweep to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.manual.Wait()
}

// Next returns when the schedule fires next. Zero before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

func (s *Scheduler) runWithRetry() {
	for {
		log.Info().Msg("sweep_started")
		res, err := s.runner.Run(s.ctx)
		if err == nil {
			metrics.SweepRuns.WithLabelValues("ok").Inc()
			log.Info().Int("scanned", res.Scanned).Int("removed", len(res.Removed)).Msg("sweep_completed")
			return
		}
		if s.ctx.Err() != nil {
			return
		}

		metrics.SweepRuns.WithLabelValues("error").Inc()
		log.Error().Err(err).Dur("backoff", s.backoff).Msg("sweep_failed")
		if err := s.sleep(s.ctx, s.backoff); err != nil {
			return
		}
	}
}

// cronLogger routes cron's own messages through zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron_" + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron_" + msg)
}
