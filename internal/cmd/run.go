package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vaisest/fakefurbot/internal/bot"
	"github.com/vaisest/fakefurbot/internal/gate"
	"github.com/vaisest/fakefurbot/internal/platform"
	"github.com/vaisest/fakefurbot/internal/processed"
	"github.com/vaisest/fakefurbot/internal/server"
	"github.com/vaisest/fakefurbot/internal/sweep"
)

var runNoSweep bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bot",
	Long: `Runs the comment loop against the configured subreddit until interrupted.

When the profile enables it, the negative-score sweep runs once at startup
and then on its schedule. When metrics_addr is set, /health and /metrics
are served on it.`,
	RunE: runBot,
}

func init() {
	runCmd.Flags().BoolVar(&runNoSweep, "no-sweep", false, "do not run the negative-score sweep")
	rootCmd.AddCommand(runCmd)
}

func runBot(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, span := tracer.Start(ctx, "run")
	defer span.End()

	e, err := loadEnv(ctx, "run")
	if err != nil {
		return err
	}

	client, err := e.platformClient(ctx)
	if err != nil {
		return fmt.Errorf("creating platform client: %w", err)
	}

	set, err := processed.Open(ctx, e.cfg.ProcessedOptions())
	if err != nil {
		return fmt.Errorf("opening processed set: %w", err)
	}
	defer set.Close()

	prof := e.profile
	parser := e.parser()
	orch := e.orchestrator(e.catalogClient())

	proc := &bot.Processor{
		Gate:      gate.New(set, client, parser, client.Username(), prof.Bot.AckPhrase),
		Parser:    parser,
		Safety:    e.safetyGate(),
		Search:    orch,
		Composer:  e.composer(orch.ScoreFloor()),
		Replier:   client,
		Processed: set,
		Cooldown:  prof.Loop.ReplyCooldown.Std(),
	}
	sup := &bot.Supervisor{
		NewSource: func() bot.CommentSource {
			return platform.NewFeed(client, prof.Bot.Subreddit,
				platform.WithPollInterval(prof.Loop.PollInterval.Std()))
		},
		Handler: proc,
		Backoff: bot.Backoff{
			ServerError: prof.Loop.Backoff.ServerError.Std(),
			APIError:    prof.Loop.Backoff.APIError.Std(),
			Unknown:     prof.Loop.Backoff.Unknown.Std(),
		},
	}

	if prof.Sweep.IsEnabled() && !runNoSweep {
		// The sweep gets its own session so its deletes never wait on the
		// comment loop's token or rate limiter.
		account, err := e.platformClient(ctx)
		if err != nil {
			return fmt.Errorf("creating sweep platform client: %w", err)
		}
		sched, err := sweep.NewScheduler(ctx,
			&sweep.Sweeper{Account: account, Username: account.Username(), PageSize: prof.Sweep.PageSize},
			prof.Sweep.Schedule,
			sweep.WithErrorBackoff(prof.Sweep.ErrorBackoff.Std()))
		if err != nil {
			return err
		}
		sched.Start()
		sched.Trigger()
		defer sched.Stop()
		log.Info().Str("schedule", prof.Sweep.Schedule).Time("next", sched.Next()).Msg("sweep_scheduled")
	}

	if addr := e.cfg.MetricsAddr; addr != "" {
		srv := server.NewServer(resolvedVersion(),
			server.WithCheck("processed", func(ctx context.Context) error {
				_, err := set.Contains(ctx, "health")
				return err
			}))
		go func() {
			if err := srv.ListenAndServe(ctx, addr); err != nil {
				log.Error().Err(err).Str("addr", addr).Msg("status_server_failed")
			}
		}()
	}

	log.Info().
		Str("subreddit", prof.Bot.Subreddit).
		Str("username", client.Username()).
		Str("processed_backend", e.cfg.ProcessedBackend).
		Str("version", resolvedVersion()).
		Msg("furbot_started")

	return sup.Run(ctx)
}
