package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vaisest/fakefurbot/internal/otel"
)

var tracer = otel.Tracer("github.com/vaisest/fakefurbot/internal/cmd")

// globals holds the persistent flags shared by every subcommand.
var globals struct {
	configFile string
	verbose    bool
	logLevel   string
	logFormat  string
	tracing    bool
}

// flushTraces is set once tracing is initialized; Execute calls it on exit.
var flushTraces func(context.Context) error

var rootCmd = &cobra.Command{
	Use:   "furbot",
	Short: "Catalog search bot for Reddit comment threads",
	Long: `furbot watches a subreddit's comment stream and answers
"furbot search <tags>" with a random, well-scored post from the e621 catalog.

It keeps blacklisted tags out of every query, deduplicates implied tags in
its replies, and periodically deletes its own comments that were voted
below zero.`,
	SilenceUsage:      true,
	PersistentPreRunE: prepare,
}

func init() {
	cobra.OnInitialize(readOperatorConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&globals.configFile, "config", "", "operator config file (default: furbot.config.yaml in . or ~/.furbot)")
	pf.BoolVarP(&globals.verbose, "verbose", "v", false, "debug logging and tracing")
	pf.StringVar(&globals.logLevel, "log-level", "info", "debug, info, warn or error")
	pf.StringVar(&globals.logFormat, "log-format", "console", "console or json")
	pf.BoolVar(&globals.tracing, "otel", false, "print OpenTelemetry spans to stdout")

	for key, flag := range map[string]string{
		"verbose":    "verbose",
		"otel":       "otel",
		"log_level":  "log-level",
		"log_format": "log-format",
	} {
		_ = viper.BindPFlag(key, pf.Lookup(flag))
	}
}

func prepare(cmd *cobra.Command, args []string) error {
	log.Logger = newLogger(os.Stderr, globals.logFormat)
	zerolog.SetGlobalLevel(logLevel(globals.logLevel, globals.verbose))

	enabled := globals.tracing || globals.verbose || os.Getenv("FURBOT_OTEL_ENABLED") == "true"
	shutdown, err := otel.Setup("furbot", resolvedVersion(), enabled)
	if err != nil {
		return fmt.Errorf("initializing OpenTelemetry: %w", err)
	}
	flushTraces = shutdown
	return nil
}

// newLogger writes to w; stdout is left to replies and reports.
func newLogger(w io.Writer, format string) zerolog.Logger {
	if format != "json" {
		w = zerolog.ConsoleWriter{Out: w}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

// logLevel parses name, falling back to info. verbose forces debug.
func logLevel(name string, verbose bool) zerolog.Level {
	if verbose {
		return zerolog.DebugLevel
	}
	level, err := zerolog.ParseLevel(name)
	if err != nil || name == "" {
		return zerolog.InfoLevel
	}
	return level
}

func readOperatorConfig() {
	viper.SetEnvPrefix("FURBOT")
	viper.AutomaticEnv()

	if globals.configFile != "" {
		viper.SetConfigFile(globals.configFile)
	} else {
		viper.SetConfigName("furbot.config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".furbot"))
		}
	}
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Warn().Err(err).Msg("operator_config_unreadable")
		}
	}
}

// Execute runs the CLI.
func Execute() error {
	err := rootCmd.Execute()
	if flushTraces != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = flushTraces(ctx)
	}
	return err
}
