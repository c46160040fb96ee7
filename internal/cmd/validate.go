package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vaisest/fakefurbot/internal/config"
	"github.com/vaisest/fakefurbot/internal/profile"
	"github.com/vaisest/fakefurbot/internal/safety"
	"github.com/vaisest/fakefurbot/internal/tags"
)

var (
	validateFile     string
	validateWithTags bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the bot profile",
	Long:  "Validates furbot.yaml against its schema and, with --tags, loads the tag files.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := tracer.Start(cmd.Context(), "validate")
		defer span.End()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if validateFile == "" {
			validateFile = cfg.Profile
		}

		out := cmd.OutOrStdout()
		prof, err := profile.Load(ctx, validateFile)
		if err != nil {
			log.Error().Err(err).Str("file", validateFile).Msg("profile_validation_failed")
			fmt.Fprintf(cmd.ErrOrStderr(), "✗ Validation failed: %s\n", validateFile)
			return fmt.Errorf("validation failed: %w", err)
		}

		fmt.Fprintf(out, "✓ Profile valid: %s\n", validateFile)
		fmt.Fprintf(out, "  Subreddit: r/%s\n", prof.Bot.Subreddit)
		fmt.Fprintf(out, "  Trigger:   %q\n", prof.Bot.Trigger)
		fmt.Fprintf(out, "  Sweep:     %v\n", prof.Sweep.IsEnabled())

		if !validateWithTags {
			return nil
		}
		cat, err := tags.Load(cfg.TagPaths())
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "✗ Tag files failed to load")
			return err
		}
		budget := safety.UnratedBudget(prof.Search.QueryTermLimit, cat.Base.Len())
		if budget <= 0 {
			return fmt.Errorf("base blacklist has %d tags, leaving no room under the %d term limit",
				cat.Base.Len(), prof.Search.QueryTermLimit)
		}
		fmt.Fprintf(out, "✓ Tag files: %d base, %d aliased, %d implicating tags (%d tags per unrated request)\n",
			cat.Base.Len(), cat.Aliased.Len(), len(cat.Implications), budget)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateFile, "file", "f", "", "profile to validate (default: profile from config)")
	validateCmd.Flags().BoolVar(&validateWithTags, "tags", false, "also load and check the tag files")
}
