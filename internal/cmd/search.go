package cmd

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vaisest/fakefurbot/internal/search"
)

var (
	searchAuthor   string
	searchUnscored bool
)

var searchCmd = &cobra.Command{
	Use:   "search [comment text]",
	Short: "Answer a comment locally without posting",
	Long: `Runs the parser, the safety gate and the catalog search on the given
comment text and prints the reply the bot would post. Nothing is posted and
nothing is marked processed.`,
	Example: `  furbot search "furbot search wolf rating:s"`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchAuthor, "author", "someone", "comment author shown in the greeting")
	searchCmd.Flags().BoolVar(&searchUnscored, "unscored", false, "skip the score floor")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, span := tracer.Start(cmd.Context(), "search")
	defer span.End()

	e, err := loadEnv(ctx, "search")
	if err != nil {
		return err
	}

	body := strings.Join(args, " ")
	parser := e.parser()
	if !parser.HasTrigger(body) {
		return fmt.Errorf("comment does not contain the trigger %q", e.profile.Bot.Trigger)
	}
	req := parser.Parse(body)

	orch := e.orchestrator(e.catalogClient())
	composer := e.composer(orch.ScoreFloor())
	out := cmd.OutOrStdout()

	if d := e.safetyGate().Check(req); !d.Allowed {
		log.Info().Str("reason", string(d.Reason)).Msg("search_rejected")
		fmt.Fprintln(out, composer.Rejection(searchAuthor, d))
		return nil
	}

	mode := search.Scored
	if searchUnscored {
		mode = search.Unscored
	}
	payload, err := orch.Search(ctx, req, mode)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}
	log.Info().
		Bool("found", payload.Found).
		Bool("fell_back", payload.FellBack).
		Int64("post_id", payload.PostID).
		Msg("search_completed")

	fmt.Fprintln(out, composer.Results(searchAuthor, payload))
	return nil
}
