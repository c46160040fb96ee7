package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vaisest/fakefurbot/internal/profile"
)

var (
	initFile  string
	initForce bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter furbot.yaml",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, span := tracer.Start(cmd.Context(), "init")
		defer span.End()

		if !initForce {
			if _, err := os.Stat(initFile); err == nil {
				return fmt.Errorf("%s already exists (use --force to overwrite)", initFile)
			} else if !errors.Is(err, fs.ErrNotExist) {
				return err
			}
		}
		if err := os.WriteFile(initFile, []byte(profile.Template), 0o600); err != nil {
			return fmt.Errorf("writing %s: %w", initFile, err)
		}

		log.Info().Str("file", initFile).Msg("profile_written")
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Wrote %s\n", initFile)
		fmt.Fprintln(out, "  Edit bot.user_agent and bot.operator, then run 'furbot doctor'.")
		return nil
	},
}

func init() {
	initCmd.Flags().StringVarP(&initFile, "file", "f", "furbot.yaml", "profile path to write")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing file")
	rootCmd.AddCommand(initCmd)
}
