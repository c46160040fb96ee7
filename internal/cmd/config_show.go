package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vaisest/fakefurbot/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect operator configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved operator configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, span := tracer.Start(cmd.Context(), "config.show")
		defer span.End()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		key := maskValue(cfg.SecretsKey)
		if cfg.UsingDefaultSecretsKey() {
			key = "(generated default)"
		}
		metrics := cfg.MetricsAddr
		if metrics == "" {
			metrics = "(disabled)"
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Data directory:       %s\n", cfg.DataDir)
		fmt.Fprintf(out, "Secrets key:          %s\n", key)
		fmt.Fprintf(out, "Secrets DB:           %s\n", cfg.SecretsDBPath())
		fmt.Fprintf(out, "Profile:              %s\n", cfg.Profile)
		fmt.Fprintf(out, "Blacklist:            %s\n", cfg.BlacklistPath)
		fmt.Fprintf(out, "Aliased blacklist:    %s\n", cfg.AliasBlacklistPath)
		fmt.Fprintf(out, "Implications:         %s\n", cfg.ImplicationsPath)
		fmt.Fprintf(out, "Processed backend:    %s\n", cfg.ProcessedBackend)
		if cfg.ProcessedBackend == "redis" {
			fmt.Fprintf(out, "Redis:                %s (db %d)\n", cfg.RedisAddr, cfg.RedisDB)
		}
		fmt.Fprintf(out, "Metrics address:      %s\n", metrics)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
