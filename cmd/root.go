package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-api/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "lead-api",
	Short: "Lead ingestion and attribution pipeline",
	Long:  "Ingests quiz-funnel lead submissions, deduplicates contacts and leads, waits for compliance attribution tokens, and forwards composed payloads to the per-funnel CRM webhook.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
