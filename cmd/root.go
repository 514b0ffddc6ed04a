package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harvestlabs/cropscout/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "cropscout",
	Short: "Rice and wheat detection over Roboflow hosted workflows",
	Long:  "Submits an image to the rice and wheat detection workflows, compares their confidences, and reports whichever model is more confident.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		if missing := cfg.Validate(); len(missing) > 0 {
			zap.L().Warn("incomplete roboflow configuration",
				zap.Strings("missing", missing),
			)
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
