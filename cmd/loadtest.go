package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harvestlabs/cropscout/internal/loadtest"
)

var (
	loadtestBaseURL    string
	loadtestTarget     string
	loadtestRequests   int
	loadtestConcurrent int
	loadtestRPS        float64
	loadtestImageURL   string
	loadtestOutput     string
)

var loadtestCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "Measure latency of a running server under concurrent load",
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := loadtest.Run(cmd.Context(), loadtest.Options{
			BaseURL:     loadtestBaseURL,
			Target:      loadtestTarget,
			Requests:    loadtestRequests,
			Concurrency: loadtestConcurrent,
			RPS:         loadtestRPS,
			ImageURL:    loadtestImageURL,
		})
		if err != nil {
			return err
		}

		if loadtestOutput != "" {
			data, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return eris.Wrap(err, "loadtest: marshal report")
			}
			if err := os.WriteFile(loadtestOutput, data, 0o644); err != nil {
				return eris.Wrapf(err, "loadtest: write %s", loadtestOutput)
			}
			zap.L().Info("report written", zap.String("path", loadtestOutput))
		}

		return printJSON(report)
	},
}

func init() {
	loadtestCmd.Flags().StringVar(&loadtestBaseURL, "base-url", "http://localhost:5000", "prediction server base URL")
	loadtestCmd.Flags().StringVar(&loadtestTarget, "target", loadtest.TargetHealth, "endpoint to exercise: health or predict")
	loadtestCmd.Flags().IntVar(&loadtestRequests, "requests", 100, "total requests to send")
	loadtestCmd.Flags().IntVar(&loadtestConcurrent, "concurrent", 10, "concurrent requests")
	loadtestCmd.Flags().Float64Var(&loadtestRPS, "rps", 0, "requests per second cap (0 = uncapped)")
	loadtestCmd.Flags().StringVar(&loadtestImageURL, "image-url", "", "image URL for predict target")
	loadtestCmd.Flags().StringVar(&loadtestOutput, "output", "", "write the report to a JSON file")
	rootCmd.AddCommand(loadtestCmd)
}
