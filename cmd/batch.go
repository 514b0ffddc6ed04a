package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harvestlabs/cropscout/internal/batch"
)

var (
	batchBaseURL  string
	batchDir      string
	batchFileList string
	batchURLList  string
	batchManifest string
	batchWorkers  int
	batchRPS      float64
	batchNoCache  bool
	batchOutput   string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run predictions for many images against a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		targets, err := collectTargets()
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			return eris.New("batch: no targets found")
		}

		workers := batchWorkers
		if workers <= 0 {
			workers = cfg.Batch.Workers
		}

		proc := batch.New(batch.Options{
			BaseURL:  batchBaseURL,
			Workers:  workers,
			RPS:      batchRPS,
			UseCache: !batchNoCache,
		})

		results := proc.Process(cmd.Context(), targets)
		summary := batch.Summarize(results)

		if batchOutput != "" {
			if err := batch.WriteResults(batchOutput, results); err != nil {
				return err
			}
			zap.L().Info("results written", zap.String("path", batchOutput))
		}

		fmt.Printf("Processed %d targets: %d succeeded, %d failed (%.1f%% success)\n",
			summary.Total, summary.Succeeded, summary.Failed, summary.SuccessRate*100)
		for model, count := range summary.ModelSelection {
			fmt.Printf("  %s: %d\n", model, count)
		}
		if summary.Succeeded > 0 {
			fmt.Printf("Average confidence: %.4f\n", summary.AvgConfidence)
			fmt.Printf("Average elapsed: %.2fs\n", summary.AvgElapsedSeconds)
		}

		if summary.Failed > 0 {
			return eris.Errorf("batch: %d of %d targets failed", summary.Failed, summary.Total)
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchBaseURL, "base-url", "http://localhost:5000", "prediction server base URL")
	batchCmd.Flags().StringVar(&batchDir, "dir", "", "directory of images to process")
	batchCmd.Flags().StringVar(&batchFileList, "file-list", "", "text file of image paths, one per line")
	batchCmd.Flags().StringVar(&batchURLList, "url-list", "", "text file of image URLs, one per line")
	batchCmd.Flags().StringVar(&batchManifest, "manifest", "", "YAML manifest of images")
	batchCmd.Flags().IntVar(&batchWorkers, "workers", 0, "concurrent workers (default from config)")
	batchCmd.Flags().Float64Var(&batchRPS, "rps", 0, "requests per second cap (0 = uncapped)")
	batchCmd.Flags().BoolVar(&batchNoCache, "no-cache", false, "bypass the vendor's response cache")
	batchCmd.Flags().StringVar(&batchOutput, "output", "", "write results to a .json or .csv file")
	rootCmd.AddCommand(batchCmd)
}

// collectTargets gathers targets from every source flag that was set.
func collectTargets() ([]batch.Target, error) {
	if batchDir == "" && batchFileList == "" && batchURLList == "" && batchManifest == "" {
		return nil, eris.New("batch: one of --dir, --file-list, --url-list, or --manifest is required")
	}

	var targets []batch.Target
	for _, src := range []struct {
		arg  string
		read func(string) ([]batch.Target, error)
	}{
		{batchDir, batch.CollectDir},
		{batchFileList, batch.ReadFileList},
		{batchURLList, batch.ReadURLList},
		{batchManifest, batch.ReadManifest},
	} {
		if src.arg == "" {
			continue
		}
		found, err := src.read(src.arg)
		if err != nil {
			return nil, err
		}
		targets = append(targets, found...)
	}
	return targets, nil
}

// printJSON is shared by commands that dump a report to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
