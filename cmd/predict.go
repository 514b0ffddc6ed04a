package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/harvestlabs/cropscout/internal/detect"
	"github.com/harvestlabs/cropscout/internal/service"
)

var (
	predictImage   string
	predictOutput  string
	predictNoCache bool
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Run rice/wheat detection on a single image",
	RunE: func(cmd *cobra.Command, args []string) error {
		if predictOutput != "summary" && predictOutput != "json" && predictOutput != "detailed" {
			return eris.Errorf("unknown output format %q (want summary, json, or detailed)", predictOutput)
		}
		if _, err := os.Stat(predictImage); err != nil {
			return eris.Wrapf(err, "image file not found: %s", predictImage)
		}

		svc, err := initService()
		if err != nil {
			return err
		}

		pred, err := svc.Predict(cmd.Context(), predictImage, !predictNoCache)
		if err != nil {
			return eris.Wrap(err, "predict")
		}

		return renderPrediction(os.Stdout, pred, predictOutput)
	},
}

func init() {
	predictCmd.Flags().StringVar(&predictImage, "image", "", "path to image file (required)")
	predictCmd.Flags().StringVar(&predictOutput, "output", "summary", "output format: summary, json, or detailed")
	predictCmd.Flags().BoolVar(&predictNoCache, "no-cache", false, "bypass the vendor's response cache")
	_ = predictCmd.MarkFlagRequired("image")
	rootCmd.AddCommand(predictCmd)
}

func renderPrediction(w io.Writer, pred *service.Prediction, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(pred)

	case "detailed":
		fmt.Fprintf(w, "Rice confidence: %.4f\n", pred.Metadata.RiceConfidence)
		fmt.Fprintf(w, "Wheat confidence: %.4f\n", pred.Metadata.WheatConfidence)
		fmt.Fprintf(w, "Chosen model: %s\n", pred.ChosenModel)
		fmt.Fprintf(w, "Max confidence: %.4f\n", pred.Confidence)
		fmt.Fprintf(w, "Detection count: %d\n", pred.DetectionCount)
		fmt.Fprintln(w, "\nDetections:")
		for i, det := range pred.Detections {
			fmt.Fprintf(w, "  %d. %s (confidence: %s)\n", i+1, detect.Label(det), confString(det))
		}
		fmt.Fprintln(w, "\nRaw result:")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(pred.Raw)

	default: // summary
		fmt.Fprintf(w, "Chosen model: %s\n", pred.ChosenModel)
		fmt.Fprintf(w, "Confidence: %.4f\n", pred.Confidence)
		fmt.Fprintf(w, "Detections found: %d\n", pred.DetectionCount)
		if top, ok := topDetection(pred.Detections); ok {
			fmt.Fprintln(w, "Top detection:")
			fmt.Fprintf(w, "  - %s (confidence: %s)\n", detect.Label(top), confString(top))
		}
		return nil
	}
}

// topDetection picks the detection with the highest parseable confidence.
func topDetection(dets []any) (any, bool) {
	var (
		best     any
		bestConf = -1.0
	)
	for _, det := range dets {
		conf, ok := detect.Confidence(det)
		if !ok {
			continue
		}
		if conf > bestConf {
			best = det
			bestConf = conf
		}
	}
	return best, best != nil
}

// confString renders a detection's confidence for display, preserving
// the vendor's raw value when it cannot be parsed and showing N/A when
// no confidence field is present at all.
func confString(det any) string {
	m, ok := det.(map[string]any)
	if !ok {
		return "N/A"
	}
	for _, key := range []string{"confidence", "score", "conf"} {
		v, present := m[key]
		if !present {
			continue
		}
		if conf, ok := detect.Confidence(det); ok {
			return fmt.Sprintf("%.4f", conf)
		}
		return fmt.Sprintf("%v", v)
	}
	return "N/A"
}
