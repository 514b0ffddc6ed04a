// Package service orchestrates one prediction: it submits an image to
// the rice and wheat workflows, arbitrates between their responses, and
// assembles the response body shared by the HTTP API and the CLI.
package service

import (
	"context"
	"math"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/harvestlabs/cropscout/internal/config"
	"github.com/harvestlabs/cropscout/internal/detect"
	"github.com/harvestlabs/cropscout/pkg/roboflow"
)

// Prediction is the full result of arbitrating one image.
type Prediction struct {
	ChosenModel    detect.Model `json:"chosen_model"`
	Confidence     float64      `json:"confidence"`
	Detections     []any        `json:"detections"`
	DetectionCount int          `json:"detection_count"`
	Raw            any          `json:"raw"`
	Metadata       Metadata     `json:"metadata"`
}

// Metadata reports both models' confidences and the policy in force.
type Metadata struct {
	RiceConfidence         float64 `json:"rice_confidence"`
	WheatConfidence        float64 `json:"wheat_confidence"`
	MinConfidenceThreshold float64 `json:"min_confidence_threshold"`
	ConfidenceMargin       float64 `json:"confidence_margin"`
}

// Service runs both detection workflows and arbitrates the results.
// It is stateless and safe for concurrent use.
type Service struct {
	client roboflow.Client
	cfg    config.RoboflowConfig
	policy detect.Policy
}

// New creates a Service.
func New(client roboflow.Client, cfg config.RoboflowConfig, policy detect.Policy) *Service {
	return &Service{client: client, cfg: cfg, policy: policy}
}

// Policy returns the arbitration policy in force.
func (s *Service) Policy() detect.Policy {
	return s.policy
}

// Predict runs the rice and wheat workflows on one image and arbitrates.
// The two invocations are independent, so they are issued concurrently;
// arbitration only consumes the resolved values. Any workflow failure
// propagates to the caller.
func (s *Service) Predict(ctx context.Context, image string, useCache bool) (*Prediction, error) {
	var riceResp, wheatResp any

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		riceResp, err = s.runWorkflow(gctx, s.cfg.RiceWorkflowID, image, useCache)
		return err
	})
	g.Go(func() error {
		var err error
		wheatResp, err = s.runWorkflow(gctx, s.cfg.WheatWorkflowID, image, useCache)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := detect.SelectBest(riceResp, wheatResp, s.policy)
	detections := detect.Predictions(result.Source)

	zap.L().Info("prediction complete",
		zap.String("chosen_model", string(result.Chosen)),
		zap.Float64("confidence", result.Confidence),
		zap.Int("detections", len(detections)),
	)

	return &Prediction{
		ChosenModel:    result.Chosen,
		Confidence:     round4(result.Confidence),
		Detections:     detections,
		DetectionCount: len(detections),
		Raw:            result.Source,
		Metadata: Metadata{
			RiceConfidence:         round4(detect.MaxConfidence(riceResp)),
			WheatConfidence:        round4(detect.MaxConfidence(wheatResp)),
			MinConfidenceThreshold: s.policy.MinConfidence,
			ConfidenceMargin:       s.policy.Margin,
		},
	}, nil
}

func (s *Service) runWorkflow(ctx context.Context, workflowID, image string, useCache bool) (any, error) {
	zap.L().Debug("running workflow",
		zap.String("workflow_id", workflowID),
		zap.String("image", image),
	)
	return s.client.RunWorkflow(ctx, roboflow.RunWorkflowRequest{
		WorkspaceName: s.cfg.Workspace,
		WorkflowID:    workflowID,
		Image:         image,
		UseCache:      useCache,
	})
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
