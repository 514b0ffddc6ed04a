// Package loadtest fires concurrent requests at a running cropscout
// service and reports latency statistics.
package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Target selects which endpoint the load test exercises.
const (
	TargetHealth  = "health"
	TargetPredict = "predict"
)

// Options configures a load test run.
type Options struct {
	BaseURL     string
	Target      string
	Requests    int
	Concurrency int
	RPS         float64 // requests per second cap; 0 means uncapped
	// ImageURL is the image submitted on every predict request.
	ImageURL string
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// sample records one request's outcome.
type sample struct {
	success bool
	status  int
	latency time.Duration
}

// Run executes the load test and aggregates a report.
func Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.Target != TargetHealth && opts.Target != TargetPredict {
		return nil, eris.Errorf("loadtest: unknown target %q", opts.Target)
	}
	if opts.Target == TargetPredict && opts.ImageURL == "" {
		return nil, eris.New("loadtest: predict target requires an image URL")
	}
	if opts.Requests <= 0 {
		opts.Requests = 100
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 10
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	var limiter *rate.Limiter
	if opts.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), 1)
	}

	zap.L().Info("starting load test",
		zap.String("target", opts.Target),
		zap.Int("requests", opts.Requests),
		zap.Int("concurrency", opts.Concurrency),
	)

	var mu sync.Mutex
	samples := make([]sample, 0, opts.Requests)

	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i := 0; i < opts.Requests; i++ {
		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(gctx); err != nil {
					return nil
				}
			}
			s := fire(gctx, hc, opts)
			mu.Lock()
			samples = append(samples, s)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	wall := time.Since(start)
	return buildReport(opts, samples, wall), nil
}

// fire sends a single request and measures it. Errors are recorded as
// failed samples, never propagated: a load test wants the failure rate.
func fire(ctx context.Context, hc *http.Client, opts Options) sample {
	var (
		req *http.Request
		err error
	)

	switch opts.Target {
	case TargetHealth:
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, opts.BaseURL+"/health", nil)
	case TargetPredict:
		var body []byte
		body, err = json.Marshal(map[string]any{
			"image_url": opts.ImageURL,
			"use_cache": true,
		})
		if err == nil {
			req, err = http.NewRequestWithContext(ctx, http.MethodPost, opts.BaseURL+"/predict", bytes.NewReader(body))
			if req != nil {
				req.Header.Set("Content-Type", "application/json")
			}
		}
	}
	if err != nil {
		return sample{}
	}

	start := time.Now()
	resp, err := hc.Do(req)
	latency := time.Since(start)
	if err != nil {
		return sample{latency: latency}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	return sample{
		success: resp.StatusCode >= 200 && resp.StatusCode < 300,
		status:  resp.StatusCode,
		latency: latency,
	}
}
