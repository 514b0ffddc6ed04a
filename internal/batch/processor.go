// Package batch drives many prediction requests against a running
// cropscout service with bounded concurrency.
package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Target is one image to process: a local file path or a remote URL.
type Target struct {
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
	URL  string `yaml:"url,omitempty" json:"url,omitempty"`
}

// Name returns the identifier used in results and logs.
func (t Target) Name() string {
	if t.URL != "" {
		return t.URL
	}
	return t.Path
}

// Options configures a Processor.
type Options struct {
	BaseURL  string
	Workers  int
	RPS      float64 // requests per second cap; 0 means uncapped
	UseCache bool
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Processor posts targets to a service's /predict endpoint.
type Processor struct {
	opts    Options
	http    *http.Client
	limiter *rate.Limiter
}

// New creates a Processor.
func New(opts Options) *Processor {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	var limiter *rate.Limiter
	if opts.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), 1)
	}
	return &Processor{opts: opts, http: hc, limiter: limiter}
}

// Process runs all targets with bounded concurrency and returns one
// result per target, in completion order. Individual failures are
// recorded, never fatal; only context cancellation stops the batch.
func (p *Processor) Process(ctx context.Context, targets []Target) []ItemResult {
	zap.L().Info("processing batch",
		zap.Int("targets", len(targets)),
		zap.Int("workers", p.opts.Workers),
	)

	var mu sync.Mutex
	results := make([]ItemResult, 0, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)

	for _, target := range targets {
		target := target
		g.Go(func() error {
			res := p.processOne(gctx, target)

			mu.Lock()
			results = append(results, res)
			mu.Unlock()

			if res.Success {
				zap.L().Info("target processed",
					zap.String("target", res.Target),
					zap.String("chosen_model", res.ChosenModel),
					zap.Float64("confidence", res.Confidence),
				)
			} else {
				zap.L().Warn("target failed",
					zap.String("target", res.Target),
					zap.String("error", res.Error),
				)
			}
			return nil
		})
	}

	_ = g.Wait()
	return results
}

func (p *Processor) processOne(ctx context.Context, target Target) ItemResult {
	res := ItemResult{Target: target.Name()}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			res.Error = err.Error()
			return res
		}
	}

	start := time.Now()
	var (
		pred *predictResponse
		err  error
	)
	if target.URL != "" {
		pred, err = p.predictURL(ctx, target.URL)
	} else {
		pred, err = p.predictFile(ctx, target.Path)
	}
	res.ElapsedSeconds = time.Since(start).Seconds()

	if err != nil {
		res.Error = err.Error()
		return res
	}

	res.Success = true
	res.ChosenModel = pred.ChosenModel
	res.Confidence = pred.Confidence
	res.DetectionCount = pred.DetectionCount
	return res
}

// predictResponse is the subset of the service response the batch tool
// reads back.
type predictResponse struct {
	ChosenModel    string  `json:"chosen_model"`
	Confidence     float64 `json:"confidence"`
	DetectionCount int     `json:"detection_count"`
}

func (p *Processor) predictFile(ctx context.Context, path string) (*predictResponse, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: open %s", path)
	}
	defer file.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", filepath.Base(path))
	if err != nil {
		return nil, eris.Wrap(err, "batch: create form file")
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, eris.Wrap(err, "batch: copy image")
	}
	if !p.opts.UseCache {
		if err := mw.WriteField("use_cache", "false"); err != nil {
			return nil, eris.Wrap(err, "batch: write cache field")
		}
	}
	if err := mw.Close(); err != nil {
		return nil, eris.Wrap(err, "batch: close form")
	}

	return p.post(ctx, mw.FormDataContentType(), &buf)
}

func (p *Processor) predictURL(ctx context.Context, imageURL string) (*predictResponse, error) {
	body, err := json.Marshal(map[string]any{
		"image_url": imageURL,
		"use_cache": p.opts.UseCache,
	})
	if err != nil {
		return nil, eris.Wrap(err, "batch: marshal request")
	}
	return p.post(ctx, "application/json", bytes.NewReader(body))
}

func (p *Processor) post(ctx context.Context, contentType string, body io.Reader) (*predictResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.opts.BaseURL+"/predict", body)
	if err != nil {
		return nil, eris.Wrap(err, "batch: create request")
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "batch: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "batch: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("batch: HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var pred predictResponse
	if err := json.Unmarshal(respBody, &pred); err != nil {
		return nil, eris.Wrap(err, "batch: unmarshal response")
	}
	return &pred, nil
}
