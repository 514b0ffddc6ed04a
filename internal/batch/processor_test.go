package batch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService answers /predict like the real server, recording requests.
func fakeService(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/predict", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		handler(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func okPrediction(model string, conf float64, count int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"chosen_model":    model,
			"confidence":      conf,
			"detection_count": count,
		})
	}
}

func TestProcess_URLTargets(t *testing.T) {
	var calls atomic.Int32
	srv := fakeService(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req, "image_url")
		assert.Equal(t, true, req["use_cache"])

		okPrediction("rice", 0.88, 3)(w, r)
	})

	p := New(Options{BaseURL: srv.URL, Workers: 2, UseCache: true})
	results := p.Process(context.Background(), []Target{
		{URL: "https://img.example.com/a.jpg"},
		{URL: "https://img.example.com/b.jpg"},
	})

	require.Len(t, results, 2)
	assert.Equal(t, int32(2), calls.Load())
	for _, r := range results {
		assert.True(t, r.Success)
		assert.Equal(t, "rice", r.ChosenModel)
		assert.InDelta(t, 0.88, r.Confidence, 1e-9)
		assert.Equal(t, 3, r.DetectionCount)
		assert.GreaterOrEqual(t, r.ElapsedSeconds, 0.0)
	}
}

func TestProcess_FileTarget(t *testing.T) {
	img := filepath.Join(t.TempDir(), "field.jpg")
	require.NoError(t, os.WriteFile(img, []byte("fake-jpeg"), 0o644))

	srv := fakeService(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("image")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "field.jpg", header.Filename)

		okPrediction("wheat", 0.72, 1)(w, r)
	})

	p := New(Options{BaseURL: srv.URL, UseCache: true})
	results := p.Process(context.Background(), []Target{{Path: img}})

	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, "wheat", results[0].ChosenModel)
	assert.Equal(t, img, results[0].Target)
}

func TestProcess_NoCacheFormField(t *testing.T) {
	img := filepath.Join(t.TempDir(), "field.png")
	require.NoError(t, os.WriteFile(img, []byte("fake-png"), 0o644))

	srv := fakeService(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "false", r.FormValue("use_cache"))
		okPrediction("rice", 0.9, 1)(w, r)
	})

	p := New(Options{BaseURL: srv.URL, UseCache: false})
	results := p.Process(context.Background(), []Target{{Path: img}})
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
}

func TestProcess_FailuresDoNotAbortBatch(t *testing.T) {
	var calls atomic.Int32
	srv := fakeService(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, `{"error":"workflow execution failed"}`, http.StatusInternalServerError)
			return
		}
		okPrediction("rice", 0.8, 2)(w, r)
	})

	p := New(Options{BaseURL: srv.URL, Workers: 1, UseCache: true})
	results := p.Process(context.Background(), []Target{
		{URL: "https://img.example.com/bad.jpg"},
		{URL: "https://img.example.com/good.jpg"},
	})

	require.Len(t, results, 2)

	var succeeded, failed int
	for _, r := range results {
		if r.Success {
			succeeded++
		} else {
			failed++
			assert.Contains(t, r.Error, "HTTP 500")
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, failed)
}

func TestProcess_MissingFileRecordedAsFailure(t *testing.T) {
	srv := fakeService(t, okPrediction("rice", 0.8, 1))

	p := New(Options{BaseURL: srv.URL})
	results := p.Process(context.Background(), []Target{
		{Path: filepath.Join(t.TempDir(), "missing.jpg")},
	})

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "open")
}

func TestProcess_RespectsWorkerLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	srv := fakeService(t, func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		okPrediction("rice", 0.8, 1)(w, r)
	})

	targets := make([]Target, 12)
	for i := range targets {
		targets[i] = Target{URL: "https://img.example.com/x.jpg"}
	}

	p := New(Options{BaseURL: srv.URL, Workers: 3, UseCache: true})
	results := p.Process(context.Background(), targets)

	require.Len(t, results, 12)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestTargetName(t *testing.T) {
	assert.Equal(t, "a.jpg", Target{Path: "a.jpg"}.Name())
	assert.Equal(t, "https://x/y.jpg", Target{URL: "https://x/y.jpg"}.Name())
}
