package loadtest

import (
	"sort"
	"time"
)

// Report aggregates a finished load test run.
type Report struct {
	Target            string  `json:"target"`
	TotalRequests     int     `json:"total_requests"`
	Succeeded         int     `json:"succeeded"`
	Failed            int     `json:"failed"`
	SuccessRate       float64 `json:"success_rate"`
	WallSeconds       float64 `json:"wall_seconds"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	Latency           Latency `json:"latency"`
}

// Latency holds response-time statistics in milliseconds, computed over
// successful requests only.
type Latency struct {
	MeanMs   float64 `json:"mean_ms"`
	MinMs    float64 `json:"min_ms"`
	MaxMs    float64 `json:"max_ms"`
	MedianMs float64 `json:"median_ms"`
	P95Ms    float64 `json:"p95_ms"`
	P99Ms    float64 `json:"p99_ms"`
}

func buildReport(opts Options, samples []sample, wall time.Duration) *Report {
	r := &Report{
		Target:        opts.Target,
		TotalRequests: len(samples),
		WallSeconds:   wall.Seconds(),
	}
	if wall > 0 {
		r.RequestsPerSecond = float64(len(samples)) / wall.Seconds()
	}

	var latencies []float64
	for _, s := range samples {
		if s.success {
			r.Succeeded++
			latencies = append(latencies, float64(s.latency)/float64(time.Millisecond))
		} else {
			r.Failed++
		}
	}
	if r.TotalRequests > 0 {
		r.SuccessRate = float64(r.Succeeded) / float64(r.TotalRequests)
	}

	if len(latencies) > 0 {
		sort.Float64s(latencies)
		var sum float64
		for _, l := range latencies {
			sum += l
		}
		r.Latency = Latency{
			MeanMs:   sum / float64(len(latencies)),
			MinMs:    latencies[0],
			MaxMs:    latencies[len(latencies)-1],
			MedianMs: percentile(latencies, 50),
			P95Ms:    percentile(latencies, 95),
			P99Ms:    percentile(latencies, 99),
		}
	}
	return r
}

// percentile computes the p-th percentile of sorted data by weighted
// interpolation between the two nearest ranks.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := p / 100 * float64(len(sorted)-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[lower]
	}
	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
