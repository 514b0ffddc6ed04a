package batch

// ItemResult records the outcome of one target.
type ItemResult struct {
	Target         string  `json:"target"`
	Success        bool    `json:"success"`
	ChosenModel    string  `json:"chosen_model,omitempty"`
	Confidence     float64 `json:"confidence,omitempty"`
	DetectionCount int     `json:"detection_count,omitempty"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	Error          string  `json:"error,omitempty"`
}

// Summary holds aggregate statistics over a batch run.
type Summary struct {
	Total               int            `json:"total"`
	Succeeded           int            `json:"succeeded"`
	Failed              int            `json:"failed"`
	SuccessRate         float64        `json:"success_rate"`
	ModelSelection      map[string]int `json:"model_selection,omitempty"`
	AvgConfidence       float64        `json:"avg_confidence,omitempty"`
	AvgElapsedSeconds   float64        `json:"avg_elapsed_seconds,omitempty"`
	TotalElapsedSeconds float64        `json:"total_elapsed_seconds,omitempty"`
}

// Summarize computes aggregate statistics from per-target results.
func Summarize(results []ItemResult) Summary {
	s := Summary{Total: len(results)}
	if len(results) == 0 {
		return s
	}

	var confSum, elapsedSum float64
	models := make(map[string]int)

	for _, r := range results {
		elapsedSum += r.ElapsedSeconds
		if !r.Success {
			s.Failed++
			continue
		}
		s.Succeeded++
		confSum += r.Confidence
		models[r.ChosenModel]++
	}

	s.SuccessRate = float64(s.Succeeded) / float64(s.Total)
	s.TotalElapsedSeconds = elapsedSum
	if s.Succeeded > 0 {
		s.ModelSelection = models
		s.AvgConfidence = confSum / float64(s.Succeeded)
		s.AvgElapsedSeconds = elapsedSum / float64(s.Total)
	}
	return s
}
