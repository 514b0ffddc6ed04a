package detect

import (
	"encoding/json"
	"strconv"
)

// confidenceKeys are the field aliases under which the vendor reports a
// detection's confidence, in lookup priority order.
var confidenceKeys = []string{"confidence", "score", "conf"}

// unwrap reduces a workflow response to the object the extractors operate
// on. A non-empty list response is reduced to its first element only:
// the service submits a single image per call, so any further batch
// elements are intentionally ignored rather than merged.
func unwrap(resp any) (map[string]any, bool) {
	if seq, ok := resp.([]any); ok && len(seq) > 0 {
		resp = seq[0]
	}
	obj, ok := resp.(map[string]any)
	return obj, ok
}

// collection locates the detections list inside an unwrapped response.
// The nested shape predictions.predictions is preferred; a bare
// predictions list is accepted; anything else yields nil.
func collection(obj map[string]any) []any {
	switch block := obj["predictions"].(type) {
	case map[string]any:
		if list, ok := block["predictions"].([]any); ok {
			return list
		}
	case []any:
		return block
	}
	return nil
}

// toFloat coerces a confidence value to float64. Numeric strings are
// accepted; anything non-numeric is reported as unparseable.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// MaxConfidence returns the highest detection confidence found in a
// workflow response, or 0.0 if the response holds no parseable
// detections. Detections whose confidence cannot be coerced are skipped
// without failing the extraction. The result is never negative.
func MaxConfidence(resp any) float64 {
	obj, ok := unwrap(resp)
	if !ok {
		return 0.0
	}

	maxConf := 0.0
	for _, entry := range collection(obj) {
		det, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		conf, ok := resolveConfidence(det)
		if !ok {
			continue
		}
		if conf > maxConf {
			maxConf = conf
		}
	}
	return maxConf
}

// resolveConfidence looks up the first present confidence alias and
// coerces it. A present-but-unparseable value disqualifies the detection;
// an absent value scores 0.0.
func resolveConfidence(det map[string]any) (float64, bool) {
	for _, key := range confidenceKeys {
		if v, present := det[key]; present {
			return toFloat(v)
		}
	}
	return 0.0, true
}

// Confidence resolves a single detection's confidence through the same
// alias chain MaxConfidence uses. The second return is false when the
// detection is not a mapping or its confidence cannot be coerced.
func Confidence(det any) (float64, bool) {
	m, ok := det.(map[string]any)
	if !ok {
		return 0, false
	}
	return resolveConfidence(m)
}

// Label returns a detection's class name, checking the "class" then
// "label" aliases, or "Unknown" when neither is present.
func Label(det any) string {
	m, ok := det.(map[string]any)
	if !ok {
		return "Unknown"
	}
	for _, key := range []string{"class", "label"} {
		if v, ok := m[key].(string); ok && v != "" {
			return v
		}
	}
	return "Unknown"
}

// Predictions returns the raw detections collection from a workflow
// response, or an empty list if none is present. Unlike MaxConfidence it
// performs no filtering or coercion: entries with unparseable confidence
// fields are preserved for downstream consumers.
func Predictions(resp any) []any {
	obj, ok := unwrap(resp)
	if !ok {
		return []any{}
	}
	if list := collection(obj); list != nil {
		return list
	}
	return []any{}
}
