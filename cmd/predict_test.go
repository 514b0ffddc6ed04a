package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvestlabs/cropscout/internal/detect"
	"github.com/harvestlabs/cropscout/internal/service"
)

func samplePrediction() *service.Prediction {
	return &service.Prediction{
		ChosenModel: detect.ModelWheat,
		Confidence:  0.8731,
		Detections: []any{
			map[string]any{"class": "wheat", "confidence": 0.8731},
			map[string]any{"class": "wheat", "confidence": 0.51},
			map[string]any{"label": "chaff", "confidence": "oops"},
		},
		DetectionCount: 3,
		Raw:            map[string]any{"predictions": []any{}},
		Metadata: service.Metadata{
			RiceConfidence:         0.31,
			WheatConfidence:        0.8731,
			MinConfidenceThreshold: 0.4,
			ConfidenceMargin:       0.02,
		},
	}
}

func TestRenderPrediction_Summary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderPrediction(&buf, samplePrediction(), "summary"))

	out := buf.String()
	assert.Contains(t, out, "Chosen model: wheat")
	assert.Contains(t, out, "Confidence: 0.8731")
	assert.Contains(t, out, "Detections found: 3")
	assert.Contains(t, out, "wheat (confidence: 0.8731)")
}

func TestRenderPrediction_Detailed(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderPrediction(&buf, samplePrediction(), "detailed"))

	out := buf.String()
	assert.Contains(t, out, "Rice confidence: 0.3100")
	assert.Contains(t, out, "Wheat confidence: 0.8731")
	assert.Contains(t, out, "chaff (confidence: oops)")
	assert.Contains(t, out, "Raw result:")
}

func TestRenderPrediction_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderPrediction(&buf, samplePrediction(), "json"))

	var pred service.Prediction
	require.NoError(t, json.Unmarshal(buf.Bytes(), &pred))
	assert.Equal(t, detect.ModelWheat, pred.ChosenModel)
	assert.Equal(t, 0.8731, pred.Confidence)
}

func TestTopDetection(t *testing.T) {
	dets := []any{
		map[string]any{"class": "a", "confidence": 0.2},
		map[string]any{"class": "b", "confidence": 0.9},
		map[string]any{"class": "c", "confidence": "bad"},
	}

	top, ok := topDetection(dets)
	require.True(t, ok)
	assert.Equal(t, "b", detect.Label(top))
}

func TestTopDetection_Empty(t *testing.T) {
	_, ok := topDetection(nil)
	assert.False(t, ok)

	_, ok = topDetection([]any{map[string]any{"confidence": "bad"}})
	assert.False(t, ok)
}

func TestConfString(t *testing.T) {
	assert.Equal(t, "0.9000", confString(map[string]any{"confidence": 0.9}))
	assert.Equal(t, "oops", confString(map[string]any{"score": "oops"}))
	assert.Equal(t, "N/A", confString(map[string]any{"class": "rice"}))
	assert.Equal(t, "N/A", confString("not a map"))
}
