package alphafold

import (
	"encoding/json"
	"math"
)

// MaxPAE is the ceiling of the predicted aligned error scale in angstroms.
const MaxPAE = 31.0

// ParseConfidence derives a confidence score from a predicted aligned error
// document. Both the object form and the single-element array form served
// by the database are accepted. Malformed or empty documents score 0.
func ParseConfidence(data []byte) float64 {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0
	}
	if list, ok := doc.([]any); ok {
		if len(list) == 0 {
			return 0
		}
		doc = list[0]
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return 0
	}
	return ConfidenceScore(obj["predicted_aligned_error"])
}

// ConfidenceScore computes 1 - max(matrix)/31 clamped to [0, 1]. The matrix
// must be a non-empty list of non-empty numeric rows; anything else scores 0.
func ConfidenceScore(matrix any) float64 {
	rows, ok := matrix.([]any)
	if !ok || len(rows) == 0 {
		return 0
	}

	peak := math.Inf(-1)
	for _, row := range rows {
		cells, ok := row.([]any)
		if !ok || len(cells) == 0 {
			return 0
		}
		for _, cell := range cells {
			v, ok := cell.(float64)
			if !ok || math.IsNaN(v) {
				return 0
			}
			peak = max(peak, v)
		}
	}

	return clamp(1.0 - peak/MaxPAE)
}

func clamp(v float64) float64 {
	return min(max(v, 0), 1)
}
