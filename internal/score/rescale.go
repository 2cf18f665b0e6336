package score

// MaxRescaledConfidence caps confidence after multiplying by retrieval similarity
const MaxRescaledConfidence = 0.95

// Rescale combines a model-reported confidence with the retrieval similarity of
// the matching candidate: min(confidence * similarity, 0.95), clamped to [0,1].
func Rescale(confidence, similarity float64) float64 {
	v := clamp01(confidence) * clamp01(similarity)
	if v > MaxRescaledConfidence {
		return MaxRescaledConfidence
	}
	return v
}

// Clamp bounds a confidence to [0,1]
func Clamp(confidence float64) float64 {
	return clamp01(confidence)
}

func clamp01(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
