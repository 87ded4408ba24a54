package pipeline

// MeanConfidence returns the arithmetic mean of the given confidences,
// zero for an empty slice. Aggregation is commutative, so analyst ordering
// never affects the gate.
func MeanConfidence(confidences []float64) float64 {
	if len(confidences) == 0 {
		return 0
	}
	var sum float64
	for _, c := range confidences {
		sum += c
	}
	return sum / float64(len(confidences))
}

// PassesGate reports whether the aggregate confidence clears the threshold.
func PassesGate(mean, threshold float64) bool {
	return mean >= threshold
}
