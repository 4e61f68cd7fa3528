package metacog

import (
	"math"
	"sort"

	"github.com/forgekeeper/agentcore/domain"
)

const numBuckets = 5 // 20% buckets: [0,0.2) .. [0.8,1.0]

// ExpectedCalibrationError buckets records by predicted confidence into
// five 20%-wide buckets and returns the average, across non-empty buckets,
// of |predicted_mean - actual_acceptance_rate|.
func ExpectedCalibrationError(records []domain.CalibrationRecord) float64 {
	if len(records) == 0 {
		return 0
	}

	type bucket struct {
		sumPredicted float64
		accepted     int
		count        int
	}
	buckets := make([]bucket, numBuckets)

	for _, r := range records {
		idx := bucketIndex(r.PredictedConfidence)
		buckets[idx].sumPredicted += r.PredictedConfidence
		buckets[idx].count++
		if r.UserAccepted {
			buckets[idx].accepted++
		}
	}

	var total float64
	var nonEmpty int
	for _, b := range buckets {
		if b.count == 0 {
			continue
		}
		predictedMean := b.sumPredicted / float64(b.count)
		actualRate := float64(b.accepted) / float64(b.count)
		total += math.Abs(predictedMean - actualRate)
		nonEmpty++
	}
	if nonEmpty == 0 {
		return 0
	}
	return total / float64(nonEmpty)
}

func bucketIndex(confidence float64) int {
	idx := int(confidence / 0.2)
	if idx >= numBuckets {
		idx = numBuckets - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

// AcceptanceRate returns the fraction of accepted records for decisionType.
func AcceptanceRate(decisionType domain.DecisionType, records []domain.CalibrationRecord) (rate float64, n int) {
	for _, r := range records {
		if r.DecisionType != decisionType {
			continue
		}
		n++
		if r.UserAccepted {
			rate++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return rate / float64(n), n
}

const (
	highAcceptanceBand = 0.9
	lowAcceptanceBand  = 0.6
	thresholdStep      = 0.05
)

// AdjustThreshold nudges currentThreshold by +/-thresholdStep when the
// acceptance rate drifts outside the configured bands (high > 0.9,
// low < 0.6), per spec.md §4.7. The result is clamped to [0, 1].
func AdjustThreshold(currentThreshold, acceptanceRate float64) float64 {
	switch {
	case acceptanceRate > highAcceptanceBand:
		currentThreshold += thresholdStep
	case acceptanceRate < lowAcceptanceBand:
		currentThreshold -= thresholdStep
	}
	return clamp01(currentThreshold)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// SortedBucketBoundaries is a small helper used by callers that want to
// present ECE bucket edges (0, 0.2, 0.4, 0.6, 0.8, 1.0) rather than just
// the aggregate value.
func SortedBucketBoundaries() []float64 {
	b := make([]float64, numBuckets+1)
	for i := range b {
		b[i] = float64(i) * 0.2
	}
	sort.Float64s(b)
	return b
}
