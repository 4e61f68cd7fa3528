package diagnostics

import "github.com/forgekeeper/agentcore/domain"

// boostMultiplier implements spec.md §4.5's confidence-boost table:
// 1 success -> 1.05, 2 -> 1.15, 3-4 -> 1.30, >=5 -> 1.50, reduced by 0.9 if
// avg_iterations > 5, by 0.95 if > 3.
func boostMultiplier(rec domain.PatternRecord) float64 {
	var mult float64
	switch {
	case rec.SuccessCount >= 5:
		mult = 1.50
	case rec.SuccessCount >= 3:
		mult = 1.30
	case rec.SuccessCount == 2:
		mult = 1.15
	case rec.SuccessCount == 1:
		mult = 1.05
	default:
		return 1.0
	}

	if rec.AvgIterations > 5 {
		mult *= 0.9
	} else if rec.AvgIterations > 3 {
		mult *= 0.95
	}
	return mult
}

// Boost applies the pattern-learner's multiplicative confidence boost to
// strategy, using rec's historical outcomes. The result is capped to 1.0
// only after the full multiplication, per the Open Question resolution in
// DESIGN.md (the cap never truncates the multiplier itself). Applying Boost
// twice to the same strategy/record pair yields the same confidence,
// satisfying spec.md §8's idempotence property — Boost does not mutate rec.
func Boost(strategy domain.RecoveryStrategy, rec domain.PatternRecord) domain.RecoveryStrategy {
	if rec.SuccessCount == 0 {
		return strategy
	}
	boosted := strategy.Confidence * boostMultiplier(rec)
	if boosted > 1.0 {
		boosted = 1.0
	}
	strategy.Confidence = boosted
	strategy.BoostedBy = string(rec.Category) + ":" + rec.StrategyName
	return strategy
}

// BestStrategy returns the most-successful strategy name for category
// across recs, as an independent query (spec.md §4.5 "suggest the
// most-successful strategy as an independent query"). ok is false when no
// record exists for category.
func BestStrategy(category domain.ErrorCategory, recs []domain.PatternRecord) (name string, ok bool) {
	best := -1
	bestCount := -1
	for i, r := range recs {
		if r.Category != category {
			continue
		}
		if r.SuccessCount > bestCount {
			bestCount = r.SuccessCount
			best = i
		}
	}
	if best < 0 {
		return "", false
	}
	return recs[best].StrategyName, true
}
