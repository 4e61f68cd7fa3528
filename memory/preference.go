package memory

import (
	"path/filepath"
	"sync"

	"github.com/forgekeeper/agentcore/domain"
)

const preferenceFile = "preference_memory.jsonl"

const (
	minDecisionsForRiskInference    = 10
	minFeedbackForSpeedInference    = 5
	proactiveFeedbackThreshold      = 0.3
	highAlignmentAcceptanceThreshold = 0.8
)

// decisionRecord is one append-only preference-store input: a recorded
// decision outcome plus the feedback accompanying it, if any.
type decisionRecord struct {
	UserID         string `json:"user_id"`
	SafestAccepted bool   `json:"safest_accepted"`
	HadReasoning   bool   `json:"had_reasoning"`
	HadFeedback    bool   `json:"had_feedback"`
	Suggested      bool   `json:"suggested"` // proactive suggestion, not a direct response
}

// PreferenceStore derives per-user UserProfile summaries from accepted vs
// rejected recommendations and feedback, per spec.md §4.6.
type PreferenceStore struct {
	mu      sync.RWMutex
	file    *appendOnlyFile
	path    string
	records map[string][]decisionRecord
}

// OpenPreferenceStore opens (creating if needed) the preference store
// under dir, replaying existing records.
func OpenPreferenceStore(dir string) (*PreferenceStore, error) {
	path := filepath.Join(dir, preferenceFile)
	f, err := openAppendOnly(path)
	if err != nil {
		return nil, err
	}
	existing, err := readJSONL[decisionRecord](path)
	if err != nil {
		f.close()
		return nil, err
	}

	byUser := make(map[string][]decisionRecord)
	for _, r := range existing {
		byUser[r.UserID] = append(byUser[r.UserID], r)
	}

	return &PreferenceStore{file: f, path: path, records: byUser}, nil
}

// RecordDecision appends one decision observation for userID.
func (p *PreferenceStore) RecordDecision(userID string, safestAccepted, hadReasoning, hadFeedback, suggested bool) error {
	rec := decisionRecord{
		UserID:         userID,
		SafestAccepted: safestAccepted,
		HadReasoning:   hadReasoning,
		HadFeedback:    hadFeedback,
		Suggested:      suggested,
	}

	p.mu.Lock()
	p.records[userID] = append(p.records[userID], rec)
	p.mu.Unlock()

	return p.file.append(rec)
}

// Profile computes userID's current UserProfile from every recorded
// decision, per the inference rules in spec.md §4.6.
func (p *PreferenceStore) Profile(userID string) domain.UserProfile {
	p.mu.RLock()
	recs := append([]decisionRecord(nil), p.records[userID]...)
	p.mu.RUnlock()

	profile := domain.UserProfile{UserID: userID, TotalDecisions: len(recs)}
	if len(recs) == 0 {
		return profile
	}

	if len(recs) >= minDecisionsForRiskInference {
		accepted := 0
		for _, r := range recs {
			if r.SafestAccepted {
				accepted++
			}
		}
		rate := float64(accepted) / float64(len(recs))
		profile.RiskTolerance = riskToleranceFrom(rate)
		profile.RiskConfidence = rate
	}

	feedbackRecs := filterFeedback(recs)
	if len(feedbackRecs) >= minFeedbackForSpeedInference {
		reasoningCount := 0
		for _, r := range feedbackRecs {
			if r.HadReasoning {
				reasoningCount++
			}
		}
		freq := float64(reasoningCount) / float64(len(feedbackRecs))
		profile.DecisionSpeed = decisionSpeedFrom(freq)
		profile.SpeedConfidence = freq
	}

	profile.Patterns = detectPatterns(recs)
	return profile
}

func filterFeedback(recs []decisionRecord) []decisionRecord {
	out := make([]decisionRecord, 0, len(recs))
	for _, r := range recs {
		if r.HadFeedback {
			out = append(out, r)
		}
	}
	return out
}

// riskToleranceFrom buckets the safest-option acceptance rate per
// spec.md §4.6: >=0.8 conservative, 0.6-0.8 moderate, 0.4-0.6 exploratory,
// <0.4 aggressive.
func riskToleranceFrom(acceptanceRate float64) domain.RiskTolerance {
	switch {
	case acceptanceRate >= 0.8:
		return domain.RiskConservative
	case acceptanceRate >= 0.6:
		return domain.RiskModerate
	case acceptanceRate >= 0.4:
		return domain.RiskExploratory
	default:
		return domain.RiskAggressive
	}
}

// decisionSpeedFrom buckets the reasoning-provided frequency per spec.md
// §4.6: >0.7 deliberate, 0.3-0.7 balanced, <0.3 quick.
func decisionSpeedFrom(reasoningFrequency float64) domain.DecisionSpeed {
	switch {
	case reasoningFrequency > 0.7:
		return domain.SpeedDeliberate
	case reasoningFrequency >= 0.3:
		return domain.SpeedBalanced
	default:
		return domain.SpeedQuick
	}
}

func detectPatterns(recs []decisionRecord) []domain.PreferencePattern {
	var patterns []domain.PreferencePattern

	suggested := 0
	accepted := 0
	for _, r := range recs {
		if r.Suggested {
			suggested++
		}
		if r.SafestAccepted {
			accepted++
		}
	}
	n := float64(len(recs))

	if suggestedFreq := float64(suggested) / n; suggestedFreq > proactiveFeedbackThreshold {
		patterns = append(patterns, domain.PreferencePattern{Name: "proactive_feedback", Frequency: suggestedFreq})
	}
	if acceptedFreq := float64(accepted) / n; acceptedFreq >= highAlignmentAcceptanceThreshold {
		patterns = append(patterns, domain.PreferencePattern{Name: "high_alignment", Frequency: acceptedFreq})
	}

	return patterns
}

// Close closes the underlying file.
func (p *PreferenceStore) Close() error {
	return p.file.close()
}
