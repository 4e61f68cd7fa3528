package checkpoint

import (
	"sync"

	"github.com/forgekeeper/agentcore/domain"
)

const (
	feedbackFile              = "feedback.jsonl"
	defaultMaxFeedbackEntries = 5000
)

// FeedbackStore holds user-submitted Feedback entries, bounded to max
// entries with oldest-eviction per spec.md §4.7. Eviction rewrites the
// backing file rather than growing it forever, the same full-rewrite
// discipline hector's checkpoint Storage.Save applies to session state.
type FeedbackStore struct {
	mu      sync.Mutex
	file    *appendOnlyFile
	entries []domain.Feedback
	max     int
}

func openFeedbackStore(dir string, max int) (*FeedbackStore, error) {
	if max <= 0 {
		max = defaultMaxFeedbackEntries
	}
	path := dir + "/" + feedbackFile
	entries, err := readJSONL[domain.Feedback](path)
	if err != nil {
		return nil, err
	}
	if len(entries) > max {
		entries = entries[len(entries)-max:]
	}
	f, err := openAppendOnly(path)
	if err != nil {
		return nil, err
	}
	return &FeedbackStore{file: f, entries: entries, max: max}, nil
}

// Record appends fb, evicting the oldest entry if the store is at capacity.
func (s *FeedbackStore) Record(fb domain.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, fb)
	if len(s.entries) <= s.max {
		return s.file.append(fb)
	}

	s.entries = s.entries[len(s.entries)-s.max:]
	records := make([]any, len(s.entries))
	for i, e := range s.entries {
		records[i] = e
	}
	return s.file.rewrite(records)
}

// All returns every stored feedback entry, oldest first.
func (s *FeedbackStore) All() []domain.Feedback {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Feedback, len(s.entries))
	copy(out, s.entries)
	return out
}

// ByCategory filters stored feedback to one category.
func (s *FeedbackStore) ByCategory(category domain.FeedbackCategory) []domain.Feedback {
	all := s.All()
	out := make([]domain.Feedback, 0, len(all))
	for _, f := range all {
		if f.Category == category {
			out = append(out, f)
		}
	}
	return out
}

func (s *FeedbackStore) close() error {
	return s.file.close()
}
