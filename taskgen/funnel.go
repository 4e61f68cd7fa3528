package taskgen

import (
	"time"

	"github.com/forgekeeper/agentcore/domain"
)

const maxFunnelEvents = 10000

type funnelEvent struct {
	analyzer string
	status   domain.TaskCardStatus
	at       time.Time
}

// funnelLog is an in-memory, time-ordered record of funnel transitions
// used to compute windowed FunnelCounts. Prometheus counters (metrics.go)
// track cumulative totals for scraping; this log answers "since when"
// queries a counter alone cannot.
type funnelLog struct {
	events []funnelEvent
}

func newFunnelLog() *funnelLog {
	return &funnelLog{}
}

func (f *funnelLog) record(analyzer string, status domain.TaskCardStatus, at time.Time) {
	f.events = append(f.events, funnelEvent{analyzer: analyzer, status: status, at: at})
	if len(f.events) > maxFunnelEvents {
		f.events = f.events[len(f.events)-maxFunnelEvents:]
	}
}

func (f *funnelLog) since(cutoff time.Time) domain.FunnelCounts {
	var counts domain.FunnelCounts
	for _, e := range f.events {
		if e.at.Before(cutoff) {
			continue
		}
		switch e.status {
		case domain.TaskCardGenerated:
			counts.Generated++
		case domain.TaskCardViewed:
			counts.Viewed++
		case domain.TaskCardApproved:
			counts.Approved++
		case domain.TaskCardCompleted:
			counts.Completed++
		case domain.TaskCardDismissed:
			counts.Dismissed++
		}
	}
	return counts
}
