package domain

import "time"

// TaskCardStatus tracks a generated task card through its lifecycle.
type TaskCardStatus string

const (
	TaskCardGenerated TaskCardStatus = "generated"
	TaskCardViewed    TaskCardStatus = "viewed"
	TaskCardApproved  TaskCardStatus = "approved"
	TaskCardCompleted TaskCardStatus = "completed"
	TaskCardDismissed TaskCardStatus = "dismissed"
)

// TaskCard is a task proposed by an external analyzer observing telemetry
// emitted through the Tool Executor while a session runs (spec.md §4.8).
// The scheduler itself never creates or reads these; taskgen.Board's
// Actionable reads Prerequisites to decide whether a card is actionable.
type TaskCard struct {
	ID            string
	Analyzer      string
	Title         string
	Description   string
	Confidence    float64
	Prerequisites []string
	Status        TaskCardStatus
	AutoApproved  bool
	CreatedAt     time.Time
	ResolvedAt    time.Time
}

// FunnelCounts are the raw per-window event counts the health score is
// computed from.
type FunnelCounts struct {
	Generated int
	Viewed    int
	Approved  int
	Completed int
	Dismissed int
}

// HealthScore is spec.md §4.8's 0.3·view + 0.3·approve + 0.4·complete
// weighting, each term a rate against Generated so the score stays in
// [0,1] regardless of window volume.
func (f FunnelCounts) HealthScore() float64 {
	if f.Generated == 0 {
		return 0
	}
	viewRate := float64(f.Viewed) / float64(f.Generated)
	approveRate := float64(f.Approved) / float64(f.Generated)
	completeRate := float64(f.Completed) / float64(f.Generated)
	return 0.3*viewRate + 0.3*approveRate + 0.4*completeRate
}
