package checkpoint

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/forgekeeper/agentcore/domain"
)

// NotifyCallback is invoked once per still-pending checkpoint found on
// startup, so the caller can re-surface it to whatever waits on a
// resolution (an API response, a CLI prompt). Unlike hector's
// ResumeCallback, a decision checkpoint is never auto-resumed — the
// scheduler session it belongs to stays suspended until a human resolves
// it or it expires, so recovery only re-announces pending work rather than
// executing it.
type NotifyCallback func(ctx context.Context, cp domain.Checkpoint) error

// ExpireCallback is invoked once per checkpoint that expired since last
// observed, so the caller can emit its own terminal event and notify the
// owning session.
type ExpireCallback func(ctx context.Context, cp domain.Checkpoint) error

// RecoveryManager scans a Store for pending and expired checkpoints on
// startup and on a periodic sweep, ported from hector's RecoveryManager
// startup-scan-and-resume pattern (v2/checkpoint/recovery.go) and narrowed
// to this package's single-process, single-store scope.
type RecoveryManager struct {
	store *Store

	mu       sync.RWMutex
	onPend   NotifyCallback
	onExpire ExpireCallback
}

// NewRecoveryManager creates a RecoveryManager over store.
func NewRecoveryManager(store *Store) *RecoveryManager {
	return &RecoveryManager{store: store}
}

// SetNotifyCallback sets the callback invoked for each pending checkpoint
// found during a scan.
func (m *RecoveryManager) SetNotifyCallback(cb NotifyCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onPend = cb
}

// SetExpireCallback sets the callback invoked for each checkpoint that has
// expired since it was created.
func (m *RecoveryManager) SetExpireCallback(cb ExpireCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = cb
}

// Scan finds every checkpoint that is either still pending or has expired
// as of now, invoking the configured callbacks for each. It should be
// called once on startup and may be called periodically afterward to
// surface newly-expired checkpoints.
func (m *RecoveryManager) Scan(ctx context.Context, now time.Time) (pending, expired int, err error) {
	expiredCPs := m.store.Checkpoints.ExpirePending(now)
	pendingCPs := m.store.Checkpoints.Pending(now)

	m.mu.RLock()
	notify := m.onPend
	onExpire := m.onExpire
	m.mu.RUnlock()

	for _, cp := range expiredCPs {
		slog.Warn("checkpoint expired", "id", cp.ID, "session_id", cp.SessionID, "created_at", cp.CreatedAt)
		if onExpire != nil {
			if cbErr := onExpire(ctx, cp); cbErr != nil {
				err = fmt.Errorf("checkpoint: expire callback for %s: %w", cp.ID, cbErr)
				continue
			}
		}
		expired++
	}

	for _, cp := range pendingCPs {
		slog.Info("checkpoint awaiting resolution", "id", cp.ID, "session_id", cp.SessionID, "decision_type", cp.DecisionType)
		if notify != nil {
			if cbErr := notify(ctx, cp); cbErr != nil {
				err = fmt.Errorf("checkpoint: notify callback for %s: %w", cp.ID, cbErr)
				continue
			}
		}
		pending++
	}

	return pending, expired, err
}
