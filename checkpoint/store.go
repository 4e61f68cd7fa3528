// Package checkpoint implements the Checkpoint & Feedback layer (spec.md
// §4.7): decision-level checkpoints that suspend the scheduler pending
// human resolution, confidence-calibration records, and bounded feedback
// storage. Repurposed from hector's task/session-oriented checkpoint
// package (pkg/checkpoint/state.go, storage.go, recovery.go) to
// decision-oriented checkpoints (plan/strategy/parameter/execution)
// instead of whole-task resume state.
package checkpoint

import (
	"fmt"
	"os"
)

// Store bundles the checkpoint ledger, calibration log, and feedback store
// that share one directory, mirroring memory.Store as the single entry
// point calling code depends on.
type Store struct {
	Checkpoints *Ledger
	Calibration *CalibrationLog
	Feedback    *FeedbackStore
}

// Options configures Open. MaxFeedbackEntries defaults to 5000 when zero.
type Options struct {
	MaxFeedbackEntries int
}

// Open creates dir if needed and opens the ledger, calibration log, and
// feedback store within it.
func Open(dir string, opts Options) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("checkpoint: create directory %s: %w", dir, err)
	}

	ledger, err := openLedger(dir)
	if err != nil {
		return nil, err
	}
	calibration, err := openCalibrationLog(dir)
	if err != nil {
		ledger.close()
		return nil, err
	}
	feedback, err := openFeedbackStore(dir, opts.MaxFeedbackEntries)
	if err != nil {
		ledger.close()
		calibration.close()
		return nil, err
	}

	return &Store{Checkpoints: ledger, Calibration: calibration, Feedback: feedback}, nil
}

// Close closes every substore, returning the first error encountered.
func (s *Store) Close() error {
	var firstErr error
	for _, closer := range []func() error{s.Checkpoints.close, s.Calibration.close, s.Feedback.close} {
		if err := closer(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
