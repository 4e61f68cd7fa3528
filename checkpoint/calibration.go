package checkpoint

import (
	"sync"

	"github.com/forgekeeper/agentcore/domain"
	"github.com/forgekeeper/agentcore/metacog"
)

const calibrationFile = "calibration.jsonl"

// CalibrationLog is a pure append-only record of predicted-confidence vs
// user-accepted outcomes, feeding metacog.ExpectedCalibrationError and
// metacog.AdjustThreshold. Unlike the Ledger, entries here are never
// rewritten once written.
type CalibrationLog struct {
	mu      sync.RWMutex
	file    *appendOnlyFile
	records []domain.CalibrationRecord
}

func openCalibrationLog(dir string) (*CalibrationLog, error) {
	path := dir + "/" + calibrationFile
	records, err := readJSONL[domain.CalibrationRecord](path)
	if err != nil {
		return nil, err
	}
	f, err := openAppendOnly(path)
	if err != nil {
		return nil, err
	}
	return &CalibrationLog{file: f, records: records}, nil
}

// Record appends a calibration record.
func (c *CalibrationLog) Record(r domain.CalibrationRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.file.append(r); err != nil {
		return err
	}
	c.records = append(c.records, r)
	return nil
}

// All returns every calibration record recorded so far.
func (c *CalibrationLog) All() []domain.CalibrationRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.CalibrationRecord, len(c.records))
	copy(out, c.records)
	return out
}

// ExpectedCalibrationError computes ECE over every recorded decision.
func (c *CalibrationLog) ExpectedCalibrationError() float64 {
	return metacog.ExpectedCalibrationError(c.All())
}

// AcceptanceRate computes the acceptance rate for one decision type, used
// to drive metacog.AdjustThreshold.
func (c *CalibrationLog) AcceptanceRate(decisionType domain.DecisionType) (rate float64, n int) {
	return metacog.AcceptanceRate(decisionType, c.All())
}

func (c *CalibrationLog) close() error {
	return c.file.close()
}
