package memory

import (
	"path/filepath"

	"github.com/forgekeeper/agentcore/domain"
)

const sessionLogFile = "session_memory.jsonl"

// SessionLog is the append-only session-outcome log: one
// domain.SessionMemoryRecord per session, written only once the session
// reaches a terminal outcome, per spec.md §4.6.
type SessionLog struct {
	file *appendOnlyFile
	path string
}

// OpenSessionLog opens (creating if needed) the session log under dir.
func OpenSessionLog(dir string) (*SessionLog, error) {
	path := filepath.Join(dir, sessionLogFile)
	f, err := openAppendOnly(path)
	if err != nil {
		return nil, err
	}
	return &SessionLog{file: f, path: path}, nil
}

// Write appends rec. Callers are responsible for calling this at most once
// per session, at terminal outcome (spec.md §4.6 invariant).
func (l *SessionLog) Write(rec domain.SessionMemoryRecord) error {
	return l.file.append(rec)
}

// All returns every session record written so far, tolerant of a
// truncated final record.
func (l *SessionLog) All() ([]domain.SessionMemoryRecord, error) {
	return readJSONL[domain.SessionMemoryRecord](l.path)
}

// Close closes the underlying file.
func (l *SessionLog) Close() error {
	return l.file.close()
}
