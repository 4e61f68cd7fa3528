package eventlog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndTail(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.jsonl")

	log, err := Open(path)
	require.NoError(t, err)
	defer log.Close()

	require.NoError(t, log.Append(Record{SessionID: "s1", Actor: ActorAutonomous, Act: ActIterationBegin, Iteration: 1, At: time.Now()}))
	require.NoError(t, log.Append(Record{SessionID: "s1", Actor: ActorAutonomous, Act: ActReflection, Iteration: 1, At: time.Now()}))
	require.NoError(t, log.Append(Record{SessionID: "s2", Actor: ActorSystem, Act: ActSessionTerminal, At: time.Now()}))

	all, err := Tail(path)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	s1, err := Pull(path, "s1")
	require.NoError(t, err)
	assert.Len(t, s1, 2)
	assert.Equal(t, ActIterationBegin, s1[0].Act)
}

func TestTailToleratesTruncatedFinalRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.jsonl")

	log, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, log.Append(Record{SessionID: "s1", Actor: ActorAutonomous, Act: ActIterationBegin, At: time.Now()}))
	require.NoError(t, log.Close())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"session_id":"s1","actor":"autonomous","act":"reflec`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	records, err := Tail(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, ActIterationBegin, records[0].Act)
}

func TestTailMissingFileReturnsEmpty(t *testing.T) {
	records, err := Tail(filepath.Join(t.TempDir(), "missing.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, records)
}
