package history

import (
	"sync"

	"github.com/hupe1980/groupmesh/core"
)

// InMemoryLog is a process-local AssignmentLog. Records are held in an
// append-only slice with secondary indexes by participant and session so
// audit queries stay cheap under frequent appends.
//
// Concurrency: protected by RWMutex. Query results are defensive copies.
type InMemoryLog struct {
	mu            sync.RWMutex
	records       []core.AssignmentRecord
	byParticipant map[string][]int
	bySession     map[string][]int
}

// NewInMemoryLog creates an empty in-memory assignment log.
func NewInMemoryLog() *InMemoryLog {
	return &InMemoryLog{
		byParticipant: make(map[string][]int),
		bySession:     make(map[string][]int),
	}
}

// Append adds a record, assigning an ID when the caller left it empty.
func (l *InMemoryLog) Append(record core.AssignmentRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if record.ID == "" {
		record.ID = core.NewID()
	}
	idx := len(l.records)
	l.records = append(l.records, record)
	l.byParticipant[record.ParticipantID] = append(l.byParticipant[record.ParticipantID], idx)
	l.bySession[record.SessionID] = append(l.bySession[record.SessionID], idx)
	return nil
}

// ByParticipant returns the participant's records in append order.
func (l *InMemoryLog) ByParticipant(participantID string) []core.AssignmentRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.collect(l.byParticipant[participantID])
}

// BySession returns the session's records in append order.
func (l *InMemoryLog) BySession(sessionID string) []core.AssignmentRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.collect(l.bySession[sessionID])
}

// Len returns the total record count.
func (l *InMemoryLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

func (l *InMemoryLog) collect(indexes []int) []core.AssignmentRecord {
	result := make([]core.AssignmentRecord, 0, len(indexes))
	for _, idx := range indexes {
		result = append(result, l.records[idx])
	}
	return result
}
