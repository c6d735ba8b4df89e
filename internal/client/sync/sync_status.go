package sync

import (
	"fmt"
	gosync "sync"
	"time"

	"github.com/google/uuid"
)

const syncEventBufferSize = 16

type SyncState string

const (
	SyncStatePending   SyncState = "pending"
	SyncStateSyncing   SyncState = "syncing"
	SyncStateResolving SyncState = "resolving"
	SyncStateCompleted SyncState = "completed"
	SyncStateError     SyncState = "error"
)

type ConflictState string

const (
	ConflictStateNone       ConflictState = "none"
	ConflictStateConflicted ConflictState = "conflicted"
)

type FileStatus struct {
	SyncState     SyncState
	ConflictState ConflictState
	Error         error
	ErrorCount    int
	LastUpdated   time.Time
}

func (s *FileStatus) String() string {
	return fmt.Sprintf("SyncState: %s, ConflictState: %s, Error: %v, ErrorCount: %d", s.SyncState, s.ConflictState, s.Error, s.ErrorCount)
}

type SyncStatusEvent struct {
	ID     uuid.UUID
	Status FileStatus
}

// SyncStatus tracks per file progress of the running session. Clean files are
// dropped once completed, conflicted ones stay until cleared.
type SyncStatus struct {
	files map[uuid.UUID]*FileStatus
	mu    gosync.RWMutex

	eventSubs []chan *SyncStatusEvent
	eventMu   gosync.RWMutex
}

func NewSyncStatus() *SyncStatus {
	return &SyncStatus{
		files: make(map[uuid.UUID]*FileStatus),
	}
}

func (s *SyncStatus) Subscribe() <-chan *SyncStatusEvent {
	s.eventMu.Lock()
	defer s.eventMu.Unlock()

	ch := make(chan *SyncStatusEvent, syncEventBufferSize)
	s.eventSubs = append(s.eventSubs, ch)
	return ch
}

func (s *SyncStatus) Unsubscribe(ch <-chan *SyncStatusEvent) {
	s.eventMu.Lock()
	defer s.eventMu.Unlock()

	for i, sub := range s.eventSubs {
		if sub == ch {
			close(sub)
			s.eventSubs = append(s.eventSubs[:i], s.eventSubs[i+1:]...)
			return
		}
	}
}

// broadcast never blocks, slow subscribers miss events
func (s *SyncStatus) broadcast(id uuid.UUID, status *FileStatus) {
	s.eventMu.RLock()
	defer s.eventMu.RUnlock()

	event := &SyncStatusEvent{ID: id, Status: *status}
	for _, sub := range s.eventSubs {
		select {
		case sub <- event:
		default:
		}
	}
}

func (s *SyncStatus) update(id uuid.UUID, fn func(status *FileStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, ok := s.files[id]
	if !ok {
		status = &FileStatus{SyncState: SyncStatePending, ConflictState: ConflictStateNone}
		s.files[id] = status
	}
	fn(status)
	status.LastUpdated = time.Now()

	if status.SyncState == SyncStateCompleted && status.ConflictState == ConflictStateNone {
		delete(s.files, id)
	}
	s.broadcast(id, status)
}

func (s *SyncStatus) SetPending(id uuid.UUID) {
	s.update(id, func(status *FileStatus) { status.SyncState = SyncStatePending })
}

func (s *SyncStatus) SetSyncing(id uuid.UUID) {
	s.update(id, func(status *FileStatus) {
		status.SyncState = SyncStateSyncing
		status.Error = nil
	})
}

// SetResolving marks a file whose local and remote states both moved away from base
func (s *SyncStatus) SetResolving(id uuid.UUID) {
	s.update(id, func(status *FileStatus) { status.SyncState = SyncStateResolving })
}

func (s *SyncStatus) SetConflicted(id uuid.UUID) {
	s.update(id, func(status *FileStatus) { status.ConflictState = ConflictStateConflicted })
}

func (s *SyncStatus) SetCompleted(id uuid.UUID) {
	s.update(id, func(status *FileStatus) {
		status.SyncState = SyncStateCompleted
		status.Error = nil
	})
}

func (s *SyncStatus) SetError(id uuid.UUID, err error) {
	s.update(id, func(status *FileStatus) {
		status.SyncState = SyncStateError
		status.Error = err
		status.ErrorCount++
	})
}

// ClearConflict forgets the conflict flag, for example after the user resolved it
func (s *SyncStatus) ClearConflict(id uuid.UUID) {
	s.update(id, func(status *FileStatus) {
		status.ConflictState = ConflictStateNone
		if status.SyncState == SyncStateError {
			return
		}
		status.SyncState = SyncStateCompleted
	})
}

func (s *SyncStatus) Get(id uuid.UUID) (FileStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status, ok := s.files[id]
	if !ok {
		return FileStatus{}, false
	}
	return *status, true
}

func (s *SyncStatus) Snapshot() map[uuid.UUID]FileStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[uuid.UUID]FileStatus, len(s.files))
	for id, status := range s.files {
		out[id] = *status
	}
	return out
}
