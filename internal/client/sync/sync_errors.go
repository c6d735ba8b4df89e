package sync

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrSyncAlreadyRunning  = errors.New("sync already running")
	ErrInconsistentHistory = errors.New("sync: server and local histories disagree")
)

// FatalError aborts the whole session. It signals a broken invariant, not divergence.
type FatalError struct {
	ID  uuid.UUID
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal sync error for %s: %v", e.ID, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// WorkErrors collects the last error of every id that could not be reconciled
type WorkErrors struct {
	Errors map[uuid.UUID]error
}

func (e *WorkErrors) Error() string {
	ids := make([]uuid.UUID, 0, len(e.Errors))
	for id := range e.Errors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	var b strings.Builder
	fmt.Fprintf(&b, "sync failed for %d file(s)", len(ids))
	for _, id := range ids {
		fmt.Fprintf(&b, "; %s: %v", id, e.Errors[id])
	}
	return b.String()
}

func (e *WorkErrors) Unwrap() []error {
	errs := make([]error, 0, len(e.Errors))
	for _, err := range e.Errors {
		errs = append(errs, err)
	}
	return errs
}
