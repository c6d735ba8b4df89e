package sync

import (
	"context"
	"errors"
	"log/slog"
	gosync "sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"github.com/openmined/syftvault/internal/api"
	"github.com/openmined/syftvault/internal/client/files"
	"github.com/openmined/syftvault/internal/client/store"
	"github.com/openmined/syftvault/internal/crypto"
	"github.com/openmined/syftvault/internal/model"
)

const DefaultRetryLimit = 10

// Server is the version checked file API a replica reconciles against.
// Mutations carry the version they were made against and fail with
// api.ErrEditConflict when the server moved on.
type Server interface {
	GetUpdates(ctx context.Context, req *api.GetUpdatesRequest) (*api.GetUpdatesResponse, error)
	GetDocument(ctx context.Context, req *api.GetDocumentRequest) (*api.GetDocumentResponse, error)
	CreateFile(ctx context.Context, req *api.CreateFileRequest) (*api.FileVersionResponse, error)
	RenameFile(ctx context.Context, req *api.RenameFileRequest) (*api.FileVersionResponse, error)
	MoveFile(ctx context.Context, req *api.MoveFileRequest) (*api.FileVersionResponse, error)
	ChangeDocumentContent(ctx context.Context, req *api.ChangeDocumentContentRequest) (*api.FileVersionResponse, error)
	DeleteFile(ctx context.Context, req *api.DeleteFileRequest) (*api.FileVersionResponse, error)
}

type ProgressFunc func(progress *model.SyncProgress)

type SyncEngine struct {
	store      *store.Store
	files      *files.Service
	crypto     crypto.Crypto
	server     Server
	status     *SyncStatus
	retryLimit int
	muSync     gosync.Mutex
}

type Option func(*SyncEngine)

// WithRetryLimit bounds the number of reconciliation passes per session
func WithRetryLimit(limit int) Option {
	return func(se *SyncEngine) {
		if limit > 0 {
			se.retryLimit = limit
		}
	}
}

func WithStatus(status *SyncStatus) Option {
	return func(se *SyncEngine) {
		if status != nil {
			se.status = status
		}
	}
}

func NewSyncEngine(st *store.Store, fs *files.Service, server Server, opts ...Option) *SyncEngine {
	se := &SyncEngine{
		store:      st,
		files:      fs,
		crypto:     fs.Crypto(),
		server:     server,
		status:     NewSyncStatus(),
		retryLimit: DefaultRetryLimit,
	}
	for _, opt := range opts {
		opt(se)
	}
	return se
}

func (se *SyncEngine) Status() *SyncStatus {
	return se.status
}

// Sync runs one session: calculate work, execute it, and repeat until the
// replica and the server agree or the retry limit is reached. Only one
// session runs at a time.
func (se *SyncEngine) Sync(ctx context.Context, onProgress ProgressFunc) error {
	if !se.muSync.TryLock() {
		return ErrSyncAlreadyRunning
	}
	defer se.muSync.Unlock()

	work, err := se.CalculateWork(ctx)
	if err != nil {
		return err
	}
	if len(work.WorkUnits) == 0 {
		// updates that need no local work still move the checkpoint
		return se.store.SetLastSynced(work.MostRecentUpdateFromServer)
	}
	for _, unit := range work.WorkUnits {
		se.status.SetPending(unit.ID())
	}

	workErrors := make(map[uuid.UUID]error)
	for pass := 0; pass < se.retryLimit; pass++ {
		if len(work.WorkUnits) == 0 {
			break
		}

		slog.Debug("sync pass", "pass", pass+1, "units", len(work.WorkUnits))
		for i, unit := range work.WorkUnits {
			if err := ctx.Err(); err != nil {
				return err
			}

			id := unit.ID()
			if onProgress != nil {
				onProgress(&model.SyncProgress{
					Total:           len(work.WorkUnits),
					Progress:        i,
					CurrentWorkUnit: se.DescribeUnit(unit),
				})
			}

			se.status.SetSyncing(id)
			err := se.executeWork(ctx, unit)
			if err == nil {
				delete(workErrors, id)
				se.status.SetCompleted(id)
				continue
			}

			var fatal *FatalError
			if errors.As(err, &fatal) {
				se.status.SetError(id, err)
				slog.Error("sync aborted", "unit", unit, "error", err)
				return err
			}

			if api.IsExpectedConflict(err) {
				slog.Debug("sync conflict, will recompute", "unit", unit, "error", err)
			} else {
				slog.Warn("sync unit failed", "unit", unit, "error", err)
			}
			workErrors[id] = err
			se.status.SetError(id, err)
		}

		if len(workErrors) == 0 {
			if err := se.store.SetLastSynced(work.MostRecentUpdateFromServer); err != nil {
				return err
			}
		}

		work, err = se.CalculateWork(ctx)
		if err != nil {
			return err
		}
		if len(work.WorkUnits) == 0 && len(workErrors) == 0 {
			if err := se.store.SetLastSynced(work.MostRecentUpdateFromServer); err != nil {
				return err
			}
		}

		pending := mapset.NewThreadUnsafeSet[uuid.UUID]()
		for _, unit := range work.WorkUnits {
			pending.Add(unit.ID())
		}
		for id := range workErrors {
			if !pending.Contains(id) {
				delete(workErrors, id)
			}
		}
	}

	if len(workErrors) > 0 {
		return &WorkErrors{Errors: workErrors}
	}
	if len(work.WorkUnits) > 0 {
		slog.Warn("sync retry limit reached with work left", "units", len(work.WorkUnits), "limit", se.retryLimit)
	}
	return nil
}

func (se *SyncEngine) executeWork(ctx context.Context, unit *model.WorkUnit) error {
	switch unit.Kind {
	case model.WorkUnitServerChange:
		return se.handleServerChange(ctx, unit.Metadata)
	case model.WorkUnitLocalChange:
		return se.handleLocalChange(ctx, unit.Metadata)
	default:
		return &FatalError{ID: unit.ID(), Err: errors.New("unknown work unit kind " + string(unit.Kind))}
	}
}
