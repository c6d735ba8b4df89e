package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/openmined/syftvault/internal/api"
	"github.com/openmined/syftvault/internal/model"
	"github.com/openmined/syftvault/internal/server/blob"
)

// ChangeHook is called after a mutation of owner's tree committed at version
type ChangeHook func(owner string, version uint64)

// FileService is the authoritative index of every user's file tree. Every
// accepted mutation gets a new version from one global counter.
type FileService struct {
	db       *sqlx.DB
	backend  blob.IBlobBackend
	onChange ChangeHook

	// mutations are serialized, reads go straight to the db
	mu sync.Mutex
}

func NewFileService(db *sqlx.DB, backend blob.IBlobBackend) *FileService {
	return &FileService{db: db, backend: backend}
}

// OnChange registers the hook called after every committed mutation
func (s *FileService) OnChange(hook ChangeHook) {
	s.onChange = hook
}

// ForUser returns the view of the service for one authenticated user
func (s *FileService) ForUser(owner string) *UserService {
	return &UserService{svc: s, owner: owner}
}

func (s *FileService) notify(owner string, version uint64) {
	if s.onChange != nil {
		s.onChange(owner, version)
	}
}

// mutate runs fn in a transaction while holding the mutation lock
func (s *FileService) mutate(fn func(tx *sqlx.Tx) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func nextVersion(tx *sqlx.Tx) (uint64, error) {
	var version uint64
	if err := tx.Get(&version, "UPDATE version_counter SET value = value + 1 WHERE id = 1 RETURNING value"); err != nil {
		return 0, fmt.Errorf("failed to bump version: %w", err)
	}
	return version, nil
}

func getFile(q sqlx.Queryer, id uuid.UUID) (*model.FileMetadata, error) {
	var row fileRow
	err := sqlx.Get(q, &row, "SELECT "+fileColumns+" FROM files WHERE id = ?", id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file %s: %w", id, err)
	}
	return row.toModel()
}

func saveFile(tx *sqlx.Tx, meta *model.FileMetadata) error {
	query := `INSERT INTO files (` + fileColumns + `)
		VALUES (:id, :owner, :file_type, :parent, :name_encrypted, :name_hmac, :metadata_version, :content_version, :deleted, :access_key)
		ON CONFLICT(id) DO UPDATE SET
			parent = excluded.parent,
			name_encrypted = excluded.name_encrypted,
			name_hmac = excluded.name_hmac,
			metadata_version = excluded.metadata_version,
			content_version = excluded.content_version,
			deleted = excluded.deleted,
			access_key = excluded.access_key`
	if _, err := tx.NamedExec(query, newFileRow(meta)); err != nil {
		return fmt.Errorf("failed to save file %s: %w", meta.ID, err)
	}
	return nil
}

func children(q sqlx.Queryer, parent uuid.UUID) ([]*model.FileMetadata, error) {
	var rows []fileRow
	if err := sqlx.Select(q, &rows, "SELECT "+fileColumns+" FROM files WHERE parent = ? AND id != parent ORDER BY metadata_version", parent.String()); err != nil {
		return nil, fmt.Errorf("failed to list children of %s: %w", parent, err)
	}
	out := make([]*model.FileMetadata, 0, len(rows))
	for i := range rows {
		meta, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, meta)
	}
	return out, nil
}

// lookup returns a live file of owner with the given type
func lookup(q sqlx.Queryer, owner string, id uuid.UUID, fileType model.FileType) (*model.FileMetadata, error) {
	meta, err := getFile(q, id)
	if err != nil {
		return nil, err
	}
	if meta == nil || meta.Owner != owner || (fileType != "" && meta.FileType != fileType) {
		return nil, fmt.Errorf("%w: %s", api.ErrFileNotFound, id)
	}
	if meta.Deleted {
		return nil, fmt.Errorf("%w: %s", api.ErrFileDeleted, id)
	}
	return meta, nil
}

// checkParent verifies parent is a live folder of owner
func checkParent(q sqlx.Queryer, owner string, parent uuid.UUID) error {
	meta, err := getFile(q, parent)
	if err != nil {
		return err
	}
	if meta == nil || meta.Owner != owner || !meta.IsFolder() {
		return fmt.Errorf("%w: %s", api.ErrParentNotFound, parent)
	}
	if meta.Deleted {
		return fmt.Errorf("%w: %s", api.ErrParentDeleted, parent)
	}
	return nil
}

// checkNameFree fails if a live sibling other than self already uses name
func checkNameFree(q sqlx.Queryer, parent uuid.UUID, name model.SecretName, self uuid.UUID) error {
	var count int
	err := sqlx.Get(q, &count,
		"SELECT COUNT(*) FROM files WHERE parent = ? AND id != parent AND id != ? AND deleted = 0 AND name_hmac = ?",
		parent.String(), self.String(), name.HMAC)
	if err != nil {
		return fmt.Errorf("failed to check name: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: in %s", api.ErrPathTaken, parent)
	}
	return nil
}

// checkNotDescendant fails if target is id or lies below it
func checkNotDescendant(q sqlx.Queryer, id, target uuid.UUID) error {
	cur := target
	for range maxDepth {
		if cur == id {
			return api.ErrCannotMoveIntoDescendant
		}
		meta, err := getFile(q, cur)
		if err != nil {
			return err
		}
		if meta == nil || meta.IsRoot() {
			return nil
		}
		cur = meta.Parent
	}
	return fmt.Errorf("file tree deeper than %d levels", maxDepth)
}

const maxDepth = 4096

func (s *FileService) putBlob(ctx context.Context, id uuid.UUID, contentVersion uint64, content []byte) error {
	if err := s.backend.PutObject(ctx, blobKey(id, contentVersion), content); err != nil {
		return fmt.Errorf("failed to store content of %s: %w", id, err)
	}
	return nil
}

// dropBlob removes an outdated content version. Failures only leak storage.
func (s *FileService) dropBlob(ctx context.Context, id uuid.UUID, contentVersion uint64) {
	if _, err := s.backend.DeleteObject(ctx, blobKey(id, contentVersion)); err != nil {
		slog.Warn("failed to delete blob", "id", id, "contentVersion", contentVersion, "error", err)
	}
}
