package files

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/openmined/syftvault/internal/api"
	"github.com/openmined/syftvault/internal/model"
	"github.com/openmined/syftvault/internal/server/blob"
)

// UserService serves the file API for one owner
type UserService struct {
	svc   *FileService
	owner string
}

func (u *UserService) Owner() string {
	return u.owner
}

// GetUpdates returns every file of the owner changed after since, oldest first
func (u *UserService) GetUpdates(ctx context.Context, req *api.GetUpdatesRequest) (*api.GetUpdatesResponse, error) {
	var rows []fileRow
	err := u.svc.db.SelectContext(ctx, &rows,
		"SELECT "+fileColumns+" FROM files WHERE owner = ? AND metadata_version > ? ORDER BY metadata_version",
		u.owner, req.SinceMetadataVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to list updates: %w", err)
	}

	resp := &api.GetUpdatesResponse{Files: make([]*model.FileMetadata, 0, len(rows))}
	for i := range rows {
		meta, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		resp.Files = append(resp.Files, meta)
	}
	return resp, nil
}

// GetDocument returns the content of a document. Only the current content version is kept.
func (u *UserService) GetDocument(ctx context.Context, req *api.GetDocumentRequest) (*api.GetDocumentResponse, error) {
	meta, err := lookup(u.svc.db, u.owner, req.ID, model.FileTypeDocument)
	if err != nil {
		return nil, err
	}
	if meta.ContentVersion != req.ContentVersion {
		return nil, fmt.Errorf("%w: %s@%d", api.ErrDocumentNotFound, req.ID, req.ContentVersion)
	}

	content, err := u.svc.backend.GetObject(ctx, blobKey(meta.ID, meta.ContentVersion))
	if errors.Is(err, blob.ErrObjectNotFound) {
		return nil, fmt.Errorf("%w: %s@%d", api.ErrDocumentNotFound, req.ID, req.ContentVersion)
	}
	if err != nil {
		return nil, err
	}
	return &api.GetDocumentResponse{Content: content}, nil
}

func (u *UserService) CreateFile(ctx context.Context, req *api.CreateFileRequest) (*api.FileVersionResponse, error) {
	if req.Metadata == nil || req.Metadata.ID == uuid.Nil || !req.Metadata.FileType.Valid() {
		return nil, fmt.Errorf("%w: metadata with id and file type required", api.ErrInvalidRequest)
	}
	if req.Metadata.Owner != "" && req.Metadata.Owner != u.owner {
		return nil, fmt.Errorf("%w: cannot create files for %s", api.ErrAccessDenied, req.Metadata.Owner)
	}

	meta := req.Metadata.Clone()
	meta.Owner = u.owner
	meta.Deleted = false

	var version uint64
	err := u.svc.mutate(func(tx *sqlx.Tx) error {
		existing, err := getFile(tx, meta.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: %s", api.ErrFileIDTaken, meta.ID)
		}

		if meta.IsRoot() {
			if !meta.IsFolder() {
				return fmt.Errorf("%w: root must be a folder", api.ErrInvalidRequest)
			}
			if err := u.checkNoRoot(tx); err != nil {
				return err
			}
		} else {
			if err := checkParent(tx, u.owner, meta.Parent); err != nil {
				return err
			}
			if err := checkNameFree(tx, meta.Parent, meta.Name, meta.ID); err != nil {
				return err
			}
		}

		if version, err = nextVersion(tx); err != nil {
			return err
		}
		meta.MetadataVersion = version
		meta.ContentVersion = version
		if meta.IsDocument() {
			if err := u.svc.putBlob(ctx, meta.ID, version, req.Content); err != nil {
				return err
			}
		}
		return saveFile(tx, meta)
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("file created", "owner", u.owner, "id", meta.ID, "type", meta.FileType, "version", version)
	u.svc.notify(u.owner, version)
	return &api.FileVersionResponse{NewVersion: version}, nil
}

func (u *UserService) checkNoRoot(tx *sqlx.Tx) error {
	var count int
	if err := tx.Get(&count, "SELECT COUNT(*) FROM files WHERE owner = ? AND id = parent", u.owner); err != nil {
		return fmt.Errorf("failed to check root: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %s already has a root", api.ErrPathTaken, u.owner)
	}
	return nil
}

// modify loads a live file at the expected version and saves the result of fn under a new version
func (u *UserService) modify(id uuid.UUID, fileType model.FileType, expected uint64, fn func(tx *sqlx.Tx, meta *model.FileMetadata, version uint64) error) (uint64, error) {
	var version uint64
	err := u.svc.mutate(func(tx *sqlx.Tx) error {
		meta, err := lookup(tx, u.owner, id, fileType)
		if err != nil {
			return err
		}
		if meta.IsRoot() {
			return api.ErrCannotChangeRoot
		}
		if meta.MetadataVersion != expected {
			return fmt.Errorf("%w: %s is at %d, not %d", api.ErrEditConflict, id, meta.MetadataVersion, expected)
		}

		if version, err = nextVersion(tx); err != nil {
			return err
		}
		if err := fn(tx, meta, version); err != nil {
			return err
		}
		meta.MetadataVersion = version
		return saveFile(tx, meta)
	})
	if err != nil {
		return 0, err
	}
	u.svc.notify(u.owner, version)
	return version, nil
}

func (u *UserService) RenameFile(_ context.Context, req *api.RenameFileRequest) (*api.FileVersionResponse, error) {
	if len(req.NewName.HMAC) == 0 {
		return nil, fmt.Errorf("%w: name required", api.ErrInvalidRequest)
	}

	version, err := u.modify(req.ID, req.FileType, req.OldMetadataVersion, func(tx *sqlx.Tx, meta *model.FileMetadata, _ uint64) error {
		if err := checkNameFree(tx, meta.Parent, req.NewName, meta.ID); err != nil {
			return err
		}
		meta.Name = req.NewName
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("file renamed", "owner", u.owner, "id", req.ID, "version", version)
	return &api.FileVersionResponse{NewVersion: version}, nil
}

func (u *UserService) MoveFile(_ context.Context, req *api.MoveFileRequest) (*api.FileVersionResponse, error) {
	version, err := u.modify(req.ID, req.FileType, req.OldMetadataVersion, func(tx *sqlx.Tx, meta *model.FileMetadata, _ uint64) error {
		if err := checkParent(tx, u.owner, req.NewParent); err != nil {
			return err
		}
		if meta.IsFolder() {
			if err := checkNotDescendant(tx, meta.ID, req.NewParent); err != nil {
				return err
			}
		}
		if err := checkNameFree(tx, req.NewParent, meta.Name, meta.ID); err != nil {
			return err
		}
		meta.Parent = req.NewParent
		meta.AccessKey = req.NewAccessKey
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("file moved", "owner", u.owner, "id", req.ID, "parent", req.NewParent, "version", version)
	return &api.FileVersionResponse{NewVersion: version}, nil
}

func (u *UserService) ChangeDocumentContent(ctx context.Context, req *api.ChangeDocumentContentRequest) (*api.FileVersionResponse, error) {
	var previous uint64
	version, err := u.modify(req.ID, model.FileTypeDocument, req.OldMetadataVersion, func(_ *sqlx.Tx, meta *model.FileMetadata, version uint64) error {
		if err := u.svc.putBlob(ctx, meta.ID, version, req.NewContent); err != nil {
			return err
		}
		previous = meta.ContentVersion
		meta.ContentVersion = version
		return nil
	})
	if err != nil {
		return nil, err
	}

	u.svc.dropBlob(ctx, req.ID, previous)
	slog.Debug("document content changed", "owner", u.owner, "id", req.ID, "version", version)
	return &api.FileVersionResponse{NewVersion: version}, nil
}

// DeleteFile deletes a file and everything below it. Each tombstone gets its
// own version, the returned one belongs to the requested file.
func (u *UserService) DeleteFile(ctx context.Context, req *api.DeleteFileRequest) (*api.FileVersionResponse, error) {
	var (
		version  uint64
		latest   uint64
		orphaned []*model.FileMetadata
	)

	err := u.svc.mutate(func(tx *sqlx.Tx) error {
		meta, err := lookup(tx, u.owner, req.ID, req.FileType)
		if err != nil {
			return err
		}
		if meta.IsRoot() {
			return api.ErrCannotChangeRoot
		}

		seen := mapset.NewThreadUnsafeSet[uuid.UUID]()
		queue := []*model.FileMetadata{meta}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			if !seen.Add(cur.ID) {
				continue
			}

			if cur.IsFolder() {
				kids, err := children(tx, cur.ID)
				if err != nil {
					return err
				}
				queue = append(queue, kids...)
			}
			if cur.Deleted {
				continue
			}

			if latest, err = nextVersion(tx); err != nil {
				return err
			}
			if cur.ID == meta.ID {
				version = latest
			}
			if cur.IsDocument() {
				orphaned = append(orphaned, cur.Clone())
			}
			cur.Deleted = true
			cur.MetadataVersion = latest
			if err := saveFile(tx, cur); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, doc := range orphaned {
		u.svc.dropBlob(ctx, doc.ID, doc.ContentVersion)
	}
	slog.Debug("file deleted", "owner", u.owner, "id", req.ID, "version", version, "documents", len(orphaned))
	u.svc.notify(u.owner, latest)
	return &api.FileVersionResponse{NewVersion: version}, nil
}
