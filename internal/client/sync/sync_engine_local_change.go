package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/openmined/syftvault/internal/api"
	"github.com/openmined/syftvault/internal/client/store"
	"github.com/openmined/syftvault/internal/model"
)

// handleLocalChange pushes the pending change of one file. A rename, a move
// and an edit are separate server mutations, each committed locally as soon
// as the server accepts it.
func (se *SyncEngine) handleLocalChange(ctx context.Context, unit *model.FileMetadata) error {
	id := unit.ID

	change, err := se.store.GetLocalChange(id)
	if err != nil {
		return err
	}
	if change == nil {
		return nil
	}

	if change.New {
		if change.Deleted {
			slog.Debug("sync dropping file created and deleted locally", "id", id)
			return se.store.Purge(id)
		}
		return se.pushNew(ctx, id)
	}
	if change.Deleted {
		return se.pushDelete(ctx, id)
	}

	if change.Renamed != nil {
		if err := se.pushRename(ctx, id); err != nil {
			return err
		}
	}
	if change.Moved != nil {
		if err := se.pushMove(ctx, id); err != nil {
			return err
		}
	}
	if change.ContentEdited != nil {
		if err := se.pushContent(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (se *SyncEngine) current(id uuid.UUID) (*model.FileMetadata, error) {
	meta, err := se.store.Current(id)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, fmt.Errorf("sync: no metadata for pending change %s", id)
	}
	return meta, nil
}

// commitAccepted applies an accepted mutation to base and the local viewpoint
// in one transaction
func (se *SyncEngine) commitAccepted(id uuid.UUID, version uint64, fn func(tx *store.Store, base, local *model.FileMetadata) error) error {
	return se.store.Update(func(tx *store.Store) error {
		base, err := tx.GetMetadata(store.ScopeBase, id)
		if err != nil {
			return err
		}
		local, err := tx.Current(id)
		if err != nil {
			return err
		}
		if base == nil || local == nil {
			return fmt.Errorf("sync: %s vanished while pushing", id)
		}

		base.MetadataVersion = version
		local.MetadataVersion = version
		if err := fn(tx, base, local); err != nil {
			return err
		}
		if err := tx.InsertMetadata(store.ScopeBase, base); err != nil {
			return err
		}
		return storeLocal(tx, local)
	})
}

func (se *SyncEngine) pushNew(ctx context.Context, id uuid.UUID) error {
	meta, err := se.current(id)
	if err != nil {
		return err
	}

	var content []byte
	if meta.IsDocument() {
		if content, err = se.store.CurrentDocument(id); err != nil {
			return err
		}
	}

	pushed := meta.Clone()
	pushed.MetadataVersion = 0
	pushed.ContentVersion = 0
	resp, err := se.server.CreateFile(ctx, &api.CreateFileRequest{Metadata: pushed, Content: content})
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	return se.store.Update(func(tx *store.Store) error {
		local, err := tx.Current(id)
		if err != nil {
			return err
		}
		if local == nil {
			return fmt.Errorf("sync: %s vanished while pushing", id)
		}

		base := pushed.Clone()
		base.MetadataVersion = resp.NewVersion
		base.ContentVersion = resp.NewVersion
		if err := tx.InsertMetadata(store.ScopeBase, base); err != nil {
			return err
		}
		if meta.IsDocument() {
			if err := tx.InsertDocument(store.ScopeBase, id, resp.NewVersion, content); err != nil {
				return err
			}
		}
		if err := tx.UntrackNew(id); err != nil {
			return err
		}

		// edits made while the create was in flight become regular changes
		if !local.Name.Equal(base.Name) {
			if err := tx.TrackRename(id, base.Name); err != nil {
				return err
			}
		}
		if local.Parent != base.Parent {
			if err := tx.TrackMove(id, base.Parent); err != nil {
				return err
			}
		}
		if local.IsDocument() {
			current, err := tx.GetDocument(store.ScopeLocal, id)
			if err != nil {
				return err
			}
			if !bytes.Equal(current, content) {
				if err := tx.TrackEdit(id, content, local.AccessKey); err != nil {
					return err
				}
				if err := tx.InsertDocument(store.ScopeLocal, id, resp.NewVersion, current); err != nil {
					return err
				}
			}
		}
		if local.Deleted {
			if err := tx.TrackDelete(id); err != nil {
				return err
			}
		}

		local.MetadataVersion = resp.NewVersion
		local.ContentVersion = resp.NewVersion
		slog.Debug("sync created", "id", id, "version", resp.NewVersion)
		return storeLocal(tx, local)
	})
}

func (se *SyncEngine) pushRename(ctx context.Context, id uuid.UUID) error {
	meta, err := se.current(id)
	if err != nil {
		return err
	}

	resp, err := se.server.RenameFile(ctx, &api.RenameFileRequest{
		ID:                 id,
		FileType:           meta.FileType,
		OldMetadataVersion: meta.MetadataVersion,
		NewName:            meta.Name,
	})
	if err != nil {
		return fmt.Errorf("rename file: %w", err)
	}

	return se.commitAccepted(id, resp.NewVersion, func(tx *store.Store, base, local *model.FileMetadata) error {
		base.Name = meta.Name
		if !local.Name.Equal(meta.Name) {
			return nil
		}
		return tx.UntrackRename(id)
	})
}

func (se *SyncEngine) pushMove(ctx context.Context, id uuid.UUID) error {
	meta, err := se.current(id)
	if err != nil {
		return err
	}

	resp, err := se.server.MoveFile(ctx, &api.MoveFileRequest{
		ID:                 id,
		FileType:           meta.FileType,
		OldMetadataVersion: meta.MetadataVersion,
		NewParent:          meta.Parent,
		NewAccessKey:       meta.AccessKey,
	})
	if err != nil {
		return fmt.Errorf("move file: %w", err)
	}

	return se.commitAccepted(id, resp.NewVersion, func(tx *store.Store, base, local *model.FileMetadata) error {
		base.Parent = meta.Parent
		base.AccessKey = meta.AccessKey
		if local.Parent != meta.Parent {
			return nil
		}
		return tx.UntrackMove(id)
	})
}

func (se *SyncEngine) pushContent(ctx context.Context, id uuid.UUID) error {
	meta, err := se.current(id)
	if err != nil {
		return err
	}
	content, err := se.store.CurrentDocument(id)
	if err != nil {
		return err
	}

	resp, err := se.server.ChangeDocumentContent(ctx, &api.ChangeDocumentContentRequest{
		ID:                 id,
		OldMetadataVersion: meta.MetadataVersion,
		NewContent:         content,
	})
	if err != nil {
		return fmt.Errorf("change document content: %w", err)
	}

	return se.commitAccepted(id, resp.NewVersion, func(tx *store.Store, base, local *model.FileMetadata) error {
		base.ContentVersion = resp.NewVersion
		local.ContentVersion = resp.NewVersion
		if err := tx.InsertDocument(store.ScopeBase, id, resp.NewVersion, content); err != nil {
			return err
		}

		current, err := tx.GetDocument(store.ScopeLocal, id)
		if err != nil {
			return err
		}
		if !bytes.Equal(current, content) {
			// edited again while in flight
			if err := tx.RebaseEdit(id, content); err != nil {
				return err
			}
			return tx.InsertDocument(store.ScopeLocal, id, resp.NewVersion, current)
		}
		if err := tx.UntrackEdit(id); err != nil {
			return err
		}
		return tx.DeleteDocument(store.ScopeLocal, id)
	})
}

// pushDelete deletes the file on the server. A file the server already
// deleted or never had counts as converged.
func (se *SyncEngine) pushDelete(ctx context.Context, id uuid.UUID) error {
	meta, err := se.current(id)
	if err != nil {
		return err
	}

	resp, err := se.server.DeleteFile(ctx, &api.DeleteFileRequest{ID: id, FileType: meta.FileType})
	switch {
	case err == nil:
	case errors.Is(err, api.ErrFileDeleted), errors.Is(err, api.ErrFileNotFound):
		slog.Debug("sync delete already applied on server", "id", id, "error", err)
		resp = &api.FileVersionResponse{NewVersion: meta.MetadataVersion}
	default:
		return fmt.Errorf("delete file: %w", err)
	}

	return se.store.Update(func(tx *store.Store) error {
		base, err := tx.GetMetadata(store.ScopeBase, id)
		if err != nil {
			return err
		}
		if base == nil {
			return tx.Purge(id)
		}

		base.Deleted = true
		base.MetadataVersion = resp.NewVersion
		if err := tx.InsertMetadata(store.ScopeBase, base); err != nil {
			return err
		}
		if err := tx.DeleteMetadata(store.ScopeLocal, id); err != nil {
			return err
		}
		for _, scope := range []store.Scope{store.ScopeBase, store.ScopeLocal, store.ScopeRemote} {
			if err := tx.DeleteDocument(scope, id); err != nil {
				return err
			}
		}
		slog.Debug("sync deleted", "id", id, "version", resp.NewVersion)
		return tx.DeleteLocalChange(id)
	})
}
