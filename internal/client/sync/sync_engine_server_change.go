package sync

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/openmined/syftvault/internal/api"
	"github.com/openmined/syftvault/internal/client/store"
	"github.com/openmined/syftvault/internal/model"
)

// handleServerChange applies one remote update to the replica
func (se *SyncEngine) handleServerChange(ctx context.Context, remote *model.FileMetadata) error {
	id := remote.ID

	base, err := se.store.GetMetadata(store.ScopeBase, id)
	if err != nil {
		return err
	}
	change, err := se.store.GetLocalChange(id)
	if err != nil {
		return err
	}

	if base == nil {
		local, err := se.store.GetMetadata(store.ScopeLocal, id)
		if err != nil {
			return err
		}
		if change != nil && change.New && landedCreate(local, remote) {
			return se.adoptCreated(ctx, local, remote)
		}
		if local != nil || change != nil {
			return &FatalError{ID: id, Err: fmt.Errorf("%w: server sent known id as new", ErrInconsistentHistory)}
		}
	}

	if !remote.Deleted {
		if err := se.renameLocalConflicts(remote); err != nil {
			return fmt.Errorf("rename local conflicts: %w", err)
		}
	}

	switch {
	case base == nil && remote.Deleted:
		return nil
	case base == nil:
		return se.saveFileLocally(ctx, remote)
	case remote.Deleted:
		return se.deleteFileLocally(remote)
	case change == nil:
		return se.saveFileLocally(ctx, remote)
	case change.Deleted:
		return se.keepLocalDelete(remote)
	default:
		se.status.SetResolving(id)
		return se.mergeFiles(ctx, base, remote, change)
	}
}

// landedCreate reports whether remote is the server copy of a local creation
// whose push response was lost
func landedCreate(local, remote *model.FileMetadata) bool {
	return local != nil &&
		!remote.Deleted &&
		local.FileType == remote.FileType &&
		local.Parent == remote.Parent &&
		local.Name.Equal(remote.Name)
}

// adoptCreated takes the server copy of a landed creation as base. Local
// content that differs from the pushed bytes and a later local delete stay
// pending.
func (se *SyncEngine) adoptCreated(ctx context.Context, local, remote *model.FileMetadata) error {
	var serverContent, localContent []byte
	if remote.IsDocument() {
		var err error
		if serverContent, err = se.fetchDocument(ctx, remote); err != nil {
			return err
		}
		if localContent, err = se.store.GetDocument(store.ScopeLocal, remote.ID); err != nil {
			return err
		}
	}

	err := se.store.Update(func(tx *store.Store) error {
		if err := tx.InsertMetadata(store.ScopeBase, remote); err != nil {
			return err
		}
		if remote.IsDocument() {
			if err := commitBaseDocument(tx, remote, serverContent); err != nil {
				return err
			}
		}
		if err := tx.UntrackNew(remote.ID); err != nil {
			return err
		}

		if localContent != nil && !bytes.Equal(localContent, serverContent) {
			if err := tx.TrackEdit(remote.ID, serverContent, local.AccessKey); err != nil {
				return err
			}
			if err := tx.InsertDocument(store.ScopeLocal, remote.ID, remote.ContentVersion, localContent); err != nil {
				return err
			}
		} else if err := tx.DeleteDocument(store.ScopeLocal, remote.ID); err != nil {
			return err
		}

		adopted := remote.Clone()
		adopted.Deleted = local.Deleted
		return storeLocal(tx, adopted)
	})
	if err != nil {
		return err
	}
	slog.Info("sync adopted server copy of local creation", "id", remote.ID, "version", remote.MetadataVersion)
	return nil
}

// fetchDocument returns the encrypted server content of meta, caching it in
// the remote scope so a failed pass does not download it again
func (se *SyncEngine) fetchDocument(ctx context.Context, meta *model.FileMetadata) ([]byte, error) {
	cached, err := se.store.CachedRemoteDocument(meta.ID, meta.ContentVersion)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	resp, err := se.server.GetDocument(ctx, &api.GetDocumentRequest{ID: meta.ID, ContentVersion: meta.ContentVersion})
	if err != nil {
		return nil, fmt.Errorf("get document %s@%d: %w", meta.ID, meta.ContentVersion, err)
	}
	if err := se.store.InsertDocument(store.ScopeRemote, meta.ID, meta.ContentVersion, resp.Content); err != nil {
		return nil, err
	}
	return resp.Content, nil
}

// saveFileLocally overwrites a file without pending changes with the server state
func (se *SyncEngine) saveFileLocally(ctx context.Context, remote *model.FileMetadata) error {
	var content []byte
	if remote.IsDocument() {
		var err error
		if content, err = se.documentFor(ctx, remote); err != nil {
			return err
		}
	}

	return se.store.Update(func(tx *store.Store) error {
		if err := tx.InsertMetadata(store.ScopeBase, remote); err != nil {
			return err
		}
		if err := tx.DeleteMetadata(store.ScopeLocal, remote.ID); err != nil {
			return err
		}
		if err := tx.DeleteDocument(store.ScopeLocal, remote.ID); err != nil {
			return err
		}
		if content == nil {
			return nil
		}
		return commitBaseDocument(tx, remote, content)
	})
}

// documentFor returns nil when base already holds the content version of remote
func (se *SyncEngine) documentFor(ctx context.Context, remote *model.FileMetadata) ([]byte, error) {
	base, err := se.store.GetMetadata(store.ScopeBase, remote.ID)
	if err != nil {
		return nil, err
	}
	if base != nil && base.ContentVersion == remote.ContentVersion {
		existing, err := se.store.GetDocument(store.ScopeBase, remote.ID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, nil
		}
	}
	return se.fetchDocument(ctx, remote)
}

func commitBaseDocument(tx *store.Store, remote *model.FileMetadata, content []byte) error {
	if err := tx.InsertDocument(store.ScopeBase, remote.ID, remote.ContentVersion, content); err != nil {
		return err
	}
	return tx.DeleteDocument(store.ScopeRemote, remote.ID)
}

// deleteFileLocally applies a server tombstone. A delete wins over every
// pending local change of the file. Files created locally below a deleted
// folder are dropped with it, existing files moved there are moved back.
func (se *SyncEngine) deleteFileLocally(remote *model.FileMetadata) error {
	return se.store.Update(func(tx *store.Store) error {
		if remote.IsFolder() {
			if err := se.evacuateFolder(tx, remote.ID); err != nil {
				return err
			}
		}

		if err := tx.InsertMetadata(store.ScopeBase, remote); err != nil {
			return err
		}
		if err := tx.DeleteMetadata(store.ScopeLocal, remote.ID); err != nil {
			return err
		}
		for _, scope := range []store.Scope{store.ScopeBase, store.ScopeLocal, store.ScopeRemote} {
			if err := tx.DeleteDocument(scope, remote.ID); err != nil {
				return err
			}
		}
		if err := tx.DeleteLocalChange(remote.ID); err != nil {
			return err
		}
		slog.Debug("sync deleted locally", "id", remote.ID, "version", remote.MetadataVersion)
		return nil
	})
}

// evacuateFolder walks the local subtree of a folder the server deleted
func (se *SyncEngine) evacuateFolder(tx *store.Store, folder uuid.UUID) error {
	queue := []uuid.UUID{folder}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		children, err := tx.ListChildren(cur)
		if err != nil {
			return err
		}
		for _, child := range children {
			change, err := tx.GetLocalChange(child.ID)
			if err != nil {
				return err
			}

			if change != nil && change.New {
				if child.IsFolder() {
					queue = append(queue, child.ID)
				}
				if err := tx.Purge(child.ID); err != nil {
					return err
				}
				slog.Info("sync dropped local file below deleted folder", "id", child.ID, "folder", folder)
				continue
			}

			if change != nil && change.Moved != nil {
				restored, err := restoreParent(tx, child)
				if err != nil {
					return err
				}
				if restored {
					continue
				}
			}

			if child.IsFolder() {
				queue = append(queue, child.ID)
			}
		}
	}
	return nil
}

// restoreParent undoes a pending local move of meta back to its server parent
func restoreParent(tx *store.Store, meta *model.FileMetadata) (bool, error) {
	base, err := tx.GetMetadata(store.ScopeBase, meta.ID)
	if err != nil || base == nil {
		return false, err
	}

	meta.Parent = base.Parent
	meta.AccessKey = base.AccessKey
	if err := tx.UntrackMove(meta.ID); err != nil {
		return false, err
	}
	if err := storeLocal(tx, meta); err != nil {
		return false, err
	}
	slog.Info("sync moved file out of deleted folder", "id", meta.ID, "parent", base.Parent)
	return true, nil
}

// storeLocal keeps meta as the local viewpoint while a change is pending and
// drops the local viewpoint once nothing is left to push
func storeLocal(tx *store.Store, meta *model.FileMetadata) error {
	change, err := tx.GetLocalChange(meta.ID)
	if err != nil {
		return err
	}
	if change != nil {
		return tx.InsertMetadata(store.ScopeLocal, meta)
	}
	if err := tx.DeleteMetadata(store.ScopeLocal, meta.ID); err != nil {
		return err
	}
	return tx.DeleteDocument(store.ScopeLocal, meta.ID)
}

// keepLocalDelete rebases a pending local delete onto the newer server state.
// Everything but the delete is discarded and the delete is pushed later.
func (se *SyncEngine) keepLocalDelete(remote *model.FileMetadata) error {
	return se.store.Update(func(tx *store.Store) error {
		if err := tx.InsertMetadata(store.ScopeBase, remote); err != nil {
			return err
		}
		if err := tx.UntrackRename(remote.ID); err != nil {
			return err
		}
		if err := tx.UntrackMove(remote.ID); err != nil {
			return err
		}
		if err := tx.UntrackEdit(remote.ID); err != nil {
			return err
		}
		for _, scope := range []store.Scope{store.ScopeBase, store.ScopeLocal, store.ScopeRemote} {
			if err := tx.DeleteDocument(scope, remote.ID); err != nil {
				return err
			}
		}

		local := remote.Clone()
		local.Deleted = true
		return tx.InsertMetadata(store.ScopeLocal, local)
	})
}
