package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openmined/syftvault/internal/client/files"
	"github.com/openmined/syftvault/internal/client/merge"
	"github.com/openmined/syftvault/internal/client/store"
	"github.com/openmined/syftvault/internal/model"
)

const (
	contentConflictFormat = "%s-CONTENT-CONFLICT-%s"
	maxForkSuffix         = 1000
)

// contentMerge is the outcome of reconciling concurrent edits of one document
type contentMerge struct {
	text     []byte // encrypted merged text, nil for binary documents
	clean    bool
	local    []byte // encrypted local content, kept in a fork for binary documents
	forkName string
}

// mergeFiles reconciles a file that changed both locally and on the server
func (se *SyncEngine) mergeFiles(ctx context.Context, base, remote *model.FileMetadata, change *model.LocalChange) error {
	local, err := se.store.Current(remote.ID)
	if err != nil {
		return err
	}
	merged := merge.MergeMetadata(base, local, remote)
	if merged.Parent != remote.Parent || !merged.Name.Equal(remote.Name) {
		// a kept local rename or move can land on a sibling the remote name check missed
		if err := se.renameLocalConflicts(merged); err != nil {
			return fmt.Errorf("rename local conflicts: %w", err)
		}
	}

	remoteEdited := remote.IsDocument() && remote.ContentVersion != base.ContentVersion
	var serverContent []byte
	if remoteEdited {
		if serverContent, err = se.fetchDocument(ctx, remote); err != nil {
			return err
		}
	}

	// the server holding the exact local bytes means an earlier push landed
	// but its response never came back
	editLanded := false
	if remoteEdited && change.ContentEdited != nil {
		localSealed, err := se.store.CurrentDocument(remote.ID)
		if err != nil {
			return err
		}
		editLanded = bytes.Equal(localSealed, serverContent)
	}

	var content *contentMerge
	if remoteEdited && change.ContentEdited != nil && !editLanded {
		if content, err = se.mergeDocuments(merged, change, serverContent); err != nil {
			return err
		}
	}

	err = se.store.Update(func(tx *store.Store) error {
		if change.Renamed != nil && !remote.Name.Equal(base.Name) {
			if err := tx.UntrackRename(remote.ID); err != nil {
				return err
			}
		}
		if change.Moved != nil && remote.Parent != base.Parent {
			if err := tx.UntrackMove(remote.ID); err != nil {
				return err
			}
		}

		if err := tx.InsertMetadata(store.ScopeBase, remote); err != nil {
			return err
		}
		if remoteEdited {
			if err := commitBaseDocument(tx, remote, serverContent); err != nil {
				return err
			}
		}

		switch {
		case editLanded:
			if err := tx.UntrackEdit(remote.ID); err != nil {
				return err
			}
			if err := tx.DeleteDocument(store.ScopeLocal, remote.ID); err != nil {
				return err
			}
		case content != nil && content.text != nil:
			if err := tx.InsertDocument(store.ScopeLocal, remote.ID, remote.ContentVersion, content.text); err != nil {
				return err
			}
			if err := tx.RebaseEdit(remote.ID, serverContent); err != nil {
				return err
			}
		case content != nil:
			if err := se.forkDocument(tx, merged, content); err != nil {
				return err
			}
			if err := tx.UntrackEdit(remote.ID); err != nil {
				return err
			}
			if err := tx.DeleteDocument(store.ScopeLocal, remote.ID); err != nil {
				return err
			}
		case change.ContentEdited != nil && remote.IsDocument():
			// the edit is already against the current server content
		case remoteEdited:
			if err := tx.DeleteDocument(store.ScopeLocal, remote.ID); err != nil {
				return err
			}
		}

		return storeLocal(tx, merged)
	})
	if err != nil {
		return err
	}

	if content != nil && !content.clean {
		se.status.SetConflicted(remote.ID)
	}
	slog.Debug("sync merged", "id", remote.ID, "version", remote.MetadataVersion, "contentMerged", content != nil)
	return nil
}

// mergeDocuments combines a pending local edit with new server content.
// Text documents are merged line by line, conflicting hunks are kept between
// markers. Binary documents keep the local bytes for a forked sibling.
func (se *SyncEngine) mergeDocuments(merged *model.FileMetadata, change *model.LocalChange, serverContent []byte) (*contentMerge, error) {
	localSealed, err := se.store.CurrentDocument(merged.ID)
	if err != nil {
		return nil, err
	}

	name, err := se.crypto.DecryptName(merged.Name)
	if err != nil {
		return nil, fmt.Errorf("decrypt name: %w", err)
	}

	if !merge.IsText(name) {
		return &contentMerge{
			local:    localSealed,
			forkName: fmt.Sprintf(contentConflictFormat, name, merged.ID),
		}, nil
	}

	ancestor, err := se.decryptOrEmpty(change.ContentEdited.OldValue)
	if err != nil {
		return nil, fmt.Errorf("decrypt ancestor: %w", err)
	}
	localPlain, err := se.decryptOrEmpty(localSealed)
	if err != nil {
		return nil, fmt.Errorf("decrypt local content: %w", err)
	}
	serverPlain, err := se.decryptOrEmpty(serverContent)
	if err != nil {
		return nil, fmt.Errorf("decrypt server content: %w", err)
	}

	out, clean := merge.ThreeWay(ancestor, localPlain, serverPlain)
	sealed, err := se.crypto.EncryptDocument(out)
	if err != nil {
		return nil, fmt.Errorf("encrypt merged content: %w", err)
	}
	if !clean {
		slog.Warn("sync text merge conflict", "id", merged.ID, "name", name)
	}
	return &contentMerge{text: sealed, clean: clean}, nil
}

func (se *SyncEngine) decryptOrEmpty(sealed []byte) ([]byte, error) {
	if len(sealed) == 0 {
		return nil, nil
	}
	return se.crypto.DecryptDocument(sealed)
}

// forkDocument stores the local bytes of a binary conflict as a new sibling.
// Copies left by earlier conflicts of the same file get a counter suffix.
func (se *SyncEngine) forkDocument(tx *store.Store, merged *model.FileMetadata, content *contentMerge) error {
	fs := se.files.WithStore(tx)
	name := content.forkName
	var fork *model.FileMetadata
	for n := 2; ; n++ {
		var err error
		fork, err = fs.Create(name, merged.Parent, model.FileTypeDocument)
		if err == nil {
			break
		}
		if !errors.Is(err, files.ErrNameTaken) || n > maxForkSuffix {
			return fmt.Errorf("create conflict copy: %w", err)
		}
		name = fmt.Sprintf("%s-%d", content.forkName, n)
	}
	if err := tx.InsertDocument(store.ScopeLocal, fork.ID, 0, content.local); err != nil {
		return err
	}
	slog.Warn("sync binary content conflict, kept local copy", "id", merged.ID, "copy", fork.ID, "name", name)
	se.status.SetConflicted(fork.ID)
	return nil
}
