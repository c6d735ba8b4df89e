package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/openmined/syftvault/internal/model"
)

// GetLocalChange returns nil, nil when id has no pending change
func (s *Store) GetLocalChange(id uuid.UUID) (*model.LocalChange, error) {
	var row localChangeRow
	if err := s.q.Get(&row, "SELECT * FROM local_changes WHERE id = ?", id.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get local change %s: %w", id, err)
	}
	return row.toModel()
}

// GetPendingLocalChanges returns every pending change in the order it was first tracked
func (s *Store) GetPendingLocalChanges() ([]*model.LocalChange, error) {
	var rows []localChangeRow
	if err := s.q.Select(&rows, "SELECT * FROM local_changes ORDER BY seq"); err != nil {
		return nil, fmt.Errorf("failed to list local changes: %w", err)
	}
	changes := make([]*model.LocalChange, 0, len(rows))
	for i := range rows {
		c, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		if !c.IsEmpty() {
			changes = append(changes, c)
		}
	}
	return changes, nil
}

func (s *Store) DeleteLocalChange(id uuid.UUID) error {
	if _, err := s.q.Exec("DELETE FROM local_changes WHERE id = ?", id.String()); err != nil {
		return fmt.Errorf("failed to delete local change %s: %w", id, err)
	}
	return nil
}

// modifyChange loads (or starts) the change for id, applies fn and writes it back.
// An empty result removes the record. The first tracked position is kept.
func (s *Store) modifyChange(id uuid.UUID, fn func(c *model.LocalChange)) error {
	return s.Update(func(tx *Store) error {
		change, err := tx.GetLocalChange(id)
		if err != nil {
			return err
		}
		if change == nil {
			change = &model.LocalChange{ID: id}
		}
		fn(change)

		if change.IsEmpty() {
			return tx.DeleteLocalChange(id)
		}

		query := `INSERT INTO local_changes
			(id, new, renamed, renamed_old_encrypted, renamed_old_hmac, moved, moved_old, edited, edited_old, edited_access, deleted)
			VALUES (:id, :new, :renamed, :renamed_old_encrypted, :renamed_old_hmac, :moved, :moved_old, :edited, :edited_old, :edited_access, :deleted)
			ON CONFLICT(id) DO UPDATE SET
				new = excluded.new,
				renamed = excluded.renamed,
				renamed_old_encrypted = excluded.renamed_old_encrypted,
				renamed_old_hmac = excluded.renamed_old_hmac,
				moved = excluded.moved,
				moved_old = excluded.moved_old,
				edited = excluded.edited,
				edited_old = excluded.edited_old,
				edited_access = excluded.edited_access,
				deleted = excluded.deleted`
		if _, err := tx.q.NamedExec(query, newLocalChangeRow(change)); err != nil {
			return fmt.Errorf("failed to save local change %s: %w", id, err)
		}
		return nil
	})
}

func (s *Store) TrackNew(id uuid.UUID) error {
	return s.modifyChange(id, func(c *model.LocalChange) { c.New = true })
}

// TrackRename records the name before the first rename since the last sync
func (s *Store) TrackRename(id uuid.UUID, oldName model.SecretName) error {
	return s.modifyChange(id, func(c *model.LocalChange) {
		if c.Renamed == nil {
			c.Renamed = &model.Renamed{OldValue: oldName}
		}
	})
}

// TrackMove records the parent before the first move since the last sync
func (s *Store) TrackMove(id uuid.UUID, oldParent uuid.UUID) error {
	return s.modifyChange(id, func(c *model.LocalChange) {
		if c.Moved == nil {
			c.Moved = &model.Moved{OldValue: oldParent}
		}
	})
}

// TrackEdit records the encrypted content the first edit since the last sync was made against
func (s *Store) TrackEdit(id uuid.UUID, oldContent, accessInfo []byte) error {
	return s.modifyChange(id, func(c *model.LocalChange) {
		if c.ContentEdited == nil {
			c.ContentEdited = &model.Edited{OldValue: oldContent, AccessInfo: accessInfo}
		}
	})
}

// RebaseEdit replaces the ancestor of a pending edit, used after merging server content
func (s *Store) RebaseEdit(id uuid.UUID, newAncestor []byte) error {
	return s.modifyChange(id, func(c *model.LocalChange) {
		if c.ContentEdited != nil {
			c.ContentEdited.OldValue = newAncestor
		}
	})
}

func (s *Store) TrackDelete(id uuid.UUID) error {
	return s.modifyChange(id, func(c *model.LocalChange) { c.Deleted = true })
}

func (s *Store) UntrackNew(id uuid.UUID) error {
	return s.modifyChange(id, func(c *model.LocalChange) { c.New = false })
}

func (s *Store) UntrackRename(id uuid.UUID) error {
	return s.modifyChange(id, func(c *model.LocalChange) { c.Renamed = nil })
}

func (s *Store) UntrackMove(id uuid.UUID) error {
	return s.modifyChange(id, func(c *model.LocalChange) { c.Moved = nil })
}

func (s *Store) UntrackEdit(id uuid.UUID) error {
	return s.modifyChange(id, func(c *model.LocalChange) { c.ContentEdited = nil })
}

func (s *Store) UntrackDelete(id uuid.UUID) error {
	return s.modifyChange(id, func(c *model.LocalChange) { c.Deleted = false })
}
