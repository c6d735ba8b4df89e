package store

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/openmined/syftvault/internal/model"
)

type metadataRow struct {
	Scope           string `db:"scope"`
	ID              string `db:"id"`
	FileType        string `db:"file_type"`
	Parent          string `db:"parent"`
	NameEncrypted   []byte `db:"name_encrypted"`
	NameHMAC        []byte `db:"name_hmac"`
	Owner           string `db:"owner"`
	MetadataVersion uint64 `db:"metadata_version"`
	ContentVersion  uint64 `db:"content_version"`
	Deleted         bool   `db:"deleted"`
	AccessKey       []byte `db:"access_key"`
}

func newMetadataRow(scope Scope, m *model.FileMetadata) *metadataRow {
	return &metadataRow{
		Scope:           string(scope),
		ID:              m.ID.String(),
		FileType:        string(m.FileType),
		Parent:          m.Parent.String(),
		NameEncrypted:   m.Name.Encrypted,
		NameHMAC:        m.Name.HMAC,
		Owner:           m.Owner,
		MetadataVersion: m.MetadataVersion,
		ContentVersion:  m.ContentVersion,
		Deleted:         m.Deleted,
		AccessKey:       m.AccessKey,
	}
}

func (r *metadataRow) toModel() (*model.FileMetadata, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid id %q: %w", r.ID, err)
	}
	parent, err := uuid.Parse(r.Parent)
	if err != nil {
		return nil, fmt.Errorf("invalid parent %q of %s: %w", r.Parent, r.ID, err)
	}
	return &model.FileMetadata{
		ID:              id,
		FileType:        model.FileType(r.FileType),
		Parent:          parent,
		Name:            model.SecretName{Encrypted: r.NameEncrypted, HMAC: r.NameHMAC},
		Owner:           r.Owner,
		MetadataVersion: r.MetadataVersion,
		ContentVersion:  r.ContentVersion,
		Deleted:         r.Deleted,
		AccessKey:       nilIfEmpty(r.AccessKey),
	}, nil
}

// nilIfEmpty maps the empty blobs sqlite hands back for NULL columns to nil
func nilIfEmpty(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

func rowsToModels(rows []metadataRow) ([]*model.FileMetadata, error) {
	out := make([]*model.FileMetadata, 0, len(rows))
	for i := range rows {
		m, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

type localChangeRow struct {
	Seq                 int64  `db:"seq"`
	ID                  string `db:"id"`
	New                 bool   `db:"new"`
	Renamed             bool   `db:"renamed"`
	RenamedOldEncrypted []byte `db:"renamed_old_encrypted"`
	RenamedOldHMAC      []byte `db:"renamed_old_hmac"`
	Moved               bool   `db:"moved"`
	MovedOld            string `db:"moved_old"`
	Edited              bool   `db:"edited"`
	EditedOld           []byte `db:"edited_old"`
	EditedAccess        []byte `db:"edited_access"`
	Deleted             bool   `db:"deleted"`
}

func newLocalChangeRow(c *model.LocalChange) *localChangeRow {
	row := &localChangeRow{
		ID:      c.ID.String(),
		New:     c.New,
		Deleted: c.Deleted,
	}
	if c.Renamed != nil {
		row.Renamed = true
		row.RenamedOldEncrypted = c.Renamed.OldValue.Encrypted
		row.RenamedOldHMAC = c.Renamed.OldValue.HMAC
	}
	if c.Moved != nil {
		row.Moved = true
		row.MovedOld = c.Moved.OldValue.String()
	}
	if c.ContentEdited != nil {
		row.Edited = true
		row.EditedOld = c.ContentEdited.OldValue
		row.EditedAccess = c.ContentEdited.AccessInfo
	}
	return row
}

func (r *localChangeRow) toModel() (*model.LocalChange, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid id %q: %w", r.ID, err)
	}
	c := &model.LocalChange{ID: id, New: r.New, Deleted: r.Deleted}
	if r.Renamed {
		c.Renamed = &model.Renamed{OldValue: model.SecretName{Encrypted: r.RenamedOldEncrypted, HMAC: r.RenamedOldHMAC}}
	}
	if r.Moved {
		old, err := uuid.Parse(r.MovedOld)
		if err != nil {
			return nil, fmt.Errorf("invalid moved_old %q of %s: %w", r.MovedOld, r.ID, err)
		}
		c.Moved = &model.Moved{OldValue: old}
	}
	if r.Edited {
		c.ContentEdited = &model.Edited{OldValue: nilIfEmpty(r.EditedOld), AccessInfo: nilIfEmpty(r.EditedAccess)}
	}
	return c, nil
}
