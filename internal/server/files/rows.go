package files

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/openmined/syftvault/internal/model"
)

const fileColumns = "id, owner, file_type, parent, name_encrypted, name_hmac, metadata_version, content_version, deleted, access_key"

type fileRow struct {
	ID              string `db:"id"`
	Owner           string `db:"owner"`
	FileType        string `db:"file_type"`
	Parent          string `db:"parent"`
	NameEncrypted   []byte `db:"name_encrypted"`
	NameHMAC        []byte `db:"name_hmac"`
	MetadataVersion uint64 `db:"metadata_version"`
	ContentVersion  uint64 `db:"content_version"`
	Deleted         bool   `db:"deleted"`
	AccessKey       []byte `db:"access_key"`
}

func newFileRow(m *model.FileMetadata) *fileRow {
	return &fileRow{
		ID:              m.ID.String(),
		Owner:           m.Owner,
		FileType:        string(m.FileType),
		Parent:          m.Parent.String(),
		NameEncrypted:   m.Name.Encrypted,
		NameHMAC:        m.Name.HMAC,
		MetadataVersion: m.MetadataVersion,
		ContentVersion:  m.ContentVersion,
		Deleted:         m.Deleted,
		AccessKey:       m.AccessKey,
	}
}

func (r *fileRow) toModel() (*model.FileMetadata, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid file id %q: %w", r.ID, err)
	}
	parent, err := uuid.Parse(r.Parent)
	if err != nil {
		return nil, fmt.Errorf("invalid parent id %q: %w", r.Parent, err)
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

func blobKey(id uuid.UUID, contentVersion uint64) string {
	return fmt.Sprintf("%s/%d", id, contentVersion)
}

func nilIfEmpty(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
