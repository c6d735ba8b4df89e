package model

import (
	"bytes"

	"github.com/google/uuid"
)

type FileType string

const (
	FileTypeDocument FileType = "document"
	FileTypeFolder   FileType = "folder"
)

func (t FileType) Valid() bool {
	return t == FileTypeDocument || t == FileTypeFolder
}

// SecretName is an encrypted file name plus a keyed hash of the plaintext.
// Two names are equal when their hashes are equal.
type SecretName struct {
	Encrypted []byte `json:"encrypted_value"`
	HMAC      []byte `json:"hmac"`
}

func (n SecretName) Equal(other SecretName) bool {
	return bytes.Equal(n.HMAC, other.HMAC)
}

func (n SecretName) IsZero() bool {
	return len(n.Encrypted) == 0 && len(n.HMAC) == 0
}

// FileMetadata is one node of the file tree as the server versions it
type FileMetadata struct {
	ID              uuid.UUID  `json:"id"`
	FileType        FileType   `json:"file_type"`
	Parent          uuid.UUID  `json:"parent"`
	Name            SecretName `json:"name"`
	Owner           string     `json:"owner"`
	MetadataVersion uint64     `json:"metadata_version"`
	ContentVersion  uint64     `json:"content_version"`
	Deleted         bool       `json:"deleted"`
	AccessKey       []byte     `json:"access_key,omitempty"`
}

func (m *FileMetadata) IsRoot() bool {
	return m.ID == m.Parent
}

func (m *FileMetadata) IsFolder() bool {
	return m.FileType == FileTypeFolder
}

func (m *FileMetadata) IsDocument() bool {
	return m.FileType == FileTypeDocument
}

// Clone returns a deep copy
func (m *FileMetadata) Clone() *FileMetadata {
	if m == nil {
		return nil
	}
	c := *m
	c.Name = SecretName{
		Encrypted: bytes.Clone(m.Name.Encrypted),
		HMAC:      bytes.Clone(m.Name.HMAC),
	}
	c.AccessKey = bytes.Clone(m.AccessKey)
	return &c
}

// Account is the local user identity. Key never leaves the device.
type Account struct {
	Username string `json:"username"`
	APIURL   string `json:"api_url"`
	Key      []byte `json:"-"`
}
