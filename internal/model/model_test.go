package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSecretNameEqual(t *testing.T) {
	a := SecretName{Encrypted: []byte("one"), HMAC: []byte{1, 2, 3}}
	b := SecretName{Encrypted: []byte("two"), HMAC: []byte{1, 2, 3}}
	c := SecretName{Encrypted: []byte("one"), HMAC: []byte{3, 2, 1}}

	assert.True(t, a.Equal(b), "different ciphertext with the same hmac is the same name")
	assert.False(t, a.Equal(c))
	assert.True(t, SecretName{}.IsZero())
}

func TestFileMetadataClone(t *testing.T) {
	id := uuid.New()
	orig := &FileMetadata{
		ID:        id,
		Parent:    id,
		FileType:  FileTypeFolder,
		Name:      SecretName{Encrypted: []byte("n"), HMAC: []byte("h")},
		AccessKey: []byte("k"),
	}
	clone := orig.Clone()
	clone.Name.HMAC[0] = 'x'
	clone.AccessKey[0] = 'x'

	assert.Equal(t, []byte("h"), orig.Name.HMAC)
	assert.Equal(t, []byte("k"), orig.AccessKey)
	assert.True(t, orig.IsRoot())
	assert.True(t, orig.IsFolder())
	assert.Nil(t, (*FileMetadata)(nil).Clone())
}

func TestLocalChangeIsEmpty(t *testing.T) {
	c := &LocalChange{ID: uuid.New()}
	assert.True(t, c.IsEmpty())

	c.Moved = &Moved{OldValue: uuid.New()}
	assert.False(t, c.IsEmpty())

	c.Moved = nil
	c.Deleted = true
	assert.False(t, c.IsEmpty())
}
