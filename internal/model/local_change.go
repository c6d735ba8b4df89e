package model

import "github.com/google/uuid"

type Renamed struct {
	OldValue SecretName
}

type Moved struct {
	OldValue uuid.UUID
}

// Edited keeps the encrypted content the edit was made against
type Edited struct {
	OldValue   []byte
	AccessInfo []byte
}

// LocalChange is the set of pending local mutations to one file since the last sync
type LocalChange struct {
	ID            uuid.UUID
	New           bool
	Renamed       *Renamed
	Moved         *Moved
	ContentEdited *Edited
	Deleted       bool
}

func (c *LocalChange) IsEmpty() bool {
	return !c.New && c.Renamed == nil && c.Moved == nil && c.ContentEdited == nil && !c.Deleted
}
