package model

import "github.com/google/uuid"

type WorkUnitKind string

const (
	WorkUnitLocalChange  WorkUnitKind = "local_change"
	WorkUnitServerChange WorkUnitKind = "server_change"
)

// WorkUnit is one reconciliation action. For server changes Metadata is the
// fetched remote state, for local changes it is the local state at calculation time.
type WorkUnit struct {
	Kind     WorkUnitKind
	Metadata *FileMetadata
}

func NewLocalChangeUnit(meta *FileMetadata) *WorkUnit {
	return &WorkUnit{Kind: WorkUnitLocalChange, Metadata: meta}
}

func NewServerChangeUnit(meta *FileMetadata) *WorkUnit {
	return &WorkUnit{Kind: WorkUnitServerChange, Metadata: meta}
}

func (u *WorkUnit) ID() uuid.UUID {
	return u.Metadata.ID
}

func (u *WorkUnit) String() string {
	return string(u.Kind) + ":" + u.Metadata.ID.String()
}

type WorkCalculated struct {
	WorkUnits                  []*WorkUnit
	MostRecentUpdateFromServer uint64
}

type ClientWorkUnitKind string

const (
	ClientWorkUnitLocal             ClientWorkUnitKind = "local"
	ClientWorkUnitServer            ClientWorkUnitKind = "server"
	ClientWorkUnitServerUnknownName ClientWorkUnitKind = "server_unknown_name"
)

// ClientWorkUnit is the displayable form of a WorkUnit
type ClientWorkUnit struct {
	Kind     ClientWorkUnitKind `json:"kind" yaml:"kind"`
	ID       uuid.UUID          `json:"id" yaml:"id"`
	Name     string             `json:"name,omitempty" yaml:"name,omitempty"`
	FileType FileType           `json:"file_type" yaml:"file_type"`
}

func (u ClientWorkUnit) String() string {
	switch u.Kind {
	case ClientWorkUnitLocal:
		return "push " + u.Name
	case ClientWorkUnitServer:
		return "pull " + u.Name
	default:
		return "pull " + u.ID.String()
	}
}

type SyncProgress struct {
	Total           int
	Progress        int
	CurrentWorkUnit ClientWorkUnit
}
