package api

import (
	"github.com/google/uuid"
	"github.com/openmined/syftvault/internal/model"
)

type GetUpdatesRequest struct {
	SinceMetadataVersion uint64 `json:"since"`
}

type GetUpdatesResponse struct {
	Files []*model.FileMetadata `json:"files"`
}

type GetDocumentRequest struct {
	ID             uuid.UUID `json:"id"`
	ContentVersion uint64    `json:"content_version"`
}

type GetDocumentResponse struct {
	Content []byte `json:"content"`
}

// CreateFileRequest creates a document or a folder. Content is ignored for folders.
type CreateFileRequest struct {
	Metadata *model.FileMetadata `json:"metadata"`
	Content  []byte              `json:"content,omitempty"`
}

type RenameFileRequest struct {
	ID                 uuid.UUID        `json:"id"`
	FileType           model.FileType   `json:"file_type"`
	OldMetadataVersion uint64           `json:"old_metadata_version"`
	NewName            model.SecretName `json:"name"`
}

type MoveFileRequest struct {
	ID                 uuid.UUID      `json:"id"`
	FileType           model.FileType `json:"file_type"`
	OldMetadataVersion uint64         `json:"old_metadata_version"`
	NewParent          uuid.UUID      `json:"parent"`
	NewAccessKey       []byte         `json:"access_key,omitempty"`
}

type ChangeDocumentContentRequest struct {
	ID                 uuid.UUID `json:"id"`
	OldMetadataVersion uint64    `json:"old_metadata_version"`
	NewContent         []byte    `json:"content"`
}

type DeleteFileRequest struct {
	ID       uuid.UUID      `json:"id"`
	FileType model.FileType `json:"file_type"`
}

// FileVersionResponse carries the version assigned by the server to an accepted mutation
type FileVersionResponse struct {
	NewVersion uint64 `json:"new_version"`
}

const EventTypeUpdates = "updates"

// Event is pushed over the events websocket
type Event struct {
	Type    string `json:"type"`
	Version uint64 `json:"version,omitempty"`
}
