package api

const (
	// Generic request/server errors
	CodeInvalidRequest = "E_INVALID_REQUEST" // bad or invalid request
	CodeRateLimited    = "E_RATE_LIMITED"    // rate limit exceeded
	CodeInternalError  = "E_INTERNAL_ERROR"  // internal server error
	CodeAccessDenied   = "E_ACCESS_DENIED"   // access denied
	CodeUnknownError   = "E_UNKNOWN_ERR"     // unknown error

	// File errors. Each one describes current divergence, not a broken request.
	CodeEditConflict             = "E_EDIT_CONFLICT"               // expected version did not match the server
	CodePathTaken                = "E_PATH_TAKEN"                  // a non-deleted sibling already has the name
	CodeParentNotFound           = "E_PARENT_NOT_FOUND"            // parent id is unknown
	CodeParentDeleted            = "E_PARENT_DELETED"              // parent folder is a tombstone
	CodeCannotMoveIntoDescendant = "E_CANNOT_MOVE_INTO_DESCENDANT" // folder moved under itself
	CodeCannotChangeRoot         = "E_CANNOT_CHANGE_ROOT"          // root cannot be renamed, moved or deleted
	CodeFileNotFound             = "E_FILE_NOT_FOUND"              // id is unknown or has a different type
	CodeFileDeleted              = "E_FILE_DELETED"                // file is a tombstone
	CodeFileIDTaken              = "E_FILE_ID_TAKEN"               // create with an id that already exists
	CodeDocumentNotFound         = "E_DOCUMENT_NOT_FOUND"          // content version is not stored
)
