package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidRequest           = errors.New("invalid request")
	ErrAccessDenied             = errors.New("access denied")
	ErrRateLimited              = errors.New("rate limited")
	ErrEditConflict             = errors.New("edit conflict")
	ErrPathTaken                = errors.New("path taken")
	ErrParentNotFound           = errors.New("parent not found")
	ErrParentDeleted            = errors.New("parent deleted")
	ErrCannotMoveIntoDescendant = errors.New("cannot move folder into its descendant")
	ErrCannotChangeRoot         = errors.New("cannot change root")
	ErrFileNotFound             = errors.New("file not found")
	ErrFileDeleted              = errors.New("file deleted")
	ErrFileIDTaken              = errors.New("file id taken")
	ErrDocumentNotFound         = errors.New("document not found")
)

type errorMapping struct {
	err    error
	code   string
	status int
}

var errorMappings = []errorMapping{
	{ErrInvalidRequest, CodeInvalidRequest, http.StatusBadRequest},
	{ErrAccessDenied, CodeAccessDenied, http.StatusForbidden},
	{ErrRateLimited, CodeRateLimited, http.StatusTooManyRequests},
	{ErrEditConflict, CodeEditConflict, http.StatusConflict},
	{ErrPathTaken, CodePathTaken, http.StatusConflict},
	{ErrParentNotFound, CodeParentNotFound, http.StatusNotFound},
	{ErrParentDeleted, CodeParentDeleted, http.StatusGone},
	{ErrCannotMoveIntoDescendant, CodeCannotMoveIntoDescendant, http.StatusBadRequest},
	{ErrCannotChangeRoot, CodeCannotChangeRoot, http.StatusBadRequest},
	{ErrFileNotFound, CodeFileNotFound, http.StatusNotFound},
	{ErrFileDeleted, CodeFileDeleted, http.StatusGone},
	{ErrFileIDTaken, CodeFileIDTaken, http.StatusConflict},
	{ErrDocumentNotFound, CodeDocumentNotFound, http.StatusNotFound},
}

// expected conflicts are resolved by recomputing work, never by resending the same request
var expectedConflicts = []error{
	ErrEditConflict,
	ErrPathTaken,
	ErrParentNotFound,
	ErrParentDeleted,
	ErrCannotMoveIntoDescendant,
	ErrFileNotFound,
	ErrFileDeleted,
	ErrFileIDTaken,
	ErrDocumentNotFound,
}

// StatusFor resolves the http status and error code of a service error.
// Unknown errors map to 500 / E_INTERNAL_ERROR.
func StatusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, CodeInternalError
}

// ErrorForCode returns the sentinel for a wire code, or nil if there is none
func ErrorForCode(code string) error {
	for _, m := range errorMappings {
		if m.code == code {
			return m.err
		}
	}
	return nil
}

// IsExpectedConflict reports whether err describes divergence between replicas
func IsExpectedConflict(err error) bool {
	for _, e := range expectedConflicts {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// Error is the json error body of every failed api call
type Error struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("api error: %s - %s", e.Code, e.Message)
}

// Unwrap exposes the sentinel for the code so callers can use errors.Is across the wire
func (e *Error) Unwrap() error {
	return ErrorForCode(e.Code)
}
