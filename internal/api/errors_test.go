package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{ErrEditConflict, http.StatusConflict, CodeEditConflict},
		{fmt.Errorf("rename: %w", ErrPathTaken), http.StatusConflict, CodePathTaken},
		{ErrFileDeleted, http.StatusGone, CodeFileDeleted},
		{ErrParentNotFound, http.StatusNotFound, CodeParentNotFound},
		{errors.New("disk on fire"), http.StatusInternalServerError, CodeInternalError},
	}

	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			status, code := StatusFor(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, code)
		})
	}
}

func TestErrorUnwrapsToSentinel(t *testing.T) {
	var err error = &Error{Code: CodeEditConflict, Message: "old version 3, current 5"}
	wrapped := fmt.Errorf("rename file: %w", err)

	assert.ErrorIs(t, wrapped, ErrEditConflict)
	assert.True(t, IsExpectedConflict(wrapped))
	assert.Contains(t, err.Error(), CodeEditConflict)

	unknown := &Error{Code: CodeInternalError, Message: "boom"}
	assert.Nil(t, unknown.Unwrap())
	assert.False(t, IsExpectedConflict(unknown))
}

func TestIsExpectedConflict(t *testing.T) {
	assert.True(t, IsExpectedConflict(ErrCannotMoveIntoDescendant))
	assert.True(t, IsExpectedConflict(ErrFileNotFound))
	assert.False(t, IsExpectedConflict(ErrAccessDenied))
	assert.False(t, IsExpectedConflict(ErrCannotChangeRoot))
	assert.False(t, IsExpectedConflict(nil))
}
