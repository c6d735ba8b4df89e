package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	vapi "github.com/openmined/syftvault/internal/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAbortWithServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"conflict", fmt.Errorf("%w: stale", vapi.ErrEditConflict), http.StatusConflict, vapi.CodeEditConflict, "edit conflict: stale"},
		{"deleted", vapi.ErrFileDeleted, http.StatusGone, vapi.CodeFileDeleted, "file deleted"},
		{"internal", errors.New("disk on fire"), http.StatusInternalServerError, vapi.CodeInternalError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			ctx, _ := gin.CreateTestContext(w)
			ctx.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			AbortWithServiceError(ctx, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.True(t, ctx.IsAborted())

			var body vapi.Error
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantMsg, body.Message)
		})
	}
}
