package api

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	vapi "github.com/openmined/syftvault/internal/api"
)

func AbortWithError(ctx *gin.Context, status int, code string, err error) {
	ctx.Abort()
	ctx.Error(err)
	ctx.PureJSON(status, vapi.Error{
		Code:    code,
		Message: err.Error(),
	})
}

// AbortWithServiceError renders a service error with the status and code of its sentinel
func AbortWithServiceError(ctx *gin.Context, err error) {
	status, code := vapi.StatusFor(err)
	if code == vapi.CodeInternalError {
		slog.Error("request failed", "path", ctx.FullPath(), "error", err)
		err = errors.New("internal server error")
	}
	AbortWithError(ctx, status, code, err)
}
