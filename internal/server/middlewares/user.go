package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	vapi "github.com/openmined/syftvault/internal/api"
	"github.com/openmined/syftvault/internal/server/handlers/api"
)

const HeaderSyftUser = "X-Syft-User"

var errUserMissing = errors.New("missing " + HeaderSyftUser + " header")

// User takes the caller identity from the X-Syft-User header. Authentication
// is left to the deployment in front of the server.
func User() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		user := strings.TrimSpace(ctx.GetHeader(HeaderSyftUser))
		if user == "" {
			api.AbortWithError(ctx, http.StatusUnauthorized, vapi.CodeAccessDenied, errUserMissing)
			return
		}
		ctx.Set("user", user)
		ctx.Next()
	}
}
