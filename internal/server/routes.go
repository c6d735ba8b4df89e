package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openmined/syftvault/internal/server/files"
	filesHandler "github.com/openmined/syftvault/internal/server/handlers/files"
	"github.com/openmined/syftvault/internal/server/handlers/ws"
	"github.com/openmined/syftvault/internal/server/middlewares"
	"github.com/openmined/syftvault/internal/version"
)

func SetupRoutes(cfg *Config, svc *files.FileService, hub *ws.WebsocketHub) (http.Handler, error) {
	r := gin.New()

	r.Use(middlewares.Logger())
	r.Use(gin.Recovery())
	r.Use(middlewares.GZIP())
	r.Use(middlewares.CORS())
	if cfg.HTTP.TLS() {
		r.Use(middlewares.HSTS(false))
	}
	if cfg.RateLimit.Rate != "" {
		limit, err := middlewares.RateLimiter(cfg.RateLimit.Rate)
		if err != nil {
			return nil, err
		}
		r.Use(limit)
	}

	filesH := filesHandler.New(svc)

	r.GET("/", IndexHandler)
	r.GET("/healthz", HealthHandler)

	v1 := r.Group("/api/v1")
	v1.Use(middlewares.User())
	{
		v1.GET("/files/updates", filesH.GetUpdates)
		v1.GET("/files/document", filesH.GetDocument)
		v1.POST("/files/create", filesH.Create)
		v1.POST("/files/rename", filesH.Rename)
		v1.POST("/files/move", filesH.Move)
		v1.POST("/files/content", filesH.ChangeContent)
		v1.POST("/files/delete", filesH.Delete)

		v1.GET("/events", hub.WebsocketHandler)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "not found",
		})
	})

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"error": "method not allowed",
		})
	})

	return r.Handler(), nil
}

func IndexHandler(ctx *gin.Context) {
	ctx.String(http.StatusOK, version.DetailedWithApp())
}

func HealthHandler(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
