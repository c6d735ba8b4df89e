package files

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	vapi "github.com/openmined/syftvault/internal/api"
	"github.com/openmined/syftvault/internal/server/files"
	"github.com/openmined/syftvault/internal/server/handlers/api"
)

type FilesHandler struct {
	svc *files.FileService
}

func New(svc *files.FileService) *FilesHandler {
	return &FilesHandler{svc: svc}
}

func (h *FilesHandler) user(ctx *gin.Context) *files.UserService {
	return h.svc.ForUser(ctx.GetString("user"))
}

func (h *FilesHandler) GetUpdates(ctx *gin.Context) {
	since, err := queryUint(ctx, "since", false)
	if err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, vapi.CodeInvalidRequest, err)
		return
	}

	resp, err := h.user(ctx).GetUpdates(ctx.Request.Context(), &vapi.GetUpdatesRequest{SinceMetadataVersion: since})
	if err != nil {
		api.AbortWithServiceError(ctx, err)
		return
	}
	ctx.PureJSON(http.StatusOK, resp)
}

func (h *FilesHandler) GetDocument(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Query("id"))
	if err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, vapi.CodeInvalidRequest, fmt.Errorf("invalid id: %w", err))
		return
	}
	contentVersion, err := queryUint(ctx, "content_version", true)
	if err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, vapi.CodeInvalidRequest, err)
		return
	}

	resp, err := h.user(ctx).GetDocument(ctx.Request.Context(), &vapi.GetDocumentRequest{ID: id, ContentVersion: contentVersion})
	if err != nil {
		api.AbortWithServiceError(ctx, err)
		return
	}
	ctx.PureJSON(http.StatusOK, resp)
}

func (h *FilesHandler) Create(ctx *gin.Context) {
	var req vapi.CreateFileRequest
	if !bind(ctx, &req) {
		return
	}
	respond(ctx, func() (*vapi.FileVersionResponse, error) {
		return h.user(ctx).CreateFile(ctx.Request.Context(), &req)
	})
}

func (h *FilesHandler) Rename(ctx *gin.Context) {
	var req vapi.RenameFileRequest
	if !bind(ctx, &req) {
		return
	}
	respond(ctx, func() (*vapi.FileVersionResponse, error) {
		return h.user(ctx).RenameFile(ctx.Request.Context(), &req)
	})
}

func (h *FilesHandler) Move(ctx *gin.Context) {
	var req vapi.MoveFileRequest
	if !bind(ctx, &req) {
		return
	}
	respond(ctx, func() (*vapi.FileVersionResponse, error) {
		return h.user(ctx).MoveFile(ctx.Request.Context(), &req)
	})
}

func (h *FilesHandler) ChangeContent(ctx *gin.Context) {
	var req vapi.ChangeDocumentContentRequest
	if !bind(ctx, &req) {
		return
	}
	respond(ctx, func() (*vapi.FileVersionResponse, error) {
		return h.user(ctx).ChangeDocumentContent(ctx.Request.Context(), &req)
	})
}

func (h *FilesHandler) Delete(ctx *gin.Context) {
	var req vapi.DeleteFileRequest
	if !bind(ctx, &req) {
		return
	}
	respond(ctx, func() (*vapi.FileVersionResponse, error) {
		return h.user(ctx).DeleteFile(ctx.Request.Context(), &req)
	})
}

func bind(ctx *gin.Context, req any) bool {
	if err := ctx.ShouldBindJSON(req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, vapi.CodeInvalidRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func respond(ctx *gin.Context, call func() (*vapi.FileVersionResponse, error)) {
	resp, err := call()
	if err != nil {
		api.AbortWithServiceError(ctx, err)
		return
	}
	ctx.PureJSON(http.StatusOK, resp)
}

func queryUint(ctx *gin.Context, key string, required bool) (uint64, error) {
	raw, ok := ctx.GetQuery(key)
	if !ok || raw == "" {
		if required {
			return 0, fmt.Errorf("%s required", key)
		}
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
