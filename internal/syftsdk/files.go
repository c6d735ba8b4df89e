package syftsdk

import (
	"context"
	"strconv"

	"github.com/imroc/req/v3"
	"github.com/openmined/syftvault/internal/api"
)

const (
	v1FilesUpdates  = "/api/v1/files/updates"
	v1FilesDocument = "/api/v1/files/document"
	v1FilesCreate   = "/api/v1/files/create"
	v1FilesRename   = "/api/v1/files/rename"
	v1FilesMove     = "/api/v1/files/move"
	v1FilesContent  = "/api/v1/files/content"
	v1FilesDelete   = "/api/v1/files/delete"
)

// FilesAPI is the version checked file API of the server
type FilesAPI struct {
	client *req.Client
}

func newFilesAPI(client *req.Client) *FilesAPI {
	return &FilesAPI{client: client}
}

func (f *FilesAPI) GetUpdates(ctx context.Context, params *api.GetUpdatesRequest) (apiResp *api.GetUpdatesResponse, err error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParam("since", strconv.FormatUint(params.SinceMetadataVersion, 10)).
		SetSuccessResult(&apiResp).
		Get(v1FilesUpdates)

	if err := handleAPIError(resp, err, "files updates"); err != nil {
		return nil, err
	}
	return apiResp, nil
}

func (f *FilesAPI) GetDocument(ctx context.Context, params *api.GetDocumentRequest) (apiResp *api.GetDocumentResponse, err error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParam("id", params.ID.String()).
		SetQueryParam("content_version", strconv.FormatUint(params.ContentVersion, 10)).
		SetSuccessResult(&apiResp).
		Get(v1FilesDocument)

	if err := handleAPIError(resp, err, "files document"); err != nil {
		return nil, err
	}
	return apiResp, nil
}

func (f *FilesAPI) CreateFile(ctx context.Context, params *api.CreateFileRequest) (*api.FileVersionResponse, error) {
	return f.post(ctx, v1FilesCreate, params, "files create")
}

func (f *FilesAPI) RenameFile(ctx context.Context, params *api.RenameFileRequest) (*api.FileVersionResponse, error) {
	return f.post(ctx, v1FilesRename, params, "files rename")
}

func (f *FilesAPI) MoveFile(ctx context.Context, params *api.MoveFileRequest) (*api.FileVersionResponse, error) {
	return f.post(ctx, v1FilesMove, params, "files move")
}

func (f *FilesAPI) ChangeDocumentContent(ctx context.Context, params *api.ChangeDocumentContentRequest) (*api.FileVersionResponse, error) {
	return f.post(ctx, v1FilesContent, params, "files content")
}

func (f *FilesAPI) DeleteFile(ctx context.Context, params *api.DeleteFileRequest) (*api.FileVersionResponse, error) {
	return f.post(ctx, v1FilesDelete, params, "files delete")
}

func (f *FilesAPI) post(ctx context.Context, path string, body any, operation string) (apiResp *api.FileVersionResponse, err error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetBody(body).
		SetSuccessResult(&apiResp).
		Post(path)

	if err := handleAPIError(resp, err, operation); err != nil {
		return nil, err
	}
	return apiResp, nil
}
