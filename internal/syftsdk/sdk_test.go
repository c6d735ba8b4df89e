package syftsdk

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/openmined/syftvault/internal/api"
	"github.com/openmined/syftvault/internal/db"
	"github.com/openmined/syftvault/internal/model"
	"github.com/openmined/syftvault/internal/server"
	"github.com/openmined/syftvault/internal/server/blob"
	"github.com/openmined/syftvault/internal/server/files"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	conn, err := db.NewSqliteDb(db.WithPath(db.MemoryPath), db.WithSchema(files.Schema()))
	require.NoError(t, err)
	backend, err := blob.NewLocalBackend(t.TempDir())
	require.NoError(t, err)

	srv, err := server.NewWithDeps(&server.Config{
		HTTP:    server.HTTPConfig{Addr: server.DefaultAddr},
		DataDir: t.TempDir(),
		Blob:    blob.Config{Backend: blob.BackendLocal},
	}, conn, backend)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go srv.Hub().Run(ctx)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		cancel()
		srv.Hub().Shutdown()
		ts.Close()
		conn.Close()
	})
	return ts
}

func newTestSDK(t *testing.T, baseURL, user string) *SyftSDK {
	t.Helper()
	sdk, err := New(&SyftSDKConfig{BaseURL: baseURL, User: user})
	require.NoError(t, err)
	t.Cleanup(sdk.Close)
	return sdk
}

func secret(s string) model.SecretName {
	return model.SecretName{Encrypted: []byte("enc:" + s), HMAC: []byte(s)}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  SyftSDKConfig
		want error
	}{
		{"no url", SyftSDKConfig{User: "a"}, ErrNoServerURL},
		{"bad url", SyftSDKConfig{BaseURL: "ftp://x", User: "a"}, ErrInvalidServerURL},
		{"no user", SyftSDKConfig{BaseURL: "http://localhost:8080"}, ErrNoUser},
		{"ok", SyftSDKConfig{BaseURL: "http://localhost:8080", User: "a"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestFilesAPI(t *testing.T) {
	ctx := context.Background()
	ts := newTestServer(t)
	sdk := newTestSDK(t, ts.URL, "alice@example.com")

	rootID := uuid.New()
	root, err := sdk.Files.CreateFile(ctx, &api.CreateFileRequest{Metadata: &model.FileMetadata{
		ID: rootID, Parent: rootID, FileType: model.FileTypeFolder, Name: secret("root"),
	}})
	require.NoError(t, err)

	docID := uuid.New()
	doc, err := sdk.Files.CreateFile(ctx, &api.CreateFileRequest{
		Metadata: &model.FileMetadata{ID: docID, Parent: rootID, FileType: model.FileTypeDocument, Name: secret("a.txt")},
		Content:  []byte{0x00, 0xff, 0x10},
	})
	require.NoError(t, err)
	assert.Greater(t, doc.NewVersion, root.NewVersion)

	updates, err := sdk.Files.GetUpdates(ctx, &api.GetUpdatesRequest{SinceMetadataVersion: root.NewVersion})
	require.NoError(t, err)
	require.Len(t, updates.Files, 1)
	assert.Equal(t, docID, updates.Files[0].ID)
	assert.Equal(t, secret("a.txt"), updates.Files[0].Name)
	assert.Equal(t, "alice@example.com", updates.Files[0].Owner)

	content, err := sdk.Files.GetDocument(ctx, &api.GetDocumentRequest{ID: docID, ContentVersion: doc.NewVersion})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xff, 0x10}, content.Content)

	edited, err := sdk.Files.ChangeDocumentContent(ctx, &api.ChangeDocumentContentRequest{ID: docID, OldMetadataVersion: doc.NewVersion, NewContent: []byte("v2")})
	require.NoError(t, err)

	_, err = sdk.Files.RenameFile(ctx, &api.RenameFileRequest{ID: docID, FileType: model.FileTypeDocument, OldMetadataVersion: doc.NewVersion, NewName: secret("b.txt")})
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrEditConflict)
	assert.True(t, api.IsExpectedConflict(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, api.CodeEditConflict, apiErr.Code)

	_, err = sdk.Files.MoveFile(ctx, &api.MoveFileRequest{ID: docID, FileType: model.FileTypeDocument, OldMetadataVersion: edited.NewVersion, NewParent: uuid.New()})
	assert.ErrorIs(t, err, api.ErrParentNotFound)

	deleted, err := sdk.Files.DeleteFile(ctx, &api.DeleteFileRequest{ID: docID, FileType: model.FileTypeDocument})
	require.NoError(t, err)
	assert.Greater(t, deleted.NewVersion, edited.NewVersion)

	_, err = sdk.Files.DeleteFile(ctx, &api.DeleteFileRequest{ID: docID, FileType: model.FileTypeDocument})
	assert.ErrorIs(t, err, api.ErrFileDeleted)

	// other users see nothing of alice's tree
	bob := newTestSDK(t, ts.URL, "bob@example.com")
	_, err = bob.Files.GetDocument(ctx, &api.GetDocumentRequest{ID: docID, ContentVersion: edited.NewVersion})
	assert.ErrorIs(t, err, api.ErrFileNotFound)
}

func TestEventsAPI(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ts := newTestServer(t)
	sdk := newTestSDK(t, ts.URL, "alice@example.com")
	require.NoError(t, sdk.Events.Connect(ctx))
	assert.True(t, sdk.Events.IsConnected())

	// the hub registers asynchronously, keep creating until a notification arrives
	writer := newTestSDK(t, ts.URL, "alice@example.com")
	rootID := uuid.New()
	_, err := writer.Files.CreateFile(ctx, &api.CreateFileRequest{Metadata: &model.FileMetadata{
		ID: rootID, Parent: rootID, FileType: model.FileTypeFolder, Name: secret("root"),
	}})
	require.NoError(t, err)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case event := <-sdk.Events.Get():
			assert.Equal(t, api.EventTypeUpdates, event.Type)
			assert.NotZero(t, event.Version)
			return
		case <-ticker.C:
			_, err := writer.Files.CreateFile(ctx, &api.CreateFileRequest{Metadata: &model.FileMetadata{
				ID: uuid.New(), Parent: rootID, FileType: model.FileTypeFolder, Name: secret(uuid.NewString()),
			}})
			require.NoError(t, err)
		case <-ctx.Done():
			t.Fatal("no event received")
		}
	}
}

func TestToWebsocketURL(t *testing.T) {
	assert.Equal(t, "wss://vault.example.com/api/v1/events", toWebsocketURL("https://vault.example.com/api/v1/events"))
	assert.Equal(t, "ws://127.0.0.1:8080/api/v1/events", toWebsocketURL("http://127.0.0.1:8080/api/v1/events"))
}
