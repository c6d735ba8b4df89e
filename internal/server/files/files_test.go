package files

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/openmined/syftvault/internal/api"
	"github.com/openmined/syftvault/internal/db"
	"github.com/openmined/syftvault/internal/model"
	"github.com/openmined/syftvault/internal/server/blob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOwner = "alice@example.com"

func newTestService(t *testing.T) *FileService {
	t.Helper()
	conn, err := db.NewSqliteDb(db.WithPath(db.MemoryPath), db.WithSchema(Schema()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	backend, err := blob.NewLocalBackend(t.TempDir())
	require.NoError(t, err)
	return NewFileService(conn, backend)
}

func name(s string) model.SecretName {
	return model.SecretName{Encrypted: []byte("enc:" + s), HMAC: []byte(s)}
}

func createRoot(t *testing.T, u *UserService) *model.FileMetadata {
	t.Helper()
	id := uuid.New()
	root := &model.FileMetadata{ID: id, Parent: id, FileType: model.FileTypeFolder, Name: name("root")}
	resp, err := u.CreateFile(context.Background(), &api.CreateFileRequest{Metadata: root})
	require.NoError(t, err)
	root.MetadataVersion = resp.NewVersion
	root.ContentVersion = resp.NewVersion
	return root
}

func createFile(t *testing.T, u *UserService, parent uuid.UUID, n string, fileType model.FileType, content []byte) *model.FileMetadata {
	t.Helper()
	meta := &model.FileMetadata{ID: uuid.New(), Parent: parent, FileType: fileType, Name: name(n)}
	resp, err := u.CreateFile(context.Background(), &api.CreateFileRequest{Metadata: meta, Content: content})
	require.NoError(t, err)
	meta.MetadataVersion = resp.NewVersion
	meta.ContentVersion = resp.NewVersion
	return meta
}

func TestCreateAndGetUpdates(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	var notified []uint64
	svc.OnChange(func(owner string, version uint64) {
		assert.Equal(t, testOwner, owner)
		notified = append(notified, version)
	})

	u := svc.ForUser(testOwner)
	root := createRoot(t, u)
	doc := createFile(t, u, root.ID, "a.txt", model.FileTypeDocument, []byte("hello"))

	updates, err := u.GetUpdates(ctx, &api.GetUpdatesRequest{})
	require.NoError(t, err)
	require.Len(t, updates.Files, 2)
	assert.Equal(t, root.ID, updates.Files[0].ID)
	assert.Equal(t, doc.ID, updates.Files[1].ID)
	assert.Less(t, updates.Files[0].MetadataVersion, updates.Files[1].MetadataVersion)
	assert.Equal(t, testOwner, updates.Files[1].Owner)
	assert.Equal(t, []uint64{root.MetadataVersion, doc.MetadataVersion}, notified)

	updates, err = u.GetUpdates(ctx, &api.GetUpdatesRequest{SinceMetadataVersion: root.MetadataVersion})
	require.NoError(t, err)
	require.Len(t, updates.Files, 1)
	assert.Equal(t, doc.ID, updates.Files[0].ID)

	content, err := u.GetDocument(ctx, &api.GetDocumentRequest{ID: doc.ID, ContentVersion: doc.ContentVersion})
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), content.Content)

	other, err := svc.ForUser("bob@example.com").GetUpdates(ctx, &api.GetUpdatesRequest{})
	require.NoError(t, err)
	assert.Empty(t, other.Files)
}

func TestCreateRejections(t *testing.T) {
	ctx := context.Background()
	u := newTestService(t).ForUser(testOwner)
	root := createRoot(t, u)
	folder := createFile(t, u, root.ID, "dir", model.FileTypeFolder, nil)
	doc := createFile(t, u, root.ID, "a.txt", model.FileTypeDocument, nil)

	_, err := u.DeleteFile(ctx, &api.DeleteFileRequest{ID: folder.ID, FileType: model.FileTypeFolder})
	require.NoError(t, err)

	secondRoot := uuid.New()
	tests := []struct {
		name string
		meta *model.FileMetadata
		want error
	}{
		{"id taken", &model.FileMetadata{ID: doc.ID, Parent: root.ID, FileType: model.FileTypeDocument, Name: name("b")}, api.ErrFileIDTaken},
		{"second root", &model.FileMetadata{ID: secondRoot, Parent: secondRoot, FileType: model.FileTypeFolder, Name: name("r")}, api.ErrPathTaken},
		{"name taken", &model.FileMetadata{ID: uuid.New(), Parent: root.ID, FileType: model.FileTypeDocument, Name: name("a.txt")}, api.ErrPathTaken},
		{"parent missing", &model.FileMetadata{ID: uuid.New(), Parent: uuid.New(), FileType: model.FileTypeDocument, Name: name("b")}, api.ErrParentNotFound},
		{"parent is document", &model.FileMetadata{ID: uuid.New(), Parent: doc.ID, FileType: model.FileTypeDocument, Name: name("b")}, api.ErrParentNotFound},
		{"parent deleted", &model.FileMetadata{ID: uuid.New(), Parent: folder.ID, FileType: model.FileTypeDocument, Name: name("b")}, api.ErrParentDeleted},
		{"no type", &model.FileMetadata{ID: uuid.New(), Parent: root.ID, Name: name("b")}, api.ErrInvalidRequest},
		{"foreign owner", &model.FileMetadata{ID: uuid.New(), Parent: root.ID, FileType: model.FileTypeDocument, Name: name("b"), Owner: "bob"}, api.ErrAccessDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := u.CreateFile(ctx, &api.CreateFileRequest{Metadata: tt.meta})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRenameAndMove(t *testing.T) {
	ctx := context.Background()
	u := newTestService(t).ForUser(testOwner)
	root := createRoot(t, u)
	outer := createFile(t, u, root.ID, "outer", model.FileTypeFolder, nil)
	inner := createFile(t, u, outer.ID, "inner", model.FileTypeFolder, nil)
	doc := createFile(t, u, root.ID, "a.txt", model.FileTypeDocument, nil)
	createFile(t, u, root.ID, "b.txt", model.FileTypeDocument, nil)

	_, err := u.RenameFile(ctx, &api.RenameFileRequest{ID: doc.ID, FileType: model.FileTypeDocument, OldMetadataVersion: doc.MetadataVersion, NewName: name("b.txt")})
	assert.ErrorIs(t, err, api.ErrPathTaken)

	resp, err := u.RenameFile(ctx, &api.RenameFileRequest{ID: doc.ID, FileType: model.FileTypeDocument, OldMetadataVersion: doc.MetadataVersion, NewName: name("c.txt")})
	require.NoError(t, err)
	assert.Greater(t, resp.NewVersion, doc.MetadataVersion)

	_, err = u.RenameFile(ctx, &api.RenameFileRequest{ID: doc.ID, FileType: model.FileTypeDocument, OldMetadataVersion: doc.MetadataVersion, NewName: name("d.txt")})
	assert.ErrorIs(t, err, api.ErrEditConflict)

	_, err = u.RenameFile(ctx, &api.RenameFileRequest{ID: doc.ID, FileType: model.FileTypeFolder, OldMetadataVersion: resp.NewVersion, NewName: name("d.txt")})
	assert.ErrorIs(t, err, api.ErrFileNotFound)

	_, err = u.RenameFile(ctx, &api.RenameFileRequest{ID: root.ID, FileType: model.FileTypeFolder, OldMetadataVersion: root.MetadataVersion, NewName: name("x")})
	assert.ErrorIs(t, err, api.ErrCannotChangeRoot)

	_, err = u.MoveFile(ctx, &api.MoveFileRequest{ID: outer.ID, FileType: model.FileTypeFolder, OldMetadataVersion: outer.MetadataVersion, NewParent: inner.ID})
	assert.ErrorIs(t, err, api.ErrCannotMoveIntoDescendant)

	_, err = u.MoveFile(ctx, &api.MoveFileRequest{ID: outer.ID, FileType: model.FileTypeFolder, OldMetadataVersion: outer.MetadataVersion, NewParent: outer.ID})
	assert.ErrorIs(t, err, api.ErrCannotMoveIntoDescendant)

	moved, err := u.MoveFile(ctx, &api.MoveFileRequest{ID: doc.ID, FileType: model.FileTypeDocument, OldMetadataVersion: resp.NewVersion, NewParent: inner.ID, NewAccessKey: []byte("k")})
	require.NoError(t, err)

	updates, err := u.GetUpdates(ctx, &api.GetUpdatesRequest{SinceMetadataVersion: resp.NewVersion})
	require.NoError(t, err)
	require.Len(t, updates.Files, 1)
	assert.Equal(t, inner.ID, updates.Files[0].Parent)
	assert.Equal(t, moved.NewVersion, updates.Files[0].MetadataVersion)
	assert.Equal(t, []byte("k"), updates.Files[0].AccessKey)
	assert.Equal(t, doc.ContentVersion, updates.Files[0].ContentVersion)
}

func TestChangeDocumentContent(t *testing.T) {
	ctx := context.Background()
	u := newTestService(t).ForUser(testOwner)
	root := createRoot(t, u)
	doc := createFile(t, u, root.ID, "a.bin", model.FileTypeDocument, []byte("v1"))

	resp, err := u.ChangeDocumentContent(ctx, &api.ChangeDocumentContentRequest{ID: doc.ID, OldMetadataVersion: doc.MetadataVersion, NewContent: []byte("v2")})
	require.NoError(t, err)

	_, err = u.GetDocument(ctx, &api.GetDocumentRequest{ID: doc.ID, ContentVersion: doc.ContentVersion})
	assert.ErrorIs(t, err, api.ErrDocumentNotFound)

	content, err := u.GetDocument(ctx, &api.GetDocumentRequest{ID: doc.ID, ContentVersion: resp.NewVersion})
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), content.Content)

	_, err = u.ChangeDocumentContent(ctx, &api.ChangeDocumentContentRequest{ID: root.ID, OldMetadataVersion: root.MetadataVersion, NewContent: []byte("x")})
	assert.ErrorIs(t, err, api.ErrFileNotFound)
}

func TestDeleteCascade(t *testing.T) {
	ctx := context.Background()
	u := newTestService(t).ForUser(testOwner)
	root := createRoot(t, u)
	folder := createFile(t, u, root.ID, "dir", model.FileTypeFolder, nil)
	sub := createFile(t, u, folder.ID, "sub", model.FileTypeFolder, nil)
	doc := createFile(t, u, sub.ID, "a.txt", model.FileTypeDocument, []byte("x"))

	resp, err := u.DeleteFile(ctx, &api.DeleteFileRequest{ID: folder.ID, FileType: model.FileTypeFolder})
	require.NoError(t, err)

	updates, err := u.GetUpdates(ctx, &api.GetUpdatesRequest{SinceMetadataVersion: doc.MetadataVersion})
	require.NoError(t, err)
	require.Len(t, updates.Files, 3)

	versions := map[uuid.UUID]uint64{}
	for _, f := range updates.Files {
		assert.True(t, f.Deleted, f.ID)
		versions[f.ID] = f.MetadataVersion
	}
	assert.Equal(t, resp.NewVersion, versions[folder.ID])
	assert.Len(t, map[uint64]bool{versions[folder.ID]: true, versions[sub.ID]: true, versions[doc.ID]: true}, 3)

	_, err = u.GetDocument(ctx, &api.GetDocumentRequest{ID: doc.ID, ContentVersion: doc.ContentVersion})
	assert.ErrorIs(t, err, api.ErrFileDeleted)

	_, err = u.DeleteFile(ctx, &api.DeleteFileRequest{ID: doc.ID, FileType: model.FileTypeDocument})
	assert.ErrorIs(t, err, api.ErrFileDeleted)

	_, err = u.DeleteFile(ctx, &api.DeleteFileRequest{ID: uuid.New(), FileType: model.FileTypeDocument})
	assert.ErrorIs(t, err, api.ErrFileNotFound)

	_, err = u.DeleteFile(ctx, &api.DeleteFileRequest{ID: root.ID, FileType: model.FileTypeFolder})
	assert.ErrorIs(t, err, api.ErrCannotChangeRoot)

	// the name of a tombstone is free again
	createFile(t, u, root.ID, "dir", model.FileTypeFolder, nil)
}
