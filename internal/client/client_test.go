package client

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openmined/syftvault/internal/client/config"
	"github.com/openmined/syftvault/internal/db"
	"github.com/openmined/syftvault/internal/model"
	"github.com/openmined/syftvault/internal/server"
	"github.com/openmined/syftvault/internal/server/blob"
	serverfiles "github.com/openmined/syftvault/internal/server/files"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	conn, err := db.NewSqliteDb(db.WithPath(db.MemoryPath), db.WithSchema(serverfiles.Schema()))
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

func newTestConfig(t *testing.T, serverURL string) *config.Config {
	t.Helper()
	cfg := &config.Config{
		DataDir:   t.TempDir(),
		ServerURL: serverURL,
		Username:  "alice",
		Sync:      config.SyncConfig{Interval: 100 * time.Millisecond},
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func initClient(t *testing.T, cfg *config.Config, key []byte) *Client {
	t.Helper()
	c, err := Init(cfg, key)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestInitAndImportShareTree(t *testing.T) {
	ctx := context.Background()
	ts := newTestServer(t)

	a := initClient(t, newTestConfig(t, ts.URL), nil)
	root, err := a.Files().Root()
	require.NoError(t, err)
	doc, err := a.Files().Create("hello.txt", root.ID, model.FileTypeDocument)
	require.NoError(t, err)
	require.NoError(t, a.Files().Write(doc.ID, []byte("hi")))
	require.NoError(t, a.Sync(ctx, nil))

	b := initClient(t, newTestConfig(t, ts.URL), a.Account().Key)
	_, err = b.Files().Root()
	require.Error(t, err, "imported replica has no tree before the first sync")

	pending, err := b.PendingWork(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, model.ClientWorkUnitServer, pending[0].Kind)

	require.NoError(t, b.Sync(ctx, nil))
	got, err := b.Files().GetByPath("/hello.txt")
	require.NoError(t, err)
	content, err := b.Files().Read(got.ID)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(content))
}

func TestInitRejectsExistingAccount(t *testing.T) {
	ts := newTestServer(t)
	cfg := newTestConfig(t, ts.URL)

	c, err := Init(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = Init(cfg, nil)
	assert.ErrorIs(t, err, ErrAccountExists)

	reopened, err := Open(cfg)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, "alice", reopened.Account().Username)
}

func TestOpenLocksDataDir(t *testing.T) {
	ts := newTestServer(t)
	cfg := newTestConfig(t, ts.URL)
	initClient(t, cfg, nil)

	_, err := Open(cfg)
	assert.ErrorIs(t, err, ErrDataDirLocked)
}

func TestDaemonPullsRemoteChanges(t *testing.T) {
	ts := newTestServer(t)
	a := initClient(t, newTestConfig(t, ts.URL), nil)
	require.NoError(t, a.Sync(context.Background(), nil))
	b := initClient(t, newTestConfig(t, ts.URL), a.Account().Key)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.RunDaemon(ctx) }()

	root, err := a.Files().Root()
	require.NoError(t, err)
	_, err = a.Files().Create("later.txt", root.ID, model.FileTypeDocument)
	require.NoError(t, err)
	require.NoError(t, a.Sync(context.Background(), nil))

	assert.Eventually(t, func() bool {
		_, err := b.Files().GetByPath("/later.txt")
		return err == nil
	}, 10*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not stop")
	}
}
