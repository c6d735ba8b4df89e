package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSqliteDbMemory(t *testing.T) {
	database, err := NewSqliteDb()
	require.NoError(t, err)
	defer database.Close()

	_, err = database.Exec("CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT)")
	require.NoError(t, err)

	// a single connection means the table is visible on every query
	_, err = database.Exec("INSERT INTO t (v) VALUES ('a')")
	require.NoError(t, err)

	var count int
	require.NoError(t, database.Get(&count, "SELECT COUNT(*) FROM t"))
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, database.Stats().MaxOpenConnections)
}

func TestNewSqliteDbFileCreatesParent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "state.db")

	database, err := NewSqliteDb(WithPath(dbPath), WithMaxOpenConns(4))
	require.NoError(t, err)
	defer database.Close()

	assert.DirExists(t, filepath.Dir(dbPath))
	assert.FileExists(t, dbPath)
}

func TestNewSqliteDbSchema(t *testing.T) {
	schema := `CREATE TABLE IF NOT EXISTS kv (k TEXT PRIMARY KEY, v TEXT);`
	dbPath := filepath.Join(t.TempDir(), "kv.db")

	database, err := NewSqliteDb(WithPath(dbPath), WithSchema(schema))
	require.NoError(t, err)
	_, err = database.Exec("INSERT INTO kv (k, v) VALUES ('a', 'b')")
	require.NoError(t, err)
	require.NoError(t, database.Close())

	// reopening applies the schema again without touching data
	database, err = NewSqliteDb(WithPath(dbPath), WithSchema(schema))
	require.NoError(t, err)
	defer database.Close()

	var v string
	require.NoError(t, database.Get(&v, "SELECT v FROM kv WHERE k = 'a'"))
	assert.Equal(t, "b", v)
}

func TestNewSqliteDbBadSchema(t *testing.T) {
	_, err := NewSqliteDb(WithSchema("CREATE TABLE ("))
	assert.ErrorContains(t, err, "apply schema")
}
