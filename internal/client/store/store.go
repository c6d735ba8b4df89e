package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/openmined/syftvault/internal/db"
	"github.com/openmined/syftvault/internal/model"
)

// Scope selects one viewpoint of a file
type Scope string

const (
	ScopeBase   Scope = "base"   // last state confirmed by the server
	ScopeLocal  Scope = "local"  // working copy, only present while it differs from base
	ScopeRemote Scope = "remote" // fetched server content not yet merged (documents only)
)

var (
	ErrNoAccount    = errors.New("store: no account")
	ErrInvalidScope = errors.New("store: invalid scope")
)

type querier interface {
	sqlx.Ext
	Get(dest any, query string, args ...any) error
	Select(dest any, query string, args ...any) error
	NamedExec(query string, arg any) (sql.Result, error)
}

// Store is the versioned replica of one account. Every method is safe to call
// inside Update, where it joins the surrounding transaction.
type Store struct {
	db   *sqlx.DB
	q    querier
	inTx bool
}

// Open opens (or creates) the replica at path. Use db.MemoryPath for tests.
func Open(path string) (*Store, error) {
	conn, err := db.NewSqliteDb(db.WithPath(path), db.WithMaxOpenConns(1), db.WithSchema(schema))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return &Store{db: conn, q: conn}, nil
}

func (s *Store) Close() error {
	if s.inTx {
		return errors.New("store: close inside transaction")
	}
	if err := s.db.Close(); err != nil {
		slog.Error("store close", "error", err)
		return err
	}
	return nil
}

// Update runs fn in a single transaction. Nested calls reuse the outer transaction.
func (s *Store) Update(fn func(tx *Store) error) (err error) {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				slog.Error("store rollback", "error", rbErr)
			}
		}
	}()

	if err = fn(&Store{db: s.db, q: tx, inTx: true}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) GetAccount() (*model.Account, error) {
	var row struct {
		Username string `db:"username"`
		APIURL   string `db:"api_url"`
		Key      []byte `db:"key"`
	}
	if err := s.q.Get(&row, "SELECT username, api_url, key FROM account WHERE id = 1"); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoAccount
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &model.Account{Username: row.Username, APIURL: row.APIURL, Key: row.Key}, nil
}

func (s *Store) SetAccount(account *model.Account) error {
	_, err := s.q.Exec(`INSERT OR REPLACE INTO account (id, username, api_url, key) VALUES (1, ?, ?, ?)`,
		account.Username, account.APIURL, account.Key)
	if err != nil {
		return fmt.Errorf("failed to set account: %w", err)
	}
	return nil
}

// GetLastSynced returns the sync checkpoint, 0 before the first successful sync
func (s *Store) GetLastSynced() (uint64, error) {
	var version uint64
	if err := s.q.Get(&version, "SELECT version FROM last_synced WHERE id = 1"); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get last synced: %w", err)
	}
	return version, nil
}

// SetLastSynced advances the checkpoint. Lower values are ignored.
func (s *Store) SetLastSynced(version uint64) error {
	_, err := s.q.Exec(`INSERT INTO last_synced (id, version) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET version = MAX(version, excluded.version)`, version)
	if err != nil {
		return fmt.Errorf("failed to set last synced: %w", err)
	}
	return nil
}

func checkMetadataScope(scope Scope) error {
	if scope != ScopeBase && scope != ScopeLocal {
		return fmt.Errorf("%w: %q for metadata", ErrInvalidScope, scope)
	}
	return nil
}

// GetMetadata returns nil, nil when the scope has no row for id
func (s *Store) GetMetadata(scope Scope, id uuid.UUID) (*model.FileMetadata, error) {
	if err := checkMetadataScope(scope); err != nil {
		return nil, err
	}
	var row metadataRow
	if err := s.q.Get(&row, "SELECT * FROM file_metadata WHERE scope = ? AND id = ?", scope, id.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get %s metadata %s: %w", scope, id, err)
	}
	return row.toModel()
}

func (s *Store) InsertMetadata(scope Scope, meta *model.FileMetadata) error {
	if err := checkMetadataScope(scope); err != nil {
		return err
	}
	query := `INSERT OR REPLACE INTO file_metadata
		(scope, id, file_type, parent, name_encrypted, name_hmac, owner, metadata_version, content_version, deleted, access_key)
		VALUES (:scope, :id, :file_type, :parent, :name_encrypted, :name_hmac, :owner, :metadata_version, :content_version, :deleted, :access_key)`
	if _, err := s.q.NamedExec(query, newMetadataRow(scope, meta)); err != nil {
		return fmt.Errorf("failed to insert %s metadata %s: %w", scope, meta.ID, err)
	}
	return nil
}

func (s *Store) DeleteMetadata(scope Scope, id uuid.UUID) error {
	if err := checkMetadataScope(scope); err != nil {
		return err
	}
	if _, err := s.q.Exec("DELETE FROM file_metadata WHERE scope = ? AND id = ?", scope, id.String()); err != nil {
		return fmt.Errorf("failed to delete %s metadata %s: %w", scope, id, err)
	}
	return nil
}

// Current returns the working view of id: local if present, else base
func (s *Store) Current(id uuid.UUID) (*model.FileMetadata, error) {
	var row metadataRow
	if err := s.q.Get(&row, "SELECT * FROM current_metadata WHERE id = ?", id.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get metadata %s: %w", id, err)
	}
	return row.toModel()
}

// Root returns the current root folder, nil if the replica is empty
func (s *Store) Root() (*model.FileMetadata, error) {
	var row metadataRow
	if err := s.q.Get(&row, "SELECT * FROM current_metadata WHERE id = parent LIMIT 1"); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get root: %w", err)
	}
	return row.toModel()
}

// ListChildren returns the current children of parent, tombstones included
func (s *Store) ListChildren(parent uuid.UUID) ([]*model.FileMetadata, error) {
	var rows []metadataRow
	err := s.q.Select(&rows, "SELECT * FROM current_metadata WHERE parent = ? AND id != parent ORDER BY id", parent.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list children of %s: %w", parent, err)
	}
	return rowsToModels(rows)
}

// ListAll returns the current view of every file, tombstones included
func (s *Store) ListAll() ([]*model.FileMetadata, error) {
	var rows []metadataRow
	if err := s.q.Select(&rows, "SELECT * FROM current_metadata ORDER BY id"); err != nil {
		return nil, fmt.Errorf("failed to list metadata: %w", err)
	}
	return rowsToModels(rows)
}

// GetDocument returns nil, nil when the scope has no content for id
func (s *Store) GetDocument(scope Scope, id uuid.UUID) ([]byte, error) {
	content, _, err := s.getDocument(scope, id)
	return content, err
}

func (s *Store) getDocument(scope Scope, id uuid.UUID) ([]byte, uint64, error) {
	var row struct {
		ContentVersion uint64 `db:"content_version"`
		Content        []byte `db:"content"`
	}
	err := s.q.Get(&row, "SELECT content_version, content FROM documents WHERE scope = ? AND id = ?", scope, id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("failed to get %s document %s: %w", scope, id, err)
	}
	return row.Content, row.ContentVersion, nil
}

// InsertDocument stores encrypted content. contentVersion is the server version
// the content corresponds to, or that a local edit was made against.
func (s *Store) InsertDocument(scope Scope, id uuid.UUID, contentVersion uint64, content []byte) error {
	if content == nil {
		content = []byte{}
	}
	_, err := s.q.Exec(`INSERT OR REPLACE INTO documents (scope, id, content_version, content) VALUES (?, ?, ?, ?)`,
		scope, id.String(), contentVersion, content)
	if err != nil {
		return fmt.Errorf("failed to insert %s document %s: %w", scope, id, err)
	}
	return nil
}

func (s *Store) DeleteDocument(scope Scope, id uuid.UUID) error {
	if _, err := s.q.Exec("DELETE FROM documents WHERE scope = ? AND id = ?", scope, id.String()); err != nil {
		return fmt.Errorf("failed to delete %s document %s: %w", scope, id, err)
	}
	return nil
}

// CurrentDocument returns the working content of id: local if present, else base
func (s *Store) CurrentDocument(id uuid.UUID) ([]byte, error) {
	content, err := s.GetDocument(ScopeLocal, id)
	if err != nil || content != nil {
		return content, err
	}
	return s.GetDocument(ScopeBase, id)
}

// CachedRemoteDocument returns fetched content for id if it matches contentVersion
func (s *Store) CachedRemoteDocument(id uuid.UUID, contentVersion uint64) ([]byte, error) {
	content, version, err := s.getDocument(ScopeRemote, id)
	if err != nil || content == nil || version != contentVersion {
		return nil, err
	}
	return content, nil
}

// Purge removes every trace of id: all scopes, content and pending changes
func (s *Store) Purge(id uuid.UUID) error {
	return s.Update(func(tx *Store) error {
		for _, query := range []string{
			"DELETE FROM file_metadata WHERE id = ?",
			"DELETE FROM documents WHERE id = ?",
			"DELETE FROM local_changes WHERE id = ?",
		} {
			if _, err := tx.q.Exec(query, id.String()); err != nil {
				return fmt.Errorf("failed to purge %s: %w", id, err)
			}
		}
		return nil
	})
}
