package files

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/openmined/syftvault/internal/client/store"
	"github.com/openmined/syftvault/internal/crypto"
	"github.com/openmined/syftvault/internal/model"
)

var (
	ErrEmptyName          = errors.New("files: name must not be empty")
	ErrInvalidName        = errors.New("files: name must not contain '/'")
	ErrNameTaken          = errors.New("files: a file with this name already exists")
	ErrNotFound           = errors.New("files: file not found")
	ErrNotFolder          = errors.New("files: parent is not a folder")
	ErrNotDocument        = errors.New("files: not a document")
	ErrRootImmutable      = errors.New("files: cannot modify root")
	ErrRootExists         = errors.New("files: root already exists")
	ErrNoRoot             = errors.New("files: replica has no root")
	ErrMoveIntoDescendant = errors.New("files: cannot move a folder into itself or its descendant")
)

// Service applies user edits to the local replica and tracks them as pending changes
type Service struct {
	store  *store.Store
	crypto crypto.Crypto
	owner  string
}

func NewService(st *store.Store, c crypto.Crypto, owner string) *Service {
	return &Service{store: st, crypto: c, owner: owner}
}

// WithStore returns a Service bound to st, typically a transaction
func (s *Service) WithStore(st *store.Store) *Service {
	return &Service{store: st, crypto: s.crypto, owner: s.owner}
}

func (s *Service) Crypto() crypto.Crypto {
	return s.crypto
}

func validateName(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if strings.Contains(name, "/") {
		return ErrInvalidName
	}
	return nil
}

// Get returns the current, non-deleted metadata of id
func (s *Service) Get(id uuid.UUID) (*model.FileMetadata, error) {
	meta, err := s.store.Current(id)
	if err != nil {
		return nil, err
	}
	if meta == nil || meta.Deleted {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return meta, nil
}

func (s *Service) Name(meta *model.FileMetadata) (string, error) {
	return s.crypto.DecryptName(meta.Name)
}

// Children returns the non-deleted children of parent
func (s *Service) Children(parent uuid.UUID) ([]*model.FileMetadata, error) {
	all, err := s.store.ListChildren(parent)
	if err != nil {
		return nil, err
	}
	children := all[:0]
	for _, c := range all {
		if !c.Deleted {
			children = append(children, c)
		}
	}
	return children, nil
}

// sibling returns a non-deleted child of parent named name, other than exclude
func (s *Service) sibling(parent uuid.UUID, name model.SecretName, exclude uuid.UUID) (*model.FileMetadata, error) {
	children, err := s.Children(parent)
	if err != nil {
		return nil, err
	}
	for _, c := range children {
		if c.ID != exclude && c.Name.Equal(name) {
			return c, nil
		}
	}
	return nil, nil
}

func (s *Service) folder(id uuid.UUID) (*model.FileMetadata, error) {
	meta, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if !meta.IsFolder() {
		return nil, fmt.Errorf("%w: %s", ErrNotFolder, id)
	}
	return meta, nil
}

// CreateRoot creates the account root folder, named after the owner
func (s *Service) CreateRoot() (*model.FileMetadata, error) {
	var root *model.FileMetadata
	err := s.store.Update(func(tx *store.Store) error {
		existing, err := tx.Root()
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrRootExists
		}

		name, err := s.crypto.EncryptName(s.owner)
		if err != nil {
			return fmt.Errorf("encrypt name: %w", err)
		}
		id := uuid.New()
		root = &model.FileMetadata{
			ID:       id,
			FileType: model.FileTypeFolder,
			Parent:   id,
			Name:     name,
			Owner:    s.owner,
		}
		if err := tx.InsertMetadata(store.ScopeLocal, root); err != nil {
			return err
		}
		return tx.TrackNew(id)
	})
	if err != nil {
		return nil, err
	}
	slog.Info("files created root", "id", root.ID, "owner", s.owner)
	return root, nil
}

// Create adds an empty document or folder under parent
func (s *Service) Create(name string, parent uuid.UUID, fileType model.FileType) (*model.FileMetadata, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if !fileType.Valid() {
		return nil, fmt.Errorf("files: invalid file type %q", fileType)
	}

	var meta *model.FileMetadata
	err := s.store.Update(func(tx *store.Store) error {
		f := s.WithStore(tx)
		if _, err := f.folder(parent); err != nil {
			return err
		}

		secret, err := s.crypto.EncryptName(name)
		if err != nil {
			return fmt.Errorf("encrypt name: %w", err)
		}
		if taken, err := f.sibling(parent, secret, uuid.Nil); err != nil {
			return err
		} else if taken != nil {
			return fmt.Errorf("%w: %s", ErrNameTaken, name)
		}

		meta = &model.FileMetadata{
			ID:       uuid.New(),
			FileType: fileType,
			Parent:   parent,
			Name:     secret,
			Owner:    s.owner,
		}
		if err := tx.InsertMetadata(store.ScopeLocal, meta); err != nil {
			return err
		}
		if meta.IsDocument() {
			empty, err := s.crypto.EncryptDocument(nil)
			if err != nil {
				return fmt.Errorf("encrypt document: %w", err)
			}
			if err := tx.InsertDocument(store.ScopeLocal, meta.ID, 0, empty); err != nil {
				return err
			}
		}
		return tx.TrackNew(meta.ID)
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("files create", "id", meta.ID, "type", fileType, "parent", parent)
	return meta, nil
}

// Rename changes the name of id. Renaming back to the synced name clears the pending rename.
func (s *Service) Rename(id uuid.UUID, name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	return s.store.Update(func(tx *store.Store) error {
		f := s.WithStore(tx)
		meta, err := f.Get(id)
		if err != nil {
			return err
		}
		if meta.IsRoot() {
			return ErrRootImmutable
		}

		secret, err := s.crypto.EncryptName(name)
		if err != nil {
			return fmt.Errorf("encrypt name: %w", err)
		}
		if secret.Equal(meta.Name) {
			return nil
		}
		if taken, err := f.sibling(meta.Parent, secret, id); err != nil {
			return err
		} else if taken != nil {
			return fmt.Errorf("%w: %s", ErrNameTaken, name)
		}

		oldName := meta.Name
		meta.Name = secret
		if err := tx.InsertMetadata(store.ScopeLocal, meta); err != nil {
			return err
		}

		return f.reconcileTracking(id, func(change *model.LocalChange, base *model.FileMetadata) error {
			if base != nil && base.Name.Equal(secret) {
				return tx.UntrackRename(id)
			}
			return tx.TrackRename(id, oldName)
		})
	})
}

// Move places id under parent
func (s *Service) Move(id, parent uuid.UUID) error {
	return s.store.Update(func(tx *store.Store) error {
		f := s.WithStore(tx)
		meta, err := f.Get(id)
		if err != nil {
			return err
		}
		if meta.IsRoot() {
			return ErrRootImmutable
		}
		if meta.Parent == parent {
			return nil
		}
		if _, err := f.folder(parent); err != nil {
			return err
		}
		if err := f.checkNotDescendant(id, parent); err != nil {
			return err
		}
		if taken, err := f.sibling(parent, meta.Name, id); err != nil {
			return err
		} else if taken != nil {
			return ErrNameTaken
		}

		oldParent := meta.Parent
		meta.Parent = parent
		if err := tx.InsertMetadata(store.ScopeLocal, meta); err != nil {
			return err
		}

		return f.reconcileTracking(id, func(change *model.LocalChange, base *model.FileMetadata) error {
			if base != nil && base.Parent == parent {
				return tx.UntrackMove(id)
			}
			return tx.TrackMove(id, oldParent)
		})
	})
}

// checkNotDescendant walks up from target and fails if it reaches id
func (s *Service) checkNotDescendant(id, target uuid.UUID) error {
	seen := make(map[uuid.UUID]struct{})
	for cur := target; ; {
		if cur == id {
			return ErrMoveIntoDescendant
		}
		if _, ok := seen[cur]; ok {
			return fmt.Errorf("files: cycle at %s", cur)
		}
		seen[cur] = struct{}{}

		meta, err := s.store.Current(cur)
		if err != nil {
			return err
		}
		if meta == nil {
			return fmt.Errorf("%w: ancestor %s", ErrNotFound, cur)
		}
		if meta.IsRoot() {
			return nil
		}
		cur = meta.Parent
	}
}

// Read returns the decrypted content of a document
func (s *Service) Read(id uuid.UUID) ([]byte, error) {
	meta, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if !meta.IsDocument() {
		return nil, fmt.Errorf("%w: %s", ErrNotDocument, id)
	}
	sealed, err := s.store.CurrentDocument(id)
	if err != nil {
		return nil, err
	}
	if sealed == nil {
		return nil, fmt.Errorf("%w: content of %s", ErrNotFound, id)
	}
	return s.crypto.DecryptDocument(sealed)
}

// Write replaces the content of a document
func (s *Service) Write(id uuid.UUID, content []byte) error {
	sealed, err := s.crypto.EncryptDocument(content)
	if err != nil {
		return fmt.Errorf("encrypt document: %w", err)
	}

	return s.store.Update(func(tx *store.Store) error {
		f := s.WithStore(tx)
		meta, err := f.Get(id)
		if err != nil {
			return err
		}
		if !meta.IsDocument() {
			return fmt.Errorf("%w: %s", ErrNotDocument, id)
		}

		if err := f.reconcileTracking(id, func(change *model.LocalChange, base *model.FileMetadata) error {
			baseContent, err := tx.GetDocument(store.ScopeBase, id)
			if err != nil {
				return err
			}
			return tx.TrackEdit(id, baseContent, meta.AccessKey)
		}); err != nil {
			return err
		}

		return tx.InsertDocument(store.ScopeLocal, id, meta.ContentVersion, sealed)
	})
}

// Delete marks id and everything below it as deleted
func (s *Service) Delete(id uuid.UUID) error {
	return s.store.Update(func(tx *store.Store) error {
		f := s.WithStore(tx)
		meta, err := f.Get(id)
		if err != nil {
			return err
		}
		if meta.IsRoot() {
			return ErrRootImmutable
		}

		queue := []*model.FileMetadata{meta}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]

			if cur.IsFolder() {
				children, err := f.Children(cur.ID)
				if err != nil {
					return err
				}
				queue = append(queue, children...)
			}

			cur.Deleted = true
			if err := tx.InsertMetadata(store.ScopeLocal, cur); err != nil {
				return err
			}
			if err := tx.TrackDelete(cur.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

// reconcileTracking runs track for files that exist on the server, then drops
// the local copy of id if no pending change remains
func (s *Service) reconcileTracking(id uuid.UUID, track func(change *model.LocalChange, base *model.FileMetadata) error) error {
	change, err := s.store.GetLocalChange(id)
	if err != nil {
		return err
	}
	if change != nil && change.New {
		return nil
	}

	base, err := s.store.GetMetadata(store.ScopeBase, id)
	if err != nil {
		return err
	}
	if err := track(change, base); err != nil {
		return err
	}

	change, err = s.store.GetLocalChange(id)
	if err != nil {
		return err
	}
	if change == nil && base != nil {
		if err := s.store.DeleteMetadata(store.ScopeLocal, id); err != nil {
			return err
		}
		return s.store.DeleteDocument(store.ScopeLocal, id)
	}
	return nil
}
