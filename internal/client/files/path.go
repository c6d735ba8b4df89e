package files

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/openmined/syftvault/internal/model"
)

func (s *Service) Root() (*model.FileMetadata, error) {
	root, err := s.store.Root()
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, ErrNoRoot
	}
	return root, nil
}

// GetByPath resolves a slash separated path relative to the root. "" and "/" are the root.
func (s *Service) GetByPath(p string) (*model.FileMetadata, error) {
	cur, err := s.Root()
	if err != nil {
		return nil, err
	}

	for _, part := range strings.Split(strings.Trim(path.Clean("/"+p), "/"), "/") {
		if part == "" {
			continue
		}
		secret, err := s.crypto.EncryptName(part)
		if err != nil {
			return nil, fmt.Errorf("encrypt name: %w", err)
		}
		next, err := s.sibling(cur.ID, secret, uuid.Nil)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		cur = next
	}
	return cur, nil
}

// Path returns the root relative path of id, "/" for the root
func (s *Service) Path(id uuid.UUID) (string, error) {
	var parts []string
	seen := make(map[uuid.UUID]struct{})
	for cur := id; ; {
		if _, ok := seen[cur]; ok {
			return "", fmt.Errorf("files: cycle at %s", cur)
		}
		seen[cur] = struct{}{}

		meta, err := s.store.Current(cur)
		if err != nil {
			return "", err
		}
		if meta == nil {
			return "", fmt.Errorf("%w: %s", ErrNotFound, cur)
		}
		if meta.IsRoot() {
			break
		}
		name, err := s.Name(meta)
		if err != nil {
			return "", err
		}
		parts = append(parts, name)
		cur = meta.Parent
	}

	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return "/" + strings.Join(parts, "/"), nil
}
