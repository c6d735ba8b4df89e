package blob

import (
	"context"
	"errors"
)

var (
	ErrInvalidKey     = errors.New("invalid key")
	ErrObjectNotFound = errors.New("object not found")
)

// IBlobBackend stores encrypted document bodies under opaque keys
type IBlobBackend interface {
	// GetObject returns the object body, or ErrObjectNotFound
	GetObject(ctx context.Context, key string) ([]byte, error)

	// PutObject creates or replaces the object at key
	PutObject(ctx context.Context, key string, body []byte) error

	// DeleteObject removes an object, returns false if it did not exist
	DeleteObject(ctx context.Context, key string) (bool, error)
}
