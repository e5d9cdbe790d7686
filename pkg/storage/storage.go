package storage

import (
	"context"
	"errors"
	"time"
)

// ErrObjectExists is returned by Upload when the destination path is already taken.
// Uploads never overwrite.
var ErrObjectExists = errors.New("storage: object already exists")

// BlobStore is the object storage surface used by the item workflow and the blob janitor.
type BlobStore interface {
	Upload(ctx context.Context, path string, content []byte, contentType string) error
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
	IsRemoteURL(uri string) bool
	Delete(ctx context.Context, path string) error
	Ping(ctx context.Context) error
}

// Driver names the backend behind a BlobStore. Used for logs and readiness output.
type Driver interface {
	Name() string
}
