// Package storage implements BackyDB's pluggable artifact storage (§4.6):
// a Local variant backed by atomic rename-from-temp, and an S3 variant
// backed by multipart upload, both so a half-written object is never
// visible to a concurrent reader.
package storage

import (
	"context"
	"io"

	"github.com/allisson/backydb/internal/errors"
)

// Store is the polymorphic storage contract every backend implements.
type Store interface {
	// Put streams r to name, returning the backend-specific location
	// (e.g. a local path or an s3:// URI) once the object is durably and
	// atomically visible.
	Put(ctx context.Context, name string, r io.Reader) (location string, err error)
	// Get opens name for reading. The caller must close the returned
	// reader.
	Get(ctx context.Context, name string) (io.ReadCloser, error)
	// List returns every object name with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	// Delete removes name. Deleting a name that does not exist is not an
	// error.
	Delete(ctx context.Context, name string) error
	// Close releases backend resources (open buckets, clients).
	Close() error
}

var (
	// ErrStorageUnavailable indicates a transient backend failure (network,
	// throttling) that Retry may recover from.
	ErrStorageUnavailable = errors.Wrap(errors.ErrStorageUnavailable, "storage: backend unavailable")
	// ErrStorageNotFound indicates the named object does not exist.
	ErrStorageNotFound = errors.Wrap(errors.ErrStorageNotFound, "storage: object not found")
)
