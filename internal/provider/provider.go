// Package provider abstracts the storage back-ends a job uploads
// chunks to: an S3-like object store, Google Drive, a USB-mounted
// filesystem, and an SMB share. Every back-end exposes the same five
// capabilities so the run engine never branches on provider kind.
package provider

import (
	"context"
	"io"
)

// ObjectInfo describes one stored chunk, returned by ListAll.
type ObjectInfo struct {
	Key  string
	Size int64
}

// Provider is the capability surface every back-end implements:
// upload, download, delete, existence check, and a full listing under
// a prefix.
type Provider interface {
	// Kind identifies the back-end for diagnostics and metrics labels.
	Kind() string

	// Upload stores src under key, overwriting any existing object.
	Upload(ctx context.Context, key string, src io.Reader, size int64) error

	// Download returns a reader for the object stored under key.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object stored under key. Deleting a
	// non-existent key is not an error.
	Delete(ctx context.Context, key string) error

	// Contains reports whether an object exists under key, used by the
	// upload pipeline's dedup check.
	Contains(ctx context.Context, key string) (bool, error)

	// ListAll enumerates every object under the given prefix.
	ListAll(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// ChunkKey returns the storage key for a chunk belonging to jobID,
// following the namespace convention "<job_uuid>/chunks/<hash>.chunk"
// so every provider can share retention/listing logic regardless of
// back-end.
func ChunkKey(jobID, hash string) string {
	return jobID + "/chunks/" + hash + ".chunk"
}
