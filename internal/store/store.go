package store

import "context"

// Blob keys used by trk's state containers. Each container owns one
// independently keyed blob; no transaction ever spans both.
const (
	KeyIssues  = "issues"
	KeySession = "session"
)

// Blobs is the narrow persistence surface the state containers depend
// on: a durable key-value store of opaque JSON blobs keyed by name.
type Blobs interface {
	// Load returns the blob stored under key, or ok=false if the key
	// has never been saved.
	Load(ctx context.Context, key string) (data []byte, ok bool, err error)

	// Save replaces the blob stored under key.
	Save(ctx context.Context, key string, data []byte) error

	Close() error
}
