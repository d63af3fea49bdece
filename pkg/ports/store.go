package ports

import "context"

// BlobStore persists opaque byte blobs under string keys.
// The application state is stored as a single blob under a fixed key.
type BlobStore interface {
	// Save stores data under key, replacing any previous value.
	Save(ctx context.Context, key string, data []byte) error

	// Load retrieves the blob stored under key.
	// Returns domain.ErrBlobNotFound if the key does not exist.
	Load(ctx context.Context, key string) ([]byte, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns the stored keys in no particular order.
	List(ctx context.Context) ([]string, error)
}
