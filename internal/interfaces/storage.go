package interfaces

import "context"

// BlobStore is the object storage collaborator. Implementations must tolerate
// a local-filesystem fallback URL scheme (file://) when the primary backend
// is unavailable.
type BlobStore interface {
	// Put stores data under key and returns a URL the media can later be
	// retrieved by.
	Put(ctx context.Context, data []byte, key string, contentType string) (string, error)

	// Get retrieves the bytes previously stored at url.
	Get(ctx context.Context, url string) ([]byte, error)

	// Delete removes the object at url. It reports success; deleting an
	// already-absent object is not an error.
	Delete(ctx context.Context, url string) (bool, error)
}
