package ports

import "context"

// EvidenceStore persists artifact payloads in a blob store keyed by an
// opaque storage key
type EvidenceStore interface {
	// Put stores the payload and returns the storage key
	Put(ctx context.Context, key string, contentType string, payload []byte) error

	// Get retrieves a stored payload
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes a stored payload (manual cleanup only; the pipeline
	// never deletes evidence)
	Delete(ctx context.Context, key string) error
}
