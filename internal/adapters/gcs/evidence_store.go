// Package gcs stores evidence artifact payloads in Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/stayguard/chargeback-service/internal/domain"
	"github.com/stayguard/chargeback-service/internal/domain/ports"
)

// EvidenceStore implements ports.EvidenceStore on a GCS bucket
type EvidenceStore struct {
	client *storage.Client
	bucket string
	logger ports.Logger
}

// NewClient builds a storage client. Explicit JSON credentials take
// precedence; otherwise application default credentials are used.
func NewClient(ctx context.Context, credentialsJSON string) (*storage.Client, error) {
	if credentialsJSON != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	return storage.NewClient(ctx)
}

// NewEvidenceStore creates a GCS-backed evidence store
func NewEvidenceStore(client *storage.Client, bucket string, logger ports.Logger) *EvidenceStore {
	return &EvidenceStore{
		client: client,
		bucket: bucket,
		logger: logger,
	}
}

// Put stores the payload under the given key. An existing object with the
// same key is overwritten; keys embed a fresh UUID so this only happens on
// a retried write of the same artifact.
func (s *EvidenceStore) Put(ctx context.Context, key string, contentType string, payload []byte) error {
	wc := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	wc.ContentType = contentType

	if _, err := wc.Write(payload); err != nil {
		_ = wc.Close()
		return domain.WrapError(domain.ErrorCodeStorageError,
			fmt.Sprintf("write object %q", key), err)
	}
	if err := wc.Close(); err != nil {
		return domain.WrapError(domain.ErrorCodeStorageError,
			fmt.Sprintf("close writer for %q", key), err)
	}

	s.logger.Debug("evidence payload stored",
		ports.String("key", key),
		ports.Int("size_bytes", len(payload)))
	return nil
}

// Get retrieves a stored payload
func (s *EvidenceStore) Get(ctx context.Context, key string) ([]byte, error) {
	rc, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, domain.NewDomainError(domain.ErrorCodeEvidenceNotAvailable,
				fmt.Sprintf("object %q does not exist", key))
		}
		return nil, domain.WrapError(domain.ErrorCodeStorageError,
			fmt.Sprintf("open object %q", key), err)
	}
	defer rc.Close()

	payload, err := io.ReadAll(rc)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeStorageError,
			fmt.Sprintf("read object %q", key), err)
	}
	return payload, nil
}

// Delete removes a stored payload. Deleting a missing object is not an
// error.
func (s *EvidenceStore) Delete(ctx context.Context, key string) error {
	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return domain.WrapError(domain.ErrorCodeStorageError,
			fmt.Sprintf("delete object %q", key), err)
	}
	return nil
}
