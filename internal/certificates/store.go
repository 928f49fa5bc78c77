package certificates

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/warsha-platform/backend/pkg/storage"
)

// BlobUploader writes bytes under a key and returns their public URL.
type BlobUploader interface {
	Upload(ctx context.Context, key, contentType string, body []byte) (string, error)
}

// CertificateKey returns the object key for a certificate rendered at t.
// The millisecond timestamp keeps repeated attempts for one registration from colliding.
func CertificateKey(workshopID, registrationID uuid.UUID, t time.Time) string {
	return fmt.Sprintf("%s/%s-%d.pdf", workshopID, registrationID, t.UnixMilli())
}

// Store persists rendered certificates to blob storage.
type Store struct {
	blobs BlobUploader
	now   func() time.Time
}

// NewStore creates a certificate store backed by blobs.
func NewStore(blobs BlobUploader) *Store {
	return &Store{blobs: blobs, now: time.Now}
}

// Put uploads a certificate PDF and returns its key and public URL.
func (s *Store) Put(ctx context.Context, workshopID, registrationID uuid.UUID, pdf []byte) (key, url string, err error) {
	key = CertificateKey(workshopID, registrationID, s.now())
	url, err = s.blobs.Upload(ctx, key, storage.ContentTypePDF, pdf)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return key, url, nil
}
