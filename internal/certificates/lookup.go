package certificates

import (
	"context"

	"go.uber.org/zap"

	"github.com/warsha-platform/backend/internal/models"
)

// ViewFinder loads the public view of a certificate. It returns (nil, nil) for an unknown code.
type ViewFinder interface {
	GetViewByCode(ctx context.Context, code string) (*models.CertificateView, error)
}

// Lookup resolves verification codes for the public verification page.
type Lookup struct {
	finder ViewFinder
	logger *zap.Logger
}

// NewLookup creates a verification lookup.
func NewLookup(finder ViewFinder, logger *zap.Logger) *Lookup {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lookup{finder: finder, logger: logger}
}

// Resolve returns the certificate for code and whether it was found. Codes are compared exactly as
// stored. Malformed input, unknown codes and storage failures are all reported as not found.
func (l *Lookup) Resolve(ctx context.Context, code string) (*models.CertificateView, bool) {
	if !plausibleCode(code) {
		return nil, false
	}
	v, err := l.finder.GetViewByCode(ctx, code)
	if err != nil {
		l.logger.Error("certificate lookup failed", zap.Error(err))
		return nil, false
	}
	if v == nil {
		return nil, false
	}
	return v, true
}
