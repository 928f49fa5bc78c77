package certificates

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warsha-platform/backend/internal/metrics"
	"github.com/warsha-platform/backend/internal/models"
)

// RegistrationSource loads registrations joined with their workshop.
// GetWithWorkshop returns (nil, nil) for an unknown id.
type RegistrationSource interface {
	GetWithWorkshop(ctx context.Context, id uuid.UUID) (*models.RegistrationWithWorkshop, error)
	ListApprovedWithWorkshop(ctx context.Context, workshopID uuid.UUID) ([]models.RegistrationWithWorkshop, error)
}

// OrganizerDirectory resolves the display name printed on the signature line.
type OrganizerDirectory interface {
	OrganizerName(ctx context.Context, workshopID uuid.UUID) (string, error)
}

// IssuanceRepository persists certificate rows.
type IssuanceRepository interface {
	EnsureTemplate(ctx context.Context, workshopID uuid.UUID) (uuid.UUID, error)
	Insert(ctx context.Context, c *models.CertificateIssued) error
	ExistsForRegistration(ctx context.Context, registrationID uuid.UUID) (bool, error)
}

// PDFRenderer renders certificate documents.
type PDFRenderer interface {
	Render(data CertificateData) ([]byte, error)
}

// ArtifactStore persists rendered documents.
type ArtifactStore interface {
	Put(ctx context.Context, workshopID, registrationID uuid.UUID, pdf []byte) (key, url string, err error)
}

// ServiceConfig controls how completion dates are printed.
type ServiceConfig struct {
	DateLayout string
	Location   *time.Location
}

// BulkFailure describes one registration that could not be issued.
type BulkFailure struct {
	RegistrationID uuid.UUID `json:"registration_id"`
	StudentName    string    `json:"student_name"`
	Error          string    `json:"error"`
}

// BulkSummary aggregates a whole-workshop issuance run.
type BulkSummary struct {
	Succeeded int                          `json:"succeeded"`
	Failed    int                          `json:"failed"`
	Skipped   int                          `json:"skipped"`
	Failures  []BulkFailure                `json:"failures"`
	Issued    []models.IssuedWithRecipient `json:"issued"`
}

// Service issues certificates: render, store, then record.
type Service struct {
	regs       RegistrationSource
	organizers OrganizerDirectory
	issued     IssuanceRepository
	renderer   PDFRenderer
	store      ArtifactStore
	cfg        ServiceConfig
	metrics    *metrics.Collector
	logger     *zap.Logger
	newCode    func() (string, error)
}

// NewService creates an issuance service.
func NewService(
	regs RegistrationSource,
	organizers OrganizerDirectory,
	issued IssuanceRepository,
	renderer PDFRenderer,
	store ArtifactStore,
	cfg ServiceConfig,
	m *metrics.Collector,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DateLayout == "" {
		cfg.DateLayout = "02/01/2006"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{
		regs:       regs,
		organizers: organizers,
		issued:     issued,
		renderer:   renderer,
		store:      store,
		cfg:        cfg,
		metrics:    m,
		logger:     logger,
		newCode:    NewVerificationCode,
	}
}

// IssueOne issues the certificate for one approved registration of the workshop.
// It fails with ErrNotFound, ErrNotApproved or ErrAlreadyIssued before any side effect.
func (s *Service) IssueOne(ctx context.Context, workshopID, registrationID uuid.UUID) (*models.IssuedWithRecipient, error) {
	reg, err := s.regs.GetWithWorkshop(ctx, registrationID)
	if err != nil {
		s.metrics.RecordIssuance("single", "failed")
		return nil, fmt.Errorf("load registration: %w", err)
	}
	if reg == nil || reg.WorkshopID != workshopID {
		s.metrics.RecordIssuance("single", "failed")
		return nil, ErrNotFound
	}
	if reg.Status != models.RegistrationApproved {
		s.metrics.RecordIssuance("single", "failed")
		return nil, ErrNotApproved
	}
	c, err := s.issue(ctx, reg)
	switch {
	case errors.Is(err, ErrAlreadyIssued):
		s.metrics.RecordIssuance("single", "skipped")
	case err != nil:
		s.metrics.RecordIssuance("single", "failed")
	default:
		s.metrics.RecordIssuance("single", "success")
	}
	return c, err
}

// IssueBulk issues certificates for every approved registration of the workshop that has none yet.
// Individual failures are collected and never stop the run. ErrNothingToIssue means no registration
// is approved.
func (s *Service) IssueBulk(ctx context.Context, workshopID uuid.UUID) (*BulkSummary, error) {
	regs, err := s.regs.ListApprovedWithWorkshop(ctx, workshopID)
	if err != nil {
		return nil, fmt.Errorf("list approved registrations: %w", err)
	}
	if len(regs) == 0 {
		return nil, ErrNothingToIssue
	}
	sum := &BulkSummary{Failures: []BulkFailure{}, Issued: []models.IssuedWithRecipient{}}
	for i := range regs {
		reg := &regs[i]
		c, err := s.issue(ctx, reg)
		switch {
		case errors.Is(err, ErrAlreadyIssued):
			sum.Skipped++
			s.metrics.RecordIssuance("bulk", "skipped")
		case err != nil:
			sum.Failed++
			sum.Failures = append(sum.Failures, BulkFailure{
				RegistrationID: reg.ID,
				StudentName:    reg.StudentName,
				Error:          err.Error(),
			})
			s.metrics.RecordIssuance("bulk", "failed")
		default:
			sum.Succeeded++
			sum.Issued = append(sum.Issued, *c)
			s.metrics.RecordIssuance("bulk", "success")
		}
	}
	s.logger.Info("bulk issuance finished",
		zap.String("workshop_id", workshopID.String()),
		zap.Int("succeeded", sum.Succeeded),
		zap.Int("failed", sum.Failed),
		zap.Int("skipped", sum.Skipped),
	)
	return sum, nil
}

func (s *Service) issue(ctx context.Context, reg *models.RegistrationWithWorkshop) (*models.IssuedWithRecipient, error) {
	log := s.logger.With(
		zap.String("registration_id", reg.ID.String()),
		zap.String("workshop_id", reg.WorkshopID.String()),
	)

	exists, err := s.issued.ExistsForRegistration(ctx, reg.ID)
	if err != nil {
		return nil, fmt.Errorf("check existing certificate: %w", err)
	}
	if exists {
		return nil, ErrAlreadyIssued
	}

	organizer, err := s.organizers.OrganizerName(ctx, reg.WorkshopID)
	if err != nil {
		log.Warn("organizer name unavailable", zap.Error(err))
		organizer = ""
	}

	code, err := s.newCode()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	pdf, err := s.renderer.Render(CertificateData{
		StudentName:      reg.StudentName,
		WorkshopTitle:    reg.Workshop.Title,
		CompletionDate:   reg.Workshop.EndDate.In(s.cfg.Location).Format(s.cfg.DateLayout),
		VerificationCode: code,
		OrganizerName:    organizer,
	})
	s.metrics.ObserveRender(time.Since(start))
	if err != nil {
		log.Error("render certificate failed", zap.Error(err))
		return nil, err
	}
	digest := sha256.Sum256(pdf)

	key, url, err := s.store.Put(ctx, reg.WorkshopID, reg.ID, pdf)
	if err != nil {
		log.Error("store certificate failed", zap.Error(err))
		return nil, err
	}

	templateID, err := s.issued.EnsureTemplate(ctx, reg.WorkshopID)
	if err != nil {
		log.Error("certificate template unavailable", zap.String("storage_key", key), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrPersist, err)
	}
	rec := models.CertificateIssued{
		RegistrationID:   reg.ID,
		CertificateID:    templateID,
		CertificateURL:   url,
		VerificationCode: code,
		StorageKey:       key,
		ContentSHA256:    hex.EncodeToString(digest[:]),
	}
	if err := s.issued.Insert(ctx, &rec); err != nil {
		// The uploaded object stays behind until the orphan sweep removes it.
		log.Error("record certificate failed", zap.String("storage_key", key), zap.Error(err))
		return nil, err
	}
	log.Info("certificate issued", zap.String("verification_code", code))

	return &models.IssuedWithRecipient{
		CertificateIssued: rec,
		StudentName:       reg.StudentName,
		StudentPhone:      reg.StudentPhone,
		StudentEmail:      reg.StudentEmail,
		WorkshopID:        reg.WorkshopID,
		WorkshopTitle:     reg.Workshop.Title,
	}, nil
}
