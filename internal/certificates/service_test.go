package certificates

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/warsha-platform/backend/internal/models"
)

type fakeRegistrations struct {
	byID map[uuid.UUID]models.RegistrationWithWorkshop
	err  error
}

func (f *fakeRegistrations) GetWithWorkshop(_ context.Context, id uuid.UUID) (*models.RegistrationWithWorkshop, error) {
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (f *fakeRegistrations) ListApprovedWithWorkshop(_ context.Context, workshopID uuid.UUID) ([]models.RegistrationWithWorkshop, error) {
	var out []models.RegistrationWithWorkshop
	for _, r := range f.byID {
		if r.WorkshopID == workshopID && r.Status == models.RegistrationApproved {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeOrganizers struct {
	name string
	err  error
}

func (f fakeOrganizers) OrganizerName(context.Context, uuid.UUID) (string, error) {
	return f.name, f.err
}

// fakeIssued mimics the certificate_issued table including its unique constraints.
type fakeIssued struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]models.CertificateIssued // by registration
	regs      *fakeRegistrations
	failOn    map[uuid.UUID]bool
	inserts   int
	templates map[uuid.UUID]uuid.UUID
}

func newFakeIssued(regs *fakeRegistrations) *fakeIssued {
	return &fakeIssued{
		rows:      map[uuid.UUID]models.CertificateIssued{},
		regs:      regs,
		failOn:    map[uuid.UUID]bool{},
		templates: map[uuid.UUID]uuid.UUID{},
	}
}

func (f *fakeIssued) EnsureTemplate(_ context.Context, workshopID uuid.UUID) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.templates[workshopID]; ok {
		return id, nil
	}
	id := uuid.New()
	f.templates[workshopID] = id
	return id, nil
}

func (f *fakeIssued) Insert(_ context.Context, c *models.CertificateIssued) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn[c.RegistrationID] {
		return fmt.Errorf("%w: connection reset", ErrPersist)
	}
	if _, ok := f.rows[c.RegistrationID]; ok {
		return ErrAlreadyIssued
	}
	for _, r := range f.rows {
		if r.VerificationCode == c.VerificationCode {
			return fmt.Errorf("%w: verification code collision", ErrPersist)
		}
	}
	c.ID = uuid.New()
	c.IssuedAt = time.Now()
	f.rows[c.RegistrationID] = *c
	f.inserts++
	return nil
}

func (f *fakeIssued) ExistsForRegistration(_ context.Context, registrationID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.rows[registrationID]
	return ok, nil
}

func (f *fakeIssued) GetViewByCode(_ context.Context, code string) (*models.CertificateView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for regID, c := range f.rows {
		if c.VerificationCode != code {
			continue
		}
		reg := f.regs.byID[regID]
		return &models.CertificateView{
			VerificationCode:    c.VerificationCode,
			StudentName:         reg.StudentName,
			WorkshopTitle:       reg.Workshop.Title,
			WorkshopDescription: reg.Workshop.Description,
			CompletionDate:      reg.Workshop.EndDate,
			IssuedAt:            c.IssuedAt,
			CertificateURL:      c.CertificateURL,
			ContentSHA256:       c.ContentSHA256,
		}, nil
	}
	return nil, nil
}

type fakeRenderer struct {
	calls []CertificateData
	err   error
}

func (f *fakeRenderer) Render(data CertificateData) ([]byte, error) {
	f.calls = append(f.calls, data)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.4 " + data.VerificationCode), nil
}

type fixture struct {
	workshop models.Workshop
	regs     *fakeRegistrations
	issued   *fakeIssued
	blobs    *fakeBlobs
	renderer *fakeRenderer
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	w := models.Workshop{
		ID:          uuid.New(),
		Title:       "Go Basics",
		Description: "Intro",
		EndDate:     time.Date(2025, 3, 15, 21, 30, 0, 0, time.UTC),
		Status:      models.WorkshopStatusCompleted,
	}
	regs := &fakeRegistrations{byID: map[uuid.UUID]models.RegistrationWithWorkshop{}}
	issued := newFakeIssued(regs)
	blobs := newFakeBlobs()
	renderer := &fakeRenderer{}
	riyadh := time.FixedZone("AST", 3*60*60)
	svc := NewService(regs, fakeOrganizers{name: "Dr. Huda"}, issued, renderer, NewStore(blobs),
		ServiceConfig{DateLayout: "02/01/2006", Location: riyadh}, nil, nil)
	return &fixture{workshop: w, regs: regs, issued: issued, blobs: blobs, renderer: renderer, svc: svc}
}

func (f *fixture) addRegistration(name string, status models.RegistrationStatus) uuid.UUID {
	id := uuid.New()
	f.regs.byID[id] = models.RegistrationWithWorkshop{
		Registration: models.Registration{
			ID:           id,
			WorkshopID:   f.workshop.ID,
			StudentName:  name,
			StudentPhone: "0501234567",
			Status:       status,
		},
		Workshop: f.workshop,
	}
	return id
}

func TestService_IssueOne(t *testing.T) {
	f := newFixture(t)
	regID := f.addRegistration("Sara", models.RegistrationApproved)

	c, err := f.svc.IssueOne(context.Background(), f.workshop.ID, regID)
	require.NoError(t, err)
	require.Equal(t, regID, c.RegistrationID)
	require.Equal(t, "Sara", c.StudentName)
	require.Equal(t, "Go Basics", c.WorkshopTitle)
	require.Len(t, c.VerificationCode, CodeLength)
	require.Len(t, c.ContentSHA256, 64)
	require.Contains(t, c.CertificateURL, f.workshop.ID.String()+"/"+regID.String()+"-")

	require.Len(t, f.renderer.calls, 1)
	require.Equal(t, CertificateData{
		StudentName:      "Sara",
		WorkshopTitle:    "Go Basics",
		CompletionDate:   "16/03/2025",
		VerificationCode: c.VerificationCode,
		OrganizerName:    "Dr. Huda",
	}, f.renderer.calls[0])
}

func TestService_IssueOne_NotFoundHasNoSideEffects(t *testing.T) {
	f := newFixture(t)
	other := f.addRegistration("Sara", models.RegistrationApproved)

	_, err := f.svc.IssueOne(context.Background(), f.workshop.ID, uuid.New())
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.IssueOne(context.Background(), uuid.New(), other)
	require.ErrorIs(t, err, ErrNotFound)

	require.Empty(t, f.blobs.uploads)
	require.Zero(t, f.issued.inserts)
	require.Empty(t, f.renderer.calls)
}

func TestService_IssueOne_RejectsUnapproved(t *testing.T) {
	f := newFixture(t)
	regID := f.addRegistration("Sara", models.RegistrationPending)

	_, err := f.svc.IssueOne(context.Background(), f.workshop.ID, regID)
	require.ErrorIs(t, err, ErrNotApproved)
	require.Empty(t, f.blobs.uploads)
}

// Single issuance checks for an existing certificate, the same as bulk issuance does.
// A second IssueOne for the same registration is refused rather than creating a second artifact.
func TestService_IssueOne_DuplicateGuardIsUnified(t *testing.T) {
	f := newFixture(t)
	regID := f.addRegistration("Sara", models.RegistrationApproved)

	_, err := f.svc.IssueOne(context.Background(), f.workshop.ID, regID)
	require.NoError(t, err)

	_, err = f.svc.IssueOne(context.Background(), f.workshop.ID, regID)
	require.ErrorIs(t, err, ErrAlreadyIssued)
	require.Len(t, f.blobs.uploads, 1)
	require.Equal(t, 1, f.issued.inserts)
}

func TestService_IssueOne_OrganizerNameOptional(t *testing.T) {
	f := newFixture(t)
	f.svc.organizers = fakeOrganizers{err: errors.New("no rows")}
	regID := f.addRegistration("Sara", models.RegistrationApproved)

	_, err := f.svc.IssueOne(context.Background(), f.workshop.ID, regID)
	require.NoError(t, err)
	require.Equal(t, "", f.renderer.calls[0].OrganizerName)
}

func TestService_IssueOne_FailureStages(t *testing.T) {
	t.Run("render", func(t *testing.T) {
		f := newFixture(t)
		f.renderer.err = fmt.Errorf("%w: font", ErrRender)
		regID := f.addRegistration("Sara", models.RegistrationApproved)

		_, err := f.svc.IssueOne(context.Background(), f.workshop.ID, regID)
		require.ErrorIs(t, err, ErrRender)
		require.Empty(t, f.blobs.uploads)
		require.Zero(t, f.issued.inserts)
	})
	t.Run("storage", func(t *testing.T) {
		f := newFixture(t)
		f.blobs.err = errors.New("access denied")
		regID := f.addRegistration("Sara", models.RegistrationApproved)

		_, err := f.svc.IssueOne(context.Background(), f.workshop.ID, regID)
		require.ErrorIs(t, err, ErrStorage)
		require.Zero(t, f.issued.inserts)
	})
	t.Run("persist leaves the blob", func(t *testing.T) {
		f := newFixture(t)
		regID := f.addRegistration("Sara", models.RegistrationApproved)
		f.issued.failOn[regID] = true

		_, err := f.svc.IssueOne(context.Background(), f.workshop.ID, regID)
		require.ErrorIs(t, err, ErrPersist)
		require.Len(t, f.blobs.uploads, 1)
	})
	t.Run("code collision is fatal", func(t *testing.T) {
		f := newFixture(t)
		first := f.addRegistration("Sara", models.RegistrationApproved)
		second := f.addRegistration("Omar", models.RegistrationApproved)
		f.svc.newCode = func() (string, error) { return "SAMECODE0001", nil }

		_, err := f.svc.IssueOne(context.Background(), f.workshop.ID, first)
		require.NoError(t, err)
		_, err = f.svc.IssueOne(context.Background(), f.workshop.ID, second)
		require.ErrorIs(t, err, ErrPersist)
	})
}

func TestService_IssueBulk_SkipsAlreadyIssued(t *testing.T) {
	f := newFixture(t)
	var approved []uuid.UUID
	for i := 0; i < 5; i++ {
		approved = append(approved, f.addRegistration(fmt.Sprintf("Student %d", i), models.RegistrationApproved))
	}
	f.addRegistration("Pending", models.RegistrationPending)
	f.addRegistration("Rejected", models.RegistrationRejected)

	existing := map[uuid.UUID]models.CertificateIssued{}
	for _, id := range approved[:2] {
		c, err := f.svc.IssueOne(context.Background(), f.workshop.ID, id)
		require.NoError(t, err)
		existing[id] = c.CertificateIssued
	}
	uploadsBefore := len(f.blobs.uploads)

	sum, err := f.svc.IssueBulk(context.Background(), f.workshop.ID)
	require.NoError(t, err)
	require.Equal(t, 3, sum.Succeeded)
	require.Equal(t, 2, sum.Skipped)
	require.Zero(t, sum.Failed)
	require.Len(t, sum.Issued, 3)
	require.Equal(t, uploadsBefore+3, len(f.blobs.uploads))
	require.Len(t, f.issued.rows, 5)
	for id, c := range existing {
		require.Equal(t, c, f.issued.rows[id])
	}
}

func TestService_IssueBulk_ContinuesPastFailures(t *testing.T) {
	f := newFixture(t)
	a := f.addRegistration("A", models.RegistrationApproved)
	f.addRegistration("B", models.RegistrationApproved)
	f.addRegistration("C", models.RegistrationApproved)
	f.issued.failOn[a] = true

	sum, err := f.svc.IssueBulk(context.Background(), f.workshop.ID)
	require.NoError(t, err)
	require.Equal(t, 2, sum.Succeeded)
	require.Equal(t, 1, sum.Failed)
	require.Equal(t, a, sum.Failures[0].RegistrationID)
	require.Equal(t, "A", sum.Failures[0].StudentName)
}

func TestService_IssueBulk_NothingToIssue(t *testing.T) {
	f := newFixture(t)
	f.addRegistration("Pending", models.RegistrationPending)

	_, err := f.svc.IssueBulk(context.Background(), f.workshop.ID)
	require.ErrorIs(t, err, ErrNothingToIssue)
}

func TestService_RoundTripWithLookup(t *testing.T) {
	f := newFixture(t)
	regID := f.addRegistration("Sara Al-Qahtani", models.RegistrationApproved)

	c, err := f.svc.IssueOne(context.Background(), f.workshop.ID, regID)
	require.NoError(t, err)

	view, ok := NewLookup(f.issued, nil).Resolve(context.Background(), c.VerificationCode)
	require.True(t, ok)
	require.Equal(t, "Sara Al-Qahtani", view.StudentName)
	require.Equal(t, "Go Basics", view.WorkshopTitle)
	require.Equal(t, c.CertificateURL, view.CertificateURL)
	require.Equal(t, c.ContentSHA256, view.ContentSHA256)
}

func TestService_WithRealRenderer(t *testing.T) {
	f := newFixture(t)
	r, err := NewRenderer(RendererConfig{BaseURL: "https://warsha.example"}, nil)
	require.NoError(t, err)
	f.svc.renderer = r
	regID := f.addRegistration("Sara", models.RegistrationApproved)

	c, err := f.svc.IssueOne(context.Background(), f.workshop.ID, regID)
	require.NoError(t, err)
	body := f.blobs.uploads[c.StorageKey]
	require.True(t, len(body) > 5 && string(body[:5]) == "%PDF-")
}
