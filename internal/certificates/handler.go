package certificates

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warsha-platform/backend/internal/models"
	"github.com/warsha-platform/backend/internal/notify"
	"github.com/warsha-platform/backend/pkg/queue"
	"github.com/warsha-platform/backend/pkg/response"
)

//go:embed templates/*.html
var pageFS embed.FS

// PageTemplate holds the public verification page; register it with gin's SetHTMLTemplate.
var PageTemplate = template.Must(template.ParseFS(pageFS, "templates/*.html"))

// Issuer issues certificates.
type Issuer interface {
	IssueOne(ctx context.Context, workshopID, registrationID uuid.UUID) (*models.IssuedWithRecipient, error)
	IssueBulk(ctx context.Context, workshopID uuid.UUID) (*BulkSummary, error)
}

// Resolver resolves verification codes.
type Resolver interface {
	Resolve(ctx context.Context, code string) (*models.CertificateView, bool)
}

// IssuedReader reads issued certificates with their recipients.
type IssuedReader interface {
	ListByWorkshop(ctx context.Context, workshopID uuid.UUID) ([]models.IssuedWithRecipient, error)
	GetByRegistration(ctx context.Context, workshopID, registrationID uuid.UUID) (*models.IssuedWithRecipient, error)
}

// NotificationQueue accepts notification jobs for the worker.
type NotificationQueue interface {
	EnqueueNotification(ctx context.Context, payload queue.NotificationPayload) error
	EnqueueNotificationBulk(ctx context.Context, payload queue.NotificationBulkPayload) error
}

// HandlerConfig holds presentation settings.
type HandlerConfig struct {
	BaseURL    string
	DateLayout string
	Location   *time.Location
}

// IssueRequest is the optional body of the issue endpoints.
type IssueRequest struct {
	Notify bool `json:"notify"`
}

// Handler handles certificate HTTP endpoints.
type Handler struct {
	issuer   Issuer
	resolver Resolver
	issued   IssuedReader
	queue    NotificationQueue
	cfg      HandlerConfig
	logger   *zap.Logger
}

// NewHandler creates a certificates handler.
func NewHandler(issuer Issuer, resolver Resolver, issued IssuedReader, q NotificationQueue, cfg HandlerConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DateLayout == "" {
		cfg.DateLayout = "02/01/2006"
	}
	return &Handler{issuer: issuer, resolver: resolver, issued: issued, queue: q, cfg: cfg, logger: logger}
}

// VerifyPage handles GET /certificate/:code. Unknown codes render the not-found state with 200.
func (h *Handler) VerifyPage(c *gin.Context) {
	view, found := h.resolver.Resolve(c.Request.Context(), c.Param("code"))
	data := gin.H{"Found": found}
	if found {
		data["Certificate"] = view
		data["CompletionDate"] = view.CompletionDate.In(h.cfg.Location).Format(h.cfg.DateLayout)
		data["IssuedDate"] = view.IssuedAt.In(h.cfg.Location).Format(h.cfg.DateLayout)
	}
	c.HTML(http.StatusOK, "verify.html", data)
}

// VerifyJSON handles GET /api/certificates/verify/:code.
func (h *Handler) VerifyJSON(c *gin.Context) {
	view, found := h.resolver.Resolve(c.Request.Context(), c.Param("code"))
	response.OK(c, gin.H{"found": found, "certificate": view})
}

// List handles GET /workshops/:id/certificates.
func (h *Handler) List(c *gin.Context) {
	workshopID, ok := parseUUIDParam(c, "id", "معرف الورشة غير صالح")
	if !ok {
		return
	}
	list, err := h.issued.ListByWorkshop(c.Request.Context(), workshopID)
	if err != nil {
		h.logger.Error("list certificates failed", zap.Error(err), zap.String("workshop_id", workshopID.String()))
		response.Internal(c, "فشل تحميل الشهادات")
		return
	}
	if list == nil {
		list = []models.IssuedWithRecipient{}
	}
	response.OK(c, list)
}

// IssueOne handles POST /workshops/:id/certificates/:registrationId.
func (h *Handler) IssueOne(c *gin.Context) {
	workshopID, ok := parseUUIDParam(c, "id", "معرف الورشة غير صالح")
	if !ok {
		return
	}
	registrationID, ok := parseUUIDParam(c, "registrationId", "معرف التسجيل غير صالح")
	if !ok {
		return
	}
	req, ok := bindIssueRequest(c)
	if !ok {
		return
	}

	cert, err := h.issuer.IssueOne(c.Request.Context(), workshopID, registrationID)
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "التسجيل غير موجود")
		return
	case errors.Is(err, ErrNotApproved):
		response.Unprocessable(c, "لا يمكن إصدار شهادة لتسجيل غير مقبول")
		return
	case errors.Is(err, ErrAlreadyIssued):
		response.Conflict(c, "تم إصدار شهادة لهذا التسجيل مسبقاً")
		return
	case err != nil:
		h.logger.Error("issue certificate failed", zap.Error(err), zap.String("registration_id", registrationID.String()))
		response.Internal(c, "فشل إنشاء الشهادة")
		return
	}

	queued := false
	if req.Notify && cert.StudentPhone != "" {
		queued = h.enqueueOne(c.Request.Context(), *cert)
	}
	response.Created(c, "تم إنشاء الشهادة بنجاح", gin.H{"certificate": cert, "notification_queued": queued})
}

// IssueBulk handles POST /workshops/:id/certificates.
func (h *Handler) IssueBulk(c *gin.Context) {
	workshopID, ok := parseUUIDParam(c, "id", "معرف الورشة غير صالح")
	if !ok {
		return
	}
	req, ok := bindIssueRequest(c)
	if !ok {
		return
	}

	sum, err := h.issuer.IssueBulk(c.Request.Context(), workshopID)
	if errors.Is(err, ErrNothingToIssue) {
		response.Unprocessable(c, "لا توجد تسجيلات مقبولة")
		return
	}
	if err != nil {
		h.logger.Error("bulk issue failed", zap.Error(err), zap.String("workshop_id", workshopID.String()))
		response.Internal(c, "فشل إنشاء الشهادات")
		return
	}

	queued := 0
	if req.Notify {
		queued = h.enqueueBulk(c.Request.Context(), workshopID, sum.Issued)
	}
	msg := fmt.Sprintf("تم إنشاء %d شهادة بنجاح (فشل %d)", sum.Succeeded, sum.Failed)
	response.OKMessage(c, msg, gin.H{"summary": sum, "notifications_queued": queued})
}

// SendOne handles POST /workshops/:id/certificates/:registrationId/send.
func (h *Handler) SendOne(c *gin.Context) {
	workshopID, ok := parseUUIDParam(c, "id", "معرف الورشة غير صالح")
	if !ok {
		return
	}
	registrationID, ok := parseUUIDParam(c, "registrationId", "معرف التسجيل غير صالح")
	if !ok {
		return
	}
	cert, err := h.issued.GetByRegistration(c.Request.Context(), workshopID, registrationID)
	if err != nil {
		h.logger.Error("load certificate failed", zap.Error(err), zap.String("registration_id", registrationID.String()))
		response.Internal(c, "فشل إرسال الرسالة")
		return
	}
	if cert == nil {
		response.NotFound(c, "الشهادة غير موجودة")
		return
	}
	if cert.StudentPhone == "" {
		response.Unprocessable(c, "لا يوجد رقم هاتف للطالب")
		return
	}
	if !h.enqueueOne(c.Request.Context(), *cert) {
		response.Internal(c, "فشل إرسال الرسالة")
		return
	}
	response.OKMessage(c, "تمت جدولة إرسال الشهادة عبر WhatsApp", gin.H{"registration_id": registrationID})
}

// SendBulk handles POST /workshops/:id/certificates/send.
func (h *Handler) SendBulk(c *gin.Context) {
	workshopID, ok := parseUUIDParam(c, "id", "معرف الورشة غير صالح")
	if !ok {
		return
	}
	list, err := h.issued.ListByWorkshop(c.Request.Context(), workshopID)
	if err != nil {
		h.logger.Error("list certificates failed", zap.Error(err), zap.String("workshop_id", workshopID.String()))
		response.Internal(c, "فشل إرسال الرسائل")
		return
	}
	if len(list) == 0 {
		response.Unprocessable(c, "لا توجد شهادات صادرة")
		return
	}
	queued := h.enqueueBulk(c.Request.Context(), workshopID, list)
	if queued == 0 {
		response.Internal(c, "فشل إرسال الرسائل")
		return
	}
	response.OKMessage(c, fmt.Sprintf("تمت جدولة إرسال %d شهادة عبر WhatsApp", queued), gin.H{"queued": queued})
}

func (h *Handler) recipient(cert models.IssuedWithRecipient) queue.Recipient {
	regID := cert.RegistrationID
	return queue.Recipient{
		RegistrationID: &regID,
		Name:           cert.StudentName,
		Phone:          cert.StudentPhone,
		Email:          cert.StudentEmail,
		Message: notify.CertificateMessage(cert.StudentName, cert.WorkshopTitle,
			VerificationURL(h.cfg.BaseURL, cert.VerificationCode)),
	}
}

func (h *Handler) enqueueOne(ctx context.Context, cert models.IssuedWithRecipient) bool {
	err := h.queue.EnqueueNotification(ctx, queue.NotificationPayload{
		WorkshopID: cert.WorkshopID,
		Kind:       string(models.NotificationCertificate),
		Recipient:  h.recipient(cert),
	})
	if err != nil {
		h.logger.Error("enqueue certificate notification failed", zap.Error(err), zap.String("registration_id", cert.RegistrationID.String()))
		return false
	}
	return true
}

// enqueueBulk queues one batched job for every certificate with a phone number and returns how many
// recipients it holds.
func (h *Handler) enqueueBulk(ctx context.Context, workshopID uuid.UUID, certs []models.IssuedWithRecipient) int {
	var recipients []queue.Recipient
	for _, cert := range certs {
		if cert.StudentPhone == "" {
			continue
		}
		recipients = append(recipients, h.recipient(cert))
	}
	if len(recipients) == 0 {
		return 0
	}
	err := h.queue.EnqueueNotificationBulk(ctx, queue.NotificationBulkPayload{
		WorkshopID: workshopID,
		Kind:       string(models.NotificationCertificate),
		Recipients: recipients,
	})
	if err != nil {
		h.logger.Error("enqueue bulk certificate notification failed", zap.Error(err), zap.String("workshop_id", workshopID.String()))
		return 0
	}
	return len(recipients)
}

func bindIssueRequest(c *gin.Context) (IssueRequest, bool) {
	var req IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.InvalidRequest(c, err)
		return req, false
	}
	return req, true
}

func parseUUIDParam(c *gin.Context, name, msg string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, msg)
		return uuid.Nil, false
	}
	return id, true
}
