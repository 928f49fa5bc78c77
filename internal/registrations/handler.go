package registrations

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warsha-platform/backend/internal/models"
	"github.com/warsha-platform/backend/internal/workshops"
	"github.com/warsha-platform/backend/pkg/response"
)

// RegisterRequest is the body for POST /workshops/:id/register.
type RegisterRequest struct {
	StudentName  string            `json:"student_name" binding:"required"`
	StudentEmail string            `json:"student_email" binding:"required,email"`
	StudentPhone string            `json:"student_phone"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`
}

// BulkDecisionRequest is the body for the bulk approve and reject endpoints.
type BulkDecisionRequest struct {
	RegistrationIDs []uuid.UUID `json:"registration_ids" binding:"required,min=1"`
}

// Decider registers students and applies organizer decisions.
type Decider interface {
	Register(ctx context.Context, w *models.Workshop, reg *models.Registration) (bool, error)
	Decide(ctx context.Context, workshopID uuid.UUID, ids []uuid.UUID, status models.RegistrationStatus) (*DecisionResult, error)
}

// Handler handles registration HTTP endpoints.
type Handler struct {
	svc       Decider
	workshops workshops.Getter
	logger    *zap.Logger
}

// NewHandler creates a registrations handler.
func NewHandler(svc Decider, ws workshops.Getter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, workshops: ws, logger: logger}
}

// Register handles POST /workshops/:id/register.
func (h *Handler) Register(c *gin.Context) {
	workshopID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "معرف الورشة غير صالح")
		return
	}
	w, err := h.workshops.GetByID(c.Request.Context(), workshopID)
	if err != nil {
		h.logger.Error("load workshop failed", zap.Error(err), zap.String("workshop_id", workshopID.String()))
		response.Internal(c, "فشل التسجيل")
		return
	}
	if w == nil {
		response.NotFound(c, "الورشة غير موجودة")
		return
	}

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.InvalidRequest(c, err)
		return
	}
	var custom json.RawMessage
	if len(req.CustomFields) > 0 {
		custom, err = json.Marshal(req.CustomFields)
		if err != nil {
			response.BadRequest(c, "الحقول المخصصة غير صالحة")
			return
		}
	}
	reg := &models.Registration{
		StudentName:  req.StudentName,
		StudentEmail: req.StudentEmail,
		StudentPhone: req.StudentPhone,
		CustomFields: custom,
	}

	queued, err := h.svc.Register(c.Request.Context(), w, reg)
	switch {
	case errors.Is(err, ErrClosed):
		response.Unprocessable(c, "التسجيل في هذه الورشة غير متاح")
		return
	case errors.Is(err, ErrFull):
		response.Conflict(c, "اكتمل عدد المقاعد في هذه الورشة")
		return
	case err != nil:
		h.logger.Error("create registration failed", zap.Error(err), zap.String("workshop_id", workshopID.String()))
		response.Internal(c, "فشل التسجيل")
		return
	}
	response.Created(c, "تم التسجيل بنجاح", gin.H{"registration": reg, "notification_queued": queued})
}

// Approve handles POST /workshops/:id/registrations/:registrationId/approve.
func (h *Handler) Approve(c *gin.Context) {
	h.decideOne(c, models.RegistrationApproved)
}

// Reject handles POST /workshops/:id/registrations/:registrationId/reject.
func (h *Handler) Reject(c *gin.Context) {
	h.decideOne(c, models.RegistrationRejected)
}

// BulkApprove handles POST /workshops/:id/registrations/bulk-approve.
func (h *Handler) BulkApprove(c *gin.Context) {
	h.decideBulk(c, models.RegistrationApproved)
}

// BulkReject handles POST /workshops/:id/registrations/bulk-reject.
func (h *Handler) BulkReject(c *gin.Context) {
	h.decideBulk(c, models.RegistrationRejected)
}

func (h *Handler) decideOne(c *gin.Context, status models.RegistrationStatus) {
	workshopID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "معرف الورشة غير صالح")
		return
	}
	regID, err := uuid.Parse(c.Param("registrationId"))
	if err != nil {
		response.BadRequest(c, "معرف التسجيل غير صالح")
		return
	}
	res, ok := h.decide(c, workshopID, []uuid.UUID{regID}, status)
	if !ok {
		return
	}
	response.OKMessage(c, singleMessage(status, res.NotificationQueued), res)
}

func (h *Handler) decideBulk(c *gin.Context, status models.RegistrationStatus) {
	workshopID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "معرف الورشة غير صالح")
		return
	}
	var req BulkDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.InvalidRequest(c, err)
		return
	}
	res, ok := h.decide(c, workshopID, req.RegistrationIDs, status)
	if !ok {
		return
	}
	response.OKMessage(c, bulkMessage(status, res.NotificationQueued), res)
}

func (h *Handler) decide(c *gin.Context, workshopID uuid.UUID, ids []uuid.UUID, status models.RegistrationStatus) (*DecisionResult, bool) {
	res, err := h.svc.Decide(c.Request.Context(), workshopID, ids, status)
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "التسجيل غير موجود")
		return nil, false
	case errors.Is(err, ErrNoChange):
		response.Conflict(c, "القرار مطبق مسبقاً أو صدرت شهادة لهذا التسجيل")
		return nil, false
	case err != nil:
		h.logger.Error("registration decision failed",
			zap.Error(err),
			zap.String("workshop_id", workshopID.String()),
			zap.String("status", string(status)),
		)
		response.Internal(c, "فشل تحديث حالة التسجيل")
		return nil, false
	}
	return res, true
}

func singleMessage(status models.RegistrationStatus, queued bool) string {
	switch {
	case status == models.RegistrationApproved && queued:
		return "تم قبول الطالب وإرسال إشعار WhatsApp"
	case status == models.RegistrationApproved:
		return "تم قبول الطالب ولكن فشل إرسال إشعار WhatsApp"
	case queued:
		return "تم رفض الطالب وإرسال إشعار WhatsApp"
	default:
		return "تم رفض الطالب ولكن فشل إرسال إشعار WhatsApp"
	}
}

func bulkMessage(status models.RegistrationStatus, queued bool) string {
	switch {
	case status == models.RegistrationApproved && queued:
		return "تم قبول الطلاب المحددين وإرسال إشعارات WhatsApp"
	case status == models.RegistrationApproved:
		return "تم قبول الطلاب المحددين ولكن فشل إرسال الإشعارات"
	case queued:
		return "تم رفض الطلاب المحددين وإرسال إشعارات WhatsApp"
	default:
		return "تم رفض الطلاب المحددين ولكن فشل إرسال الإشعارات"
	}
}
