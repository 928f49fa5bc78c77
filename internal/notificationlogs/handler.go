package notificationlogs

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warsha-platform/backend/internal/models"
	"github.com/warsha-platform/backend/pkg/response"
)

// Lister lists a workshop's notification logs.
type Lister interface {
	ListByWorkshop(ctx context.Context, workshopID uuid.UUID) ([]*models.NotificationLog, error)
}

// Handler handles notification log HTTP endpoints.
type Handler struct {
	repo   Lister
	logger *zap.Logger
}

// NewHandler creates a notification logs handler.
func NewHandler(repo Lister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// ListByWorkshop handles GET /workshops/:id/notifications.
// Call after RequireWorkshopOwner so access is already validated.
func (h *Handler) ListByWorkshop(c *gin.Context) {
	workshopID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "معرف الورشة غير صالح")
		return
	}
	logs, err := h.repo.ListByWorkshop(c.Request.Context(), workshopID)
	if err != nil {
		h.logger.Error("list notification logs failed", zap.Error(err), zap.String("workshop_id", workshopID.String()))
		response.Internal(c, "فشل تحميل سجل الإشعارات")
		return
	}
	if logs == nil {
		logs = []*models.NotificationLog{}
	}
	response.OK(c, logs)
}
