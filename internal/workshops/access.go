package workshops

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/warsha-platform/backend/internal/middleware"
	"github.com/warsha-platform/backend/internal/models"
	"github.com/warsha-platform/backend/pkg/response"
)

// ContextWorkshop is the context key for the workshop loaded by RequireWorkshopOwner.
const ContextWorkshop = "workshop"

// Getter loads a workshop; (nil, nil) means not found.
type Getter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Workshop, error)
}

// CanManage reports whether the user may act on the workshop as its organizer.
func CanManage(w *models.Workshop, userID uuid.UUID, role string) bool {
	return role == middleware.RoleAdmin || w.OrganizerID == userID
}

// RequireWorkshopOwner allows only the workshop's organizer or an admin. Call after JWT.
func RequireWorkshopOwner(repo Getter) gin.HandlerFunc {
	return func(c *gin.Context) {
		workshopID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.BadRequest(c, "معرف الورشة غير صالح")
			c.Abort()
			return
		}
		w, err := repo.GetByID(c.Request.Context(), workshopID)
		if err != nil {
			response.Internal(c, "فشل تحميل الورشة")
			c.Abort()
			return
		}
		if w == nil {
			response.NotFound(c, "الورشة غير موجودة")
			c.Abort()
			return
		}
		userID, _ := c.Get(middleware.ContextUserID)
		uid, _ := userID.(uuid.UUID)
		if !CanManage(w, uid, c.GetString(middleware.ContextUserRole)) {
			response.Forbidden(c, "غير مصرح لك بإدارة هذه الورشة")
			c.Abort()
			return
		}
		c.Set(ContextWorkshop, w)
		c.Next()
	}
}
