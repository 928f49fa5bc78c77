package realtime

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/warsha-platform/backend/internal/auth"
	"github.com/warsha-platform/backend/internal/workshops"
	"github.com/warsha-platform/backend/pkg/response"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30 * time.Second
	PongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
	sendBuffer   = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// Subscriber subscribes to workshop progress.
type Subscriber interface {
	Subscribe(ctx context.Context, workshopID uuid.UUID, handler func(Progress)) (cancel func(), err error)
}

// TokenValidator validates an access token.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// ServeProgress handles GET /ws/workshops/:id/progress?token=. Browsers cannot set headers on the
// upgrade request, so the JWT comes from the query string.
func ServeProgress(bus Subscriber, tokens TokenValidator, ws workshops.Getter, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		workshopID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.BadRequest(c, "معرف الورشة غير صالح")
			return
		}
		token := c.Query("token")
		if token == "" {
			response.Unauthorized(c, "الرمز مطلوب")
			return
		}
		claims, err := tokens.Validate(token)
		if err != nil {
			response.Unauthorized(c, "الرمز غير صالح أو منتهي الصلاحية")
			return
		}
		w, err := ws.GetByID(c.Request.Context(), workshopID)
		if err != nil {
			logger.Error("load workshop failed", zap.Error(err), zap.String("workshop_id", workshopID.String()))
			response.Internal(c, "فشل تحميل الورشة")
			return
		}
		if w == nil {
			response.NotFound(c, "الورشة غير موجودة")
			return
		}
		if !workshops.CanManage(w, claims.UserID, claims.Role) {
			response.Forbidden(c, "غير مصرح لك بإدارة هذه الورشة")
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		send := make(chan Progress, sendBuffer)
		unsubscribe, err := bus.Subscribe(ctx, workshopID, func(p Progress) {
			select {
			case send <- p:
			default:
				logger.Debug("progress client too slow, dropping update", zap.String("workshop_id", workshopID.String()))
			}
		})
		if err != nil {
			logger.Error("progress subscribe failed", zap.Error(err), zap.String("workshop_id", workshopID.String()))
			response.Fail(c, http.StatusServiceUnavailable, "بث التقدم غير متاح حالياً", nil)
			return
		}
		defer unsubscribe()

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		closed := make(chan struct{})
		go readPump(conn, closed)
		writePump(conn, send, closed)
	}
}

// readPump drains client frames so pongs and close frames are processed.
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(PongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(conn *websocket.Conn, send <-chan Progress, closed <-chan struct{}) {
	ticker := time.NewTicker(PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case p := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(WSMessage{Event: "progress", Data: p}); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
