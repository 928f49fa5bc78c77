package notificationlogs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/warsha-platform/backend/internal/models"
	"github.com/warsha-platform/backend/pkg/response"
)

func TestRepository_Insert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	regID := uuid.New()
	l := &models.NotificationLog{
		WorkshopID:     uuid.New(),
		RegistrationID: &regID,
		Kind:           models.NotificationCertificate,
		Channel:        "whatsapp",
		Recipient:      "966501234567",
		Status:         models.NotificationStatusFailed,
		ErrorMessage:   "WhatsApp API error: Bad Gateway",
	}
	id, at := uuid.New(), time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO notification_logs").
		WithArgs(l.WorkshopID, l.RegistrationID, "certificate", "whatsapp", "966501234567", "failed", l.ErrorMessage).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(id, at))

	require.NoError(t, NewRepository(mock).Insert(context.Background(), l))
	require.Equal(t, id, l.ID)
	require.Equal(t, at, l.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListByWorkshop(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	workshopID := uuid.New()
	msg := "timeout"
	at := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	var noReg *uuid.UUID
	var noErr *string
	mock.ExpectQuery("FROM notification_logs").WithArgs(workshopID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "workshop_id", "registration_id", "kind", "channel", "recipient", "status", "error_message", "created_at"}).
			AddRow(uuid.New(), workshopID, noReg, "approval", "whatsapp", "966501234567", "sent", noErr, at).
			AddRow(uuid.New(), workshopID, noReg, "certificate", "email", "sara@example.com", "failed", &msg, at))

	list, err := NewRepository(mock).ListByWorkshop(context.Background(), workshopID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, models.NotificationApproval, list[0].Kind)
	require.Empty(t, list[0].ErrorMessage)
	require.Equal(t, "timeout", list[1].ErrorMessage)
}

type stubLister struct {
	logs []*models.NotificationLog
	err  error
}

func (s stubLister) ListByWorkshop(context.Context, uuid.UUID) ([]*models.NotificationLog, error) {
	return s.logs, s.err
}

func TestHandler_ListByWorkshop(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name   string
		path   string
		lister stubLister
		want   int
	}{
		{name: "empty list", path: "/workshops/" + uuid.NewString() + "/notifications", want: http.StatusOK},
		{name: "bad id", path: "/workshops/x/notifications", want: http.StatusBadRequest},
		{name: "db failure", path: "/workshops/" + uuid.NewString() + "/notifications", lister: stubLister{err: errors.New("down")}, want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/workshops/:id/notifications", NewHandler(tt.lister, nil).ListByWorkshop)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				var b response.Body
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
				require.Equal(t, []interface{}{}, b.Data)
			}
		})
	}
}
