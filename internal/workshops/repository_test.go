package workshops

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func TestRepository_OrganizerName(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := NewRepository(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT COALESCE").WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"full_name"}).AddRow("Dr. Huda"))
	name, err := repo.OrganizerName(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "Dr. Huda", name)

	mock.ExpectQuery("SELECT COALESCE").WithArgs(id).WillReturnError(pgx.ErrNoRows)
	name, err = repo.OrganizerName(context.Background(), id)
	require.NoError(t, err)
	require.Empty(t, name)
}

func TestRepository_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM workshops WHERE id").WithArgs(pgxmock.AnyArg()).WillReturnError(pgx.ErrNoRows)
	w, err := NewRepository(mock).GetByID(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Nil(t, w)
}
