package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/and161185/accounts/internal/errs"
	"github.com/and161185/accounts/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func TestSessionRepo_CreateGetDelete(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSessionRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var noExp *time.Time

	const ins = `INSERT INTO sessions \(session_id, account_id, user_agent, expires_at, created_at\)`
	mock.ExpectExec(ins).WithArgs(id, "abc", "cli", noExp, now).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Create(ctx, &model.Session{ID: id, AccountID: "abc", UserAgent: "cli", CreatedAt: now}))

	mock.ExpectExec(ins).WithArgs(id, "gone", "cli", noExp, now).WillReturnError(&pgconn.PgError{Code: "23503"})
	require.ErrorIs(t, r.Create(ctx, &model.Session{ID: id, AccountID: "gone", UserAgent: "cli", CreatedAt: now}), errs.ErrNotFound)

	exp := now.Add(time.Hour)
	mock.ExpectQuery(`FROM sessions WHERE session_id=\$1`).WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"session_id", "account_id", "user_agent", "expires_at", "created_at"}).AddRow(id, "abc", "cli", &exp, now))
	s, err := r.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "abc", s.AccountID)
	require.True(t, exp.Equal(s.ExpiresAt))

	mock.ExpectQuery(`FROM sessions WHERE session_id=\$1`).WithArgs(id).WillReturnError(pgx.ErrNoRows)
	_, err = r.Get(ctx, id)
	require.ErrorIs(t, err, errs.ErrNotFound)

	mock.ExpectExec(`DELETE FROM sessions WHERE session_id=\$1`).WithArgs(id).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, r.Delete(ctx, id))
	mock.ExpectExec(`DELETE FROM sessions WHERE session_id=\$1`).WithArgs(id).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	require.ErrorIs(t, r.Delete(ctx, id), errs.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}
