package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/and161185/accounts/internal/errs"
	"github.com/and161185/accounts/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

var changeColNames = []string{"change_id", "account_id", "username", "email", "pwd_hash", "verified", "delete_acct", "step", "created_at"}

var (
	noStr  *string
	noBool *bool
	noStep *int16
)

const (
	selForUpdate = `FROM account_changes WHERE change_id=\$1 AND account_id=\$2 FOR UPDATE`
	delChange    = `DELETE FROM account_changes WHERE change_id=\$1`
	lockAccount  = `SELECT username, email, pwd_hash, verified, change_stamp FROM accounts WHERE account_id=\$1 FOR UPDATE`
	updAccount   = `UPDATE accounts SET username=\$2, email=\$3, pwd_hash=\$4, verified=\$5, change_stamp=\$6 WHERE account_id=\$1`
	dropSessions = `DELETE FROM sessions WHERE account_id=\$1`
)

func TestChangeRepo_Create(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewChangeRepo(db)
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := &model.PendingChange{ID: "123456", AccountID: "abc", Mutation: model.Mutation{Email: model.Ptr("n@x.pt"), Step: model.Ptr[int16](1)}, CreatedAt: now}

	const ins = `INSERT INTO account_changes \(change_id, account_id, username, email, pwd_hash, verified, delete_acct, step, created_at\)`
	args := []any{c.ID, c.AccountID, c.Username, c.Email, c.Password, c.Verified, false, c.Step, now}

	mock.ExpectExec(ins).WithArgs(args...).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Create(ctx, c))

	mock.ExpectExec(ins).WithArgs(args...).WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "account_changes_pkey"})
	require.ErrorIs(t, r.Create(ctx, c), errs.ErrIDCollision)

	mock.ExpectExec(ins).WithArgs(args...).WillReturnError(&pgconn.PgError{Code: "23503"})
	require.ErrorIs(t, r.Create(ctx, c), errs.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeRepo_GetScopedByOwner(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewChangeRepo(db)
	ctx := context.Background()
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM account_changes WHERE change_id=\$1 AND account_id=\$2`).
		WithArgs("123456", "abc").
		WillReturnRows(pgxmock.NewRows(changeColNames).AddRow("123456", "abc", noStr, model.Ptr("n@x.pt"), noStr, noBool, false, model.Ptr[int16](2), now))
	c, err := r.Get(ctx, "abc", "123456")
	require.NoError(t, err)
	require.Nil(t, c.Username)
	require.Equal(t, "n@x.pt", *c.Email)
	require.Equal(t, int16(2), *c.Step)

	mock.ExpectQuery(`FROM account_changes WHERE change_id=\$1 AND account_id=\$2`).
		WithArgs("123456", "other").
		WillReturnError(pgx.ErrNoRows)
	_, err = r.Get(ctx, "other", "123456")
	require.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeRepo_DeleteAndDeleteByAccount(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewChangeRepo(db)
	ctx := context.Background()

	mock.ExpectExec(delChange).WithArgs("1").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, r.Delete(ctx, "1"))

	mock.ExpectExec(delChange).WithArgs("1").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	require.ErrorIs(t, r.Delete(ctx, "1"), errs.ErrNotFound)

	mock.ExpectExec(`DELETE FROM account_changes WHERE account_id=\$1`).WithArgs("abc").WillReturnResult(pgxmock.NewResult("DELETE", 3))
	n, err := r.DeleteByAccount(ctx, "abc")
	require.NoError(t, err)
	require.EqualValues(t, 3, n)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeRepo_Apply_MergesSetFieldsAndRestamps(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewChangeRepo(db)
	ctx := context.Background()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	prev := created.Add(time.Hour)
	stamp := prev.Add(time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery(selForUpdate).WithArgs("123456", "abc").
		WillReturnRows(pgxmock.NewRows(changeColNames).AddRow("123456", "abc", noStr, noStr, noStr, model.Ptr(true), false, noStep, created))
	mock.ExpectExec(delChange).WithArgs("123456").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectQuery(lockAccount).WithArgs("abc").
		WillReturnRows(pgxmock.NewRows([]string{"username", "email", "pwd_hash", "verified", "change_stamp"}).AddRow("afonso", "a@x.pt", "h", false, prev))
	mock.ExpectExec(updAccount).WithArgs("abc", "afonso", "a@x.pt", "h", true, stamp).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(dropSessions).WithArgs("abc").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCommit()

	c, err := r.Apply(ctx, "abc", "123456", stamp)
	require.NoError(t, err)
	require.True(t, *c.Verified)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeRepo_Apply_StampNeverMovesBackwards(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewChangeRepo(db)
	prev := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(selForUpdate).WithArgs("1", "abc").
		WillReturnRows(pgxmock.NewRows(changeColNames).AddRow("1", "abc", model.Ptr("neo"), noStr, noStr, noBool, false, noStep, prev))
	mock.ExpectExec(delChange).WithArgs("1").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectQuery(lockAccount).WithArgs("abc").
		WillReturnRows(pgxmock.NewRows([]string{"username", "email", "pwd_hash", "verified", "change_stamp"}).AddRow("old", "a@x.pt", "h", true, prev))
	mock.ExpectExec(updAccount).WithArgs("abc", "neo", "a@x.pt", "h", true, prev.Add(time.Microsecond)).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(dropSessions).WithArgs("abc").WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectCommit()

	_, err := r.Apply(context.Background(), "abc", "1", prev)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeRepo_Apply_DeleteRemovesAccount(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewChangeRepo(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(selForUpdate).WithArgs("1", "abc").
		WillReturnRows(pgxmock.NewRows(changeColNames).AddRow("1", "abc", noStr, noStr, noStr, noBool, true, noStep, now))
	mock.ExpectExec(delChange).WithArgs("1").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM accounts WHERE account_id=\$1`).WithArgs("abc").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	c, err := r.Apply(context.Background(), "abc", "1", now)
	require.NoError(t, err)
	require.True(t, c.Delete)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeRepo_Apply_SecondConfirmSeesNoRow(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewChangeRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(selForUpdate).WithArgs("1", "abc").WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := r.Apply(context.Background(), "abc", "1", time.Now())
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeRepo_Apply_WrongOwnerIsNotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewChangeRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(selForUpdate).WithArgs("1", "intruder").WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := r.Apply(context.Background(), "intruder", "1", time.Now())
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeRepo_Apply_RollsBackOnUpdateConflict(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewChangeRepo(db)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(selForUpdate).WithArgs("1", "abc").
		WillReturnRows(pgxmock.NewRows(changeColNames).AddRow("1", "abc", model.Ptr("taken"), noStr, noStr, noBool, false, noStep, now))
	mock.ExpectExec(delChange).WithArgs("1").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectQuery(lockAccount).WithArgs("abc").
		WillReturnRows(pgxmock.NewRows([]string{"username", "email", "pwd_hash", "verified", "change_stamp"}).AddRow("old", "a@x.pt", "h", true, now))
	mock.ExpectExec(updAccount).WithArgs("abc", "taken", "a@x.pt", "h", true, now.Add(time.Second)).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "accounts_username_key"})
	mock.ExpectRollback()

	_, err := r.Apply(context.Background(), "abc", "1", now.Add(time.Second))
	require.ErrorIs(t, err, errs.ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeRepo_Apply_CommitFailure(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewChangeRepo(db)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	boom := errors.New("commit lost")

	mock.ExpectBegin()
	mock.ExpectQuery(selForUpdate).WithArgs("1", "abc").
		WillReturnRows(pgxmock.NewRows(changeColNames).AddRow("1", "abc", noStr, noStr, noStr, noBool, false, noStep, now))
	mock.ExpectExec(delChange).WithArgs("1").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectQuery(lockAccount).WithArgs("abc").
		WillReturnRows(pgxmock.NewRows([]string{"username", "email", "pwd_hash", "verified", "change_stamp"}).AddRow("u", "a@x.pt", "h", true, now))
	mock.ExpectExec(updAccount).WithArgs("abc", "u", "a@x.pt", "h", true, now.Add(time.Second)).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(dropSessions).WithArgs("abc").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCommit().WillReturnError(boom)

	c, err := r.Apply(context.Background(), "abc", "1", now.Add(time.Second))
	require.ErrorIs(t, err, boom)
	require.Nil(t, c)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeRepo_DeleteCreatedBefore(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewChangeRepo(db)
	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`DELETE FROM account_changes WHERE created_at < \$1 RETURNING account_id`).
		WithArgs(cutoff).
		WillReturnRows(pgxmock.NewRows([]string{"account_id"}).AddRow("abc").AddRow("def"))
	ids, err := r.DeleteCreatedBefore(context.Background(), cutoff)
	require.NoError(t, err)
	require.Equal(t, []string{"abc", "def"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMergeAndNextStamp(t *testing.T) {
	cur := model.Account{Username: "u", Email: "e", PwdHash: "h", Verified: false}
	got := merge(cur, model.Mutation{Email: model.Ptr("e2"), Verified: model.Ptr(true)})
	require.Equal(t, "u", got.Username)
	require.Equal(t, "e2", got.Email)
	require.Equal(t, "h", got.PwdHash)
	require.True(t, got.Verified)

	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, t0.Add(time.Second), nextStamp(t0, t0.Add(time.Second)))
	require.Equal(t, t0.Add(time.Microsecond), nextStamp(t0, t0))
	require.Equal(t, t0.Add(time.Microsecond), nextStamp(t0, t0.Add(-time.Hour)))
}
