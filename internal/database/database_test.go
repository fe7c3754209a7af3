package database

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return Wrap(conn), mock
}

func TestTransaction_Commit(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM timetable_runs").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := db.Transaction(context.Background(), func(tx *sql.Tx) error {
		_, err := tx.Exec("DELETE FROM timetable_runs WHERE id = $1", "x")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransaction_RollbackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := db.Transaction(context.Background(), func(tx *sql.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_AppliesPendingFiles(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS " + migrationsTable).WillReturnResult(sqlmock.NewResult(0, 0))

	// 第一个文件已应用
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("migrations/0001_timetable_runs.sql").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("migrations/0002_timetable_assignments.sql").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS timetable_assignments").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO " + migrationsTable).
		WithArgs("migrations/0002_timetable_assignments.sql").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, db.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_IgnorableError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS " + migrationsTable).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("migrations/0001_timetable_runs.sql").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS timetable_runs").WillReturnError(&pq.Error{Code: "42P07"})
	mock.ExpectRollback()
	mock.ExpectExec("INSERT INTO " + migrationsTable).
		WithArgs("migrations/0001_timetable_runs.sql").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("migrations/0002_timetable_assignments.sql").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	require.NoError(t, db.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsIgnorable(t *testing.T) {
	assert.True(t, isIgnorable(&pq.Error{Code: "42P07"}))
	assert.False(t, isIgnorable(&pq.Error{Code: "42601"}))
	assert.False(t, isIgnorable(errors.New("plain")))
}

func TestTruncateQuery(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	assert.Len(t, truncateQuery(string(long)), 203)
	assert.Equal(t, "SELECT 1", truncateQuery("SELECT 1"))
}
