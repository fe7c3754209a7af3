package repository

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kebiao/kebiao/internal/database"
	"github.com/kebiao/kebiao/pkg/engine"
	apperrors "github.com/kebiao/kebiao/pkg/errors"
	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/placement"
	"github.com/kebiao/kebiao/pkg/stats"
)

var (
	testRunID = uuid.MustParse("0b8e7c1a-2f4d-4e6b-8a9c-3d5e7f9a1b2c")
	testNow   = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
)

func newRunRepoMock(t *testing.T) (*RunRepository, sqlmock.Sqlmock) {
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	repo := NewRunRepository(database.Wrap(conn))
	repo.now = func() time.Time { return testNow }
	return repo, mock
}

func sampleResult() *engine.RunResult {
	slot := model.TimeSlot{Day: "Monday", Start: "08:00", End: "09:00", Index: 0}
	return &engine.RunResult{
		Assignments: model.Schedule{
			{SubjectID: "math", TeacherID: "t1", RoomID: "r1", Slot: slot},
			{SubjectID: "art", RoomID: "r2", Slot: slot},
		},
		Unplaced: []placement.Unplaced{},
		Metrics:  stats.Metrics{TotalSessions: 2, SchedulingRate: 100, QualityScore: 100, Fitness: 1000, MaxFitness: 1000},
		Slots:    []model.TimeSlot{slot},
		Metadata: engine.Metadata{
			RunID:       testRunID,
			Algorithm:   "greedy",
			GeneratedAt: testNow,
			Duration:    1500 * time.Millisecond,
			Seed:        42,
			SlotCount:   1,
		},
	}
}

var summaryColumns = []string{
	"id", "algorithm", "seed", "slot_count", "total_sessions", "total_conflicts",
	"unplaced_hours", "scheduling_rate", "quality_score", "fitness", "cancelled",
	"generated_at", "duration_ms", "created_at",
}

func TestRunRepository_Save(t *testing.T) {
	repo, mock := newRunRepoMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_runs")).
		WithArgs(testRunID, "greedy", int64(42), 1, 2, 0, 0, 100.0, 100.0, 1000, false,
			sqlmock.AnyArg(), testNow, int64(1500), testNow).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_assignments")).
		WithArgs(sqlmock.AnyArg(), testRunID, "math", sqlmock.AnyArg(), "r1", "Monday", "08:00", "09:00", 0, false).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_assignments")).
		WithArgs(sqlmock.AnyArg(), testRunID, "art", sqlmock.AnyArg(), "r2", "Monday", "08:00", "09:00", 0, false).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	rec, err := repo.Save(context.Background(), sampleResult())
	require.NoError(t, err)
	assert.Equal(t, testRunID, rec.ID)
	assert.Equal(t, testNow, rec.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepository_SaveRollsBack(t *testing.T) {
	repo, mock := newRunRepoMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_runs")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_assignments")).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := repo.Save(context.Background(), sampleResult())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeDatabaseError))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepository_Get(t *testing.T) {
	repo, mock := newRunRepoMock(t)
	payload, err := json.Marshal(sampleResult())
	require.NoError(t, err)

	rows := sqlmock.NewRows(append(summaryColumns, "result")).
		AddRow(testRunID.String(), "greedy", 42, 1, 2, 0, 0, 100.0, 100.0, 1000, false, testNow, 1500, testNow, payload)
	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_runs WHERE id = $1")).
		WithArgs(testRunID).
		WillReturnRows(rows)

	rec, err := repo.Get(context.Background(), testRunID)
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, rec.Duration)
	require.NotNil(t, rec.Result)
	assert.Len(t, rec.Result.Assignments, 2)
	assert.Equal(t, "greedy", rec.Result.Metadata.Algorithm)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepository_GetNotFound(t *testing.T) {
	repo, mock := newRunRepoMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_runs WHERE id = $1")).
		WithArgs(testRunID).
		WillReturnRows(sqlmock.NewRows(append(summaryColumns, "result")))

	_, err := repo.Get(context.Background(), testRunID)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}

func TestRunRepository_List(t *testing.T) {
	repo, mock := newRunRepoMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM timetable_runs WHERE algorithm = $1")).
		WithArgs("genetic").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at desc LIMIT $2 OFFSET $3")).
		WithArgs("genetic", 20, 0).
		WillReturnRows(sqlmock.NewRows(summaryColumns).
			AddRow(testRunID.String(), "genetic", 7, 20, 10, 1, 0, 100.0, 90.0, 950, false, testNow, 80, testNow))

	// 非白名单排序列退回默认
	filter := DefaultListFilter().WithAlgorithm("genetic")
	filter.OrderBy = "id; DROP TABLE timetable_runs"

	records, total, err := repo.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, records, 1)
	assert.Nil(t, records[0].Result)
	assert.Equal(t, 950, records[0].Fitness)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepository_Delete(t *testing.T) {
	repo, mock := newRunRepoMock(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_runs WHERE id = $1")).
		WithArgs(testRunID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), testRunID))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_runs WHERE id = $1")).
		WithArgs(testRunID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Delete(context.Background(), testRunID)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepository_Assignments(t *testing.T) {
	repo, mock := newRunRepoMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_assignments")).
		WithArgs(testRunID).
		WillReturnRows(sqlmock.NewRows([]string{"subject_id", "teacher_id", "room_id", "day", "start_time", "end_time", "slot_index", "is_lab"}).
			AddRow("math", "t1", "r1", "Monday", "08:00", "09:00", 0, false).
			AddRow("art", nil, "r2", "Monday", "08:00", "09:00", 0, false))

	schedule, err := repo.Assignments(context.Background(), testRunID)
	require.NoError(t, err)
	require.Len(t, schedule, 2)
	assert.Equal(t, "t1", schedule[0].TeacherID)
	assert.Empty(t, schedule[1].TeacherID)
}

func TestListFilter_Normalize(t *testing.T) {
	f := ListFilter{Limit: 1000, Offset: -3, OrderBy: "fitness", OrderDir: "ASC"}.normalize()
	assert.Equal(t, 20, f.Limit)
	assert.Equal(t, 0, f.Offset)
	assert.Equal(t, "fitness", f.OrderBy)
	assert.Equal(t, "desc", f.OrderDir)
}
