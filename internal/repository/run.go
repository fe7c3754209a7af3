package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kebiao/kebiao/pkg/engine"
	apperrors "github.com/kebiao/kebiao/pkg/errors"
	"github.com/kebiao/kebiao/pkg/model"
)

// RunRecord 排课运行记录
type RunRecord struct {
	ID             uuid.UUID         `json:"id"`
	Algorithm      string            `json:"algorithm"`
	Seed           int64             `json:"seed"`
	SlotCount      int               `json:"slot_count"`
	TotalSessions  int               `json:"total_sessions"`
	TotalConflicts int               `json:"total_conflicts"`
	UnplacedHours  int               `json:"unplaced_hours"`
	SchedulingRate float64           `json:"scheduling_rate"`
	QualityScore   float64           `json:"quality_score"`
	Fitness        int               `json:"fitness"`
	Cancelled      bool              `json:"cancelled"`
	GeneratedAt    time.Time         `json:"generated_at"`
	Duration       time.Duration     `json:"duration"`
	CreatedAt      time.Time         `json:"created_at"`
	Result         *engine.RunResult `json:"result,omitempty"` // 列表查询不加载
}

// NewRunRecord 从运行结果构造记录
func NewRunRecord(result *engine.RunResult) *RunRecord {
	m := result.Metrics
	return &RunRecord{
		ID:             result.Metadata.RunID,
		Algorithm:      result.Metadata.Algorithm,
		Seed:           result.Metadata.Seed,
		SlotCount:      result.Metadata.SlotCount,
		TotalSessions:  m.TotalSessions,
		TotalConflicts: m.TotalConflicts,
		UnplacedHours:  m.UnplacedHours,
		SchedulingRate: m.SchedulingRate,
		QualityScore:   m.QualityScore,
		Fitness:        m.Fitness,
		Cancelled:      result.Metadata.Cancelled,
		GeneratedAt:    result.Metadata.GeneratedAt,
		Duration:       result.Metadata.Duration,
		Result:         result,
	}
}

// RunRepositoryInterface 运行记录仓储接口
type RunRepositoryInterface interface {
	Save(ctx context.Context, result *engine.RunResult) (*RunRecord, error)
	Get(ctx context.Context, id uuid.UUID) (*RunRecord, error)
	List(ctx context.Context, filter ListFilter) ([]*RunRecord, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Assignments(ctx context.Context, id uuid.UUID) (model.Schedule, error)
}

// RunRepository 运行记录仓储实现
type RunRepository struct {
	db  TxDB
	now func() time.Time
}

// NewRunRepository 创建运行记录仓储
func NewRunRepository(db TxDB) *RunRepository {
	return &RunRepository{db: db, now: time.Now}
}

const runColumns = `id, algorithm, seed, slot_count, total_sessions, total_conflicts,
			unplaced_hours, scheduling_rate, quality_score, fitness, cancelled,
			generated_at, duration_ms, created_at`

// Save 在一个事务内保存运行摘要、完整结果和课时分配
func (r *RunRepository) Save(ctx context.Context, result *engine.RunResult) (*RunRecord, error) {
	if result == nil {
		return nil, apperrors.InvalidInput("result", "不能为空")
	}
	rec := NewRunRecord(result)
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.CreatedAt = r.now()

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("序列化运行结果失败: %w", err)
	}

	err = r.db.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO timetable_runs (
			id, algorithm, seed, slot_count, total_sessions, total_conflicts,
			unplaced_hours, scheduling_rate, quality_score, fitness, cancelled,
			result, generated_at, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			rec.ID, rec.Algorithm, rec.Seed, rec.SlotCount, rec.TotalSessions, rec.TotalConflicts,
			rec.UnplacedHours, rec.SchedulingRate, rec.QualityScore, rec.Fitness, rec.Cancelled,
			payload, rec.GeneratedAt, rec.Duration.Milliseconds(), rec.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("创建运行记录失败: %w", err)
		}

		for _, a := range result.Assignments {
			_, err := tx.ExecContext(ctx, `
		INSERT INTO timetable_assignments (
			id, run_id, subject_id, teacher_id, room_id, day, start_time, end_time, slot_index, is_lab
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				uuid.New(), rec.ID, a.SubjectID, nullString(a.TeacherID), a.RoomID,
				a.Slot.Day, a.Slot.Start, a.Slot.End, a.Slot.Index, a.IsLab,
			)
			if err != nil {
				return fmt.Errorf("创建课时分配失败: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "保存排课结果失败")
	}
	return rec, nil
}

// Get 获取运行记录（含完整结果）
func (r *RunRepository) Get(ctx context.Context, id uuid.UUID) (*RunRecord, error) {
	query := `SELECT ` + runColumns + `, result FROM timetable_runs WHERE id = $1`

	rec := &RunRecord{}
	var payload []byte
	err := r.scan(r.db.QueryRowContext(ctx, query, id), rec, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("排课记录", id.String())
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "查询排课记录失败")
	}

	if len(payload) > 0 {
		rec.Result = &engine.RunResult{}
		if err := json.Unmarshal(payload, rec.Result); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "解析排课结果失败")
		}
	}
	return rec, nil
}

// List 列出运行摘要
func (r *RunRepository) List(ctx context.Context, filter ListFilter) ([]*RunRecord, int, error) {
	filter = filter.normalize()

	var conditions []string
	var args []interface{}
	argNum := 1

	if filter.Algorithm != "" {
		conditions = append(conditions, fmt.Sprintf("algorithm = $%d", argNum))
		args = append(args, filter.Algorithm)
		argNum++
	}
	if filter.Cancelled != nil {
		conditions = append(conditions, fmt.Sprintf("cancelled = $%d", argNum))
		args = append(args, *filter.Cancelled)
		argNum++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM timetable_runs %s", whereClause)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.CodeDatabaseError, "统计排课记录失败")
	}

	query := fmt.Sprintf(`SELECT %s FROM timetable_runs %s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		runColumns, whereClause, filter.OrderBy, filter.OrderDir, argNum, argNum+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.CodeDatabaseError, "查询排课记录失败")
	}
	defer rows.Close()

	records := make([]*RunRecord, 0, filter.Limit)
	for rows.Next() {
		rec := &RunRecord{}
		if err := r.scan(rows, rec, nil); err != nil {
			return nil, 0, apperrors.Wrap(err, apperrors.CodeDatabaseError, "扫描排课记录失败")
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.CodeDatabaseError, "查询排课记录失败")
	}
	return records, total, nil
}

// Delete 删除运行记录，课时分配级联删除
func (r *RunRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM timetable_runs WHERE id = $1", id)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "删除排课记录失败")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.NotFound("排课记录", id.String())
	}
	return nil
}

// Assignments 按时段顺序读取某次运行的课时分配
func (r *RunRepository) Assignments(ctx context.Context, id uuid.UUID) (model.Schedule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT subject_id, teacher_id, room_id, day, start_time, end_time, slot_index, is_lab
		FROM timetable_assignments
		WHERE run_id = $1
		ORDER BY slot_index, room_id`, id)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "查询课时分配失败")
	}
	defer rows.Close()

	schedule := model.Schedule{}
	for rows.Next() {
		var a model.Assignment
		var teacher sql.NullString
		if err := rows.Scan(&a.SubjectID, &teacher, &a.RoomID, &a.Slot.Day,
			&a.Slot.Start, &a.Slot.End, &a.Slot.Index, &a.IsLab); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "扫描课时分配失败")
		}
		a.TeacherID = teacher.String
		schedule = append(schedule, a)
	}
	return schedule, rows.Err()
}

// scan 扫描一行摘要，payload 非空时额外读取 result 列
func (r *RunRepository) scan(row Scanner, rec *RunRecord, payload *[]byte) error {
	var durationMs int64
	dest := []interface{}{
		&rec.ID, &rec.Algorithm, &rec.Seed, &rec.SlotCount, &rec.TotalSessions, &rec.TotalConflicts,
		&rec.UnplacedHours, &rec.SchedulingRate, &rec.QualityScore, &rec.Fitness, &rec.Cancelled,
		&rec.GeneratedAt, &durationMs, &rec.CreatedAt,
	}
	if payload != nil {
		dest = append(dest, payload)
	}
	if err := row.Scan(dest...); err != nil {
		return err
	}
	rec.Duration = time.Duration(durationMs) * time.Millisecond
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
