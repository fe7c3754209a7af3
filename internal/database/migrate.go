package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"github.com/lib/pq"

	"github.com/kebiao/kebiao/pkg/logger"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationsTable = "schema_migrations_kebiao"

// 可忽略的 PostgreSQL 错误码：对象已存在
var ignorableCodes = map[pq.ErrorCode]bool{
	"42P07": true, // duplicate_table
	"42710": true, // duplicate_object
	"42701": true, // duplicate_column
}

// Migrate 按文件名顺序执行未应用的迁移，每个文件一个事务
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+migrationsTable+` (
		filename   TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		return fmt.Errorf("创建迁移记录表失败: %w", err)
	}

	names, err := fs.Glob(migrationFiles, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("读取迁移文件列表失败: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		var applied bool
		if err := db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM `+migrationsTable+` WHERE filename = $1)`, name,
		).Scan(&applied); err != nil {
			return fmt.Errorf("检查迁移 %s 失败: %w", name, err)
		}
		if applied {
			continue
		}

		body, err := migrationFiles.ReadFile(name)
		if err != nil {
			return fmt.Errorf("读取迁移 %s 失败: %w", name, err)
		}

		err = db.Transaction(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, string(body)); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO `+migrationsTable+` (filename) VALUES ($1)`, name)
			return err
		})
		if err != nil {
			if !isIgnorable(err) {
				return fmt.Errorf("执行迁移 %s 失败: %w", name, err)
			}
			// 事务已回滚，单独记录
			if _, err := db.ExecContext(ctx, `INSERT INTO `+migrationsTable+` (filename) VALUES ($1)`, name); err != nil {
				return fmt.Errorf("记录迁移 %s 失败: %w", name, err)
			}
		}
		logger.Info().Str("migration", name).Msg("数据库迁移完成")
	}
	return nil
}

func isIgnorable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return ignorableCodes[pqErr.Code]
	}
	return false
}
