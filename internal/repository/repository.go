// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
)

// ListFilter 列表查询过滤器
type ListFilter struct {
	Algorithm string `json:"algorithm,omitempty"`
	Cancelled *bool  `json:"cancelled,omitempty"`
	Offset    int    `json:"offset"`
	Limit     int    `json:"limit"`
	OrderBy   string `json:"order_by,omitempty"`
	OrderDir  string `json:"order_dir,omitempty"` // asc/desc
}

// 允许排序的列
var orderColumns = map[string]bool{
	"created_at":      true,
	"generated_at":    true,
	"quality_score":   true,
	"scheduling_rate": true,
	"fitness":         true,
}

// DefaultListFilter 返回默认过滤器
func DefaultListFilter() ListFilter {
	return ListFilter{
		Offset:   0,
		Limit:    20,
		OrderBy:  "created_at",
		OrderDir: "desc",
	}
}

// WithLimit 设置限制
func (f ListFilter) WithLimit(limit int) ListFilter {
	f.Limit = limit
	return f
}

// WithOffset 设置偏移
func (f ListFilter) WithOffset(offset int) ListFilter {
	f.Offset = offset
	return f
}

// WithAlgorithm 按算法过滤
func (f ListFilter) WithAlgorithm(algorithm string) ListFilter {
	f.Algorithm = algorithm
	return f
}

// normalize 修正分页与排序参数，排序列只接受白名单
func (f ListFilter) normalize() ListFilter {
	def := DefaultListFilter()
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = def.Limit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if !orderColumns[f.OrderBy] {
		f.OrderBy = def.OrderBy
	}
	if f.OrderDir != "asc" {
		f.OrderDir = "desc"
	}
	return f
}

// DB 数据库接口
type DB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// TxDB 支持事务的数据库
type TxDB interface {
	DB
	Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// Scanner 行扫描接口，*sql.Row 与 *sql.Rows 均满足
type Scanner interface {
	Scan(dest ...interface{}) error
}
