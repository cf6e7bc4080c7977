package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// dialect SQL 方言差异
type dialect struct {
	name        string
	sampleQuery func(table string) string
	existsQuery func(table, column string) string
}

// SQLSource 直连迁移后的数据库读记录（只读）
type SQLSource struct {
	db      *sql.DB
	dialect dialect
}

func newSQLSource(db *sql.DB, d dialect) *SQLSource {
	return &SQLSource{db: db, dialect: d}
}

func openSQL(driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("连接 %s 失败: %w", driver, err)
	}
	return db, nil
}

// SampleRows 读取最多 limit 行
func (s *SQLSource) SampleRows(ctx context.Context, table TableRef, limit int) (*Page, error) {
	if err := validIdent(table.Name); err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, s.dialect.sampleQuery(table.Name), limit)
	if err != nil {
		return nil, fmt.Errorf("采样 %s 失败: %w", table.Name, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	page := &Page{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		page.Rows = append(page.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	page.Latency = time.Since(start)
	return page, nil
}

// Exists 父表中是否存在 column = value
func (s *SQLSource) Exists(ctx context.Context, table TableRef, column string, value any) (bool, error) {
	if column == "" {
		column = "id"
	}
	if err := validIdent(table.Name); err != nil {
		return false, err
	}
	if err := validIdent(column); err != nil {
		return false, err
	}

	var one int
	err := s.db.QueryRowContext(ctx, s.dialect.existsQuery(table.Name, column), value).Scan(&one)
	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, fmt.Errorf("查询 %s.%s 失败: %w", table.Name, column, err)
	}
	return true, nil
}

// Close 关闭连接
func (s *SQLSource) Close() error {
	return s.db.Close()
}

// Dialect 方言名
func (s *SQLSource) Dialect() string {
	return s.dialect.name
}
