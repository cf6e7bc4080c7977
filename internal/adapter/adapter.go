package adapter

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

// RecordSource 记录访问接口：表校验和外键校验都通过它读数据
type RecordSource interface {
	// SampleRows 读取最多 limit 行
	SampleRows(ctx context.Context, table TableRef, limit int) (*Page, error)

	// Exists 父表中是否存在 field = value 的记录
	Exists(ctx context.Context, table TableRef, field string, value any) (bool, error)

	// Close 关闭连接
	Close() error
}

// TableRef 目录中的表
type TableRef struct {
	ID   int
	Name string
}

// Row 一行记录
type Row map[string]any

// ID 记录 id，没有时返回空串
func (r Row) ID() string {
	v, ok := r["id"]
	if !ok || v == nil {
		return ""
	}
	return FormatValue(v)
}

// FormatValue 记录值转字符串；JSON 数字解码为 float64，整数值按整数输出
func FormatValue(v any) string {
	switch x := v.(type) {
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(v)
	}
}

// Page 一次采样结果
type Page struct {
	Rows []Row
	// Total 远端报告的总行数，TotalKnown 为 false 时无意义
	Total      int64
	TotalKnown bool
	StatusCode int
	Latency    time.Duration
}

// RecordCount 总行数，未知时退化为采样行数
func (p *Page) RecordCount() int64 {
	if p.TotalKnown {
		return p.Total
	}
	return int64(len(p.Rows))
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validIdent 表名/列名只允许字母数字下划线，SQL 拼接前必须校验
func validIdent(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("非法标识符 %q", name)
	}
	return nil
}
