package outcome

import (
	"errors"
	"time"

	"migration-auditor/internal/catalog"
	"migration-auditor/internal/probe"
)

// Status 结果状态，封闭集合
type Status string

const (
	StatusPassed     Status = "passed"
	StatusFailed     Status = "failed"
	StatusUntestable Status = "untestable"
	StatusSkipped    Status = "skipped"
)

// Statuses 全部状态，聚合时按此穷举
var Statuses = []Status{StatusPassed, StatusFailed, StatusUntestable, StatusSkipped}

// UntestableError 没有可探测的测试面，不算失败
type UntestableError struct {
	Reason string
}

func (e *UntestableError) Error() string {
	return "untestable: " + e.Reason
}

// Outcome 单个实体的探测结果，生成后不再修改
type Outcome struct {
	Kind      catalog.Kind   `json:"kind"`
	Name      string         `json:"name"`
	Group     string         `json:"group,omitempty"`
	Status    Status         `json:"status"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
	LatencyMS *int64         `json:"latency_ms,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Option 构造选项
type Option func(*Outcome)

// WithGroup 报告中的分组（分类、业务域、父表或预期行为）
func WithGroup(group string) Option {
	return func(o *Outcome) { o.Group = group }
}

// WithLatency 记录探测耗时
func WithLatency(d time.Duration) Option {
	return func(o *Outcome) {
		ms := d.Milliseconds()
		o.LatencyMS = &ms
	}
}

// WithMeta 附加元数据
func WithMeta(key string, value any) Option {
	return func(o *Outcome) { o.Metadata[key] = value }
}

// WithMetadata 合并元数据
func WithMetadata(meta map[string]any) Option {
	return func(o *Outcome) {
		for k, v := range meta {
			o.Metadata[k] = v
		}
	}
}

func build(kind catalog.Kind, name string, status Status, reason string, opts []Option) Outcome {
	o := Outcome{
		Kind:      kind,
		Name:      name,
		Status:    status,
		Success:   status == StatusPassed || status == StatusSkipped,
		Error:     reason,
		Metadata:  map[string]any{},
		Timestamp: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.Metadata["status"] = string(status)
	return o
}

// Passed 通过
func Passed(kind catalog.Kind, name string, opts ...Option) Outcome {
	return build(kind, name, StatusPassed, "", opts)
}

// Failed 失败，reason 为人可读原因
func Failed(kind catalog.Kind, name, reason string, opts ...Option) Outcome {
	return build(kind, name, StatusFailed, reason, opts)
}

// Untestable 无法探测
func Untestable(kind catalog.Kind, name, reason string, opts ...Option) Outcome {
	return build(kind, name, StatusUntestable, reason, opts)
}

// Skipped 跳过（例如需要真实用户会话）
func Skipped(kind catalog.Kind, name, reason string, opts ...Option) Outcome {
	opts = append(opts, WithMeta("skipped", true), WithMeta("reason", reason))
	return build(kind, name, StatusSkipped, "", opts)
}

// FromError 按错误类型归类
func FromError(kind catalog.Kind, name string, err error, opts ...Option) Outcome {
	var (
		untestable *UntestableError
		transport  *probe.TransportError
		remote     *probe.RemoteError
		config     *catalog.ConfigurationError
	)

	switch {
	case errors.As(err, &untestable):
		return Untestable(kind, name, untestable.Reason, opts...)
	case errors.As(err, &transport):
		opts = append(opts, WithMeta("error_type", "transport"), WithMeta("timeout", transport.Timeout))
	case errors.As(err, &remote):
		opts = append(opts, WithMeta("error_type", "remote"), WithMeta("status_code", remote.StatusCode))
	case errors.As(err, &config):
		opts = append(opts, WithMeta("error_type", "configuration"))
	}
	return Failed(kind, name, err.Error(), opts...)
}
