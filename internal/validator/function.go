package validator

import (
	"context"
	"net/http"

	"migration-auditor/internal/catalog"
	"migration-auditor/internal/outcome"
	"migration-auditor/internal/probe"
	"migration-auditor/internal/resolver"
)

// 端点来源
const (
	SourceHint    = "hint"
	SourceMapping = "mapping"
	SourceInline  = "inline"
)

// FunctionValidator 通过可间接调用函数的端点校验函数
type FunctionValidator struct {
	store    *catalog.Store
	prober   Prober
	identity TestIdentity
	mapping  *resolver.Mapping
	inline   *resolver.Resolver
}

// FunctionOption 函数校验器选项
type FunctionOption func(*FunctionValidator)

// WithMapping 使用预先生成的映射文件
func WithMapping(m *resolver.Mapping) FunctionOption {
	return func(v *FunctionValidator) { v.mapping = m }
}

// WithInlineResolver 映射中没有条目时现场解析
func WithInlineResolver(r *resolver.Resolver) FunctionOption {
	return func(v *FunctionValidator) { v.inline = r }
}

// NewFunctionValidator 创建函数校验器
func NewFunctionValidator(store *catalog.Store, prober Prober, identity TestIdentity, opts ...FunctionOption) *FunctionValidator {
	v := &FunctionValidator{store: store, prober: prober, identity: identity}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

type functionTarget struct {
	candidate resolver.Candidate
	source    string
	total     int
}

// target 优先级：人工提示 > 映射文件 > 现场解析
func (v *FunctionValidator) target(fn catalog.Function) (functionTarget, bool) {
	if hint, ok := v.store.Hint(fn.ID); ok {
		return functionTarget{
			candidate: resolver.Candidate{
				Path:           hint.Path,
				Method:         hint.Method,
				APIGroup:       hint.APIGroup,
				RequiresTestID: hint.RequiresTestID,
				Strategy:       SourceHint,
				Score:          1,
			},
			source: SourceHint,
			total:  1,
		}, true
	}

	if entry, ok := v.mapping.Lookup(fn.ID); ok {
		if len(entry.Candidates) == 0 {
			return functionTarget{}, false
		}
		return functionTarget{candidate: entry.Candidates[0], source: SourceMapping, total: len(entry.Candidates)}, true
	}

	if v.inline != nil {
		if cands := v.inline.Resolve(fn); len(cands) > 0 {
			return functionTarget{candidate: cands[0], source: SourceInline, total: len(cands)}, true
		}
	}
	return functionTarget{}, false
}

// Validate 只探测第一个候选端点，成功条件为 HTTP 200
func (v *FunctionValidator) Validate(ctx context.Context, fn catalog.Function) outcome.Outcome {
	opts := []outcome.Option{
		outcome.WithGroup(groupOf(fn)),
		outcome.WithMeta("function_id", fn.ID),
	}
	if fn.Domain != "" {
		opts = append(opts, outcome.WithMeta("domain", fn.Domain))
	}

	t, ok := v.target(fn)
	if !ok {
		return outcome.Untestable(catalog.KindFunction, fn.Name, "no test endpoint found", opts...)
	}

	c := t.candidate
	method := c.Method
	if method == "" {
		method = http.MethodPost
	}
	opts = append(opts,
		outcome.WithMeta("endpoint", c.Path),
		outcome.WithMeta("method", method),
		outcome.WithMeta("api_group", c.APIGroup),
		outcome.WithMeta("source", t.source),
		outcome.WithMeta("strategy", c.Strategy),
		outcome.WithMeta("candidates", t.total),
	)

	rawURL, err := resolveURL(v.store, c.APIGroup, c.Path, v.identity)
	if err != nil {
		return outcome.FromError(catalog.KindFunction, fn.Name, err, opts...)
	}

	resp, err := v.prober.Do(ctx, testRequest(method, rawURL, c.RequiresTestID, v.identity))
	if err != nil {
		return outcome.FromError(catalog.KindFunction, fn.Name, err, opts...)
	}

	opts = append(opts,
		outcome.WithLatency(resp.Latency),
		outcome.WithMeta("status_code", resp.StatusCode),
	)
	if resp.StatusCode != http.StatusOK {
		return outcome.FromError(catalog.KindFunction, fn.Name, probe.NewRemoteError(resp), opts...)
	}
	return outcome.Passed(catalog.KindFunction, fn.Name, opts...)
}

func groupOf(fn catalog.Function) string {
	if ns := fn.Namespace(); ns != "" {
		return ns
	}
	return "Uncategorized"
}
