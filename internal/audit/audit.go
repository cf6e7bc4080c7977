package audit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"migration-auditor/internal/adapter"
	"migration-auditor/internal/catalog"
	"migration-auditor/internal/config"
	"migration-auditor/internal/outcome"
	"migration-auditor/internal/probe"
	"migration-auditor/internal/report"
	"migration-auditor/internal/resolver"
	"migration-auditor/internal/validator"
)

// ErrMappingMissing 映射文件不存在且禁用了现场解析
var ErrMappingMissing = errors.New("function-endpoint mapping missing")

// Kinds 可运行的校验类型
var Kinds = []catalog.Kind{
	catalog.KindTable,
	catalog.KindFunction,
	catalog.KindEndpoint,
	catalog.KindReference,
	catalog.KindWebhook,
}

// ParseKind 接受单复数形式，如 tables / table
func ParseKind(s string) (catalog.Kind, error) {
	s = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s")
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("未知的校验类型 %q", s)
}

// Auditor 一次审计会话：目录、探测客户端和记录源在多次运行间共享
type Auditor struct {
	cfg    *config.Config
	store  *catalog.Store
	prober *probe.Client
	log    zerolog.Logger

	mu     sync.Mutex
	source adapter.RecordSource
}

// New 创建审计器；记录源在首次需要时打开
func New(cfg *config.Config, store *catalog.Store, log zerolog.Logger) *Auditor {
	return &Auditor{
		cfg:   cfg,
		store: store,
		prober: probe.New(probe.Config{
			Timeout:   cfg.Probe.Timeout,
			RateLimit: cfg.Probe.RateLimit,
			Burst:     cfg.Probe.Burst,
		}),
		log: log,
	}
}

// NewWithSource 使用给定记录源，测试用
func NewWithSource(cfg *config.Config, store *catalog.Store, source adapter.RecordSource, log zerolog.Logger) *Auditor {
	a := New(cfg, store, log)
	a.source = source
	return a
}

// Store 目录
func (a *Auditor) Store() *catalog.Store {
	return a.store
}

// Close 释放记录源
func (a *Auditor) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.source == nil {
		return nil
	}
	return a.source.Close()
}

func (a *Auditor) identity() validator.TestIdentity {
	return validator.TestIdentity{UserID: a.cfg.Identity.UserID, TeamID: a.cfg.Identity.TeamID}
}

func (a *Auditor) recordSource() (adapter.RecordSource, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.source != nil {
		return a.source, nil
	}
	source, err := OpenRecordSource(a.cfg.Records, a.prober)
	if err != nil {
		return nil, err
	}
	a.log.Debug().Str("source", a.cfg.Records.Source).Msg("record source opened")
	a.source = source
	return source, nil
}

// OpenRecordSource 按配置打开记录源
func OpenRecordSource(cfg config.RecordConfig, prober adapter.Prober) (adapter.RecordSource, error) {
	var (
		source adapter.RecordSource
		err    error
	)
	switch cfg.Source {
	case "", config.RecordSourceHTTP:
		source, err = adapter.NewHTTPSource(prober, adapter.HTTPConfig{ContentURL: cfg.ContentURL, Token: cfg.Token})
	case config.RecordSourceMySQL:
		source, err = adapter.NewMySQLSource(cfg.DSN)
	case config.RecordSourceSQLServer:
		source, err = adapter.NewSQLServerSource(cfg.DSN)
	default:
		return nil, fmt.Errorf("未知的记录源 %q", cfg.Source)
	}
	if err != nil {
		return nil, err
	}
	return source, nil
}

// Run 执行一次校验：按过滤条件取实体，worker 池探测，汇总报告。
// 只有无法开始运行（记录源、映射文件）时返回错误，单个实体的问题都体现在报告里。
func (a *Auditor) Run(ctx context.Context, kind catalog.Kind, filter catalog.Filter, onResult validator.ResultFunc) (*report.Report, error) {
	meta := report.Meta{
		RunID:         uuid.NewString(),
		Validator:     kind,
		Filter:        filter,
		StartedAt:     time.Now().UTC(),
		SlowThreshold: a.cfg.Probe.SlowThreshold,
	}
	log := a.log.With().Str("run_id", meta.RunID).Str("validator", string(kind)).Logger()

	outcomes, err := a.run(ctx, kind, filter, onResult)
	if err != nil {
		return nil, err
	}

	r := report.Aggregate(meta, outcomes)
	log.Info().
		Int("total", r.Summary.Total).
		Int("passed", r.Summary.Passed).
		Int("failed", r.Summary.Failed).
		Int("untestable", r.Summary.Untestable).
		Int64("duration_ms", r.DurationMS).
		Msg("run finished")
	return r, nil
}

func (a *Auditor) run(ctx context.Context, kind catalog.Kind, filter catalog.Filter, onResult validator.ResultFunc) ([]outcome.Outcome, error) {
	workers := a.cfg.Probe.Concurrency

	switch kind {
	case catalog.KindTable:
		source, err := a.recordSource()
		if err != nil {
			return nil, err
		}
		v := validator.NewTableValidator(a.store, source)
		return validator.Run(ctx, validator.Job[catalog.Table]{
			Kind:     kind,
			Items:    a.store.ListTables(filter),
			NameOf:   func(t catalog.Table) string { return t.Name },
			Validate: v.Validate,
		}, workers, onResult), nil

	case catalog.KindFunction:
		v, err := a.functionValidator()
		if err != nil {
			return nil, err
		}
		return validator.Run(ctx, validator.Job[catalog.Function]{
			Kind:     kind,
			Items:    a.store.ActiveFunctions(filter),
			NameOf:   func(f catalog.Function) string { return f.Name },
			Validate: v.Validate,
		}, workers, onResult), nil

	case catalog.KindEndpoint:
		v := validator.NewEndpointValidator(a.store, a.prober, a.identity(), a.cfg.Probe.SlowThreshold)
		return validator.Run(ctx, validator.Job[catalog.Endpoint]{
			Kind:     kind,
			Items:    a.store.FilterEndpoints(filter),
			NameOf:   catalog.Endpoint.DisplayName,
			Validate: v.Validate,
		}, workers, onResult), nil

	case catalog.KindReference:
		source, err := a.recordSource()
		if err != nil {
			return nil, err
		}
		v := validator.NewReferenceValidator(a.store, source, a.cfg.Reference.SampleSize, a.cfg.Reference.MaxOrphanSamples)
		return validator.Run(ctx, validator.Job[catalog.ReferenceEdge]{
			Kind:     kind,
			Items:    a.store.ListReferenceEdges(filter),
			NameOf:   catalog.ReferenceEdge.ID,
			Validate: v.Validate,
		}, workers, onResult), nil

	case catalog.KindWebhook:
		v := validator.NewWebhookValidator(a.store, a.prober)
		return validator.Run(ctx, validator.Job[catalog.Webhook]{
			Kind:     kind,
			Items:    a.store.ListWebhooks(filter),
			NameOf:   func(w catalog.Webhook) string { return w.Name },
			Validate: v.Validate,
		}, workers, onResult), nil
	}
	return nil, fmt.Errorf("未知的校验类型 %q", kind)
}

// functionValidator 优先使用映射文件；文件不存在时按配置现场解析
func (a *Auditor) functionValidator() (*validator.FunctionValidator, error) {
	var opts []validator.FunctionOption

	mapping, err := resolver.LoadMapping(a.cfg.Mapping)
	switch {
	case err == nil:
		if mapping.CatalogVersion != "" && mapping.CatalogVersion != a.store.Version() {
			a.log.Warn().
				Str("mapping_version", mapping.CatalogVersion).
				Str("catalog_version", a.store.Version()).
				Msg("mapping was built from a different catalog version")
		}
		opts = append(opts, validator.WithMapping(mapping))
	case os.IsNotExist(err):
		if !a.cfg.InlineResolve {
			return nil, fmt.Errorf("%w: %s (run `auditor resolve` first)", ErrMappingMissing, a.cfg.Mapping)
		}
		a.log.Warn().Str("mapping", a.cfg.Mapping).Msg("mapping file not found, resolving inline")
	default:
		return nil, err
	}

	if a.cfg.InlineResolve {
		opts = append(opts, validator.WithInlineResolver(resolver.New(a.store)))
	}
	return validator.NewFunctionValidator(a.store, a.prober, a.identity(), opts...), nil
}

// Resolve 为全部函数生成映射并原子写入配置的路径
func (a *Auditor) Resolve(filter catalog.Filter) (*resolver.Mapping, resolver.BuildStats, error) {
	r := resolver.New(a.store)
	mapping, stats := r.Build(a.store.ListFunctions(filter), a.store.Version())

	if err := resolver.SaveMapping(a.cfg.Mapping, mapping); err != nil {
		return nil, stats, fmt.Errorf("保存映射失败: %w", err)
	}
	a.log.Info().
		Int("functions", stats.Total).
		Int("resolved", stats.Resolved).
		Int("untestable", stats.Untestable).
		Int("archived", stats.Archived).
		Str("path", a.cfg.Mapping).
		Msg("mapping written")
	return mapping, stats, nil
}
