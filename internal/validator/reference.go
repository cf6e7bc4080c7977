package validator

import (
	"context"
	"fmt"
	"time"

	"migration-auditor/internal/adapter"
	"migration-auditor/internal/catalog"
	"migration-auditor/internal/outcome"
)

const (
	// DefaultSampleSize 每条边采样的子表行数；结果是概率性的，不是穷举
	DefaultSampleSize = 100
	// DefaultMaxOrphanSamples 报告中保留的孤儿行 id 数
	DefaultMaxOrphanSamples = 10
)

// ReferenceValidator 外键孤儿检测
type ReferenceValidator struct {
	store      *catalog.Store
	source     adapter.RecordSource
	sampleSize int
	maxSamples int
}

// NewReferenceValidator 创建外键校验器，非正数参数使用默认值
func NewReferenceValidator(store *catalog.Store, source adapter.RecordSource, sampleSize, maxSamples int) *ReferenceValidator {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	if maxSamples <= 0 {
		maxSamples = DefaultMaxOrphanSamples
	}
	return &ReferenceValidator{store: store, source: source, sampleSize: sampleSize, maxSamples: maxSamples}
}

// orphanScan 单条边一次运行内的状态，父记录查询结果按值缓存
type orphanScan struct {
	checked     map[string]bool
	valid       map[string]bool
	orphans     int
	nullFKs     int
	sampleIDs   []string
	lookups     int
	rowsChecked int
}

// Validate 采样子表，逐行检查外键对应的父记录是否存在
func (v *ReferenceValidator) Validate(ctx context.Context, edge catalog.ReferenceEdge) outcome.Outcome {
	name := edge.ID()
	opts := []outcome.Option{
		outcome.WithGroup(edge.ReferencesTable),
		outcome.WithMeta("child_table", edge.Table),
		outcome.WithMeta("field", edge.Field),
		outcome.WithMeta("parent_table", edge.ReferencesTable),
		outcome.WithMeta("parent_field", edge.ParentField()),
		outcome.WithMeta("nullable", edge.Nullable),
		outcome.WithMeta("cascade_delete", edge.CascadeDelete),
	}

	child, parent, err := v.resolveTables(edge)
	if err != nil {
		return outcome.FromError(catalog.KindReference, name, err, opts...)
	}

	start := time.Now()
	page, err := v.source.SampleRows(ctx, child, v.sampleSize)
	if err != nil {
		return outcome.FromError(catalog.KindReference, name, err, opts...)
	}

	rows := page.Rows
	if len(rows) > v.sampleSize {
		rows = rows[:v.sampleSize]
	}

	scan := &orphanScan{checked: map[string]bool{}, valid: map[string]bool{}}
	for _, row := range rows {
		if err := v.checkRow(ctx, edge, parent, row, scan); err != nil {
			opts = append(opts, scanMeta(scan)...)
			return outcome.FromError(catalog.KindReference, name,
				fmt.Errorf("parent lookup in %s: %w", parent.Name, err), opts...)
		}
	}

	opts = append(opts, scanMeta(scan)...)
	opts = append(opts, outcome.WithLatency(time.Since(start)))
	if scan.orphans > 0 {
		reason := fmt.Sprintf("%d orphaned %s rows (of %d sampled)", scan.orphans, edge.Table, scan.rowsChecked)
		return outcome.Failed(catalog.KindReference, name, reason, opts...)
	}
	return outcome.Passed(catalog.KindReference, name, opts...)
}

func (v *ReferenceValidator) resolveTables(edge catalog.ReferenceEdge) (adapter.TableRef, adapter.TableRef, error) {
	childID, err := v.store.ResolveTableID(edge.Table)
	if err != nil {
		return adapter.TableRef{}, adapter.TableRef{}, &catalog.ConfigurationError{Entity: "reference " + edge.ID(), Err: err}
	}
	parentID, err := v.store.ResolveTableID(edge.ReferencesTable)
	if err != nil {
		return adapter.TableRef{}, adapter.TableRef{}, &catalog.ConfigurationError{Entity: "reference " + edge.ID(), Err: err}
	}
	return adapter.TableRef{ID: childID, Name: edge.Table}, adapter.TableRef{ID: parentID, Name: edge.ReferencesTable}, nil
}

func (v *ReferenceValidator) checkRow(ctx context.Context, edge catalog.ReferenceEdge, parent adapter.TableRef, row adapter.Row, scan *orphanScan) error {
	scan.rowsChecked++

	value, ok := row[edge.Field]
	if !ok || value == nil {
		scan.nullFKs++
		if !edge.Nullable {
			v.recordOrphan(row, scan)
		}
		return nil
	}

	key := adapter.FormatValue(value)
	if !scan.checked[key] {
		scan.lookups++
		exists, err := v.source.Exists(ctx, parent, edge.ParentField(), value)
		if err != nil {
			return err
		}
		scan.checked[key] = true
		scan.valid[key] = exists
	}

	if !scan.valid[key] {
		v.recordOrphan(row, scan)
	}
	return nil
}

func (v *ReferenceValidator) recordOrphan(row adapter.Row, scan *orphanScan) {
	scan.orphans++
	if len(scan.sampleIDs) < v.maxSamples {
		scan.sampleIDs = append(scan.sampleIDs, row.ID())
	}
}

func scanMeta(scan *orphanScan) []outcome.Option {
	ids := scan.sampleIDs
	if ids == nil {
		ids = []string{}
	}
	return []outcome.Option{
		outcome.WithMeta("orphan_count", scan.orphans),
		outcome.WithMeta("sample_orphan_ids", ids),
		outcome.WithMeta("rows_checked", scan.rowsChecked),
		outcome.WithMeta("null_fk_count", scan.nullFKs),
		outcome.WithMeta("parent_lookups", scan.lookups),
	}
}
