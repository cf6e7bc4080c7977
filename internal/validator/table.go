package validator

import (
	"context"

	"migration-auditor/internal/adapter"
	"migration-auditor/internal/catalog"
	"migration-auditor/internal/outcome"
)

// TableValidator 表可访问性校验：能读出一页即通过，空表也算通过
type TableValidator struct {
	store  *catalog.Store
	source adapter.RecordSource
}

// NewTableValidator 创建表校验器
func NewTableValidator(store *catalog.Store, source adapter.RecordSource) *TableValidator {
	return &TableValidator{store: store, source: source}
}

// Validate 校验单张表
func (v *TableValidator) Validate(ctx context.Context, table catalog.Table) outcome.Outcome {
	opts := []outcome.Option{outcome.WithGroup(table.Category)}

	id := table.ID
	if id == 0 {
		resolved, err := v.store.ResolveTableID(table.Name)
		if err != nil {
			return outcome.FromError(catalog.KindTable, table.Name,
				&catalog.ConfigurationError{Entity: "table " + table.Name, Err: err}, opts...)
		}
		id = resolved
	}

	page, err := v.source.SampleRows(ctx, adapter.TableRef{ID: id, Name: table.Name}, 1)
	if err != nil {
		return outcome.FromError(catalog.KindTable, table.Name, err, opts...)
	}

	count := page.RecordCount()
	opts = append(opts,
		outcome.WithLatency(page.Latency),
		outcome.WithMeta("table_id", id),
		outcome.WithMeta("record_count", count),
		outcome.WithMeta("record_count_exact", page.TotalKnown),
		outcome.WithMeta("has_data", count > 0),
	)
	if page.StatusCode != 0 {
		opts = append(opts, outcome.WithMeta("status_code", page.StatusCode))
	}
	return outcome.Passed(catalog.KindTable, table.Name, opts...)
}
