package graph

import "migration-auditor/internal/outcome"

// EdgeType 边类型
type EdgeType string

const (
	EdgeTypeFK         EdgeType = "foreign_key"          // 非空外键
	EdgeTypeNullableFK EdgeType = "nullable_foreign_key" // 可空外键
)

// Edge 子表 -> 父表的引用边
type Edge struct {
	ID            string   `json:"id"`
	Type          EdgeType `json:"type"`
	From          string   `json:"from"` // 子表
	To            string   `json:"to"`   // 父表
	Field         string   `json:"field"`
	ParentField   string   `json:"parent_field"`
	CascadeDelete bool     `json:"cascade_delete,omitempty"`
	Domain        string   `json:"domain,omitempty"`

	// 以下字段由校验结果回填
	Status       outcome.Status `json:"status,omitempty"`
	OrphanCount  int            `json:"orphan_count"`
	RowsChecked  int            `json:"rows_checked"`
	SampleOrphan []string       `json:"sample_orphan_ids,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// Checked 是否已有校验结果
func (e *Edge) Checked() bool {
	return e.Status != ""
}
