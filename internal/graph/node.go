package graph

// NodeType 节点类型
type NodeType string

const (
	NodeTypeTable NodeType = "table"
)

// Node 表节点
type Node struct {
	ID       string   `json:"id"`
	Type     NodeType `json:"type"`
	Name     string   `json:"name"`
	TableID  int      `json:"table_id,omitempty"`
	Category string   `json:"category,omitempty"`
	// Resolved 目录中能否解析到表 id
	Resolved bool `json:"resolved"`
	// Children 引用本表的边数，Parents 本表引用出去的边数
	Children int `json:"children"`
	Parents  int `json:"parents"`
}
