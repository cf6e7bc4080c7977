package graph

import (
	"encoding/json"
	"sort"
	"sync"

	"migration-auditor/internal/catalog"
	"migration-auditor/internal/outcome"
)

// ReferenceGraph 表引用图
type ReferenceGraph struct {
	mu    sync.RWMutex
	Nodes map[string]*Node `json:"nodes"`
	Edges map[string]*Edge `json:"edges"`
}

// NewReferenceGraph 创建空图
func NewReferenceGraph() *ReferenceGraph {
	return &ReferenceGraph{
		Nodes: make(map[string]*Node),
		Edges: make(map[string]*Edge),
	}
}

// Build 由目录中的引用边构图，表节点带上目录中的 id 和分类
func Build(store *catalog.Store, edges []catalog.ReferenceEdge) *ReferenceGraph {
	g := NewReferenceGraph()

	categories := make(map[string]string)
	for _, t := range store.ListTables(catalog.Filter{}) {
		categories[t.Name] = t.Category
	}

	node := func(name string) *Node {
		if n, ok := g.Nodes[name]; ok {
			return n
		}
		n := &Node{ID: name, Type: NodeTypeTable, Name: name, Category: categories[name]}
		if id, err := store.ResolveTableID(name); err == nil {
			n.TableID = id
			n.Resolved = true
		}
		g.Nodes[name] = n
		return n
	}

	for _, e := range edges {
		node(e.Table).Parents++
		node(e.ReferencesTable).Children++

		typ := EdgeTypeFK
		if e.Nullable {
			typ = EdgeTypeNullableFK
		}
		g.AddEdge(&Edge{
			ID:            e.ID(),
			Type:          typ,
			From:          e.Table,
			To:            e.ReferencesTable,
			Field:         e.Field,
			ParentField:   e.ParentField(),
			CascadeDelete: e.CascadeDelete,
			Domain:        e.Domain,
		})
	}
	return g
}

// AddNode 添加节点
func (g *ReferenceGraph) AddNode(node *Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Nodes[node.ID] = node
}

// AddEdge 添加边
func (g *ReferenceGraph) AddEdge(edge *Edge) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Edges[edge.ID] = edge
}

// GetEdge 获取边
func (g *ReferenceGraph) GetEdge(id string) *Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.Edges[id]
}

// Annotate 用外键校验结果回填边；不是引用结果或找不到边的忽略
func (g *ReferenceGraph) Annotate(o outcome.Outcome) bool {
	if o.Kind != catalog.KindReference {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.Edges[o.Name]
	if !ok {
		return false
	}
	e.Status = o.Status
	e.Error = o.Error
	e.OrphanCount = intMeta(o.Metadata["orphan_count"])
	e.RowsChecked = intMeta(o.Metadata["rows_checked"])
	e.SampleOrphan = stringsMeta(o.Metadata["sample_orphan_ids"])
	return true
}

// AnnotateAll 批量回填
func (g *ReferenceGraph) AnnotateAll(outcomes []outcome.Outcome) int {
	n := 0
	for _, o := range outcomes {
		if g.Annotate(o) {
			n++
		}
	}
	return n
}

// ParentGroup 同一父表的全部引用边
type ParentGroup struct {
	Parent  string  `json:"parent"`
	Edges   []*Edge `json:"edges"`
	Orphans int     `json:"orphans"`
	// Systemic 该父表的每条已校验边都有孤儿
	Systemic bool `json:"systemic"`
}

// ByParent 按父表分组，孤儿多的在前
func (g *ReferenceGraph) ByParent() []ParentGroup {
	g.mu.RLock()
	defer g.mu.RUnlock()

	groups := make(map[string]*ParentGroup)
	for _, e := range g.Edges {
		pg, ok := groups[e.To]
		if !ok {
			pg = &ParentGroup{Parent: e.To}
			groups[e.To] = pg
		}
		pg.Edges = append(pg.Edges, e)
		pg.Orphans += e.OrphanCount
	}

	out := make([]ParentGroup, 0, len(groups))
	for _, pg := range groups {
		sort.Slice(pg.Edges, func(i, j int) bool { return pg.Edges[i].ID < pg.Edges[j].ID })

		checked, withOrphans := 0, 0
		for _, e := range pg.Edges {
			if e.Checked() {
				checked++
				if e.OrphanCount > 0 {
					withOrphans++
				}
			}
		}
		pg.Systemic = checked > 1 && withOrphans == checked
		out = append(out, *pg)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Orphans != out[j].Orphans {
			return out[i].Orphans > out[j].Orphans
		}
		return out[i].Parent < out[j].Parent
	})
	return out
}

// SortedEdges 按 id 排序的边
func (g *ReferenceGraph) SortedEdges() []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*Edge, 0, len(g.Edges))
	for _, e := range g.Edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ToJSON 导出为JSON
func (g *ReferenceGraph) ToJSON() ([]byte, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return json.MarshalIndent(g, "", "  ")
}

// 元数据在进程内是 int，经过 JSON 往返后是 float64
func intMeta(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func stringsMeta(v any) []string {
	switch ids := v.(type) {
	case []string:
		return ids
	case []any:
		out := make([]string, 0, len(ids))
		for _, id := range ids {
			if s, ok := id.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
