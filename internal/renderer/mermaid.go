package renderer

import (
	"fmt"
	"strings"

	"migration-auditor/internal/graph"
)

// MermaidRenderer Mermaid ER 图渲染器
type MermaidRenderer struct{}

// NewMermaidRenderer 创建渲染器
func NewMermaidRenderer() *MermaidRenderer {
	return &MermaidRenderer{}
}

// Render 渲染外键引用图，边标签带孤儿数
func (m *MermaidRenderer) Render(g *graph.ReferenceGraph) string {
	var sb strings.Builder

	sb.WriteString("erDiagram\n")

	for _, e := range g.SortedEdges() {
		// 虚线表示可空外键
		relType := "||--o{"
		if e.Type == graph.EdgeTypeNullableFK {
			relType = "|o..o{"
		}

		label := e.Field
		switch {
		case e.OrphanCount > 0:
			label += fmt.Sprintf(" (%d orphans)", e.OrphanCount)
		case e.Checked():
			label += " ok"
		}

		sb.WriteString(fmt.Sprintf("    %s %s %s : \"%s\"\n",
			mermaidID(e.To), relType, mermaidID(e.From), label))
	}

	return sb.String()
}

// mermaidID Mermaid 实体名只保留字母数字下划线和连字符
func mermaidID(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		}
		return '_'
	}, name)
}
