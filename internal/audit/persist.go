package audit

import (
	"fmt"
	"strings"

	"migration-auditor/internal/catalog"
	"migration-auditor/internal/fileutil"
	"migration-auditor/internal/graph"
	"migration-auditor/internal/renderer"
	"migration-auditor/internal/report"
)

// Saved 一次运行写出的文件
type Saved struct {
	JSON     string `json:"json"`
	Markdown string `json:"markdown,omitempty"`
}

// Persist 写入 JSON 报告；开启 markdown 时在旁边写同名 .md
func (a *Auditor) Persist(r *report.Report) (Saved, error) {
	path, err := r.Save(a.cfg.ReportsDir)
	if err != nil {
		return Saved{}, err
	}
	saved := Saved{JSON: path}

	if !a.cfg.Markdown {
		return saved, nil
	}

	md := a.Markdown(r)
	mdPath := strings.TrimSuffix(path, ".json") + ".md"
	if err := fileutil.WriteFileAtomic(mdPath, []byte(md), 0o644); err != nil {
		return saved, fmt.Errorf("写入 Markdown 报告失败: %w", err)
	}
	saved.Markdown = mdPath
	return saved, nil
}

// Markdown 渲染报告；外键运行附带按父表分组和 Mermaid 图
func (a *Auditor) Markdown(r *report.Report) string {
	if r.Validator != catalog.KindReference {
		return renderer.NewMarkdownRenderer().Render(r, nil)
	}

	g := a.ReferenceGraph(r.Filter)
	g.AnnotateAll(r.Outcomes)

	var sb strings.Builder
	sb.WriteString(renderer.NewMarkdownRenderer().Render(r, g))
	sb.WriteString("## Reference diagram\n\n```mermaid\n")
	sb.WriteString(renderer.NewMermaidRenderer().Render(g))
	sb.WriteString("```\n")
	return sb.String()
}

// ReferenceGraph 过滤后的外键引用图
func (a *Auditor) ReferenceGraph(filter catalog.Filter) *graph.ReferenceGraph {
	return graph.Build(a.store, a.store.ListReferenceEdges(filter))
}
