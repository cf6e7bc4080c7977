package renderer

import (
	"fmt"
	"strings"

	"migration-auditor/internal/graph"
	"migration-auditor/internal/outcome"
	"migration-auditor/internal/report"
)

// MarkdownRenderer Markdown 报告渲染器
type MarkdownRenderer struct{}

// NewMarkdownRenderer 创建渲染器
func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{}
}

// Render 渲染运行报告；g 非空时附带外键引用分组
func (m *MarkdownRenderer) Render(r *report.Report, g *graph.ReferenceGraph) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s validation report\n\n", r.Validator))
	sb.WriteString(fmt.Sprintf("- Run: `%s`\n", r.RunID))
	sb.WriteString(fmt.Sprintf("- Started: %s\n", r.StartedAt.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("- Duration: %dms\n", r.DurationMS))
	if !r.Filter.IsZero() {
		sb.WriteString(fmt.Sprintf("- Filter: %s\n", describeFilter(r.Filter)))
	}
	sb.WriteString("\n")

	m.renderSummary(&sb, r)
	m.renderBreakdown(&sb, r)
	m.renderFailures(&sb, r)
	m.renderUntestable(&sb, r)

	if g != nil && len(g.Edges) > 0 {
		m.renderReferences(&sb, g)
	}
	return sb.String()
}

func (m *MarkdownRenderer) renderSummary(sb *strings.Builder, r *report.Report) {
	s := r.Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Total | Passed | Failed | Untestable | Skipped | Pass rate | Testable pass rate |\n")
	sb.WriteString("|-------|--------|--------|------------|---------|-----------|--------------------|\n")
	sb.WriteString(fmt.Sprintf("| %d | %d | %d | %d | %d | %.1f%% | %.1f%% |\n\n",
		s.Total, s.Passed, s.Failed, s.Untestable, s.Skipped, s.PassRate, s.TestablePassRate))

	if r.Latency.Samples > 0 {
		sb.WriteString(fmt.Sprintf("Latency over %d successful probes: p50 %dms, p95 %dms, p99 %dms, max %dms\n\n",
			r.Latency.Samples, r.Latency.P50, r.Latency.P95, r.Latency.P99, r.Latency.Max))
	}
}

func (m *MarkdownRenderer) renderBreakdown(sb *strings.Builder, r *report.Report) {
	if len(r.Breakdown) == 0 {
		return
	}
	sb.WriteString("## Breakdown\n\n")
	sb.WriteString("| Group | Total | Passed | Failed | Untestable | Skipped | Pass rate |\n")
	sb.WriteString("|-------|-------|--------|--------|------------|---------|-----------|\n")
	for _, b := range r.Breakdown {
		sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %d | %d | %.1f%% |\n",
			b.Group, b.Total, b.Passed, b.Failed, b.Untestable, b.Skipped, b.PassRate))
	}
	sb.WriteString("\n")
}

func (m *MarkdownRenderer) renderFailures(sb *strings.Builder, r *report.Report) {
	failures := r.Failures()
	if len(failures) == 0 {
		return
	}
	sb.WriteString("## Failures\n\n")
	for _, o := range failures {
		sb.WriteString(fmt.Sprintf("- %s **%s**", Glyph(o.Status), o.Name))
		if o.Group != "" {
			sb.WriteString(fmt.Sprintf(" (%s)", o.Group))
		}
		sb.WriteString(fmt.Sprintf(": %s\n", escapePipes(o.Error)))
	}
	sb.WriteString("\n")
}

func (m *MarkdownRenderer) renderUntestable(sb *strings.Builder, r *report.Report) {
	var names []string
	for _, o := range r.Outcomes {
		if o.Status == outcome.StatusUntestable {
			names = append(names, fmt.Sprintf("- %s %s: %s\n", Glyph(o.Status), o.Name, o.Error))
		}
	}
	if len(names) == 0 {
		return
	}
	sb.WriteString(fmt.Sprintf("## Untestable (%d)\n\n", len(names)))
	for _, n := range names {
		sb.WriteString(n)
	}
	sb.WriteString("\n")
}

// renderReferences 按父表分组列出外键边
func (m *MarkdownRenderer) renderReferences(sb *strings.Builder, g *graph.ReferenceGraph) {
	sb.WriteString("## References by parent table\n\n")

	for _, pg := range g.ByParent() {
		header := fmt.Sprintf("### %s", pg.Parent)
		if pg.Systemic {
			header += " ⚠️ every checked child has orphans"
		}
		sb.WriteString(header + "\n\n")

		for _, e := range pg.Edges {
			status := "unchecked"
			if e.Checked() {
				status = string(e.Status)
			}
			sb.WriteString(fmt.Sprintf("- `%s.%s` → `%s.%s` %s, orphans: %d/%d",
				e.From, e.Field, e.To, e.ParentField, status, e.OrphanCount, e.RowsChecked))
			if len(e.SampleOrphan) > 0 {
				sb.WriteString(fmt.Sprintf(" (ids: %s)", strings.Join(e.SampleOrphan, ", ")))
			}
			if e.CascadeDelete {
				sb.WriteString(" [cascade]")
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
}

func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
