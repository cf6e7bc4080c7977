package renderer

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"migration-auditor/internal/catalog"
	"migration-auditor/internal/outcome"
	"migration-auditor/internal/report"
)

// DefaultBatchEvery 每多少个实体输出一次批次汇总
const DefaultBatchEvery = 25

var (
	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	styleSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	styleErr     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	styleWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Glyph 状态符号
func Glyph(s outcome.Status) string {
	switch s {
	case outcome.StatusPassed:
		return "✓"
	case outcome.StatusFailed:
		return "✗"
	case outcome.StatusUntestable:
		return "○"
	case outcome.StatusSkipped:
		return "⊘"
	}
	return "?"
}

func styleFor(s outcome.Status) lipgloss.Style {
	switch s {
	case outcome.StatusPassed:
		return styleSuccess
	case outcome.StatusFailed:
		return styleErr
	case outcome.StatusUntestable:
		return styleWarn
	}
	return styleDim
}

// Console 逐实体进度输出
type Console struct {
	out        io.Writer
	batchEvery int
	counts     map[outcome.Status]int
}

// NewConsole 创建控制台渲染器
func NewConsole(out io.Writer, batchEvery int) *Console {
	if batchEvery <= 0 {
		batchEvery = DefaultBatchEvery
	}
	return &Console{out: out, batchEvery: batchEvery, counts: make(map[outcome.Status]int)}
}

// Start 运行开始
func (c *Console) Start(kind catalog.Kind, total int, filter catalog.Filter) {
	c.counts = make(map[outcome.Status]int)

	title := fmt.Sprintf("🔍 Validating %d %s entities", total, kind)
	if !filter.IsZero() {
		title += " " + describeFilter(filter)
	}
	fmt.Fprintln(c.out, styleTitle.Render(title))
}

// Progress 每个实体一行，可直接作为 validator.ResultFunc 使用
func (c *Console) Progress(done, total int, o outcome.Outcome) {
	c.counts[o.Status]++
	fmt.Fprintln(c.out, Line(o))

	if done%c.batchEvery == 0 || done == total {
		fmt.Fprintln(c.out, styleDim.Render(fmt.Sprintf("[%d/%d] passed=%d failed=%d untestable=%d skipped=%d",
			done, total,
			c.counts[outcome.StatusPassed],
			c.counts[outcome.StatusFailed],
			c.counts[outcome.StatusUntestable],
			c.counts[outcome.StatusSkipped])))
	}
}

// Line 单个结果的进度行
func Line(o outcome.Outcome) string {
	line := fmt.Sprintf("  %s %s", Glyph(o.Status), o.Name)

	switch o.Status {
	case outcome.StatusPassed:
		if o.LatencyMS != nil {
			line += fmt.Sprintf(" (%dms)", *o.LatencyMS)
		}
		if note, ok := o.Metadata["note"].(string); ok && note != "" {
			line += " - " + note
		}
	case outcome.StatusSkipped:
		if reason, ok := o.Metadata["reason"].(string); ok {
			line += " - " + reason
		}
	default:
		if o.Error != "" {
			line += ": " + o.Error
		}
	}
	return styleFor(o.Status).Render(line)
}

// Summary 运行结束汇总
func (c *Console) Summary(r *report.Report, savedTo string) {
	s := r.Summary

	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, styleTitle.Render(fmt.Sprintf("📊 %s run %s", r.Validator, r.RunID)))
	fmt.Fprintf(c.out, "   Total: %d  Passed: %d  Failed: %d  Untestable: %d  Skipped: %d\n",
		s.Total, s.Passed, s.Failed, s.Untestable, s.Skipped)
	fmt.Fprintf(c.out, "   Pass rate: %.1f%%  Testable pass rate: %.1f%%\n", s.PassRate, s.TestablePassRate)
	if r.Latency.Samples > 0 {
		fmt.Fprintf(c.out, "   Latency p50=%dms p95=%dms p99=%dms max=%dms\n",
			r.Latency.P50, r.Latency.P95, r.Latency.P99, r.Latency.Max)
	}

	if len(r.Breakdown) > 1 {
		fmt.Fprintln(c.out, "   By group:")
		for _, b := range r.Breakdown {
			fmt.Fprintf(c.out, "     %-24s %3d/%-3d passed  %d failed  %d untestable\n",
				b.Group, b.Passed, b.Total, b.Failed, b.Untestable)
		}
	}

	if len(r.Slow) > 0 {
		fmt.Fprintln(c.out, styleWarn.Render(fmt.Sprintf("   ⚠️  %d slow probes, slowest %s (%dms)",
			len(r.Slow), r.Slow[0].Name, r.Slow[0].LatencyMS)))
	}

	if s.Failed == 0 {
		fmt.Fprintln(c.out, styleSuccess.Render("✅ No failures"))
	} else {
		fmt.Fprintln(c.out, styleErr.Render(fmt.Sprintf("❌ %d failures", s.Failed)))
	}
	if savedTo != "" {
		fmt.Fprintln(c.out, styleDim.Render("   Report: "+savedTo))
	}
}

func describeFilter(f catalog.Filter) string {
	var parts []string
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, k+"="+v)
		}
	}
	add("table", f.Table)
	add("category", f.Category)
	add("api-group", f.APIGroup)
	add("integration", f.Integration)
	add("domain", f.Domain)
	add("relationship", f.Relationship)
	add("group", f.Group)
	return "(" + strings.Join(parts, ", ") + ")"
}
