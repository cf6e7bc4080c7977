package report

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"migration-auditor/internal/catalog"
	"migration-auditor/internal/outcome"
)

// DefaultSlowThreshold 与端点校验的 slow 判定一致
const DefaultSlowThreshold = 2000 * time.Millisecond

// Summary 总体计数；failed = total - passed - untestable，skipped 计入 passed 并单独统计
type Summary struct {
	Total            int     `json:"total"`
	Passed           int     `json:"passed"`
	Failed           int     `json:"failed"`
	Untestable       int     `json:"untestable"`
	Skipped          int     `json:"skipped"`
	PassRate         float64 `json:"passRate"`
	TestablePassRate float64 `json:"testablePassRate"`
}

// Latency 成功探测的延迟分布（毫秒）
type Latency struct {
	Samples int   `json:"samples"`
	P50     int64 `json:"p50"`
	P95     int64 `json:"p95"`
	P99     int64 `json:"p99"`
	Max     int64 `json:"max"`
}

// Breakdown 单个分组的计数
type Breakdown struct {
	Group      string  `json:"group"`
	Total      int     `json:"total"`
	Passed     int     `json:"passed"`
	Failed     int     `json:"failed"`
	Untestable int     `json:"untestable"`
	Skipped    int     `json:"skipped"`
	PassRate   float64 `json:"passRate"`
}

// SlowProbe 成功但超过阈值的探测
type SlowProbe struct {
	Name      string `json:"name"`
	Group     string `json:"group,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// Report 一次运行的完整报告
type Report struct {
	RunID      string         `json:"run_id"`
	Validator  catalog.Kind   `json:"validator"`
	Filter     catalog.Filter `json:"filter"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	// DurationMS 运行耗时，单位毫秒
	DurationMS int64             `json:"duration"`
	Summary    Summary           `json:"summary"`
	Latency    Latency           `json:"latency"`
	Breakdown  []Breakdown       `json:"breakdown"`
	Slow       []SlowProbe       `json:"slow,omitempty"`
	Outcomes   []outcome.Outcome `json:"results"`
}

// Meta 运行信息
type Meta struct {
	RunID         string
	Validator     catalog.Kind
	Filter        catalog.Filter
	StartedAt     time.Time
	SlowThreshold time.Duration
}

// Aggregate 汇总结果；计数与顺序无关
func Aggregate(meta Meta, outcomes []outcome.Outcome) *Report {
	if meta.RunID == "" {
		meta.RunID = uuid.NewString()
	}
	if meta.SlowThreshold <= 0 {
		meta.SlowThreshold = DefaultSlowThreshold
	}
	finished := time.Now().UTC()
	if meta.StartedAt.IsZero() {
		meta.StartedAt = finished
	}

	r := &Report{
		RunID:      meta.RunID,
		Validator:  meta.Validator,
		Filter:     meta.Filter,
		StartedAt:  meta.StartedAt,
		FinishedAt: finished,
		DurationMS: finished.Sub(meta.StartedAt).Milliseconds(),
		Outcomes:   outcomes,
	}
	if r.Outcomes == nil {
		r.Outcomes = []outcome.Outcome{}
	}

	counts := countStatuses(outcomes)
	r.Summary = summarize(len(outcomes), counts)

	groups := make(map[string][]outcome.Outcome)
	var samples []int64
	for _, o := range outcomes {
		groups[o.Group] = append(groups[o.Group], o)

		if o.Status != outcome.StatusPassed || o.LatencyMS == nil {
			continue
		}
		samples = append(samples, *o.LatencyMS)
		if slow, _ := o.Metadata["slow"].(bool); slow || time.Duration(*o.LatencyMS)*time.Millisecond > meta.SlowThreshold {
			r.Slow = append(r.Slow, SlowProbe{Name: o.Name, Group: o.Group, LatencyMS: *o.LatencyMS})
		}
	}

	r.Latency = Percentiles(samples)
	r.Breakdown = breakdowns(groups)
	sort.Slice(r.Slow, func(i, j int) bool { return r.Slow[i].LatencyMS > r.Slow[j].LatencyMS })
	return r
}

func countStatuses(outcomes []outcome.Outcome) map[outcome.Status]int {
	counts := make(map[outcome.Status]int, len(outcome.Statuses))
	for _, o := range outcomes {
		counts[o.Status]++
	}
	return counts
}

func summarize(total int, counts map[outcome.Status]int) Summary {
	s := Summary{
		Total:      total,
		Passed:     counts[outcome.StatusPassed] + counts[outcome.StatusSkipped],
		Untestable: counts[outcome.StatusUntestable],
		Skipped:    counts[outcome.StatusSkipped],
	}
	s.Failed = s.Total - s.Passed - s.Untestable
	s.PassRate = rate(s.Passed, s.Total, s.Failed)
	s.TestablePassRate = rate(s.Passed, s.Total-s.Untestable, s.Failed)
	return s
}

// rate 百分比保留一位小数；分母为 0 时没有失败即 100
func rate(passed, denom, failed int) float64 {
	if denom <= 0 {
		if failed == 0 {
			return 100
		}
		return 0
	}
	return math.Round(float64(passed)/float64(denom)*1000) / 10
}

func breakdowns(groups map[string][]outcome.Outcome) []Breakdown {
	out := make([]Breakdown, 0, len(groups))
	for name, items := range groups {
		if name == "" {
			name = "ungrouped"
		}
		s := summarize(len(items), countStatuses(items))
		out = append(out, Breakdown{
			Group:      name,
			Total:      s.Total,
			Passed:     s.Passed,
			Failed:     s.Failed,
			Untestable: s.Untestable,
			Skipped:    s.Skipped,
			PassRate:   s.TestablePassRate,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Failed != out[j].Failed {
			return out[i].Failed > out[j].Failed
		}
		return out[i].Group < out[j].Group
	})
	return out
}

// Percentiles 最近秩百分位
func Percentiles(samples []int64) Latency {
	if len(samples) == 0 {
		return Latency{}
	}
	sorted := append([]int64(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	return Latency{
		Samples: len(sorted),
		P50:     nearestRank(sorted, 50),
		P95:     nearestRank(sorted, 95),
		P99:     nearestRank(sorted, 99),
		Max:     sorted[len(sorted)-1],
	}
}

func nearestRank(sorted []int64, p float64) int64 {
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

// Failures 失败的结果，按名称排序
func (r *Report) Failures() []outcome.Outcome {
	var out []outcome.Outcome
	for _, o := range r.Outcomes {
		if o.Status == outcome.StatusFailed {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ExitCode 有失败时为 1，不可测不影响
func (r *Report) ExitCode() int {
	if r.Summary.Failed > 0 {
		return 1
	}
	return 0
}
