package resolver

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"migration-auditor/internal/catalog"
)

// ArchiveNamespace 已退役函数的命名空间，直接排除
const ArchiveNamespace = catalog.ArchiveNamespace

// EndpointLister 目录中按分组列出端点
type EndpointLister interface {
	ListEndpoints(apiGroup string) []catalog.Endpoint
}

// Candidate 可间接调用函数的端点
type Candidate struct {
	Path           string  `json:"path"`
	Method         string  `json:"method"`
	APIGroup       string  `json:"api_group"`
	Name           string  `json:"name"`
	RequiresTestID bool    `json:"requires_test_id,omitempty"`
	Strategy       string  `json:"strategy"`
	Score          float64 `json:"score"`
}

// Resolver 函数 -> 端点解析器
type Resolver struct {
	strategies []Strategy
	byNS       map[string][]Strategy
	endpoints  map[string][]catalog.Endpoint
}

// New 创建解析器；不传策略时使用 DefaultStrategies
func New(lister EndpointLister, strategies ...Strategy) *Resolver {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}

	r := &Resolver{
		strategies: strategies,
		byNS:       make(map[string][]Strategy),
		endpoints:  make(map[string][]catalog.Endpoint),
	}
	for _, s := range strategies {
		for _, ns := range s.Namespaces() {
			key := strings.ToLower(ns)
			r.byNS[key] = append(r.byNS[key], s)
		}
		for _, g := range s.Groups() {
			if _, ok := r.endpoints[g]; !ok {
				r.endpoints[g] = lister.ListEndpoints(g)
			}
		}
	}
	return r
}

// IsArchived 是否为已退役函数
func IsArchived(fn catalog.Function) bool {
	return fn.Archived()
}

// Resolve 返回全部适用策略找到的候选，按相似度降序
func (r *Resolver) Resolve(fn catalog.Function) []Candidate {
	if IsArchived(fn) {
		return nil
	}

	ns, slug := Sanitize(fn.Name)
	subject := Subject{ID: fn.ID, Name: fn.Name, Namespace: ns, Slug: slug}

	seen := make(map[string]bool)
	var out []Candidate
	for _, s := range r.byNS[strings.ToLower(ns)] {
		for _, g := range s.Groups() {
			for _, ep := range r.endpoints[g] {
				if seen[ep.Key()] || !s.Match(subject, ep) {
					continue
				}
				seen[ep.Key()] = true
				out = append(out, Candidate{
					Path:           ep.Path,
					Method:         ep.HTTPMethod(),
					APIGroup:       ep.APIGroup,
					Name:           ep.DisplayName(),
					RequiresTestID: ep.RequiresTestID,
					Strategy:       s.Name(),
					Score:          NameSimilarity(slug, strings.ToLower(ep.DisplayName())),
				})
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// BuildStats 解析统计
type BuildStats struct {
	Total      int            `json:"total"`
	Resolved   int            `json:"resolved"`
	Untestable int            `json:"untestable"`
	Archived   int            `json:"archived"`
	ByStrategy map[string]int `json:"by_strategy"`
}

// Build 对全部函数做一次 O(functions x endpoints) 的匹配
func (r *Resolver) Build(functions []catalog.Function, catalogVersion string) (*Mapping, BuildStats) {
	m := &Mapping{
		GeneratedAt:    time.Now().UTC(),
		CatalogVersion: catalogVersion,
		Functions:      make(map[string]Entry, len(functions)),
	}
	stats := BuildStats{ByStrategy: make(map[string]int)}

	for _, fn := range functions {
		if IsArchived(fn) {
			stats.Archived++
			continue
		}
		stats.Total++

		candidates := r.Resolve(fn)
		if len(candidates) == 0 {
			stats.Untestable++
		} else {
			stats.Resolved++
			stats.ByStrategy[candidates[0].Strategy]++
		}

		m.Functions[strconv.Itoa(fn.ID)] = Entry{
			FunctionID: fn.ID,
			Name:       fn.Name,
			Candidates: candidates,
		}
	}
	return m, stats
}
