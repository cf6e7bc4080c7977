package resolver

import (
	"strings"

	"migration-auditor/internal/catalog"
)

// DefaultTestMarker 生成的测试端点名称中包含的标记
const DefaultTestMarker = "test-function"

// Subject 待解析的函数
type Subject struct {
	ID        int
	Name      string
	Namespace string
	Slug      string
}

// Strategy 一种命名空间约定对应的匹配规则
type Strategy interface {
	// Name 策略名，写入候选的 strategy 字段
	Name() string
	// Namespaces 适用的命名空间
	Namespaces() []string
	// Groups 搜索的端点分组
	Groups() []string
	// Match 端点能否间接调用该函数
	Match(subject Subject, endpoint catalog.Endpoint) bool
}

// WorkerStrategy Workers 命名空间：端点名必须带测试标记并包含 slug
type WorkerStrategy struct {
	Marker    string
	APIGroups []string
}

func (s WorkerStrategy) Name() string         { return "worker_marker" }
func (s WorkerStrategy) Namespaces() []string { return []string{"Workers"} }
func (s WorkerStrategy) Groups() []string     { return s.APIGroups }

func (s WorkerStrategy) Match(subject Subject, endpoint catalog.Endpoint) bool {
	if subject.Slug == "" {
		return false
	}
	marker := s.Marker
	if marker == "" {
		marker = DefaultTestMarker
	}

	name := strings.ToLower(endpoint.DisplayName())
	if !strings.Contains(name, marker) {
		return false
	}
	if strings.Contains(name, subject.Slug) {
		return true
	}

	// 测试端点常把动词挪到末尾（team-roster-sync），按词干全覆盖判断
	slugTokens := tokens(subject.Slug)
	return tokenOverlap(slugTokens, endpointTokenSet(name)) == len(slugTokens)
}

// TaskStrategy Tasks 命名空间：任务端点名是缩写，按重要 token 重叠数匹配
type TaskStrategy struct {
	MinOverlap int
	APIGroups  []string
}

func (s TaskStrategy) Name() string         { return "task_token_overlap" }
func (s TaskStrategy) Namespaces() []string { return []string{"Tasks"} }
func (s TaskStrategy) Groups() []string     { return s.APIGroups }

func (s TaskStrategy) Match(subject Subject, endpoint catalog.Endpoint) bool {
	minOverlap := s.MinOverlap
	if minOverlap <= 0 {
		minOverlap = 2
	}

	name := strings.ToLower(endpoint.DisplayName())
	count := 0
	for _, tok := range significantTokens(subject.Slug) {
		if strings.Contains(name, tok) {
			count++
		}
	}
	return count >= minOverlap
}

// ContainmentStrategy Utils/Frontend/System：双向子串包含
type ContainmentStrategy struct {
	APIGroups []string
	// MinNameLen 端点名短于此值时不做 name-in-slug 判断
	MinNameLen int
}

func (s ContainmentStrategy) Name() string { return "bidirectional_containment" }

func (s ContainmentStrategy) Namespaces() []string {
	return []string{"Utils", "Frontend", "System"}
}

func (s ContainmentStrategy) Groups() []string { return s.APIGroups }

func (s ContainmentStrategy) Match(subject Subject, endpoint catalog.Endpoint) bool {
	if subject.Slug == "" {
		return false
	}
	name := strings.ToLower(endpoint.DisplayName())
	if name == "" {
		return false
	}
	if strings.Contains(name, subject.Slug) {
		return true
	}

	minLen := s.MinNameLen
	if minLen <= 0 {
		minLen = 4
	}
	return len(name) >= minLen && strings.Contains(subject.Slug, name)
}

// DefaultStrategies 默认的三种约定
func DefaultStrategies() []Strategy {
	return []Strategy{
		WorkerStrategy{Marker: DefaultTestMarker, APIGroups: []string{"workers"}},
		TaskStrategy{MinOverlap: 2, APIGroups: []string{"tasks"}},
		ContainmentStrategy{APIGroups: []string{"workers", "system", "frontend"}},
	}
}
