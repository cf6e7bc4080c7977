package catalog

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// maxCatalogFileSize 目录文件大小上限 (16 MB)
const maxCatalogFileSize = 16 << 20

// ErrNotFound 目录中不存在
var ErrNotFound = errors.New("not found in catalog")

// ConfigurationError 引用的表/端点无法在目录中解析
type ConfigurationError struct {
	Entity string
	Err    error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %v", e.Entity, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Store 只读的内存目录，加载后不再修改
type Store struct {
	version   string
	tables    []Table
	tableIDs  map[string]int
	groups    map[string]APIGroup
	endpoints map[string][]Endpoint
	functions []Function
	hints     map[int]FunctionHint
	webhooks  []Webhook
	edges     []ReferenceEdge
}

// Load 从 YAML/JSON 文件加载目录
func Load(path string) (*Store, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("读取目录文件失败: %w", err)
	}
	if info.Size() > maxCatalogFileSize {
		return nil, fmt.Errorf("%s 超过大小上限 (%d > %d)", path, info.Size(), maxCatalogFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取目录文件失败: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("解析目录文件 %s 失败: %w", path, err)
	}
	return New(f)
}

// New 构建目录，建立 name->id 索引
func New(f File) (*Store, error) {
	s := &Store{
		version:   f.Version,
		tableIDs:  make(map[string]int, len(f.Tables)),
		groups:    make(map[string]APIGroup, len(f.APIGroups)),
		endpoints: make(map[string][]Endpoint),
		hints:     make(map[int]FunctionHint, len(f.FunctionHints)),
	}

	for _, t := range f.Tables {
		if t.Name == "" {
			return nil, fmt.Errorf("表 id=%d 缺少名称", t.ID)
		}
		if _, dup := s.tableIDs[t.Name]; dup {
			return nil, fmt.Errorf("表 %s 重复定义", t.Name)
		}
		s.tableIDs[t.Name] = t.ID
		s.tables = append(s.tables, t)
	}

	for _, g := range f.APIGroups {
		if _, dup := s.groups[g.Name]; dup {
			return nil, fmt.Errorf("API 分组 %s 重复定义", g.Name)
		}
		s.groups[g.Name] = g
	}

	for _, e := range f.Endpoints {
		if e.Path == "" {
			return nil, fmt.Errorf("端点 %q 缺少路径", e.Name)
		}
		s.endpoints[e.APIGroup] = append(s.endpoints[e.APIGroup], e)
	}

	s.functions = append(s.functions, f.Functions...)

	for _, h := range f.FunctionHints {
		s.hints[h.FunctionID] = h
	}

	for _, w := range f.Webhooks {
		if !w.ExpectedBehavior.Valid() {
			return nil, fmt.Errorf("webhook %s: 未知的 expected_behavior %q", w.Name, w.ExpectedBehavior)
		}
		s.webhooks = append(s.webhooks, w)
	}

	s.edges = append(s.edges, f.References...)

	return s, nil
}

// Version 目录版本
func (s *Store) Version() string {
	return s.version
}

// ResolveTableID 表名 -> id
func (s *Store) ResolveTableID(name string) (int, error) {
	id, ok := s.tableIDs[name]
	if !ok {
		return 0, fmt.Errorf("table %q: %w", name, ErrNotFound)
	}
	return id, nil
}

// ListTables 按表名或分类过滤
func (s *Store) ListTables(f Filter) []Table {
	var out []Table
	for _, t := range s.tables {
		if matches(f.Table, t.Name) && matches(f.Category, t.Category) {
			out = append(out, t)
		}
	}
	return out
}

// APIGroup 查找 API 分组
func (s *Store) APIGroup(name string) (APIGroup, bool) {
	g, ok := s.groups[name]
	return g, ok
}

// APIGroupNames 所有分组名（有序）
func (s *Store) APIGroupNames() []string {
	names := make([]string, 0, len(s.groups))
	for name := range s.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListEndpoints 某个分组的端点，apiGroup 为空时返回全部
func (s *Store) ListEndpoints(apiGroup string) []Endpoint {
	if apiGroup != "" {
		return append([]Endpoint(nil), s.endpoints[apiGroup]...)
	}

	var out []Endpoint
	for _, name := range s.endpointGroups() {
		out = append(out, s.endpoints[name]...)
	}
	return out
}

// FilterEndpoints 按分组和分类过滤
func (s *Store) FilterEndpoints(f Filter) []Endpoint {
	var out []Endpoint
	for _, e := range s.ListEndpoints(f.APIGroup) {
		category := e.Category
		if category == "" {
			category = s.groups[e.APIGroup].Category
		}
		if matches(f.Category, category) {
			out = append(out, e)
		}
	}
	return out
}

func (s *Store) endpointGroups() []string {
	names := make([]string, 0, len(s.endpoints))
	for name := range s.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListFunctions 按命名空间(category)或业务域过滤
func (s *Store) ListFunctions(f Filter) []Function {
	var out []Function
	for _, fn := range s.functions {
		if matches(f.Category, fn.Namespace()) && matches(f.Domain, fn.Domain) {
			out = append(out, fn)
		}
	}
	return out
}

// ActiveFunctions 同 ListFunctions，但排除 Archive 命名空间
func (s *Store) ActiveFunctions(f Filter) []Function {
	var out []Function
	for _, fn := range s.ListFunctions(f) {
		if !fn.Archived() {
			out = append(out, fn)
		}
	}
	return out
}

// Hint 人工整理的测试端点
func (s *Store) Hint(functionID int) (FunctionHint, bool) {
	h, ok := s.hints[functionID]
	return h, ok
}

// ListWebhooks 按集成、分组或预期行为过滤
func (s *Store) ListWebhooks(f Filter) []Webhook {
	var out []Webhook
	for _, w := range s.webhooks {
		if matches(f.Integration, w.Integration) &&
			matches(f.APIGroup, w.APIGroup) &&
			matches(f.Group, string(w.ExpectedBehavior)) {
			out = append(out, w)
		}
	}
	return out
}

// ListReferenceEdges 按表（子表或父表）、业务域或关系过滤
func (s *Store) ListReferenceEdges(f Filter) []ReferenceEdge {
	var out []ReferenceEdge
	for _, e := range s.edges {
		if f.Table != "" && !strings.EqualFold(f.Table, e.Table) && !strings.EqualFold(f.Table, e.ReferencesTable) {
			continue
		}
		if f.Relationship != "" && !strings.Contains(strings.ToLower(e.ID()), strings.ToLower(f.Relationship)) {
			continue
		}
		if !matches(f.Domain, e.Domain) {
			continue
		}
		out = append(out, e)
	}
	return out
}
