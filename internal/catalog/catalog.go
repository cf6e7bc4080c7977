package catalog

import (
	"fmt"
	"net/http"
	"strings"
)

// Kind 被测实体类型
type Kind string

const (
	KindTable     Kind = "table"
	KindFunction  Kind = "function"
	KindEndpoint  Kind = "endpoint"
	KindReference Kind = "reference"
	KindWebhook   Kind = "webhook"
)

// Behavior webhook 预期行为
type Behavior string

const (
	BehaviorAcceptsPayload    Behavior = "accepts_payload"
	BehaviorRequiresAuth      Behavior = "requires_auth"
	BehaviorRequiresSignature Behavior = "requires_signature"
)

// Valid 是否为已知行为
func (b Behavior) Valid() bool {
	switch b {
	case BehaviorAcceptsPayload, BehaviorRequiresAuth, BehaviorRequiresSignature:
		return true
	}
	return false
}

// Table 表
type Table struct {
	ID       int    `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	Category string `yaml:"category,omitempty" json:"category,omitempty"`
}

// APIGroup API 分组
type APIGroup struct {
	Name     string `yaml:"name" json:"name"`
	BaseURL  string `yaml:"base_url" json:"base_url"`
	Category string `yaml:"category,omitempty" json:"category,omitempty"`
}

// Endpoint 端点
type Endpoint struct {
	Name           string `yaml:"name,omitempty" json:"name,omitempty"`
	Path           string `yaml:"path" json:"path"`
	Method         string `yaml:"method" json:"method"`
	APIGroup       string `yaml:"api_group" json:"api_group"`
	AuthRequired   bool   `yaml:"authRequired" json:"authRequired"`
	RequiresTestID bool   `yaml:"requires_test_id,omitempty" json:"requires_test_id,omitempty"`
	Category       string `yaml:"category,omitempty" json:"category,omitempty"`
}

// DisplayName 端点名称，未声明时由路径推导
func (e Endpoint) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	return strings.ReplaceAll(strings.Trim(e.Path, "/"), "/", "-")
}

// HTTPMethod 大写方法名，默认 GET
func (e Endpoint) HTTPMethod() string {
	if e.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(e.Method)
}

// Key 端点唯一标识
func (e Endpoint) Key() string {
	return fmt.Sprintf("%s %s%s", e.HTTPMethod(), e.APIGroup, e.Path)
}

// Function 后端函数
type Function struct {
	ID     int    `yaml:"id" json:"id"`
	Name   string `yaml:"name" json:"name"`
	Domain string `yaml:"domain,omitempty" json:"domain,omitempty"`
}

// Namespace 名称中第一个 "/" 之前的目录段，没有则为空
func (f Function) Namespace() string {
	ns, _, found := strings.Cut(f.Name, "/")
	if !found {
		return ""
	}
	return strings.TrimSpace(ns)
}

// ArchiveNamespace 已退役函数的命名空间
const ArchiveNamespace = "Archive"

// Archived 已退役函数不参与解析和校验，也不计入不可测
func (f Function) Archived() bool {
	return strings.EqualFold(f.Namespace(), ArchiveNamespace)
}

// FunctionHint 人工整理的函数测试端点
type FunctionHint struct {
	FunctionID     int    `yaml:"function_id" json:"function_id"`
	Path           string `yaml:"path" json:"path"`
	Method         string `yaml:"method" json:"method"`
	APIGroup       string `yaml:"api_group" json:"api_group"`
	RequiresTestID bool   `yaml:"requires_test_id,omitempty" json:"requires_test_id,omitempty"`
}

// Webhook webhook 接收端
type Webhook struct {
	Name             string         `yaml:"name" json:"name"`
	Integration      string         `yaml:"integration" json:"integration"`
	APIGroup         string         `yaml:"api_group" json:"api_group"`
	Path             string         `yaml:"path" json:"path"`
	Method           string         `yaml:"method,omitempty" json:"method,omitempty"`
	ExpectedBehavior Behavior       `yaml:"expected_behavior" json:"expected_behavior"`
	Payload          map[string]any `yaml:"payload,omitempty" json:"payload,omitempty"`
}

// HTTPMethod 默认 POST
func (w Webhook) HTTPMethod() string {
	if w.Method == "" {
		return http.MethodPost
	}
	return strings.ToUpper(w.Method)
}

// ReferenceEdge 外键引用边
type ReferenceEdge struct {
	Table           string `yaml:"table" json:"table"`
	Field           string `yaml:"field" json:"field"`
	ReferencesTable string `yaml:"references_table" json:"references_table"`
	ReferencesField string `yaml:"references_field" json:"references_field"`
	Nullable        bool   `yaml:"nullable" json:"nullable"`
	CascadeDelete   bool   `yaml:"cascade_delete,omitempty" json:"cascade_delete,omitempty"`
	Domain          string `yaml:"domain,omitempty" json:"domain,omitempty"`
}

// ID 形如 child.field->parent.field
func (e ReferenceEdge) ID() string {
	return fmt.Sprintf("%s.%s->%s.%s", e.Table, e.Field, e.ReferencesTable, e.ParentField())
}

// ParentField 父表字段，默认 id
func (e ReferenceEdge) ParentField() string {
	if e.ReferencesField == "" {
		return "id"
	}
	return e.ReferencesField
}

// File 静态目录文件结构
type File struct {
	Version       string          `yaml:"version,omitempty" json:"version,omitempty"`
	Tables        []Table         `yaml:"tables" json:"tables"`
	APIGroups     []APIGroup      `yaml:"api_groups" json:"api_groups"`
	Endpoints     []Endpoint      `yaml:"endpoints" json:"endpoints"`
	Functions     []Function      `yaml:"functions" json:"functions"`
	FunctionHints []FunctionHint  `yaml:"function_hints" json:"function_hints"`
	Webhooks      []Webhook       `yaml:"webhooks" json:"webhooks"`
	References    []ReferenceEdge `yaml:"references" json:"references"`
}

// Filter 运行过滤条件，空字段表示不过滤
type Filter struct {
	Table        string `json:"table,omitempty"`
	Category     string `json:"category,omitempty"`
	APIGroup     string `json:"api_group,omitempty"`
	Integration  string `json:"integration,omitempty"`
	Domain       string `json:"domain,omitempty"`
	Relationship string `json:"relationship,omitempty"`
	Group        string `json:"group,omitempty"`
}

// IsZero 是否为全量运行
func (f Filter) IsZero() bool {
	return f == Filter{}
}

func matches(filter, value string) bool {
	return filter == "" || strings.EqualFold(filter, value)
}
