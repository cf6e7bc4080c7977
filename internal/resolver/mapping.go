package resolver

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"migration-auditor/internal/fileutil"
)

// Entry 一个函数的映射，Candidates 为空表示不可测
type Entry struct {
	FunctionID int         `json:"function_id"`
	Name       string      `json:"name"`
	Candidates []Candidate `json:"candidates"`
}

// Mapping 持久化的函数-端点映射，按函数 id 索引
type Mapping struct {
	GeneratedAt    time.Time        `json:"generated_at"`
	CatalogVersion string           `json:"catalog_version,omitempty"`
	Functions      map[string]Entry `json:"functions"`
}

// Lookup 按函数 id 查找
func (m *Mapping) Lookup(functionID int) (Entry, bool) {
	if m == nil {
		return Entry{}, false
	}
	e, ok := m.Functions[strconv.Itoa(functionID)]
	return e, ok
}

// SaveMapping 原子写入映射文件
func SaveMapping(path string, m *Mapping) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化映射失败: %w", err)
	}
	return fileutil.WriteFileAtomic(path, data, 0o644)
}

// LoadMapping 读取映射文件；文件不存在时返回的错误满足 os.IsNotExist
func LoadMapping(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Mapping
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("解析映射文件 %s 失败: %w", path, err)
	}
	if m.Functions == nil {
		m.Functions = make(map[string]Entry)
	}
	return &m, nil
}
