package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"migration-auditor/internal/fileutil"
)

const timestampLayout = "20060102-150405"

// FileName 报告文件名：<validator>-report-<时间戳>.json
func (r *Report) FileName() string {
	return fmt.Sprintf("%s-report-%s.json", r.Validator, r.StartedAt.UTC().Format(timestampLayout))
}

// Save 原子写入 dir，返回文件路径
func (r *Report) Save(dir string) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("序列化报告失败: %w", err)
	}

	path := filepath.Join(dir, r.FileName())
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return "", fmt.Errorf("写入报告失败: %w", err)
	}
	return path, nil
}

// Load 读取已保存的报告
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("解析报告 %s 失败: %w", path, err)
	}
	return &r, nil
}
