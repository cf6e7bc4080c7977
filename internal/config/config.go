package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// 记录源
const (
	RecordSourceHTTP      = "http"
	RecordSourceMySQL     = "mysql"
	RecordSourceSQLServer = "sqlserver"
)

// Config 审计工具配置：默认值 -> YAML 文件 -> AUDITOR_* 环境变量 -> 命令行参数
type Config struct {
	Catalog       string `yaml:"catalog" env:"AUDITOR_CATALOG"`
	Mapping       string `yaml:"mapping" env:"AUDITOR_MAPPING"`
	ReportsDir    string `yaml:"reports_dir" env:"AUDITOR_REPORTS_DIR"`
	Markdown      bool   `yaml:"markdown" env:"AUDITOR_MARKDOWN"`
	InlineResolve bool   `yaml:"inline_resolve" env:"AUDITOR_INLINE_RESOLVE"`

	Probe     ProbeConfig     `yaml:"probe"`
	Records   RecordConfig    `yaml:"records"`
	Reference ReferenceConfig `yaml:"reference"`
	Identity  IdentityConfig  `yaml:"test_identity"`
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
}

// ProbeConfig HTTP 探测
type ProbeConfig struct {
	Timeout       time.Duration `yaml:"timeout" env:"AUDITOR_TIMEOUT"`
	Concurrency   int           `yaml:"concurrency" env:"AUDITOR_CONCURRENCY"`
	RateLimit     float64       `yaml:"rate_limit" env:"AUDITOR_RATE_LIMIT"`
	Burst         int           `yaml:"burst" env:"AUDITOR_RATE_BURST"`
	SlowThreshold time.Duration `yaml:"slow_threshold" env:"AUDITOR_SLOW_THRESHOLD"`
}

// RecordConfig 表/外键校验读取记录的方式
type RecordConfig struct {
	Source     string `yaml:"source" json:"source" env:"AUDITOR_RECORD_SOURCE"`
	ContentURL string `yaml:"content_url" json:"content_url" env:"AUDITOR_CONTENT_URL"`
	Token      string `yaml:"token" json:"token,omitempty" env:"AUDITOR_META_TOKEN"`
	DSN        string `yaml:"dsn" json:"dsn,omitempty" env:"AUDITOR_DSN"`
}

// ReferenceConfig 外键采样
type ReferenceConfig struct {
	SampleSize       int `yaml:"sample_size" env:"AUDITOR_SAMPLE_SIZE"`
	MaxOrphanSamples int `yaml:"max_orphan_samples" env:"AUDITOR_MAX_ORPHAN_SAMPLES"`
}

// IdentityConfig 种子测试 id
type IdentityConfig struct {
	UserID int `yaml:"user_id" env:"AUDITOR_TEST_USER_ID"`
	TeamID int `yaml:"team_id" env:"AUDITOR_TEST_TEAM_ID"`
}

// LogConfig 日志
type LogConfig struct {
	Level  string `yaml:"level" env:"AUDITOR_LOG_LEVEL"`
	Pretty bool   `yaml:"pretty" env:"AUDITOR_LOG_PRETTY"`
}

// ServerConfig 运行服务
type ServerConfig struct {
	Addr string `yaml:"addr" env:"AUDITOR_SERVER_ADDR"`
}

// Default 默认配置
func Default() *Config {
	return &Config{
		Catalog:       "./catalog.yaml",
		Mapping:       "./function_endpoint_mapping.json",
		ReportsDir:    "./reports",
		InlineResolve: true,
		Probe: ProbeConfig{
			Timeout:       30 * time.Second,
			Concurrency:   10,
			SlowThreshold: 2000 * time.Millisecond,
		},
		Records: RecordConfig{
			Source: RecordSourceHTTP,
		},
		Reference: ReferenceConfig{
			SampleSize:       100,
			MaxOrphanSamples: 10,
		},
		Identity: IdentityConfig{UserID: 1, TeamID: 1},
		Log:      LogConfig{Level: "info", Pretty: true},
		Server:   ServerConfig{Addr: ":8080"},
	}
}

// Load 读取配置；path 为空时只用默认值和环境变量
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
		}
	}

	if err := LoadFromEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置；并发数超过 20 时截断而不是报错
func (c *Config) Validate() error {
	if c.Catalog == "" {
		return fmt.Errorf("未指定目录文件")
	}
	if c.Probe.Timeout <= 0 {
		return fmt.Errorf("probe.timeout 必须为正数: %s", c.Probe.Timeout)
	}
	if c.Probe.Concurrency <= 0 {
		return fmt.Errorf("probe.concurrency 必须为正数: %d", c.Probe.Concurrency)
	}
	if c.Probe.Concurrency > 20 {
		c.Probe.Concurrency = 20
	}
	if c.Probe.RateLimit < 0 {
		return fmt.Errorf("probe.rate_limit 不能为负数")
	}
	if c.Reference.SampleSize <= 0 {
		return fmt.Errorf("reference.sample_size 必须为正数: %d", c.Reference.SampleSize)
	}

	switch c.Records.Source {
	case RecordSourceHTTP:
	case RecordSourceMySQL, RecordSourceSQLServer:
		if c.Records.DSN == "" {
			return fmt.Errorf("记录源 %s 需要 dsn", c.Records.Source)
		}
	default:
		return fmt.Errorf("未知的记录源 %q (可选 http, mysql, sqlserver)", c.Records.Source)
	}
	return nil
}
