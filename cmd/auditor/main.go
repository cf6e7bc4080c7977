package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"migration-auditor/internal/config"
)

// 全局参数，只有显式指定的才覆盖配置
var (
	configPath   string
	catalogPath  string
	mappingPath  string
	reportsDir   string
	timeout      time.Duration
	concurrency  int
	rateLimit    float64
	logLevel     string
	recordSource string
	dsn          string
	contentURL   string
	markdown     bool
	noInline     bool
	noSave       bool
	sampleSize   int
	testUserID   int
	testTeamID   int
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "auditor",
		Short:         "迁移后端校验工具",
		Long:          "探测迁移后的表、函数、端点、外键引用和 webhook，输出带分组统计的报告",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "配置文件 (YAML)")
	pf.StringVar(&catalogPath, "catalog", "", "目录文件")
	pf.StringVar(&mappingPath, "mapping", "", "函数-端点映射文件")
	pf.StringVar(&reportsDir, "reports-dir", "", "报告输出目录")
	pf.DurationVar(&timeout, "timeout", 0, "单次探测超时")
	pf.IntVar(&concurrency, "concurrency", 0, "并发探测数 (1-20)")
	pf.Float64Var(&rateLimit, "rate-limit", 0, "每秒最多探测数，0 不限速")
	pf.StringVar(&logLevel, "log-level", "", "日志级别 (debug/info/warn/error)")
	pf.StringVar(&recordSource, "record-source", "", "记录源 (http/mysql/sqlserver)")
	pf.StringVar(&dsn, "dsn", "", "mysql/sqlserver 连接串")
	pf.StringVar(&contentURL, "content-url", "", "表内容 API 地址，含 {table_id}")
	pf.BoolVar(&markdown, "markdown", false, "同时输出 Markdown 报告")
	pf.BoolVar(&noInline, "no-inline-resolve", false, "映射文件缺失时不现场解析")
	pf.BoolVar(&noSave, "no-save", false, "不写报告文件")
	pf.IntVar(&sampleSize, "sample", 0, "外键校验每条边采样行数")
	pf.IntVar(&testUserID, "test-user-id", 0, "种子测试用户 id")
	pf.IntVar(&testTeamID, "test-team-id", 0, "种子测试团队 id")

	rootCmd.AddCommand(
		tablesCmd(),
		functionsCmd(),
		endpointsCmd(),
		referencesCmd(),
		webhooksCmd(),
		resolveCmd(),
		graphCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		if code, ok := err.(exitCode); ok {
			os.Exit(int(code))
		}
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(2)
	}
}

// exitCode 运行完成但有失败
type exitCode int

func (e exitCode) Error() string {
	return fmt.Sprintf("exit status %d", int(e))
}

// loadConfig 配置文件 + 环境变量，再叠加显式指定的命令行参数
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	set("catalog", func() { cfg.Catalog = catalogPath })
	set("mapping", func() { cfg.Mapping = mappingPath })
	set("reports-dir", func() { cfg.ReportsDir = reportsDir })
	set("timeout", func() { cfg.Probe.Timeout = timeout })
	set("concurrency", func() { cfg.Probe.Concurrency = concurrency })
	set("rate-limit", func() { cfg.Probe.RateLimit = rateLimit })
	set("log-level", func() { cfg.Log.Level = logLevel })
	set("record-source", func() { cfg.Records.Source = recordSource })
	set("dsn", func() { cfg.Records.DSN = dsn })
	set("content-url", func() { cfg.Records.ContentURL = contentURL })
	set("markdown", func() { cfg.Markdown = markdown })
	set("no-inline-resolve", func() { cfg.InlineResolve = !noInline })
	set("sample", func() { cfg.Reference.SampleSize = sampleSize })
	set("test-user-id", func() { cfg.Identity.UserID = testUserID })
	set("test-team-id", func() { cfg.Identity.TeamID = testTeamID })

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
