package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"migration-auditor/internal/audit"
	"migration-auditor/internal/catalog"
	"migration-auditor/internal/fileutil"
	"migration-auditor/internal/logging"
	"migration-auditor/internal/renderer"
)

// filterFlags 注册过滤参数，names 为该命令支持的字段
func filterFlags(cmd *cobra.Command, f *catalog.Filter, names ...string) {
	for _, name := range names {
		switch name {
		case "table":
			cmd.Flags().StringVar(&f.Table, "table", "", "按表名过滤")
		case "category":
			cmd.Flags().StringVar(&f.Category, "category", "", "按分类过滤")
		case "api-group":
			cmd.Flags().StringVar(&f.APIGroup, "api-group", "", "按 API 分组过滤")
		case "integration":
			cmd.Flags().StringVar(&f.Integration, "integration", "", "按集成过滤")
		case "domain":
			cmd.Flags().StringVar(&f.Domain, "domain", "", "按业务域过滤")
		case "relationship":
			cmd.Flags().StringVar(&f.Relationship, "relationship", "", "按关系过滤，如 user_id->user")
		case "group":
			cmd.Flags().StringVar(&f.Group, "group", "", "按预期行为分组过滤")
		}
	}
}

func tablesCmd() *cobra.Command {
	var f catalog.Filter
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "校验表可访问性",
		RunE:  func(cmd *cobra.Command, _ []string) error { return runValidation(cmd, catalog.KindTable, f) },
	}
	filterFlags(cmd, &f, "table", "category")
	return cmd
}

func functionsCmd() *cobra.Command {
	var f catalog.Filter
	cmd := &cobra.Command{
		Use:   "functions",
		Short: "通过映射的端点校验后端函数",
		RunE:  func(cmd *cobra.Command, _ []string) error { return runValidation(cmd, catalog.KindFunction, f) },
	}
	filterFlags(cmd, &f, "category", "domain")
	return cmd
}

func endpointsCmd() *cobra.Command {
	var f catalog.Filter
	cmd := &cobra.Command{
		Use:   "endpoints",
		Short: "校验端点可用性",
		RunE:  func(cmd *cobra.Command, _ []string) error { return runValidation(cmd, catalog.KindEndpoint, f) },
	}
	filterFlags(cmd, &f, "api-group", "category")
	return cmd
}

func referencesCmd() *cobra.Command {
	var f catalog.Filter
	cmd := &cobra.Command{
		Use:   "references",
		Short: "外键孤儿检测",
		RunE:  func(cmd *cobra.Command, _ []string) error { return runValidation(cmd, catalog.KindReference, f) },
	}
	filterFlags(cmd, &f, "table", "domain", "relationship")
	return cmd
}

func webhooksCmd() *cobra.Command {
	var f catalog.Filter
	cmd := &cobra.Command{
		Use:   "webhooks",
		Short: "校验 webhook 接收端",
		RunE:  func(cmd *cobra.Command, _ []string) error { return runValidation(cmd, catalog.KindWebhook, f) },
	}
	filterFlags(cmd, &f, "integration", "api-group", "group")
	return cmd
}

// setup 加载配置和目录，创建审计器
func setup(cmd *cobra.Command) (*audit.Auditor, *renderer.Console, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	log := logging.NewWithComponent(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty}, "auditor")

	store, err := catalog.Load(cfg.Catalog)
	if err != nil {
		return nil, nil, fmt.Errorf("加载目录失败: %w", err)
	}
	log.Debug().Str("catalog", cfg.Catalog).Str("version", store.Version()).Msg("catalog loaded")

	return audit.New(cfg, store, log), renderer.NewConsole(os.Stdout, renderer.DefaultBatchEvery), nil
}

func runValidation(cmd *cobra.Command, kind catalog.Kind, filter catalog.Filter) error {
	a, console, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console.Start(kind, countItems(a.Store(), kind, filter), filter)
	r, err := a.Run(ctx, kind, filter, console.Progress)
	if err != nil {
		return err
	}

	var savedTo string
	if !noSave {
		saved, err := a.Persist(r)
		if err != nil {
			return err
		}
		savedTo = saved.JSON
		if saved.Markdown != "" {
			savedTo += ", " + saved.Markdown
		}
	}
	console.Summary(r, savedTo)

	if code := r.ExitCode(); code != 0 {
		return exitCode(code)
	}
	return nil
}

func countItems(store *catalog.Store, kind catalog.Kind, f catalog.Filter) int {
	switch kind {
	case catalog.KindTable:
		return len(store.ListTables(f))
	case catalog.KindFunction:
		return len(store.ActiveFunctions(f))
	case catalog.KindEndpoint:
		return len(store.FilterEndpoints(f))
	case catalog.KindReference:
		return len(store.ListReferenceEdges(f))
	case catalog.KindWebhook:
		return len(store.ListWebhooks(f))
	}
	return 0
}

func resolveCmd() *cobra.Command {
	var f catalog.Filter
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "生成函数-端点映射文件",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, _, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Println("🔗 解析函数 -> 端点映射...")
			_, stats, err := a.Resolve(f)
			if err != nil {
				return err
			}

			fmt.Printf("✓ %d 个函数，%d 个找到测试端点，%d 个不可测，%d 个已归档排除\n",
				stats.Total, stats.Resolved, stats.Untestable, stats.Archived)

			strategies := make([]string, 0, len(stats.ByStrategy))
			for name := range stats.ByStrategy {
				strategies = append(strategies, name)
			}
			sort.Strings(strategies)
			for _, name := range strategies {
				fmt.Printf("  - %s: %d\n", name, stats.ByStrategy[name])
			}
			return nil
		},
	}
	filterFlags(cmd, &f, "category", "domain")
	return cmd
}

func graphCmd() *cobra.Command {
	var (
		f      catalog.Filter
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "导出外键引用图 (JSON + Mermaid)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, _, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			g := a.ReferenceGraph(f)
			data, err := g.ToJSON()
			if err != nil {
				return err
			}

			jsonPath := filepath.Join(outDir, "references.json")
			if err := fileutil.WriteFileAtomic(jsonPath, data, 0o644); err != nil {
				return err
			}
			fmt.Printf("✓ %s\n", jsonPath)

			mmdPath := filepath.Join(outDir, "references.mmd")
			if err := fileutil.WriteFileAtomic(mmdPath, []byte(renderer.NewMermaidRenderer().Render(g)), 0o644); err != nil {
				return err
			}
			fmt.Printf("✓ %s\n", mmdPath)
			return nil
		},
	}
	filterFlags(cmd, &f, "table", "domain", "relationship")
	cmd.Flags().StringVar(&outDir, "output", "./output", "输出目录")
	return cmd
}
