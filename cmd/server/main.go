package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"migration-auditor/internal/audit"
	"migration-auditor/internal/catalog"
	"migration-auditor/internal/config"
	"migration-auditor/internal/logging"
)

func main() {
	var (
		configPath string
		addr       string
	)

	rootCmd := &cobra.Command{
		Use:          "auditor-server",
		Short:        "迁移校验运行服务",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cfg)
		},
	}
	rootCmd.Flags().StringVar(&configPath, "config", "", "配置文件 (YAML)")
	rootCmd.Flags().StringVar(&addr, "addr", ":8080", "监听地址")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve(cfg *config.Config) error {
	log := logging.NewWithComponent(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty}, "server")

	store, err := catalog.Load(cfg.Catalog)
	if err != nil {
		return fmt.Errorf("加载目录失败: %w", err)
	}

	a := audit.New(cfg, store, log)
	defer a.Close()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           NewServer(a, log).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	fmt.Printf("🚀 Migration Auditor Server\n")
	fmt.Printf("📡 服务地址: http://localhost%s\n", cfg.Server.Addr)
	fmt.Printf("📊 目录版本 %s，POST /api/runs 发起校验\n\n", store.Version())

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
