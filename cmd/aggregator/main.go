package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ewangclarkson/news-aggregator-app/internal/app"
	"github.com/ewangclarkson/news-aggregator-app/internal/config"
	"github.com/ewangclarkson/news-aggregator-app/internal/logger"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "aggregator",
		Short:         "News aggregator: provider ingestion and article search",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to config.yaml (defaults to CONFIG_PATH or ./config.yaml)")
	root.PersistentFlags().Bool("json", false, "Output machine-readable JSON")

	root.AddCommand(serveCmd())
	root.AddCommand(fetchCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(searchCmd())
	root.AddCommand(triggerCmd())
	return root
}

// loadConfig читает конфигурацию и настраивает логгер.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.Env, cfg.LogLevel)
	return cfg, nil
}

// withApp собирает приложение, выполняет fn и освобождает ресурсы.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

// writeOutput печатает data как JSON при --json, иначе вызывает humanFn.
func writeOutput(cmd *cobra.Command, data any, humanFn func()) {
	if jsonMode, _ := cmd.Flags().GetBool("json"); jsonMode {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		_ = enc.Encode(data)
		return
	}
	humanFn()
}
