// Command indexer builds or extends the document index and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/akolanti/FinBot/internal/bootstrap"
	"github.com/akolanti/FinBot/internal/config"
	"github.com/akolanti/FinBot/pkg/logger_i"
	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config (default $CONFIG_FILE or config/config.yaml)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if err := logger_i.Init(cfg.Env, cfg.Logging.Level); err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer logger_i.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		fmt.Fprintln(os.Stderr, "indexer:", err)
		stop()
		logger_i.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	stats, err := app.BuildIndex(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("documents: %d\npages: %d\nchunks: %d\nadded: %d\nskipped: %d\ncreated: %t\n",
		stats.Documents, stats.Pages, stats.Chunks, stats.Added, stats.Skipped, stats.Created)
	return nil
}
