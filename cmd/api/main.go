// @title           FinBot API
// @version         1.0
// @description     Financial question answering over indexed documents, with a web search fallback.
// @termsOfService  http://swagger.io/terms/

// @contact.name    FinBot maintainers

// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:3000
// @BasePath  /
// @schemes   http https
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/akolanti/FinBot/internal/bootstrap"
	"github.com/akolanti/FinBot/internal/config"
	"github.com/akolanti/FinBot/internal/handlers"
	"github.com/akolanti/FinBot/internal/mcpserver"
	"github.com/akolanti/FinBot/internal/server"
	"github.com/akolanti/FinBot/pkg/logger_i"
	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config (default $CONFIG_FILE or config/config.yaml)")
	mcpStdio := flag.Bool("mcp-stdio", false, "serve the MCP tool on stdin/stdout instead of HTTP")
	flag.Parse()

	if err := run(*configPath, *mcpStdio); err != nil {
		os.Exit(1)
	}
}

func run(configPath string, mcpStdio bool) error {
	// a missing .env is fine, the environment may already be set
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return err
	}
	if err := logger_i.Init(cfg.Env, cfg.Logging.Level); err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		return err
	}
	defer logger_i.Sync()
	logger := logger_i.NewLogger("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		logger.Error("One or more external services failed to initialize. Shutting down.", "error", err)
		return err
	}
	defer app.Close()

	stats, err := app.BuildIndex(ctx)
	if err != nil {
		logger.Error("Could not build the index", "error", err)
		return err
	}
	logger.Info("Index ready", "documents", stats.Documents, "chunks", stats.Chunks, "added", stats.Added, "skipped", stats.Skipped, "created", stats.Created)

	mcp := mcpserver.New(app.Rag)
	if mcpStdio {
		logger.Info("Serving MCP over stdio")
		if err := mcpserver.RunStdio(ctx, mcp); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("MCP server stopped", "error", err)
			return err
		}
		return nil
	}

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	app.Pool.Start(workerCtx)

	h := handlers.New(app.Rag, app.Jobs, cfg.Server.UploadDir)
	router := server.NewRouter(cfg.Server, h, mcpserver.HTTPHandler(mcp))
	err = server.New(cfg, router).Run(ctx)

	// workers finish their current job before the stores close
	stopWorkers()
	app.Pool.Wait()
	if n := app.Pool.Drain(context.Background()); n > 0 {
		logger.Warn("Failed jobs still queued at shutdown", "count", n)
	}
	if err != nil {
		logger.Error("Server crashed", "error", err, "addr", cfg.Server.ListenAddr)
		return err
	}
	logger.Info("Server stopped")
	return nil
}
