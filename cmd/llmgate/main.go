// llmgate is a local HTTP/WebSocket gateway in front of an LLM CLI and a
// direct HTTP completion path, with budgeted, policy-gated request
// admission. This binary wires every package together and runs the
// server until an interrupt triggers graceful shutdown.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/tarsygate/llmgate/pkg/agentic"
	"github.com/tarsygate/llmgate/pkg/api"
	"github.com/tarsygate/llmgate/pkg/config"
	"github.com/tarsygate/llmgate/pkg/directpath"
	"github.com/tarsygate/llmgate/pkg/ledger"
	"github.com/tarsygate/llmgate/pkg/mcp"
	"github.com/tarsygate/llmgate/pkg/policy"
	"github.com/tarsygate/llmgate/pkg/registry"
	"github.com/tarsygate/llmgate/pkg/router"
	"github.com/tarsygate/llmgate/pkg/tracker"
	"github.com/tarsygate/llmgate/pkg/workerpool"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("could not load .env file, continuing with existing environment", "path", envPath, "error", err)
	} else {
		slog.Info("loaded environment", "path", envPath)
	}

	if err := run(*configDir); err != nil {
		slog.Error("fatal startup error", "error", err)
		os.Exit(1)
	}
}

func run(configDir string) error {
	cfg, err := config.Initialize(configDir)
	if err != nil {
		return err
	}

	var level slog.Level
	_ = level.UnmarshalText([]byte(cfg.System.LogLevel))
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dsn := os.Getenv("LLMGATE_DATABASE_DSN")
	store, err := ledger.Open(ctx, dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	reg := registry.New(cfg.Registry.AgentsRoot, cfg.Registry.SkillsRoot, cfg.Registry.CacheTTL, slog.Default())

	if len(cfg.MCPServers) > 0 {
		mcpRegistry := config.NewMCPServerRegistry(cfg.MCPServers)
		mcpClient := mcp.NewClient(mcpRegistry)
		serverIDs := mcpRegistry.ServerIDs()
		if err := mcpClient.Initialize(ctx, serverIDs); err != nil {
			slog.Warn("mcp initialization error", "error", err)
		}
		defer mcpClient.Close()
		reg.AttachMCP(mcpClient, serverIDs)
	}

	reg.Refresh()

	tr := tracker.New(cfg.Pricing)

	wp := workerpool.New(cfg.WorkerPool, tr, slog.Default())
	defer wp.Shutdown(cfg.WorkerPool.KillGracePeriod + 5*time.Second)

	var direct *directpath.Client
	if os.Getenv(cfg.DirectPath.APIKeyEnv) != "" {
		direct, err = directpath.New(cfg.DirectPath, cfg.Pricing, tr)
		if err != nil {
			slog.Warn("direct path disabled", "error", err)
			direct = nil
		}
	} else {
		slog.Info("direct path disabled: no api key configured", "env_var", cfg.DirectPath.APIKeyEnv)
	}

	ag := agentic.New(wp, reg, cfg.Agentic)
	rt := router.New(router.Thresholds{
		LowWaterTokens:  cfg.Router.LowWaterTokens,
		MidWaterTokens:  cfg.Router.MidWaterTokens,
		BigCtxThreshold: cfg.Router.BigCtxThreshold,
		ShortLenBytes:   cfg.Router.ShortLenBytes,
	})
	pol := policy.New(store, reg)

	srv := api.NewServer(cfg, store, pol, rt, wp, direct, ag, reg, tr)
	srv.SetReady(true)

	retentionCron := startRetentionCron(store, cfg.Retention)
	defer retentionCron.Stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", cfg.System.ListenAddr)
		if err := srv.Start(cfg.System.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining")
	case err := <-errCh:
		return err
	}

	srv.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	return nil
}

// startRetentionCron schedules the retention sweep (stale rate-limit
// windows today, with room for other sweepers as they're added) on
// cfg.CleanupInterval using the same cron scheduler the automation
// triggers use to compute their own next-run times, rather than a
// hand-rolled ticker loop. Returns the running scheduler so the caller
// can Stop() it on shutdown.
func startRetentionCron(store *ledger.Store, cfg config.RetentionConfig) *cron.Cron {
	c := cron.New()
	spec := fmt.Sprintf("@every %s", cfg.CleanupInterval)
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		n, err := store.GCStaleRateWindows(ctx, cfg.RateWindowHorizon)
		if err != nil {
			slog.Warn("rate window gc failed", "error", err)
			return
		}
		if n > 0 {
			slog.Info("rate window gc", "removed", n)
		}
	})
	if err != nil {
		slog.Warn("invalid retention schedule, gc disabled", "spec", spec, "error", err)
		return c
	}
	c.Start()
	return c
}
