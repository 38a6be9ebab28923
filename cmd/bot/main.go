package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"parley.app/bot/common/id"
	"parley.app/bot/common/llm"
	"parley.app/bot/common/logger"
	"parley.app/bot/common/otel"
	"parley.app/bot/core/config"
	"parley.app/bot/internal/classify"
	"parley.app/bot/internal/dispatch"
	httpapi "parley.app/bot/internal/http"
	"parley.app/bot/internal/platform/discord"
	"parley.app/bot/internal/relay"
	"parley.app/bot/internal/transcript"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		// Can't use slog yet — OTel failed before logger setup
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "parley starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	gateway, err := llm.New(llm.Config{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.Model,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create completion client", "error", err)
		os.Exit(1)
	}

	session, err := discord.NewSession(ctx, discord.Config{
		Token:        cfg.Discord.Token,
		Channels:     cfg.Discord.Channels,
		PollInterval: cfg.Discord.PollInterval,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create discord session", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "discord session ready",
		"bot", session.Identity().Username,
		"channels", len(cfg.Discord.Channels))

	builder := transcript.NewBuilder(transcript.Prompts{
		FactCheck: cfg.Relay.FactCheckPrompt,
		Assistant: cfg.Relay.AssistantPrompt,
	}, cfg.Relay.IgnorePrefix)

	dispatcher := dispatch.New(session, cfg.Relay.ChunkSize, cfg.Relay.TypingInterval)

	orch := relay.New(
		session,
		gateway,
		builder,
		dispatcher,
		classify.NewRules(cfg.Relay.IgnorePrefix, cfg.Discord.Channels),
		relay.HistoryLimits{
			FactCheck: cfg.Relay.HistoryFactCheck,
			Thread:    cfg.Relay.HistoryThread,
			UserScan:  cfg.Relay.HistoryUserScan,
		},
	)

	go session.Run(ctx)
	go orch.Run(ctx)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := httpapi.NewRouter(orch, httpapi.RouterConfig{
		ServiceName: cfg.OTel.ServiceName,
		OTelEnabled: cfg.OTel.Enabled(),
		Model:       gateway.Model(),
	})
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "health server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "health server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "health server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

const banner = `
██████╗  █████╗ ██████╗ ██╗     ███████╗██╗   ██╗
██╔══██╗██╔══██╗██╔══██╗██║     ██╔════╝╚██╗ ██╔╝
██████╔╝███████║██████╔╝██║     █████╗   ╚████╔╝
██╔═══╝ ██╔══██║██╔══██╗██║     ██╔══╝    ╚██╔╝
██║     ██║  ██║██║  ██║███████╗███████╗   ██║
╚═╝     ╚═╝  ╚═╝╚═╝  ╚═╝╚══════╝╚══════╝   ╚═╝
`
