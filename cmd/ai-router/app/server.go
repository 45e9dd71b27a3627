// Package app provides the ai-router server application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kart-io/ai-router/cmd/ai-router/app/options"
	"github.com/kart-io/ai-router/internal/airouter"
	"github.com/kart-io/ai-router/pkg/infra/app"
)

const commandDesc = `AI Router

Routes free-form user messages to registered business modules.

This server provides:
  - LLM intent classification with confidence tiers
  - Per-user rate limiting and a provider circuit breaker
  - Short-lived per-user dialogue context
  - A lexical knowledge base with document ingestion and cached answers`

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	return app.NewApp(
		app.WithName(airouter.Name),
		app.WithShortDescription("AI request router"),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)
}

func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx := setupSignalContext()

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		return server.Run(ctx)
	}
}

// setupSignalContext 收到 SIGINT/SIGTERM 时取消，第二次信号直接退出。
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
