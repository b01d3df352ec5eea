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

	"go.uber.org/zap/zapcore"

	"github.com/looplj/harmonygate/config"
	"github.com/looplj/harmonygate/engine"
	"github.com/looplj/harmonygate/engine/reference"
	"github.com/looplj/harmonygate/internal/log"
	"github.com/looplj/harmonygate/mediator"
	"github.com/looplj/harmonygate/metrics"
	"github.com/looplj/harmonygate/recovery"
	"github.com/looplj/harmonygate/server"
	"github.com/looplj/harmonygate/transformer"
	"github.com/looplj/harmonygate/transformer/anthropic"
	"github.com/looplj/harmonygate/transformer/openai"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			fmt.Println("harmonygate (dev build)")
			return
		case "help", "--help", "-h":
			showHelp()
			return
		}
	}

	if err := run(); err != nil {
		log.Error(context.Background(), "gateway exited with error", log.Cause(err))
		os.Exit(1)
	}
}

func showHelp() {
	fmt.Println("Harmony Inference Gateway")
	fmt.Println("")
	fmt.Println("Usage:")
	fmt.Println("  gateway                 Start the server (default)")
	fmt.Println("  gateway version         Show version")
	fmt.Println("  gateway help            Show this help message")
}

func run() error {
	cfg := config.Load()
	setLogLevel(cfg.LogLevel)

	tokenizer := reference.New()
	eng := reference.NewEngine(tokenizer)
	lock := engine.NewLock()
	tracker := metrics.NewTracker()

	if err := tracker.StartPeriodicFlush(context.Background(), cfg.MetricsSummaryCron); err != nil {
		return fmt.Errorf("gateway: start metrics flush: %w", err)
	}

	newMediator := func() (*mediator.Mediator, error) {
		return mediator.New(mediator.Config{
			Tokenizer:               tokenizer,
			Engine:                  eng,
			Lock:                    lock,
			Metrics:                 tracker,
			RetryPolicy:             recovery.DefaultPolicy(),
			MemorySafetyMarginBytes: cfg.EngineMemorySafetyMarginBytes,
		})
	}

	dialects := map[string]transformer.Dialect{
		"/v1/chat/completions": openai.New(cfg.ModelName, cfg.KnowledgeCutoff, cfg.CurrentDate),
		"/v1/messages":         anthropic.New(cfg.ModelName, cfg.KnowledgeCutoff, cfg.CurrentDate),
	}

	srv := server.New(cfg.ModelName, newMediator, eng, dialects)

	httpServer := &http.Server{
		Addr:    cfg.GatewayAddr,
		Handler: srv.Handler(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)

	go func() {
		log.Info(context.Background(), "gateway listening", log.String("addr", cfg.GatewayAddr))

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}

		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := tracker.Stop(shutdownCtx); err != nil {
			log.Error(shutdownCtx, "metrics flush shutdown failed", log.Cause(err))
		}

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("gateway: shutdown: %w", err)
		}

		return <-errCh
	case err := <-errCh:
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if stopErr := tracker.Stop(stopCtx); stopErr != nil {
			log.Error(stopCtx, "metrics flush shutdown failed", log.Cause(stopErr))
		}

		return err
	}
}

func setLogLevel(level string) {
	var zl zapcore.Level
	if err := zl.UnmarshalText([]byte(level)); err != nil {
		zl = zapcore.InfoLevel
	}

	log.SetLevel(zl)
}
