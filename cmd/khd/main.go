// File path: cmd/khd/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/corpusworks/knowledgehub/internal/api"
	"github.com/corpusworks/knowledgehub/internal/common"
	"github.com/corpusworks/knowledgehub/internal/data/orchestrator"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		common.Logger().Warn("khd: could not load .env file", "error", err)
	}
	logger := common.Logger()

	addr := flag.String("addr", ":8080", "listen address")
	dbPath := flag.String("db", "", "sqlite database path (overrides KHUB_SQLITE_PATH)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch, err := orchestrator.New(ctx, orchestrator.Config{SQLitePath: *dbPath})
	if err != nil {
		logger.Error("khd: startup failed", "error", err)
		os.Exit(1)
	}
	defer orch.Close()

	server := &http.Server{
		Addr:              *addr,
		Handler:           api.NewServer(orch).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("khd: listening", "addr", *addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("khd: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("khd: shutdown error", "error", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("khd: server error", "error", err)
			os.Exit(1)
		}
	}
	logger.Info("khd: stopped")
}
