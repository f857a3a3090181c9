package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	httpadapter "github.com/lexhub/legal-retrieval/internal/adapters/http"
	"github.com/lexhub/legal-retrieval/internal/bootstrap"
	"github.com/lexhub/legal-retrieval/internal/config"
	"github.com/lexhub/legal-retrieval/internal/observability/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("retrieval-api", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("startup_failed", "error", err)
		os.Exit(1)
	}
	slog.Info("snapshot_loaded",
		"snapshot", app.Snapshot.Info().Name,
		"chunks", app.Snapshot.Info().ChunkCount,
		"embedding_model", app.Snapshot.Info().EmbeddingModel,
	)

	router := httpadapter.NewRouter(app.Retriever, app.Snapshot, app.Metrics, cfg).Handler()
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("api_server_error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_error", "error", err)
	}
}
