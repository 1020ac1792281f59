/**
 * Contract analysis API server - main entry point.
 *
 * Serves the upload and analysis HTTP endpoints. Uploads run the processing
 * pipeline synchronously; analysis retrieves indexed context from Qdrant and
 * runs the Anthropic-backed agents.
 */

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/MuthuAjay/contracts-v3/internal/agents"
	"github.com/MuthuAjay/contracts-v3/internal/api"
	"github.com/MuthuAjay/contracts-v3/internal/config"
	"github.com/MuthuAjay/contracts-v3/internal/embedding"
	"github.com/MuthuAjay/contracts-v3/internal/ocr"
	"github.com/MuthuAjay/contracts-v3/internal/pipeline"
	"github.com/MuthuAjay/contracts-v3/internal/processor"
	"github.com/MuthuAjay/contracts-v3/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env not found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Contract API server starting: Addr=%s, Qdrant=%s", cfg.HTTPAddr, cfg.QdrantURL)

	embedder, err := embedding.NewClient(cfg.EmbeddingAPIKey, cfg.EmbeddingDimensions)
	if err != nil {
		log.Fatalf("Failed to initialize embedding client: %v", err)
	}

	store, err := storage.NewStore(cfg.DatabaseURL, cfg.QdrantURL, embedder)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	recognizer, err := ocr.NewEngine(ocr.Config{
		Language:             cfg.Processing.PDF.Language,
		OrientationDetection: true,
		Timeout:              cfg.Processing.PDF.OCRTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to initialize OCR engine: %v", err)
	}
	defer recognizer.Close()

	handler, err := processor.NewHandler(cfg.Processing, recognizer, cfg.BatchWorkers)
	if err != nil {
		log.Fatalf("Failed to initialize document handler: %v", err)
	}

	pipe := pipeline.New(handler, store)

	runner, err := agents.NewAnthropicRunner(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	if err != nil {
		log.Fatalf("Failed to initialize analysis runner: %v", err)
	}
	analyzer := agents.NewAnalyzer(runner, store.Vectors, store.Postgres)

	server := api.NewServer(api.ServerConfig{
		Addr:        cfg.HTTPAddr,
		MaxFileSize: cfg.MaxFileSize,
	}, pipe, analyzer, store.Postgres)

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to parse Redis URL: %v", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	server.AddReadinessCheck("database", store.Postgres.Ping)
	server.AddReadinessCheck("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigChan:
		log.Printf("Received signal %v, shutting down", sig)
	case err := <-errChan:
		if err != nil {
			log.Fatalf("HTTP server failed: %v", err)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Printf("Error stopping HTTP server: %v", err)
	}
	if err := store.Close(); err != nil {
		log.Printf("Error closing storage: %v", err)
	}
	log.Printf("Shutdown complete")
}
