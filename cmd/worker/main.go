/**
 * Contract processing worker - main entry point.
 *
 * Consumes document jobs from Redis, runs them through the processing
 * pipeline (text extraction, OCR fallback, chunking, embedding) and
 * records results in PostgreSQL and Qdrant.
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

	"github.com/MuthuAjay/contracts-v3/internal/config"
	"github.com/MuthuAjay/contracts-v3/internal/embedding"
	"github.com/MuthuAjay/contracts-v3/internal/ocr"
	"github.com/MuthuAjay/contracts-v3/internal/pipeline"
	"github.com/MuthuAjay/contracts-v3/internal/processor"
	"github.com/MuthuAjay/contracts-v3/internal/queue"
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

	log.Printf("Contract worker starting: Redis=%s, Qdrant=%s, Workers=%d",
		cfg.RedisURL, cfg.QdrantURL, cfg.WorkerConcurrency)

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

	consumer, err := queue.NewConsumer(queue.ConsumerConfig{
		RedisURL:          cfg.RedisURL,
		QueueName:         "contracts:jobs",
		Concurrency:       cfg.WorkerConcurrency,
		ProcessingTimeout: time.Duration(cfg.ProcessingTimeout) * time.Millisecond,
	}, pipe, store.Postgres)
	if err != nil {
		log.Fatalf("Failed to initialize queue consumer: %v", err)
	}

	ctx := context.Background()
	if err := consumer.Start(ctx); err != nil {
		log.Fatalf("Failed to start queue consumer: %v", err)
	}
	log.Printf("Worker ready, waiting for jobs (concurrency=%d)", cfg.WorkerConcurrency)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigChan
	log.Printf("Received signal %v, shutting down", sig)

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := consumer.Stop(shutdownCtx); err != nil {
		log.Printf("Error stopping queue consumer: %v", err)
	}
	if err := store.Close(); err != nil {
		log.Printf("Error closing storage: %v", err)
	}
	log.Printf("Shutdown complete")
}
