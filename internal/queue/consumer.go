/**
 * Queue consumer for asynchronous document processing.
 *
 * Consumes document jobs from Redis via Asynq. Each job runs the full
 * ingestion pipeline under a timeout context and records status transitions
 * (processing, completed, failed) in PostgreSQL.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/phuslu/log"

	pipelineerrors "github.com/MuthuAjay/contracts-v3/internal/errors"
	"github.com/MuthuAjay/contracts-v3/internal/logging"
	"github.com/MuthuAjay/contracts-v3/internal/pipeline"
	"github.com/MuthuAjay/contracts-v3/internal/storage"
)

// TaskProcessDocument is the task type for document ingestion jobs.
const TaskProcessDocument = "document:process"

// JobPayload is the wire format of one queued document job.
type JobPayload struct {
	JobID    string                 `json:"job_id"`
	FilePath string                 `json:"file_path"`
	Filename string                 `json:"filename"`
	FileSize int64                  `json:"file_size,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ConsumerConfig holds consumer configuration.
type ConsumerConfig struct {
	RedisURL    string
	QueueName   string
	Concurrency int

	// ProcessingTimeout bounds one job end to end. Zero defaults to five
	// minutes.
	ProcessingTimeout time.Duration
}

// Consumer pulls document jobs off the queue and runs them through the
// pipeline.
type Consumer struct {
	client   *asynq.Client
	server   *asynq.Server
	mux      *asynq.ServeMux
	pipeline *pipeline.Pipeline
	jobs     *storage.PostgresClient
	cfg      ConsumerConfig
	logger   log.Logger
}

// NewConsumer creates a queue consumer.
func NewConsumer(cfg ConsumerConfig, pipe *pipeline.Pipeline, jobs *storage.PostgresClient) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("redis URL is required")
	}
	if cfg.QueueName == "" {
		return nil, fmt.Errorf("queue name is required")
	}
	if pipe == nil {
		return nil, fmt.Errorf("pipeline is required")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	logger := logging.New("queue-consumer")

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				return retryDelay(n)
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error().Err(err).Str("task", task.Type()).Msg("task processing error")
			}),
		},
	)

	c := &Consumer{
		client:   asynq.NewClient(redisOpt),
		server:   server,
		mux:      asynq.NewServeMux(),
		pipeline: pipe,
		jobs:     jobs,
		cfg:      cfg,
		logger:   logger,
	}
	c.mux.HandleFunc(TaskProcessDocument, c.handleProcessDocument)

	return c, nil
}

// Enqueue submits a document job to the queue.
func (c *Consumer) Enqueue(ctx context.Context, payload *JobPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal job payload: %w", err)
	}

	task := asynq.NewTask(TaskProcessDocument, data)
	if _, err := c.client.EnqueueContext(ctx, task, asynq.Queue(c.cfg.QueueName)); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", payload.JobID, err)
	}
	return nil
}

// Start runs the consumer in the background.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info().Int("concurrency", c.cfg.Concurrency).Str("queue", c.cfg.QueueName).Msg("starting queue consumer")

	go func() {
		if err := c.server.Run(c.mux); err != nil {
			c.logger.Error().Err(err).Msg("queue consumer stopped")
		}
	}()

	return nil
}

// Stop shuts the consumer down gracefully.
func (c *Consumer) Stop(ctx context.Context) error {
	c.logger.Info().Msg("stopping queue consumer")

	c.server.Shutdown()
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("failed to close queue client: %w", err)
	}
	return nil
}

// handleProcessDocument runs one queued job through the pipeline.
func (c *Consumer) handleProcessDocument(ctx context.Context, task *asynq.Task) error {
	start := time.Now()

	var payload JobPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal job payload: %w", err)
	}

	c.logger.Info().Str("job", payload.JobID).Str("file", payload.Filename).Msg("processing queued document")

	c.updateStatus(ctx, &storage.JobUpdate{
		JobID:    payload.JobID,
		Status:   "processing",
		Metadata: jobMetadata(&payload),
	})

	timeout := c.cfg.ProcessingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	processCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := c.pipeline.ProcessAndIndex(processCtx, payload.FilePath)
	duration := time.Since(start)

	if err != nil {
		if processCtx.Err() == context.DeadlineExceeded {
			timeoutErr := pipelineerrors.NewProcessingTimeoutError(payload.JobID, timeout, err)
			c.updateStatus(ctx, &storage.JobUpdate{
				JobID:        payload.JobID,
				Status:       "failed",
				ErrorCode:    string(pipelineerrors.ErrorProcessingTimeout),
				ErrorMessage: timeoutErr.Error(),
				Metadata:     jobMetadata(&payload),
			})
			return fmt.Errorf("processing timeout: %w", timeoutErr)
		}

		c.logger.Warn().Err(err).Str("job", payload.JobID).Dur("duration", duration).Msg("job failed")
		c.updateStatus(ctx, &storage.JobUpdate{
			JobID:            payload.JobID,
			Status:           "failed",
			ProcessingTimeMs: duration.Milliseconds(),
			ErrorMessage:     err.Error(),
			Metadata:         jobMetadata(&payload),
		})
		return fmt.Errorf("document processing failed: %w", err)
	}

	c.logger.Info().Str("job", payload.JobID).Str("collection", result.CollectionName).Int("chunks", result.ChunksIndexed).Dur("duration", duration).Msg("job completed")

	c.updateStatus(ctx, &storage.JobUpdate{
		JobID:            payload.JobID,
		Status:           "completed",
		ProcessingTimeMs: duration.Milliseconds(),
		CollectionName:   result.CollectionName,
		Metadata:         jobMetadata(&payload),
	})

	return nil
}

// updateStatus records a job transition, logging rather than failing the
// job when the write does not succeed.
func (c *Consumer) updateStatus(ctx context.Context, update *storage.JobUpdate) {
	if c.jobs == nil {
		return
	}
	if err := c.jobs.UpdateJobStatus(ctx, update); err != nil {
		c.logger.Warn().Err(err).Str("job", update.JobID).Str("status", update.Status).Msg("failed to update job status")
	}
}

// retryDelay grows exponentially per retry, capped at one minute.
func retryDelay(n int) time.Duration {
	delay := time.Duration(5*(1<<uint(n))) * time.Second
	if delay > 60*time.Second {
		delay = 60 * time.Second
	}
	return delay
}

func jobMetadata(payload *JobPayload) map[string]interface{} {
	metadata := map[string]interface{}{
		"filename":  payload.Filename,
		"file_size": payload.FileSize,
	}
	for k, v := range payload.Metadata {
		metadata[k] = v
	}
	return metadata
}
