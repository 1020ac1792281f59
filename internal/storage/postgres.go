/**
 * PostgreSQL client for job persistence and analysis version history.
 *
 * Processing jobs are upserted so the worker can create the row on the
 * first status update when the API has not done so yet. Analysis versions
 * give each (collection, role) pair an append-only history.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	pipelineerrors "github.com/MuthuAjay/contracts-v3/internal/errors"
)

// PostgresClient handles relational persistence.
type PostgresClient struct {
	db *sql.DB
}

// JobUpdate is one job status transition.
type JobUpdate struct {
	JobID            string
	Status           string
	Confidence       float64
	ProcessingTimeMs int64
	CollectionName   string
	ErrorCode        string
	ErrorMessage     string
	Metadata         map[string]interface{}
}

// AnalysisVersion is one stored analysis result for a document collection.
type AnalysisVersion struct {
	ID             string    `json:"id"`
	CollectionName string    `json:"collection_name"`
	Role           string    `json:"role"`
	Version        int       `json:"version"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// sanitizeConfidence clamps to [0, 1] and rounds to 4 decimals. PostgreSQL
// NUMERIC(5,4) rejects float64 noise like 0.9632000000000001.
func sanitizeConfidence(confidence float64) float64 {
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return float64(int(confidence*10000+0.5)) / 10000
}

// NewPostgresClient connects to the database and verifies connectivity.
func NewPostgresClient(databaseURL string) (*PostgresClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{db: db}, nil
}

// UpdateJobStatus upserts a processing job row with the latest status.
func (p *PostgresClient) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	if update.JobID == "" {
		return fmt.Errorf("job ID is required")
	}
	if update.Status == "" {
		return fmt.Errorf("status is required")
	}

	metadataJSON, err := json.Marshal(update.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO contracts.processing_jobs (
			id, filename, mime_type, file_size,
			status, confidence, processing_time_ms, collection_name,
			error_code, error_message, metadata,
			created_at, updated_at
		) VALUES (
			$1::uuid, COALESCE($8, 'unknown'), COALESCE($9, 'application/octet-stream'),
			COALESCE($10, 0),
			$2, NULLIF($3::NUMERIC(5,4), 0), NULLIF($4, 0),
			NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''),
			COALESCE($11::jsonb, '{}'::jsonb),
			NOW(), NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			confidence = COALESCE(NULLIF(EXCLUDED.confidence::NUMERIC(5,4), 0), contracts.processing_jobs.confidence),
			processing_time_ms = COALESCE(NULLIF(EXCLUDED.processing_time_ms, 0), contracts.processing_jobs.processing_time_ms),
			collection_name = COALESCE(NULLIF(EXCLUDED.collection_name, ''), contracts.processing_jobs.collection_name),
			error_code = NULLIF(EXCLUDED.error_code, ''),
			error_message = NULLIF(EXCLUDED.error_message, ''),
			metadata = COALESCE(EXCLUDED.metadata, contracts.processing_jobs.metadata),
			updated_at = NOW()
		RETURNING id
	`

	var filename, mimeType string
	var fileSize int64
	if update.Metadata != nil {
		if fn, ok := update.Metadata["filename"].(string); ok {
			filename = fn
		}
		if mt, ok := update.Metadata["mime_type"].(string); ok {
			mimeType = mt
		}
		switch fs := update.Metadata["file_size"].(type) {
		case int64:
			fileSize = fs
		case float64:
			fileSize = int64(fs)
		}
	}

	var returnedID string
	err = p.db.QueryRowContext(
		ctx,
		query,
		update.JobID,
		update.Status,
		sanitizeConfidence(update.Confidence),
		update.ProcessingTimeMs,
		update.CollectionName,
		update.ErrorCode,
		update.ErrorMessage,
		filename,
		mimeType,
		fileSize,
		metadataJSON,
	).Scan(&returnedID)

	if err != nil {
		return pipelineerrors.NewStorageFailedError(
			fmt.Sprintf("failed to update job status (job=%s, status=%s)", update.JobID, update.Status), err)
	}

	return nil
}

// GetJobByID returns the stored state of one processing job.
func (p *PostgresClient) GetJobByID(ctx context.Context, jobID string) (map[string]interface{}, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}

	query := `
		SELECT id, filename, mime_type, file_size, status,
			confidence, processing_time_ms, collection_name,
			error_code, error_message, metadata, created_at, updated_at
		FROM contracts.processing_jobs
		WHERE id = $1::uuid
	`

	var (
		id, filename               string
		mimeType, status           sql.NullString
		fileSize, processingTimeMs sql.NullInt64
		confidence                 sql.NullFloat64
		collectionName             sql.NullString
		errorCode, errorMessage    sql.NullString
		metadataJSON               []byte
		createdAt, updatedAt       time.Time
	)

	err := p.db.QueryRowContext(ctx, query, jobID).Scan(
		&id, &filename, &mimeType, &fileSize, &status,
		&confidence, &processingTimeMs, &collectionName,
		&errorCode, &errorMessage, &metadataJSON, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return nil, pipelineerrors.NewStorageFailedError(fmt.Sprintf("failed to get job %s", jobID), err)
	}

	var metadata map[string]interface{}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	result := map[string]interface{}{
		"id":         id,
		"filename":   filename,
		"status":     status.String,
		"metadata":   metadata,
		"created_at": createdAt,
		"updated_at": updatedAt,
	}
	if mimeType.Valid {
		result["mime_type"] = mimeType.String
	}
	if fileSize.Valid {
		result["file_size"] = fileSize.Int64
	}
	if confidence.Valid {
		result["confidence"] = confidence.Float64
	}
	if processingTimeMs.Valid {
		result["processing_time_ms"] = processingTimeMs.Int64
	}
	if collectionName.Valid {
		result["collection_name"] = collectionName.String
	}
	if errorCode.Valid {
		result["error_code"] = errorCode.String
	}
	if errorMessage.Valid {
		result["error_message"] = errorMessage.String
	}

	return result, nil
}

// SaveAnalysisVersion appends a new version of an analysis for the given
// collection and role, returning the assigned version number.
func (p *PostgresClient) SaveAnalysisVersion(ctx context.Context, collectionName, role, content string) (int, error) {
	if collectionName == "" || role == "" {
		return 0, fmt.Errorf("collection name and role are required")
	}

	query := `
		INSERT INTO contracts.analysis_versions (collection_name, role, version, content, created_at)
		VALUES (
			$1, $2,
			COALESCE((SELECT MAX(version) FROM contracts.analysis_versions
				WHERE collection_name = $1 AND role = $2), 0) + 1,
			$3, NOW()
		)
		RETURNING version
	`

	var version int
	if err := p.db.QueryRowContext(ctx, query, collectionName, role, content).Scan(&version); err != nil {
		return 0, pipelineerrors.NewStorageFailedError(
			fmt.Sprintf("failed to save analysis version (collection=%s, role=%s)", collectionName, role), err)
	}
	return version, nil
}

// GetAnalysisVersions lists all stored versions for a collection and role,
// newest first.
func (p *PostgresClient) GetAnalysisVersions(ctx context.Context, collectionName, role string) ([]AnalysisVersion, error) {
	query := `
		SELECT id, collection_name, role, version, content, created_at
		FROM contracts.analysis_versions
		WHERE collection_name = $1 AND role = $2
		ORDER BY version DESC
	`

	rows, err := p.db.QueryContext(ctx, query, collectionName, role)
	if err != nil {
		return nil, pipelineerrors.NewStorageFailedError("failed to list analysis versions", err)
	}
	defer rows.Close()

	var versions []AnalysisVersion
	for rows.Next() {
		var v AnalysisVersion
		if err := rows.Scan(&v.ID, &v.CollectionName, &v.Role, &v.Version, &v.Content, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan analysis version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// Ping checks database connectivity.
func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection.
func (p *PostgresClient) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}
