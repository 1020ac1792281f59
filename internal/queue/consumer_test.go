/**
 * Queue consumer tests.
 */

package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 5*time.Second, retryDelay(0))
	assert.Equal(t, 10*time.Second, retryDelay(1))
	assert.Equal(t, 40*time.Second, retryDelay(3))
	assert.Equal(t, 60*time.Second, retryDelay(4))
	assert.Equal(t, 60*time.Second, retryDelay(20))
}

func TestJobPayloadRoundTrip(t *testing.T) {
	payload := JobPayload{
		JobID:    "job-123",
		FilePath: "/uploads/contract.pdf",
		Filename: "contract.pdf",
		FileSize: 2048,
		Metadata: map[string]interface{}{"mime_type": "application/pdf"},
	}

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	var decoded JobPayload
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, payload.JobID, decoded.JobID)
	assert.Equal(t, payload.FilePath, decoded.FilePath)
	assert.Equal(t, "application/pdf", decoded.Metadata["mime_type"])
}

func TestJobMetadataMergesPayloadFields(t *testing.T) {
	payload := &JobPayload{
		Filename: "nda.docx",
		FileSize: 512,
		Metadata: map[string]interface{}{"uploader": "legal-team"},
	}

	metadata := jobMetadata(payload)
	assert.Equal(t, "nda.docx", metadata["filename"])
	assert.Equal(t, int64(512), metadata["file_size"])
	assert.Equal(t, "legal-team", metadata["uploader"])
}

func TestNewConsumerValidatesConfig(t *testing.T) {
	_, err := NewConsumer(ConsumerConfig{QueueName: "documents"}, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis URL")

	_, err = NewConsumer(ConsumerConfig{RedisURL: "redis://localhost:6379"}, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue name")

	_, err = NewConsumer(ConsumerConfig{RedisURL: "redis://localhost:6379", QueueName: "documents"}, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline")
}
