package ocr

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pipelineerrors "github.com/MuthuAjay/contracts-v3/internal/errors"
)

func testImage() image.Image {
	return image.NewNRGBA(image.Rect(0, 0, 10, 10))
}

func TestRecognizeSerializesCalls(t *testing.T) {
	var inFlight, maxInFlight int64

	e := &Engine{}
	e.recognizeFn = func(img image.Image) ([]TextBlock, error) {
		cur := atomic.AddInt64(&inFlight, 1)
		for {
			prev := atomic.LoadInt64(&maxInFlight)
			if cur <= prev || atomic.CompareAndSwapInt64(&maxInFlight, prev, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		return []TextBlock{{Text: "line", Confidence: 0.9}}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			blocks, err := e.Recognize(context.Background(), testImage())
			assert.NoError(t, err)
			assert.Len(t, blocks, 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&maxInFlight))
}

func TestRecognizeTimeout(t *testing.T) {
	e := &Engine{timeout: 20 * time.Millisecond}
	e.recognizeFn = func(img image.Image) ([]TextBlock, error) {
		time.Sleep(500 * time.Millisecond)
		return nil, nil
	}

	_, err := e.Recognize(context.Background(), testImage())
	require.Error(t, err)
	assert.True(t, pipelineerrors.HasCode(err, pipelineerrors.ErrorOCRFailed))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRecognizeTimeoutKeepsClientSerialized(t *testing.T) {
	// A timed-out call leaves its goroutine inside the client. The engine
	// must stay locked until that call returns, or the next caller would
	// enter the client concurrently.
	var inFlight, maxInFlight, calls int64
	release := make(chan struct{})

	e := &Engine{timeout: 20 * time.Millisecond}
	e.recognizeFn = func(img image.Image) ([]TextBlock, error) {
		n := atomic.AddInt64(&calls, 1)
		cur := atomic.AddInt64(&inFlight, 1)
		for {
			prev := atomic.LoadInt64(&maxInFlight)
			if cur <= prev || atomic.CompareAndSwapInt64(&maxInFlight, prev, cur) {
				break
			}
		}
		if n == 1 {
			<-release
		}
		atomic.AddInt64(&inFlight, -1)
		return []TextBlock{{Text: "line", Confidence: 0.9}}, nil
	}

	_, err := e.Recognize(context.Background(), testImage())
	require.Error(t, err)
	assert.True(t, pipelineerrors.HasCode(err, pipelineerrors.ErrorOCRFailed))

	second := make(chan error, 1)
	go func() {
		_, err := e.Recognize(context.Background(), testImage())
		second <- err
	}()

	select {
	case <-second:
		t.Fatal("second call ran while the abandoned call still held the client")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)

	require.NoError(t, <-second)
	assert.Equal(t, int64(1), atomic.LoadInt64(&maxInFlight))
}

func TestRecognizeHonorsCallerContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{}
	e.recognizeFn = func(img image.Image) ([]TextBlock, error) {
		time.Sleep(500 * time.Millisecond)
		return nil, nil
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := e.Recognize(ctx, testImage())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.0, clampConfidence(-0.5))
	assert.Equal(t, 1.0, clampConfidence(1.5))
	assert.Equal(t, 0.42, clampConfidence(0.42))
}
