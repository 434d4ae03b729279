package transcribe

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRasterizer struct {
	mu       sync.Mutex
	calls    int
	failures int
	delay    time.Duration
	err      error
}

func (f *fakeRasterizer) Render(ctx context.Context, data []byte, pageIndex int, scale float64) (image.Image, error) {
	f.mu.Lock()
	f.calls++
	calls := f.calls
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if calls <= f.failures {
		if f.err != nil {
			return nil, f.err
		}
		return nil, errors.New("render failed")
	}
	return image.NewGray(image.Rect(0, 0, 10, 10)), nil
}

type fakeTranscriber struct {
	mu       sync.Mutex
	calls    int
	failures int
	delay    time.Duration
	text     string
	released int
}

func (f *fakeTranscriber) Recognize(ctx context.Context, img image.Image) (Result, error) {
	f.mu.Lock()
	f.calls++
	calls := f.calls
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	if calls <= f.failures {
		return Result{}, errors.New("recognition failed")
	}
	return Result{Text: f.text, Confidence: 87.5}, nil
}

func (f *fakeTranscriber) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
	return nil
}

type fakeFactory struct {
	mu          sync.Mutex
	calls       int
	failures    int
	transcriber *fakeTranscriber
}

func (f *fakeFactory) Create(ctx context.Context, language string) (Transcriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("worker init failed")
	}
	return f.transcriber, nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ConvertTimeout = 200 * time.Millisecond
	cfg.InitTimeout = 200 * time.Millisecond
	cfg.RecognizeTimeout = 200 * time.Millisecond
	cfg.RetryBackoff = 5 * time.Millisecond
	cfg.MinInputSize = 4
	return cfg
}

func validInput() []byte {
	return []byte("%PDF-1.4 fake document body")
}

func TestTranscribeSuccess(t *testing.T) {
	tr := &fakeTranscriber{text: "Faktura 2025001"}
	p := NewPipeline(&fakeRasterizer{}, &fakeFactory{transcriber: tr}, testConfig(), nil)

	var percents []int
	res, err := p.Transcribe(context.Background(), validInput(), func(pct int, msg string) {
		percents = append(percents, pct)
	})
	require.NoError(t, err)
	assert.Equal(t, "Faktura 2025001", res.Text)
	assert.Equal(t, 87.5, res.Confidence)
	assert.Equal(t, 1, tr.released)

	require.NotEmpty(t, percents)
	for i := 1; i < len(percents); i++ {
		assert.GreaterOrEqual(t, percents[i], percents[i-1])
	}
	assert.Equal(t, 100, percents[len(percents)-1])
}

func TestTranscribeEmptyInput(t *testing.T) {
	p := NewPipeline(&fakeRasterizer{}, &fakeFactory{transcriber: &fakeTranscriber{}}, testConfig(), nil)

	_, err := p.Transcribe(context.Background(), nil, nil)
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, KindValidation, terr.Kind)
	assert.False(t, terr.Retryable())
}

func TestTranscribeUndersizedInput(t *testing.T) {
	p := NewPipeline(&fakeRasterizer{}, &fakeFactory{transcriber: &fakeTranscriber{}}, testConfig(), nil)

	_, err := p.Transcribe(context.Background(), []byte("x"), nil)
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, KindValidation, terr.Kind)
}

func TestTranscribeRasterizerRetriesThenSucceeds(t *testing.T) {
	raster := &fakeRasterizer{failures: 2}
	tr := &fakeTranscriber{text: "ok"}
	p := NewPipeline(raster, &fakeFactory{transcriber: tr}, testConfig(), nil)

	res, err := p.Transcribe(context.Background(), validInput(), nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Text)
	assert.Equal(t, 3, raster.calls)
}

func TestTranscribeRasterizerExhaustsRetries(t *testing.T) {
	raster := &fakeRasterizer{failures: 10}
	p := NewPipeline(raster, &fakeFactory{transcriber: &fakeTranscriber{}}, testConfig(), nil)

	_, err := p.Transcribe(context.Background(), validInput(), nil)
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, KindConversion, terr.Kind)
	// Initial attempt plus the two budgeted retries.
	assert.Equal(t, 3, raster.calls)
}

func TestTranscribeSharedRetryBudget(t *testing.T) {
	// One rasterizer failure and one worker-init failure use up the whole
	// budget; the next recognition failure must not be retried.
	raster := &fakeRasterizer{failures: 1}
	tr := &fakeTranscriber{failures: 1, text: "never reached"}
	factory := &fakeFactory{failures: 1, transcriber: tr}
	p := NewPipeline(raster, factory, testConfig(), nil)

	_, err := p.Transcribe(context.Background(), validInput(), nil)
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, KindRecognition, terr.Kind)
	assert.Equal(t, 1, tr.calls)
	assert.Equal(t, 1, tr.released, "handle must be released on failure paths")
}

func TestTranscribeWorkerInitFailure(t *testing.T) {
	factory := &fakeFactory{failures: 10, transcriber: &fakeTranscriber{}}
	p := NewPipeline(&fakeRasterizer{}, factory, testConfig(), nil)

	_, err := p.Transcribe(context.Background(), validInput(), nil)
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, KindWorkerInit, terr.Kind)
	assert.Equal(t, 3, factory.calls)
}

func TestTranscribeRecognitionTimeoutIsFatal(t *testing.T) {
	tr := &fakeTranscriber{delay: time.Second, text: "slow"}
	p := NewPipeline(&fakeRasterizer{}, &fakeFactory{transcriber: tr}, testConfig(), nil)

	start := time.Now()
	_, err := p.Transcribe(context.Background(), validInput(), nil)
	elapsed := time.Since(start)

	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, KindRecognitionTimeout, terr.Kind)
	assert.False(t, terr.Retryable())
	assert.Equal(t, 1, tr.calls, "recognition timeout must not be retried")
	assert.Less(t, elapsed, time.Second)
	assert.Equal(t, 1, tr.released)
}

func TestTranscribeEmptyRecognition(t *testing.T) {
	tr := &fakeTranscriber{text: "   \n\t "}
	p := NewPipeline(&fakeRasterizer{}, &fakeFactory{transcriber: tr}, testConfig(), nil)

	_, err := p.Transcribe(context.Background(), validInput(), nil)
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, KindRecognitionEmpty, terr.Kind)
	assert.False(t, terr.Retryable())
	assert.Equal(t, 1, tr.released)
}

func TestTranscribeRecognitionFailureRetried(t *testing.T) {
	tr := &fakeTranscriber{failures: 1, text: "recovered"}
	p := NewPipeline(&fakeRasterizer{}, &fakeFactory{transcriber: tr}, testConfig(), nil)

	res, err := p.Transcribe(context.Background(), validInput(), nil)
	require.NoError(t, err)
	assert.Equal(t, "recovered", res.Text)
	assert.Equal(t, 2, tr.calls)
	assert.Equal(t, 1, tr.released)
}

func TestErrorKindStrings(t *testing.T) {
	kinds := map[ErrorKind]string{
		KindValidation:         "VALIDATION",
		KindConversion:         "CONVERSION",
		KindWorkerInit:         "WORKER_INIT",
		KindRecognitionTimeout: "RECOGNITION_TIMEOUT",
		KindRecognition:        "RECOGNITION",
		KindRecognitionEmpty:   "RECOGNITION_EMPTY",
		KindUnknown:            "UNKNOWN",
	}
	for kind, want := range kinds {
		assert.Equal(t, want, kind.String())
	}
}
