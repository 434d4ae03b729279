package transcribe

import (
	"context"
	"errors"
	"image"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config holds the tunables of a transcription pipeline.
type Config struct {
	Language         string
	Scale            float64
	ConvertTimeout   time.Duration
	InitTimeout      time.Duration
	RecognizeTimeout time.Duration
	MaxRetries       int
	RetryBackoff     time.Duration
	MinInputSize     int
}

// DefaultConfig returns the pipeline configuration used in production.
func DefaultConfig() Config {
	return Config{
		Language:         "ces",
		Scale:            3.0,
		ConvertTimeout:   30 * time.Second,
		InitTimeout:      30 * time.Second,
		RecognizeTimeout: 90 * time.Second,
		MaxRetries:       2,
		RetryBackoff:     time.Second,
		MinInputSize:     128,
	}
}

// Pipeline turns raw document bytes into recognized text. One Pipeline may be
// shared across goroutines; each Transcribe call owns its Transcriber handle
// exclusively and releases it on every exit path.
type Pipeline struct {
	rasterizer Rasterizer
	factory    TranscriberFactory
	cfg        Config
	logger     *zap.Logger
}

// NewPipeline creates a transcription pipeline.
func NewPipeline(rasterizer Rasterizer, factory TranscriberFactory, cfg Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		rasterizer: rasterizer,
		factory:    factory,
		cfg:        cfg,
		logger:     logger,
	}
}

// Transcribe runs the full rasterize-and-recognize pipeline on one document.
// The retry budget is shared across all stages so worst-case latency stays
// bounded. Progress is reported through onProgress, which may be nil.
func (p *Pipeline) Transcribe(ctx context.Context, data []byte, onProgress ProgressFunc) (Result, error) {
	report := func(pct int, msg string) {
		if onProgress != nil {
			onProgress(pct, msg)
		}
	}

	if len(data) == 0 {
		return Result{}, newError(KindValidation, "document is empty", nil)
	}
	if len(data) < p.cfg.MinInputSize {
		return Result{}, newError(KindValidation, "document too small to be a scannable page", nil)
	}
	report(5, "document validated")

	// Retry budget shared by all stages of this invocation.
	retries := 0
	retry := func(stage string, cause error) bool {
		if retries >= p.cfg.MaxRetries {
			return false
		}
		retries++
		p.logger.Warn("pipeline stage failed, retrying",
			zap.String("stage", stage),
			zap.Int("attempt", retries),
			zap.Error(cause))
		select {
		case <-time.After(p.cfg.RetryBackoff):
			return true
		case <-ctx.Done():
			return false
		}
	}

	report(10, "rendering page")
	var img image.Image
	for {
		var err error
		img, err = runWithTimeout(ctx, p.cfg.ConvertTimeout, func(ctx context.Context) (image.Image, error) {
			return p.rasterizer.Render(ctx, data, 0, p.cfg.Scale)
		})
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return Result{}, newError(KindConversion, "page rendering aborted", ctx.Err())
		}
		if retry("rasterize", err) {
			continue
		}
		return Result{}, newError(KindConversion, "page rendering failed", err)
	}
	report(35, "page rendered")

	report(45, "starting recognizer")
	var tr Transcriber
	for {
		var err error
		tr, err = p.createTranscriber(ctx)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return Result{}, newError(KindWorkerInit, "recognizer startup aborted", ctx.Err())
		}
		if retry("worker-init", err) {
			continue
		}
		return Result{}, newError(KindWorkerInit, "recognizer startup failed", err)
	}
	defer func() {
		if err := tr.Release(); err != nil {
			p.logger.Warn("recognizer release failed", zap.Error(err))
		}
	}()

	report(55, "recognizing text")
	var res Result
	for {
		var err error
		res, err = runWithTimeout(ctx, p.cfg.RecognizeTimeout, func(ctx context.Context) (Result, error) {
			return tr.Recognize(ctx, img)
		})
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return Result{}, newError(KindRecognition, "recognition aborted", ctx.Err())
		}
		if errors.Is(err, context.DeadlineExceeded) {
			// A page that blows the recognition budget once will do it
			// again; retrying only doubles the wait.
			return Result{}, newError(KindRecognitionTimeout, "recognition timed out", err)
		}
		if retry("recognize", err) {
			continue
		}
		return Result{}, newError(KindRecognition, "recognition failed", err)
	}
	report(90, "recognition finished")

	if strings.TrimSpace(res.Text) == "" {
		return Result{}, newError(KindRecognitionEmpty, "recognizer produced no text", nil)
	}

	report(100, "transcription complete")
	p.logger.Info("document transcribed",
		zap.Int("text_len", len(res.Text)),
		zap.Float64("confidence", res.Confidence),
		zap.Int("retries", retries))
	return res, nil
}

// createTranscriber acquires a Transcriber within the init timeout. If the
// factory loses the race, a late handle is still released so it cannot leak.
func (p *Pipeline) createTranscriber(ctx context.Context) (Transcriber, error) {
	cctx, cancel := context.WithTimeout(ctx, p.cfg.InitTimeout)
	defer cancel()

	type outcome struct {
		tr  Transcriber
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		tr, err := p.factory.Create(cctx, p.cfg.Language)
		ch <- outcome{tr, err}
	}()

	select {
	case out := <-ch:
		return out.tr, out.err
	case <-cctx.Done():
		go func() {
			if out := <-ch; out.tr != nil {
				_ = out.tr.Release()
			}
		}()
		return nil, cctx.Err()
	}
}

// runWithTimeout races op against a timer. The op receives a context that is
// canceled when the race is lost, so a well-behaved op does not keep running
// in the background.
func runWithTimeout[T any](ctx context.Context, d time.Duration, op func(context.Context) (T, error)) (T, error) {
	tctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type outcome struct {
		v   T
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		v, err := op(tctx)
		ch <- outcome{v, err}
	}()

	select {
	case out := <-ch:
		return out.v, out.err
	case <-tctx.Done():
		var zero T
		return zero, tctx.Err()
	}
}
