package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb
	err := cmd.Run()
	return out.Bytes(), errb.Bytes(), err
}

// TesseractConfig holds the external-binary settings for the tesseract
// transcriber.
type TesseractConfig struct {
	Binary      string
	TessdataDir string
	PSM         int
}

// TesseractFactory creates transcriber handles that shell out to tesseract.
type TesseractFactory struct {
	cfg    TesseractConfig
	runner Runner
}

// NewTesseractFactory creates a factory using the real exec runner.
func NewTesseractFactory(cfg TesseractConfig) *TesseractFactory {
	return NewTesseractFactoryWithRunner(cfg, execRunner{})
}

// NewTesseractFactoryWithRunner creates a factory with a custom command
// runner, used by tests.
func NewTesseractFactoryWithRunner(cfg TesseractConfig, runner Runner) *TesseractFactory {
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	return &TesseractFactory{cfg: cfg, runner: runner}
}

// Create verifies the tesseract binary is available and allocates a scratch
// directory for the handle.
func (f *TesseractFactory) Create(ctx context.Context, language string) (Transcriber, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := exec.LookPath(f.cfg.Binary); err != nil {
		return nil, fmt.Errorf("tesseract binary %q not found: %w", f.cfg.Binary, err)
	}
	workDir, err := os.MkdirTemp("", "invoice-extract-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("creating scratch directory: %w", err)
	}
	return &tesseractTranscriber{
		cfg:      f.cfg,
		runner:   f.runner,
		language: language,
		workDir:  workDir,
	}, nil
}

type tesseractTranscriber struct {
	cfg      TesseractConfig
	runner   Runner
	language string
	workDir  string

	releaseOnce sync.Once
	releaseErr  error
}

func (t *tesseractTranscriber) Recognize(ctx context.Context, img image.Image) (Result, error) {
	pagePath := filepath.Join(t.workDir, "page.png")
	fh, err := os.Create(pagePath)
	if err != nil {
		return Result{}, fmt.Errorf("writing page raster: %w", err)
	}
	if err := png.Encode(fh, img); err != nil {
		fh.Close()
		return Result{}, fmt.Errorf("encoding page raster: %w", err)
	}
	if err := fh.Close(); err != nil {
		return Result{}, fmt.Errorf("writing page raster: %w", err)
	}

	args := t.baseArgs(pagePath)
	out, errb, err := t.runner.Run(ctx, t.cfg.Binary, args...)
	if err != nil {
		return Result{}, fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(string(errb)))
	}

	// Confidence comes from a second pass in TSV mode; a failure here only
	// loses the confidence figure, not the text.
	conf := 0.0
	if c, err := t.tsvConfidence(ctx, pagePath); err == nil {
		conf = c
	}

	return Result{Text: string(out), Confidence: conf}, nil
}

func (t *tesseractTranscriber) Release() error {
	t.releaseOnce.Do(func() {
		t.releaseErr = os.RemoveAll(t.workDir)
	})
	return t.releaseErr
}

func (t *tesseractTranscriber) baseArgs(pagePath string) []string {
	args := []string{pagePath, "stdout", "-l", t.language}
	if t.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(t.cfg.PSM))
	}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	return args
}

// tsvConfidence runs tesseract in TSV mode and returns the mean word
// confidence on a 0-100 scale.
func (t *tesseractTranscriber) tsvConfidence(ctx context.Context, pagePath string) (float64, error) {
	args := append(t.baseArgs(pagePath), "tsv")
	out, errb, err := t.runner.Run(ctx, t.cfg.Binary, args...)
	if err != nil {
		return 0, fmt.Errorf("tesseract tsv: %w: %s", err, strings.TrimSpace(string(errb)))
	}
	return meanTSVConfidence(string(out)), nil
}

// meanTSVConfidence averages the conf column of tesseract TSV output,
// skipping the header and the -1 rows tesseract emits for non-word boxes.
func meanTSVConfidence(tsv string) float64 {
	lines := strings.Split(tsv, "\n")
	var sum float64
	var n int
	for i, ln := range lines {
		if i == 0 || ln == "" {
			continue
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		confStr := cols[len(cols)-2]
		if confStr == "" || confStr == "-1" {
			continue
		}
		if v, err := strconv.ParseFloat(confStr, 64); err == nil {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
