package transcribe

import (
	"context"
	"image"
)

// Result holds the raw text produced for one document together with the
// recognizer's mean confidence on a 0-100 scale.
type Result struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// ProgressFunc receives progress updates while a document is being
// transcribed. Implementations must return quickly; callbacks are invoked
// synchronously from the pipeline.
type ProgressFunc func(percent int, message string)

// Rasterizer renders a single page of a document to an image.
type Rasterizer interface {
	Render(ctx context.Context, data []byte, pageIndex int, scale float64) (image.Image, error)
}

// Transcriber recognizes text on a rendered page. A Transcriber is owned
// exclusively by one pipeline invocation and must be released when done.
type Transcriber interface {
	Recognize(ctx context.Context, img image.Image) (Result, error)
	Release() error
}

// TranscriberFactory creates Transcriber handles for a recognition language.
type TranscriberFactory interface {
	Create(ctx context.Context, language string) (Transcriber, error)
}
