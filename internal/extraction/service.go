// Package extraction orchestrates both input paths: raster PDF through the
// OCR pipeline and structured ISDOC XML through the parser, ending in one
// canonical draft either way.
package extraction

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"

	"github.com/dokladio/invoice-extract/internal/draft"
	"github.com/dokladio/invoice-extract/internal/isdoc"
	"github.com/dokladio/invoice-extract/internal/ocrtext"
	"github.com/dokladio/invoice-extract/internal/transcribe"
)

// TextRecognizer is the OCR pipeline seam. Satisfied by
// *transcribe.Pipeline.
type TextRecognizer interface {
	Transcribe(ctx context.Context, data []byte, onProgress transcribe.ProgressFunc) (transcribe.Result, error)
}

// TextLayerReader extracts the native text layer from PDF bytes.
type TextLayerReader interface {
	PlainText(data []byte) (string, error)
}

// Config bounds and tunes the service.
type Config struct {
	// MaxFileSize caps raw PDF input, in bytes.
	MaxFileSize int64
	// TextLayerMin is the minimum number of extractable text-layer
	// characters at which OCR is skipped in favor of the native text.
	TextLayerMin int
	// Policy is the default symbol-selection policy applied by the mapper.
	Policy draft.Policy
}

// Service runs document extraction end to end.
type Service struct {
	cfg        Config
	pipeline   TextRecognizer
	textReader TextLayerReader
	extractor  *ocrtext.Extractor
	parser     *isdoc.Parser
	mapper     *draft.Mapper
	logger     *zap.Logger
}

// NewService wires the service from its components. A nil textReader picks
// the ledongthuc-backed default; a nil logger is replaced with a no-op one.
func NewService(cfg Config, pipeline TextRecognizer, textReader TextLayerReader, logger *zap.Logger) *Service {
	if textReader == nil {
		textReader = &LedongthucTextLayer{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:        cfg,
		pipeline:   pipeline,
		textReader: textReader,
		extractor:  ocrtext.NewExtractor(),
		parser:     isdoc.NewParser(logger),
		mapper:     draft.NewMapper(),
		logger:     logger,
	}
}

// ExtractPDF extracts an invoice draft from raw PDF bytes. Documents with a
// usable native text layer never reach OCR; everything else is rasterized
// and transcribed. onProgress may be nil.
func (s *Service) ExtractPDF(ctx context.Context, data []byte, onProgress transcribe.ProgressFunc) (*draft.Draft, error) {
	if onProgress == nil {
		onProgress = func(int, string) {}
	}
	if len(data) == 0 {
		return nil, &transcribe.Error{Kind: transcribe.KindValidation, Message: "input is empty"}
	}
	if s.cfg.MaxFileSize > 0 && int64(len(data)) > s.cfg.MaxFileSize {
		return nil, &transcribe.Error{
			Kind:    transcribe.KindValidation,
			Message: fmt.Sprintf("input of %d bytes exceeds the %d byte limit", len(data), s.cfg.MaxFileSize),
		}
	}
	if err := validatePDF(data); err != nil {
		return nil, &transcribe.Error{Kind: transcribe.KindValidation, Message: "input is not a valid PDF", Cause: err}
	}

	res, err := s.recognize(ctx, data, onProgress)
	if err != nil {
		return nil, err
	}

	fields := s.extractor.Extract(res.Text)
	s.logger.Debug("pdf extraction finished",
		zap.Float64("confidence", res.Confidence),
		zap.Bool("is_invoice", fields.IsInvoice))
	return s.mapper.FromOCR(fields, res, s.cfg.Policy), nil
}

// ExtractISDOC extracts an invoice draft from ISDOC XML text.
func (s *Service) ExtractISDOC(_ context.Context, xmlText []byte) (*draft.Draft, error) {
	inv, err := s.parser.Parse(xmlText)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("isdoc extraction finished",
		zap.String("invoice_id", inv.ID),
		zap.Int("lines", len(inv.Lines)))
	return s.mapper.FromISDOC(inv, s.cfg.Policy), nil
}

func (s *Service) recognize(ctx context.Context, data []byte, onProgress transcribe.ProgressFunc) (transcribe.Result, error) {
	if text, ok := s.textLayer(data); ok {
		s.logger.Debug("native text layer used, skipping ocr", zap.Int("chars", len(text)))
		onProgress(100, "Native text layer extracted")
		return transcribe.Result{Text: text, Confidence: 100}, nil
	}
	return s.pipeline.Transcribe(ctx, data, onProgress)
}

// textLayer pulls the native text layer out of the PDF. It reports false
// when the document carries too little text to be trusted, which is the
// normal case for scanned invoices.
func (s *Service) textLayer(data []byte) (string, bool) {
	if s.cfg.TextLayerMin <= 0 {
		return "", false
	}
	text, err := s.textReader.PlainText(data)
	if err != nil {
		s.logger.Debug("text layer extraction failed", zap.Error(err))
		return "", false
	}
	text = strings.TrimSpace(text)
	if len(text) < s.cfg.TextLayerMin {
		return "", false
	}
	return text, true
}

// LedongthucTextLayer reads the text layer with the ledongthuc/pdf parser.
type LedongthucTextLayer struct{}

// PlainText concatenates the plain text of all pages. The underlying parser
// panics on some malformed content streams, so those are converted to
// errors here.
func (l *LedongthucTextLayer) PlainText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("text layer parse panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(content)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func validatePDF(data []byte) error {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return err
	}
	return ctx.EnsurePageCount()
}
