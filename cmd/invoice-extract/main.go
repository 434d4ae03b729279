package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dokladio/invoice-extract/internal/config"
	"github.com/dokladio/invoice-extract/internal/draft"
	"github.com/dokladio/invoice-extract/internal/extraction"
	"github.com/dokladio/invoice-extract/internal/mcp"
	"github.com/dokladio/invoice-extract/internal/transcribe"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// setupLogging builds the logger. Logs always go to stderr: in stdio mode
// stdout carries the MCP protocol stream, and in one-shot mode it carries
// the draft JSON.
func setupLogging(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.OutputPaths = []string{"stderr"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}
	return zapCfg.Build()
}

// buildService wires the extraction service from configuration
func buildService(cfg *config.Config, logger *zap.Logger) *extraction.Service {
	pipelineCfg := transcribe.DefaultConfig()
	pipelineCfg.Language = cfg.Language
	pipelineCfg.Scale = cfg.RasterScale
	pipelineCfg.ConvertTimeout = cfg.ConvertTimeout
	pipelineCfg.InitTimeout = cfg.InitTimeout
	pipelineCfg.RecognizeTimeout = cfg.RecognizeTimeout
	pipelineCfg.MaxRetries = cfg.MaxRetries
	pipelineCfg.RetryBackoff = cfg.RetryBackoff

	factory := transcribe.NewTesseractFactory(transcribe.TesseractConfig{
		Binary:      cfg.TesseractBinary,
		TessdataDir: cfg.TessdataDir,
	})
	pipeline := transcribe.NewPipeline(transcribe.NewFitzRasterizer(), factory, pipelineCfg, logger)

	return extraction.NewService(extraction.Config{
		MaxFileSize:  cfg.MaxFileSize,
		TextLayerMin: cfg.TextLayerMin,
		Policy:       draft.Policy{UseVariableSymbol: cfg.UseVariableSymbol},
	}, pipeline, nil, logger)
}

// runOneShot extracts a single document and prints the draft JSON to stdout
func runOneShot(ctx context.Context, cfg *config.Config, svc *extraction.Service, logger *zap.Logger) error {
	var (
		d   *draft.Draft
		err error
	)
	switch {
	case cfg.PDFFile != "":
		var data []byte
		if data, err = os.ReadFile(cfg.PDFFile); err != nil {
			return fmt.Errorf("cannot read %s: %w", cfg.PDFFile, err)
		}
		d, err = svc.ExtractPDF(ctx, data, func(percent int, message string) {
			logger.Debug("extraction progress", zap.Int("percent", percent), zap.String("message", message))
		})
	case cfg.ISDOCFile != "":
		var data []byte
		if data, err = os.ReadFile(cfg.ISDOCFile); err != nil {
			return fmt.Errorf("cannot read %s: %w", cfg.ISDOCFile, err)
		}
		d, err = svc.ExtractISDOC(ctx, data)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

// runServerMode handles server mode execution with signal handling
func runServerMode(ctx context.Context, cancel context.CancelFunc, server *mcp.Server, logger *zap.Logger) {
	// Set up signal handling for graceful shutdown
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	// Start server in a goroutine
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.Run(ctx)
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-signalCh:
		logger.Info("received signal, initiating graceful shutdown", zap.String("signal", sig.String()))
		cancel()

		// Wait for server to shutdown
		if err := <-serverErrCh; err != nil {
			logger.Error("server shutdown with error", zap.Error(err))
			os.Exit(1)
		}

	case err := <-serverErrCh:
		if err != nil {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("server stopped successfully")
}

// runStdioMode handles stdio mode execution
func runStdioMode(ctx context.Context, server *mcp.Server, logger *zap.Logger) {
	// In stdio mode the parent process controls our lifecycle; exit cleanly
	// when stdin closes.
	if err := server.Run(ctx); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion()
			return
		}
	}

	// Load configuration from flags first
	cfg, err := config.LoadFromFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := setupLogging(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Set version if it was provided during build
	if version != "dev" {
		cfg.Version = version
	}

	svc := buildService(cfg, logger)

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.IsOneShot() {
		if err := runOneShot(ctx, cfg, svc, logger); err != nil {
			logger.Error("extraction failed", zap.Error(err))
			os.Exit(1)
		}
		return
	}

	server, err := mcp.NewServer(cfg, svc, logger)
	if err != nil {
		logger.Fatal("failed to create MCP server", zap.Error(err))
	}

	if cfg.IsServerMode() {
		runServerMode(ctx, cancel, server, logger)
	} else {
		runStdioMode(ctx, server, logger)
	}
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("Invoice Extract\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
