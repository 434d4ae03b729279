package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 50 * 1024 * 1024 // 50MB

	DefaultLanguage         = "ces"
	DefaultTesseractBinary  = "tesseract"
	DefaultRasterScale      = 3.0
	DefaultConvertTimeout   = 30 * time.Second
	DefaultInitTimeout      = 30 * time.Second
	DefaultRecognizeTimeout = 90 * time.Second
	DefaultMaxRetries       = 2
	DefaultRetryBackoff     = time.Second
	DefaultTextLayerMin     = 200
)

// Config holds all configuration for the invoice extraction server
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// OCR configuration
	Language         string
	TesseractBinary  string
	TessdataDir      string
	RasterScale      float64
	ConvertTimeout   time.Duration
	InitTimeout      time.Duration
	RecognizeTimeout time.Duration
	MaxRetries       int
	RetryBackoff     time.Duration

	// Extraction configuration
	MaxFileSize       int64 // Maximum input file size in bytes
	TextLayerMin      int   // Minimum native text-layer chars to skip OCR
	UseVariableSymbol bool  // Prefer the payment variable symbol as draft number

	// One-shot mode: extract a single document and exit
	PDFFile   string
	ISDOCFile string

	// Application configuration
	Version    string
	ServerName string
	LogLevel   string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Mode:              ModeStdio, // Default to stdio mode for MCP compatibility
		Host:              DefaultHost,
		Port:              DefaultPort,
		Language:          DefaultLanguage,
		TesseractBinary:   DefaultTesseractBinary,
		RasterScale:       DefaultRasterScale,
		ConvertTimeout:    DefaultConvertTimeout,
		InitTimeout:       DefaultInitTimeout,
		RecognizeTimeout:  DefaultRecognizeTimeout,
		MaxRetries:        DefaultMaxRetries,
		RetryBackoff:      DefaultRetryBackoff,
		MaxFileSize:       DefaultMaxFileSize,
		TextLayerMin:      DefaultTextLayerMin,
		UseVariableSymbol: true,
		Version:           "1.0.0",
		ServerName:        "invoice-extract",
		LogLevel:          DefaultLogLevel,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix("INVOICE_EXTRACT")
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("language", cfg.Language)
	viper.SetDefault("tesseract", cfg.TesseractBinary)
	viper.SetDefault("tessdata", cfg.TessdataDir)
	viper.SetDefault("scale", cfg.RasterScale)
	viper.SetDefault("convert-timeout", cfg.ConvertTimeout)
	viper.SetDefault("init-timeout", cfg.InitTimeout)
	viper.SetDefault("recognize-timeout", cfg.RecognizeTimeout)
	viper.SetDefault("max-retries", cfg.MaxRetries)
	viper.SetDefault("retry-backoff", cfg.RetryBackoff)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
	viper.SetDefault("text-layer-min", cfg.TextLayerMin)
	viper.SetDefault("use-variable-symbol", cfg.UseVariableSymbol)
	viper.SetDefault("loglevel", cfg.LogLevel)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("language", cfg.Language, "OCR language passed to tesseract")
	pflag.String("tesseract", cfg.TesseractBinary, "Path to the tesseract binary")
	pflag.String("tessdata", cfg.TessdataDir, "Tesseract data directory (optional)")
	pflag.Float64("scale", cfg.RasterScale, "Raster upscale factor for OCR legibility")
	pflag.Duration("convert-timeout", cfg.ConvertTimeout, "Rasterization timeout")
	pflag.Duration("init-timeout", cfg.InitTimeout, "OCR worker initialization timeout")
	pflag.Duration("recognize-timeout", cfg.RecognizeTimeout, "Text recognition timeout")
	pflag.Int("max-retries", cfg.MaxRetries, "Shared retry budget across all pipeline stages")
	pflag.Duration("retry-backoff", cfg.RetryBackoff, "Pause between retries")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum input file size in bytes")
	pflag.Int("text-layer-min", cfg.TextLayerMin, "Minimum native text-layer length to skip OCR")
	pflag.Bool("use-variable-symbol", cfg.UseVariableSymbol,
		"Use the payment variable symbol as the draft reference number")
	pflag.String("file", cfg.PDFFile, "Extract a single PDF file, print the draft JSON and exit")
	pflag.String("isdoc", cfg.ISDOCFile, "Extract a single ISDOC XML file, print the draft JSON and exit")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, name := range []string{
		"mode", "host", "port", "language", "tesseract", "tessdata", "scale",
		"convert-timeout", "init-timeout", "recognize-timeout",
		"max-retries", "retry-backoff", "maxfilesize", "text-layer-min",
		"use-variable-symbol", "file", "isdoc", "loglevel",
	} {
		_ = viper.BindPFlag(name, pflag.Lookup(name))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nInvoice Extract - invoice data extraction over MCP (OCR and ISDOC)\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                  # stdio mode (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --port=8081        # HTTP server mode\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --file=invoice.pdf               # one-shot PDF extraction\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --isdoc=invoice.isdoc            # one-shot ISDOC extraction\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  INVOICE_EXTRACT_MODE         Server mode\n")
		fmt.Fprintf(os.Stderr, "  INVOICE_EXTRACT_HOST         Server host\n")
		fmt.Fprintf(os.Stderr, "  INVOICE_EXTRACT_PORT         Server port\n")
		fmt.Fprintf(os.Stderr, "  INVOICE_EXTRACT_LANGUAGE     OCR language\n")
		fmt.Fprintf(os.Stderr, "  INVOICE_EXTRACT_TESSERACT    Tesseract binary\n")
		fmt.Fprintf(os.Stderr, "  INVOICE_EXTRACT_LOGLEVEL     Log level\n")
		fmt.Fprintf(os.Stderr, "  INVOICE_EXTRACT_MAXFILESIZE  Maximum file size\n")
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.Language = viper.GetString("language")
	cfg.TesseractBinary = viper.GetString("tesseract")
	cfg.TessdataDir = viper.GetString("tessdata")
	cfg.RasterScale = viper.GetFloat64("scale")
	cfg.ConvertTimeout = viper.GetDuration("convert-timeout")
	cfg.InitTimeout = viper.GetDuration("init-timeout")
	cfg.RecognizeTimeout = viper.GetDuration("recognize-timeout")
	cfg.MaxRetries = viper.GetInt("max-retries")
	cfg.RetryBackoff = viper.GetDuration("retry-backoff")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
	cfg.TextLayerMin = viper.GetInt("text-layer-min")
	cfg.UseVariableSymbol = viper.GetBool("use-variable-symbol")
	cfg.PDFFile = viper.GetString("file")
	cfg.ISDOCFile = viper.GetString("isdoc")
	cfg.LogLevel = viper.GetString("loglevel")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.Language == "" {
		return errors.New("OCR language cannot be empty")
	}

	if c.TesseractBinary == "" {
		return errors.New("tesseract binary cannot be empty")
	}

	if c.RasterScale <= 0 {
		return errors.New("raster scale must be positive")
	}

	if c.ConvertTimeout <= 0 || c.InitTimeout <= 0 || c.RecognizeTimeout <= 0 {
		return errors.New("all stage timeouts must be positive")
	}

	if c.MaxRetries < 0 {
		return errors.New("max retries cannot be negative")
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	if c.PDFFile != "" && c.ISDOCFile != "" {
		return errors.New("--file and --isdoc are mutually exclusive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, Language: %s, LogLevel: %s, MaxFileSize: %d}",
		c.Mode, c.Host, c.Port, c.Language, c.LogLevel, c.MaxFileSize)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}

// IsOneShot returns true if a single-document extraction was requested
func (c *Config) IsOneShot() bool {
	return c.PDFFile != "" || c.ISDOCFile != ""
}
