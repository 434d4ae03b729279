package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dokladio/invoice-extract/internal/config"
	"github.com/dokladio/invoice-extract/internal/draft"
	"github.com/dokladio/invoice-extract/internal/transcribe"
)

// Extractor is the extraction service seam. Satisfied by
// *extraction.Service.
type Extractor interface {
	ExtractPDF(ctx context.Context, data []byte, onProgress transcribe.ProgressFunc) (*draft.Draft, error)
	ExtractISDOC(ctx context.Context, xmlText []byte) (*draft.Draft, error)
}

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	extractor Extractor
	logger    *zap.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, extractor Extractor, logger *zap.Logger) (*Server, error) {
	if extractor == nil {
		return nil, fmt.Errorf("extractor cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// Create MCP server
	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // We don't support dynamic tool capabilities
	)

	s := &Server{
		config:    cfg,
		extractor: extractor,
		logger:    logger,
		mcpServer: mcpServer,
	}

	// Register tools
	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	extractPDFTool := mcp.NewTool(
		"invoice_extract_pdf",
		mcp.WithDescription("Extract invoice data from a PDF file (native text layer or OCR) and return the canonical draft as JSON"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the PDF file"),
		),
	)
	s.mcpServer.AddTool(extractPDFTool, s.handleExtractPDF)

	extractISDOCTool := mcp.NewTool(
		"invoice_extract_isdoc",
		mcp.WithDescription("Extract invoice data from an ISDOC XML file and return the canonical draft as JSON"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the ISDOC XML file"),
		),
	)
	s.mcpServer.AddTool(extractISDOCTool, s.handleExtractISDOC)

	serverInfoTool := mcp.NewTool(
		"extract_server_info",
		mcp.WithDescription("Get server information, available tools, and usage guidance"),
	)
	s.mcpServer.AddTool(serverInfoTool, s.handleServerInfo)
}

// Handler functions
func (s *Server) handleExtractPDF(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot read file %s: %v", path, err)), nil
	}

	s.logger.Info("extracting pdf", zap.String("path", path), zap.Int("bytes", len(data)))

	d, err := s.extractor.ExtractPDF(ctx, data, s.logProgress)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return s.draftResult(d)
}

func (s *Server) handleExtractISDOC(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot read file %s: %v", path, err)), nil
	}

	s.logger.Info("extracting isdoc", zap.String("path", path), zap.Int("bytes", len(data)))

	d, err := s.extractor.ExtractISDOC(ctx, data)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return s.draftResult(d)
}

func (s *Server) handleServerInfo(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.formatServerInfo()), nil
}

func (s *Server) draftResult(d *draft.Draft) (*mcp.CallToolResult, error) {
	payload, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot encode draft: %v", err)), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func (s *Server) logProgress(percent int, message string) {
	s.logger.Debug("extraction progress", zap.Int("percent", percent), zap.String("message", message))
}

// formatServerInfo renders the server info response
func (s *Server) formatServerInfo() string {
	text := fmt.Sprintf("%s v%s - Server Information\n\n", s.config.ServerName, s.config.Version)
	text += "Configuration:\n"
	text += fmt.Sprintf("  OCR language: %s\n", s.config.Language)
	text += fmt.Sprintf("  Max file size: %d MB\n", s.config.MaxFileSize/(1024*1024))
	text += fmt.Sprintf("  Prefer variable symbol: %t\n", s.config.UseVariableSymbol)

	text += "\nAvailable Tools:\n"
	text += "\n• invoice_extract_pdf\n"
	text += "  Description: Extract invoice data from a PDF file and return the canonical draft as JSON\n"
	text += "  Parameters: path (required) - full path to the PDF file\n"
	text += "  Notes: documents with a native text layer are read directly; scanned documents go through OCR\n"
	text += "\n• invoice_extract_isdoc\n"
	text += "  Description: Extract invoice data from an ISDOC XML file and return the canonical draft as JSON\n"
	text += "  Parameters: path (required) - full path to the ISDOC XML file\n"
	text += "\n• extract_server_info\n"
	text += "  Description: Get server information, available tools, and usage guidance\n"
	text += "  Parameters: none\n"

	text += "\nUsage Guidance:\n"
	text += "Both extraction tools return the same draft shape. Dates are ISO YYYY-MM-DD strings,\n"
	text += "amounts are plain numbers, and fields the extraction could not resolve are omitted.\n"
	text += "The rawSourcePayload field carries the transcript or parsed invoice for review.\n"

	return text
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx)
}

// runStdioMode runs the server in stdio mode
func (s *Server) runStdioMode(_ context.Context) error {
	s.logger.Info("starting invoice extraction server in stdio mode")

	// Use the mark3labs/mcp-go server.ServeStdio function
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode runs the server in HTTP server mode
func (s *Server) runServerMode(ctx context.Context) error {
	// The mark3labs library handles the transport differently; SSE support
	// lands here once the deployment needs it.
	s.logger.Warn("server mode not yet implemented, falling back to stdio mode",
		zap.String("address", s.config.Address()))
	return s.runStdioMode(ctx)
}
