package internal

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MCPServer wraps the MCP server and application dependencies
type MCPServer struct {
	app       *App
	mcpServer *server.MCPServer
}

// NewMCPServer creates a new MCP server instance
func NewMCPServer(app *App) *MCPServer {
	mcpServer := server.NewMCPServer(
		"capscade-server",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s := &MCPServer{
		app:       app,
		mcpServer: mcpServer,
	}

	// Register tools
	s.registerTools()

	return s
}

// registerTools registers all available MCP tools
func (s *MCPServer) registerTools() {
	// get_video_metadata tool
	s.mcpServer.AddTool(mcp.NewTool("get_video_metadata",
		mcp.WithDescription("Extract video metadata including caption availability. Check 'Has Captions' to predict whether get_captions (free) will work or acquire_transcript will fall back to audio transcription (paid)."),
		mcp.WithString("url",
			mcp.Description("YouTube video URL or ID"),
			mcp.Required(),
		),
	), s.handleGetMetadata)

	// get_captions tool (free - existing captions only)
	s.mcpServer.AddTool(mcp.NewTool("get_captions",
		mcp.WithDescription("Get existing YouTube captions (FREE). Only works if the video has a caption track - check metadata first. Fails without falling back to audio transcription."),
		mcp.WithString("url",
			mcp.Description("YouTube video URL or ID"),
			mcp.Required(),
		),
		mcp.WithString("language",
			mcp.Description("Caption language code (defaults to the configured language)"),
		),
	), s.handleGetCaptions)

	// acquire_transcript tool (tiered: captions first, audio fallback)
	s.mcpServer.AddTool(mcp.NewTool("acquire_transcript",
		mcp.WithDescription("Acquire a transcript using the full tiered pipeline: existing captions first (free), audio transcription as fallback (PAID). Requires provider credentials for the fallback. Ask the user before calling on videos without captions."),
		mcp.WithString("url",
			mcp.Description("YouTube video URL or ID"),
			mcp.Required(),
		),
		mcp.WithString("language",
			mcp.Description("Transcript language code (defaults to the configured language)"),
		),
	), s.handleAcquireTranscript)

	// transcribe_audio tool (paid - local file through the audio pipeline)
	s.mcpServer.AddTool(mcp.NewTool("transcribe_audio",
		mcp.WithDescription("Transcribe a local audio file through the chunked transcription pipeline (PAID). Requires provider credentials. Use only when the user explicitly agrees to incur costs."),
		mcp.WithString("path",
			mcp.Description("Path to a local audio file"),
			mcp.Required(),
		),
	), s.handleTranscribeAudio)
}

// handleGetMetadata implements the get_video_metadata tool
func (s *MCPServer) handleGetMetadata(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("url parameter is required and must be a string"), nil
	}
	MCPLogInfo("get_video_metadata: %s", url)

	metadata, err := s.app.Metadata(ctx, url)
	if err != nil {
		MCPLogError("get_video_metadata failed: %v", err)
		return mcp.NewToolResultErrorFromErr("metadata error", err), nil
	}

	var buf strings.Builder
	buf.WriteString(fmt.Sprintf("Title: %s\n", metadata.Title))
	buf.WriteString(fmt.Sprintf("Channel: %s\n", metadata.Channel))
	buf.WriteString(fmt.Sprintf("Duration: %.0f seconds\n", metadata.Duration))
	buf.WriteString(fmt.Sprintf("Description: %s\n", metadata.Description))
	buf.WriteString(fmt.Sprintf("Has Captions: %t\n", metadata.HasCaptions))

	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(buf.String())},
	}, nil
}

// handleGetCaptions implements the get_captions tool (existing captions only)
func (s *MCPServer) handleGetCaptions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("url parameter is required and must be a string"), nil
	}
	language := request.GetString("language", s.app.config.Language)
	MCPLogInfo("get_captions: %s (lang=%s)", url, language)

	_, videoID := ParseArg(url)
	segments, err := s.app.Captions(ctx, videoID, language)
	if err != nil {
		MCPLogError("get_captions failed: %v", err)
		return mcp.NewToolResultErrorFromErr("no captions available - use get_video_metadata to check caption availability, or acquire_transcript for the audio fallback (paid)", err), nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(JoinSegments(segments))},
	}, nil
}

// handleAcquireTranscript implements the acquire_transcript tool
func (s *MCPServer) handleAcquireTranscript(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("url parameter is required and must be a string"), nil
	}
	language := request.GetString("language", s.app.config.Language)
	MCPLogInfo("acquire_transcript: %s (lang=%s)", url, language)

	_, videoID := ParseArg(url)
	result, err := s.app.AcquireTranscript(ctx, TranscriptRequest{
		VideoID:  videoID,
		Language: language,
		Format:   FormatText,
	})
	if err != nil {
		MCPLogError("acquire_transcript failed: %v", err)
		return mcp.NewToolResultErrorFromErr("transcript acquisition failed", err), nil
	}

	MCPLogInfo("acquire_transcript succeeded: %s via %s", videoID, result.Method)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(result.Text)},
	}, nil
}

// handleTranscribeAudio implements the transcribe_audio tool
func (s *MCPServer) handleTranscribeAudio(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError("path parameter is required and must be a string"), nil
	}
	MCPLogInfo("transcribe_audio: %s", path)

	result, err := s.app.TranscribeFile(ctx, path)
	if err != nil {
		MCPLogError("transcribe_audio failed: %v", err)
		return mcp.NewToolResultErrorFromErr("failed to transcribe audio", err), nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(result.Text)},
	}, nil
}

// Start starts the MCP server using the specified transport
func (s *MCPServer) Start(ctx context.Context, transport string, port int) error {
	if transport == "http" {
		httpServer := server.NewStreamableHTTPServer(s.mcpServer)
		addr := fmt.Sprintf(":%d", port)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return httpServer.Start(addr)
	}

	// Default to stdio transport
	return server.ServeStdio(s.mcpServer)
}

// GetServer returns the underlying MCP server for advanced configuration
func (s *MCPServer) GetServer() *server.MCPServer {
	return s.mcpServer
}
