package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"weatherbot/app/config"
	"weatherbot/app/report"
	"weatherbot/app/service/weather"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/samber/do"
)

var _ do.Shutdownable = (*Service)(nil)

const (
	toolName        = "current_weather"
	shutdownTimeout = 10 * time.Second
)

// Service exposes the weather report as an MCP tool over streamable HTTP.
type Service struct {
	listen     string
	weatherSvc *weather.Service
	renderer   *report.Renderer
	mcp        *server.MCPServer
	http       *server.StreamableHTTPServer
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)
	return NewService(cfg.MCP.Listen, do.MustInvoke[*weather.Service](di)), nil
}

func NewService(listen string, weatherSvc *weather.Service) *Service {
	s := &Service{
		listen:     listen,
		weatherSvc: weatherSvc,
		renderer:   report.NewRenderer(weatherSvc.Catalog(), report.PlainText),
	}

	s.mcp = server.NewMCPServer("weatherbot", "1.0.0", server.WithToolCapabilities(false))
	s.mcp.AddTool(s.tool(), s.handleCurrentWeather)

	return s
}

func (s *Service) tool() mcp.Tool {
	sections := make([]string, 0, len(s.weatherSvc.Catalog().Sections()))
	for _, name := range s.weatherSvc.Catalog().Sections() {
		sections = append(sections, string(name))
	}

	return mcp.NewTool(toolName,
		mcp.WithDescription("Get the current weather in a city as a short plain text report"),
		mcp.WithString("city",
			mcp.Required(),
			mcp.Description("City name, e.g. London"),
		),
		mcp.WithArray("sections",
			mcp.Description(fmt.Sprintf("Report sections to include, defaults to %v", report.DefaultSections())),
			mcp.Items(map[string]any{"type": "string", "enum": sections}),
		),
	)
}

// Server returns the underlying MCP server.
func (s *Service) Server() *server.MCPServer {
	return s.mcp
}

// Start listens in the background. An empty listen address disables the server.
func (s *Service) Start() {
	if s.listen == "" {
		slog.Info("MCP server disabled")
		return
	}

	s.http = server.NewStreamableHTTPServer(s.mcp)

	go func() {
		slog.Info("MCP server listening", "addr", s.listen)
		if err := s.http.Start(s.listen); err != nil {
			slog.Error("MCP server stopped", "error", err)
		}
	}()
}

func (s *Service) handleCurrentWeather(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	city, err := request.RequireString("city")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	snapshot, state, err := s.weatherSvc.Fetch(ctx, city)
	if err != nil {
		slog.Warn("MCP fetch failed", "city", city, "error", err)
		return mcp.NewToolResultError(weather.FailureMessage(err)), nil
	}

	if names := request.GetStringSlice("sections", nil); len(names) > 0 {
		state = selectSections(state.Catalog(), names)
	}

	text, err := s.renderer.Render(snapshot, state)
	if err != nil {
		return mcp.NewToolResultError(weather.FailureMessage(err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// selectSections builds a state showing exactly the named sections.
// Unknown names are ignored.
func selectSections(catalog *report.Catalog, names []string) *report.State {
	state := report.NewStateWithMask(catalog, 0)
	for _, name := range names {
		if !state.IsVisible(report.Section(name)) {
			state.Toggle(report.Section(name))
		}
	}
	return state
}

func (s *Service) Shutdown() error {
	if s.http == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return s.http.Shutdown(ctx)
}
