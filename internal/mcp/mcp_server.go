// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/huangsam/perfscope/internal/contract"
	"github.com/huangsam/perfscope/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// analysisTools maps each analysis to its tool name and description.
var analysisTools = []struct {
	analysis    string
	tool        string
	description string
}{
	{"routes", "get_route_performance", "Summarize FPS, memory and CPU per route, ranked worst first."},
	{"devices", "get_device_performance", "Compare route performance across device models."},
	{"correlations", "get_route_correlations", "Find routes whose performance moves together."},
	{"journeys", "get_user_journeys", "Reconstruct user journeys with bottlenecks and scores, worst first."},
	{"patterns", "get_journey_patterns", "Group journeys into frequent route sequences."},
	{"abandonment", "get_abandonment_predictions", "Predict which routes users are likely to abandon."},
	{"trends", "get_performance_trends", "Compute trends, forecasts and seasonality per metric."},
	{"warnings", "get_early_warnings", "Raise early warnings for degrading metrics."},
	{"report", "get_analytics_report", "Build the full analytics report with recommendations."},
}

// windowOptions are the arguments shared by every analysis tool.
func windowOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("start", mcp.Description("Window start (RFC3339, YYYY-MM-DD, or relative like '3 days ago'). Defaults to the configured window.")),
		mcp.WithString("end", mcp.Description("Window end (same formats as start). Defaults to the configured window.")),
		mcp.WithString("route", mcp.Description("Only include samples whose route matches this pattern.")),
		mcp.WithString("device", mcp.Description("Only include sessions on this device model.")),
		mcp.WithString("platform", mcp.Description("Only include sessions on this platform (e.g. ios, android).")),
		mcp.WithNumber("limit", mcp.Description("Limit the number of results returned.")),
	}
}

// NewMCPServer initializes and configures the perfscope MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, mgr contract.StoreManager) *server.MCPServer {
	s := server.NewMCPServer(
		"Perfscope Analysis Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		mgr:     mgr,
	}

	for _, t := range analysisTools {
		opts := append([]mcp.ToolOption{mcp.WithDescription(t.description)}, windowOptions()...)
		s.AddTool(mcp.NewTool(t.tool, opts...), h.handleAnalysis(t.analysis))
	}

	s.AddTool(mcp.NewTool("list_alerts",
		mcp.WithDescription("List alert instances, newest first."),
		mcp.WithString("status", mcp.Description("Filter by status."), mcp.Enum("active", "acknowledged", "resolved")),
		mcp.WithNumber("limit", mcp.Description("Limit the number of results.")),
	), h.handleListAlerts)

	s.AddTool(mcp.NewTool("check_alerts",
		mcp.WithDescription("Evaluate every enabled alert config against recent samples and trigger alerts for violations."),
	), h.handleCheckAlerts)

	s.AddTool(mcp.NewTool("acknowledge_alert",
		mcp.WithDescription("Acknowledge an active alert."),
		mcp.WithNumber("id", mcp.Description("Alert instance ID."), mcp.Required()),
	), h.handleTransition(schema.AlertAcknowledged))

	s.AddTool(mcp.NewTool("resolve_alert",
		mcp.WithDescription("Resolve an active or acknowledged alert."),
		mcp.WithNumber("id", mcp.Description("Alert instance ID."), mcp.Required()),
	), h.handleTransition(schema.AlertResolved))

	s.AddTool(mcp.NewTool("list_analysis_runs",
		mcp.WithDescription("List recent analysis runs with their timing and counts."),
		mcp.WithNumber("limit", mcp.Description("Limit the number of results.")),
	), h.handleListRuns)

	return s
}

// StartMCPServer starts the perfscope MCP server over stdio.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, mgr contract.StoreManager) error {
	s := NewMCPServer(baseCfg, mgr)
	return server.ServeStdio(s)
}
