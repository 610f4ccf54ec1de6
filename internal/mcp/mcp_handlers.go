package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/huangsam/perfscope/core"
	"github.com/huangsam/perfscope/internal/contract"
	"github.com/huangsam/perfscope/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

type toolHandler struct {
	baseCfg *contract.Config
	mgr     contract.StoreManager
}

func jsonResult(v any) *mcp.CallToolResult {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err))
	}
	return mcp.NewToolResultText(string(jsonData))
}

// requestConfig applies the window and filter arguments to a copy of the base config.
func (h *toolHandler) requestConfig(request mcp.CallToolRequest, now time.Time) (*contract.Config, error) {
	cfg := h.baseCfg.Clone()
	if v := request.GetString("start", ""); v != "" {
		t, err := contract.ParseTimeInput(v, now)
		if err != nil {
			return nil, fmt.Errorf("invalid start: %w", err)
		}
		cfg.StartTime = t
	}
	if v := request.GetString("end", ""); v != "" {
		t, err := contract.ParseTimeInput(v, now)
		if err != nil {
			return nil, fmt.Errorf("invalid end: %w", err)
		}
		cfg.EndTime = t
	}
	if !cfg.StartTime.Before(cfg.EndTime) {
		return nil, fmt.Errorf("start (%s) must be before end (%s)",
			cfg.StartTime.Format(time.RFC3339), cfg.EndTime.Format(time.RFC3339))
	}
	if v := request.GetString("route", ""); v != "" {
		cfg.RouteFilter = v
	}
	if v := request.GetString("device", ""); v != "" {
		cfg.DeviceFilter = v
	}
	if v := request.GetString("platform", ""); v != "" {
		cfg.PlatformFilter = v
	}
	// a missing, malformed or non-positive limit keeps the configured one
	cfg.ResultLimit = contract.NormalizeLimit(request.GetInt("limit", 0), cfg.ResultLimit, contract.MaxResultLimit)
	cfg.Output = schema.JSONOut
	cfg.OutputFile = ""
	return cfg, nil
}

func truncate[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}

// limitResult trims list results the same way the printers do.
func limitResult(result any, n int) any {
	switch r := result.(type) {
	case schema.RoutePerformanceAnalysis:
		r.Routes = truncate(r.Routes, n)
		return r
	case []schema.DeviceBreakdown:
		return truncate(r, n)
	case []schema.RouteCorrelationAnalysis:
		return truncate(r, n)
	case []schema.UserJourney:
		return truncate(r, n)
	case []schema.JourneyPattern:
		return truncate(r, n)
	case []schema.AbandonmentPoint:
		return truncate(r, n)
	case []schema.EarlyWarningAlert:
		return truncate(r, n)
	default:
		return result
	}
}

func (h *toolHandler) handleAnalysis(name string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		cfg, err := h.requestConfig(request, time.Now().UTC())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		result, err := core.RunAnalysis(ctx, cfg, h.mgr, name)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("%s analysis failed: %v", name, err)), nil
		}
		return jsonResult(limitResult(result, cfg.ResultLimit)), nil
	}
}

func (h *toolHandler) alertStore() (contract.AlertStore, *mcp.CallToolResult) {
	if h.mgr == nil || h.mgr.GetAlertStore() == nil {
		return nil, mcp.NewToolResultError(contract.ErrStoreDisabled.Error())
	}
	return h.mgr.GetAlertStore(), nil
}

func (h *toolHandler) handleListAlerts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	alerts, failed := h.alertStore()
	if failed != nil {
		return failed, nil
	}
	status := schema.AlertStatus(request.GetString("status", ""))
	switch status {
	case "", schema.AlertActive, schema.AlertAcknowledged, schema.AlertResolved:
	default:
		return mcp.NewToolResultError(fmt.Sprintf("invalid status: %q", status)), nil
	}
	limit := request.GetInt("limit", h.baseCfg.ResultLimit)
	instances, err := alerts.ListInstances(ctx, status, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing alerts failed: %v", err)), nil
	}
	return jsonResult(instances), nil
}

func (h *toolHandler) handleCheckAlerts(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	alerts, failed := h.alertStore()
	if failed != nil {
		return failed, nil
	}
	src := h.mgr.GetDataSource()
	if src == nil {
		return mcp.NewToolResultError(contract.ErrStoreDisabled.Error()), nil
	}
	result, err := core.CheckAlertThresholds(ctx, alerts, src, time.Now().UTC())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("threshold check failed: %v", err)), nil
	}
	return jsonResult(result), nil
}

func (h *toolHandler) handleTransition(next schema.AlertStatus) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := int64(request.GetInt("id", 0))
		if id <= 0 {
			return mcp.NewToolResultError("--id must be a positive alert ID"), nil
		}
		alerts, failed := h.alertStore()
		if failed != nil {
			return failed, nil
		}
		inst, err := core.TransitionAlert(ctx, alerts, id, next, time.Now().UTC())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("alert %d: %v", id, err)), nil
		}
		return jsonResult(inst), nil
	}
}

func (h *toolHandler) handleListRuns(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.mgr == nil || h.mgr.GetAnalysisStore() == nil {
		return mcp.NewToolResultError(contract.ErrStoreDisabled.Error()), nil
	}
	runs, err := h.mgr.GetAnalysisStore().ListRuns(request.GetInt("limit", h.baseCfg.ResultLimit))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing runs failed: %v", err)), nil
	}
	return jsonResult(runs), nil
}
