package outwriter

import (
	"strconv"
	"time"

	"github.com/huangsam/perfscope/internal/contract"
	"github.com/huangsam/perfscope/schema"
)

// PrintAlertConfigs outputs persisted alert rules.
func PrintAlertConfigs(configs []schema.AlertConfig, cfg *contract.Config) error {
	fmtFloat, fmtInt := createFormatters(cfg.Precision)
	v := view{
		headers:   []string{"ID", "Name", "Rule", "Route", "Window (m)", "Severity", "Enabled"},
		csvHeader: []string{"id", "name", "metric", "condition", "threshold", "route", "window_minutes", "severity", "enabled"},
		empty:     "No alert configs.",
	}
	for _, c := range configs {
		v.rows = append(v.rows, []string{
			id(c.ID),
			c.Name,
			string(c.MetricType) + " " + string(c.Condition) + " " + fmtFloat(c.Threshold),
			scopeOf(c.RoutePattern),
			fmtInt(c.WindowMinutes),
			contract.GetSeverityColorLabel(c.Severity),
			strconv.FormatBool(c.Enabled),
		})
		v.csvRows = append(v.csvRows, []string{
			id(c.ID), c.Name, string(c.MetricType), string(c.Condition), fmtFloat(c.Threshold), c.RoutePattern,
			fmtInt(c.WindowMinutes), string(c.Severity), strconv.FormatBool(c.Enabled),
		})
	}
	return printViews(cfg, 0, configs, v)
}

// PrintAlertInstances outputs triggered alerts, newest first.
func PrintAlertInstances(instances []schema.AlertInstance, cfg *contract.Config) error {
	return printViews(cfg, 0, instances, instancesView(instances, cfg))
}

func instancesView(instances []schema.AlertInstance, cfg *contract.Config) view {
	fmtFloat, _ := createFormatters(cfg.Precision)
	v := view{
		headers:   []string{"ID", "Config", "Status", "Value", "Threshold", "Triggered", "Message"},
		csvHeader: []string{"id", "config_id", "status", "triggered_value", "threshold", "triggered_at", "acknowledged_at", "resolved_at", "message"},
		empty:     "No alerts.",
	}
	for _, inst := range instances {
		v.rows = append(v.rows, []string{
			id(inst.ID),
			id(inst.ConfigID),
			statusLabel(inst.Status),
			fmtFloat(inst.TriggeredValue),
			fmtFloat(inst.Threshold),
			inst.TriggeredAt.Format(time.DateTime),
			inst.Message,
		})
		v.csvRows = append(v.csvRows, []string{
			id(inst.ID), id(inst.ConfigID), string(inst.Status), fmtFloat(inst.TriggeredValue), fmtFloat(inst.Threshold),
			inst.TriggeredAt.Format(contract.DateTimeFormat), optionalTime(inst.AcknowledgedAt), optionalTime(inst.ResolvedAt),
			inst.Message,
		})
	}
	return v
}

// PrintCheckResult outputs one threshold-check pass and the alerts it opened.
func PrintCheckResult(result schema.CheckResult, cfg *contract.Config) error {
	_, fmtInt := createFormatters(cfg.Precision)
	rows := [][]string{
		{"Checked at", result.CheckedAt.Format(contract.DateTimeFormat)},
		{"Evaluated", fmtInt(result.Evaluated)},
		{"Violations", fmtInt(result.Violations)},
		{"Skipped (no samples)", fmtInt(result.Skipped)},
		{"Triggered", fmtInt(len(result.Triggered))},
	}
	summary := view{
		title:     "Threshold check",
		headers:   []string{"Key", "Value"},
		rows:      rows,
		csvHeader: []string{"key", "value"},
		csvRows:   rows,
	}
	triggered := instancesView(result.Triggered, cfg)
	triggered.title = "Triggered alerts"
	triggered.empty = "No new alerts."
	return printViews(cfg, 0, result, summary, triggered)
}

// PrintRuns outputs the analysis-run log.
func PrintRuns(runs []schema.AnalysisRunRecord, cfg *contract.Config) error {
	v := view{
		headers:   []string{"ID", "Started", "Duration (ms)", "Sessions", "Metrics", "Routes"},
		csvHeader: []string{"analysis_id", "start_time", "end_time", "run_duration_ms", "total_sessions", "total_metrics", "total_routes", "config_params"},
		empty:     "No analysis runs recorded.",
	}
	for _, r := range runs {
		duration := "running"
		if r.RunDurationMs != nil {
			duration = strconv.Itoa(int(*r.RunDurationMs))
		}
		params := ""
		if r.ConfigParams != nil {
			params = *r.ConfigParams
		}
		v.rows = append(v.rows, []string{
			id(r.AnalysisID),
			r.StartTime.Format(time.DateTime),
			duration,
			strconv.Itoa(int(r.TotalSessions)),
			strconv.Itoa(int(r.TotalMetrics)),
			strconv.Itoa(int(r.TotalRoutes)),
		})
		v.csvRows = append(v.csvRows, []string{
			id(r.AnalysisID), r.StartTime.Format(contract.DateTimeFormat), optionalTime(r.EndTime), duration,
			strconv.Itoa(int(r.TotalSessions)), strconv.Itoa(int(r.TotalMetrics)), strconv.Itoa(int(r.TotalRoutes)), params,
		})
	}
	return printViews(cfg, 0, runs, v)
}

func statusLabel(status schema.AlertStatus) string {
	switch status {
	case schema.AlertActive:
		return contract.CriticalColor.Sprint(status)
	case schema.AlertAcknowledged:
		return contract.ModerateColor.Sprint(status)
	default:
		return contract.GoodColor.Sprint(status)
	}
}

func id(v int64) string {
	return strconv.FormatInt(v, 10)
}

func optionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(contract.DateTimeFormat)
}
