// Package parquet provides data structures and functions for exporting perfscope
// analysis data to Parquet files using github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/huangsam/perfscope/schema"
	"github.com/parquet-go/parquet-go"
)

// AnalysisRun represents a single report run with metadata.
// This struct maps to the perfscope_analysis_runs database table.
type AnalysisRun struct {
	AnalysisID    int64      `parquet:"analysis_id,snappy"`
	StartTime     time.Time  `parquet:"start_time,snappy"`
	EndTime       *time.Time `parquet:"end_time,optional,snappy"`
	RunDurationMs *int32     `parquet:"run_duration_ms,optional,snappy"`
	TotalSessions int32      `parquet:"total_sessions,snappy"`
	TotalMetrics  int32      `parquet:"total_metrics,snappy"`
	TotalRoutes   int32      `parquet:"total_routes,snappy"`

	// ConfigParams contains the JSON-encoded configuration parameters (nullable)
	ConfigParams *string `parquet:"config_params,optional,snappy"`
}

// MetricSample is one raw client metric, flattened for columnar tools.
type MetricSample struct {
	SessionID  string    `parquet:"session_id,snappy,dict"`
	Timestamp  time.Time `parquet:"timestamp,snappy"`
	MetricType string    `parquet:"metric_type,snappy,dict"`
	Value      float64   `parquet:"value,snappy"`
	Route      string    `parquet:"route,snappy,dict"`
	ScreenName string    `parquet:"screen_name,snappy"`
}

// RoutePerformance is the profile of one route pattern at analysis time.
type RoutePerformance struct {
	AnalysisTime      time.Time `parquet:"analysis_time,snappy"`
	RoutePattern      string    `parquet:"route_pattern,snappy"`
	TotalSessions     int32     `parquet:"total_sessions,snappy"`
	UniqueDevices     int32     `parquet:"unique_devices,snappy"`
	AvgFps            float64   `parquet:"avg_fps,snappy"`
	AvgMemory         float64   `parquet:"avg_memory,snappy"`
	AvgCpu            float64   `parquet:"avg_cpu,snappy"`
	AvgLoadTime       float64   `parquet:"avg_load_time,snappy"`
	AvgScreenDuration float64   `parquet:"avg_screen_duration,snappy"`
	PerformanceScore  float64   `parquet:"performance_score,snappy"`
	RiskLevel         string    `parquet:"risk_level,snappy,dict"`
	PerformanceTrend  string    `parquet:"performance_trend,snappy,dict"`
	ScoreLabel        string    `parquet:"score_label,snappy,dict"`
}

// Journey is one reconstructed user journey.
type Journey struct {
	JourneyID        string    `parquet:"journey_id,snappy"`
	AnonymousUserID  string    `parquet:"anonymous_user_id,snappy"`
	DeviceID         string    `parquet:"device_id,snappy"`
	SessionCount     int32     `parquet:"session_count,snappy"`
	RouteSequence    string    `parquet:"route_sequence,snappy"`
	Bottlenecks      int32     `parquet:"bottlenecks,snappy"`
	JourneyScore     float64   `parquet:"journey_score,snappy"`
	CompletionStatus string    `parquet:"completion_status,snappy,dict"`
	JourneyStart     time.Time `parquet:"journey_start,snappy"`
	JourneyDuration  float64   `parquet:"journey_duration,snappy"`
}

// WriteAnalysisRunsParquet writes a slice of AnalysisRun structs to a Parquet file.
func WriteAnalysisRunsParquet(data []AnalysisRun, outputPath string) error {
	return writeParquet(data, outputPath)
}

// WriteMetricSamplesParquet writes raw samples to a Parquet file.
func WriteMetricSamplesParquet(data []MetricSample, outputPath string) error {
	return writeParquet(data, outputPath)
}

// WriteRoutePerformanceParquet writes route profiles to a Parquet file.
func WriteRoutePerformanceParquet(data []RoutePerformance, outputPath string) error {
	return writeParquet(data, outputPath)
}

// WriteJourneysParquet writes journeys to a Parquet file.
func WriteJourneysParquet(data []Journey, outputPath string) error {
	return writeParquet(data, outputPath)
}

// writeParquet infers the schema from the row struct tags and writes every row.
func writeParquet[T any](data []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

// ConvertAnalysisRunRecords converts store rows into Parquet rows.
func ConvertAnalysisRunRecords(records []schema.AnalysisRunRecord) []AnalysisRun {
	out := make([]AnalysisRun, len(records))
	for i, r := range records {
		out[i] = AnalysisRun{
			AnalysisID:    r.AnalysisID,
			StartTime:     r.StartTime,
			EndTime:       r.EndTime,
			RunDurationMs: r.RunDurationMs,
			TotalSessions: r.TotalSessions,
			TotalMetrics:  r.TotalMetrics,
			TotalRoutes:   r.TotalRoutes,
			ConfigParams:  r.ConfigParams,
		}
	}
	return out
}

// ConvertMetricSamples flattens samples.
func ConvertMetricSamples(samples []schema.MetricSample) []MetricSample {
	out := make([]MetricSample, len(samples))
	for i, s := range samples {
		out[i] = MetricSample{
			SessionID:  s.SessionID,
			Timestamp:  s.Timestamp,
			MetricType: string(s.MetricType),
			Value:      s.Value,
			Route:      s.Context.Route,
			ScreenName: s.Context.ScreenName,
		}
	}
	return out
}

// ConvertRoutePerformance converts route profiles, stamping them with the analysis time.
// The label function maps a score to its band.
func ConvertRoutePerformance(routes []schema.RoutePerformanceData, at time.Time, label func(float64) string) []RoutePerformance {
	out := make([]RoutePerformance, len(routes))
	for i, r := range routes {
		out[i] = RoutePerformance{
			AnalysisTime:      at,
			RoutePattern:      r.RoutePattern,
			TotalSessions:     int32(r.TotalSessions),
			UniqueDevices:     int32(r.UniqueDevices),
			AvgFps:            r.AvgFps,
			AvgMemory:         r.AvgMemory,
			AvgCpu:            r.AvgCpu,
			AvgLoadTime:       r.AvgLoadTime,
			AvgScreenDuration: r.AvgScreenDuration,
			PerformanceScore:  r.PerformanceScore,
			RiskLevel:         string(r.RiskLevel),
			PerformanceTrend:  string(r.PerformanceTrend),
			ScoreLabel:        label(r.PerformanceScore),
		}
	}
	return out
}

// ConvertJourneys flattens journeys, joining the route sequence with " > ".
func ConvertJourneys(journeys []schema.UserJourney) []Journey {
	out := make([]Journey, len(journeys))
	for i, j := range journeys {
		out[i] = Journey{
			JourneyID:        j.JourneyID,
			AnonymousUserID:  j.AnonymousUserID,
			DeviceID:         j.DeviceID,
			SessionCount:     int32(len(j.SessionIDs)),
			RouteSequence:    strings.Join(j.RoutePatterns(), " > "),
			Bottlenecks:      int32(len(j.BottleneckPoints)),
			JourneyScore:     j.JourneyScore,
			CompletionStatus: string(j.CompletionStatus),
			JourneyStart:     j.JourneyStart,
			JourneyDuration:  j.JourneyDuration,
		}
	}
	return out
}
