package core

import (
	"context"
	"fmt"
	"time"

	"github.com/huangsam/perfscope/internal/contract"
	"github.com/huangsam/perfscope/internal/logging"
	"github.com/huangsam/perfscope/schema"
)

// analyzeFunc runs one analysis over a loaded dataset and returns how many
// routes it covered, for the run log.
type analyzeFunc func(ctx context.Context, data Dataset) int

// runAnalysisCore performs the common steps of every analysis command: print the
// window header, open a run in the analysis log, load the dataset, analyze it and
// close the run. Run tracking failures are logged and never fail the analysis.
func runAnalysisCore(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager, analyze analyzeFunc) error {
	if !shouldSuppressHeader(ctx) && cfg.Output == schema.TextOut && cfg.OutputFile == "" {
		logWindowHeader(cfg)
	}

	src := mgr.GetDataSource()
	if src == nil {
		return fmt.Errorf("no data source: %w", contract.ErrStoreDisabled)
	}

	// --- 0. Begin Analysis Tracking (if configured) ---
	var analysisID int64
	runs := mgr.GetAnalysisStore()
	if runs != nil {
		var err error
		analysisID, err = runs.BeginAnalysis(time.Now(), cfg.RunParams())
		if err != nil {
			contract.LogWarn("Analysis tracking initialization failed", err)
		} else if analysisID > 0 {
			ctx = withAnalysisID(ctx, analysisID)
		}
	}

	// --- 1. Load ---
	data, err := LoadDataset(ctx, cfg, src)
	if err != nil {
		return err
	}

	// --- 2. Analyze ---
	routes := analyze(ctx, data)

	// --- 3. End Analysis Tracking ---
	if runs != nil && analysisID > 0 {
		stats := contract.RunStats{Sessions: len(data.Sessions), Metrics: len(data.Samples), Routes: routes}
		if err := runs.EndAnalysis(analysisID, time.Now(), stats); err != nil {
			contract.LogWarn("Failed to finalize analysis tracking", err)
		}
	}
	logging.Debug().
		Int64("analysis", analysisID).
		Int("sessions", len(data.Sessions)).
		Int("routes", routes).
		Msg("analysis finished")
	return nil
}

// logWindowHeader prints a concise, 2-line header for the analyzed window.
func logWindowHeader(cfg *contract.Config) {
	scope := "all routes"
	if cfg.RouteFilter != "" {
		scope = cfg.RouteFilter
	}
	fmt.Printf("🔎 Scope: %s (Backend: %s)\n", scope, cfg.Backend)
	fmt.Printf("📅 Range: %s → %s\n", cfg.StartTime.Format(contract.DateTimeFormat), cfg.EndTime.Format(contract.DateTimeFormat))
}
