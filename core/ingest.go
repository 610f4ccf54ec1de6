package core

import (
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/huangsam/perfscope/internal/contract"
	"github.com/huangsam/perfscope/internal/logging"
	"github.com/huangsam/perfscope/schema"
)

// DecodeIngestBatch reads one JSON ingest payload and validates it.
func DecodeIngestBatch(r io.Reader) (schema.IngestBatch, error) {
	var batch schema.IngestBatch
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&batch); err != nil {
		return batch, fmt.Errorf("failed to decode ingest batch: %w", err)
	}
	if err := contract.ValidateStruct(batch); err != nil {
		return batch, err
	}
	return batch, nil
}

// IngestBatch writes sessions before their samples.
func IngestBatch(ctx context.Context, w contract.MetricWriter, batch schema.IngestBatch) error {
	if w == nil {
		return fmt.Errorf("no metric writer: %w", contract.ErrStoreDisabled)
	}
	if err := w.InsertSessions(ctx, batch.Sessions); err != nil {
		return fmt.Errorf("failed to insert sessions: %w", err)
	}
	if err := w.InsertMetrics(ctx, batch.Metrics); err != nil {
		return fmt.Errorf("failed to insert metrics: %w", err)
	}
	logging.Info().Int("sessions", len(batch.Sessions)).Int("metrics", len(batch.Metrics)).Msg("batch ingested")
	return nil
}
