package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/huangsam/perfscope/core"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ingestCmd loads a JSON batch of sessions and samples into the store.
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load a JSON batch of sessions and metric samples into the store.",
	Long: `Validate and store a batch of sessions and metric samples.

The batch is a JSON object with "sessions" and "metrics" arrays, the same body
accepted by POST /api/v1/ingest. Unknown fields and invalid samples reject the
whole batch.

Examples:
  perfscope ingest --file batch.json
  cat batch.json | perfscope ingest`,
	PreRunE: sharedSetupWrapper,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var r io.Reader = os.Stdin
		if path := viper.GetString("file"); path != "" && path != "-" {
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open ingest file: %w", err)
			}
			defer func() { _ = f.Close() }()
			r = f
		}

		batch, err := core.DecodeIngestBatch(r)
		if err != nil {
			return err
		}
		if err := core.IngestBatch(rootCtx, storeManager.GetMetricWriter(), batch); err != nil {
			return err
		}
		cmd.Printf("Ingested %d sessions and %d metric samples.\n", len(batch.Sessions), len(batch.Metrics))
		return nil
	},
}
