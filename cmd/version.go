package cmd

import (
	"runtime"
	"slices"
	"strings"

	"github.com/huangsam/perfscope/schema"
	"github.com/spf13/cobra"
)

// versionCmd prints the build and the storage backends compiled into it.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the perfscope build and supported backends.",
	Long: `Print the perfscope release, commit and build date, the Go runtime, and the
storage backends this binary can talk to.

Include this output when reporting an analysis that looks wrong: scores and
risk levels depend on the release, and ingest behavior depends on which
--backend and --kv-backend values the binary accepts.`,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("perfscope %s\n", version)
		cmd.Printf("  Commit:      %s\n", commit)
		cmd.Printf("  Built:       %s\n", date)
		cmd.Printf("  Runtime:     %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		cmd.Printf("  DB backends: %s\n", backendList(schema.ValidDatabaseBackends))
		cmd.Printf("  KV backends: %s\n", backendList(schema.ValidKVBackends))
	},
}

func backendList[K ~string](set map[K]struct{}) string {
	names := make([]string, 0, len(set))
	for k := range set {
		names = append(names, string(k))
	}
	slices.Sort(names)
	return strings.Join(names, ", ")
}
