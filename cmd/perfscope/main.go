// Command perfscope analyzes mobile app performance telemetry.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/huangsam/perfscope/cmd"
	"github.com/huangsam/perfscope/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := cmd.Execute(ctx)
	if perr := cmd.StopProfiling(); perr != nil {
		fmt.Fprintln(os.Stderr, "❌", perr)
	}
	store.CloseStores()
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}
