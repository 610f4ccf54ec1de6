package outwriter

import (
	"os"

	"github.com/huangsam/perfscope/internal/contract"
	"golang.org/x/term"
)

// getMaxTableRouteWidth calculates the maximum width for route patterns in table output
// based on terminal width and the width already taken by the other columns.
func getMaxTableRouteWidth(cfg *contract.Config, fixedColumns int) int {
	termWidth := cfg.Width
	if termWidth == 0 {
		detectedWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detectedWidth <= 0 {
			termWidth = 80 // Conservative default for narrow terminals and CI
		} else {
			termWidth = detectedWidth
		}
	}

	// Reserve space for table borders, separators, and padding
	available := termWidth - fixedColumns - 20
	if available < 15 {
		return 15
	}
	if available > 60 {
		return 60
	}
	return available
}
