package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/huangsam/perfscope/schema"
)

// Score label constants. Higher performance scores are better.
const (
	ExcellentValue = "Excellent" // score >= 80
	GoodValue      = "Good"      // score >= 60
	FairValue      = "Fair"      // score >= 40
	PoorValue      = "Poor"      // everything else
)

// Color variables for console output.
var (
	CriticalColor = color.New(color.FgRed, color.Bold)     // criticalColor represents standard danger.
	HighColor     = color.New(color.FgMagenta, color.Bold) // highColor represents strong, distinct warning.
	ModerateColor = color.New(color.FgYellow)              // moderateColor represents standard caution, not bold.
	LowColor      = color.New(color.FgCyan)                // lowColor represents informational / low-priority signal.
	GoodColor     = color.New(color.FgGreen)
)

// GetPlainLabel returns the band label for a 0-100 performance score.
// This is the core logic used for CSV, JSON, and table printing.
func GetPlainLabel(score float64) string {
	switch {
	case score >= 80:
		return ExcellentValue
	case score >= 60:
		return GoodValue
	case score >= 40:
		return FairValue
	default:
		return PoorValue
	}
}

// GetColorLabel returns a colored score label for console output (table).
func GetColorLabel(score float64) string {
	text := GetPlainLabel(score)

	switch text {
	case ExcellentValue:
		return GoodColor.Sprint(text)
	case GoodValue:
		return LowColor.Sprint(text)
	case FairValue:
		return ModerateColor.Sprint(text)
	default:
		return CriticalColor.Sprint(text)
	}
}

// GetRiskColorLabel colors a risk level.
func GetRiskColorLabel(level schema.RiskLevel) string {
	switch level {
	case schema.HighRisk:
		return CriticalColor.Sprint(level)
	case schema.MediumRisk:
		return ModerateColor.Sprint(level)
	default:
		return GoodColor.Sprint(level)
	}
}

// GetSeverityColorLabel colors a severity.
func GetSeverityColorLabel(severity schema.Severity) string {
	switch severity {
	case schema.SeverityCritical:
		return CriticalColor.Sprint(severity)
	case schema.SeverityHigh:
		return HighColor.Sprint(severity)
	case schema.SeverityMedium:
		return ModerateColor.Sprint(severity)
	default:
		return LowColor.Sprint(severity)
	}
}

// SelectOutputFile returns the file handle for output, falling back to
// os.Stdout when no path is given.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	return os.Create(filePath)
}

// LogFatal logs an error and exits the program.
func LogFatal(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Fatal %s: %v\n", msg, err)
	os.Exit(1)
}

// LogWarn logs a warning message to stderr.
func LogWarn(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Warn %s: %v\n", msg, err)
}

// GetDBFilePath returns the path to the SQLite DB file.
func GetDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".perfscope.db"
	}
	return filepath.Join(homeDir, ".perfscope.db")
}

// GetBadgerDir returns the directory for the embedded key-value store.
func GetBadgerDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".perfscope_kv"
	}
	return filepath.Join(homeDir, ".perfscope_kv")
}

// TruncateRoute shortens a route for narrow tables, keeping the tail.
func TruncateRoute(route string, width int) string {
	if width <= 3 || len(route) <= width {
		return route
	}
	return "..." + route[len(route)-(width-3):]
}

// ParseBoolString parses yes/no style flags.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %s (expected yes/no/true/false/1/0)", s)
	}
}
