// Package main provides a performance benchmarking tool for the perfscope CLI.
// It generates synthetic telemetry at several dataset sizes, ingests each one into
// a fresh SQLite store and times every analysis command over it, treating the first
// successful run as cold and averaging the rest as warm. Results are written as CSV
// for performance analysis and documentation.
//
// Prerequisites:
// - perfscope binary installed and available in PATH
//
// Usage: go run benchmark/main.go [work-dir]
//
//	work-dir: Directory for the generated batches and databases (default: a temp dir)
package main

import (
	"encoding/csv"
	"fmt"
	"math/rand/v2"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/huangsam/perfscope/schema"
)

// BenchmarkResult holds the cold and warm timings of one command on one dataset.
type BenchmarkResult struct {
	Dataset  string
	Command  string
	Samples  int
	ColdTime string
	WarmTime string
}

// DatasetSpec describes one synthetic dataset.
type DatasetSpec struct {
	Name              string
	Users             int
	SessionsPerUser   int
	SamplesPerSession int
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	WorkDir  string
	Timeout  time.Duration
	Runs     int
	Datasets []DatasetSpec
	Commands []string
}

var routes = []string{"/home", "/feed", "/search", "/product/:id", "/cart", "/checkout", "/profile", "/settings"}

func main() {
	workDir := ""
	switch len(os.Args) {
	case 1:
		dir, err := os.MkdirTemp("", "perfscope-bench-*")
		if err != nil {
			fmt.Printf("Failed to create work dir: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = os.RemoveAll(dir) }()
		workDir = dir
	case 2:
		workDir = os.Args[1]
	default:
		fmt.Printf("Usage: %s [work-dir]\n", os.Args[0])
		os.Exit(1)
	}

	config := BenchmarkConfig{
		WorkDir: workDir,
		Timeout: 5 * time.Minute,
		Runs:    4,
		Datasets: []DatasetSpec{
			{Name: "small", Users: 20, SessionsPerUser: 2, SamplesPerSession: 60},
			{Name: "medium", Users: 200, SessionsPerUser: 3, SamplesPerSession: 120},
			{Name: "large", Users: 1000, SessionsPerUser: 4, SamplesPerSession: 240},
		},
		Commands: []string{"routes", "devices", "correlations", "journeys", "patterns", "abandonment", "trends", "warnings", "report"},
	}

	if _, err := exec.LookPath("perfscope"); err != nil {
		fmt.Printf("Prerequisites check failed: perfscope binary not found in PATH\n")
		os.Exit(1)
	}

	results, err := runBenchmarks(config)
	if err != nil {
		fmt.Printf("Benchmark failed: %v\n", err)
		os.Exit(1)
	}

	if err := saveResults(results); err != nil {
		fmt.Printf("Failed to save results: %v\n", err)
		os.Exit(1)
	}

	printSummary(results)
}

// generateBatch builds a deterministic synthetic batch. Later routes in the list
// are progressively slower and heavier so that rankings are stable.
func generateBatch(ds DatasetSpec, now time.Time) schema.IngestBatch {
	rng := rand.New(rand.NewPCG(42, uint64(ds.Users)))
	var batch schema.IngestBatch
	platforms := []string{"ios", "android"}
	devices := []string{"iPhone 15", "iPhone 12", "Pixel 8", "Galaxy A14"}

	for u := range ds.Users {
		for s := range ds.SessionsPerUser {
			start := now.Add(-time.Duration(rng.IntN(6*24)) * time.Hour)
			end := start.Add(time.Duration(ds.SamplesPerSession) * time.Second)
			id := fmt.Sprintf("bench-%s-%d-%d", ds.Name, u, s)
			batch.Sessions = append(batch.Sessions, schema.Session{
				ID:              id,
				AnonymousUserID: fmt.Sprintf("user-%d", u),
				DeviceType:      devices[u%len(devices)],
				Platform:        platforms[u%len(platforms)],
				AppVersion:      "3.2.0",
				SessionStart:    start,
				SessionEnd:      &end,
			})

			for i := range ds.SamplesPerSession {
				r := (i / 15) % len(routes)
				at := start.Add(time.Duration(i) * time.Second)
				ctx := schema.MetricContext{Route: routes[r]}
				batch.Metrics = append(batch.Metrics,
					schema.MetricSample{SessionID: id, Timestamp: at, MetricType: schema.FpsMetric, Value: 60 - float64(r)*4 - rng.Float64()*6, Context: ctx},
					schema.MetricSample{SessionID: id, Timestamp: at, MetricType: schema.MemoryMetric, Value: 180 + float64(r)*70 + rng.Float64()*40, Context: ctx},
					schema.MetricSample{SessionID: id, Timestamp: at, MetricType: schema.CPUMetric, Value: 15 + float64(r)*6 + rng.Float64()*10, Context: ctx},
				)
			}
		}
	}
	return batch
}

// prepareDataset writes and ingests one dataset and returns its store path.
func prepareDataset(config BenchmarkConfig, ds DatasetSpec) (string, int, error) {
	batch := generateBatch(ds, time.Now().UTC())
	batchPath := filepath.Join(config.WorkDir, ds.Name+".json")
	data, err := json.Marshal(batch)
	if err != nil {
		return "", 0, err
	}
	if err := os.WriteFile(batchPath, data, 0o600); err != nil {
		return "", 0, err
	}

	dbPath := filepath.Join(config.WorkDir, ds.Name+".db")
	_ = os.Remove(dbPath)
	cmd := exec.Command("perfscope", "ingest", "--file", batchPath, "--db-connect", dbPath)
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", 0, fmt.Errorf("ingest %s failed: %w\nOutput: %s", ds.Name, err, output)
	}
	return dbPath, len(batch.Metrics), nil
}

// runBenchmarks executes all commands across the configured datasets
func runBenchmarks(config BenchmarkConfig) ([]BenchmarkResult, error) {
	var results []BenchmarkResult

	fmt.Printf("Starting benchmark: %d datasets, %d commands, %v timeout, %d runs\n",
		len(config.Datasets), len(config.Commands), config.Timeout, config.Runs)

	for _, ds := range config.Datasets {
		fmt.Printf("Preparing %s dataset\n", ds.Name)
		dbPath, samples, err := prepareDataset(config, ds)
		if err != nil {
			return nil, err
		}

		for _, command := range config.Commands {
			cold, warm := runBenchmark(config, dbPath, command)
			fmt.Printf("  %-13s cold: %s, warm: %s\n", command, cold, warm)
			results = append(results, BenchmarkResult{
				Dataset:  ds.Name,
				Command:  command,
				Samples:  samples,
				ColdTime: cold,
				WarmTime: warm,
			})
		}
	}
	return results, nil
}

// runBenchmark executes a command several times and returns the cold time and
// the average warm time.
func runBenchmark(config BenchmarkConfig, dbPath, command string) (coldTime, warmAvg string) {
	args := []string{command, "--db-connect", dbPath, "--row-limit", "1000000", "--output", "json", "--output-file", os.DevNull}

	var times []float64
	for range config.Runs {
		start := time.Now()
		cmd := exec.Command("perfscope", args...)

		done := make(chan error, 1)
		go func() {
			done <- cmd.Run()
		}()

		select {
		case err := <-done:
			if err == nil {
				times = append(times, time.Since(start).Seconds())
			}
		case <-time.After(config.Timeout):
			_ = cmd.Process.Kill()
		}
	}

	if len(times) == 0 {
		return "TIMEOUT", "TIMEOUT"
	}
	coldTime = fmt.Sprintf("%.3fs", times[0])
	warmAvg = "n/a"
	if warm := times[1:]; len(warm) > 0 {
		var sum float64
		for _, t := range warm {
			sum += t
		}
		warmAvg = fmt.Sprintf("%.3fs", sum/float64(len(warm)))
	}
	return coldTime, warmAvg
}

// saveResults writes benchmark results to a timestamped CSV file
func saveResults(results []BenchmarkResult) error {
	timestamp := time.Now().Format("20060102_150405")
	filename := filepath.Join(os.TempDir(), fmt.Sprintf("perfscope_benchmark_%s.csv", timestamp))

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close file %s: %v\n", filename, closeErr)
		}
	}()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"dataset", "cmd", "samples", "cold_time", "warm_avg"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, result := range results {
		if err := writer.Write([]string{result.Dataset, result.Command, fmt.Sprint(result.Samples), result.ColdTime, result.WarmTime}); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	fmt.Printf("Results saved to %s\n", filename)
	return nil
}

// printSummary displays the final benchmark results summary
func printSummary(results []BenchmarkResult) {
	fmt.Printf("Benchmark complete\n")
	var dataset string
	for _, result := range results {
		if result.Dataset != dataset {
			dataset = result.Dataset
			fmt.Printf("%s (%d samples):\n", dataset, result.Samples)
		}
		fmt.Printf("  %-13s: Cold: %s, Warm: %s\n", result.Command, result.ColdTime, result.WarmTime)
	}
}
