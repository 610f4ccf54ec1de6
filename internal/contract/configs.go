package contract

import (
	"fmt"
	"maps"
	"runtime"
	"strings"
	"time"

	"github.com/huangsam/perfscope/schema"
)

// Default values for configuration.
const (
	DefaultLookbackDays  = 7
	DefaultResultLimit   = 25
	MaxResultLimit       = 1000
	DefaultRowLimit      = 50000
	MaxRowLimit          = 1000000
	DefaultBatchSize     = 200
	DefaultPrecision     = 1
	DefaultHorizonHours  = 24
	MaxHorizonHours      = 24 * 14
	DefaultRatePerMinute = 120
)

// Default durations for configuration.
const (
	DefaultJourneyWindow = time.Hour
	DefaultCheckInterval = time.Minute
	DefaultLivePoll      = time.Second
	DefaultLiveGrace     = 2 * time.Second
)

// DefaultWorkers is the default number of concurrent workers to use.
var DefaultWorkers = runtime.GOMAXPROCS(0)

// ProfileConfig holds profiling settings.
type ProfileConfig struct {
	Enabled bool
	Prefix  string
}

// DateTimeFormat is the default date time representation.
var DateTimeFormat = time.RFC3339

// Config holds the runtime configuration for the analysis.
// This struct remains the "final, validated" config.
type Config struct {
	StartTime   time.Time
	EndTime     time.Time
	ResultLimit int
	RowLimit    int
	BatchSize   int
	Workers     int
	Precision   int
	Output      schema.OutputMode
	OutputFile  string
	Detail      bool
	Width       int // Terminal width override (0 = auto-detect)
	UseColors   bool

	RouteFilter    string
	DeviceFilter   string
	PlatformFilter string
	AppVersion     string

	JourneyWindow time.Duration
	HorizonHours  int

	Backend   schema.DatabaseBackend
	DBConnect string // Please use env var as this is plaintext

	KVBackend schema.KVBackend
	KVConnect string

	LogLevel  string
	LogFormat string

	ListenAddr    string
	RateLimit     int // requests per client per minute, 0 disables
	CheckInterval time.Duration
	LivePoll      time.Duration
	LiveGrace     time.Duration

	Policy AnalysisPolicy
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// --- Fields from rootCmd.PersistentFlags() ---
	OutputFile    string `mapstructure:"output-file"`
	Limit         int    `mapstructure:"limit"`
	RowLimit      int    `mapstructure:"row-limit"`
	BatchSize     int    `mapstructure:"batch-size"`
	Start         string `mapstructure:"start"`
	End           string `mapstructure:"end"`
	Workers       int    `mapstructure:"workers"`
	Precision     int    `mapstructure:"precision"`
	Output        string `mapstructure:"output"`
	Detail        bool   `mapstructure:"detail"`
	Width         int    `mapstructure:"width"`
	Color         string `mapstructure:"color"`
	Route         string `mapstructure:"route"`
	Device        string `mapstructure:"device"`
	Platform      string `mapstructure:"platform"`
	AppVersion    string `mapstructure:"app-version"`
	JourneyWindow string `mapstructure:"journey-window"`
	Horizon       int    `mapstructure:"horizon"`
	Backend       string `mapstructure:"backend"`
	DBConnect     string `mapstructure:"db-connect"`
	KVBackend     string `mapstructure:"kv-backend"`
	KVConnect     string `mapstructure:"kv-connect"`
	LogLevel      string `mapstructure:"log-level"`
	LogFormat     string `mapstructure:"log-format"`
	ListenAddr    string `mapstructure:"listen"`
	RateLimit     int    `mapstructure:"rate-limit"`
	CheckInterval string `mapstructure:"check-interval"`
	LivePoll      string `mapstructure:"live-poll"`
	LiveGrace     string `mapstructure:"live-grace"`

	// --- Analysis thresholds from config file ---
	Policy PolicyRawInput `mapstructure:"policy"`
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// CloneWithTimeWindow creates a copy of the Config and sets the new StartTime and EndTime.
func (c *Config) CloneWithTimeWindow(start time.Time, end time.Time) *Config {
	clone := c.Clone()
	clone.StartTime = start
	clone.EndTime = end
	return clone
}

// SessionFilter builds the data source filter for the configured window.
func (c *Config) SessionFilter() schema.SessionFilter {
	return schema.SessionFilter{
		Start:      c.StartTime,
		End:        c.EndTime,
		AppVersion: c.AppVersion,
		DeviceType: c.DeviceFilter,
		Platform:   c.PlatformFilter,
		Limit:      c.RowLimit,
		Newest:     true,
	}
}

// RunParams summarizes the config for the analysis-run log.
func (c *Config) RunParams() map[string]any {
	params := map[string]any{
		"start":          c.StartTime.Format(DateTimeFormat),
		"end":            c.EndTime.Format(DateTimeFormat),
		"limit":          c.ResultLimit,
		"row_limit":      c.RowLimit,
		"workers":        c.Workers,
		"journey_window": c.JourneyWindow.String(),
		"horizon_hours":  c.HorizonHours,
	}
	extra := map[string]any{}
	if c.RouteFilter != "" {
		extra["route"] = c.RouteFilter
	}
	if c.DeviceFilter != "" {
		extra["device"] = c.DeviceFilter
	}
	if c.PlatformFilter != "" {
		extra["platform"] = c.PlatformFilter
	}
	if c.AppVersion != "" {
		extra["app_version"] = c.AppVersion
	}
	maps.Copy(params, extra)
	return params
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := processTimeRange(cfg, input, time.Now()); err != nil {
		return err
	}
	if err := processDurations(cfg, input); err != nil {
		return err
	}
	if err := validateBackendConfigs(cfg, input); err != nil {
		return err
	}
	return processPolicy(cfg, input)
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// validateBackendConfigs validates the SQL and key-value backend configurations.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	backend := strings.ToLower(input.Backend)
	if backend == "" {
		backend = string(schema.SQLiteBackend)
	}
	cfg.Backend = schema.DatabaseBackend(backend)
	if _, ok := schema.ValidDatabaseBackends[cfg.Backend]; !ok {
		return fmt.Errorf("invalid backend '%s'. must be sqlite, mysql, postgresql, none", input.Backend)
	}
	cfg.DBConnect = input.DBConnect
	if err := ValidateDatabaseConnectionString(cfg.Backend, cfg.DBConnect); err != nil {
		return err
	}

	kv := strings.ToLower(input.KVBackend)
	if kv == "" {
		kv = string(schema.MemoryKV)
	}
	cfg.KVBackend = schema.KVBackend(kv)
	if _, ok := schema.ValidKVBackends[cfg.KVBackend]; !ok {
		return fmt.Errorf("invalid kv backend '%s'. must be memory, badger, redis", input.KVBackend)
	}
	cfg.KVConnect = input.KVConnect
	if cfg.KVBackend == schema.RedisKV && cfg.KVConnect == "" {
		return fmt.Errorf("kv-connect is required when using %s kv backend", cfg.KVBackend)
	}
	return nil
}

// validateSimpleInputs processes the scalar fields. Out-of-range numbers fall
// back to their defaults instead of failing, so a bad limit never blocks a report.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.OutputFile = input.OutputFile
	cfg.Detail = input.Detail
	cfg.Width = max(input.Width, 0)
	cfg.RouteFilter = strings.TrimSpace(input.Route)
	cfg.DeviceFilter = strings.TrimSpace(input.Device)
	cfg.PlatformFilter = strings.ToLower(strings.TrimSpace(input.Platform))
	cfg.AppVersion = strings.TrimSpace(input.AppVersion)
	cfg.ListenAddr = input.ListenAddr
	cfg.LogLevel = strings.ToLower(input.LogLevel)
	cfg.LogFormat = strings.ToLower(input.LogFormat)

	cfg.UseColors = true
	if input.Color != "" {
		colors, err := ParseBoolString(input.Color)
		if err != nil {
			return fmt.Errorf("invalid --color value: %w", err)
		}
		cfg.UseColors = colors
	}

	cfg.ResultLimit = NormalizeLimit(input.Limit, DefaultResultLimit, MaxResultLimit)
	cfg.RowLimit = NormalizeLimit(input.RowLimit, DefaultRowLimit, MaxRowLimit)
	cfg.BatchSize = NormalizeLimit(input.BatchSize, DefaultBatchSize, MaxResultLimit)
	cfg.HorizonHours = NormalizeLimit(input.Horizon, DefaultHorizonHours, MaxHorizonHours)

	cfg.Workers = input.Workers
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}

	cfg.Precision = input.Precision
	if cfg.Precision < 1 || cfg.Precision > 2 {
		cfg.Precision = DefaultPrecision
	}

	cfg.RateLimit = input.RateLimit
	if cfg.RateLimit < 0 {
		cfg.RateLimit = DefaultRatePerMinute
	}

	output := strings.ToLower(input.Output)
	if output == "" {
		output = string(schema.TextOut)
	}
	cfg.Output = schema.OutputMode(output)
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json, parquet", input.Output)
	}
	if cfg.Output == schema.ParquetOut && cfg.OutputFile == "" {
		return fmt.Errorf("parquet output requires --output-file")
	}
	return nil
}

// NormalizeLimit returns def for non-positive values and caps at maxValue.
func NormalizeLimit(value, def, maxValue int) int {
	if value <= 0 {
		return def
	}
	return min(value, maxValue)
}

// processTimeRange handles the date parsing and time range validation.
func processTimeRange(cfg *Config, input *ConfigRawInput, now time.Time) error {
	now = now.UTC()
	cfg.EndTime = now
	cfg.StartTime = cfg.EndTime.Add(-DefaultLookbackDays * 24 * time.Hour)

	if input.Start != "" {
		t, err := ParseTimeInput(input.Start, now)
		if err != nil {
			return fmt.Errorf("invalid start date format for '%s'. Expected absolute ISO8601 or 'N [units] ago': %w", input.Start, err)
		}
		cfg.StartTime = t
	}

	if input.End != "" {
		t, err := ParseTimeInput(input.End, now)
		if err != nil {
			return fmt.Errorf("invalid end date format for '%s'. Expected absolute ISO8601 or 'N [units] ago': %w", input.End, err)
		}
		cfg.EndTime = t
	}

	if cfg.StartTime.After(cfg.EndTime) {
		return fmt.Errorf("start time (%s) cannot be after end time (%s)", cfg.StartTime.Format(DateTimeFormat), cfg.EndTime.Format(DateTimeFormat))
	}
	return nil
}

// processDurations parses the duration flags, keeping defaults for empty values.
func processDurations(cfg *Config, input *ConfigRawInput) error {
	fields := []struct {
		name string
		raw  string
		def  time.Duration
		dst  *time.Duration
	}{
		{"journey-window", input.JourneyWindow, DefaultJourneyWindow, &cfg.JourneyWindow},
		{"check-interval", input.CheckInterval, DefaultCheckInterval, &cfg.CheckInterval},
		{"live-poll", input.LivePoll, DefaultLivePoll, &cfg.LivePoll},
		{"live-grace", input.LiveGrace, DefaultLiveGrace, &cfg.LiveGrace},
	}
	for _, f := range fields {
		*f.dst = f.def
		if strings.TrimSpace(f.raw) == "" {
			continue
		}
		d, err := ParseLookbackDuration(f.raw)
		if err != nil {
			return fmt.Errorf("invalid --%s: %w", f.name, err)
		}
		*f.dst = d
	}
	return nil
}

// ProcessProfilingConfig enables profiling when a file prefix is given.
func ProcessProfilingConfig(profile *ProfileConfig, profilePrefix string) {
	if profilePrefix != "" {
		profile.Enabled = true
		profile.Prefix = profilePrefix
	}
}
