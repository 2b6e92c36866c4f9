package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Config contains runtime settings for the analysis client, the MCP server and the CLI
type Config struct {
	LogLevel string
	Host     string // default 0.0.0.0
	Port     string // default PORT env or 8080

	// BackendURL is the Node REST backend; only reported, never called.
	BackendURL string

	Analysis struct {
		BaseURL string
		Token   string
		Timeout time.Duration
	}

	Poll struct {
		Interval      time.Duration
		Timeout       time.Duration
		MaxAttempts   int
		RetryAttempts int
		RetryDelay    time.Duration
	}

	Trend struct {
		Up   float64
		Down float64
	}

	Neo4j struct {
		URI      string
		Username string
		Password string
	} // optional job history store

	Sheets struct {
		CredentialsPath string
	}
}

// fileConfig is the optional YAML overlay named by CONFIG_FILE
type fileConfig struct {
	LogLevel string `yaml:"log_level"`
	Analysis struct {
		BaseURL string `yaml:"base_url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"analysis"`
	Poll struct {
		Interval      string `yaml:"interval"`
		Timeout       string `yaml:"timeout"`
		MaxAttempts   *int   `yaml:"max_attempts"`
		RetryAttempts *int   `yaml:"retry_attempts"`
		RetryDelay    string `yaml:"retry_delay"`
	} `yaml:"poll"`
	Trend struct {
		Up   *float64 `yaml:"up"`
		Down *float64 `yaml:"down"`
	} `yaml:"trend"`
}

// Neo4jEnabled reports whether Neo4j job history is configured
func (c Config) Neo4jEnabled() bool {
	return c.Neo4j.URI != ""
}

// Load populates config from defaults, an optional .env file, an optional
// YAML file (CONFIG_FILE) and finally environment variables.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := Config{
		LogLevel: "info",
		Host:     "0.0.0.0",
		Port:     "8080",
	}
	cfg.Analysis.Timeout = 60 * time.Second
	cfg.Poll.Interval = 2 * time.Second
	cfg.Poll.Timeout = 30 * time.Minute
	cfg.Poll.RetryAttempts = 3
	cfg.Poll.RetryDelay = 500 * time.Millisecond
	cfg.Trend.Up = 5
	cfg.Trend.Down = -5

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return cfg, err
		}
	}

	var errs []error

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if v := os.Getenv("MCP_HOST"); v != "" {
		cfg.Host = v
	}

	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}

	cfg.BackendURL = firstEnv("BACKEND_API_URL", "NEXT_PUBLIC_API_URL")

	if v := firstEnv("ANALYSIS_API_URL", "NEXT_PUBLIC_ANALYSIS_API_URL"); v != "" {
		cfg.Analysis.BaseURL = v
	}
	cfg.Analysis.Token = os.Getenv("ANALYSIS_API_TOKEN")
	envDuration("ANALYSIS_API_TIMEOUT", &cfg.Analysis.Timeout, &errs)

	envDuration("ANALYSIS_POLL_INTERVAL", &cfg.Poll.Interval, &errs)
	envDuration("ANALYSIS_POLL_TIMEOUT", &cfg.Poll.Timeout, &errs)
	envInt("ANALYSIS_POLL_MAX_ATTEMPTS", &cfg.Poll.MaxAttempts, &errs)
	envInt("ANALYSIS_RETRY_ATTEMPTS", &cfg.Poll.RetryAttempts, &errs)
	envDuration("ANALYSIS_RETRY_DELAY", &cfg.Poll.RetryDelay, &errs)

	envFloat("TREND_UP_THRESHOLD", &cfg.Trend.Up, &errs)
	envFloat("TREND_DOWN_THRESHOLD", &cfg.Trend.Down, &errs)

	cfg.Neo4j.URI = os.Getenv("NEO4J_URI")
	cfg.Neo4j.Username = os.Getenv("NEO4J_USERNAME")
	cfg.Neo4j.Password = os.Getenv("NEO4J_PASSWORD")

	cfg.Sheets.CredentialsPath = os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH")

	var missingVars []string

	if cfg.Analysis.BaseURL == "" {
		missingVars = append(missingVars, "NEXT_PUBLIC_ANALYSIS_API_URL")
	}

	if cfg.Neo4j.URI != "" {
		if cfg.Neo4j.Username == "" {
			missingVars = append(missingVars, "NEO4J_USERNAME")
		}
		if cfg.Neo4j.Password == "" {
			missingVars = append(missingVars, "NEO4J_PASSWORD")
		}
	}

	if len(missingVars) > 0 {
		errs = append(errs, fmt.Errorf("missing required environment variables: %s", strings.Join(missingVars, ", ")))
	}

	if cfg.Poll.Interval <= 0 {
		errs = append(errs, fmt.Errorf("poll interval must be positive, got %s", cfg.Poll.Interval))
	}

	if cfg.Trend.Down > cfg.Trend.Up {
		errs = append(errs, fmt.Errorf("trend down threshold %.2f is above up threshold %.2f", cfg.Trend.Down, cfg.Trend.Up))
	}

	return cfg, errors.Join(errs...)
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
	if fc.Analysis.BaseURL != "" {
		cfg.Analysis.BaseURL = fc.Analysis.BaseURL
	}

	var errs []error
	parseDuration("analysis.timeout", fc.Analysis.Timeout, &cfg.Analysis.Timeout, &errs)
	parseDuration("poll.interval", fc.Poll.Interval, &cfg.Poll.Interval, &errs)
	parseDuration("poll.timeout", fc.Poll.Timeout, &cfg.Poll.Timeout, &errs)
	parseDuration("poll.retry_delay", fc.Poll.RetryDelay, &cfg.Poll.RetryDelay, &errs)

	if fc.Poll.MaxAttempts != nil {
		cfg.Poll.MaxAttempts = *fc.Poll.MaxAttempts
	}
	if fc.Poll.RetryAttempts != nil {
		cfg.Poll.RetryAttempts = *fc.Poll.RetryAttempts
	}
	if fc.Trend.Up != nil {
		cfg.Trend.Up = *fc.Trend.Up
	}
	if fc.Trend.Down != nil {
		cfg.Trend.Down = *fc.Trend.Down
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	return nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func parseDuration(name, raw string, dst *time.Duration, errs *[]error) {
	if raw == "" {
		return
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s %q: %w", name, raw, err))
		return
	}
	*dst = d
}

func envDuration(key string, dst *time.Duration, errs *[]error) {
	parseDuration(key, os.Getenv(key), dst, errs)
}

func envInt(key string, dst *int, errs *[]error) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s %q: %w", key, raw, err))
		return
	}
	*dst = n
}

func envFloat(key string, dst *float64, errs *[]error) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s %q: %w", key, raw, err))
		return
	}
	*dst = v
}
