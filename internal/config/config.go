// Package config loads runtime settings from the environment, an optional
// .env file and an optional TOML secrets file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/dvloznov/statement-insights/internal/domain"
)

// Config holds application configuration
type Config struct {
	Port     string
	LogLevel string

	OracleAPIKey          string
	OracleModel           string
	OracleTemperature     float32
	OracleCallTimeout     time.Duration
	OracleItemConcurrency int

	BatchSize         int
	BatchConcurrency  int
	StrictLabels      bool
	StatementEncoding string

	JobQueueSize int
	JobWorkers   int
	SessionTTL   time.Duration

	GCSCredentialsFile string
	SecretsFile        string

	// CredentialSource names where OracleAPIKey came from, for logging.
	CredentialSource string
}

// secrets mirrors the layout of the secrets file:
//
//	[oracle]
//	api_key = "..."
//
//	[config]
//	model = "gemini-2.5-flash"
//	temperature = 0.3
type secrets struct {
	Oracle struct {
		APIKey string `toml:"api_key"`
	} `toml:"oracle"`
	Config struct {
		Model       string   `toml:"model"`
		Temperature *float64 `toml:"temperature"`
	} `toml:"config"`
}

// Load reads configuration. Precedence, lowest first: defaults, the
// secrets file, environment variables. The oracle credential is taken
// from the secrets file when present, then GEMINI_API_KEY, then
// GOOGLE_API_KEY.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	var problems []error
	p := &parser{problems: &problems}

	cfg := &Config{
		Port:                  getEnv("PORT", "8080"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		OracleModel:           "gemini-2.5-flash",
		OracleTemperature:     0.3,
		OracleCallTimeout:     p.durationVar("ORACLE_CALL_TIMEOUT", 60*time.Second),
		OracleItemConcurrency: p.intVar("ORACLE_ITEM_CONCURRENCY", 4),
		BatchSize:             p.intVar("BATCH_SIZE", 20),
		BatchConcurrency:      p.intVar("BATCH_CONCURRENCY", 1),
		StrictLabels:          p.boolVar("STRICT_LABELS", false),
		StatementEncoding:     getEnv("STATEMENT_ENCODING", "ISO-8859-1"),
		JobQueueSize:          p.intVar("JOB_QUEUE_SIZE", 100),
		JobWorkers:            p.intVar("JOB_WORKERS", 2),
		SessionTTL:            p.durationVar("SESSION_TTL", 2*time.Hour),
		GCSCredentialsFile:    getEnv("GCS_CREDENTIALS_FILE", ""),
		SecretsFile:           getEnv("SECRETS_FILE", "secrets.toml"),
	}

	sec, err := readSecrets(cfg.SecretsFile)
	if err != nil {
		problems = append(problems, err)
	}
	if sec != nil {
		if sec.Oracle.APIKey != "" {
			cfg.OracleAPIKey = sec.Oracle.APIKey
			cfg.CredentialSource = cfg.SecretsFile
		}
		if sec.Config.Model != "" {
			cfg.OracleModel = sec.Config.Model
		}
		if sec.Config.Temperature != nil {
			cfg.OracleTemperature = float32(*sec.Config.Temperature)
		}
	}

	if cfg.OracleAPIKey == "" {
		for _, key := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"} {
			if v := os.Getenv(key); v != "" {
				cfg.OracleAPIKey = v
				cfg.CredentialSource = key
				break
			}
		}
	}
	cfg.OracleModel = getEnv("ORACLE_MODEL", cfg.OracleModel)
	cfg.OracleTemperature = p.float32Var("ORACLE_TEMPERATURE", cfg.OracleTemperature)

	if len(problems) > 0 {
		return nil, domain.ConfigurationError("Load", errors.Join(problems...))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges. The oracle credential is not required
// here; see RequireOracleCredential.
func (c *Config) Validate() error {
	var problems []error
	if c.Port == "" {
		problems = append(problems, errors.New("PORT is required"))
	}
	if c.OracleModel == "" {
		problems = append(problems, errors.New("ORACLE_MODEL is required"))
	}
	if c.OracleTemperature < 0 || c.OracleTemperature > 2 {
		problems = append(problems, fmt.Errorf("ORACLE_TEMPERATURE must be within [0, 2], got %v", c.OracleTemperature))
	}
	if c.BatchSize < 1 {
		problems = append(problems, fmt.Errorf("BATCH_SIZE must be positive, got %d", c.BatchSize))
	}
	if c.BatchConcurrency < 1 {
		problems = append(problems, fmt.Errorf("BATCH_CONCURRENCY must be positive, got %d", c.BatchConcurrency))
	}
	if c.OracleItemConcurrency < 1 {
		problems = append(problems, fmt.Errorf("ORACLE_ITEM_CONCURRENCY must be positive, got %d", c.OracleItemConcurrency))
	}
	if c.OracleCallTimeout < 0 {
		problems = append(problems, fmt.Errorf("ORACLE_CALL_TIMEOUT must not be negative, got %s", c.OracleCallTimeout))
	}
	if c.JobQueueSize < 1 {
		problems = append(problems, fmt.Errorf("JOB_QUEUE_SIZE must be positive, got %d", c.JobQueueSize))
	}
	if c.JobWorkers < 1 {
		problems = append(problems, fmt.Errorf("JOB_WORKERS must be positive, got %d", c.JobWorkers))
	}
	if strings.TrimSpace(c.StatementEncoding) == "" {
		problems = append(problems, errors.New("STATEMENT_ENCODING is required"))
	}

	if len(problems) > 0 {
		return domain.ConfigurationError("Validate", errors.Join(problems...))
	}
	return nil
}

// RequireOracleCredential fails when no oracle API key was found.
func (c *Config) RequireOracleCredential() error {
	if c.OracleAPIKey == "" {
		return domain.ConfigurationError("RequireOracleCredential",
			fmt.Errorf("no oracle API key: set [oracle] api_key in %s, GEMINI_API_KEY or GOOGLE_API_KEY", c.SecretsFile))
	}
	return nil
}

// readSecrets returns nil, nil when the file does not exist.
func readSecrets(path string) (*secrets, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read secrets file %s: %w", path, err)
	}

	var s secrets
	if err := toml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse secrets file %s: %w", path, err)
	}
	return &s, nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parser reads typed variables and records malformed values instead of
// silently falling back to the default.
type parser struct {
	problems *[]error
}

func (p *parser) fail(key, value string, err error) {
	*p.problems = append(*p.problems, fmt.Errorf("%s=%q: %w", key, value, err))
}

func (p *parser) intVar(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return n
}

func (p *parser) boolVar(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return b
}

func (p *parser) float32Var(key string, defaultValue float32) float32 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 32)
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return float32(f)
}

func (p *parser) durationVar(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return d
}
