package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// WorkspaceDir is the per-workspace state directory.
const WorkspaceDir = ".maml"

// Config holds all MAML toolchain configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM transport
	LLM LLMConfig `yaml:"llm"`

	// Persistence for MAMLs, papers and TEA ledgers
	Store StoreConfig `yaml:"store"`

	// Graph builder tuning
	Builder BuilderConfig `yaml:"builder"`

	// Paper loading
	Paper PaperConfig `yaml:"paper"`

	// TEA simulators
	Simulator SimulatorConfig `yaml:"simulator"`

	// Rendered worksheets and reports
	Artifacts ArtifactsConfig `yaml:"artifacts"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the LLM transport.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // openai, gemini
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Timeout     string  `yaml:"timeout"`
	MaxRetries  int     `yaml:"max_retries"`
	Temperature float64 `yaml:"temperature"`
}

// StoreConfig selects and configures the document store backend.
type StoreConfig struct {
	Backend    string         `yaml:"backend"` // file, sqlite, postgres, redis
	Dir        string         `yaml:"dir"`     // file backend root
	SQLitePath string         `yaml:"sqlite_path"`
	Postgres   PostgresConfig `yaml:"postgres"`
	Redis      RedisConfig    `yaml:"redis"`
}

// PostgresConfig configures the Postgres backend.
type PostgresConfig struct {
	DSN             string `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// BuilderConfig tunes the graph builder.
type BuilderConfig struct {
	// Characters of paper text used for classification queries
	ClassificationChars int `yaml:"classification_chars"`
	// Characters of paper text used for paper type assessment
	AssessmentChars int `yaml:"assessment_chars"`
}

// PaperConfig configures paper loading.
type PaperConfig struct {
	RenderJS     bool   `yaml:"render_js"` // fetch URLs through a headless browser
	FetchTimeout string `yaml:"fetch_timeout"`
}

// SimulatorConfig configures the TEA simulators.
type SimulatorConfig struct {
	ProfitMargin  float64  `yaml:"profit_margin"`
	DiscountRate  float64  `yaml:"discount_rate"`
	Level7Command []string `yaml:"level7_command"`
	Level7Timeout string   `yaml:"level7_timeout"`
}

// ArtifactsConfig selects where rendered artifacts go.
type ArtifactsConfig struct {
	Sink  string      `yaml:"sink"` // local, minio
	Dir   string      `yaml:"dir"`
	MinIO MinIOConfig `yaml:"minio"`
}

// MinIOConfig configures the object storage sink.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`      // debug, info, warn, error
	Format     string          `yaml:"format"`     // json, console
	DebugMode  bool            `yaml:"debug_mode"` // per-category files under .maml/logs
	Categories map[string]bool `yaml:"categories"` // per-category toggles
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "maml",
		Version: "0.3.0",

		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			BaseURL:     "https://api.openai.com/v1",
			Timeout:     "120s",
			MaxRetries:  3,
			Temperature: 0.1,
		},

		Store: StoreConfig{
			Backend:    "file",
			Dir:        filepath.Join(WorkspaceDir, "data"),
			SQLitePath: filepath.Join(WorkspaceDir, "maml.db"),
			Postgres: PostgresConfig{
				MaxOpenConns:    10,
				MaxIdleConns:    5,
				ConnMaxLifetime: "30m",
			},
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "maml",
			},
		},

		Builder: BuilderConfig{
			ClassificationChars: 1000,
			AssessmentChars:     7000,
		},

		Paper: PaperConfig{
			FetchTimeout: "60s",
		},

		Simulator: SimulatorConfig{
			ProfitMargin:  0.10,
			DiscountRate:  0.05,
			Level7Timeout: "10m",
		},

		Artifacts: ArtifactsConfig{
			Sink: "local",
			Dir:  filepath.Join(WorkspaceDir, "artifacts"),
			MinIO: MinIOConfig{
				Bucket: "maml-artifacts",
			},
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// DefaultConfigPath returns the config path inside a workspace.
func DefaultConfigPath(workspace string) string {
	return filepath.Join(workspace, WorkspaceDir, "config.yaml")
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// LoadDotEnv loads <workspace>/.env when present. Variables already set win.
func LoadDotEnv(workspace string) error {
	path := filepath.Join(workspace, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// Provider keys, lowest priority first
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "openai"
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "gemini"
	}
	if p := os.Getenv("MAML_LLM_PROVIDER"); p != "" {
		c.LLM.Provider = p
	}
	if m := os.Getenv("MAML_LLM_MODEL"); m != "" {
		c.LLM.Model = m
	}
	if u := os.Getenv("MAML_LLM_BASE_URL"); u != "" {
		c.LLM.BaseURL = u
	}

	if b := os.Getenv("MAML_STORE_BACKEND"); b != "" {
		c.Store.Backend = b
	}
	if dsn := os.Getenv("MAML_POSTGRES_DSN"); dsn != "" {
		c.Store.Postgres.DSN = dsn
	}
	if addr := os.Getenv("MAML_REDIS_ADDR"); addr != "" {
		c.Store.Redis.Addr = addr
	}
	if db := os.Getenv("MAML_REDIS_DB"); db != "" {
		if n, err := strconv.Atoi(db); err == nil {
			c.Store.Redis.DB = n
		}
	}

	if ep := os.Getenv("MAML_MINIO_ENDPOINT"); ep != "" {
		c.Artifacts.MinIO.Endpoint = ep
	}
	if k := os.Getenv("MAML_MINIO_ACCESS_KEY"); k != "" {
		c.Artifacts.MinIO.AccessKey = k
	}
	if k := os.Getenv("MAML_MINIO_SECRET_KEY"); k != "" {
		c.Artifacts.MinIO.SecretKey = k
	}

	if cmd := os.Getenv("MAML_LEVEL7_COMMAND"); cmd != "" {
		c.Simulator.Level7Command = strings.Fields(cmd)
	}
	if lvl := os.Getenv("MAML_LOG_LEVEL"); lvl != "" {
		c.Logging.Level = lvl
	}
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 120*time.Second)
}

// GetFetchTimeout returns the paper fetch timeout as a duration.
func (c *Config) GetFetchTimeout() time.Duration {
	return parseDuration(c.Paper.FetchTimeout, 60*time.Second)
}

// GetLevel7Timeout returns the external simulator timeout as a duration.
func (c *Config) GetLevel7Timeout() time.Duration {
	return parseDuration(c.Simulator.Level7Timeout, 10*time.Minute)
}

// GetConnMaxLifetime returns the Postgres connection lifetime as a duration.
func (c *Config) GetConnMaxLifetime() time.Duration {
	return parseDuration(c.Store.Postgres.ConnMaxLifetime, 30*time.Minute)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// ValidProviders lists all supported LLM providers.
var ValidProviders = []string{"openai", "gemini"}

// ValidBackends lists all supported store backends.
var ValidBackends = []string{"file", "sqlite", "postgres", "redis"}

// ValidSinks lists all supported artifact sinks.
var ValidSinks = []string{"local", "minio"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key not configured (set OPENAI_API_KEY or GEMINI_API_KEY)")
	}
	if !contains(ValidProviders, c.LLM.Provider) {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidProviders)
	}
	return c.ValidateStorage()
}

// ValidateStorage validates only the store and artifact sections.
// Commands that never reach the LLM (show, evals, catalog) use this.
func (c *Config) ValidateStorage() error {
	if !contains(ValidBackends, c.Store.Backend) {
		return fmt.Errorf("invalid store backend: %s (valid: %v)", c.Store.Backend, ValidBackends)
	}
	if c.Store.Backend == "postgres" && c.Store.Postgres.DSN == "" {
		return fmt.Errorf("postgres backend requires store.postgres.dsn (or MAML_POSTGRES_DSN)")
	}
	if !contains(ValidSinks, c.Artifacts.Sink) {
		return fmt.Errorf("invalid artifact sink: %s (valid: %v)", c.Artifacts.Sink, ValidSinks)
	}
	if c.Artifacts.Sink == "minio" && c.Artifacts.MinIO.Endpoint == "" {
		return fmt.Errorf("minio sink requires artifacts.minio.endpoint")
	}
	if c.Simulator.ProfitMargin < 0 {
		return fmt.Errorf("simulator.profit_margin must be >= 0, got %v", c.Simulator.ProfitMargin)
	}
	return nil
}

// IsLevel7Configured returns whether an external Level-7 engine is set.
func (c *Config) IsLevel7Configured() bool {
	return len(c.Simulator.Level7Command) > 0
}

// Resolve makes relative paths absolute against the workspace root.
func (c *Config) Resolve(workspace string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(workspace, p)
	}
	c.Store.Dir = abs(c.Store.Dir)
	c.Store.SQLitePath = abs(c.Store.SQLitePath)
	c.Artifacts.Dir = abs(c.Artifacts.Dir)
}

// LogDir returns the per-category log directory for a workspace.
func LogDir(workspace string) string {
	return filepath.Join(workspace, WorkspaceDir, "logs")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
