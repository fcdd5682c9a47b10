package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"traveler/traveler/internal/verify"
)

// ErrConfiguration marks a missing or invalid setting that must stop the process at startup.
var ErrConfiguration = errors.New("configuration error")

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// PersonaConfig names the voice notes are signed with.
type PersonaConfig struct {
	Name string `yaml:"name"`
}

// InterestsConfig holds the keyword rules used for scoring.
type InterestsConfig struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// Source is one configured feed.
type Source struct {
	Type string `yaml:"type"`
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// DisplayName returns the source name, falling back to its type.
func (s Source) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Type
}

// RankingConfig is the selection policy.
type RankingConfig struct {
	DailyLimit       int     `yaml:"daily_limit"`
	MinScore         float64 `yaml:"min_score"`
	DedupeWindowDays int     `yaml:"dedupe_window_days"`
}

// RoteOutputConfig controls how notes are written.
type RoteOutputConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Tags           []string `yaml:"tags"`
	AddDailyDigest bool     `yaml:"add_daily_digest"`
}

// OutputConfig groups output targets.
type OutputConfig struct {
	Rote RoteOutputConfig `yaml:"rote"`
}

// WebhookConfig configures the webhook-to-notes listener. When Enabled, a
// scheduled run also serves it. Token and Secret are only read from the
// environment.
type WebhookConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Path      string `yaml:"path"`
	MaxBodyKB int    `yaml:"max_body_kb"`
	// AuthMode is one of token, signature or both. Empty selects the mode
	// matching the configured credentials.
	AuthMode string `yaml:"auth_mode"`

	Token  string      `yaml:"-"`
	Secret string      `yaml:"-"`
	Mode   verify.Mode `yaml:"-"`
}

// VerifyConfig returns the verifier settings for the resolved mode.
func (w WebhookConfig) VerifyConfig() verify.Config {
	return verify.Config{Mode: w.Mode, Token: w.Token, Secret: w.Secret}
}

// MaxBodyBytes returns the request body limit in bytes.
func (w WebhookConfig) MaxBodyBytes() int64 {
	return int64(w.MaxBodyKB) * 1024
}

// ListenAddr returns the formatted listen address for the HTTP server.
func (w WebhookConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", w.Host, w.Port)
}

// StateConfig selects the dedupe store backend.
type StateConfig struct {
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
	DBPath  string `yaml:"db_path"`
}

// SeenFilePath is the JSON document used by the file backend.
func (s StateConfig) SeenFilePath() string {
	return filepath.Join(s.Dir, DefaultSeenFile)
}

// SeenDBPath is the SQLite database used by the sqlite backend.
func (s StateConfig) SeenDBPath() string {
	if s.DBPath != "" {
		return s.DBPath
	}
	return filepath.Join(s.Dir, DefaultSeenDBFile)
}

// FetchConfig tunes the feed collector.
type FetchConfig struct {
	Workers      int           `yaml:"workers"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxItems     int           `yaml:"max_items"`
	MaxAge       time.Duration `yaml:"max_age"`
	HostInterval time.Duration `yaml:"host_interval"`
	UserAgent    string        `yaml:"user_agent"`
}

// RoteConfig holds the note API credentials, read from the environment.
type RoteConfig struct {
	APIBase string
	OpenKey string
}

// Config holds all configuration for the traveler binary.
type Config struct {
	Persona    PersonaConfig   `yaml:"persona"`
	Interests  InterestsConfig `yaml:"interests"`
	Sources    []Source        `yaml:"sources"`
	SourcesCSV string          `yaml:"sources_csv"`
	Ranking    RankingConfig   `yaml:"ranking"`
	Output     OutputConfig    `yaml:"output"`
	Webhook    WebhookConfig   `yaml:"webhook"`
	State      StateConfig     `yaml:"state"`
	Fetch      FetchConfig     `yaml:"fetch"`

	Rote     RoteConfig    `yaml:"-"`
	LogLevel zerolog.Level `yaml:"-"`
}

// DefaultConfig returns an initial configuration with hardcoded defaults.
func DefaultConfig() *Config {
	logLevel, _ := zerolog.ParseLevel(DefaultLogLevel)

	return &Config{
		Persona: PersonaConfig{Name: DefaultPersonaName},
		Ranking: RankingConfig{
			DailyLimit:       DefaultDailyLimit,
			MinScore:         DefaultMinScore,
			DedupeWindowDays: DefaultDedupeWindowDays,
		},
		Output: OutputConfig{Rote: RoteOutputConfig{
			Enabled: true,
			Tags:    slices.Clone(DefaultTags),
		}},
		Webhook: WebhookConfig{
			Port:      DefaultWebhookPort,
			Path:      DefaultWebhookPath,
			MaxBodyKB: DefaultWebhookMaxBodyKB,
		},
		State: StateConfig{
			Backend: BackendFile,
			Dir:     DefaultStateDir,
		},
		Fetch: FetchConfig{
			Workers:      DefaultFetchWorkers,
			Timeout:      DefaultFetchTimeout,
			MaxItems:     DefaultFetchMaxItems,
			MaxAge:       DefaultFetchMaxAge,
			HostInterval: DefaultFetchHostInterval,
			UserAgent:    "Traveler/1.0",
		},
		LogLevel: logLevel,
	}
}

// Load reads the YAML document at path on top of the defaults, applies the
// environment and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse is Load without the file read.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.State.Dir = GetEnvString("TRAVELER_STATE_DIR", c.State.Dir)
	c.Rote.APIBase = GetEnvString("ROTE_API_BASE", "")
	c.Rote.OpenKey = GetEnvString("ROTE_OPENKEY", "")
	c.Webhook.Token = GetEnvString("WEBHOOK_TOKEN", "")
	c.Webhook.Secret = GetEnvString("WEBHOOK_SECRET", "")
	c.Webhook.AuthMode = GetEnvString("WEBHOOK_AUTH_MODE", c.Webhook.AuthMode)
	c.LogLevel = GetEnvLogLevel("TRAVELER_LOG_LEVEL", c.LogLevel)
}

// Validate checks value ranges. Credentials are checked separately by the
// commands that need them.
func (c *Config) Validate() error {
	if c.Persona.Name == "" {
		c.Persona.Name = DefaultPersonaName
	}
	if c.Ranking.DailyLimit < 0 {
		return configErrorf("ranking.daily_limit must be >= 0, got %d", c.Ranking.DailyLimit)
	}
	if c.Ranking.MinScore < 0 || c.Ranking.MinScore > 1 {
		return configErrorf("ranking.min_score must be within [0,1], got %v", c.Ranking.MinScore)
	}
	if c.Ranking.DedupeWindowDays < 0 {
		return configErrorf("ranking.dedupe_window_days must be >= 0, got %d", c.Ranking.DedupeWindowDays)
	}
	if c.Webhook.Port <= 0 || c.Webhook.Port > 65535 {
		return configErrorf("webhook.port out of range: %d", c.Webhook.Port)
	}
	if c.Webhook.Path == "" || c.Webhook.Path[0] != '/' {
		return configErrorf("webhook.path must start with '/': %q", c.Webhook.Path)
	}
	if c.Webhook.MaxBodyKB <= 0 {
		return configErrorf("webhook.max_body_kb must be positive, got %d", c.Webhook.MaxBodyKB)
	}
	if c.Webhook.AuthMode == "" {
		c.Webhook.Mode = verify.ModeFor(c.Webhook.Token, c.Webhook.Secret)
	} else {
		mode, err := verify.ParseMode(c.Webhook.AuthMode)
		if err != nil {
			return configErrorf("webhook.auth_mode: %v", err)
		}
		c.Webhook.Mode = mode
	}
	switch c.State.Backend {
	case BackendFile, BackendSQLite:
	default:
		return configErrorf("state.backend must be %q or %q, got %q", BackendFile, BackendSQLite, c.State.Backend)
	}
	for i, src := range c.Sources {
		if src.URL == "" {
			return configErrorf("sources[%d]: url is required", i)
		}
	}
	if c.Fetch.Workers <= 0 {
		c.Fetch.Workers = DefaultFetchWorkers
	}
	return nil
}

// RequireRote fails when the note API credentials are missing.
func (c *Config) RequireRote() error {
	if c.Rote.APIBase == "" {
		return configErrorf("missing ROTE_API_BASE")
	}
	if c.Rote.OpenKey == "" {
		return configErrorf("missing ROTE_OPENKEY")
	}
	return nil
}

// RequireWebhookAuth fails when the webhook server would run open or when the
// credentials its mode needs are missing.
func (c *Config) RequireWebhookAuth() error {
	if c.Webhook.Mode == verify.Open {
		return configErrorf("missing WEBHOOK_TOKEN or WEBHOOK_SECRET")
	}
	if _, err := verify.New(c.Webhook.VerifyConfig()); err != nil {
		return configErrorf("webhook auth: %v", err)
	}
	return nil
}

// NoteTags returns the configured default tags for created notes.
func (c *Config) NoteTags() []string {
	if c.Output.Rote.Tags == nil {
		return slices.Clone(DefaultTags)
	}
	return slices.Clone(c.Output.Rote.Tags)
}

// WithSources returns a copy of the configuration with extra sources appended.
func (c *Config) WithSources(extra []Source) *Config {
	out := *c
	out.Sources = append(slices.Clone(c.Sources), extra...)
	return &out
}
