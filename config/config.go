package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	obs "github.com/Black-And-White-Club/frag-arena/pkg/observability"
)

// Config struct to hold the configuration settings
type Config struct {
	Postgres      PostgresConfig      `yaml:"postgres"`
	NATS          NATSConfig          `yaml:"nats"`
	JWT           JWTConfig           `yaml:"jwt"`
	HTTP          HTTPConfig          `yaml:"http"`
	Provider      ProviderConfig      `yaml:"provider"`
	Matchmaking   MatchmakingConfig   `yaml:"matchmaking"`
	Match         MatchConfig         `yaml:"match"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// PostgresConfig holds Postgres configuration.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// NATSConfig holds NATS configuration. InMemory swaps JetStream for a process-local bus.
type NATSConfig struct {
	URL      string `yaml:"url"`
	NKeySeed string `yaml:"nkey_seed"`
	InMemory bool   `yaml:"in_memory"`
}

// JWTConfig holds the signing settings for game server ingest tokens.
type JWTConfig struct {
	Secret     string        `yaml:"secret"`
	DefaultTTL time.Duration `yaml:"default_ttl"`
}

// HTTPConfig holds the ingress listener configuration.
type HTTPConfig struct {
	Address       string  `yaml:"address"`
	PublicBaseURL string  `yaml:"public_base_url"`
	WebhookSecret string  `yaml:"webhook_secret"`
	RateLimit     float64 `yaml:"rate_limit"`
	RateBurst     int     `yaml:"rate_burst"`
}

// ProviderConfig holds the game server provider API settings.
type ProviderConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// ModeConfig describes one queue: its roster shape and veto pools.
type ModeConfig struct {
	Name      string   `yaml:"name"`
	TeamSize  int      `yaml:"team_size"`
	Maps      []string `yaml:"maps"`
	Locations []string `yaml:"locations"`
}

// MatchmakingConfig holds pairing engine settings.
type MatchmakingConfig struct {
	TickInterval       time.Duration `yaml:"tick_interval"`
	ConfirmationWindow time.Duration `yaml:"confirmation_window"`
	Cooldown           time.Duration `yaml:"cooldown"`
	Modes              []ModeConfig  `yaml:"modes"`
}

// MatchConfig holds lifecycle timers, rating and reward settings.
type MatchConfig struct {
	ProvisioningTimeout time.Duration `yaml:"provisioning_timeout"`
	WarmupWindow        time.Duration `yaml:"warmup_window"`
	Countdown           time.Duration `yaml:"countdown"`
	CountdownCommand    string        `yaml:"countdown_command"`
	TeardownDelay       time.Duration `yaml:"teardown_delay"`
	PollInterval        time.Duration `yaml:"poll_interval"`
	PollConcurrency     int           `yaml:"poll_concurrency"`
	RatingModel         string        `yaml:"rating_model"` // fixed|elo
	RatingK             int           `yaml:"rating_k"`
	WinReward           int           `yaml:"win_reward"`
	LossReward          int           `yaml:"loss_reward"`
}

// ObservabilityConfig holds configuration for observability components
type ObservabilityConfig struct {
	MetricsAddress string `yaml:"metrics_address"`
	Environment    string `yaml:"environment"`
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
}

// LoadConfig loads the configuration from a YAML file.
func LoadConfig(filename string) (*Config, error) {
	// Try reading configuration from the file first
	data, err := os.ReadFile(filename)
	if err != nil {
		// If the file is not found, try loading from environment variables
		return loadConfigFromEnv()
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// loadConfigFromEnv loads the configuration from environment variables.
func loadConfigFromEnv() (*Config, error) {
	var cfg Config
	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	if cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}
	if cfg.NATS.URL == "" && !cfg.NATS.InMemory {
		return nil, fmt.Errorf("NATS_URL environment variable not set")
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("NATS_NKEY_SEED"); v != "" {
		cfg.NATS.NKeySeed = v
	}
	if v := os.Getenv("NATS_IN_MEMORY"); v != "" {
		cfg.NATS.InMemory = v == "true"
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWT.Secret = v
	}
	if v := os.Getenv("JWT_DEFAULT_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid JWT_DEFAULT_TTL value: %v", err)
		}
		cfg.JWT.DefaultTTL = d
	}
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("PUBLIC_BASE_URL"); v != "" {
		cfg.HTTP.PublicBaseURL = v
	}
	if v := os.Getenv("WEBHOOK_SECRET"); v != "" {
		cfg.HTTP.WebhookSecret = v
	}
	if v := os.Getenv("PROVIDER_BASE_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := os.Getenv("PROVIDER_API_KEY"); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := os.Getenv("RATING_MODEL"); v != "" {
		cfg.Match.RatingModel = v
	}
	if v := os.Getenv("RATING_K"); v != "" {
		k, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RATING_K value: %v", err)
		}
		cfg.Match.RatingK = k
	}
	if v := os.Getenv("METRICS_ADDRESS"); v != "" {
		cfg.Observability.MetricsAddress = v
	}
	if v := os.Getenv("ENV"); v != "" {
		cfg.Observability.Environment = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = strings.ToLower(v)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.JWT.DefaultTTL == 0 {
		c.JWT.DefaultTTL = 6 * time.Hour
	}
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.HTTP.RateLimit == 0 {
		c.HTTP.RateLimit = 50
	}
	if c.HTTP.RateBurst == 0 {
		c.HTTP.RateBurst = 100
	}
	if c.Provider.Timeout == 0 {
		c.Provider.Timeout = 15 * time.Second
	}
	if c.Matchmaking.TickInterval == 0 {
		c.Matchmaking.TickInterval = 10 * time.Second
	}
	if c.Matchmaking.ConfirmationWindow == 0 {
		c.Matchmaking.ConfirmationWindow = 20 * time.Second
	}
	if c.Matchmaking.Cooldown == 0 {
		c.Matchmaking.Cooldown = 60 * time.Second
	}
	if len(c.Matchmaking.Modes) == 0 {
		c.Matchmaking.Modes = []ModeConfig{{
			Name:      "duel",
			TeamSize:  1,
			Maps:      []string{"de_dust2", "de_mirage", "de_inferno", "de_nuke", "de_ancient", "de_anubis", "de_vertigo"},
			Locations: []string{"frankfurt", "stockholm", "london"},
		}}
	}
	for i := range c.Matchmaking.Modes {
		if c.Matchmaking.Modes[i].TeamSize == 0 {
			c.Matchmaking.Modes[i].TeamSize = 1
		}
	}
	if c.Match.ProvisioningTimeout == 0 {
		c.Match.ProvisioningTimeout = 5 * time.Minute
	}
	if c.Match.WarmupWindow == 0 {
		c.Match.WarmupWindow = 5 * time.Minute
	}
	if c.Match.Countdown == 0 {
		c.Match.Countdown = 10 * time.Second
	}
	if c.Match.CountdownCommand == "" {
		c.Match.CountdownCommand = "mp_warmup_pausetimer 0; mp_warmuptime 10"
	}
	if c.Match.TeardownDelay == 0 {
		c.Match.TeardownDelay = 15 * time.Second
	}
	if c.Match.PollInterval == 0 {
		c.Match.PollInterval = 5 * time.Second
	}
	if c.Match.PollConcurrency == 0 {
		c.Match.PollConcurrency = 8
	}
	if c.Match.RatingModel == "" {
		c.Match.RatingModel = "fixed"
	}
	if c.Match.RatingK == 0 {
		c.Match.RatingK = 25
	}
	if c.Match.WinReward == 0 {
		c.Match.WinReward = 100
	}
	if c.Match.LossReward == 0 {
		c.Match.LossReward = 25
	}
	if c.Observability.LogFormat == "" {
		c.Observability.LogFormat = "json"
	}
}

// Mode looks up a configured queue by name.
func (c *MatchmakingConfig) Mode(name string) (ModeConfig, bool) {
	for _, m := range c.Modes {
		if m.Name == name {
			return m, true
		}
	}
	return ModeConfig{}, false
}

func ToObsConfig(appCfg *Config) obs.Config {
	return obs.Config{
		ServiceName:    "frag-arena",
		Environment:    appCfg.Observability.Environment,
		Version:        "0.1.0",
		LogLevel:       appCfg.Observability.LogLevel,
		LogFormat:      appCfg.Observability.LogFormat,
		MetricsAddress: appCfg.Observability.MetricsAddress,
	}
}
