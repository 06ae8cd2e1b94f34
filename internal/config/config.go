package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/labstack/gommon/bytes"
	"github.com/rs/zerolog"
)

const (
	envPrefix = "QUOTEEDGE_"

	EnvProduction  = "production"
	EnvDevelopment = "development"

	// InsecureIPHashSecret is only accepted outside production.
	InsecureIPHashSecret = "dev-secret-change-me"
)

type Config struct {
	Primary       Primary              `koanf:"primary" validate:"required"`
	Server        ServerConfig         `koanf:"server" validate:"required"`
	Auth          AuthConfig           `koanf:"auth" validate:"required"`
	Features      FeaturesConfig       `koanf:"features"`
	Upstream      UpstreamConfig       `koanf:"upstream" validate:"required"`
	Visits        VisitsConfig         `koanf:"visits" validate:"required"`
	Observability *ObservabilityConfig `koanf:"observability"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

type ServerConfig struct {
	Port               string        `koanf:"port" validate:"required,numeric"`
	ReadTimeout        time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout       time.Duration `koanf:"write_timeout" validate:"gt=0"`
	IdleTimeout        time.Duration `koanf:"idle_timeout" validate:"gt=0"`
	CORSAllowedOrigins []string      `koanf:"cors_allowed_origins" validate:"required,min=1,dive,required"`
	TrustProxy         bool          `koanf:"trust_proxy"`
	BodyLimit          string        `koanf:"body_limit" validate:"required"`
}

type AuthConfig struct {
	APIKey string `koanf:"api_key" validate:"required"`
	Header string `koanf:"header" validate:"required"`
}

type FeaturesConfig struct {
	RequireAPIKey bool `koanf:"require_api_key"`
	RenderView    bool `koanf:"render_view"`
}

type UpstreamConfig struct {
	QuoteURL string        `koanf:"quote_url" validate:"required,url"`
	Timeout  time.Duration `koanf:"timeout" validate:"gt=0"`
	Source   string        `koanf:"source" validate:"required"`
}

type VisitsConfig struct {
	Enabled      bool          `koanf:"enabled"`
	Sink         string        `koanf:"sink" validate:"required"`
	IPHashSecret string        `koanf:"ip_hash_secret"`
	CookieName   string        `koanf:"cookie_name" validate:"required"`
	CookieMaxAge time.Duration `koanf:"cookie_max_age" validate:"gt=0"`
	SecureCookie bool          `koanf:"secure_cookie"`
	Workers      int           `koanf:"workers" validate:"min=1"`
	QueueSize    int           `koanf:"queue_size" validate:"min=1"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"gt=0"`

	Postgres PostgresSinkConfig `koanf:"postgres"`
	SQLite   SQLiteSinkConfig   `koanf:"sqlite"`
	Redis    RedisSinkConfig    `koanf:"redis"`
}

type PostgresSinkConfig struct {
	DSN      string `koanf:"dsn"`
	MaxConns int    `koanf:"max_conns"`
	Migrate  bool   `koanf:"migrate"`
}

type SQLiteSinkConfig struct {
	Path string `koanf:"path"`
}

type RedisSinkConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Stream   string `koanf:"stream"`
}

// Default returns a Config carrying every documented default. Load unmarshals
// the environment over it, so keys that are not set keep these values.
func Default() *Config {
	return &Config{
		Primary: Primary{Env: EnvDevelopment},
		Server: ServerConfig{
			Port:               "3000",
			ReadTimeout:        10 * time.Second,
			WriteTimeout:       15 * time.Second,
			IdleTimeout:        60 * time.Second,
			CORSAllowedOrigins: []string{"*"},
			BodyLimit:          "1M",
		},
		Auth: AuthConfig{Header: "x-api-key"},
		Features: FeaturesConfig{
			RequireAPIKey: true,
		},
		Upstream: UpstreamConfig{
			QuoteURL: "https://dummyjson.com/quotes/random",
			Timeout:  5 * time.Second,
			Source:   "dummyjson",
		},
		Visits: VisitsConfig{
			Enabled:      true,
			Sink:         "log",
			CookieName:   "visitor_id",
			CookieMaxAge: 365 * 24 * time.Hour,
			Workers:      2,
			QueueSize:    256,
			WriteTimeout: 5 * time.Second,
			Postgres:     PostgresSinkConfig{MaxConns: 4, Migrate: true},
			SQLite:       SQLiteSinkConfig{Path: "visits.db"},
			Redis:        RedisSinkConfig{Stream: "visits"},
		},
		Observability: DefaultObservabilityConfig(),
	}
}

// IsProduction reports whether the service runs with the production designation.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Primary.Env, EnvProduction)
}

// Load reads .env (if present) and QUOTEEDGE_* environment variables into a
// validated Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	k := koanf.New(".")
	err := k.Load(env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, any) {
		key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
		key = strings.ReplaceAll(key, "__", ".")
		if strings.HasSuffix(key, "origins") {
			return key, splitList(value)
		}
		return key, value
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if _, err := bytes.Parse(cfg.Server.BodyLimit); err != nil {
		return nil, fmt.Errorf("invalid server.body_limit %q: %w", cfg.Server.BodyLimit, err)
	}

	if cfg.Observability == nil {
		cfg.Observability = DefaultObservabilityConfig()
	}
	cfg.Observability.ServiceName = "quoteedge"
	cfg.Observability.Environment = cfg.Primary.Env
	if cfg.Observability.Logging.Format == "" {
		cfg.Observability.Logging.Format = "console"
		if cfg.IsProduction() {
			cfg.Observability.Logging.Format = "json"
		}
	}
	if err := cfg.Observability.Validate(); err != nil {
		return nil, fmt.Errorf("invalid observability config: %w", err)
	}

	if cfg.Visits.IPHashSecret == "" {
		if cfg.IsProduction() {
			return nil, errors.New("visits.ip_hash_secret is required in production")
		}
		cfg.Visits.IPHashSecret = InsecureIPHashSecret
	}

	return cfg, nil
}

// LoadApp is Load for process startup: any configuration error is fatal.
func LoadApp() *Config {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("could not load configuration")
	}
	if cfg.Visits.IPHashSecret == InsecureIPHashSecret {
		logger.Warn().Msg("visits.ip_hash_secret not set, using the insecure development default")
	}
	return cfg
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SinkConfig returns the settings of the selected visit sink as a flat map.
func (v VisitsConfig) SinkConfig() map[string]any {
	switch v.Sink {
	case "postgres":
		return map[string]any{"dsn": v.Postgres.DSN, "max_conns": v.Postgres.MaxConns, "migrate": v.Postgres.Migrate}
	case "sqlite":
		return map[string]any{"path": v.SQLite.Path}
	case "redis":
		return map[string]any{"addr": v.Redis.Addr, "password": v.Redis.Password, "db": v.Redis.DB, "stream": v.Redis.Stream}
	default:
		return map[string]any{}
	}
}
