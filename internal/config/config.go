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
	yaml "gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr    string `yaml:"httpAddr"`
	DatabaseURL string `yaml:"databaseUrl"`
	Migrate     bool   `yaml:"migrate"`
	RedisURL    string `yaml:"redisUrl"`

	Geocoder GeocoderConfig `yaml:"geocoder"`
	Auth     AuthConfig     `yaml:"auth"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Log      LogConfig      `yaml:"log"`
}

type GeocoderConfig struct {
	APIKey  string        `yaml:"apiKey"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
	RPS     float64       `yaml:"rps"`
	Burst   int           `yaml:"burst"`
}

// AuthConfig guards the manager endpoints. Mode "off" leaves them open;
// "hmac" requires an HS256 bearer token signed with Secret.
type AuthConfig struct {
	Mode                string        `yaml:"mode"`
	Secret              string        `yaml:"secret"`
	ManagerUsername     string        `yaml:"managerUsername"`
	ManagerPasswordHash string        `yaml:"managerPasswordHash"` // bcrypt
	TokenTTL            time.Duration `yaml:"tokenTtl"`
}

// WebhookConfig enables delivery of order events to an external URL.
type WebhookConfig struct {
	URL         string `yaml:"url"`
	Secret      string `yaml:"secret"`
	MaxAttempts int    `yaml:"maxAttempts"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

func Default() Config {
	return Config{
		HTTPAddr: ":8080",
		Migrate:  true,
		Geocoder: GeocoderConfig{
			URL:     "https://geocode-maps.yandex.ru/1.x/",
			Timeout: 5 * time.Second,
			RPS:     5,
			Burst:   5,
		},
		Auth:    AuthConfig{Mode: "off", ManagerUsername: "manager", TokenTTL: 12 * time.Hour},
		Webhook: WebhookConfig{MaxAttempts: 10},
		Log:     LogConfig{Level: "info", Format: "json"},
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in that order. A .env file in the working directory is loaded
// into the environment first when present; variables already set win.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf(".env: %w", err)
	}
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.validate()
}

func applyEnv(cfg *Config) error {
	if v := getenv("PORT"); v != "" {
		cfg.HTTPAddr = ":" + v
	}
	if v := getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := getenv("DB_MIGRATE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid DB_MIGRATE: %w", err)
		}
		cfg.Migrate = b
	}
	if v := getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := getenv("GEOCODER_API_KEY"); v != "" {
		cfg.Geocoder.APIKey = v
	}
	if v := getenv("GEOCODER_URL"); v != "" {
		cfg.Geocoder.URL = v
	}
	if v := getenv("GEOCODER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid GEOCODER_TIMEOUT: %w", err)
		}
		cfg.Geocoder.Timeout = d
	}
	if v := getenv("GEOCODER_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid GEOCODER_RPS: %w", err)
		}
		cfg.Geocoder.RPS = f
	}
	if v := getenv("GEOCODER_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid GEOCODER_BURST: %w", err)
		}
		cfg.Geocoder.Burst = n
	}
	if v := getenv("AUTH_MODE"); v != "" {
		cfg.Auth.Mode = strings.ToLower(v)
	}
	if v := getenv("AUTH_HMAC_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := getenv("MANAGER_USERNAME"); v != "" {
		cfg.Auth.ManagerUsername = v
	}
	if v := getenv("MANAGER_PASSWORD_HASH"); v != "" {
		cfg.Auth.ManagerPasswordHash = v
	}
	if v := getenv("AUTH_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid AUTH_TOKEN_TTL: %w", err)
		}
		cfg.Auth.TokenTTL = d
	}
	if v := getenv("WEBHOOK_URL"); v != "" {
		cfg.Webhook.URL = v
	}
	if v := getenv("WEBHOOK_SECRET"); v != "" {
		cfg.Webhook.Secret = v
	}
	if v := getenv("WEBHOOK_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid WEBHOOK_MAX_ATTEMPTS: %q", v)
		}
		cfg.Webhook.MaxAttempts = n
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	return nil
}

func (c Config) validate() error {
	if c.HTTPAddr == "" {
		return errors.New("httpAddr is required")
	}
	if c.Geocoder.Timeout <= 0 {
		return errors.New("geocoder timeout must be > 0")
	}
	if c.Geocoder.RPS < 0 {
		return errors.New("geocoder rps must be >= 0")
	}
	switch c.Auth.Mode {
	case "off":
	case "hmac":
		if c.Auth.Secret == "" {
			return errors.New("auth mode hmac requires AUTH_HMAC_SECRET")
		}
	default:
		return fmt.Errorf("unknown auth mode %q", c.Auth.Mode)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

func getenv(k string) string { return strings.TrimSpace(os.Getenv(k)) }
