// Package config provides configuration handling
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"genix/util"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Quota backends
const (
	QuotaBackendMemory   = "memory"
	QuotaBackendSurreal  = "surreal"
	QuotaBackendPostgres = "postgres"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `json:"server" mapstructure:"server"`
	Database  DatabaseConfig  `json:"database" mapstructure:"database"`
	Redis     RedisConfig     `json:"redis" mapstructure:"redis"`
	Surreal   SurrealConfig   `json:"surreal" mapstructure:"surreal"`
	Auth      AuthConfig      `json:"auth" mapstructure:"auth"`
	Providers ProvidersConfig `json:"providers" mapstructure:"providers"`
	Quota     QuotaConfig     `json:"quota" mapstructure:"quota"`
	LogLevel  string          `json:"logLevel" mapstructure:"log_level"`
}

// ServerConfig contains server configuration
type ServerConfig struct {
	Host         string `json:"host" mapstructure:"host"`
	Port         int    `json:"port" mapstructure:"port"`
	BodyLimitMiB int    `json:"bodyLimitMib" mapstructure:"body_limit_mib"`
}

// Address returns the host:port the server listens on
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig contains postgres configuration for the relational quota backend
type DatabaseConfig struct {
	Host             string `json:"host" mapstructure:"host"`
	Port             int    `json:"port" mapstructure:"port"`
	User             string `json:"user" mapstructure:"user"`
	Password         string `json:"password" mapstructure:"password"`
	DBName           string `json:"dbname" mapstructure:"dbname"`
	SSLMode          string `json:"sslmode" mapstructure:"sslmode"`
	ConnectionString string `json:"connectionString" mapstructure:"connection_string"`
}

// DSN returns the explicit connection string, or one assembled from the individual fields
func (d DatabaseConfig) DSN() string {
	if d.ConnectionString != "" {
		return d.ConnectionString
	}
	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		d.User,
		d.Password,
		d.Host,
		d.Port,
		d.DBName,
		d.SSLMode,
	)
}

// RedisConfig contains redis configuration for the quota cache
type RedisConfig struct {
	Host           string `json:"host" mapstructure:"host"`
	Port           int    `json:"port" mapstructure:"port"`
	Password       string `json:"password" mapstructure:"password"`
	DB             int    `json:"db" mapstructure:"db"`
	Enabled        bool   `json:"enabled" mapstructure:"enabled"`
	QuotaTTL       string `json:"quotaTtl" mapstructure:"quota_ttl"`
	PoolSize       int    `json:"poolSize" mapstructure:"pool_size"`
	MinIdleConns   int    `json:"minIdleConnections" mapstructure:"min_idle_connections"`
	ConnectTimeout string `json:"connectTimeout" mapstructure:"connect_timeout"`
}

// SurrealConfig contains the document store connection settings
type SurrealConfig struct {
	URL       string `json:"url" mapstructure:"url"`
	User      string `json:"user" mapstructure:"user"`
	Pass      string `json:"pass" mapstructure:"pass"`
	Namespace string `json:"namespace" mapstructure:"namespace"`
	Database  string `json:"database" mapstructure:"database"`
}

// AuthConfig contains authentication configuration. An empty JWKSUri disables auth.
type AuthConfig struct {
	JWKSUri  string `json:"jwksUri" mapstructure:"jwks_uri"`
	Audience string `json:"audience" mapstructure:"audience"`
	Issuer   string `json:"issuer" mapstructure:"issuer"`
}

// Enabled reports whether bearer tokens are verified
func (a AuthConfig) Enabled() bool {
	return a.JWKSUri != ""
}

// ProvidersConfig contains the upstream image provider settings
type ProvidersConfig struct {
	Default   string          `json:"default" mapstructure:"default"`
	Timeout   time.Duration   `json:"timeout" mapstructure:"timeout"`
	Vision    VisionConfig    `json:"vision" mapstructure:"vision"`
	TextToURL TextToURLConfig `json:"textToUrl" mapstructure:"text_to_url"`
}

// VisionConfig configures the OpenAI-compatible image generation endpoint
type VisionConfig struct {
	BaseURL               string `json:"baseUrl" mapstructure:"base_url"`
	APIKey                string `json:"-" mapstructure:"api_key"`
	Model                 string `json:"model" mapstructure:"model"`
	Size                  string `json:"size" mapstructure:"size"`
	Quality               string `json:"quality" mapstructure:"quality"`
	EnableReferenceImages bool   `json:"enableReferenceImages" mapstructure:"enable_reference_images"`
	ReferenceMaxDimension int    `json:"referenceMaxDimension" mapstructure:"reference_max_dimension"`
}

// TextToURLConfig configures the Gemini generateContent endpoint
type TextToURLConfig struct {
	BaseURL string `json:"baseUrl" mapstructure:"base_url"`
	APIKey  string `json:"-" mapstructure:"api_key"`
	Model   string `json:"model" mapstructure:"model"`
}

// QuotaConfig contains the per-user generation allowance settings
type QuotaConfig struct {
	Backend            string `json:"backend" mapstructure:"backend"`
	MaxFreeGenerations int    `json:"maxFreeGenerations" mapstructure:"max_free_generations"`
}

// envAliases maps config keys onto the environment variable names the
// front end deployment already uses
var envAliases = map[string][]string{
	"providers.vision.api_key":                 {"OPENAI_API_KEY"},
	"providers.vision.base_url":                {"OPENAI_BASE_URL"},
	"providers.vision.enable_reference_images": {"ENABLE_REFERENCE_IMAGES"},
	"providers.text_to_url.api_key":            {"GOOGLE_GEMINI_API_KEY"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.body_limit_mib", 16)
	v.SetDefault("log_level", "info")

	v.SetDefault("auth.jwks_uri", "")
	v.SetDefault("auth.audience", "")
	v.SetDefault("auth.issuer", "")

	v.SetDefault("providers.default", "vision")
	v.SetDefault("providers.timeout", "30s")
	v.SetDefault("providers.vision.base_url", "https://api.gptsapi.net/v1")
	v.SetDefault("providers.vision.api_key", "")
	v.SetDefault("providers.vision.model", "dall-e-3")
	v.SetDefault("providers.vision.size", "1024x1024")
	v.SetDefault("providers.vision.quality", "standard")
	v.SetDefault("providers.vision.enable_reference_images", false)
	v.SetDefault("providers.vision.reference_max_dimension", 1024)
	v.SetDefault("providers.text_to_url.base_url", "")
	v.SetDefault("providers.text_to_url.api_key", "")
	v.SetDefault("providers.text_to_url.model", "gemini-1.5-flash-latest")

	v.SetDefault("quota.backend", QuotaBackendMemory)
	v.SetDefault("quota.max_free_generations", 5)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "genix")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.connection_string", "")

	v.SetDefault("surreal.url", "ws://localhost:8000/rpc")
	v.SetDefault("surreal.user", "root")
	v.SetDefault("surreal.pass", "root")
	v.SetDefault("surreal.namespace", "genix")
	v.SetDefault("surreal.database", "genix")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.quota_ttl", "24h")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_connections", 3)
	v.SetDefault("redis.connect_timeout", "5s")
}

// Load reads configuration from path (optional) and the environment. A .env
// file in the working directory is loaded first so secrets can live outside the yaml.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		util.LogWarning("Could not load .env file", logrus.Fields{"error": err})
	}

	v := viper.New()
	setDefaults(v)

	// Enable env var overrides (e.g. SERVER_PORT, PROVIDERS_VISION_API_KEY)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, aliases := range envAliases {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(append([]string{key, envKey}, aliases...)...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
			util.LogWarning("Config file not found, using defaults", logrus.Fields{"path": path})
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the loaded values and reports every problem at once
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Providers.Timeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("providers.timeout must be positive"))
	}
	switch c.Providers.Default {
	case "vision", "text-to-url":
	default:
		result = multierror.Append(result, fmt.Errorf("providers.default must be vision or text-to-url, got %q", c.Providers.Default))
	}
	switch c.Quota.Backend {
	case QuotaBackendMemory, QuotaBackendSurreal, QuotaBackendPostgres:
	default:
		result = multierror.Append(result, fmt.Errorf("unknown quota.backend %q", c.Quota.Backend))
	}
	if c.Quota.MaxFreeGenerations < 0 {
		result = multierror.Append(result, fmt.Errorf("quota.max_free_generations must not be negative"))
	}
	if c.Redis.Enabled {
		if _, err := c.GetRedisConfigDurations(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}

// RedisDurations holds the parsed redis timing settings
type RedisDurations struct {
	QuotaTTL       time.Duration
	ConnectTimeout time.Duration
}

// GetRedisConfigDurations returns the Redis TTL durations converted from strings
func (c *Config) GetRedisConfigDurations() (RedisDurations, error) {
	var d RedisDurations
	var err error

	d.QuotaTTL, err = time.ParseDuration(c.Redis.QuotaTTL)
	if err != nil {
		return d, fmt.Errorf("invalid redis.quota_ttl: %w", err)
	}

	d.ConnectTimeout, err = time.ParseDuration(c.Redis.ConnectTimeout)
	if err != nil {
		return d, fmt.Errorf("invalid redis.connect_timeout: %w", err)
	}
	return d, nil
}
