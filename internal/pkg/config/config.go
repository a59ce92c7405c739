package config

import (
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "config.yaml"

type Config struct {
	Server        ServerConfig         `koanf:"server"`
	Auth          AuthConfig           `koanf:"auth"`
	Storage       StorageConfig        `koanf:"storage"`
	Cache         CacheConfig          `koanf:"cache"`
	Providers     []ProviderConfig     `koanf:"providers"`
	Orchestrator  OrchestratorConfig   `koanf:"orchestrator"`
	Usage         UsageConfig          `koanf:"usage"`
	Thumbnails    ThumbnailsConfig     `koanf:"thumbnails"`
	Events        EventsConfig         `koanf:"events"`
	Telemetry     TelemetryConfig      `koanf:"telemetry"`
	Subscriptions []SubscriptionConfig `koanf:"subscriptions"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	CORSOrigins    []string      `koanf:"cors_origins"`
	// RequestsPerMinute limits generation requests per user; 0 disables the limiter.
	RequestsPerMinute int `koanf:"requests_per_minute"`
	RequestBurst      int `koanf:"request_burst"`
}

type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret"`
	Issuer    string `koanf:"issuer"`
	// Disabled accepts every request as DevUserID. Development only.
	Disabled  bool   `koanf:"disabled"`
	DevUserID string `koanf:"dev_user_id"`
	// APIKeys authenticate server-to-server callers by SHA-256 hash.
	APIKeys []APIKeyConfig `koanf:"api_keys"`
}

type APIKeyConfig struct {
	KeyHash     string `koanf:"key_hash"`
	UserID      string `koanf:"user_id"`
	Description string `koanf:"description"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // sqlite, memory
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type CacheConfig struct {
	Type  string        `koanf:"type"` // memory, redis, none
	TTL   time.Duration `koanf:"ttl"`
	Redis RedisConfig   `koanf:"redis"`
}

type RedisConfig struct {
	Addr      string `koanf:"addr"`
	Password  string `koanf:"password"`
	DB        int    `koanf:"db"`
	KeyPrefix string `koanf:"key_prefix"`
}

// ProviderConfig configures one adapter. Role selects which orchestrator phase
// it serves; exactly one provider per role is used.
type ProviderConfig struct {
	Name    string        `koanf:"name"`
	Type    string        `koanf:"type"` // openai, anthropic, fixture
	Role    string        `koanf:"role"` // drafting, validation, qa
	APIKey  string        `koanf:"api_key"`
	BaseURL string        `koanf:"base_url"`
	Model   string        `koanf:"model"`
	Timeout time.Duration `koanf:"timeout"`
	// MaxTokens bounds the completion length; 0 uses the adapter default.
	MaxTokens int `koanf:"max_tokens"`
}

type OrchestratorConfig struct {
	OverallTimeout      time.Duration         `koanf:"overall_timeout"`
	DraftingTimeout     time.Duration         `koanf:"drafting_timeout"`
	ValidationTimeout   time.Duration         `koanf:"validation_timeout"`
	QATimeout           time.Duration         `koanf:"qa_timeout"`
	ConfidenceThreshold float64               `koanf:"confidence_threshold"`
	DraftingRetries     int                   `koanf:"drafting_retries"` // extra attempts after a transient drafting failure
	Tiers               map[string]TierConfig `koanf:"tiers"`
}

// TierConfig overrides the feature table for one tier.
type TierConfig struct {
	MultiProvider bool   `koanf:"multi_provider"`
	Validation    bool   `koanf:"validation"`
	QA            string `koanf:"qa"` // off, basic, full
}

type UsageConfig struct {
	// Limits is generations per calendar month by tier; 0 means unlimited.
	Limits  map[string]int           `koanf:"limits"`
	Upgrade map[string]UpgradeConfig `koanf:"upgrade"`
}

// UpgradeConfig is the offer shown to a caller who hit their limit.
type UpgradeConfig struct {
	Tier       string `koanf:"tier"`
	Price      string `koanf:"price"`
	Suggestion string `koanf:"suggestion"`
}

type ThumbnailsConfig struct {
	Provider       string        `koanf:"provider"` // unsplash, placeholder
	AccessKey      string        `koanf:"access_key"`
	BaseURL        string        `koanf:"base_url"`
	PlaceholderURL string        `koanf:"placeholder_url"`
	RatePerSecond  float64       `koanf:"rate_per_second"`
	Timeout        time.Duration `koanf:"timeout"`
}

type EventsConfig struct {
	Type      string        `koanf:"type"` // direct, kafka, none
	Workers   int           `koanf:"workers"`
	QueueSize int           `koanf:"queue_size"`
	Timeout   time.Duration `koanf:"timeout"`
	XPPerTrip int           `koanf:"xp_per_trip"`
	Kafka     KafkaConfig   `koanf:"kafka"`
}

type KafkaConfig struct {
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
}

type TelemetryConfig struct {
	ServiceName string `koanf:"service_name"`
	Tracing     bool   `koanf:"tracing"`
}

// SubscriptionConfig seeds a user's tier at startup.
type SubscriptionConfig struct {
	UserID string `koanf:"user_id"`
	Tier   string `koanf:"tier"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads DefaultPath and POLY_ environment variables.
func Load() (*Config, error) {
	return LoadFile(DefaultPath)
}

// LoadFile reads the given YAML file (if it exists) and POLY_ environment variables.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider("POLY_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "POLY_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	setDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Substitute environment variables in secrets
	for i := range cfg.Providers {
		cfg.Providers[i].APIKey = substituteEnvVars(cfg.Providers[i].APIKey)
	}
	cfg.Auth.JWTSecret = substituteEnvVars(cfg.Auth.JWTSecret)
	cfg.Cache.Redis.Password = substituteEnvVars(cfg.Cache.Redis.Password)
	cfg.Thumbnails.AccessKey = substituteEnvVars(cfg.Thumbnails.AccessKey)

	return &cfg, nil
}

func setDefaults(k *koanf.Koanf) {
	defaults := map[string]any{
		"server.port":                       8080,
		"server.request_timeout":            "120s",
		"server.request_burst":              5,
		"auth.dev_user_id":                  "local-dev",
		"storage.type":                      "sqlite",
		"storage.sqlite.path":               "./data/itinerary.db",
		"cache.type":                        "memory",
		"cache.ttl":                         "24h",
		"cache.redis.key_prefix":            "poly:",
		"orchestrator.overall_timeout":      "90s",
		"orchestrator.drafting_timeout":     "60s",
		"orchestrator.validation_timeout":   "20s",
		"orchestrator.qa_timeout":           "15s",
		"orchestrator.confidence_threshold": 0.7,
		"orchestrator.drafting_retries":     1,
		"usage.limits.free":                 3,
		"usage.limits.pro":                  50,
		"usage.limits.premium":              0,
		"thumbnails.provider":               "placeholder",
		"thumbnails.base_url":               "https://api.unsplash.com",
		"thumbnails.placeholder_url":        "https://placehold.co/600x400?text=",
		"thumbnails.rate_per_second":        5.0,
		"thumbnails.timeout":                "5s",
		"events.type":                       "direct",
		"events.workers":                    2,
		"events.queue_size":                 256,
		"events.timeout":                    "10s",
		"events.xp_per_trip":                50,
		"events.kafka.topic":                "itinerary-activity",
		"telemetry.service_name":            "polyglot-itinerary",
	}
	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	// Offers are replaced as a whole so a partial config never mixes in
	// default prices.
	if !k.Exists("usage.upgrade") {
		k.Set("usage.upgrade", map[string]any{
			"free": map[string]any{
				"tier":       "pro",
				"price":      "$9.99/month",
				"suggestion": "Upgrade to Pro for 50 itineraries a month and expert validation",
			},
			"pro": map[string]any{
				"tier":       "premium",
				"price":      "$19.99/month",
				"suggestion": "Upgrade to Premium for unlimited itineraries",
			},
		})
	}
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
