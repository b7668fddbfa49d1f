package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigPath is the default location of the YAML config.
const ConfigPath = "config.yaml"

const defaultCORSOrigin = "http://localhost:3000"

// StorageConfig addresses the object store bucket.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"useSSL"`
}

// IdentityConfig configures the local identity provider and, optionally, an
// external token issuer.
type IdentityConfig struct {
	Issuer         string `yaml:"issuer"`
	Audience       string `yaml:"audience"`
	PrivateKey     string `yaml:"privateKey"`
	PrivateKeyPath string `yaml:"privateKeyPath"`
	KeyID          string `yaml:"keyID"`
	TokenTTL       string `yaml:"tokenTTL"`
	Leeway         string `yaml:"leeway"`
	JWKSURL        string `yaml:"jwksURL"`
	JWKSIssuer     string `yaml:"jwksIssuer"`
	JWKSAudience   string `yaml:"jwksAudience"`
}

// EventsConfig selects the domain event broker.
type EventsConfig struct {
	Driver       string   `yaml:"driver"`
	AMQPURL      string   `yaml:"amqpURL"`
	AMQPExchange string   `yaml:"amqpExchange"`
	KafkaBrokers []string `yaml:"kafkaBrokers"`
	KafkaTopic   string   `yaml:"kafkaTopic"`
	RedisStream  string   `yaml:"redisStream"`
}

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                       string         `yaml:"port"`
	LogLevel                   string         `yaml:"logLevel"`
	DatabaseURL                string         `yaml:"databaseURL"`
	RedisAddr                  string         `yaml:"redisAddr"`
	RedisPassword              string         `yaml:"redisPassword"`
	CORSOrigins                []string       `yaml:"corsOrigins"`
	TrustedProxyCIDRs          []string       `yaml:"trustedProxyCidrs"`
	Storage                    StorageConfig  `yaml:"storage"`
	Identity                   IdentityConfig `yaml:"identity"`
	Events                     EventsConfig   `yaml:"events"`
	ElasticsearchURL           string         `yaml:"elasticsearchURL"`
	ElasticsearchIndex         string         `yaml:"elasticsearchIndex"`
	RegisterRateLimitPerMinute int            `yaml:"registerRateLimitPerMinute"`
	LoginRateLimitPerMinute    int            `yaml:"loginRateLimitPerMinute"`
}

// Load reads .env, then the YAML file at path (a missing file is allowed),
// then applies environment overrides.
func Load(path string) (FileConfig, error) {
	_ = godotenv.Load()

	cfg := FileConfig{
		Port:                       "8080",
		LogLevel:                   "info",
		RegisterRateLimitPerMinute: 10,
		LoginRateLimitPerMinute:    20,
	}
	if path == "" {
		path = ConfigPath
	}
	if v := os.Getenv("LMS_CONFIG"); v != "" {
		path = v
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&cfg)
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{defaultCORSOrigin}
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	setString(&cfg.Port, "PORT")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	if v := os.Getenv("CORS_ORIGIN"); v != "" {
		cfg.CORSOrigins = splitCSV(v)
	}
	if v := os.Getenv("TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}

	setString(&cfg.Storage.Endpoint, "STORAGE_ENDPOINT")
	setString(&cfg.Storage.AccessKey, "STORAGE_ACCESS_KEY")
	setString(&cfg.Storage.SecretKey, "STORAGE_SECRET_KEY")
	setString(&cfg.Storage.Bucket, "STORAGE_BUCKET")
	setString(&cfg.Storage.Region, "STORAGE_REGION")
	if v := os.Getenv("STORAGE_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.Storage.UseSSL = b
		}
	}

	setString(&cfg.Identity.Issuer, "IDENTITY_ISSUER")
	setString(&cfg.Identity.Audience, "IDENTITY_AUDIENCE")
	setString(&cfg.Identity.PrivateKey, "IDENTITY_PRIVATE_KEY")
	setString(&cfg.Identity.PrivateKeyPath, "IDENTITY_PRIVATE_KEY_PATH")
	setString(&cfg.Identity.KeyID, "IDENTITY_KEY_ID")
	setString(&cfg.Identity.TokenTTL, "IDENTITY_TOKEN_TTL")
	setString(&cfg.Identity.JWKSURL, "IDENTITY_JWKS_URL")

	setString(&cfg.Events.Driver, "EVENTS_DRIVER")
	setString(&cfg.Events.AMQPURL, "AMQP_URL")
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Events.KafkaBrokers = splitCSV(v)
	}
	setString(&cfg.Events.KafkaTopic, "KAFKA_TOPIC")

	setString(&cfg.ElasticsearchURL, "ELASTICSEARCH_URL")
	setString(&cfg.ElasticsearchIndex, "ELASTICSEARCH_INDEX")
	setInt(&cfg.RegisterRateLimitPerMinute, "REGISTER_RATE_LIMIT_PER_MINUTE")
	setInt(&cfg.LoginRateLimitPerMinute, "LOGIN_RATE_LIMIT_PER_MINUTE")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = strings.TrimSpace(v)
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required")
	}
	if cfg.RegisterRateLimitPerMinute < 0 || cfg.LoginRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	if cfg.Storage.Endpoint != "" && strings.TrimSpace(cfg.Storage.Bucket) == "" {
		return errors.New("config: storage.bucket is required when storage.endpoint is set (or STORAGE_BUCKET)")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Events.Driver)) {
	case "", "none":
	case "amqp":
		if cfg.Events.AMQPURL == "" {
			return errors.New("config: events.amqpURL is required for the amqp driver")
		}
	case "kafka":
		if len(cfg.Events.KafkaBrokers) == 0 {
			return errors.New("config: events.kafkaBrokers is required for the kafka driver")
		}
	case "redis":
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return errors.New("config: redisAddr is required for the redis events driver")
		}
	default:
		return fmt.Errorf("config: unknown events driver %q", cfg.Events.Driver)
	}
	if _, err := ParseDuration("identity.tokenTTL", cfg.Identity.TokenTTL); err != nil {
		return err
	}
	if _, err := ParseDuration("identity.leeway", cfg.Identity.Leeway); err != nil {
		return err
	}
	return nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// ParseDuration parses an optional duration string. Empty yields zero.
func ParseDuration(field, value string) (time.Duration, error) {
	if strings.TrimSpace(value) == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", field, err)
	}
	return dur, nil
}
