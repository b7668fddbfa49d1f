package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("LMS_CONFIG", "")
	t.Setenv("CORS_ORIGIN", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %q", cfg.Port)
	}
	if !reflect.DeepEqual(cfg.CORSOrigins, []string{"http://localhost:3000"}) {
		t.Fatalf("unexpected cors origins: %v", cfg.CORSOrigins)
	}
	if cfg.RegisterRateLimitPerMinute != 10 || cfg.LoginRateLimitPerMinute != 20 {
		t.Fatalf("unexpected rate limits: %d %d", cfg.RegisterRateLimitPerMinute, cfg.LoginRateLimitPerMinute)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
port: "9000"
corsOrigins: ["https://file.example"]
storage:
  endpoint: "localhost:9000"
  bucket: "from-file"
identity:
  tokenTTL: "30m"
`)
	t.Setenv("LMS_CONFIG", "")
	t.Setenv("CORS_ORIGIN", "https://a.example, https://b.example,")
	t.Setenv("STORAGE_BUCKET", "from-env")
	t.Setenv("IDENTITY_PRIVATE_KEY", "pem-from-env")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("LOGIN_RATE_LIMIT_PER_MINUTE", "3")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9000" {
		t.Fatalf("expected file port, got %q", cfg.Port)
	}
	if !reflect.DeepEqual(cfg.CORSOrigins, []string{"https://a.example", "https://b.example"}) {
		t.Fatalf("unexpected cors origins: %v", cfg.CORSOrigins)
	}
	if cfg.Storage.Bucket != "from-env" || cfg.Storage.Endpoint != "localhost:9000" {
		t.Fatalf("unexpected storage: %+v", cfg.Storage)
	}
	if cfg.Identity.PrivateKey != "pem-from-env" {
		t.Fatalf("expected private key override, got %q", cfg.Identity.PrivateKey)
	}
	if cfg.RedisAddr != "redis:6379" || cfg.LoginRateLimitPerMinute != 3 {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
	ttl, err := ParseDuration("identity.tokenTTL", cfg.Identity.TokenTTL)
	if err != nil || ttl != 30*time.Minute {
		t.Fatalf("unexpected ttl %v (%v)", ttl, err)
	}
}

func TestLoadConfigPathFromEnv(t *testing.T) {
	path := writeConfig(t, "port: \"7001\"\n")
	t.Setenv("LMS_CONFIG", path)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "7001" {
		t.Fatalf("expected port from LMS_CONFIG file, got %q", cfg.Port)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"negative rate limit", "registerRateLimitPerMinute: -1\n", "rate limits"},
		{"amqp without url", "events:\n  driver: amqp\n", "amqpURL"},
		{"kafka without brokers", "events:\n  driver: kafka\n", "kafkaBrokers"},
		{"redis driver without redis", "events:\n  driver: redis\n", "redisAddr"},
		{"unknown driver", "events:\n  driver: carrier-pigeon\n", "unknown events driver"},
		{"bad ttl", "identity:\n  tokenTTL: soon\n", "identity.tokenTTL"},
		{"endpoint without bucket", "storage:\n  endpoint: localhost:9000\n", "storage.bucket"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("LMS_CONFIG", "")
			t.Setenv("REDIS_ADDR", "")
			t.Setenv("STORAGE_BUCKET", "")
			_, err := Load(writeConfig(t, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}
