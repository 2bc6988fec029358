// Package config builds runtime configuration from the environment plus a
// YAML trust file describing accepted certificate authorities.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	pstrings "peticao/pkg/platform/strings"
)

// Config is the full runtime configuration for the verifier service.
type Config struct {
	Server     ServerConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Verify     VerifyConfig
	Revocation RevocationConfig
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr          string
	JWTSigningKey string
}

// PostgresConfig holds the connection settings for the submission store.
type PostgresConfig struct {
	URL string
}

// RedisConfig holds the connection settings for the revocation cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds the outcome event publisher settings. Empty brokers
// means events are disabled and the no-op publisher is used.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// VerifyConfig tunes the verification pipeline and its worker pool.
type VerifyConfig struct {
	MaxUploadBytes int64
	Workers        int
	SweepInterval  time.Duration
	SweepBatch     int
	MaxAttempts    int
}

// RevocationConfig tunes the revocation checker and cache refresher.
type RevocationConfig struct {
	// Strict fails verification when revocation status cannot be
	// determined. Permissive passes with a warning instead.
	Strict          bool
	SnapshotTTL     time.Duration
	RefreshInterval time.Duration
	FetchTimeout    time.Duration
	TrustFile       string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Addr:          envOr("VERIFIER_ADDR", ":8080"),
			JWTSigningKey: os.Getenv("JWT_SIGNING_KEY"),
		},
		Postgres: PostgresConfig{
			URL: os.Getenv("POSTGRES_URL"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: pstrings.DedupeAndTrim(strings.Split(os.Getenv("KAFKA_BROKERS"), ",")),
			Topic:   envOr("KAFKA_TOPIC", "signature.verification.completed"),
		},
		Verify: VerifyConfig{
			MaxUploadBytes: 10 << 20,
			Workers:        4,
			SweepInterval:  30 * time.Second,
			SweepBatch:     50,
			MaxAttempts:    3,
		},
		Revocation: RevocationConfig{
			Strict:          envOr("REVOCATION_POLICY", "strict") != "permissive",
			SnapshotTTL:     26 * time.Hour,
			RefreshInterval: 24 * time.Hour,
			FetchTimeout:    15 * time.Second,
			TrustFile:       envOr("TRUST_FILE", "trust.yaml"),
		},
	}

	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid MAX_UPLOAD_BYTES %q", v)
		}
		cfg.Verify.MaxUploadBytes = n
	}
	if v := os.Getenv("VERIFY_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid VERIFY_WORKERS %q", v)
		}
		cfg.Verify.Workers = n
	}
	if v := os.Getenv("SWEEP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("invalid SWEEP_INTERVAL %q", v)
		}
		cfg.Verify.SweepInterval = d
	}
	if v := os.Getenv("REVOCATION_REFRESH_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("invalid REVOCATION_REFRESH_INTERVAL %q", v)
		}
		cfg.Revocation.RefreshInterval = d
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
