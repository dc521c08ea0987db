// Package config reads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full runtime configuration of the review service.
type Config struct {
	Server   Server
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Workflow WorkflowConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	LogLevel        string
	ShutdownTimeout time.Duration
}

// DatabaseConfig enables the Postgres case store and audit outbox when URL is set.
type DatabaseConfig struct {
	URL      string
	MaxConns int32
}

// RedisConfig enables the Redis idempotency store when URL is set.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig enables the audit relay and the OCR consumer when Brokers is set.
type KafkaConfig struct {
	Brokers         []string
	AuditTopic      string
	OCRTopic        string
	ConsumerGroup   string
	RelayInterval   time.Duration
	RelayBatchSize  int
	// RetryBackoff and RetryMaxBackoff pace redelivery of a record whose
	// handler failed.
	RetryBackoff    time.Duration
	RetryMaxBackoff time.Duration
}

// WorkflowConfig tunes the case engine.
type WorkflowConfig struct {
	Seed              bool
	MaxUploadSize     int64
	MaxUploadFiles    int
	IngestConcurrency int
	ReplayTTL         time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var errs []string
	dur := func(key string, def time.Duration) time.Duration {
		v, err := durationEnv(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return v
	}
	num := func(key string, def int) int {
		v, err := intEnv(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return v
	}

	cfg := Config{
		Server: Server{
			Addr:            stringEnv("KYC_ADDR", ":8080"),
			LogLevel:        stringEnv("KYC_LOG_LEVEL", "info"),
			ShutdownTimeout: dur("KYC_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			URL:      os.Getenv("DATABASE_URL"),
			MaxConns: int32(num("DATABASE_MAX_CONNS", 10)),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     num("REDIS_POOL_SIZE", 10),
			MinIdleConns: num("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  dur("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  dur("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: dur("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:         listEnv("KAFKA_BROKERS"),
			AuditTopic:      stringEnv("KAFKA_AUDIT_TOPIC", "kyc.audit"),
			OCRTopic:        stringEnv("KAFKA_OCR_TOPIC", "kyc.ocr.results"),
			ConsumerGroup:   stringEnv("KAFKA_CONSUMER_GROUP", "kyc-review"),
			RelayInterval:   dur("KAFKA_RELAY_INTERVAL", time.Second),
			RelayBatchSize:  num("KAFKA_RELAY_BATCH_SIZE", 100),
			RetryBackoff:    dur("KAFKA_RETRY_BACKOFF", 500*time.Millisecond),
			RetryMaxBackoff: dur("KAFKA_RETRY_MAX_BACKOFF", 30*time.Second),
		},
		Workflow: WorkflowConfig{
			Seed:              boolEnv("KYC_SEED", true),
			MaxUploadSize:     int64(num("KYC_MAX_UPLOAD_BYTES", 10<<20)),
			MaxUploadFiles:    num("KYC_MAX_UPLOAD_FILES", 20),
			IngestConcurrency: num("KYC_INGEST_CONCURRENCY", 4),
			ReplayTTL:         dur("KYC_REPLAY_TTL", 24*time.Hour),
		},
	}
	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func stringEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func boolEnv(key string, def bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func intEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return v, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration", key)
	}
	return v, nil
}

func listEnv(key string) []string {
	var out []string
	for part := range strings.SplitSeq(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
