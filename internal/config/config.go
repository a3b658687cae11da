package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all service settings. Values resolve environment-first: an
// env var wins over the optional CONFIG_FILE overlay, which wins over the
// built-in default.
type Config struct {
	// Source selection.
	CSVPath    string
	SourceKind string // "local" or "s3"
	S3Bucket   string
	S3Key      string
	S3Region   string
	S3Endpoint string

	// Snapshot cache.
	CachePath string
	CacheKeep int

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// RefreshSchedule is a cron spec; empty disables scheduled refreshes.
	RefreshSchedule string

	// MaritimeFilter toggles the relevance filter stage.
	MaritimeFilter bool

	// EventSampleLimit caps the /api/v1/events response size.
	EventSampleLimit int

	// Optional rule overlays.
	VocabPath       string
	DetectRulesPath string

	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// fileConfig is the YAML shape of the CONFIG_FILE overlay. Pointer fields
// distinguish "unset" from explicit zero values.
type fileConfig struct {
	CSVPath          string   `yaml:"csv_path"`
	SourceKind       string   `yaml:"source_kind"`
	S3Bucket         string   `yaml:"s3_bucket"`
	S3Key            string   `yaml:"s3_key"`
	S3Region         string   `yaml:"s3_region"`
	S3Endpoint       string   `yaml:"s3_endpoint"`
	CachePath        string   `yaml:"cache_path"`
	CacheKeep        *int     `yaml:"cache_keep"`
	HTTPAddr         string   `yaml:"http_addr"`
	LogLevel         string   `yaml:"log_level"`
	LogFormat        string   `yaml:"log_format"`
	ShutdownTimeout  string   `yaml:"shutdown_timeout"`
	RefreshSchedule  string   `yaml:"refresh_schedule"`
	MaritimeFilter   *bool    `yaml:"maritime_filter"`
	EventSampleLimit *int     `yaml:"event_sample_limit"`
	VocabPath        string   `yaml:"vocab_path"`
	DetectRulesPath  string   `yaml:"detect_rules_path"`
	KafkaEnabled     *bool    `yaml:"kafka_enabled"`
	KafkaBrokers     []string `yaml:"kafka_brokers"`
	KafkaTopic       string   `yaml:"kafka_topic"`
}

// Load reads configuration from the environment and the optional
// CONFIG_FILE overlay, applying defaults where unset. Validation errors name
// the offending variable.
func Load() (*Config, error) {
	file, err := loadOverlay()
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := resolveDuration("SHUTDOWN_TIMEOUT", file.ShutdownTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	cacheKeep, err := resolveInt("CACHE_KEEP", file.CacheKeep, 5)
	if err != nil {
		return nil, err
	}
	sampleLimit, err := resolveInt("EVENT_SAMPLE_LIMIT", file.EventSampleLimit, 1000)
	if err != nil {
		return nil, err
	}
	maritimeFilter, err := resolveBool("MARITIME_FILTER", file.MaritimeFilter, true)
	if err != nil {
		return nil, err
	}
	kafkaEnabled, err := resolveBool("KAFKA_ENABLED", file.KafkaEnabled, false)
	if err != nil {
		return nil, err
	}

	brokers := parseBrokers(resolveString("KAFKA_BROKERS", strings.Join(file.KafkaBrokers, ","), "localhost:9092"))

	cfg := &Config{
		CSVPath:    resolveString("CSV_PATH", file.CSVPath, "data/events.csv"),
		SourceKind: strings.ToLower(resolveString("SOURCE_KIND", file.SourceKind, "local")),
		S3Bucket:   resolveString("S3_BUCKET", file.S3Bucket, ""),
		S3Key:      resolveString("S3_KEY", file.S3Key, ""),
		S3Region:   resolveString("S3_REGION", file.S3Region, "us-east-1"),
		S3Endpoint: resolveString("S3_ENDPOINT", file.S3Endpoint, ""),

		CachePath: resolveString("CACHE_PATH", file.CachePath, "data/cache/snapshots.db"),
		CacheKeep: cacheKeep,

		HTTPAddr:        resolveString("HTTP_ADDR", file.HTTPAddr, ":8080"),
		LogLevel:        resolveString("LOG_LEVEL", file.LogLevel, "info"),
		LogFormat:       resolveString("LOG_FORMAT", file.LogFormat, "json"),
		ShutdownTimeout: shutdownTimeout,

		RefreshSchedule:  resolveString("REFRESH_SCHEDULE", file.RefreshSchedule, ""),
		MaritimeFilter:   maritimeFilter,
		EventSampleLimit: sampleLimit,

		VocabPath:       resolveString("VOCAB_PATH", file.VocabPath, ""),
		DetectRulesPath: resolveString("DETECT_RULES_PATH", file.DetectRulesPath, ""),

		KafkaEnabled: kafkaEnabled,
		KafkaBrokers: brokers,
		KafkaTopic:   resolveString("KAFKA_TOPIC", file.KafkaTopic, "maritime-events"),
	}

	switch cfg.SourceKind {
	case "local":
		if cfg.CSVPath == "" {
			return nil, errors.New("CSV_PATH is required when SOURCE_KIND is local")
		}
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, errors.New("S3_BUCKET is required when SOURCE_KIND is s3")
		}
		if cfg.S3Key == "" {
			return nil, errors.New("S3_KEY is required when SOURCE_KIND is s3")
		}
	default:
		return nil, fmt.Errorf("SOURCE_KIND must be local or s3, got %q", cfg.SourceKind)
	}

	if cfg.CachePath == "" {
		return nil, errors.New("CACHE_PATH is required")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaTopic == "" {
			return nil, errors.New("KAFKA_TOPIC is required when KAFKA_ENABLED is true")
		}
	}

	return cfg, nil
}

func loadOverlay() (fileConfig, error) {
	var file fileConfig
	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		return file, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return file, fmt.Errorf("read CONFIG_FILE %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return file, fmt.Errorf("parse CONFIG_FILE %s: %w", path, err)
	}
	return file, nil
}

func resolveString(key, fileVal, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if fileVal != "" {
		return fileVal
	}
	return fallback
}

func resolveBool(key string, fileVal *bool, fallback bool) (bool, error) {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("invalid %s: %q", key, v)
		}
		return b, nil
	}
	if fileVal != nil {
		return *fileVal, nil
	}
	return fallback, nil
}

func resolveInt(key string, fileVal *int, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid %s: %q", key, v)
		}
		return n, nil
	}
	if fileVal != nil {
		if *fileVal <= 0 {
			return 0, fmt.Errorf("invalid %s: %d", key, *fileVal)
		}
		return *fileVal, nil
	}
	return fallback, nil
}

func resolveDuration(key, fileVal string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		raw = fileVal
	}
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return d, nil
}

func parseBrokers(s string) []string {
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}
