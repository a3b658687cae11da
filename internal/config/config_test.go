package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data/events.csv", cfg.CSVPath)
	assert.Equal(t, "local", cfg.SourceKind)
	assert.Equal(t, "us-east-1", cfg.S3Region)
	assert.Equal(t, "data/cache/snapshots.db", cfg.CachePath)
	assert.Equal(t, 5, cfg.CacheKeep)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.RefreshSchedule)
	assert.True(t, cfg.MaritimeFilter)
	assert.Equal(t, 1000, cfg.EventSampleLimit)
	assert.Empty(t, cfg.VocabPath)
	assert.Empty(t, cfg.DetectRulesPath)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "maritime-events", cfg.KafkaTopic)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("CSV_PATH", "/data/acled.csv")
	t.Setenv("SOURCE_KIND", "LOCAL")
	t.Setenv("CACHE_PATH", "/var/cache/etl.db")
	t.Setenv("CACHE_KEEP", "3")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("REFRESH_SCHEDULE", "*/30 * * * *")
	t.Setenv("MARITIME_FILTER", "false")
	t.Setenv("EVENT_SAMPLE_LIMIT", "250")
	t.Setenv("VOCAB_PATH", "/etc/etl/vocab.yaml")
	t.Setenv("DETECT_RULES_PATH", "/etc/etl/rules.yaml")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("KAFKA_TOPIC", "custom-events")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/data/acled.csv", cfg.CSVPath)
	assert.Equal(t, "local", cfg.SourceKind)
	assert.Equal(t, "/var/cache/etl.db", cfg.CachePath)
	assert.Equal(t, 3, cfg.CacheKeep)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "*/30 * * * *", cfg.RefreshSchedule)
	assert.False(t, cfg.MaritimeFilter)
	assert.Equal(t, 250, cfg.EventSampleLimit)
	assert.Equal(t, "/etc/etl/vocab.yaml", cfg.VocabPath)
	assert.Equal(t, "/etc/etl/rules.yaml", cfg.DetectRulesPath)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-events", cfg.KafkaTopic)
}

func TestLoad_S3Source(t *testing.T) {
	t.Setenv("SOURCE_KIND", "s3")
	t.Setenv("S3_BUCKET", "maritime-data")
	t.Setenv("S3_KEY", "acled/events.csv")
	t.Setenv("S3_REGION", "eu-west-1")
	t.Setenv("S3_ENDPOINT", "http://localhost:9000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "s3", cfg.SourceKind)
	assert.Equal(t, "maritime-data", cfg.S3Bucket)
	assert.Equal(t, "acled/events.csv", cfg.S3Key)
	assert.Equal(t, "eu-west-1", cfg.S3Region)
	assert.Equal(t, "http://localhost:9000", cfg.S3Endpoint)
}

func TestLoad_S3RequiresBucketAndKey(t *testing.T) {
	t.Setenv("SOURCE_KIND", "s3")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S3_BUCKET")

	t.Setenv("S3_BUCKET", "maritime-data")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S3_KEY")
}

func TestLoad_InvalidSourceKind(t *testing.T) {
	t.Setenv("SOURCE_KIND", "ftp")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SOURCE_KIND")
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_NegativeShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidSampleLimit(t *testing.T) {
	t.Setenv("EVENT_SAMPLE_LIMIT", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EVENT_SAMPLE_LIMIT")
}

func TestLoad_InvalidMaritimeFilter(t *testing.T) {
	t.Setenv("MARITIME_FILTER", "maybe")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MARITIME_FILTER")
}

func TestLoad_KafkaEnabledNeedsBrokers(t *testing.T) {
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", " , ")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}

func TestLoad_ConfigFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := strings.Join([]string{
		"csv_path: /srv/data/events.csv",
		"http_addr: \":7070\"",
		"shutdown_timeout: 20s",
		"maritime_filter: false",
		"cache_keep: 9",
		"kafka_brokers:",
		"  - overlay1:9092",
		"  - overlay2:9092",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("CONFIG_FILE", path)
	// env still wins over the overlay
	t.Setenv("HTTP_ADDR", ":9999")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/data/events.csv", cfg.CSVPath)
	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, 20*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.MaritimeFilter)
	assert.Equal(t, 9, cfg.CacheKeep)
	assert.Equal(t, []string{"overlay1:9092", "overlay2:9092"}, cfg.KafkaBrokers)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONFIG_FILE")
}
