package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testConfig = `server:
  port: 9090
database:
  driver: sqlite
  sqlite_path: ./data/dev.db
  auto_migrate: true
auth:
  jwt_secret: file-secret
moderation:
  policy_path: ./config/policy.yaml
  report_threshold: 5
worker:
  queue_gauge_interval: 30s
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesFileAndDefaults(t *testing.T) {
	cfg, err := Load("test", writeConfig(t, testConfig))
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "./data/dev.db", cfg.Database.GetDSN())
	require.Equal(t, 5, cfg.Moderation.ReportThreshold)
	require.Equal(t, 20, cfg.Moderation.QueuePageSize)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, 30*time.Second, cfg.Worker.QueueGaugeInterval())
	require.Same(t, cfg, Get())
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("APP_AUTH_JWT_SECRET", "env-secret")
	t.Setenv("APP_SERVER_PORT", "7070")

	cfg, err := Load("test", writeConfig(t, testConfig))
	require.NoError(t, err)
	require.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	require.Equal(t, 7070, cfg.Server.Port)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	_, err := Load("test", writeConfig(t, "database:\n  driver: mysql\nauth:\n  jwt_secret: x\n"))
	require.Error(t, err)

	_, err = Load("test", writeConfig(t, "database:\n  driver: postgres\n"))
	require.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	c := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "app", Password: "pw", DBName: "community", SSLMode: "disable"}
	require.Equal(t, "host=db port=5432 user=app password=pw dbname=community sslmode=disable", c.GetDSN())
}

func TestQueueGaugeIntervalFallback(t *testing.T) {
	require.Equal(t, time.Minute, WorkerConfig{QueueGauge: "soon"}.QueueGaugeInterval())
}
