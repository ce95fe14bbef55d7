package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("loads defaults", func(t *testing.T) {
		cfg, err := Load()

		require.NoError(t, err)
		assert.Equal(t, "8000", cfg.Server.Port)
		assert.Equal(t, 0.90, cfg.Model.Threshold)
		assert.Equal(t, "tmserver", cfg.Model.Engine)
		assert.Equal(t, 100*time.Millisecond, cfg.Camera.Interval)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.Equal(t, "wasteguide", cfg.MQTT.Prefix)
		assert.Equal(t, 90*24*time.Hour, cfg.Database.Retention)
	})

	t.Run("reads environment", func(t *testing.T) {
		t.Setenv("PORT", "9090")
		t.Setenv("THRESHOLD", "0.8")
		t.Setenv("ENGINE", "ONNX")
		t.Setenv("CAMERA_DEVICE_USER", "3")
		t.Setenv("MQTT_TOPIC_PREFIX", "bins/")

		cfg, err := Load()

		require.NoError(t, err)
		assert.Equal(t, "9090", cfg.Server.Port)
		assert.Equal(t, 0.8, cfg.Model.Threshold)
		assert.Equal(t, "onnx", cfg.Model.Engine)
		assert.Equal(t, 3, cfg.Camera.Devices["user"])
		assert.Equal(t, "bins", cfg.MQTT.Prefix)
	})

	t.Run("bad number is an error", func(t *testing.T) {
		t.Setenv("THRESHOLD", "high")

		_, err := Load()

		assert.Error(t, err)
	})

	t.Run("builds dsn from PG vars", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		t.Setenv("PGHOST", "db")
		t.Setenv("PGUSER", "bot")
		t.Setenv("PGPASSWORD", "secret")
		t.Setenv("PGDATABASE", "waste")

		cfg, err := Load()

		require.NoError(t, err)
		assert.Equal(t, "postgres://bot:secret@db:5432/waste?sslmode=disable", cfg.Database.URL)
	})
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load()
		require.NoError(t, err)
		return cfg
	}

	t.Run("server defaults are valid", func(t *testing.T) {
		assert.NoError(t, base().Validate("server"))
	})

	t.Run("threshold out of range", func(t *testing.T) {
		cfg := base()
		cfg.Model.Threshold = 1.5
		assert.Error(t, cfg.Validate("server"))
	})

	t.Run("zero threshold is rejected", func(t *testing.T) {
		cfg := base()
		cfg.Model.Threshold = 0
		assert.Error(t, cfg.Validate("server"))

		cfg.Model.Threshold = 1
		assert.NoError(t, cfg.Validate("server"))
	})

	t.Run("negative retention", func(t *testing.T) {
		cfg := base()
		cfg.Database.Retention = -time.Hour
		assert.Error(t, cfg.Validate("server"))
	})

	t.Run("gemini needs key", func(t *testing.T) {
		cfg := base()
		cfg.Model.Engine = "gemini"
		cfg.Model.GeminiAPIKey = ""
		assert.Error(t, cfg.Validate("server"))
	})

	t.Run("bot needs token", func(t *testing.T) {
		t.Setenv("TELEGRAM_BOT_TOKEN", "")
		cfg := base()
		assert.Error(t, cfg.Validate("bot"))

		cfg.Telegram.Token = "123:abc"
		assert.NoError(t, cfg.Validate("bot"))
	})

	t.Run("snapshot camera needs url", func(t *testing.T) {
		cfg := base()
		cfg.Camera.Source = "snapshot"
		assert.Error(t, cfg.Validate("camloop"))

		cfg.Camera.SnapshotURL["user"] = "http://cam/snap.jpg"
		assert.NoError(t, cfg.Validate("camloop"))
	})

	t.Run("unknown mode", func(t *testing.T) {
		assert.Error(t, base().Validate("desktop"))
	})
}
