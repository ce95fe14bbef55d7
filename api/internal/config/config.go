package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type ServerConfig struct {
	Port     string
	Mode     string
	VideoDir string
}

type LogConfig struct {
	Level  string
	Format string
}

type ModelConfig struct {
	Engine    string
	Threshold float64

	TMServerURL string
	TMTimeout   time.Duration

	ONNXDir    string
	ONNXLayout string

	GeminiAPIKey string
	GeminiModel  string
	OpenAIAPIKey string
	OpenAIModel  string

	GuideTablePath string
}

type CameraConfig struct {
	Source      string // dir | snapshot | webcam
	Dirs        map[string]string
	SnapshotURL map[string]string
	Devices     map[string]int
	Interval    time.Duration
	GuideDir    string
	OpenBrowser bool
}

type TelegramConfig struct {
	Token      string
	WebhookURL string
}

type DatabaseConfig struct {
	URL string
	// Retention: сколько хранить события; 0 значит не чистить.
	Retention time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type MQTTConfig struct {
	Broker   string
	ClientID string
	Prefix   string
}

type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Model    ModelConfig
	Camera   CameraConfig
	Telegram TelegramConfig
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func mustEnv(k string) (string, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return "", fmt.Errorf("missing required env %s", k)
	}
	return v, nil
}

func getInt(k string, def int) (int, error) {
	v := getEnv(k, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("env %s: %w", k, err)
	}
	return n, nil
}

func getFloat(k string, def float64) (float64, error) {
	v := getEnv(k, "")
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("env %s: %w", k, err)
	}
	return f, nil
}

func getDuration(k string, def time.Duration) (time.Duration, error) {
	v := getEnv(k, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("env %s: %w", k, err)
	}
	return d, nil
}

func getBool(k string, def bool) bool {
	switch strings.ToLower(getEnv(k, "")) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

// Load собирает конфиг из переменных окружения.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnv("PORT", "8000"),
			Mode:     getEnv("GIN_MODE", "release"),
			VideoDir: getEnv("VIDEO_DIR", "videos"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Model: ModelConfig{
			Engine:         strings.ToLower(getEnv("ENGINE", "tmserver")),
			TMServerURL:    getEnv("TM_SERVER_URL", "http://localhost:8501"),
			ONNXDir:        getEnv("ONNX_MODEL_DIR", "model"),
			ONNXLayout:     getEnv("ONNX_LAYOUT", "nhwc"),
			GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
			GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			GuideTablePath: getEnv("GUIDE_TABLE_PATH", ""),
		},
		Camera: CameraConfig{
			Source: strings.ToLower(getEnv("CAMERA_SOURCE", "dir")),
			Dirs: map[string]string{
				"environment": getEnv("CAMERA_DIR_ENVIRONMENT", "frames/environment"),
				"user":        getEnv("CAMERA_DIR_USER", "frames/user"),
			},
			SnapshotURL: map[string]string{
				"environment": getEnv("CAMERA_URL_ENVIRONMENT", ""),
				"user":        getEnv("CAMERA_URL_USER", ""),
			},
			GuideDir:    getEnv("GUIDE_PAGE_DIR", os.TempDir()),
			OpenBrowser: getBool("OPEN_BROWSER", false),
		},
		Telegram: TelegramConfig{
			Token:      getEnv("TELEGRAM_BOT_TOKEN", ""),
			WebhookURL: getEnv("WEBHOOK_URL", ""),
		},
		Database: DatabaseConfig{
			URL: resolveDSN(),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		MQTT: MQTTConfig{
			Broker:   getEnv("MQTT_BROKER", ""),
			ClientID: getEnv("MQTT_CLIENT_ID", "waste-bot"),
			Prefix:   strings.TrimRight(getEnv("MQTT_TOPIC_PREFIX", "wasteguide"), "/"),
		},
	}

	var err error
	if cfg.Model.Threshold, err = getFloat("THRESHOLD", 0.90); err != nil {
		return nil, err
	}
	if cfg.Model.TMTimeout, err = getDuration("TM_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.Camera.Interval, err = getDuration("CAMERA_INTERVAL", 100*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.Redis.DB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.Redis.TTL, err = getDuration("REDIS_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.Database.Retention, err = getDuration("EVENT_RETENTION", 90*24*time.Hour); err != nil {
		return nil, err
	}
	envDev, err := getInt("CAMERA_DEVICE_ENVIRONMENT", 0)
	if err != nil {
		return nil, err
	}
	userDev, err := getInt("CAMERA_DEVICE_USER", 1)
	if err != nil {
		return nil, err
	}
	cfg.Camera.Devices = map[string]int{"environment": envDev, "user": userDev}
	return cfg, nil
}

// resolveDSN: DATABASE_URL, иначе собираем из PG* переменных.
func resolveDSN() string {
	if dsn := getEnv("DATABASE_URL", ""); dsn != "" {
		return dsn
	}
	host := getEnv("PGHOST", "")
	if host == "" {
		return ""
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		getEnv("PGUSER", "postgres"),
		getEnv("PGPASSWORD", ""),
		host,
		getEnv("PGPORT", "5432"),
		getEnv("PGDATABASE", "postgres"),
		getEnv("PGSSLMODE", "disable"),
	)
}

// Validate проверяет, что для режима запуска (bot, server, camloop) хватает настроек.
func (c *Config) Validate(mode string) error {
	var errs []error
	if !(c.Model.Threshold > 0 && c.Model.Threshold <= 1) {
		errs = append(errs, fmt.Errorf("THRESHOLD must be within (0,1], got %v", c.Model.Threshold))
	}
	if c.Database.Retention < 0 {
		errs = append(errs, fmt.Errorf("EVENT_RETENTION must not be negative, got %v", c.Database.Retention))
	}
	switch c.Model.Engine {
	case "tmserver", "tm", "onnx", "gemini", "gpt", "openai":
	default:
		errs = append(errs, fmt.Errorf("unknown ENGINE %q", c.Model.Engine))
	}
	if c.Model.Engine == "gemini" && c.Model.GeminiAPIKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY is required for gemini engine"))
	}
	if (c.Model.Engine == "gpt" || c.Model.Engine == "openai") && c.Model.OpenAIAPIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required for gpt engine"))
	}

	switch mode {
	case "bot":
		if c.Telegram.Token == "" {
			if _, err := mustEnv("TELEGRAM_BOT_TOKEN"); err != nil {
				errs = append(errs, err)
			}
		}
	case "camloop":
		switch c.Camera.Source {
		case "dir", "webcam":
		case "snapshot":
			if c.Camera.SnapshotURL["environment"] == "" && c.Camera.SnapshotURL["user"] == "" {
				errs = append(errs, errors.New("CAMERA_URL_ENVIRONMENT or CAMERA_URL_USER is required for snapshot source"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown CAMERA_SOURCE %q", c.Camera.Source))
		}
	case "server":
	default:
		errs = append(errs, fmt.Errorf("unknown mode %q", mode))
	}
	return errors.Join(errs...)
}
