package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"waste-bot/api/internal/app"
	"waste-bot/api/internal/classify"
	"waste-bot/api/internal/config"
	"waste-bot/api/internal/guide"
	"waste-bot/api/internal/handle"
	"waste-bot/api/internal/httpserver"
	"waste-bot/api/internal/logger"
	"waste-bot/api/internal/telegram"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate("bot"); err != nil {
		return err
	}
	log, err := logger.NewLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	gin.SetMode(cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	infra, err := app.Setup(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	table, err := guide.LoadTable(cfg.Model.GuideTablePath)
	if err != nil {
		return err
	}
	engines, def, err := app.BuildEngines(ctx, cfg, infra.Cache, log)
	if err != nil {
		return err
	}

	// --- Telegram bot ---
	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	bot.Debug = false
	log.Info("telegram bot authorized", zap.String("username", bot.Self.UserName))

	r := &telegram.Router{
		Bot:        bot,
		EngManager: classify.NewManager(def),
		Engines:    engines,
		Table:      table,
		Threshold:  cfg.Model.Threshold,
		VideoDir:   cfg.Server.VideoDir,
		Metrics:    infra.Metrics,
		Logger:     log,
	}
	if infra.Events != nil {
		r.History = infra.Events
	}
	if infra.MQTT != nil {
		r.Publisher = infra.MQTT
	}

	// тот же HTTP API, что у server: health, метрики, подсказки
	h := handle.New(engines, def, table, cfg.Model.Threshold)
	h.Metrics = infra.Metrics
	h.Checks = infra.Checks(engines)
	h.Stats = infra.Stats()
	h.Logger = log
	router := httpserver.NewRouter(h, httpserver.Options{VideoDir: cfg.Server.VideoDir, Logger: log})

	addr := "0.0.0.0:" + cfg.Server.Port
	if webhookURL := strings.TrimSpace(cfg.Telegram.WebhookURL); webhookURL != "" {
		return runWebhook(ctx, addr, bot, r, router, webhookURL, log)
	}
	return runPollingMode(ctx, addr, bot, r, router, log)
}

// ---------------- Modes -----------------

func runWebhook(ctx context.Context, addr string, bot *tgbotapi.BotAPI, r *telegram.Router, router *gin.Engine, baseURL string, log *zap.Logger) error {
	// секретный путь вебхука
	path := "/webhook/" + shortHash(bot.Token)
	public := strings.TrimRight(baseURL, "/") + path

	wh, err := tgbotapi.NewWebhook(public)
	if err != nil {
		return err
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}

	router.POST(path, func(c *gin.Context) {
		upd, err := bot.HandleUpdate(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		r.HandleUpdate(ctx, *upd)
		c.Status(http.StatusOK)
	})

	log.Info("webhook mode", zap.String("path", path))
	return httpserver.Serve(ctx, addr, router, log)
}

func runPollingMode(ctx context.Context, addr string, bot *tgbotapi.BotAPI, r *telegram.Router, router *gin.Engine, log *zap.Logger) error {
	// Запускаем HTTP (healthz, метрики), хотя для polling он не обязателен
	go func() {
		if err := httpserver.Serve(ctx, addr, router, log); err != nil {
			log.Error("http server failed", zap.Error(err))
		}
	}()

	if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		log.Warn("delete webhook", zap.Error(err))
	}
	log.Info("polling mode")
	runPolling(ctx, bot, log, func(upd tgbotapi.Update) {
		r.HandleUpdate(ctx, upd)
	})
	return nil
}

// ---------------- Polling loop -----------------

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

func retryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") { // HTTP 429 от Telegram
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return 1 * time.Second
}

func runPolling(ctx context.Context, bot *tgbotapi.BotAPI, log *zap.Logger, handle func(tgbotapi.Update)) {
	offset := 0
	baseDelay := 1 * time.Second
	maxDelay := 15 * time.Second

	for {
		select {
		case <-ctx.Done():
			log.Info("polling stopped")
			return
		default:
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30

		updates, err := bot.GetUpdates(u)
		if err != nil {
			d := min(max(retryDelayFromError(err), baseDelay), maxDelay)
			log.Warn("polling error", zap.Error(err), zap.Duration("retry_in", d))
			select {
			case <-ctx.Done():
				return
			case <-time.After(d):
			}
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(upd)
		}

		if len(updates) == 0 {
			time.Sleep(200 * time.Millisecond)
		}
	}
}

// ---------------- Helpers -----------------

func shortHash(s string) string {
	// FNV-1a: стабильный путь вебхука из токена
	h := uint64(1469598103934665603)
	const prime = 1099511628211
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime
	}
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		out[i] = hexdigits[h&0xF]
		h >>= 4
	}
	return string(out)
}
