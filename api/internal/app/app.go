// Package app собирает общие для бинарников зависимости: движки, БД, кэш, MQTT, метрики.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"waste-bot/api/internal/cache"
	"waste-bot/api/internal/classify"
	"waste-bot/api/internal/classify/cached"
	"waste-bot/api/internal/classify/gemini"
	"waste-bot/api/internal/classify/onnx"
	"waste-bot/api/internal/classify/openai"
	"waste-bot/api/internal/classify/tmserver"
	"waste-bot/api/internal/config"
	"waste-bot/api/internal/emitter"
	"waste-bot/api/internal/handle"
	"waste-bot/api/internal/metrics"
	"waste-bot/api/internal/session"
	"waste-bot/api/internal/store"
)

type Infra struct {
	DB      *sql.DB
	Events  *store.EventRepo
	Redis   *redis.Client
	Cache   cache.Cache
	MQTT    *emitter.MQTT
	Metrics *metrics.Metrics

	log  *zap.Logger
	stop context.CancelFunc
}

const purgeEvery = time.Hour

// Setup поднимает то, что настроено. Postgres обязателен, если задан DSN;
// redis и MQTT необязательны: при ошибке пишем warn и работаем без них.
func Setup(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Infra, error) {
	in := &Infra{log: log, Metrics: metrics.New(nil)}

	if cfg.Database.URL != "" {
		db, err := store.Open(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		in.DB = db
		in.Events = store.NewEventRepo(db)
		if err := in.Events.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		log.Info("database connected")

		if cfg.Database.Retention > 0 {
			pctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
			in.stop = cancel
			go purgeLoop(pctx, in.Events, cfg.Database.Retention, purgeEvery, log)
		}
	}

	if cfg.Redis.Addr != "" {
		cl, err := cache.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, using in-memory cache", zap.Error(err))
		} else {
			in.Redis = cl
			in.Cache = cache.NewRedis(cl, "wasteguide:")
			log.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
		}
	}
	if in.Cache == nil {
		in.Cache = cache.NewMemory(1024)
	}

	if cfg.MQTT.Broker != "" {
		m := emitter.NewMQTT(cfg.MQTT, log)
		if err := m.Connect(ctx); err != nil {
			log.Warn("mqtt unavailable, events will not be published", zap.Error(err))
		} else {
			in.MQTT = m
		}
	}
	return in, nil
}

type purger interface {
	PurgeOlderThan(ctx context.Context, maxAge time.Duration) (int64, error)
}

// purgeLoop удаляет события старше maxAge сразу и затем каждые every, пока жив ctx.
func purgeLoop(ctx context.Context, p purger, maxAge, every time.Duration, log *zap.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		n, err := p.PurgeOlderThan(ctx, maxAge)
		switch {
		case err != nil:
			if ctx.Err() == nil {
				log.Warn("purge events failed", zap.Error(err))
			}
		case n > 0:
			log.Info("old events purged", zap.Int64("rows", n), zap.Duration("max_age", maxAge))
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Checks: проверки для /healthz и /ready, включая серверы моделей среди engines.
func (in *Infra) Checks(engines classify.Engines) map[string]handle.Check {
	checks := map[string]handle.Check{}
	if in.DB != nil {
		checks["database"] = in.DB.PingContext
	}
	if in.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return in.Redis.Ping(ctx).Err() }
	}
	for name, e := range engines {
		if u, ok := e.(interface{ Unwrap() classify.Engine }); ok {
			e = u.Unwrap()
		}
		if tm, ok := e.(*tmserver.Engine); ok {
			checks["engine_"+name] = modelServerCheck(tm)
		}
	}
	return checks
}

func modelServerCheck(tm *tmserver.Engine) handle.Check {
	return func(ctx context.Context) error {
		h, err := tm.Health(ctx)
		if err != nil {
			return err
		}
		if !h.ModelLoaded {
			return errors.New("model not loaded")
		}
		return nil
	}
}

// Stats: счётчики для /healthz.
func (in *Infra) Stats() map[string]func() any {
	stats := map[string]func() any{}
	if in.MQTT != nil {
		stats["mqtt"] = func() any { return in.MQTT.Stats() }
	}
	return stats
}

// Record сохраняет событие показа подсказки, публикует его и считает метрику.
func (in *Infra) Record(ctx context.Context, ev session.Event) {
	in.Metrics.ObserveGuide(classify.Label(ev.Label))
	if in.Events != nil {
		if _, err := in.Events.Insert(ctx, ev); err != nil {
			in.log.Warn("save event failed", zap.Error(err))
		}
	}
	if in.MQTT != nil {
		if err := in.MQTT.Publish(ctx, ev); err != nil {
			in.log.Warn("publish event failed", zap.Error(err))
		}
	}
}

func (in *Infra) Close() {
	if in.stop != nil {
		in.stop()
	}
	if in.MQTT != nil {
		in.MQTT.Disconnect()
	}
	if in.Cache != nil {
		_ = in.Cache.Close()
	}
	if in.DB != nil {
		_ = in.DB.Close()
	}
}

// BuildEngines создаёт все движки, для которых есть настройки, и выбирает движок по умолчанию.
// Ошибка загрузки фатальна только для движка по умолчанию.
func BuildEngines(ctx context.Context, cfg *config.Config, c cache.Cache, log *zap.Logger) (classify.Engines, classify.Engine, error) {
	mc := cfg.Model
	def := mc.Engine
	if def == "tm" {
		def = "tmserver"
	}
	if def == "openai" {
		def = "gpt"
	}

	engines := classify.Engines{}
	fail := func(name string, err error) error {
		if name == def {
			return fmt.Errorf("load %s engine: %w", name, err)
		}
		log.Warn("engine disabled", zap.String("engine", name), zap.Error(err))
		return nil
	}

	if mc.TMServerURL != "" {
		tm := tmserver.New(mc.TMServerURL, "", mc.TMTimeout)
		if err := tm.Load(ctx); err != nil {
			if err := fail("tmserver", err); err != nil {
				return nil, nil, err
			}
		} else {
			engines["tmserver"] = tm
		}
	}

	if _, err := os.Stat(filepath.Join(mc.ONNXDir, "model.onnx")); err == nil || def == "onnx" {
		eng, err := onnx.Load(mc.ONNXDir, onnx.Layout(strings.ToUpper(mc.ONNXLayout)))
		if err != nil {
			if err := fail("onnx", err); err != nil {
				return nil, nil, err
			}
		} else {
			engines["onnx"] = eng
		}
	}

	if mc.GeminiAPIKey != "" {
		engines["gemini"] = gemini.New(mc.GeminiAPIKey, mc.GeminiModel)
	}
	if mc.OpenAIAPIKey != "" {
		engines["gpt"] = openai.New(mc.OpenAIAPIKey, mc.OpenAIModel)
	}

	if c != nil {
		for name, e := range engines {
			engines[name] = cached.New(e, c, cfg.Redis.TTL, log)
		}
	}

	eng, err := engines.Get(def)
	if err != nil {
		return nil, nil, fmt.Errorf("default engine %q: %w", def, err)
	}
	log.Info("engines ready", zap.Strings("engines", engines.Names()), zap.String("default", eng.Name()))
	return engines, eng, nil
}
