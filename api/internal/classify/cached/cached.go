package cached

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"waste-bot/api/internal/cache"
	"waste-bot/api/internal/classify"
	"waste-bot/api/internal/util"
)

// Engine оборачивает движок и кэширует предсказания по sha256 картинки.
type Engine struct {
	classify.Engine
	Cache  cache.Cache
	TTL    time.Duration
	Logger *zap.Logger
}

func New(inner classify.Engine, c cache.Cache, ttl time.Duration, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{Engine: inner, Cache: c, TTL: ttl, Logger: log}
}

// Unwrap возвращает внутренний движок.
func (e *Engine) Unwrap() classify.Engine { return e.Engine }

func (e *Engine) key(img []byte) string {
	return "pred:" + e.Engine.Name() + ":" + e.Engine.GetModel() + ":" + util.SHA256Hex(img)
}

func (e *Engine) Predict(ctx context.Context, img []byte, mime string) ([]classify.Prediction, error) {
	key := e.key(img)

	var preds []classify.Prediction
	err := e.Cache.Get(ctx, key, &preds)
	switch {
	case err == nil:
		return preds, nil
	case !errors.Is(err, cache.ErrMiss):
		e.Logger.Warn("prediction cache read failed", zap.String("key", key), zap.Error(err))
	}

	preds, err = e.Engine.Predict(ctx, img, mime)
	if err != nil {
		return nil, err
	}
	if err := e.Cache.Set(ctx, key, preds, e.TTL); err != nil {
		e.Logger.Warn("prediction cache write failed", zap.String("key", key), zap.Error(err))
	}
	return preds, nil
}

// WithModel оборачивает копию внутреннего движка с другой моделью тем же кэшем.
// Если внутренний движок модель не переключает, возвращается сам e.
func (e *Engine) WithModel(model string) classify.Engine {
	ms, ok := e.Engine.(classify.ModelSwitcher)
	if !ok {
		return e
	}
	return &Engine{Engine: ms.WithModel(model), Cache: e.Cache, TTL: e.TTL, Logger: e.Logger}
}
