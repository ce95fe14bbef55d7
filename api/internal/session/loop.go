package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"waste-bot/api/internal/capture"
	"waste-bot/api/internal/classify"
	"waste-bot/api/internal/guide"
)

// Presenter показывает результат кадра и, один раз, страницу с подсказкой.
type Presenter interface {
	ShowResult(ctx context.Context, v guide.View) error
	OpenGuide(ctx context.Context, v guide.View) error
}

// DefaultInterval: пауза между кадрами, примерно частота обновления экрана.
const DefaultInterval = 100 * time.Millisecond

// Loop это кооперативный цикл: кадр -> модель -> диспетчер -> отображение.
type Loop struct {
	Source    capture.Source
	Engine    classify.Engine
	Presenter Presenter
	Table     guide.Table
	Threshold float64
	Interval  time.Duration
	Logger    *zap.Logger

	// OnGuide вызывается после показа подсказки (история, MQTT). Ошибка только логируется.
	OnGuide func(ctx context.Context, s *Session, v guide.View) error
	// OnResult вызывается на каждом кадре (метрики).
	OnResult func(res classify.Result, took time.Duration)
}

// Run крутит цикл до первого принятого результата, отмены ctx или ошибки
// захвата/инференса. Ошибки не ретраятся.
func (l *Loop) Run(ctx context.Context, s *Session) (guide.View, error) {
	log := l.Logger
	if log == nil {
		log = zap.NewNop()
	}
	table := l.Table
	if table == nil {
		table = guide.Default()
	}
	threshold := l.Threshold
	if threshold <= 0 {
		threshold = classify.DefaultThreshold
	}
	interval := l.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	log = log.With(zap.String("session_id", s.ID.String()), zap.String("engine", l.Engine.Name()))
	log.Info("classification loop started", zap.Float64("threshold", threshold))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if s.Done() {
			return guide.View{}, nil
		}

		view, done, err := l.step(ctx, s, table, threshold, log)
		if err != nil {
			return guide.View{}, err
		}
		if done {
			return view, nil
		}

		select {
		case <-ctx.Done():
			log.Info("classification loop cancelled", zap.Int("frames", s.Frames))
			return guide.View{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *Loop) step(ctx context.Context, s *Session, table guide.Table, threshold float64, log *zap.Logger) (guide.View, bool, error) {
	frame, err := l.Source.Update(ctx)
	if err != nil {
		return guide.View{}, false, fmt.Errorf("capture frame: %w", err)
	}

	start := time.Now()
	preds, err := l.Engine.Predict(ctx, frame.Data, frame.MIME)
	if err != nil {
		return guide.View{}, false, fmt.Errorf("predict: %w", err)
	}
	took := time.Since(start)

	res := classify.DispatchWithThreshold(preds, threshold)
	if l.OnResult != nil {
		l.OnResult(res, took)
	}
	trigger := s.Observe(res)
	view := table.ViewFor(res)

	if err := l.Presenter.ShowResult(ctx, view); err != nil {
		return guide.View{}, false, fmt.Errorf("show result: %w", err)
	}
	if !trigger {
		return view, false, nil
	}

	log.Info("guidance triggered",
		zap.String("label", string(res.Label)),
		zap.String("raw_label", res.RawLabel),
		zap.Float64("confidence", res.Confidence),
		zap.Int("frames", s.Frames),
	)
	if err := l.Source.Stop(); err != nil {
		log.Warn("stop capture", zap.Error(err))
	}
	if err := l.Presenter.OpenGuide(ctx, view); err != nil {
		return view, true, fmt.Errorf("open guide: %w", err)
	}
	if l.OnGuide != nil {
		if err := l.OnGuide(ctx, s, view); err != nil {
			log.Warn("guide hook failed", zap.Error(err))
		}
	}
	return view, true, nil
}
