package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Facing: какую камеру просим у устройства.
type Facing string

const (
	Environment Facing = "environment" // задняя
	User        Facing = "user"        // фронтальная
)

var (
	ErrNoFrames   = errors.New("no frames available")
	ErrNotStarted = errors.New("source is not set up")
)

// Frame: один снимок с камеры.
type Frame struct {
	ID     uuid.UUID
	Data   []byte
	MIME   string
	Width  int
	Height int
	At     time.Time
}

// Source: источник кадров (вебкамера, IP-камера, папка с файлами).
type Source interface {
	Setup(ctx context.Context, facing Facing) error
	Update(ctx context.Context) (Frame, error)
	Stop() error
}

// Open настраивает источник на заднюю камеру, а при ошибке пробует фронтальную.
// Это единственный сбой, который обрабатывается; остальное уходит наверх.
func Open(ctx context.Context, src Source, log *zap.Logger) (Facing, error) {
	if log == nil {
		log = zap.NewNop()
	}
	err := src.Setup(ctx, Environment)
	if err == nil {
		return Environment, nil
	}
	log.Warn("rear camera unavailable, falling back to front camera", zap.Error(err))

	if err := src.Setup(ctx, User); err != nil {
		return "", fmt.Errorf("camera setup: %w", err)
	}
	return User, nil
}

func newFrame(data []byte, mime string, w, h int) Frame {
	return Frame{
		ID:     uuid.New(),
		Data:   data,
		MIME:   mime,
		Width:  w,
		Height: h,
		At:     time.Now(),
	}
}
