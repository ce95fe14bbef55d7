//go:build gocv

package capture

import (
	"context"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// WebcamSource читает кадры с локальной камеры через OpenCV.
// Facing сопоставляется с индексом устройства.
type WebcamSource struct {
	Devices map[Facing]int

	mu  sync.Mutex
	cam *gocv.VideoCapture
	mat gocv.Mat
}

func NewWebcamSource(devices map[Facing]int) (Source, error) {
	return &WebcamSource{Devices: devices}, nil
}

func (s *WebcamSource) Setup(_ context.Context, facing Facing) error {
	idx, ok := s.Devices[facing]
	if !ok {
		return fmt.Errorf("no device for %s camera", facing)
	}
	cam, err := gocv.OpenVideoCapture(idx)
	if err != nil {
		return fmt.Errorf("open %s camera: %w", facing, err)
	}
	if !cam.IsOpened() {
		_ = cam.Close()
		return fmt.Errorf("open %s camera: device %d not opened", facing, idx)
	}

	s.mu.Lock()
	if s.cam != nil {
		_ = s.cam.Close()
		_ = s.mat.Close()
	}
	s.cam = cam
	s.mat = gocv.NewMat()
	s.mu.Unlock()
	return nil
}

func (s *WebcamSource) Update(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cam == nil {
		return Frame{}, ErrNotStarted
	}
	if ok := s.cam.Read(&s.mat); !ok || s.mat.Empty() {
		return Frame{}, ErrNoFrames
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, s.mat)
	if err != nil {
		return Frame{}, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data, w, h, err := Normalize(buf.GetBytes())
	if err != nil {
		return Frame{}, err
	}
	return newFrame(data, "image/jpeg", w, h), nil
}

func (s *WebcamSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cam == nil {
		return nil
	}
	err := s.cam.Close()
	_ = s.mat.Close()
	s.cam = nil
	return err
}
