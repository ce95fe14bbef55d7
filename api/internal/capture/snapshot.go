package capture

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// SnapshotSource берёт кадры у IP-камеры по HTTP (JPEG snapshot endpoint).
type SnapshotSource struct {
	URLs  map[Facing]string
	httpc *http.Client

	mu  sync.Mutex
	url string
}

func NewSnapshotSource(urls map[Facing]string, timeout time.Duration) *SnapshotSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SnapshotSource{
		URLs:  urls,
		httpc: &http.Client{Timeout: timeout},
	}
}

// Setup проверяет, что камера отвечает.
func (s *SnapshotSource) Setup(ctx context.Context, facing Facing) error {
	url := strings.TrimSpace(s.URLs[facing])
	if url == "" {
		return fmt.Errorf("no snapshot url for %s camera", facing)
	}
	if _, err := s.fetch(ctx, url); err != nil {
		return fmt.Errorf("open %s camera: %w", facing, err)
	}
	s.mu.Lock()
	s.url = url
	s.mu.Unlock()
	return nil
}

func (s *SnapshotSource) Update(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	url := s.url
	s.mu.Unlock()
	if url == "" {
		return Frame{}, ErrNotStarted
	}

	raw, err := s.fetch(ctx, url)
	if err != nil {
		return Frame{}, err
	}
	data, w, h, err := Normalize(raw)
	if err != nil {
		return Frame{}, err
	}
	return newFrame(data, "image/jpeg", w, h), nil
}

func (s *SnapshotSource) Stop() error {
	s.mu.Lock()
	s.url = ""
	s.mu.Unlock()
	return nil
}

func (s *SnapshotSource) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("snapshot status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return io.ReadAll(resp.Body)
}
