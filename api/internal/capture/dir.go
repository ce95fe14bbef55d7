package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// DirSource отдаёт по кругу изображения из папки. Папка выбирается по Facing,
// что позволяет проверить переключение камер без железа.
type DirSource struct {
	Dirs map[Facing]string
	Loop bool

	mu    sync.Mutex
	files []string
	next  int
	ready bool
}

func NewDirSource(dirs map[Facing]string, loop bool) *DirSource {
	return &DirSource{Dirs: dirs, Loop: loop}
}

func (s *DirSource) Setup(_ context.Context, facing Facing) error {
	dir, ok := s.Dirs[facing]
	if !ok || strings.TrimSpace(dir) == "" {
		return fmt.Errorf("no directory for %s camera", facing)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("open %s camera: %w", facing, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return fmt.Errorf("open %s camera: %w", facing, ErrNoFrames)
	}
	sort.Strings(files)

	s.mu.Lock()
	s.files = files
	s.next = 0
	s.ready = true
	s.mu.Unlock()
	return nil
}

func (s *DirSource) Update(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	s.mu.Lock()
	if !s.ready {
		s.mu.Unlock()
		return Frame{}, ErrNotStarted
	}
	if s.next >= len(s.files) {
		if !s.Loop {
			s.mu.Unlock()
			return Frame{}, ErrNoFrames
		}
		s.next = 0
	}
	path := s.files[s.next]
	s.next++
	s.mu.Unlock()

	raw, err := os.ReadFile(path)
	if err != nil {
		return Frame{}, fmt.Errorf("read frame: %w", err)
	}
	data, w, h, err := Normalize(raw)
	if err != nil {
		return Frame{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return newFrame(data, "image/jpeg", w, h), nil
}

func (s *DirSource) Stop() error {
	s.mu.Lock()
	s.ready = false
	s.mu.Unlock()
	return nil
}
