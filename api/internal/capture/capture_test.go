package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSource struct {
	fail  map[Facing]error
	calls []Facing
}

func (f *fakeSource) Setup(_ context.Context, facing Facing) error {
	f.calls = append(f.calls, facing)
	return f.fail[facing]
}
func (f *fakeSource) Update(context.Context) (Frame, error) { return Frame{}, nil }
func (f *fakeSource) Stop() error                          { return nil }

func TestOpen(t *testing.T) {
	t.Run("uses rear camera when available", func(t *testing.T) {
		src := &fakeSource{}

		facing, err := Open(context.Background(), src, zap.NewNop())

		require.NoError(t, err)
		assert.Equal(t, Environment, facing)
		assert.Equal(t, []Facing{Environment}, src.calls)
	})

	t.Run("falls back to front camera", func(t *testing.T) {
		src := &fakeSource{fail: map[Facing]error{Environment: errors.New("not found")}}

		facing, err := Open(context.Background(), src, nil)

		require.NoError(t, err)
		assert.Equal(t, User, facing)
		assert.Equal(t, []Facing{Environment, User}, src.calls)
	})

	t.Run("propagates front camera failure", func(t *testing.T) {
		denied := errors.New("permission denied")
		src := &fakeSource{fail: map[Facing]error{
			Environment: errors.New("not found"),
			User:        denied,
		}}

		_, err := Open(context.Background(), src, zap.NewNop())

		assert.ErrorIs(t, err, denied)
	})
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNormalize(t *testing.T) {
	data, w, h, err := Normalize(pngBytes(t, 320, 240))

	require.NoError(t, err)
	assert.Equal(t, ModelInputSize, w)
	assert.Equal(t, ModelInputSize, h)

	img, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, ModelInputSize, img.Bounds().Dx())

	_, _, _, err = Normalize([]byte("not an image"))
	assert.Error(t, err)
}

func TestDirSource(t *testing.T) {
	front := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(front, "a.png"), pngBytes(t, 50, 40), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(front, "b.png"), pngBytes(t, 40, 50), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(front, "notes.txt"), []byte("skip"), 0o600))

	src := NewDirSource(map[Facing]string{
		Environment: filepath.Join(t.TempDir(), "missing"),
		User:        front,
	}, false)
	ctx := context.Background()

	_, err := src.Update(ctx)
	assert.ErrorIs(t, err, ErrNotStarted)

	facing, err := Open(ctx, src, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, User, facing)

	f1, err := src.Update(ctx)
	require.NoError(t, err)
	f2, err := src.Update(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, f1.ID, f2.ID)
	assert.Equal(t, "image/jpeg", f1.MIME)

	_, err = src.Update(ctx)
	assert.ErrorIs(t, err, ErrNoFrames)

	require.NoError(t, src.Stop())
	_, err = src.Update(ctx)
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestSnapshotSource(t *testing.T) {
	img := pngBytes(t, 64, 64)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/rear" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(img)
	}))
	defer server.Close()

	src := NewSnapshotSource(map[Facing]string{
		Environment: server.URL + "/rear",
		User:        server.URL + "/front",
	}, 5*time.Second)
	ctx := context.Background()

	facing, err := Open(ctx, src, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, User, facing)

	frame, err := src.Update(ctx)
	require.NoError(t, err)
	assert.Equal(t, ModelInputSize, frame.Width)
	assert.NotEmpty(t, frame.Data)

	require.NoError(t, src.Stop())
	_, err = src.Update(ctx)
	assert.ErrorIs(t, err, ErrNotStarted)
}
