package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"waste-bot/api/internal/classify"
	"waste-bot/api/internal/handle"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type nopEngine struct{}

func (nopEngine) Name() string     { return "tmserver" }
func (nopEngine) GetModel() string { return "nop" }
func (nopEngine) ClassCount() int  { return 0 }
func (nopEngine) Predict(context.Context, []byte, string) ([]classify.Prediction, error) {
	return nil, nil
}

func TestNewRouter(t *testing.T) {
	videos := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(videos, "can.mp4"), []byte("mp4"), 0o644))

	h := handle.New(classify.Engines{"tmserver": nopEngine{}}, nopEngine{}, nil, 0)
	reg := prometheus.NewRegistry()
	r := NewRouter(h, Options{
		VideoDir: videos,
		Logger:   zap.NewNop(),
		Metrics:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	cases := []struct {
		method string
		path   string
		code   int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/ready", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/v1/labels", http.StatusOK},
		{http.MethodGet, "/v1/guide/paper", http.StatusOK},
		{http.MethodGet, "/guide/paper", http.StatusOK},
		{http.MethodGet, "/videos/can.mp4", http.StatusOK},
		{http.MethodGet, "/videos/missing.mp4", http.StatusNotFound},
		{http.MethodOptions, "/v1/classify", http.StatusNoContent},
	}
	for _, tc := range cases {
		req, _ := http.NewRequest(tc.method, tc.path, http.NoBody)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, tc.code, w.Code, tc.method+" "+tc.path)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	req, _ := http.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("X-Request-ID", "custom-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "custom-123", w.Body.String())
	assert.Equal(t, "custom-123", w.Header().Get("X-Request-ID"))
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery(zap.NewNop()))
	r.GET("/test", func(*gin.Context) { panic("boom") })

	req, _ := http.NewRequest(http.MethodGet, "/test", http.NoBody)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal error")
}

func TestServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Serve(ctx, "127.0.0.1:0", http.NotFoundHandler(), zap.NewNop())

	assert.NoError(t, err)
}
