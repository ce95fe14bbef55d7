package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"waste-bot/api/internal/handle"
)

type Options struct {
	VideoDir string
	Logger   *zap.Logger
	// Metrics: обработчик /metrics; nil значит promhttp.Handler().
	Metrics http.Handler
}

// NewRouter собирает gin-роутер: health, метрики, API классификации и страницы подсказок.
func NewRouter(h *handle.Handle, opts Options) *gin.Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	r := gin.New()
	r.Use(RequestID(), Logger(log), Recovery(log), CORS())

	r.GET("/healthz", h.Health)
	r.GET("/ready", h.Ready)

	mh := opts.Metrics
	if mh == nil {
		mh = promhttp.Handler()
	}
	r.GET("/metrics", gin.WrapH(mh))

	v1 := r.Group("/v1")
	{
		v1.GET("/labels", h.Labels)
		v1.POST("/classify", h.Classify)
		v1.GET("/guide/:label", h.GuideJSON)
	}
	r.GET("/guide/:label", h.GuidePage)

	if opts.VideoDir != "" {
		r.Static("/videos", opts.VideoDir)
	}
	return r
}

// Serve слушает addr до отмены ctx, затем делает graceful shutdown.
func Serve(ctx context.Context, addr string, handler http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down http server")
	sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}
