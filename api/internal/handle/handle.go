package handle

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"waste-bot/api/internal/classify"
	"waste-bot/api/internal/guide"
	"waste-bot/api/internal/metrics"
)

// Check: проверка зависимости для /healthz и /ready.
type Check func(ctx context.Context) error

type Handle struct {
	Engines   classify.Engines
	Default   classify.Engine
	Table     guide.Table
	Threshold float64
	Metrics   *metrics.Metrics
	Checks    map[string]Check
	Logger    *zap.Logger

	// Stats: дополнительные счётчики в ответе /healthz, на статус не влияют.
	Stats map[string]func() any
}

func New(engines classify.Engines, def classify.Engine, table guide.Table, threshold float64) *Handle {
	if table == nil {
		table = guide.Default()
	}
	if threshold <= 0 {
		threshold = classify.DefaultThreshold
	}
	return &Handle{
		Engines:   engines,
		Default:   def,
		Table:     table,
		Threshold: threshold,
		Checks:    map[string]Check{},
		Logger:    zap.NewNop(),
	}
}

func respondError(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}

// requestTimeout: заголовок X-Request-Timeout или ?timeoutSec, в секундах.
func requestTimeout(c *gin.Context, def time.Duration) time.Duration {
	for _, ts := range []string{c.GetHeader("X-Request-Timeout"), c.Query("timeoutSec")} {
		if ts == "" {
			continue
		}
		if v, _ := strconv.Atoi(ts); v > 0 {
			return time.Duration(v) * time.Second
		}
	}
	return def
}

func (h *Handle) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	components := map[string]any{}
	healthy := true
	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			components[name] = "error: " + err.Error()
			healthy = false
			continue
		}
		components[name] = "ok"
	}
	if h.Default != nil {
		components["engine"] = h.Default.Name()
	}
	for name, stat := range h.Stats {
		components[name] = stat()
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "components": components})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "components": components})
}

func (h *Handle) Ready(c *gin.Context) {
	if h.Default == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "reason": "no engine"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "reason": name + " unreachable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
