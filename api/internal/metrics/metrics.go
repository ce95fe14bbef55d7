package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"waste-bot/api/internal/classify"
)

type Metrics struct {
	Classifications *prometheus.CounterVec
	Guidance        *prometheus.CounterVec
	Inference       *prometheus.HistogramVec
}

// New регистрирует коллекторы в reg; nil: prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		Classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wasteguide_classifications_total",
			Help: "Classified frames by dispatched label.",
		}, []string{"label", "accepted"}),
		Guidance: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wasteguide_guidance_total",
			Help: "Guidance pages shown by label.",
		}, []string{"label"}),
		Inference: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wasteguide_inference_seconds",
			Help:    "Model inference latency.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		}, []string{"engine"}),
	}
	reg.MustRegister(m.Classifications, m.Guidance, m.Inference)
	return m
}

func (m *Metrics) ObserveResult(engine string, res classify.Result, took time.Duration) {
	m.Classifications.WithLabelValues(string(res.Label), strconv.FormatBool(res.Accepted)).Inc()
	m.Inference.WithLabelValues(engine).Observe(took.Seconds())
}

func (m *Metrics) ObserveGuide(label classify.Label) {
	m.Guidance.WithLabelValues(string(label)).Inc()
}
