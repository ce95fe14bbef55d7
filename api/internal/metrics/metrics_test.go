package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waste-bot/api/internal/classify"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveResult("tmserver", classify.Result{Label: classify.Paper, Accepted: true}, 40*time.Millisecond)
	m.ObserveResult("tmserver", classify.Result{Label: classify.General}, 20*time.Millisecond)
	m.ObserveGuide(classify.Paper)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]int{}
	for _, f := range families {
		names[f.GetName()] = len(f.GetMetric())
	}
	assert.Equal(t, 2, names["wasteguide_classifications_total"])
	assert.Equal(t, 1, names["wasteguide_guidance_total"])
	assert.Equal(t, 1, names["wasteguide_inference_seconds"])
}
