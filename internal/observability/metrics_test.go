package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, g prometheus.Gatherer) string {
	t.Helper()
	srv := httptest.NewServer(Handler(g))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetrics_Exposition(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("halfjourney", reg)

	m.ObserveInteraction("command")
	m.ObserveInteraction("command")
	m.ObserveInteraction("unauthorized")
	m.ObserveSynthesis("stored", 3*time.Second)
	m.ObserveDelivery("image", "sent")

	out := scrape(t, reg)
	require.Contains(t, out, `halfjourney_interactions_total{result="command"} 2`)
	require.Contains(t, out, `halfjourney_interactions_total{result="unauthorized"} 1`)
	require.Contains(t, out, `halfjourney_syntheses_total{outcome="stored"} 1`)
	require.Contains(t, out, `halfjourney_synthesis_duration_seconds_count 1`)
	require.Contains(t, out, `halfjourney_deliveries_total{kind="image",outcome="sent"} 1`)
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	require.NotPanics(t, func() {
		NewMetrics("a", prometheus.NewRegistry())
		NewMetrics("a", prometheus.NewRegistry())
	})
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.ObserveInteraction("command")
		m.ObserveSynthesis("failed", time.Second)
		m.ObserveDelivery("failure", "error")
	})
}
