package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewCollector("voxflow", reg, zap.NewNop()), reg
}

func TestCollector_HTTPRequests(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordHTTPRequest("POST", "/api/v1/chat", 200, 50*time.Millisecond)
	c.RecordHTTPRequest("POST", "/api/v1/chat", 200, 30*time.Millisecond)
	c.RecordHTTPRequest("POST", "/api/v1/chat", 429, 1*time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(
		c.httpRequestsTotal.WithLabelValues("POST", "/api/v1/chat", "2xx")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		c.httpRequestsTotal.WithLabelValues("POST", "/api/v1/chat", "4xx")))
}

func TestCollector_CacheEvents(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordCacheEvent("tts", true)
	c.RecordCacheEvent("tts", true)
	c.RecordCacheEvent("tts", false)

	assert.Equal(t, float64(2), testutil.ToFloat64(c.cacheHits.WithLabelValues("tts")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.cacheMisses.WithLabelValues("tts")))
}

func TestCollector_StageFailures(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordStageFailure("synthesis", "PROVIDER_EXHAUSTED")
	c.ObserveStage("synthesis", time.Second)

	assert.Equal(t, float64(1), testutil.ToFloat64(
		c.stageFailures.WithLabelValues("synthesis", "PROVIDER_EXHAUSTED")))
}

func TestCollector_WSConnections(t *testing.T) {
	c, _ := newTestCollector(t)

	c.WSConnectionOpened()
	c.WSConnectionOpened()
	c.WSConnectionClosed()

	assert.Equal(t, float64(1), testutil.ToFloat64(c.wsConnections))
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector

	c.RecordHTTPRequest("GET", "/health", 200, time.Millisecond)
	c.ObserveStage("transcription", time.Second)
	c.RecordStageFailure("generation", "GENERATION_FAILED")
	c.RecordCacheEvent("llm", true)
	c.RecordTokens("mistral", "mistral-large-latest", 10)
	c.WSConnectionOpened()
	c.WSConnectionClosed()
}
