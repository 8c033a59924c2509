package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/virtualclone/ai/answering"
)

func TestPrometheusExporter_Observer(t *testing.T) {
	exporter := NewPrometheusExporter(DefaultConfig())

	exporter.ObserveAnswer(answering.ModeNovel, answering.SourceModel, 100*time.Millisecond)
	exporter.ObserveAnswer(answering.ModeRepetitive, answering.SourceCache, time.Millisecond)
	exporter.ObserveAnswer(answering.ModeRepetitive, answering.SourceCache, time.Millisecond)
	exporter.ObserveQuestionAnswerer(nil, 80*time.Millisecond)
	exporter.ObserveQuestionAnswerer(errors.New("timeout"), time.Second)
	exporter.ObserveCacheLookup(true)
	exporter.ObserveCacheLookup(false)
	exporter.ObserveCacheEviction()
	exporter.SetCacheSize(42)

	assert.Equal(t, 1.0, testutil.ToFloat64(exporter.answers.WithLabelValues("novel", "model")))
	assert.Equal(t, 2.0, testutil.ToFloat64(exporter.answers.WithLabelValues("repetitive", "cache")))
	assert.Equal(t, 1.0, testutil.ToFloat64(exporter.qaRequests.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(exporter.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(exporter.cacheEvictions))
	assert.Equal(t, 42.0, testutil.ToFloat64(exporter.cacheSize))
}

func TestPrometheusExporter_Surface(t *testing.T) {
	exporter := NewPrometheusExporter(DefaultConfig())

	exporter.RecordTranslation("inbound", true)
	exporter.RecordTranslation("outbound", false)
	done := exporter.ChatStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(exporter.chatActive))
	done()
	assert.Equal(t, 0.0, testutil.ToFloat64(exporter.chatActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(exporter.translations.WithLabelValues("outbound", "error")))

	exporter.RecordWebhookEvent("telegram", "received")
	exporter.RecordWebhookEvent("telegram", "received")
	exporter.RecordWebhookEvent("telegram", "rejected")
	assert.Equal(t, 2.0, testutil.ToFloat64(exporter.webhookEvents.WithLabelValues("telegram", "received")))
}

func TestPrometheusExporter_Handler(t *testing.T) {
	exporter := NewPrometheusExporter(DefaultConfig())
	exporter.ObserveAnswer(answering.ModeNovel, answering.SourceFallback, time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	rec := httptest.NewRecorder()
	exporter.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `virtualclone_answering_answers_total{mode="novel",source="fallback"} 1`)
	assert.Contains(t, string(body), "virtualclone_answer_cache_fingerprints")
}

func TestPrometheusExporter_EngineIntegration(t *testing.T) {
	exporter := NewPrometheusExporter(DefaultConfig())
	qa := answering.QuestionAnswererFunc(func(_ context.Context, _, _ string, _, _ int) ([]answering.Candidate, error) {
		return []answering.Candidate{{Text: "42"}}, nil
	})
	engine := answering.NewEngine(qa, answering.Config{CacheCapacity: 1}, answering.WithObserver(exporter))

	engine.Answer(context.Background(), "first question", "ctx", nil)
	engine.Answer(context.Background(), "second question", "ctx", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(exporter.answers.WithLabelValues("novel", "model")))
	assert.Equal(t, 2.0, testutil.ToFloat64(exporter.qaRequests.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(exporter.cacheEvictions))
	assert.Equal(t, 1.0, testutil.ToFloat64(exporter.cacheSize))
}
