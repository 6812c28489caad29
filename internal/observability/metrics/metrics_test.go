package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActiveLearningMetrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewActiveLearningMetrics(registry)
	require.NoError(t, err)

	m.RecordOperation(OpRankingPass, StatusSuccess)
	m.RecordOperation(OpRankingPass, StatusError)
	m.RecordOperation(OpRankingPass, StatusSuccess)
	m.RecordDuration(OpRankingPass, 1.2)
	m.RecordOperation(OpSelect, StatusSuccess) // not a pass, ignored
	m.RecordSelection(40, 6, 14, 3)
	m.RecordExtractionFailures(2)
	m.RecordExtractionFailures(0)
	m.RecordSkippedTrigger()
	m.RecordDuration(OpSelect, 0.01)
	m.RecordError(OpReplaceRankings, "database")

	assert.InDelta(t, 2, testutil.ToFloat64(m.passesTotal.WithLabelValues(StatusSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.passesTotal.WithLabelValues(StatusError)), 0)
	assert.InDelta(t, 40, testutil.ToFloat64(m.poolSize), 0)
	assert.InDelta(t, 20, testutil.ToFloat64(m.selectedImages), 0)
	assert.InDelta(t, 6, testutil.ToFloat64(m.selectionTotal.WithLabelValues(SourceDiversity)), 0)
	assert.InDelta(t, 14, testutil.ToFloat64(m.selectionTotal.WithLabelValues(SourceEntropyFill)), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.extractionFailures), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.minorityClasses), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.skippedTriggers), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.passDuration))
	assert.Equal(t, 1, testutil.CollectAndCount(m.operationDuration), "only the select step")
	assert.InDelta(t, 1, testutil.ToFloat64(m.errorsTotal.WithLabelValues(OpReplaceRankings, "database")), 0)

	expected := `
# HELP wildlens_ranking_skipped_triggers_total Scheduler triggers skipped because a pass was still running
# TYPE wildlens_ranking_skipped_triggers_total counter
wildlens_ranking_skipped_triggers_total 1
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected),
		"wildlens_ranking_skipped_triggers_total"))
}

func TestDuplicateRegistrationFails(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	_, err := NewDatastoreMetrics(registry)
	require.NoError(t, err)
	_, err = NewDatastoreMetrics(registry)
	require.Error(t, err)
}

func TestDatastoreObserveQuery(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewDatastoreMetrics(registry)
	require.NoError(t, err)

	m.ObserveQuery("select", 3*time.Millisecond, nil)
	m.ObserveQuery("select", 5*time.Millisecond, nil)
	m.ObserveQuery("insert", time.Millisecond, assert.AnError)
	m.SetRankingRows(12)

	assert.InDelta(t, 2, testutil.ToFloat64(m.operationsTotal.WithLabelValues("select", StatusSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.operationsTotal.WithLabelValues("insert", StatusError)), 0)
	assert.InDelta(t, 12, testutil.ToFloat64(m.rankingRows), 0)
	assert.Equal(t, 2, testutil.CollectAndCount(m.operationDuration))
	assert.Equal(t, 1, testutil.CollectAndCount(m.errorsTotal))
}

func TestMQTTAndNotificationMetrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	mq, err := NewMQTTMetrics(registry)
	require.NoError(t, err)
	nm, err := NewNotificationMetrics(registry)
	require.NoError(t, err)

	mq.UpdateConnectionStatus(true)
	mq.RecordPublish(256, 2*time.Millisecond, nil)
	mq.RecordPublish(0, 0, assert.AnError)
	nm.RecordDelivery(time.Second, nil)
	nm.RecordDelivery(time.Second, assert.AnError)

	assert.InDelta(t, 1, testutil.ToFloat64(mq.ConnectionStatus), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(mq.MessagesDelivered), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(mq.Errors), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(nm.deliveriesTotal.WithLabelValues(StatusError)), 0)

	mq.UpdateConnectionStatus(false)
	assert.Zero(t, testutil.ToFloat64(mq.ConnectionStatus))
}

func TestTestRecorder(t *testing.T) {
	t.Parallel()

	var r Recorder = NewTestRecorder()
	r.RecordOperation(OpPublish, StatusSuccess)
	r.RecordOperation(OpPublish, StatusSuccess)
	r.RecordDuration(OpPublish, 0.5)
	r.RecordError(OpNotify, "timeout")

	tr := r.(*TestRecorder)
	assert.Equal(t, 2, tr.OperationCount(OpPublish, StatusSuccess))
	assert.Equal(t, []float64{0.5}, tr.Durations(OpPublish))
	assert.Equal(t, 1, tr.ErrorCount(OpNotify, "timeout"))
	assert.Zero(t, tr.ErrorCount(OpPublish, "timeout"))

	tr.Reset()
	assert.Zero(t, tr.OperationCount(OpPublish, StatusSuccess))

	NopRecorder{}.RecordOperation(OpPublish, StatusError)
}
