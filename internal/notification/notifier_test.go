package notification

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildlens/wildlens-go/internal/conf"
	"github.com/wildlens/wildlens-go/internal/errors"
	"github.com/wildlens/wildlens-go/internal/observability/metrics"
)

func settingsWith(urls ...string) *conf.Settings {
	s := &conf.Settings{}
	s.Main.Name = "wildlens-test"
	s.Notification = conf.NotificationSettings{Enabled: true, URLs: urls, Timeout: time.Second}
	return s
}

func TestNewShoutrrrNotifierValidation(t *testing.T) {
	t.Parallel()

	_, err := NewShoutrrrNotifier(settingsWith(), nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	_, err = NewShoutrrrNotifier(settingsWith("nosuchservice://token@host"), nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestNotifyPassFailedDelivers(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := metrics.NewNotificationMetrics(registry)
	require.NoError(t, err)

	n, err := NewShoutrrrNotifier(settingsWith("logger://"), m)
	require.NoError(t, err)

	passErr := errors.New(fmt.Errorf("replace rankings: dial tcp: password=hunter22")).
		Category(errors.CategoryDatabase).
		Build()
	require.NoError(t, n.NotifyPassFailed(context.Background(), "run-7", passErr))

	count, err := testutil.GatherAndCount(registry, "wildlens_notification_deliveries_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestFormatPassFailed(t *testing.T) {
	t.Parallel()

	passErr := errors.New(fmt.Errorf("open: password=hunter22")).Category(errors.CategoryDatabase).Build()
	msg := formatPassFailed("node-1", "run-7", passErr)
	assert.Contains(t, msg, "run-7")
	assert.Contains(t, msg, "node-1")
	assert.Contains(t, msg, "(database)")
	assert.NotContains(t, msg, "hunter22")

	msg = formatPassFailed("node-1", "run-8", errors.NewStd("boom"))
	assert.Contains(t, msg, "(generic)")
}

func TestNotifyPassFailedRateLimited(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := metrics.NewNotificationMetrics(registry)
	require.NoError(t, err)

	settings := settingsWith("logger://")
	settings.Notification.MaxPerHour = 1
	n, err := NewShoutrrrNotifier(settings, m)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, n.NotifyPassFailed(ctx, "run-1", errors.NewStd("boom")))
	require.NoError(t, n.NotifyPassFailed(ctx, "run-2", errors.NewStd("boom")), "suppressed alerts are not errors")

	err = testutil.GatherAndCompare(registry, strings.NewReader(`
# HELP wildlens_notification_deliveries_total Operator notification deliveries by outcome
# TYPE wildlens_notification_deliveries_total counter
wildlens_notification_deliveries_total{status="success"} 1
wildlens_notification_deliveries_total{status="suppressed"} 1
`), "wildlens_notification_deliveries_total")
	require.NoError(t, err)
}

type stateRecorder struct{ states []int }

func (r *stateRecorder) UpdateCircuitState(state int) { r.states = append(r.states, state) }

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	t.Parallel()

	rec := &stateRecorder{}
	cb := newCircuitBreaker(CircuitBreakerConfig{MaxFailures: 2, Timeout: time.Minute}, rec)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return now }

	ctx := context.Background()
	calls := 0
	failing := func(context.Context) error { calls++; return errors.NewStd("smtp down") }
	working := func(context.Context) error { calls++; return nil }

	require.Error(t, cb.Call(ctx, failing))
	assert.Equal(t, StateClosed, cb.State())
	require.Error(t, cb.Call(ctx, failing))
	assert.Equal(t, StateOpen, cb.State())

	err := cb.Call(ctx, working)
	require.ErrorIs(t, err, ErrCircuitBreakerOpen)
	assert.Equal(t, 2, calls, "open circuit does not call through")

	now = now.Add(time.Minute)
	require.NoError(t, cb.Call(ctx, working))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Failures())
	assert.Equal(t, []int{int(StateClosed), int(StateOpen), int(StateHalfOpen), int(StateClosed)}, rec.states)
}

func TestCircuitBreakerFailedTrialReopens(t *testing.T) {
	t.Parallel()

	cb := newCircuitBreaker(CircuitBreakerConfig{MaxFailures: 1, Timeout: time.Second}, nil)
	now := time.Now()
	cb.now = func() time.Time { return now }
	ctx := context.Background()

	require.Error(t, cb.Call(ctx, func(context.Context) error { return errors.NewStd("down") }))
	now = now.Add(time.Second)
	require.Error(t, cb.Call(ctx, func(context.Context) error { return errors.NewStd("still down") }))
	assert.Equal(t, StateOpen, cb.State())

	// cancellation is not counted against the services
	now = now.Add(time.Second)
	require.ErrorIs(t, cb.Call(ctx, func(context.Context) error { return context.Canceled }), context.Canceled)
	assert.Equal(t, StateHalfOpen, cb.State())
}
