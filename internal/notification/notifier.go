// Package notification alerts operators about failed ranking passes through
// shoutrrr services (Telegram, Slack, ntfy, SMTP, ...).
package notification

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	"golang.org/x/time/rate"

	"github.com/wildlens/wildlens-go/internal/conf"
	"github.com/wildlens/wildlens-go/internal/errors"
	"github.com/wildlens/wildlens-go/internal/logger"
	"github.com/wildlens/wildlens-go/internal/observability/metrics"
	"github.com/wildlens/wildlens-go/internal/ranking"
)

const passFailedTitle = "wildlens: ranking pass failed"

// ShoutrrrNotifier sends pass failures to every configured service URL.
// Alerts beyond the hourly cap are dropped, and deliveries pause while the
// services keep failing.
type ShoutrrrNotifier struct {
	sender  *router.ServiceRouter
	host    string
	metrics *metrics.NotificationMetrics
	limiter *rate.Limiter // nil when uncapped
	breaker *circuitBreaker
}

// NewShoutrrrNotifier validates the service URLs and builds one sender for
// all of them. m may be nil.
func NewShoutrrrNotifier(settings *conf.Settings, m *metrics.NotificationMetrics) (*ShoutrrrNotifier, error) {
	cfg := settings.Notification
	if len(cfg.URLs) == 0 {
		return nil, errors.Newf("at least one notification URL is required").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}

	sender, err := shoutrrr.CreateSender(cfg.URLs...)
	if err != nil {
		return nil, errors.New(fmt.Errorf("invalid notification URL: %w", err)).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Context("urls", len(cfg.URLs)).
			Build()
	}
	if cfg.Timeout > 0 {
		sender.Timeout = cfg.Timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))

	n := &ShoutrrrNotifier{
		sender:  sender,
		host:    settings.Main.Name,
		metrics: m,
	}
	if cfg.MaxPerHour > 0 {
		n.limiter = rate.NewLimiter(rate.Every(time.Hour/time.Duration(cfg.MaxPerHour)), 1)
	}
	var observer StateObserver
	if m != nil {
		observer = m
	}
	n.breaker = newCircuitBreaker(DefaultCircuitBreakerConfig(), observer)
	return n, nil
}

// NotifyPassFailed implements ranking.Notifier. Delivery errors of
// individual services are joined. A notification dropped by the rate limit
// is not an error.
func (n *ShoutrrrNotifier) NotifyPassFailed(ctx context.Context, runID string, passErr error) error {
	log := GetLogger().WithContext(ctx)
	if n.limiter != nil && !n.limiter.Allow() {
		n.recordDropped(metrics.StatusSuppressed)
		log.Debug("pass failure notification suppressed by rate limit", logger.String("run_id", runID))
		return nil
	}

	message := formatPassFailed(n.host, runID, passErr)
	err := n.breaker.Call(ctx, func(context.Context) error {
		return n.send(message)
	})
	if errors.Is(err, ErrCircuitBreakerOpen) {
		n.recordDropped(metrics.StatusRejected)
		return err
	}
	if err != nil {
		return errors.New(fmt.Errorf("failed to deliver notification: %w", err)).
			Component("notification").
			Category(errors.CategoryNotification).
			Context("run_id", runID).
			Build()
	}

	log.Debug("operators notified about failed pass", logger.String("run_id", runID))
	return nil
}

// send delivers message to every service and records the attempt.
func (n *ShoutrrrNotifier) send(message string) error {
	start := time.Now()
	params := stypes.Params{}
	params.SetTitle(passFailedTitle)

	var errs []error
	for _, e := range n.sender.Send(message, &params) {
		if e != nil {
			errs = append(errs, e)
		}
	}
	err := errors.Join(errs...)
	if n.metrics != nil {
		n.metrics.RecordDelivery(time.Since(start), err)
	}
	return err
}

func (n *ShoutrrrNotifier) recordDropped(status string) {
	if n.metrics != nil {
		n.metrics.RecordDropped(status)
	}
}

// formatPassFailed renders the notification body. The error text is scrubbed
// of credentials since it may carry a DSN or broker URL.
func formatPassFailed(host, runID string, passErr error) string {
	category := string(errors.CategoryGeneric)
	var ee *errors.EnhancedError
	if errors.As(passErr, &ee) {
		category = ee.GetCategory()
	}
	return fmt.Sprintf("Ranking pass %s on %s failed (%s): %s",
		runID, host, category, logger.RedactSensitiveData(passErr.Error()))
}

// GetLogger returns the notification module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("notification")
}

var _ ranking.Notifier = (*ShoutrrrNotifier)(nil)
