package alerting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/clickstudio/click/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

// Outcomes recorded in history.
const (
	OutcomeSent        = "sent"
	OutcomeCooldown    = "cooldown"
	OutcomeRateLimited = "rate_limited"
	OutcomeFailed      = "failed"
)

const (
	defaultHistorySize = 100
	deliveryRetries    = 3
	deliveryBackoff    = 500 * time.Millisecond
	deliveryMaxBackoff = 5 * time.Second
)

// Record is one entry in the alert history.
type Record struct {
	Alert   Alert  `json:"alert"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

// Options configures an Alerter.
type Options struct {
	Cooldown    time.Duration // minimum gap between alerts with the same key
	MaxPerHour  int           // cap on delivered alerts in any rolling hour
	HistorySize int
	// Backoff is the base delay between delivery retries.
	Backoff time.Duration
}

// Alerter fans alerts out to notifiers, suppressing repeats.
type Alerter struct {
	notifiers []Notifier
	opts      Options
	log       zerolog.Logger

	mu       sync.Mutex
	lastSent map[string]time.Time
	sent     []time.Time
	history  []Record
	now      func() time.Time
}

// New returns an Alerter delivering to notifiers.
func New(log zerolog.Logger, opts Options, notifiers ...Notifier) *Alerter {
	if opts.HistorySize <= 0 {
		opts.HistorySize = defaultHistorySize
	}
	if opts.Backoff <= 0 {
		opts.Backoff = deliveryBackoff
	}
	return &Alerter{
		notifiers: notifiers,
		opts:      opts,
		log:       log,
		lastSent:  make(map[string]time.Time),
		now:       time.Now,
	}
}

// Notifiers returns the names of the configured notifiers.
func (a *Alerter) Notifiers() []string {
	names := make([]string, 0, len(a.notifiers))
	for _, n := range a.notifiers {
		names = append(names, n.Name())
	}
	return names
}

// admitLocked decides whether alert may be delivered now and reserves a slot if
// so. a.mu must be held.
func (a *Alerter) admitLocked(alert Alert, now time.Time) string {
	if alert.Key != "" && a.opts.Cooldown > 0 {
		if last, ok := a.lastSent[alert.Key]; ok && now.Sub(last) < a.opts.Cooldown {
			return OutcomeCooldown
		}
	}

	cutoff := now.Add(-time.Hour)
	kept := a.sent[:0]
	for _, t := range a.sent {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	a.sent = kept
	if a.opts.MaxPerHour > 0 && len(a.sent) >= a.opts.MaxPerHour {
		return OutcomeRateLimited
	}

	if alert.Key != "" {
		a.lastSent[alert.Key] = now
	}
	a.sent = append(a.sent, now)
	return OutcomeSent
}

func (a *Alerter) record(alert Alert, outcome string, err error) {
	r := Record{Alert: alert, Outcome: outcome}
	if err != nil {
		r.Error = err.Error()
	}
	a.mu.Lock()
	a.history = append(a.history, r)
	if over := len(a.history) - a.opts.HistorySize; over > 0 {
		a.history = append([]Record(nil), a.history[over:]...)
	}
	a.mu.Unlock()
	metrics.RecordAlert(outcome)
}

// Send delivers alert to every notifier unless it is suppressed by the
// cooldown or the hourly cap. It reports whether delivery was attempted.
// Each notifier is retried with capped exponential backoff.
func (a *Alerter) Send(ctx context.Context, alert Alert) (bool, error) {
	if alert.Severity == "" {
		alert.Severity = SeverityError
	}
	now := a.now()
	if alert.Time.IsZero() {
		alert.Time = now
	}

	a.mu.Lock()
	outcome := a.admitLocked(alert, now)
	a.mu.Unlock()
	if outcome != OutcomeSent {
		a.log.Debug().Str("key", alert.Key).Str("outcome", outcome).Msg("alert suppressed")
		a.record(alert, outcome, nil)
		return false, nil
	}

	var errs []error
	for _, n := range a.notifiers {
		if err := a.deliver(ctx, n, alert); err != nil {
			a.log.Warn().Err(err).Str("notifier", n.Name()).Str("key", alert.Key).Msg("alert delivery failed")
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		a.record(alert, OutcomeFailed, err)
		return true, fmt.Errorf("alerting: %w", err)
	}
	a.record(alert, OutcomeSent, nil)
	return true, nil
}

func (a *Alerter) deliver(ctx context.Context, n Notifier, alert Alert) error {
	b := retry.NewExponential(a.opts.Backoff)
	b = retry.WithCappedDuration(deliveryMaxBackoff, b)
	b = retry.WithMaxRetries(deliveryRetries, b)
	return retry.Do(ctx, b, func(ctx context.Context) error {
		if err := n.Notify(ctx, alert); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

// History returns the most recent alert records, oldest first.
func (a *Alerter) History() []Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Record(nil), a.history...)
}
