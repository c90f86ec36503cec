// Package metrics records the outcome of an audit run for Prometheus.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/locktivity/aws-key-audit/internal/audit"
	"github.com/locktivity/aws-key-audit/internal/collector"
	"github.com/locktivity/aws-key-audit/internal/notify"
)

// Reminder outcomes.
const (
	ReminderSent    = "sent"
	ReminderSkipped = "skipped"
	ReminderFailed  = "failed"
)

// Error kinds.
const (
	ErrorKindValidation = "validation"
	ErrorKindFetch      = "fetch"
	ErrorKindAccount    = "account"
)

// Metrics holds the metrics of one audit run. It owns its registry so a
// run can be pushed as a batch job.
type Metrics struct {
	registry *prometheus.Registry

	// Keys by account and bucket, including healthy
	Keys *prometheus.GaugeVec

	// Reminder mails by outcome
	Reminders *prometheus.CounterVec

	// Skipped records, identities and accounts
	Errors *prometheus.CounterVec

	SummarySent prometheus.Gauge

	RunDuration prometheus.Histogram

	LastSuccess prometheus.Gauge
}

// New creates a new Metrics instance with all run metrics registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Keys: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "keyaudit_keys",
			Help: "Access keys found in the last run by account and bucket",
		}, []string{"account", "bucket"}), // bucket: "healthy", "inactive", "expiring_soon", "expired"

		Reminders: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "keyaudit_reminders_total",
			Help: "Rotation reminders by outcome",
		}, []string{"outcome"}),

		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "keyaudit_errors_total",
			Help: "Records, identities and accounts skipped by kind",
		}, []string{"kind"}),

		SummarySent: factory.NewGauge(prometheus.GaugeOpts{
			Name: "keyaudit_summary_sent",
			Help: "1 when the last run sent a summary mail",
		}),

		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "keyaudit_run_duration_seconds",
			Help:    "Duration of a full audit run including mail delivery",
			Buckets: []float64{1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}),

		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: "keyaudit_last_success_timestamp_seconds",
			Help: "Unix time of the last run that completed without error",
		}),
	}
}

// Registry returns the registry holding the run metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveOutput records bucket sizes and skipped work of an audit.
func (m *Metrics) ObserveOutput(out *collector.Output) {
	if m == nil || out == nil {
		return
	}
	for _, acct := range out.Accounts {
		label := acct.Label()
		m.Keys.WithLabelValues(label, audit.BucketNone.String()).Set(float64(acct.Stats.Healthy))
		m.Keys.WithLabelValues(label, audit.BucketInactive.String()).Set(float64(len(acct.Keys.Inactive)))
		m.Keys.WithLabelValues(label, audit.BucketExpiringSoon.String()).Set(float64(len(acct.Keys.ExpiringSoon)))
		m.Keys.WithLabelValues(label, audit.BucketExpired.String()).Set(float64(len(acct.Keys.Expired)))
		m.Errors.WithLabelValues(ErrorKindValidation).Add(float64(acct.Stats.InvalidRecords))
		m.Errors.WithLabelValues(ErrorKindFetch).Add(float64(acct.Stats.FailedIdentities))
	}
	m.Errors.WithLabelValues(ErrorKindAccount).Add(float64(len(out.Errors)))
}

// ObserveDispatch records the mails of a dispatch.
func (m *Metrics) ObserveDispatch(res *notify.DispatchResult) {
	if m == nil || res == nil {
		return
	}
	if res.SummarySent {
		m.SummarySent.Set(1)
	} else {
		m.SummarySent.Set(0)
	}
	m.Reminders.WithLabelValues(ReminderSent).Add(float64(res.RemindersSent))
	m.Reminders.WithLabelValues(ReminderSkipped).Add(float64(res.RemindersSkipped))
	m.Reminders.WithLabelValues(ReminderFailed).Add(float64(res.RemindersFailed))
}

// ObserveRun records the run duration and, on success, its completion time.
func (m *Metrics) ObserveRun(d time.Duration, finished time.Time, err error) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(d.Seconds())
	if err == nil {
		m.LastSuccess.Set(float64(finished.Unix()))
	}
}

// Push sends the run metrics to a Prometheus Pushgateway.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if m == nil || url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", url, err)
	}
	return nil
}
