// Package runner performs one audit run end to end.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/locktivity/aws-key-audit/internal/collector"
	"github.com/locktivity/aws-key-audit/internal/logger"
	"github.com/locktivity/aws-key-audit/internal/metrics"
	"github.com/locktivity/aws-key-audit/internal/notify"
	"github.com/locktivity/aws-key-audit/internal/recipients"
)

// MetricsJob is the Pushgateway job name of a run.
const MetricsJob = "aws_key_audit"

// Auditor audits every configured account.
type Auditor interface {
	Collect(ctx context.Context) (*collector.Output, error)
}

// Dispatcher mails the outcome of an audit.
type Dispatcher interface {
	Dispatch(ctx context.Context, out *collector.Output, dir recipients.Directory) (*notify.DispatchResult, error)
}

// Runner performs audit runs.
type Runner struct {
	auditor    Auditor
	dispatcher Dispatcher
	directory  recipients.Directory
	metrics    *metrics.Metrics
	pushURL    string
	now        func() time.Time
	newRunID   func() string
}

// Option configures a Runner.
type Option func(*Runner)

// WithDirectory sets the reminder recipient directory. Without one every
// reminder is skipped.
func WithDirectory(dir recipients.Directory) Option {
	return func(r *Runner) {
		r.directory = dir
	}
}

// WithMetrics records run metrics and pushes them to pushURL when set.
func WithMetrics(m *metrics.Metrics, pushURL string) Option {
	return func(r *Runner) {
		r.metrics = m
		r.pushURL = pushURL
	}
}

// New creates a Runner.
func New(auditor Auditor, dispatcher Dispatcher, opts ...Option) *Runner {
	r := &Runner{
		auditor:    auditor,
		dispatcher: dispatcher,
		now:        time.Now,
		newRunID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Summary describes a finished run.
type Summary struct {
	RunID    string
	Output   *collector.Output
	Dispatch *notify.DispatchResult
	Duration time.Duration
}

// Run audits, then mails. A run whose accounts all fail to audit sends
// nothing. Mail failures are returned after every mail was attempted.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{RunID: r.newRunID()}
	ctx = logger.With(ctx, logger.RunIDKey, summary.RunID)
	start := r.now()
	logger.Info(ctx, "audit run started")

	err := r.run(ctx, summary)

	finished := r.now()
	summary.Duration = finished.Sub(start)
	r.metrics.ObserveRun(summary.Duration, finished, err)
	if pushErr := r.metrics.Push(ctx, r.pushURL, MetricsJob); pushErr != nil {
		logger.Warn(ctx, "failed to push metrics", "error", pushErr)
	}

	if err != nil {
		logger.Error(ctx, "audit run failed", "duration_ms", summary.Duration.Milliseconds(), "error", err)
		return summary, err
	}
	logger.Info(ctx, "audit run finished", "duration_ms", summary.Duration.Milliseconds())
	return summary, nil
}

func (r *Runner) run(ctx context.Context, summary *Summary) error {
	out, err := r.auditor.Collect(ctx)
	summary.Output = out
	r.metrics.ObserveOutput(out)
	if err != nil {
		return fmt.Errorf("audit: %w", err)
	}

	res, err := r.dispatcher.Dispatch(ctx, out, r.directory)
	summary.Dispatch = res
	r.metrics.ObserveDispatch(res)
	if err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}
