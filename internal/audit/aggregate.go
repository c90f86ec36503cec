package audit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/locktivity/aws-key-audit/internal/logger"
)

// DefaultConcurrency bounds how many identities are audited at once.
const DefaultConcurrency = 8

// KeySource lists identities and their access keys.
type KeySource interface {
	ListIdentities(ctx context.Context) ([]string, error)
	ListKeys(ctx context.Context, identity string) ([]KeyRecord, error)
}

// Option configures an Auditor or a RunAudit call.
type Option func(*options)

type options struct {
	concurrency int
}

// WithConcurrency limits the number of identities audited in parallel.
// Values below one select DefaultConcurrency.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

func buildOptions(opts []Option) options {
	o := options{concurrency: DefaultConcurrency}
	for _, opt := range opts {
		opt(&o)
	}
	if o.concurrency < 1 {
		o.concurrency = DefaultConcurrency
	}
	return o
}

// Auditor audits every identity of a KeySource.
type Auditor struct {
	source     KeySource
	thresholds Thresholds
	opts       []Option
}

// NewAuditor creates an Auditor after validating the thresholds.
func NewAuditor(source KeySource, thresholds Thresholds, opts ...Option) (*Auditor, error) {
	if source == nil {
		return nil, fmt.Errorf("key source is required")
	}
	if err := thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid thresholds: %w", err)
	}
	return &Auditor{source: source, thresholds: thresholds, opts: opts}, nil
}

// Run enumerates identities and audits them as of now. Only a failure to
// enumerate identities is returned as an error; it wraps ErrDirectory.
func (a *Auditor) Run(ctx context.Context, now time.Time) (*Report, error) {
	identities, err := a.source.ListIdentities(ctx)
	if err != nil {
		return nil, &DirectoryError{Err: err}
	}
	logger.Info(ctx, "auditing access keys", "identities", len(identities))
	return RunAudit(ctx, a.source, identities, now, a.thresholds, a.opts...), nil
}

// RunAudit classifies the keys of every identity concurrently and merges the
// per-identity results in the order identities were given. A failure to list
// one identity's keys is recorded in the report and never stops the run.
func RunAudit(ctx context.Context, source KeySource, identities []string, now time.Time, t Thresholds, opts ...Option) *Report {
	o := buildOptions(opts)

	// Each task owns exactly one slot; Wait is the only synchronisation needed.
	partials := make([]IdentityResult, len(identities))
	fetchErrs := make([]*FetchError, len(identities))

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, identity := range identities {
		g.Go(func() error {
			records, err := source.ListKeys(ctx, identity)
			if err != nil {
				fetchErrs[i] = &FetchError{Identity: identity, Err: err}
				logger.Error(logger.With(ctx, logger.IdentityKey, identity), "skipping identity", "error", err)
				return nil
			}
			partials[i] = ClassifyIdentity(ctx, identity, records, now, t)
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{Identities: len(identities)}
	seen := make(map[string]bool)
	for i := range identities {
		if fetchErrs[i] != nil {
			report.FetchErrors = append(report.FetchErrors, fetchErrs[i])
			continue
		}
		part := partials[i]
		report.Result.merge(part.Result)
		report.Keys += part.Keys
		report.Healthy += part.Healthy
		report.ValidationErrors = append(report.ValidationErrors, part.ValidationErrors...)
		if part.ReminderDue && !seen[part.Identity] {
			seen[part.Identity] = true
			report.Reminders = append(report.Reminders, part.Identity)
		}
	}

	return report
}
