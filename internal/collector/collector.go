// Package collector audits the IAM access keys of one or more AWS accounts.
package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/locktivity/aws-key-audit/internal/audit"
	"github.com/locktivity/aws-key-audit/internal/aws"
	"github.com/locktivity/aws-key-audit/internal/logger"
)

// ErrAllAccountsFailed is returned when no account could be audited.
var ErrAllAccountsFailed = errors.New("no account could be audited")

// clientFactory creates an AWS client for an account.
type clientFactory func(ctx context.Context, acct AccountConfig) (aws.Client, error)

// Collector audits AWS access keys.
type Collector struct {
	config    Config
	newClient clientFactory
	now       func() time.Time
}

// status reports an indeterminate status update.
func (c *Collector) status(message string) {
	if c.config.OnStatus != nil {
		c.config.OnStatus(message)
	}
}

// progress reports a determinate progress update.
func (c *Collector) progress(current, total int64, message string) {
	if c.config.OnProgress != nil {
		c.config.OnProgress(current, total, message)
	}
}

// New creates a new Collector with the given configuration.
func New(config Config) (*Collector, error) {
	if err := config.Thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid thresholds: %w", err)
	}
	if _, err := newKeySource(config.KeySource, nil); err != nil {
		return nil, err
	}
	return &Collector{config: config, newClient: createClient, now: time.Now}, nil
}

// Collect audits every configured account. An account whose identities cannot
// be enumerated is recorded in Output.Errors; Collect fails only when every
// account fails.
func (c *Collector) Collect(ctx context.Context) (*Output, error) {
	now := c.now()
	output := NewOutput(now, c.config.Thresholds)

	// Determine which accounts to collect from
	accounts := c.config.Accounts
	if len(accounts) == 0 {
		// Use default credentials for current account
		accounts = []AccountConfig{{}}
	}

	total := int64(len(accounts))
	c.status("Starting AWS access key audit")

	var errs []error
	for i, acct := range accounts {
		c.progress(int64(i+1), total, fmt.Sprintf("Auditing account %d of %d", i+1, len(accounts)))

		result, err := c.collectAccount(ctx, acct, now)
		if err != nil {
			// Log error but continue with other accounts
			logger.Error(ctx, "account audit failed", "role_arn", acct.RoleARN, "error", err)
			output.Errors = append(output.Errors, AccountFailure{RoleARN: acct.RoleARN, Error: err.Error()})
			errs = append(errs, err)
			continue
		}
		output.Accounts = append(output.Accounts, *result)
	}

	if len(output.Accounts) == 0 {
		return output, fmt.Errorf("%w: %w", ErrAllAccountsFailed, errors.Join(errs...))
	}

	c.status("Audit complete")
	return output, nil
}

// createClient creates an AWS client for the given account configuration.
func createClient(ctx context.Context, acctConfig AccountConfig) (aws.Client, error) {
	if acctConfig.RoleARN != "" {
		client, err := aws.NewClientWithRole(ctx, acctConfig.RoleARN, acctConfig.ExternalID)
		if err != nil {
			return nil, fmt.Errorf("creating AWS client with role: %w", err)
		}
		return client, nil
	}

	client, err := aws.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating AWS client: %w", err)
	}
	return client, nil
}

// Reminder is an identity owed a rotation reminder in a specific account.
type Reminder struct {
	AccountID    string
	AccountLabel string
	Identity     string
	Keys         []audit.Entry
}

// Reminders lists every identity owed a reminder, with its expired keys.
func (o *Output) Reminders() []Reminder {
	var reminders []Reminder
	for _, acct := range o.Accounts {
		expired := make(map[string][]audit.Entry)
		for _, e := range acct.Keys.Expired {
			expired[e.Identity] = append(expired[e.Identity], e)
		}
		for _, identity := range acct.Reminders {
			reminders = append(reminders, Reminder{
				AccountID:    acct.AccountID,
				AccountLabel: acct.Label(),
				Identity:     identity,
				Keys:         expired[identity],
			})
		}
	}
	return reminders
}

// Empty reports whether no account has a key in any bucket.
func (o *Output) Empty() bool {
	for _, acct := range o.Accounts {
		if !acct.Keys.Empty() {
			return false
		}
	}
	return true
}
