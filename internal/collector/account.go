package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/locktivity/aws-key-audit/internal/audit"
	"github.com/locktivity/aws-key-audit/internal/logger"
)

// collectAccount audits the keys of a single AWS account.
func (c *Collector) collectAccount(ctx context.Context, acctConfig AccountConfig, now time.Time) (*AccountAudit, error) {
	// Create client for this account
	c.status("Connecting to AWS...")
	client, err := c.newClient(ctx, acctConfig)
	if err != nil {
		return nil, err
	}

	// Get account ID
	accountID, err := client.GetCallerIdentity(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting account ID: %w", err)
	}
	ctx = logger.With(ctx, logger.AccountIDKey, accountID)
	c.status(fmt.Sprintf("Connected to account %s", accountID))

	// Get account alias
	alias, err := client.GetAccountAlias(ctx)
	if err != nil {
		logger.Warn(ctx, "could not read account alias", "error", err)
	}

	keySource := c.config.KeySource
	if keySource == "" {
		keySource = KeySourceIAM
	}
	source, err := newKeySource(keySource, client)
	if err != nil {
		return nil, err
	}

	auditor, err := audit.NewAuditor(source, c.config.Thresholds, audit.WithConcurrency(c.config.Concurrency))
	if err != nil {
		return nil, err
	}

	c.status(fmt.Sprintf("Auditing access keys in account %s", accountID))
	report, err := auditor.Run(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", accountID, err)
	}

	if report.Empty() {
		logger.Info(ctx, "there are no keys that require action")
	}
	logger.Info(ctx, "account audit complete",
		"identities", report.Identities,
		"keys", report.Keys,
		"inactive", len(report.Inactive),
		"expiring_soon", len(report.ExpiringSoon),
		"expired", len(report.Expired),
		"reminders", len(report.Reminders),
		"skipped_identities", len(report.FetchErrors),
		"invalid_records", len(report.ValidationErrors),
	)

	acct := newAccountAudit(accountID, alias, keySource, report)
	return &acct, nil
}
