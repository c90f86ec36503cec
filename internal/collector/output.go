package collector

import (
	"time"

	"github.com/locktivity/aws-key-audit/internal/audit"
)

// StatusFunc is called to report indeterminate status updates.
type StatusFunc func(message string)

// ProgressFunc is called to report determinate progress (current/total).
type ProgressFunc func(current, total int64, message string)

// Config holds the collector configuration.
type Config struct {
	Accounts    []AccountConfig  `json:"accounts"`   // Accounts to audit (empty = default credentials)
	Thresholds  audit.Thresholds `json:"-"`          // Age policy applied to every key
	KeySource   string           `json:"key_source"` // KeySourceIAM or KeySourceCredentialReport
	Concurrency int              `json:"concurrency"`

	// Progress callbacks (optional, set by main to report status)
	OnStatus   StatusFunc   `json:"-"`
	OnProgress ProgressFunc `json:"-"`
}

// AccountConfig holds configuration for a single AWS account.
type AccountConfig struct {
	RoleARN    string `json:"role_arn"`    // IAM role to assume
	ExternalID string `json:"external_id"` // External ID for assume role (optional)
}

// Output represents the complete collector output.
type Output struct {
	SchemaVersion string           `json:"schema_version"`
	CollectedAt   string           `json:"collected_at"`
	Policy        Policy           `json:"policy"`
	Accounts      []AccountAudit   `json:"accounts"`
	Errors        []AccountFailure `json:"errors,omitempty"`
}

// Policy echoes the thresholds the keys were classified against.
type Policy struct {
	WarnDays           int    `json:"warn_days"`
	ErrorDays          int    `json:"error_days"`
	ReminderPeriodDays int    `json:"reminder_period_days"`
	Boundary           string `json:"boundary"`
}

// AccountAudit is the key audit of a single AWS account.
type AccountAudit struct {
	AccountID    string       `json:"account_id"`
	AccountAlias *string      `json:"account_alias,omitempty"`
	KeySource    string       `json:"key_source"`
	Keys         audit.Result `json:"keys"`
	Reminders    []string     `json:"reminders"`
	Skipped      []string     `json:"skipped_identities,omitempty"`
	Stats        KeyStats     `json:"stats"`

	// Report is the full audit report, including typed errors.
	Report *audit.Report `json:"-"`
}

// Label returns the alias when set, otherwise the account ID.
func (a AccountAudit) Label() string {
	if a.AccountAlias != nil && *a.AccountAlias != "" {
		return *a.AccountAlias
	}
	return a.AccountID
}

// KeyStats summarises one account's keys (counts and percentages 0-100).
type KeyStats struct {
	Identities       int `json:"identities"`
	Keys             int `json:"keys"`
	Healthy          int `json:"healthy"`
	Inactive         int `json:"inactive"`
	ExpiringSoon     int `json:"expiring_soon"`
	Expired          int `json:"expired"`
	InvalidRecords   int `json:"invalid_records"`
	FailedIdentities int `json:"failed_identities"`
	HealthyPercent   int `json:"healthy_percent"`
	ExpiredPercent   int `json:"expired_percent"`
}

// AccountFailure records an account whose identities could not be enumerated.
type AccountFailure struct {
	RoleARN string `json:"role_arn,omitempty"`
	Error   string `json:"error"`
}

// NewOutput creates an Output with defaults.
func NewOutput(collectedAt time.Time, t audit.Thresholds) *Output {
	return &Output{
		SchemaVersion: SchemaVersion,
		CollectedAt:   collectedAt.UTC().Format(time.RFC3339),
		Policy: Policy{
			WarnDays:           t.WarnDays,
			ErrorDays:          t.ErrorDays,
			ReminderPeriodDays: t.ReminderPeriodDays,
			Boundary:           string(t.Boundary),
		},
		Accounts: []AccountAudit{},
	}
}

// newAccountAudit builds the account view of an audit report.
func newAccountAudit(accountID string, alias *string, keySource string, report *audit.Report) AccountAudit {
	acct := AccountAudit{
		AccountID:    accountID,
		AccountAlias: alias,
		KeySource:    keySource,
		Keys:         report.Result,
		Reminders:    report.Reminders,
		Stats:        newKeyStats(report),
		Report:       report,
	}
	if acct.Reminders == nil {
		acct.Reminders = []string{}
	}
	for _, fetchErr := range report.FetchErrors {
		acct.Skipped = append(acct.Skipped, fetchErr.Identity)
	}
	return acct
}

func newKeyStats(report *audit.Report) KeyStats {
	return KeyStats{
		Identities:       report.Identities,
		Keys:             report.Keys,
		Healthy:          report.Healthy,
		Inactive:         len(report.Inactive),
		ExpiringSoon:     len(report.ExpiringSoon),
		Expired:          len(report.Expired),
		InvalidRecords:   len(report.ValidationErrors),
		FailedIdentities: len(report.FetchErrors),
		HealthyPercent:   percent(report.Healthy, report.Keys),
		ExpiredPercent:   percent(len(report.Expired), report.Keys),
	}
}

// percent returns part as a whole-number share of total, rounded down. An
// empty total yields 0.
func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return part * MaxPercentage / total
}
