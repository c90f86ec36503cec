// Package config loads the process configuration once at startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/locktivity/aws-key-audit/internal/audit"
	"github.com/locktivity/aws-key-audit/internal/collector"
)

// Environment variable names
const (
	EnvWarnDays             = "DAYS_WARN"
	EnvErrorDays            = "DAYS_ERROR"
	EnvReminderPeriodDays   = "REMINDER_PERIOD_DAYS"
	EnvExpiryBoundary       = "EXPIRY_BOUNDARY"
	EnvConcurrency          = "AUDIT_CONCURRENCY"
	EnvKeySource            = "KEY_SOURCE"
	EnvRoleARNs             = "ROLE_ARNS"
	EnvExternalID           = "EXTERNAL_ID"
	EnvEmailFrom            = "EMAIL_FROM"
	EnvEmailReplyTo         = "EMAIL_REPLY_TO"
	EnvEmailTo              = "EMAIL_TO"
	EnvReminderCc           = "REMINDER_CC"
	EnvMailer               = "MAILER"
	EnvSMTPHost             = "SMTP_HOST"
	EnvSMTPPort             = "SMTP_PORT"
	EnvSMTPUsername         = "SMTP_USERNAME"
	EnvSMTPPasswordSecret   = "SMTP_PASSWORD_SECRET"
	EnvRecipientsTable      = "RECIPIENTS_TABLE"
	EnvRecipientsTableKey   = "RECIPIENTS_TABLE_KEY"
	EnvRecipientsFile       = "RECIPIENTS_FILE"
	EnvRecipientsExpression = "RECIPIENTS_EXPRESSION"
	EnvPushgatewayURL       = "PUSHGATEWAY_URL"
	EnvLogLevel             = "LOG_LEVEL"
	EnvDryRun               = "DRY_RUN"
)

// Mailer names.
const (
	MailerSES  = "ses"
	MailerSMTP = "smtp"
	MailerLog  = "log"
)

const (
	defaultSMTPPort          = 587
	defaultRecipientsKeyAttr = "Identity"
)

// Config is the immutable configuration of one process.
type Config struct {
	Thresholds  audit.Thresholds
	Concurrency int
	KeySource   string
	Accounts    []collector.AccountConfig

	Email EmailConfig
	SMTP  SMTPConfig

	RecipientsTable      string
	RecipientsTableKey   string
	RecipientsFile       string
	RecipientsExpression string

	PushgatewayURL string
	LogLevel       string
	DryRun         bool
}

// EmailConfig holds addressing for summary and reminder mails.
type EmailConfig struct {
	Mailer     string
	From       string
	ReplyTo    string
	SummaryTo  []string
	ReminderCc []string
}

// SMTPConfig holds SMTP delivery settings. The password is read from
// Secrets Manager at startup, never from the environment.
type SMTPConfig struct {
	Host           string
	Port           int
	Username       string
	PasswordSecret string
}

// LoadEnvFile seeds the environment from a dotenv file. Variables already
// set in the environment win.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// FromEnv builds a Config from the process environment.
func FromEnv() (*Config, error) {
	return Load(os.Getenv)
}

// Load builds and validates a Config using getenv for lookups.
func Load(getenv func(string) string) (*Config, error) {
	l := loader{getenv: getenv}

	cfg := &Config{
		Thresholds: audit.Thresholds{
			WarnDays:           l.requiredInt(EnvWarnDays),
			ErrorDays:          l.requiredInt(EnvErrorDays),
			ReminderPeriodDays: l.optionalInt(EnvReminderPeriodDays, audit.DefaultReminderPeriodDays),
		},
		Concurrency: l.optionalInt(EnvConcurrency, audit.DefaultConcurrency),
		KeySource:   l.optionalString(EnvKeySource, collector.KeySourceIAM),
		Email: EmailConfig{
			Mailer:     strings.ToLower(l.optionalString(EnvMailer, MailerSES)),
			From:       l.optionalString(EnvEmailFrom, ""),
			ReplyTo:    l.optionalString(EnvEmailReplyTo, ""),
			SummaryTo:  splitList(getenv(EnvEmailTo)),
			ReminderCc: splitList(getenv(EnvReminderCc)),
		},
		SMTP: SMTPConfig{
			Host:           l.optionalString(EnvSMTPHost, ""),
			Port:           l.optionalInt(EnvSMTPPort, defaultSMTPPort),
			Username:       l.optionalString(EnvSMTPUsername, ""),
			PasswordSecret: l.optionalString(EnvSMTPPasswordSecret, ""),
		},
		RecipientsTable:      l.optionalString(EnvRecipientsTable, ""),
		RecipientsTableKey:   l.optionalString(EnvRecipientsTableKey, defaultRecipientsKeyAttr),
		RecipientsFile:       l.optionalString(EnvRecipientsFile, ""),
		RecipientsExpression: l.optionalString(EnvRecipientsExpression, ""),
		PushgatewayURL:       l.optionalString(EnvPushgatewayURL, ""),
		LogLevel:             l.optionalString(EnvLogLevel, "info"),
		DryRun:               l.optionalBool(EnvDryRun),
	}

	boundary, err := audit.ParseBoundary(getenv(EnvExpiryBoundary))
	if err != nil {
		l.fail(fmt.Errorf("invalid %s: %w", EnvExpiryBoundary, err))
	}
	cfg.Thresholds.Boundary = boundary

	externalID := strings.TrimSpace(getenv(EnvExternalID))
	for _, roleARN := range splitList(getenv(EnvRoleARNs)) {
		cfg.Accounts = append(cfg.Accounts, collector.AccountConfig{RoleARN: roleARN, ExternalID: externalID})
	}

	if l.err != nil {
		return nil, l.err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if err := c.Thresholds.Validate(); err != nil {
		return fmt.Errorf("invalid thresholds: %w", err)
	}

	switch c.KeySource {
	case collector.KeySourceIAM, collector.KeySourceCredentialReport:
	default:
		return fmt.Errorf("invalid %s: %q", EnvKeySource, c.KeySource)
	}

	if c.RecipientsTable != "" && c.RecipientsFile != "" {
		return fmt.Errorf("set only one of %s and %s", EnvRecipientsTable, EnvRecipientsFile)
	}

	if c.DryRun {
		c.Email.Mailer = MailerLog
		return nil
	}

	switch c.Email.Mailer {
	case MailerSES, MailerLog:
	case MailerSMTP:
		if c.SMTP.Host == "" {
			return fmt.Errorf("missing required env var: %s", EnvSMTPHost)
		}
	default:
		return fmt.Errorf("invalid %s: %q", EnvMailer, c.Email.Mailer)
	}

	if c.Email.Mailer != MailerLog {
		if c.Email.From == "" {
			return fmt.Errorf("missing required env var: %s", EnvEmailFrom)
		}
		if len(c.Email.SummaryTo) == 0 {
			return fmt.Errorf("missing required env var: %s", EnvEmailTo)
		}
	}
	return nil
}

// loader keeps the first lookup error so Load reads top to bottom.
type loader struct {
	getenv func(string) string
	err    error
}

func (l *loader) fail(err error) {
	if l.err == nil {
		l.err = err
	}
}

func (l *loader) requiredInt(name string) int {
	raw := strings.TrimSpace(l.getenv(name))
	if raw == "" {
		l.fail(fmt.Errorf("missing required env var: %s", name))
		return 0
	}
	return l.parseInt(name, raw)
}

func (l *loader) optionalInt(name string, def int) int {
	raw := strings.TrimSpace(l.getenv(name))
	if raw == "" {
		return def
	}
	return l.parseInt(name, raw)
}

func (l *loader) parseInt(name, raw string) int {
	v, err := strconv.Atoi(raw)
	if err != nil {
		l.fail(fmt.Errorf("invalid %s: %w", name, err))
		return 0
	}
	return v
}

func (l *loader) optionalString(name, def string) string {
	if v := strings.TrimSpace(l.getenv(name)); v != "" {
		return v
	}
	return def
}

func (l *loader) optionalBool(name string) bool {
	raw := strings.TrimSpace(l.getenv(name))
	if raw == "" {
		return false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		l.fail(fmt.Errorf("invalid %s: %w", name, err))
	}
	return v
}

// splitList splits a comma separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
