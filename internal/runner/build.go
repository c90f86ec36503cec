package runner

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/locktivity/aws-key-audit/internal/collector"
	"github.com/locktivity/aws-key-audit/internal/config"
	"github.com/locktivity/aws-key-audit/internal/logger"
	"github.com/locktivity/aws-key-audit/internal/metrics"
	"github.com/locktivity/aws-key-audit/internal/notify"
	"github.com/locktivity/aws-key-audit/internal/recipients"
)

// FromConfig wires a Runner from the process configuration. awsCfg is used
// for the recipient table, SES and Secrets Manager; account audits create
// their own clients.
func FromConfig(ctx context.Context, cfg *config.Config, awsCfg aws.Config) (*Runner, error) {
	coll, err := collector.New(collector.Config{
		Accounts:    cfg.Accounts,
		Thresholds:  cfg.Thresholds,
		KeySource:   cfg.KeySource,
		Concurrency: cfg.Concurrency,
		OnStatus: func(message string) {
			logger.Info(ctx, message)
		},
		OnProgress: func(current, total int64, message string) {
			logger.Debug(ctx, message, "current", current, "total", total)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create collector: %w", err)
	}

	dir, err := newDirectory(cfg, awsCfg)
	if err != nil {
		return nil, err
	}

	mailer, err := newMailer(ctx, cfg, awsCfg, secretsmanager.NewFromConfig(awsCfg))
	if err != nil {
		return nil, err
	}

	notifier, err := notify.NewNotifier(mailer, notify.Addressing{
		From:       cfg.Email.From,
		ReplyTo:    cfg.Email.ReplyTo,
		SummaryTo:  cfg.Email.SummaryTo,
		ReminderCc: cfg.Email.ReminderCc,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create notifier: %w", err)
	}

	opts := []Option{WithMetrics(metrics.New(), cfg.PushgatewayURL)}
	if dir != nil {
		opts = append(opts, WithDirectory(dir))
	}
	return New(coll, notifier, opts...), nil
}

// newDirectory returns the configured recipient directory, or nil when
// none is configured.
func newDirectory(cfg *config.Config, awsCfg aws.Config) (recipients.Directory, error) {
	switch {
	case cfg.RecipientsTable != "":
		return recipients.NewDynamoDirectory(awsCfg, cfg.RecipientsTable, cfg.RecipientsTableKey), nil
	case cfg.RecipientsFile != "":
		dir, err := recipients.NewFileDirectory(cfg.RecipientsFile, cfg.RecipientsExpression)
		if err != nil {
			return nil, fmt.Errorf("failed to load recipient directory: %w", err)
		}
		return dir, nil
	default:
		return nil, nil
	}
}

func newMailer(ctx context.Context, cfg *config.Config, awsCfg aws.Config, secrets notify.SecretsAPI) (notify.Mailer, error) {
	switch cfg.Email.Mailer {
	case config.MailerLog:
		return notify.LogMailer{}, nil
	case config.MailerSES:
		return notify.NewSESMailer(awsCfg), nil
	case config.MailerSMTP:
		smtpCfg := notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
		}
		if cfg.SMTP.PasswordSecret != "" {
			password, err := notify.GetSecret(ctx, secrets, cfg.SMTP.PasswordSecret)
			if err != nil {
				return nil, fmt.Errorf("failed to load SMTP password: %w", err)
			}
			smtpCfg.Password = password
		}
		return notify.NewSMTPMailer(smtpCfg), nil
	default:
		return nil, fmt.Errorf("unknown mailer %q", cfg.Email.Mailer)
	}
}
