package main

import (
	"fmt"
	"math"

	"github.com/locktivity/aws-key-audit/internal/audit"
	"github.com/locktivity/aws-key-audit/internal/collector"
)

// buildConfig maps the runner-supplied config to a collector config.
func buildConfig(cfg map[string]any) (collector.Config, error) {
	boundary, err := audit.ParseBoundary(getString(cfg, "expiry_boundary"))
	if err != nil {
		return collector.Config{}, err
	}

	config := collector.Config{
		KeySource: getString(cfg, "key_source"),
		Thresholds: audit.Thresholds{
			Boundary: boundary,
		},
	}
	if config.KeySource == "" {
		config.KeySource = collector.KeySourceIAM
	}

	ints := []struct {
		key  string
		dest *int
		def  int
	}{
		{"warn_days", &config.Thresholds.WarnDays, collector.DefaultWarnDays},
		{"error_days", &config.Thresholds.ErrorDays, collector.DefaultErrorDays},
		{"reminder_period_days", &config.Thresholds.ReminderPeriodDays, audit.DefaultReminderPeriodDays},
		{"concurrency", &config.Concurrency, audit.DefaultConcurrency},
	}
	for _, f := range ints {
		v, err := getInt(cfg, f.key, f.def)
		if err != nil {
			return collector.Config{}, err
		}
		*f.dest = v
	}

	// Parse account configuration - supports three modes:
	// 1. accounts array (multi-account)
	// 2. role_arn (single account with assume role)
	// 3. neither (use default credential chain)
	if accounts, ok := cfg["accounts"].([]any); ok && len(accounts) > 0 {
		for _, acct := range accounts {
			if acctMap, ok := acct.(map[string]any); ok {
				config.Accounts = append(config.Accounts, collector.AccountConfig{
					RoleARN:    getString(acctMap, "role_arn"),
					ExternalID: getString(acctMap, "external_id"),
				})
			}
		}
	} else if roleARN := getString(cfg, "role_arn"); roleARN != "" {
		config.Accounts = []collector.AccountConfig{{
			RoleARN:    roleARN,
			ExternalID: getString(cfg, "external_id"),
		}}
	}

	return config, nil
}

// getString safely extracts a string from config map
func getString(cfg map[string]any, key string) string {
	if cfg == nil {
		return ""
	}
	if v, ok := cfg[key].(string); ok {
		return v
	}
	return ""
}

// getInt extracts a whole number from config map. JSON numbers arrive as float64.
func getInt(cfg map[string]any, key string, def int) (int, error) {
	raw, ok := cfg[key]
	if !ok || raw == nil {
		return def, nil
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%s must be a whole number, got %v", key, v)
		}
		return int(v), nil
	default:
		return 0, fmt.Errorf("%s must be a number, got %T", key, raw)
	}
}
