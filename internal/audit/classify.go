package audit

import (
	"context"
	"time"

	"github.com/locktivity/aws-key-audit/internal/logger"
)

const day = 24 * time.Hour

// AgeDays returns the number of whole days between created and now.
// Partial days are truncated, so a key created 23 hours ago is age 0.
func AgeDays(now, created time.Time) int {
	return int(now.Sub(created) / day)
}

// ReminderDue reports whether an active key of the given age is owed a reminder.
// Reminders fire on the first expired day and every ReminderPeriodDays after it.
func ReminderDue(ageDays int, t Thresholds) bool {
	first := t.FirstExpiredDay()
	if ageDays < first || t.ReminderPeriodDays <= 0 {
		return false
	}
	return (ageDays-first)%t.ReminderPeriodDays == 0
}

// Classify assigns a bucket to record as of now.
func Classify(record KeyRecord, now time.Time, t Thresholds) (Classification, error) {
	if err := validateRecord(record, now); err != nil {
		return Classification{}, err
	}

	c := Classification{Record: record, AgeDays: AgeDays(now, record.CreatedAt)}

	if record.Status == StatusInactive {
		c.Bucket = BucketInactive
		return c, nil
	}

	switch first := t.FirstExpiredDay(); {
	case c.AgeDays >= first:
		c.Bucket = BucketExpired
		c.ReminderDue = ReminderDue(c.AgeDays, t)
	case c.AgeDays > t.WarnDays:
		c.Bucket = BucketExpiringSoon
	}
	return c, nil
}

func validateRecord(record KeyRecord, now time.Time) error {
	invalid := func(reason string) error {
		return &ValidationError{Identity: record.Identity, KeyID: record.KeyID, Reason: reason}
	}

	switch {
	case record.Identity == "":
		return invalid("missing identity")
	case record.KeyID == "":
		return invalid("missing key id")
	case record.Status != StatusActive && record.Status != StatusInactive:
		return invalid("unknown status " + string(record.Status))
	case record.CreatedAt.IsZero():
		return invalid("missing or malformed creation timestamp")
	case record.CreatedAt.After(now):
		return invalid("creation timestamp is in the future")
	}
	return nil
}

// ClassifyIdentity classifies every key of one identity. Invalid records are
// logged and excluded; they never abort the rest of the identity.
func ClassifyIdentity(ctx context.Context, identity string, records []KeyRecord, now time.Time, t Thresholds) IdentityResult {
	ctx = logger.With(ctx, logger.IdentityKey, identity)
	result := IdentityResult{Identity: identity}

	for _, record := range records {
		if record.Identity == "" {
			record.Identity = identity
		}

		c, err := Classify(record, now, t)
		if err != nil {
			logger.Warn(ctx, "skipping key record", "key_id", record.KeyID, "error", err)
			if verr, ok := err.(*ValidationError); ok {
				result.ValidationErrors = append(result.ValidationErrors, verr)
			}
			continue
		}

		result.Keys++
		switch c.Bucket {
		case BucketInactive:
			logger.Info(ctx, "found inactive key", "key_id", record.KeyID, "age_days", c.AgeDays)
		case BucketExpiringSoon:
			logger.Info(ctx, "found key that will expire soon", "key_id", record.KeyID, "age_days", c.AgeDays)
		case BucketExpired:
			logger.Info(ctx, "found expired key", "key_id", record.KeyID, "age_days", c.AgeDays, "reminder_due", c.ReminderDue)
		default:
			result.Healthy++
		}

		result.Result.add(c)
		if c.ReminderDue {
			result.ReminderDue = true
		}
	}

	return result
}
