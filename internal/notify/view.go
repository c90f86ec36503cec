// Package notify renders and delivers the audit summary and rotation reminders.
package notify

import (
	"fmt"
	"time"

	"github.com/locktivity/aws-key-audit/internal/audit"
	"github.com/locktivity/aws-key-audit/internal/collector"
	"github.com/locktivity/aws-key-audit/internal/recipients"
)

// SubjectDateLayout formats the date in mail subjects.
const SubjectDateLayout = "Jan 2, 2006"

// KeyRow is one key line in a rendered mail.
type KeyRow struct {
	Account  string
	Identity string
	KeyID    string
	AgeDays  int
}

// SummaryData is the view of one audit run for operators.
type SummaryData struct {
	Subject            string
	Date               string
	WarnDays           int
	ErrorDays          int
	ReminderPeriodDays int
	Accounts           int

	Inactive     []KeyRow
	ExpiringSoon []KeyRow
	Expired      []KeyRow

	// Problems lists accounts and identities that could not be audited.
	Problems []string
}

// Empty reports whether no bucket has a key.
func (d SummaryData) Empty() bool {
	return len(d.Inactive) == 0 && len(d.ExpiringSoon) == 0 && len(d.Expired) == 0
}

// NewSummaryData maps an audit output to the summary view.
func NewSummaryData(out *collector.Output, now time.Time) SummaryData {
	data := SummaryData{
		Subject:            fmt.Sprintf("Found AWS Keys That Require Action (%s)", now.Format(SubjectDateLayout)),
		Date:               now.Format(SubjectDateLayout),
		WarnDays:           out.Policy.WarnDays,
		ErrorDays:          out.Policy.ErrorDays,
		ReminderPeriodDays: out.Policy.ReminderPeriodDays,
		Accounts:           len(out.Accounts),
	}

	for _, acct := range out.Accounts {
		label := acct.Label()
		data.Inactive = appendRows(data.Inactive, label, acct.Keys.Inactive)
		data.ExpiringSoon = appendRows(data.ExpiringSoon, label, acct.Keys.ExpiringSoon)
		data.Expired = appendRows(data.Expired, label, acct.Keys.Expired)
		for _, identity := range acct.Skipped {
			data.Problems = append(data.Problems, fmt.Sprintf("%s: could not list keys for %s", label, identity))
		}
	}
	for _, failure := range out.Errors {
		target := failure.RoleARN
		if target == "" {
			target = "default account"
		}
		data.Problems = append(data.Problems, fmt.Sprintf("%s: %s", target, failure.Error))
	}
	return data
}

// ReminderData is the view of one rotation reminder.
type ReminderData struct {
	Subject            string
	To                 string
	Account            string
	Identity           string
	ErrorDays          int
	ReminderPeriodDays int
	Keys               []KeyRow
}

// NewReminderData maps a reminder and its addressing to the reminder view.
func NewReminderData(rem collector.Reminder, delivery recipients.Delivery, policy collector.Policy) ReminderData {
	return ReminderData{
		Subject:            fmt.Sprintf("Rotate AWS access keys for %s (%s)", rem.Identity, rem.AccountLabel),
		To:                 delivery.To(),
		Account:            rem.AccountLabel,
		Identity:           rem.Identity,
		ErrorDays:          policy.ErrorDays,
		ReminderPeriodDays: policy.ReminderPeriodDays,
		Keys:               appendRows(nil, rem.AccountLabel, rem.Keys),
	}
}

func appendRows(rows []KeyRow, account string, entries []audit.Entry) []KeyRow {
	for _, e := range entries {
		rows = append(rows, KeyRow{
			Account:  account,
			Identity: e.Identity,
			KeyID:    e.KeyID,
			AgeDays:  e.AgeDays,
		})
	}
	return rows
}
