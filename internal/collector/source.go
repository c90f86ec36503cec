package collector

import (
	"context"
	"fmt"

	"github.com/locktivity/aws-key-audit/internal/audit"
	"github.com/locktivity/aws-key-audit/internal/aws"
)

// IAMSource lists keys with the IAM ListUsers and ListAccessKeys APIs.
type IAMSource struct {
	client aws.Client
}

// NewIAMSource creates an IAMSource over client.
func NewIAMSource(client aws.Client) *IAMSource {
	return &IAMSource{client: client}
}

// ListIdentities returns every IAM user name.
func (s *IAMSource) ListIdentities(ctx context.Context) ([]string, error) {
	return s.client.ListUsers(ctx)
}

// ListKeys returns the access keys of one IAM user.
func (s *IAMSource) ListKeys(ctx context.Context, identity string) ([]audit.KeyRecord, error) {
	keys, err := s.client.ListAccessKeys(ctx, identity)
	if err != nil {
		return nil, err
	}

	records := make([]audit.KeyRecord, 0, len(keys))
	for _, k := range keys {
		record := audit.KeyRecord{
			Identity: identity,
			KeyID:    k.AccessKeyID,
			Status:   audit.Status(k.Status),
		}
		if k.CreateDate != nil {
			record.CreatedAt = *k.CreateDate
		}
		records = append(records, record)
	}
	return records, nil
}

// ReportSource lists keys from the IAM credential report. The report carries
// no key ids, so records are identified by slot name and dated by the slot's
// last rotation. ListIdentities fetches the report and must be called first.
type ReportSource struct {
	client aws.Client
	users  map[string]aws.CredentialReportUser
}

// NewReportSource creates a ReportSource over client.
func NewReportSource(client aws.Client) *ReportSource {
	return &ReportSource{client: client}
}

// ListIdentities fetches the credential report and returns every non-root user.
func (s *ReportSource) ListIdentities(ctx context.Context) ([]string, error) {
	report, err := s.client.GetCredentialReport(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting credential report: %w", err)
	}

	s.users = make(map[string]aws.CredentialReportUser, len(report.Users))
	identities := make([]string, 0, len(report.Users))
	for _, user := range report.Users {
		if user.IsRootUser() {
			continue
		}
		s.users[user.User] = user
		identities = append(identities, user.User)
	}
	return identities, nil
}

// ListKeys returns the key slots in use for identity.
func (s *ReportSource) ListKeys(_ context.Context, identity string) ([]audit.KeyRecord, error) {
	user, ok := s.users[identity]
	if !ok {
		return nil, fmt.Errorf("user %s not in credential report", identity)
	}

	var records []audit.KeyRecord
	for _, key := range user.Keys() {
		records = append(records, reportKeyRecord(identity, key))
	}
	return records, nil
}

// reportKeyRecord converts a report slot. A malformed or missing rotation
// timestamp leaves CreatedAt zero so the classifier rejects the record.
func reportKeyRecord(identity string, key aws.ReportKey) audit.KeyRecord {
	record := audit.KeyRecord{
		Identity: identity,
		KeyID:    key.Slot,
		Status:   audit.StatusInactive,
	}
	if key.Active {
		record.Status = audit.StatusActive
	}
	if key.LastRotated != nil {
		record.CreatedAt = *key.LastRotated
	}
	return record
}

// newKeySource selects the key source implementation by name.
func newKeySource(name string, client aws.Client) (audit.KeySource, error) {
	switch name {
	case "", KeySourceIAM:
		return NewIAMSource(client), nil
	case KeySourceCredentialReport:
		return NewReportSource(client), nil
	default:
		return nil, fmt.Errorf("unknown key source %q", name)
	}
}
