package aws

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

type mockIAM struct {
	users       [][]string
	keys        map[string][]iamtypes.AccessKeyMetadata
	keysErr     error
	aliases     []string
	report      []byte
	reportErrs  []error
	generated   int
	reportCalls int
}

func (m *mockIAM) ListUsers(ctx context.Context, params *iam.ListUsersInput, optFns ...func(*iam.Options)) (*iam.ListUsersOutput, error) {
	page := 0
	if params.Marker != nil {
		page = int((*params.Marker)[0] - '0')
	}
	out := &iam.ListUsersOutput{}
	for _, name := range m.users[page] {
		out.Users = append(out.Users, iamtypes.User{UserName: aws.String(name)})
	}
	if page+1 < len(m.users) {
		out.IsTruncated = true
		out.Marker = aws.String(string(rune('0' + page + 1)))
	}
	return out, nil
}

func (m *mockIAM) ListAccessKeys(ctx context.Context, params *iam.ListAccessKeysInput, optFns ...func(*iam.Options)) (*iam.ListAccessKeysOutput, error) {
	if m.keysErr != nil {
		return nil, m.keysErr
	}
	return &iam.ListAccessKeysOutput{AccessKeyMetadata: m.keys[aws.ToString(params.UserName)]}, nil
}

func (m *mockIAM) ListAccountAliases(ctx context.Context, params *iam.ListAccountAliasesInput, optFns ...func(*iam.Options)) (*iam.ListAccountAliasesOutput, error) {
	return &iam.ListAccountAliasesOutput{AccountAliases: m.aliases}, nil
}

func (m *mockIAM) GenerateCredentialReport(ctx context.Context, params *iam.GenerateCredentialReportInput, optFns ...func(*iam.Options)) (*iam.GenerateCredentialReportOutput, error) {
	m.generated++
	return &iam.GenerateCredentialReportOutput{}, nil
}

func (m *mockIAM) GetCredentialReport(ctx context.Context, params *iam.GetCredentialReportInput, optFns ...func(*iam.Options)) (*iam.GetCredentialReportOutput, error) {
	m.reportCalls++
	if len(m.reportErrs) > 0 {
		err := m.reportErrs[0]
		m.reportErrs = m.reportErrs[1:]
		return nil, err
	}
	return &iam.GetCredentialReportOutput{Content: m.report}, nil
}

type mockSTS struct {
	account string
	err     error
}

func (m *mockSTS) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &sts.GetCallerIdentityOutput{Account: aws.String(m.account)}, nil
}

func newTestClient(iamAPI IAMAPI, stsAPI STSAPI) *AWSClient {
	c := NewClientFromAPIs(iamAPI, stsAPI)
	c.reportWait = 0
	return c
}

func TestListUsersFollowsPages(t *testing.T) {
	client := newTestClient(&mockIAM{users: [][]string{{"alice", "bob"}, {"carol"}}}, &mockSTS{})

	users, err := client.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers returned error: %v", err)
	}
	if strings.Join(users, ",") != "alice,bob,carol" {
		t.Fatalf("expected users from both pages, got %v", users)
	}
}

func TestListAccessKeys(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	client := newTestClient(&mockIAM{
		keys: map[string][]iamtypes.AccessKeyMetadata{
			"alice": {{
				UserName:    aws.String("alice"),
				AccessKeyId: aws.String("AKIAALICE"),
				Status:      iamtypes.StatusTypeActive,
				CreateDate:  &created,
			}},
		},
	}, &mockSTS{})

	keys, err := client.ListAccessKeys(context.Background(), "alice")
	if err != nil {
		t.Fatalf("ListAccessKeys returned error: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("expected 1 key, got %d", len(keys))
	}
	if keys[0].AccessKeyID != "AKIAALICE" || keys[0].Status != "Active" || keys[0].UserName != "alice" {
		t.Fatalf("unexpected key: %+v", keys[0])
	}
	if keys[0].CreateDate == nil || !keys[0].CreateDate.Equal(created) {
		t.Fatalf("expected create date %v, got %v", created, keys[0].CreateDate)
	}
}

func TestListAccessKeysError(t *testing.T) {
	boom := errors.New("throttled")
	client := newTestClient(&mockIAM{keysErr: boom}, &mockSTS{})

	if _, err := client.ListAccessKeys(context.Background(), "alice"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestGetCallerIdentityAndAlias(t *testing.T) {
	client := newTestClient(&mockIAM{aliases: []string{"prod"}}, &mockSTS{account: "123456789012"})

	account, err := client.GetCallerIdentity(context.Background())
	if err != nil || account != "123456789012" {
		t.Fatalf("expected account id, got %q (%v)", account, err)
	}

	alias, err := client.GetAccountAlias(context.Background())
	if err != nil || alias == nil || *alias != "prod" {
		t.Fatalf("expected alias prod, got %v (%v)", alias, err)
	}

	noAlias, err := newTestClient(&mockIAM{}, &mockSTS{}).GetAccountAlias(context.Background())
	if err != nil || noAlias != nil {
		t.Fatalf("expected nil alias, got %v (%v)", noAlias, err)
	}
}

func TestGetCredentialReportRetriesWhilePending(t *testing.T) {
	m := &mockIAM{
		report: []byte("user,arn,access_key_1_active,access_key_1_last_rotated\nalice,arn:aws:iam::1:user/alice,true,2026-02-10T00:00:00Z\n"),
		reportErrs: []error{
			&iamtypes.CredentialReportNotReadyException{Message: aws.String("ReportInProgress")},
		},
	}
	client := newTestClient(m, &mockSTS{})

	report, err := client.GetCredentialReport(context.Background())
	if err != nil {
		t.Fatalf("GetCredentialReport returned error: %v", err)
	}
	if m.reportCalls != 2 || m.generated != 2 {
		t.Fatalf("expected one retry, got %d gets and %d generates", m.reportCalls, m.generated)
	}
	if len(report.Users) != 1 || report.Users[0].User != "alice" {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestGetCredentialReportFailsOnOtherErrors(t *testing.T) {
	client := newTestClient(&mockIAM{reportErrs: []error{errors.New("AccessDenied")}}, &mockSTS{})

	if _, err := client.GetCredentialReport(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestParseTimePtr(t *testing.T) {
	for _, placeholder := range []string{"", "N/A", "not_supported", "no_information"} {
		got, err := parseTimePtr(placeholder)
		if got != nil || err != nil {
			t.Fatalf("expected nil for %q, got %v (%v)", placeholder, got, err)
		}
	}

	ts := "2026-02-26T15:11:02Z"
	got, err := parseTimePtr(ts)
	if err != nil || got == nil {
		t.Fatalf("expected parsed time for %q, got %v", ts, err)
	}
	if got.Format(time.RFC3339) != ts {
		t.Fatalf("unexpected parsed timestamp: %s", got.Format(time.RFC3339))
	}

	if _, err := parseTimePtr("yesterday"); err == nil {
		t.Fatalf("expected error for malformed timestamp")
	}
}

func TestGetCol(t *testing.T) {
	row := []string{"alice", "true"}
	colIndex := map[string]int{
		"user":                0,
		"access_key_1_active": 1,
		"bad_index":           5,
	}

	if got := getCol(row, colIndex, "user"); got != "alice" {
		t.Fatalf("expected user=alice, got %q", got)
	}
	if got := getCol(row, colIndex, "missing"); got != "" {
		t.Fatalf("expected empty value for missing column, got %q", got)
	}
	if got := getCol(row, colIndex, "bad_index"); got != "" {
		t.Fatalf("expected empty value for out-of-range index, got %q", got)
	}
}

func TestParseCredentialReport(t *testing.T) {
	csvContent := strings.Join([]string{
		"user,arn,user_creation_time,mfa_active,access_key_1_active,access_key_1_last_rotated,access_key_2_active,access_key_2_last_rotated",
		"<root_account>,arn:aws:iam::123456789012:root,2026-01-01T00:00:00Z,true,false,N/A,false,N/A",
		"alice,arn:aws:iam::123456789012:user/alice,2026-01-02T00:00:00Z,false,true,2026-02-10T00:00:00Z,false,2025-11-01T00:00:00Z",
		"bob,arn:aws:iam::123456789012:user/bob,2026-01-02T00:00:00Z,false,true,last tuesday,false,N/A",
	}, "\n")

	report, err := parseCredentialReport([]byte(csvContent))
	if err != nil {
		t.Fatalf("parseCredentialReport returned error: %v", err)
	}

	if len(report.Users) != 3 {
		t.Fatalf("expected 3 users, got %d", len(report.Users))
	}

	root := report.Users[0]
	if !root.IsRootUser() {
		t.Fatalf("expected first row to be root user")
	}
	if len(root.Keys()) != 0 {
		t.Fatalf("expected root to hold no keys, got %v", root.Keys())
	}

	alice := report.Users[1]
	if alice.User != "alice" {
		t.Fatalf("expected second user to be alice, got %q", alice.User)
	}
	if !alice.AccessKey1.Active || alice.AccessKey1.LastRotated == nil {
		t.Fatalf("expected alice access_key_1 to be active with a rotation date")
	}
	if alice.AccessKey2.Active || alice.AccessKey2.LastRotated == nil {
		t.Fatalf("expected alice access_key_2 to be an inactive key")
	}
	if len(alice.Keys()) != 2 {
		t.Fatalf("expected alice to hold 2 keys, got %d", len(alice.Keys()))
	}

	bob := report.Users[2]
	if bob.AccessKey1.LastRotatedErr == nil {
		t.Fatalf("expected malformed timestamp to be reported")
	}
	if len(bob.Keys()) != 1 || bob.Keys()[0].Slot != "access_key_1" {
		t.Fatalf("expected bob to hold access_key_1 only, got %v", bob.Keys())
	}
}

func TestParseCredentialReportErrorsAndEmpty(t *testing.T) {
	if _, err := parseCredentialReport([]byte("\"unterminated")); err == nil {
		t.Fatalf("expected CSV parse error for malformed content")
	}

	report, err := parseCredentialReport([]byte("user,arn\n"))
	if err != nil {
		t.Fatalf("expected no error for header-only report, got %v", err)
	}
	if len(report.Users) != 0 {
		t.Fatalf("expected zero users for header-only report")
	}
}
