package aws

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Credential report polling.
const (
	credentialReportAttempts = 10
	credentialReportWait     = 2 * time.Second
)

// Client provides access to the AWS APIs used by the key audit.
type Client interface {
	// GetCallerIdentity returns the account ID of the current credentials.
	GetCallerIdentity(ctx context.Context) (string, error)

	// GetAccountAlias returns the account alias if set.
	GetAccountAlias(ctx context.Context) (*string, error)

	// IAM
	ListUsers(ctx context.Context) ([]string, error)
	ListAccessKeys(ctx context.Context, userName string) ([]AccessKey, error)
	GetCredentialReport(ctx context.Context) (*CredentialReport, error)
}

// IAMAPI is the subset of the IAM client used by AWSClient.
type IAMAPI interface {
	iam.ListUsersAPIClient
	iam.ListAccessKeysAPIClient
	ListAccountAliases(ctx context.Context, params *iam.ListAccountAliasesInput, optFns ...func(*iam.Options)) (*iam.ListAccountAliasesOutput, error)
	GenerateCredentialReport(ctx context.Context, params *iam.GenerateCredentialReportInput, optFns ...func(*iam.Options)) (*iam.GenerateCredentialReportOutput, error)
	GetCredentialReport(ctx context.Context, params *iam.GetCredentialReportInput, optFns ...func(*iam.Options)) (*iam.GetCredentialReportOutput, error)
}

// STSAPI is the subset of the STS client used by AWSClient.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// AWSClient implements the Client interface using AWS SDK v2.
type AWSClient struct {
	cfg        aws.Config
	iam        IAMAPI
	sts        STSAPI
	reportWait time.Duration
}

// NewClient creates a new AWS client using the default credential chain.
func NewClient(ctx context.Context) (*AWSClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewClientFromConfig(cfg), nil
}

// NewClientWithRole creates a new AWS client that assumes the specified role.
func NewClientWithRole(ctx context.Context, roleARN, externalID string) (*AWSClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	stsClient := sts.NewFromConfig(cfg)
	creds := stscreds.NewAssumeRoleProvider(stsClient, roleARN, func(o *stscreds.AssumeRoleOptions) {
		if externalID != "" {
			o.ExternalID = &externalID
		}
		o.Duration = 1 * time.Hour
	})

	cfg.Credentials = aws.NewCredentialsCache(creds)

	return NewClientFromConfig(cfg), nil
}

// NewClientFromConfig creates a client from an already loaded SDK config.
func NewClientFromConfig(cfg aws.Config) *AWSClient {
	return &AWSClient{
		cfg:        cfg,
		iam:        iam.NewFromConfig(cfg),
		sts:        sts.NewFromConfig(cfg),
		reportWait: credentialReportWait,
	}
}

// NewClientFromAPIs creates a client over explicit API implementations.
func NewClientFromAPIs(iamAPI IAMAPI, stsAPI STSAPI) *AWSClient {
	return &AWSClient{iam: iamAPI, sts: stsAPI, reportWait: credentialReportWait}
}

// Config returns the SDK config the client was built from.
func (c *AWSClient) Config() aws.Config {
	return c.cfg
}

// GetCallerIdentity returns the account ID of the current credentials.
func (c *AWSClient) GetCallerIdentity(ctx context.Context) (string, error) {
	output, err := c.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("getting caller identity: %w", err)
	}
	return aws.ToString(output.Account), nil
}

// GetAccountAlias returns the account alias if set.
func (c *AWSClient) GetAccountAlias(ctx context.Context) (*string, error) {
	output, err := c.iam.ListAccountAliases(ctx, &iam.ListAccountAliasesInput{})
	if err != nil {
		return nil, fmt.Errorf("listing account aliases: %w", err)
	}
	if len(output.AccountAliases) > 0 {
		return &output.AccountAliases[0], nil
	}
	return nil, nil
}

// ListUsers returns the names of all IAM users in the account.
func (c *AWSClient) ListUsers(ctx context.Context) ([]string, error) {
	paginator := iam.NewListUsersPaginator(c.iam, &iam.ListUsersInput{})

	var users []string
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing users: %w", err)
		}
		for _, u := range output.Users {
			users = append(users, aws.ToString(u.UserName))
		}
	}
	return users, nil
}

// ListAccessKeys returns the access keys of a single IAM user.
func (c *AWSClient) ListAccessKeys(ctx context.Context, userName string) ([]AccessKey, error) {
	paginator := iam.NewListAccessKeysPaginator(c.iam, &iam.ListAccessKeysInput{
		UserName: aws.String(userName),
	})

	var keys []AccessKey
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing access keys for %s: %w", userName, err)
		}
		for _, k := range output.AccessKeyMetadata {
			keys = append(keys, AccessKey{
				UserName:    aws.ToString(k.UserName),
				AccessKeyID: aws.ToString(k.AccessKeyId),
				Status:      string(k.Status),
				CreateDate:  k.CreateDate,
			})
		}
	}
	return keys, nil
}

// GetCredentialReport generates and retrieves the IAM credential report.
func (c *AWSClient) GetCredentialReport(ctx context.Context) (*CredentialReport, error) {
	// Generate the report (may need multiple attempts)
	for attempts := 0; attempts < credentialReportAttempts; attempts++ {
		_, err := c.iam.GenerateCredentialReport(ctx, &iam.GenerateCredentialReportInput{})
		if err != nil {
			return nil, fmt.Errorf("generating credential report: %w", err)
		}

		// Wait for report to be ready
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.reportWait):
		}

		output, err := c.iam.GetCredentialReport(ctx, &iam.GetCredentialReportInput{})
		if err != nil {
			if reportPending(err) {
				continue
			}
			return nil, fmt.Errorf("getting credential report: %w", err)
		}

		return parseCredentialReport(output.Content)
	}

	return nil, fmt.Errorf("credential report generation timed out")
}

func reportPending(err error) bool {
	var inProgress *iamtypes.CredentialReportNotReadyException
	var notPresent *iamtypes.CredentialReportNotPresentException
	if errors.As(err, &inProgress) || errors.As(err, &notPresent) {
		return true
	}
	return strings.Contains(err.Error(), "ReportInProgress") ||
		strings.Contains(err.Error(), "ReportNotPresent")
}

// parseCredentialReport parses the CSV credential report.
func parseCredentialReport(content []byte) (*CredentialReport, error) {
	reader := csv.NewReader(strings.NewReader(string(content)))
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing CSV: %w", err)
	}

	if len(records) < 2 {
		return &CredentialReport{Users: []CredentialReportUser{}}, nil
	}

	// Parse header to get column indices
	header := records[0]
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[col] = i
	}

	report := &CredentialReport{
		Users: make([]CredentialReportUser, 0, len(records)-1),
	}

	for _, row := range records[1:] {
		user := CredentialReportUser{
			User: getCol(row, colIndex, "user"),
			ARN:  getCol(row, colIndex, "arn"),
		}
		user.AccessKey1 = parseReportKey(row, colIndex, "access_key_1")
		user.AccessKey2 = parseReportKey(row, colIndex, "access_key_2")

		report.Users = append(report.Users, user)
	}

	return report, nil
}

// parseReportKey reads the access_key_N_* columns of one report row.
func parseReportKey(row []string, colIndex map[string]int, slot string) ReportKey {
	key := ReportKey{
		Slot:   slot,
		Active: getCol(row, colIndex, slot+"_active") == "true",
	}
	key.LastRotated, key.LastRotatedErr = parseTimePtr(getCol(row, colIndex, slot+"_last_rotated"))
	return key
}

func getCol(row []string, colIndex map[string]int, name string) string {
	if idx, ok := colIndex[name]; ok && idx < len(row) {
		return row[idx]
	}
	return ""
}

// isReportPlaceholder reports whether s is one of the report's "no value" markers.
func isReportPlaceholder(s string) bool {
	return s == "" || s == "N/A" || s == "not_supported" || s == "no_information"
}

// parseTimePtr returns nil for placeholders and an error for unparseable timestamps.
func parseTimePtr(s string) (*time.Time, error) {
	if isReportPlaceholder(s) {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("malformed timestamp %q: %w", s, err)
	}
	return &t, nil
}
