// Package aws provides AWS API client functionality.
package aws

import "time"

// AccessKey is the metadata of one IAM access key.
type AccessKey struct {
	UserName    string
	AccessKeyID string
	Status      string // "Active" or "Inactive"
	CreateDate  *time.Time
}

// CredentialReport represents a parsed IAM credential report.
type CredentialReport struct {
	Users []CredentialReportUser
}

// CredentialReportUser represents a single user row in the credential report.
type CredentialReportUser struct {
	User       string
	ARN        string
	AccessKey1 ReportKey
	AccessKey2 ReportKey
}

// ReportKey is one access key slot of a credential report row.
type ReportKey struct {
	Slot        string // "access_key_1" or "access_key_2"
	Active      bool
	LastRotated *time.Time
	// LastRotatedErr is set when the report held a timestamp that could not be parsed.
	LastRotatedErr error
}

// Exists reports whether the slot holds a key. An unused slot is inactive
// and carries no rotation timestamp.
func (k ReportKey) Exists() bool {
	return k.Active || k.LastRotated != nil || k.LastRotatedErr != nil
}

// IsRootUser returns true if this is the root account user.
func (u CredentialReportUser) IsRootUser() bool {
	return u.User == "<root_account>"
}

// Keys returns the slots that hold a key.
func (u CredentialReportUser) Keys() []ReportKey {
	var keys []ReportKey
	for _, k := range []ReportKey{u.AccessKey1, u.AccessKey2} {
		if k.Exists() {
			keys = append(keys, k)
		}
	}
	return keys
}

// HasAccessKeys returns true if the user has any active access keys.
func (u CredentialReportUser) HasAccessKeys() bool {
	return u.AccessKey1.Active || u.AccessKey2.Active
}
