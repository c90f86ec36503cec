package aws

import (
	"errors"
	"testing"
	"time"
)

func TestCredentialReportUserHelpers(t *testing.T) {
	rotated := time.Now().AddDate(0, 0, -10)

	root := CredentialReportUser{
		User:       "<root_account>",
		AccessKey1: ReportKey{Slot: "access_key_1", Active: true, LastRotated: &rotated},
	}
	if !root.IsRootUser() {
		t.Fatalf("expected IsRootUser=true")
	}
	if !root.HasAccessKeys() {
		t.Fatalf("expected HasAccessKeys=true")
	}

	user := CredentialReportUser{User: "alice"}
	if user.IsRootUser() {
		t.Fatalf("expected IsRootUser=false for IAM user")
	}
	if user.HasAccessKeys() {
		t.Fatalf("expected HasAccessKeys=false")
	}
	if len(user.Keys()) != 0 {
		t.Fatalf("expected no keys for empty slots")
	}
}

func TestReportKeyExists(t *testing.T) {
	rotated := time.Now()

	if (ReportKey{}).Exists() {
		t.Fatalf("expected empty slot to hold no key")
	}
	if !(ReportKey{Active: true}).Exists() {
		t.Fatalf("expected active slot to hold a key")
	}
	if !(ReportKey{LastRotated: &rotated}).Exists() {
		t.Fatalf("expected inactive slot with rotation date to hold a key")
	}
	if !(ReportKey{LastRotatedErr: errors.New("bad")}).Exists() {
		t.Fatalf("expected slot with malformed rotation date to hold a key")
	}
}
