package collector

// Schema version.
const SchemaVersion = "1.0.0"

// Key sources.
const (
	KeySourceIAM              = "iam"               // ListUsers + ListAccessKeys
	KeySourceCredentialReport = "credential-report" // IAM credential report CSV
)

// Default credential thresholds (days).
const (
	DefaultWarnDays  = 80
	DefaultErrorDays = 90 // Days after which access keys should be rotated
)

// Percentage constants.
const (
	MaxPercentage = 100
)
