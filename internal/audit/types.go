// Package audit classifies IAM access keys by status and age and decides which
// key owners are owed a rotation reminder on a given day.
package audit

import "time"

// Status is the IAM status of an access key.
type Status string

const (
	StatusActive   Status = "Active"
	StatusInactive Status = "Inactive"
)

// KeyRecord is one access key belonging to an identity.
type KeyRecord struct {
	Identity  string
	KeyID     string
	Status    Status
	CreatedAt time.Time
}

// Bucket is the classification outcome of a single key.
type Bucket int

const (
	BucketNone Bucket = iota // active and within the warn threshold
	BucketInactive
	BucketExpiringSoon
	BucketExpired
)

func (b Bucket) String() string {
	switch b {
	case BucketInactive:
		return "inactive"
	case BucketExpiringSoon:
		return "expiring_soon"
	case BucketExpired:
		return "expired"
	default:
		return "healthy"
	}
}

// Classification is the result of classifying one KeyRecord.
type Classification struct {
	Record  KeyRecord
	AgeDays int
	Bucket  Bucket
	// ReminderDue is only ever true for BucketExpired.
	ReminderDue bool
}

// Entry is a key listed in one of the report buckets.
type Entry struct {
	Identity string `json:"identity"`
	KeyID    string `json:"key_id"`
	AgeDays  int    `json:"age_days"`
}

func (c Classification) entry() Entry {
	return Entry{Identity: c.Record.Identity, KeyID: c.Record.KeyID, AgeDays: c.AgeDays}
}

// Result holds the three report buckets.
type Result struct {
	Inactive     []Entry `json:"inactive"`
	ExpiringSoon []Entry `json:"expiring_soon"`
	Expired      []Entry `json:"expired"`
}

// Empty reports whether no bucket holds a key.
func (r Result) Empty() bool {
	return len(r.Inactive) == 0 && len(r.ExpiringSoon) == 0 && len(r.Expired) == 0
}

// Len returns the number of entries across all buckets.
func (r Result) Len() int {
	return len(r.Inactive) + len(r.ExpiringSoon) + len(r.Expired)
}

func (r *Result) add(c Classification) {
	switch c.Bucket {
	case BucketInactive:
		r.Inactive = append(r.Inactive, c.entry())
	case BucketExpiringSoon:
		r.ExpiringSoon = append(r.ExpiringSoon, c.entry())
	case BucketExpired:
		r.Expired = append(r.Expired, c.entry())
	}
}

func (r *Result) merge(other Result) {
	r.Inactive = append(r.Inactive, other.Inactive...)
	r.ExpiringSoon = append(r.ExpiringSoon, other.ExpiringSoon...)
	r.Expired = append(r.Expired, other.Expired...)
}

// Report is the outcome of auditing one directory of identities.
type Report struct {
	Result
	// Reminders lists identities owed a reminder this run, in enumeration order.
	Reminders        []string           `json:"reminders"`
	FetchErrors      []*FetchError      `json:"-"`
	ValidationErrors []*ValidationError `json:"-"`
	Identities       int                `json:"identities"`
	Keys             int                `json:"keys"`
	Healthy          int                `json:"healthy"`
}

// IdentityResult is the contribution of a single identity to a Report.
type IdentityResult struct {
	Identity         string
	Result           Result
	ReminderDue      bool
	Keys             int
	Healthy          int
	ValidationErrors []*ValidationError
}
