// Package recipients resolves the people who receive rotation reminders for an identity.
package recipients

import (
	"context"
	"strings"

	"github.com/locktivity/aws-key-audit/internal/logger"
)

// Recipient is a person who receives reminders for an identity.
type Recipient struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Directory looks up reminder recipients by identity name. Identities
// without an entry are absent from the returned map.
type Directory interface {
	Lookup(ctx context.Context, identities []string) (map[string][]Recipient, error)
}

// Delivery is the addressing of one reminder mail.
type Delivery struct {
	Identity   string
	Recipients []Recipient
	Cc         []string
}

// To returns the recipient names joined for display.
func (d Delivery) To() string {
	names := make([]string, 0, len(d.Recipients))
	for _, r := range d.Recipients {
		name := r.Name
		if name == "" {
			name = r.Email
		}
		names = append(names, name)
	}
	return strings.Join(names, "/")
}

// ToAddresses returns the recipient email addresses.
func (d Delivery) ToAddresses() []string {
	addrs := make([]string, 0, len(d.Recipients))
	for _, r := range d.Recipients {
		addrs = append(addrs, r.Email)
	}
	return addrs
}

// Resolution is the outcome of resolving a set of identities.
type Resolution struct {
	Deliveries []Delivery
	// Missing lists identities without a usable directory entry.
	Missing []string
}

// Resolve looks up every identity once and builds a Delivery for each one
// with recipients. Missing entries are logged and skipped.
func Resolve(ctx context.Context, dir Directory, identities []string, cc []string) (*Resolution, error) {
	res := &Resolution{}
	if len(identities) == 0 {
		return res, nil
	}

	found, err := dir.Lookup(ctx, identities)
	if err != nil {
		return nil, err
	}

	for _, identity := range identities {
		recipients := dedupe(found[identity])
		if len(recipients) == 0 {
			logger.Info(logger.With(ctx, logger.IdentityKey, identity), "no reminder recipients found, skipping reminder")
			res.Missing = append(res.Missing, identity)
			continue
		}
		res.Deliveries = append(res.Deliveries, Delivery{
			Identity:   identity,
			Recipients: recipients,
			Cc:         ccList(cc, recipients),
		})
	}
	return res, nil
}

// dedupe keeps the first recipient for each email, in order, and drops
// entries without an email.
func dedupe(in []Recipient) []Recipient {
	seen := make(map[string]bool, len(in))
	var out []Recipient
	for _, r := range in {
		r.Name = strings.TrimSpace(r.Name)
		r.Email = strings.TrimSpace(r.Email)
		key := strings.ToLower(r.Email)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

// ccList removes duplicates and addresses already on the To line.
func ccList(cc []string, to []Recipient) []string {
	seen := make(map[string]bool, len(cc)+len(to))
	for _, r := range to {
		seen[strings.ToLower(r.Email)] = true
	}
	var out []string
	for _, addr := range cc {
		addr = strings.TrimSpace(addr)
		key := strings.ToLower(addr)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, addr)
	}
	return out
}

// Static is an in-memory Directory.
type Static map[string][]Recipient

func (s Static) Lookup(_ context.Context, identities []string) (map[string][]Recipient, error) {
	out := make(map[string][]Recipient)
	for _, identity := range identities {
		if r, ok := s[identity]; ok {
			out[identity] = r
		}
	}
	return out, nil
}
