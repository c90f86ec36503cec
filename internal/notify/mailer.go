package notify

import (
	"context"
	"strings"

	"github.com/locktivity/aws-key-audit/internal/logger"
)

// Message is one rendered mail.
type Message struct {
	From    string
	ReplyTo string
	To      []string
	Cc      []string
	Subject string
	HTML    string
	Text    string
}

// Recipients returns every envelope recipient.
func (m Message) Recipients() []string {
	all := make([]string, 0, len(m.To)+len(m.Cc))
	all = append(all, m.To...)
	return append(all, m.Cc...)
}

// Mailer delivers rendered mail.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer logs messages instead of sending them.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, msg Message) error {
	logger.Info(ctx, "dry run, mail not sent",
		"subject", msg.Subject,
		"to", strings.Join(msg.To, ","),
		"cc", strings.Join(msg.Cc, ","),
		"html_bytes", len(msg.HTML),
	)
	return nil
}
