package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/locktivity/aws-key-audit/internal/collector"
	"github.com/locktivity/aws-key-audit/internal/logger"
	"github.com/locktivity/aws-key-audit/internal/recipients"
)

// Addressing holds the process-level mail addressing.
type Addressing struct {
	From       string
	ReplyTo    string
	SummaryTo  []string
	ReminderCc []string
}

// Notifier renders and sends the summary and reminder mails of a run.
type Notifier struct {
	mailer   Mailer
	renderer *Renderer
	addr     Addressing
	now      func() time.Time
}

// NewNotifier creates a Notifier that delivers through mailer.
func NewNotifier(mailer Mailer, addr Addressing) (*Notifier, error) {
	if mailer == nil {
		return nil, errors.New("mailer is required")
	}
	renderer, err := NewRenderer()
	if err != nil {
		return nil, err
	}
	return &Notifier{mailer: mailer, renderer: renderer, addr: addr, now: time.Now}, nil
}

// SendSummary sends the operator summary. It sends nothing when every
// bucket is empty and reports whether a mail went out.
func (n *Notifier) SendSummary(ctx context.Context, data SummaryData) (bool, error) {
	if data.Empty() {
		logger.Info(ctx, "there are no keys that require action, summary not sent")
		return false, nil
	}

	html, err := n.renderer.Summary(data)
	if err != nil {
		return false, err
	}
	err = n.mailer.Send(ctx, Message{
		From:    n.addr.From,
		ReplyTo: n.addr.ReplyTo,
		To:      n.addr.SummaryTo,
		Subject: data.Subject,
		HTML:    html,
		Text:    TextFallback,
	})
	if err != nil {
		return false, fmt.Errorf("summary: %w", err)
	}
	logger.Info(ctx, "summary sent",
		"inactive", len(data.Inactive),
		"expiring_soon", len(data.ExpiringSoon),
		"expired", len(data.Expired),
	)
	return true, nil
}

// SendReminder sends one rotation reminder to the delivery's recipients.
func (n *Notifier) SendReminder(ctx context.Context, delivery recipients.Delivery, data ReminderData) error {
	ctx = logger.With(ctx, logger.IdentityKey, delivery.Identity)

	html, err := n.renderer.Reminder(data)
	if err != nil {
		return err
	}
	err = n.mailer.Send(ctx, Message{
		From:    n.addr.From,
		ReplyTo: n.addr.ReplyTo,
		To:      delivery.ToAddresses(),
		Cc:      delivery.Cc,
		Subject: data.Subject,
		HTML:    html,
		Text:    TextFallback,
	})
	if err != nil {
		return fmt.Errorf("reminder for %s: %w", delivery.Identity, err)
	}
	logger.Info(ctx, "reminder sent", "to", data.To, "keys", len(data.Keys))
	return nil
}

// DispatchResult counts the mails of one dispatch.
type DispatchResult struct {
	SummarySent      bool
	RemindersSent    int
	RemindersSkipped int
	RemindersFailed  int
}

// Dispatch sends the summary and every due reminder for out. Recipients are
// looked up once per dispatch. A failed mail does not stop the others; all
// failures are returned joined.
func (n *Notifier) Dispatch(ctx context.Context, out *collector.Output, dir recipients.Directory) (*DispatchResult, error) {
	result := &DispatchResult{}
	var errs []error

	sent, err := n.SendSummary(ctx, NewSummaryData(out, n.now()))
	if err != nil {
		logger.Error(ctx, "failed to send summary", "error", err)
		errs = append(errs, err)
	}
	result.SummarySent = sent

	reminders := out.Reminders()
	if len(reminders) == 0 {
		return result, errors.Join(errs...)
	}
	if dir == nil {
		logger.Warn(ctx, "no recipient directory configured, skipping reminders", "reminders", len(reminders))
		result.RemindersSkipped = len(reminders)
		return result, errors.Join(errs...)
	}

	resolution, err := recipients.Resolve(ctx, dir, uniqueIdentities(reminders), n.addr.ReminderCc)
	if err != nil {
		logger.Error(ctx, "recipient lookup failed, skipping reminders", "error", err)
		result.RemindersFailed = len(reminders)
		errs = append(errs, fmt.Errorf("resolving recipients: %w", err))
		return result, errors.Join(errs...)
	}

	deliveries := make(map[string]recipients.Delivery, len(resolution.Deliveries))
	for _, d := range resolution.Deliveries {
		deliveries[d.Identity] = d
	}

	for _, rem := range reminders {
		delivery, ok := deliveries[rem.Identity]
		if !ok {
			result.RemindersSkipped++
			continue
		}
		rctx := logger.With(ctx, logger.AccountIDKey, rem.AccountID)
		if err := n.SendReminder(rctx, delivery, NewReminderData(rem, delivery, out.Policy)); err != nil {
			logger.Error(rctx, "failed to send reminder", "error", err)
			result.RemindersFailed++
			errs = append(errs, err)
			continue
		}
		result.RemindersSent++
	}
	return result, errors.Join(errs...)
}

func uniqueIdentities(reminders []collector.Reminder) []string {
	seen := make(map[string]bool, len(reminders))
	var out []string
	for _, rem := range reminders {
		if !seen[rem.Identity] {
			seen[rem.Identity] = true
			out = append(out, rem.Identity)
		}
	}
	return out
}
