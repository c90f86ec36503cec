package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"

	"github.com/locktivity/aws-key-audit/internal/logger"
	"github.com/locktivity/aws-key-audit/internal/runner"
)

// AuditRunner performs one audit run.
type AuditRunner interface {
	Run(ctx context.Context) (*runner.Summary, error)
}

// Response is returned to the scheduler after each invocation.
type Response struct {
	RunID            string `json:"run_id"`
	Accounts         int    `json:"accounts"`
	FailedAccounts   int    `json:"failed_accounts"`
	Inactive         int    `json:"inactive"`
	ExpiringSoon     int    `json:"expiring_soon"`
	Expired          int    `json:"expired"`
	SummarySent      bool   `json:"summary_sent"`
	RemindersSent    int    `json:"reminders_sent"`
	RemindersSkipped int    `json:"reminders_skipped"`
}

// ScheduledHandler runs the audit on EventBridge schedule events.
type ScheduledHandler struct {
	runner AuditRunner
}

func NewScheduledHandler(r AuditRunner) *ScheduledHandler {
	return &ScheduledHandler{runner: r}
}

// Handle runs one audit. A failed run is returned as an error so the
// invocation is marked failed.
func (h *ScheduledHandler) Handle(ctx context.Context, event events.CloudWatchEvent) (*Response, error) {
	// Add context about the Lambda invocation
	lambdaCtx, ok := lambdacontext.FromContext(ctx)
	if ok {
		ctx = logger.With(ctx, logger.AWSRequestIDKey, lambdaCtx.AwsRequestID)
		ctx = logger.With(ctx, logger.FunctionARNKey, lambdaCtx.InvokedFunctionArn)
	}

	logger.Info(ctx, "scheduled audit triggered", "event_id", event.ID, "rule", firstResource(event))

	summary, err := h.runner.Run(ctx)
	return newResponse(summary), err
}

func newResponse(summary *runner.Summary) *Response {
	resp := &Response{}
	if summary == nil {
		return resp
	}
	resp.RunID = summary.RunID
	if out := summary.Output; out != nil {
		resp.Accounts = len(out.Accounts)
		resp.FailedAccounts = len(out.Errors)
		for _, acct := range out.Accounts {
			resp.Inactive += len(acct.Keys.Inactive)
			resp.ExpiringSoon += len(acct.Keys.ExpiringSoon)
			resp.Expired += len(acct.Keys.Expired)
		}
	}
	if d := summary.Dispatch; d != nil {
		resp.SummarySent = d.SummarySent
		resp.RemindersSent = d.RemindersSent
		resp.RemindersSkipped = d.RemindersSkipped
	}
	return resp
}

func firstResource(event events.CloudWatchEvent) string {
	if len(event.Resources) == 0 {
		return ""
	}
	return event.Resources[0]
}
