package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/locktivity/aws-key-audit/internal/logger"
)

const charset = "UTF-8"

// SESAPI is the subset of the SES v2 client used for delivery.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESMailer sends mail through Amazon SES.
type SESMailer struct {
	client SESAPI
}

// NewSESMailer creates an SESMailer from an AWS config.
func NewSESMailer(cfg aws.Config) *SESMailer {
	return NewSESMailerFromAPI(sesv2.NewFromConfig(cfg))
}

// NewSESMailerFromAPI creates an SESMailer using the provided client (for testing).
func NewSESMailerFromAPI(client SESAPI) *SESMailer {
	return &SESMailer{client: client}
}

func (m *SESMailer) Send(ctx context.Context, msg Message) error {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.From),
		Destination: &types.Destination{
			ToAddresses: msg.To,
			CcAddresses: msg.Cc,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: content(msg.Subject),
				Body: &types.Body{
					Html: content(msg.HTML),
					Text: content(msg.Text),
				},
			},
		},
	}
	if msg.ReplyTo != "" {
		input.ReplyToAddresses = []string{msg.ReplyTo}
	}

	out, err := m.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("sending mail via SES: %w", err)
	}
	logger.Debug(ctx, "mail sent", "subject", msg.Subject, "message_id", aws.ToString(out.MessageId))
	return nil
}

func content(s string) *types.Content {
	return &types.Content{Data: aws.String(s), Charset: aws.String(charset)}
}
