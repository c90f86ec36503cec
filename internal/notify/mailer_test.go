package notify

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMessage = Message{
	From:    "audit@example.com",
	ReplyTo: "security@example.com",
	To:      []string{"alice@example.com", "ops@example.com"},
	Cc:      []string{"cc@example.com"},
	Subject: "Found AWS Keys That Require Action (Mar 7, 2026)",
	HTML:    "<p>expired</p>",
	Text:    TextFallback,
}

type mockSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (m *mockSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	m.input = params
	if m.err != nil {
		return nil, m.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESMailerSend(t *testing.T) {
	api := &mockSES{}
	require.NoError(t, NewSESMailerFromAPI(api).Send(context.Background(), testMessage))

	in := api.input
	require.NotNil(t, in)
	assert.Equal(t, "audit@example.com", aws.ToString(in.FromEmailAddress))
	assert.Equal(t, []string{"security@example.com"}, in.ReplyToAddresses)
	assert.Equal(t, testMessage.To, in.Destination.ToAddresses)
	assert.Equal(t, testMessage.Cc, in.Destination.CcAddresses)
	assert.Equal(t, testMessage.Subject, aws.ToString(in.Content.Simple.Subject.Data))
	assert.Equal(t, "<p>expired</p>", aws.ToString(in.Content.Simple.Body.Html.Data))
	assert.Equal(t, TextFallback, aws.ToString(in.Content.Simple.Body.Text.Data))
}

func TestSESMailerSendError(t *testing.T) {
	boom := errors.New("MessageRejected")
	err := NewSESMailerFromAPI(&mockSES{err: boom}).Send(context.Background(), testMessage)
	assert.ErrorIs(t, err, boom)
}

func TestSMTPMailerSend(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "user", Password: "secret"})
	m.now = func() time.Time { return testNow }

	var (
		gotAddr string
		gotAuth smtp.Auth
		gotFrom string
		gotTo   []string
		gotMsg  []byte
	)
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotFrom, gotTo, gotMsg = addr, a, from, to, msg
		return nil
	}

	require.NoError(t, m.Send(context.Background(), testMessage))

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.NotNil(t, gotAuth)
	assert.Equal(t, "audit@example.com", gotFrom)
	assert.Equal(t, []string{"alice@example.com", "ops@example.com", "cc@example.com"}, gotTo)

	parsed, err := mail.ReadMessage(strings.NewReader(string(gotMsg)))
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com, ops@example.com", parsed.Header.Get("To"))
	assert.Equal(t, "cc@example.com", parsed.Header.Get("Cc"))
	assert.Equal(t, "security@example.com", parsed.Header.Get("Reply-To"))

	subject, err := new(mime.WordDecoder).DecodeHeader(parsed.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, testMessage.Subject, subject)

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/alternative", mediaType)

	mr := multipart.NewReader(parsed.Body, params["boundary"])
	var bodies []string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(part)
		require.NoError(t, err)
		bodies = append(bodies, string(data))
	}
	assert.Equal(t, []string{TextFallback, "<p>expired</p>"}, bodies)
}

func TestSMTPMailerWithoutAuth(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "localhost", Port: 25})
	var gotAuth smtp.Auth = smtp.PlainAuth("", "x", "y", "z")
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAuth = a
		return nil
	}

	require.NoError(t, m.Send(context.Background(), testMessage))
	assert.Nil(t, gotAuth)
}

func TestSMTPMailerErrors(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "localhost", Port: 25})
	boom := errors.New("connection refused")
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error { return boom }

	assert.ErrorIs(t, m.Send(context.Background(), testMessage), boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Send(ctx, testMessage), context.Canceled)
}

func TestLogMailer(t *testing.T) {
	assert.NoError(t, LogMailer{}.Send(context.Background(), testMessage))
}

type mockSecrets struct {
	out *secretsmanager.GetSecretValueOutput
	err error
}

func (m *mockSecrets) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	return m.out, m.err
}

func TestGetSecret(t *testing.T) {
	got, err := GetSecret(context.Background(), &mockSecrets{out: &secretsmanager.GetSecretValueOutput{SecretString: aws.String("hunter2")}}, "smtp")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)

	_, err = GetSecret(context.Background(), &mockSecrets{out: &secretsmanager.GetSecretValueOutput{}}, "smtp")
	assert.ErrorContains(t, err, "has no SecretString")

	boom := errors.New("ResourceNotFoundException")
	_, err = GetSecret(context.Background(), &mockSecrets{err: boom}, "smtp")
	assert.ErrorIs(t, err, boom)
}
