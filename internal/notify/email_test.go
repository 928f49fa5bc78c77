package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewMailer_ProviderSwitch(t *testing.T) {
	_, ok := NewMailer(MailerConfig{Provider: "noop"}, nil).(*noopMailer)
	require.True(t, ok)

	_, ok = NewMailer(MailerConfig{Provider: "smtp"}, nil).(*noopMailer)
	require.True(t, ok)

	_, ok = NewMailer(MailerConfig{Provider: "ses", Region: "eu-west-1", AccessKeyID: "a", SecretAccessKey: "b"}, nil).(*sesMailer)
	require.True(t, ok)

	require.NoError(t, NewMailer(MailerConfig{Provider: "noop"}, nil).Send(context.Background(), "a@b.c", "s", "t"))
}
