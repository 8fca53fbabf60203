package mailer

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	mail "github.com/go-mail/mail/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profepulse/profepulse-api/pkg/config"
)

type recordingSender struct {
	sent []*mail.Message
	err  error
}

func (s *recordingSender) DialAndSend(m ...*mail.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, m...)
	return nil
}

func TestNewRequiresHostAndFrom(t *testing.T) {
	_, err := New(config.MailConfig{Host: "smtp.example.com"})
	assert.ErrorIs(t, err, ErrNotConfigured)

	m, err := New(config.MailConfig{Host: "smtp.example.com", Port: 587, From: "ProfePulse <no-reply@profepulse.edu>"})
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestSendBuildsMessage(t *testing.T) {
	sender := &recordingSender{}
	m := NewWithSender("no-reply@profepulse.edu", sender)

	msg, err := Confirmation("ana@uni.edu", "Ana", "123456", 30*time.Minute)
	require.NoError(t, err)
	require.NoError(t, m.Send(context.Background(), msg))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"ana@uni.edu"}, sender.sent[0].GetHeader("To"))
	var buf bytes.Buffer
	_, err = sender.sent[0].WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "123456")
}

func TestSendWithoutRecipients(t *testing.T) {
	sender := &recordingSender{}
	require.NoError(t, NewWithSender("x@y.z", sender).Send(context.Background(), Message{Subject: "noop"}))
	assert.Empty(t, sender.sent)
}

func TestSendWrapsTransportError(t *testing.T) {
	smtpErr := errors.New("connection refused")
	m := NewWithSender("x@y.z", &recordingSender{err: smtpErr})

	msg, err := AccountStatus("ana@uni.edu", "Ana", "Your account has been suspended.")
	require.NoError(t, err)
	assert.ErrorIs(t, m.Send(context.Background(), msg), smtpErr)
}
