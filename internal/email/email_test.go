package email

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/mail.v2"

	"github.com/notiz/notiz/internal/config"
	"github.com/notiz/notiz/internal/logger"
)

func TestBuildMessage(t *testing.T) {
	due := BuildMessage("Week 12", true, 7)
	reminder := BuildMessage("Week 12", false, 7)

	assert.NotEqual(t, due, reminder)
	assert.Contains(t, due, "Week 12")
	assert.Contains(t, reminder, "Week 12")
	assert.Contains(t, due, "is happening today")
	assert.Contains(t, reminder, "is 7 days away")
	assert.NotContains(t, due, "days away")
	assert.Contains(t, due, "system generated email")
	assert.Contains(t, reminder, "system generated email")
}

func TestBuildMessageEscapesLabel(t *testing.T) {
	body := BuildMessage("<b>A&B</b>", true, 3)
	assert.Contains(t, body, "&lt;b&gt;A&amp;B&lt;/b&gt;")
	assert.NotContains(t, body, "<b>A&B</b>")
}

func TestBuildText(t *testing.T) {
	assert.Contains(t, BuildText("Week 12", true, 7), "Week 12 is happening today")
	assert.Contains(t, BuildText("Week 12", false, 14), "Week 12 is 14 days away")
}

func TestSubjects(t *testing.T) {
	assert.Equal(t, "Week 12 SCREENING IS TODAY", DueSubject("Week 12"))
	assert.Equal(t, "Week 12 SCREENING IS 7 DAYS AWAY", ReminderSubject("Week 12", 7))
}

type captureSender struct {
	msgs []Message
	err  error
}

func (c *captureSender) Send(_ context.Context, msg Message) error {
	c.msgs = append(c.msgs, msg)
	return c.err
}

func TestWithSubjectPrefix(t *testing.T) {
	inner := &captureSender{}
	s := WithSubjectPrefix(inner, "NOTIZ: ")

	require.NoError(t, s.Send(context.Background(), Message{Subject: "Week 1 SCREENING IS TODAY"}))
	require.NoError(t, s.Send(context.Background(), Message{Subject: "NOTIZ: already tagged"}))

	require.Len(t, inner.msgs, 2)
	assert.Equal(t, "NOTIZ: Week 1 SCREENING IS TODAY", inner.msgs[0].Subject)
	assert.Equal(t, "NOTIZ: already tagged", inner.msgs[1].Subject)

	assert.Same(t, inner, WithSubjectPrefix(inner, "").(*captureSender))
}

func newTestSMTPSender(t *testing.T, cfg SMTPConfig) (*SMTPSender, *[]*mail.Dialer, *bytes.Buffer) {
	t.Helper()
	s, err := NewSMTPSender(cfg)
	require.NoError(t, err)

	var dialers []*mail.Dialer
	var raw bytes.Buffer
	s.send = func(d *mail.Dialer, m *mail.Message) error {
		dialers = append(dialers, d)
		_, err := m.WriteTo(&raw)
		return err
	}
	return s, &dialers, &raw
}

func TestSMTPSenderComposesMultipart(t *testing.T) {
	s, dialers, raw := newTestSMTPSender(t, SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		User:     "notiz",
		Password: "secret",
		From:     "notiz@example.com",
	})

	err := s.Send(context.Background(), Message{
		To:       []string{"a@example.com", "b@example.com"},
		Subject:  "NOTIZ: Week 12 SCREENING IS TODAY",
		HTMLBody: BuildMessage("Week 12", true, 7),
		TextBody: BuildText("Week 12", true, 7),
	})
	require.NoError(t, err)

	out := raw.String()
	assert.Contains(t, out, "From: notiz@example.com")
	assert.Contains(t, out, "To: a@example.com, b@example.com")
	assert.Contains(t, out, "Subject: NOTIZ: Week 12 SCREENING IS TODAY")
	assert.Contains(t, out, "multipart/alternative")
	assert.Contains(t, out, "text/html")

	require.Len(t, *dialers, 1)
	d := (*dialers)[0]
	assert.Equal(t, "smtp.example.com", d.Host)
	assert.Equal(t, 587, d.Port)
	assert.Equal(t, "notiz", d.Username)
	assert.Equal(t, "secret", d.Password)
	assert.False(t, d.SSL)
	assert.Equal(t, mail.MandatoryStartTLS, d.StartTLSPolicy)
}

func TestSMTPSenderImplicitTLS(t *testing.T) {
	s, dialers, _ := newTestSMTPSender(t, SMTPConfig{
		Host:        "smtp.example.com",
		Port:        465,
		From:        "notiz@example.com",
		ImplicitTLS: true,
	})

	require.NoError(t, s.Send(context.Background(), Message{To: []string{"a@example.com"}, HTMLBody: "<p>x</p>"}))
	require.Len(t, *dialers, 1)
	assert.True(t, (*dialers)[0].SSL)
}

func TestSMTPSenderFreshDialPerSend(t *testing.T) {
	s, dialers, _ := newTestSMTPSender(t, SMTPConfig{Host: "smtp.example.com", Port: 587, From: "notiz@example.com"})

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Send(context.Background(), Message{To: []string{"a@example.com"}, TextBody: "x"}))
	}
	require.Len(t, *dialers, 3)
	assert.NotSame(t, (*dialers)[0], (*dialers)[1])
}

func TestSMTPSenderTransportError(t *testing.T) {
	s, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 587, From: "notiz@example.com"})
	require.NoError(t, err)
	authErr := errors.New("535 authentication failed")
	s.send = func(*mail.Dialer, *mail.Message) error { return authErr }

	err = s.Send(context.Background(), Message{To: []string{"a@example.com"}, TextBody: "x"})
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, authErr)

	err = s.Send(context.Background(), Message{TextBody: "x"})
	assert.ErrorIs(t, err, ErrTransport)
}

func TestNewSMTPSenderRequiresHostAndSender(t *testing.T) {
	_, err := NewSMTPSender(SMTPConfig{From: "notiz@example.com"})
	assert.Error(t, err)
	_, err = NewSMTPSender(SMTPConfig{Host: "smtp.example.com"})
	assert.Error(t, err)
}

func TestGmailRawMessage(t *testing.T) {
	g := &GmailSender{senderAddress: "notiz@example.com", senderName: "Notiz"}
	raw := g.rawMessage(Message{
		To:       []string{"a@example.com", "b@example.com"},
		Subject:  "NOTIZ: hello",
		HTMLBody: "<p>hi</p>",
		TextBody: "hi",
	})

	assert.True(t, strings.HasPrefix(raw, "From: Notiz <notiz@example.com>\r\n"))
	assert.Contains(t, raw, "To: a@example.com, b@example.com\r\n")
	assert.Contains(t, raw, "multipart/alternative")

	raw = g.rawMessage(Message{To: []string{"a@example.com"}, HTMLBody: "<p>hi</p>"})
	assert.Contains(t, raw, "Content-Type: text/html; charset=UTF-8")
}

func TestNewSenderLogProvider(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "info", "json")

	s, err := NewSender(context.Background(), config.EmailConfig{Provider: config.ProviderLog, SubjectPrefix: "NOTIZ: "}, log)
	require.NoError(t, err)

	require.NoError(t, s.Send(context.Background(), Message{
		To:       []string{"a@example.com"},
		Subject:  "Week 1 SCREENING IS TODAY",
		TextBody: "hello",
	}))
	assert.Contains(t, buf.String(), "NOTIZ: Week 1 SCREENING IS TODAY")
	assert.Contains(t, buf.String(), "dry run")
}

func TestNewSenderUnknownProvider(t *testing.T) {
	_, err := NewSender(context.Background(), config.EmailConfig{Provider: "fax"}, logger.Nop())
	assert.ErrorIs(t, err, config.ErrInvalid)
}
