package notify

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/disaster-alert/internal/models"
)

type fakeSender struct {
	sent []*mail.Msg
	err  error
}

func (f *fakeSender) DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, messages...)
	return nil
}

var testConfig = SMTPConfig{
	Host:     "smtp.example.com",
	Port:     587,
	From:     "alerts@example.com",
	Password: "secret",
	Timeout:  5 * time.Second,
}

func newTestMailer(sender Sender, dialErr error, logger *zap.Logger) *Mailer {
	m := NewMailer(testConfig, logger)
	m.dial = func(SMTPConfig) (Sender, error) {
		if dialErr != nil {
			return nil, dialErr
		}
		return sender, nil
	}
	return m
}

var highRisk = models.RiskAssessment{Level: models.RiskHigh, Probability: 0.93}

// TestComposeAlert verifies every fixed field appears in the rendered alert.
func TestComposeAlert(t *testing.T) {
	msg := ComposeAlert("Blumenau", models.NewSample(38, 92, 35), highRisk, "ops@example.com")

	assert.Equal(t, "ops@example.com", msg.Recipient)
	assert.Equal(t, "NATURAL DISASTER RISK ALERT: Blumenau", msg.Subject)
	for _, want := range []string{
		"Location: Blumenau",
		"Temperature: 38°C",
		"Humidity: 92%",
		"Precipitation: 35mm",
		"Risk level: HIGH (probability 93%)",
	} {
		assert.Contains(t, msg.Body, want)
	}
}

// TestComposeAlert_MissingReading verifies absent readings render as n/a.
func TestComposeAlert_MissingReading(t *testing.T) {
	sample := models.WeatherSample{Temperature: models.IntPtr(20)}
	msg := ComposeAlert("Itajai", sample, models.RiskAssessment{Level: models.RiskLow}, "ops@example.com")
	assert.Contains(t, msg.Body, "Humidity: n/a%")
	assert.Contains(t, msg.Body, "Risk level: LOW")
}

// TestMailer_SendAlert_Success verifies one message with the configured sender and recipient is handed to SMTP.
func TestMailer_SendAlert_Success(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sender := &fakeSender{}
	m := newTestMailer(sender, nil, zap.New(core))

	err := m.SendAlert(context.Background(), "Test", models.NewSample(38, 92, 35), highRisk, "recipient@example.com")
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	var buf bytes.Buffer
	_, err = sender.sent[0].WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	assert.Contains(t, raw, "From: <alerts@example.com>")
	assert.Contains(t, raw, "To: <recipient@example.com>")
	assert.Contains(t, raw, "Subject: NATURAL DISASTER RISK ALERT: Test")
	assert.Contains(t, raw, "text/plain")
	assert.Equal(t, 1, logs.FilterMessage("alert sent").Len())
}

// TestMailer_SendAlert_Failures verifies dial, send and address errors all wrap ErrNotification and are logged.
func TestMailer_SendAlert_Failures(t *testing.T) {
	tests := []struct {
		name      string
		dialErr   error
		sendErr   error
		recipient string
	}{
		{"dial", errors.New("dial tcp: connection refused"), nil, "ops@example.com"},
		{"auth", nil, errors.New("535 authentication failed"), "ops@example.com"},
		{"bad recipient", nil, nil, "not an address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.ErrorLevel)
			sender := &fakeSender{err: tt.sendErr}
			m := newTestMailer(sender, tt.dialErr, zap.New(core))

			err := m.SendAlert(context.Background(), "Blumenau", models.NewSample(38, 92, 35), highRisk, tt.recipient)
			assert.ErrorIs(t, err, ErrNotification)
			if tt.dialErr != nil {
				assert.ErrorIs(t, err, tt.dialErr)
			}
			if tt.sendErr != nil {
				assert.ErrorIs(t, err, tt.sendErr)
			}
			assert.Empty(t, sender.sent)
			assert.Equal(t, 1, logs.FilterMessage("alert delivery failed").Len())
		})
	}
}

// TestNewSMTPClient verifies client construction for submission and implicit TLS ports.
func TestNewSMTPClient(t *testing.T) {
	for _, port := range []int{587, 465, 2525} {
		cfg := testConfig
		cfg.Port = port
		c, err := newSMTPClient(cfg)
		require.NoError(t, err, "port %d", port)
		assert.NotNil(t, c)
	}

	cfg := testConfig
	cfg.Host = ""
	_, err := newSMTPClient(cfg)
	assert.Error(t, err, "empty host must be rejected")
}
