package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/kjstillabower/disaster-alert/internal/models"
	"github.com/kjstillabower/disaster-alert/internal/observability"
)

// ErrNotification wraps every failure to compose or deliver an alert.
var ErrNotification = errors.New("alert notification failed")

// AlertSubject is the subject prefix of every alert.
const AlertSubject = "NATURAL DISASTER RISK ALERT"

// implicitTLSPort is the SMTPS port; anything else negotiates STARTTLS.
const implicitTLSPort = 465

// SMTPConfig holds submission server settings. The sender address doubles as the login name.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Password string
	Timeout  time.Duration
}

// Sender delivers composed messages. *mail.Client implements it.
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Mailer sends one alert per call over an authenticated, TLS-protected SMTP session. No retries.
type Mailer struct {
	cfg    SMTPConfig
	logger *zap.Logger
	dial   func(SMTPConfig) (Sender, error)
}

// NewMailer creates a Mailer. A nil logger discards logs.
func NewMailer(cfg SMTPConfig, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{cfg: cfg, logger: logger, dial: newSMTPClient}
}

// SendAlert composes the alert for location and delivers it to recipient.
// Every failure is logged and returned wrapped in ErrNotification.
func (m *Mailer) SendAlert(ctx context.Context, location string, sample models.WeatherSample, assessment models.RiskAssessment, recipient string) error {
	logger := observability.LoggerFromContext(ctx, m.logger).With(zap.String("location", location), zap.String("recipient", recipient))

	alert := ComposeAlert(location, sample, assessment, recipient)
	msg, err := m.buildMsg(alert)
	if err == nil {
		var client Sender
		client, err = m.dial(m.cfg)
		if err == nil {
			err = client.DialAndSendWithContext(ctx, msg)
		}
	}
	if err != nil {
		observability.AlertsTotal.WithLabelValues("failed").Inc()
		logger.Error("alert delivery failed", zap.String("smtp_host", m.cfg.Host), zap.Int("smtp_port", m.cfg.Port), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrNotification, err)
	}

	observability.AlertsTotal.WithLabelValues("sent").Inc()
	logger.Info("alert sent", zap.String("level", string(assessment.Level)))
	return nil
}

func (m *Mailer) buildMsg(alert models.AlertMessage) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("sender address: %w", err)
	}
	if err := msg.To(alert.Recipient); err != nil {
		return nil, fmt.Errorf("recipient address: %w", err)
	}
	msg.Subject(alert.Subject)
	msg.SetBodyString(mail.TypeTextPlain, alert.Body)
	return msg, nil
}

func newSMTPClient(cfg SMTPConfig) (Sender, error) {
	opts := []mail.Option{
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.From),
		mail.WithPassword(cfg.Password),
	}
	if cfg.Port == implicitTLSPort {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	opts = append(opts, mail.WithPort(cfg.Port))

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return client, nil
}

// ComposeAlert renders the plain-text alert for one location.
func ComposeAlert(location string, sample models.WeatherSample, assessment models.RiskAssessment, recipient string) models.AlertMessage {
	var b strings.Builder
	b.WriteString("RISK ALERT - Natural Disaster Prevention System\n\n")
	fmt.Fprintf(&b, "Location: %s\n\n", location)
	b.WriteString("Current conditions:\n")
	fmt.Fprintf(&b, "- Temperature: %s°C\n", reading(sample.Temperature))
	fmt.Fprintf(&b, "- Humidity: %s%%\n", reading(sample.Humidity))
	fmt.Fprintf(&b, "- Precipitation: %smm\n\n", reading(sample.Precipitation))
	fmt.Fprintf(&b, "Risk level: %s (probability %.0f%%)\n\n", assessment.Level, assessment.Probability*100)
	b.WriteString("Please follow the guidance of your local authorities.\n")

	return models.AlertMessage{
		Recipient: recipient,
		Subject:   AlertSubject + ": " + location,
		Body:      b.String(),
	}
}

func reading(v *int) string {
	if v == nil {
		return "n/a"
	}
	return strconv.Itoa(*v)
}
