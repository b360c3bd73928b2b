package monitor

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/kjstillabower/disaster-alert/internal/models"
	"github.com/kjstillabower/disaster-alert/internal/observability"
)

// Fetcher acquires the current sample for a location.
type Fetcher interface {
	FetchWeather(ctx context.Context, location string) (models.WeatherSample, error)
}

// Assessor classifies a sample. *risk.Model refuses incomplete samples with risk.ErrIncompleteData.
type Assessor interface {
	Assess(sample models.WeatherSample) (models.RiskAssessment, error)
}

// Notifier delivers an alert for a high-risk location.
type Notifier interface {
	SendAlert(ctx context.Context, location string, sample models.WeatherSample, assessment models.RiskAssessment, recipient string) error
}

// Publisher receives one event per processed location.
type Publisher interface {
	Publish(ctx context.Context, event models.RiskEvent) error
}

// Monitor runs sweeps: for each location acquire, assess and, on high risk, notify.
type Monitor struct {
	fetcher   Fetcher
	assessor  Assessor
	notifier  Notifier
	recipient string
	publisher Publisher
	logger    *zap.Logger
	out       io.Writer
	clock     clockwork.Clock
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithPublisher sends every outcome to p. Publish failures are logged only.
func WithPublisher(p Publisher) Option {
	return func(m *Monitor) { m.publisher = p }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithOutput writes one summary line per location to w.
func WithOutput(w io.Writer) Option {
	return func(m *Monitor) {
		if w != nil {
			m.out = w
		}
	}
}

// WithClock replaces the clock used for event timestamps and sweep timing.
func WithClock(clock clockwork.Clock) Option {
	return func(m *Monitor) { m.clock = clock }
}

// New creates a Monitor that alerts recipient.
func New(fetcher Fetcher, assessor Assessor, notifier Notifier, recipient string, opts ...Option) *Monitor {
	m := &Monitor{
		fetcher:   fetcher,
		assessor:  assessor,
		notifier:  notifier,
		recipient: recipient,
		logger:    zap.NewNop(),
		out:       io.Discard,
		clock:     clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run processes locations in order and returns one outcome per location.
// A failing location never stops the sweep.
func (m *Monitor) Run(ctx context.Context, locations []string) []models.Outcome {
	runID := uuid.NewString()
	logger := observability.LoggerFromContext(ctx, m.logger).With(zap.String("run_id", runID))
	ctx = observability.WithLogger(ctx, logger)
	start := m.clock.Now()
	logger.Info("sweep started", zap.Strings("locations", locations))

	outcomes := make([]models.Outcome, 0, len(locations))
	for _, location := range locations {
		outcome := m.process(ctx, location)
		outcomes = append(outcomes, outcome)
		observability.OutcomesTotal.WithLabelValues(string(outcome.Status)).Inc()
		fmt.Fprintln(m.out, SummaryLine(outcome))
		m.publish(ctx, runID, outcome)
	}

	elapsed := m.clock.Since(start)
	observability.SweepDuration.Observe(elapsed.Seconds())
	observability.LastSweepTimestamp.Set(float64(m.clock.Now().Unix()))
	logger.Info("sweep finished", zap.Int("locations", len(locations)), zap.Duration("duration", elapsed))
	return outcomes
}

func (m *Monitor) process(ctx context.Context, location string) models.Outcome {
	logger := observability.LoggerFromContext(ctx, m.logger).With(zap.String("location", location))
	outcome := models.Outcome{Location: location}

	sample, err := m.fetcher.FetchWeather(ctx, location)
	if err != nil {
		logger.Error("location skipped: data acquisition failed", zap.Error(err))
		outcome.Status = models.StatusAcquisitionFailed
		outcome.Err = err
		return outcome
	}
	outcome.Sample = &sample

	assessment, err := m.assessor.Assess(sample)
	if err != nil {
		logger.Warn("location skipped: incomplete data", zap.Error(err))
		outcome.Status = models.StatusIncompleteData
		outcome.Err = err
		return outcome
	}
	outcome.Assessment = &assessment
	logger.Info("prediction made", zap.String("level", string(assessment.Level)), zap.Float64("probability", assessment.Probability))

	if !assessment.High() {
		outcome.Status = models.StatusLowRisk
		return outcome
	}

	if err := m.notifier.SendAlert(ctx, location, sample, assessment, m.recipient); err != nil {
		logger.Error("alert not delivered", zap.Error(err))
		outcome.Status = models.StatusNotificationFailed
		outcome.Err = err
		return outcome
	}
	outcome.Status = models.StatusAlertSent
	return outcome
}

func (m *Monitor) publish(ctx context.Context, runID string, outcome models.Outcome) {
	if m.publisher == nil {
		return
	}
	event := models.RiskEvent{
		RunID:      runID,
		Location:   outcome.Location,
		Status:     outcome.Status,
		Sample:     outcome.Sample,
		Assessment: outcome.Assessment,
		Error:      outcome.ErrorMessage(),
		Timestamp:  m.clock.Now().UTC(),
	}
	if err := m.publisher.Publish(ctx, event); err != nil {
		observability.EventPublishErrorsTotal.Inc()
		observability.LoggerFromContext(ctx, m.logger).Warn("risk event not published",
			zap.String("location", outcome.Location), zap.Error(err))
	}
}

// SummaryLine is the human-readable line printed for each processed location.
func SummaryLine(o models.Outcome) string {
	switch o.Status {
	case models.StatusAlertSent:
		return fmt.Sprintf("Alert sent for %s", o.Location)
	case models.StatusLowRisk:
		return fmt.Sprintf("No risk detected for %s", o.Location)
	case models.StatusIncompleteData:
		return fmt.Sprintf("Incomplete data for %s, risk not assessed", o.Location)
	case models.StatusNotificationFailed:
		return fmt.Sprintf("Risk detected for %s but the alert could not be sent", o.Location)
	default:
		return fmt.Sprintf("Failed to collect data for %s", o.Location)
	}
}
