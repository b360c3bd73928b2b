package models

import "time"

// RiskLevel is the binary label produced by the classifier.
type RiskLevel string

const (
	RiskHigh RiskLevel = "HIGH"
	RiskLow  RiskLevel = "LOW"
)

// RiskAssessment is the classifier output for a single sample.
type RiskAssessment struct {
	Level       RiskLevel `json:"level"`
	Probability float64   `json:"probability"` // estimated probability of the high-risk class
}

// High reports whether the assessment calls for an alert.
func (a RiskAssessment) High() bool {
	return a.Level == RiskHigh
}

// AlertMessage is a composed notification ready for delivery.
type AlertMessage struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

// OutcomeStatus describes how processing of one location ended.
type OutcomeStatus string

const (
	StatusAcquisitionFailed  OutcomeStatus = "acquisition_failed"
	StatusIncompleteData     OutcomeStatus = "incomplete_data"
	StatusLowRisk            OutcomeStatus = "low_risk"
	StatusAlertSent          OutcomeStatus = "alert_sent"
	StatusNotificationFailed OutcomeStatus = "notification_failed"
)

// Outcome is the per-location result of a sweep.
type Outcome struct {
	Location   string          `json:"location"`
	Status     OutcomeStatus   `json:"status"`
	Sample     *WeatherSample  `json:"sample,omitempty"`
	Assessment *RiskAssessment `json:"assessment,omitempty"`
	Err        error           `json:"-"`
}

// ErrorMessage returns the failure message, or "" for successful outcomes.
func (o Outcome) ErrorMessage() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// RiskEvent is the record published to the event sink for each outcome.
type RiskEvent struct {
	RunID      string          `json:"run_id"`
	Location   string          `json:"location"`
	Status     OutcomeStatus   `json:"status"`
	Sample     *WeatherSample  `json:"sample,omitempty"`
	Assessment *RiskAssessment `json:"assessment,omitempty"`
	Error      string          `json:"error,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}
