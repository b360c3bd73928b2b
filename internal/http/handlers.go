package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/disaster-alert/internal/lifecycle"
	"github.com/kjstillabower/disaster-alert/internal/models"
	"github.com/kjstillabower/disaster-alert/internal/monitor"
	"github.com/kjstillabower/disaster-alert/internal/observability"
	"github.com/kjstillabower/disaster-alert/internal/risk"
	"github.com/kjstillabower/disaster-alert/internal/traffic"
	"github.com/kjstillabower/disaster-alert/internal/validation"
)

// Sweeper runs one full pass over a list of locations.
type Sweeper interface {
	Run(ctx context.Context, locations []string) []models.Outcome
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	fetcher   monitor.Fetcher
	assessor  monitor.Assessor
	sweeper   Sweeper
	locations []string
	cachePing func(ctx context.Context) error
	logger    *zap.Logger

	traffic          *traffic.Tracker
	degradedWindow   time.Duration
	degradedErrorPct int

	sweepMu sync.Mutex

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithCachePing adds a cache reachability check to GET /health.
func WithCachePing(ping func(ctx context.Context) error) HandlerOption {
	return func(h *Handler) { h.cachePing = ping }
}

// WithTraffic records /risk acquisition outcomes in tracker. GET /health reports degraded when
// failures reach errorPct percent of acquisitions within window; errorPct 0 only records.
func WithTraffic(tracker *traffic.Tracker, window time.Duration, errorPct int) HandlerOption {
	return func(h *Handler) {
		h.traffic = tracker
		h.degradedWindow = window
		h.degradedErrorPct = errorPct
	}
}

// WithHandlerLogger sets the fallback logger used when the request context carries none.
func WithHandlerLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler returns a new Handler. locations is the list POST /sweep walks.
func NewHandler(fetcher monitor.Fetcher, assessor monitor.Assessor, sweeper Sweeper, locations []string, opts ...HandlerOption) *Handler {
	h := &Handler{
		fetcher:   fetcher,
		assessor:  assessor,
		sweeper:   sweeper,
		locations: append([]string(nil), locations...),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RiskResponse is the body of a successful GET /risk/{location}.
type RiskResponse struct {
	Location   string                 `json:"location"`
	Sample     models.WeatherSample   `json:"sample"`
	Assessment *models.RiskAssessment `json:"assessment,omitempty"`
}

// GetRisk handles GET /risk/{location}: acquire and assess without notifying anyone.
func (h *Handler) GetRisk(w http.ResponseWriter, r *http.Request) {
	location, err := validation.ValidateLocation(mux.Vars(r)["location"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION", err.Error())
		return
	}

	sample, err := h.fetcher.FetchWeather(r.Context(), location)
	if err != nil {
		h.traffic.RecordFailure()
		writeServiceError(w, r, err)
		return
	}
	h.traffic.RecordSuccess()

	assessment, err := h.assessor.Assess(sample)
	if err != nil {
		if errors.Is(err, risk.ErrIncompleteData) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"error":    errorBody(r, "INCOMPLETE_DATA", "Weather data incomplete, risk not assessed"),
				"location": location,
				"sample":   sample,
			})
			return
		}
		h.log(r).Error("assessment failed", zap.String("location", location), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", "Unable to assess risk")
		return
	}

	writeJSON(w, http.StatusOK, RiskResponse{Location: location, Sample: sample, Assessment: &assessment})
}

// outcomeResponse is the wire form of a models.Outcome.
type outcomeResponse struct {
	Location   string                 `json:"location"`
	Status     models.OutcomeStatus   `json:"status"`
	Summary    string                 `json:"summary"`
	Sample     *models.WeatherSample  `json:"sample,omitempty"`
	Assessment *models.RiskAssessment `json:"assessment,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// SweepResponse is the body of POST /sweep.
type SweepResponse struct {
	Outcomes []outcomeResponse `json:"outcomes"`
	Duration string            `json:"duration"`
}

// PostSweep handles POST /sweep. Only one sweep runs at a time; a concurrent request gets 409.
func (h *Handler) PostSweep(w http.ResponseWriter, r *http.Request) {
	if !h.sweepMu.TryLock() {
		writeError(w, r, http.StatusConflict, "SWEEP_IN_PROGRESS", "A sweep is already running")
		return
	}
	defer h.sweepMu.Unlock()

	start := time.Now()
	// The sweep outlives the request so a dropped client cannot cut it short.
	outcomes := h.sweeper.Run(context.WithoutCancel(r.Context()), h.locations)

	resp := SweepResponse{
		Outcomes: make([]outcomeResponse, 0, len(outcomes)),
		Duration: time.Since(start).String(),
	}
	for _, o := range outcomes {
		resp.Outcomes = append(resp.Outcomes, outcomeResponse{
			Location:   o.Location,
			Status:     o.Status,
			Summary:    monitor.SummaryLine(o),
			Sample:     o.Sample,
			Assessment: o.Assessment,
			Error:      o.ErrorMessage(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// healthResult holds the computed health status and the reason for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result, checks := h.computeHealthStatus(r.Context())

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "disaster-alert",
		"checks":    checks,
		"locations": len(h.locations),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.traffic != nil {
		resp["traffic"] = h.traffic.Snapshot(h.degradedWindow)
	}
	writeJSON(w, result.statusCode, resp)
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > cache unreachable > acquisition error rate > healthy.
func (h *Handler) computeHealthStatus(ctx context.Context) (healthResult, map[string]string) {
	checks := make(map[string]string)
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}, checks
	}
	if h.cachePing != nil {
		if err := h.cachePing(ctx); err != nil {
			checks["cache"] = "unhealthy"
			return healthResult{"degraded", http.StatusServiceUnavailable, "cache_unreachable"}, checks
		}
		checks["cache"] = "healthy"
	}
	if h.traffic != nil && h.degradedErrorPct > 0 {
		counts := h.traffic.Snapshot(h.degradedWindow)
		if counts.Successes+counts.Failures > 0 && counts.ErrorPct() >= h.degradedErrorPct {
			checks["weatherSource"] = "unhealthy"
			return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}, checks
		}
		checks["weatherSource"] = "healthy"
	}
	return healthResult{"healthy", http.StatusOK, ""}, checks
}

func (h *Handler) log(r *http.Request) *zap.Logger {
	return observability.LoggerFromContext(r.Context(), h.logger)
}

// writeJSON writes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errorBody(r *http.Request, code, message string) map[string]string {
	return map[string]string{
		"code":      code,
		"message":   message,
		"requestId": observability.CorrelationID(r.Context()),
	}
}

// writeError writes the standard error envelope: code, message and the request's correlation ID.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": errorBody(r, code, message),
	})
}

// writeServiceError writes 503 for acquisition failures. The cause is logged at DEBUG; the
// service layer already logged it with its category.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "Unable to fetch weather data")
	observability.LoggerFromContext(r.Context(), nil).Debug("upstream error", zap.Error(err))
}
