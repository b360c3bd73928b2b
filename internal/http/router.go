package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/disaster-alert/internal/observability"
	"github.com/kjstillabower/disaster-alert/internal/traffic"
)

// RouterConfig carries the middleware settings for NewRouter.
type RouterConfig struct {
	Logger         *zap.Logger
	Limiter        *rate.Limiter // nil disables rate limiting
	RequestTimeout time.Duration // applied to /risk only; sweeps run to completion
	Traffic        *traffic.Tracker
}

// NewRouter wires the handler's routes behind correlation ID and metrics middleware.
// /risk and /sweep share the rate limiter.
func NewRouter(h *Handler, cfg RouterConfig) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(cfg.Logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	limited := RateLimitMiddleware(cfg.Limiter, cfg.Traffic)

	riskRouter := router.PathPrefix("/risk").Subrouter()
	riskRouter.Use(limited)
	if cfg.RequestTimeout > 0 {
		riskRouter.Use(TimeoutMiddleware(cfg.RequestTimeout))
	}
	riskRouter.HandleFunc("/{location}", h.GetRisk).Methods(http.MethodGet)

	sweepRouter := router.Path("/sweep").Subrouter()
	sweepRouter.Use(limited)
	sweepRouter.HandleFunc("", h.PostSweep).Methods(http.MethodPost)

	return router
}
