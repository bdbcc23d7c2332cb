package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/nimbus/internal/observability"
)

// NewRouter wires the dashboard, health and metrics routes. Routes that can call upstream (a
// page load may run the mount search) share the rate limiter; every dashboard route runs under
// requestTimeout.
func NewRouter(h *Handler, logger *zap.Logger, limiter *rate.Limiter, requestTimeout time.Duration) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	timed := TimeoutMiddleware(requestTimeout)
	limited := func(fn http.HandlerFunc) http.Handler {
		return RateLimitMiddleware(limiter)(timed(fn))
	}
	router.Handle("/", limited(h.GetDashboard)).Methods(http.MethodGet)
	router.Handle("/api/dashboard", limited(h.GetDashboardJSON)).Methods(http.MethodGet)
	router.Handle("/search", limited(h.PostSearch)).Methods(http.MethodPost)
	router.Handle("/unit", timed(http.HandlerFunc(h.PostUnit))).Methods(http.MethodPost)
	return router
}
