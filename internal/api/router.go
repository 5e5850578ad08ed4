// Feeflow - Fee Command Fan-Out and Charging Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feeflow

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/feeflow/internal/config"
	"github.com/tomtom215/feeflow/internal/logging"
	"github.com/tomtom215/feeflow/internal/metrics"
)

// NewRouter assembles the Chi router for the fee API.
func NewRouter(h *Handlers, cfg *config.APIConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(requestContext)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/fee", func(r chi.Router) {
			r.Use(rateLimit(cfg))
			r.Post("/init", h.InitFee)
			r.Put("/update", h.UpdateFee)
			r.Get("/commands/{code}", h.GetFeeCommand)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// requestContext tags every request with an ID, echoed in the X-Request-ID
// response header, so log lines and responses for one request correlate.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = logging.GenerateRequestID()
		}
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(logging.ContextWithRequestID(r.Context(), requestID)))
	})
}

// requestLogger logs one line per request with its processing time and
// records the request metrics.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		// The route pattern keeps metric cardinality bounded where paths
		// embed command codes.
		endpoint := chi.RouteContext(r.Context()).RoutePattern()
		if endpoint == "" {
			endpoint = r.URL.Path
		}

		elapsed := time.Since(start)
		metrics.ObserveAPIRequest(endpoint, r.Method, ww.Status(), start)
		logger := logging.Ctx(r.Context())
		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", elapsed).
			Msg("Request handled")
	})
}

// rateLimit returns the per-IP rate limiting middleware, or a no-op when
// disabled.
func rateLimit(cfg *config.APIConfig) func(http.Handler) http.Handler {
	if cfg == nil || cfg.RateLimitDisabled {
		return func(next http.Handler) http.Handler { return next }
	}

	requests := cfg.RateLimitRequests
	if requests <= 0 {
		requests = 100
	}
	window := cfg.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	return httprate.LimitByIP(requests, window)
}
