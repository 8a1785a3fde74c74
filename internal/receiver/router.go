// Vantage - Screen Recording Capture and Ingestion Pipeline
// Copyright 2026 Vantage Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vantage-rec/vantage

package receiver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vantage-rec/vantage/internal/middleware"
)

// Router wires the receiver's endpoints into a chi handler.
//
// POST ingest is bearer-gated and rate limited per remote IP; the GET
// endpoints are unauthenticated operator-local tooling and only get CORS
// plus metrics instrumentation.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)

	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(h.cfg.RateLimitReqs, h.cfg.RateLimitWindow))
		r.Use(middleware.BearerAuth(h.cfg.Token))
		r.Post("/", h.Ingest)
	})

	r.Group(func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: h.cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet},
		}))
		r.Get("/health", h.Health)
		r.Get("/segments", h.Segments)
		r.Get("/merge", h.Merge)
		r.Get("/merge-all", h.MergeAll)
		r.Get("/repair-all", h.RepairAll)
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	})

	return r
}
