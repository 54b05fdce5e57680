// Package api exposes the workshop engine over HTTP.
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dschwags/Prompt-Lab-sub000/internal/metrics"
	"github.com/dschwags/Prompt-Lab-sub000/internal/workshop"
	"github.com/dschwags/Prompt-Lab-sub000/pkg/models"
)

type Options struct {
	Engine      *workshop.Engine
	Synthesizer *workshop.Synthesizer
	Registry    *models.ModelRegistry
	// SynthesisModel is used when a synthesize request names no model.
	SynthesisModel string
}

// NewRouter creates the chi router with all routes and middleware.
func NewRouter(opts Options) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	h := &WorkshopHandler{
		engine:         opts.Engine,
		synth:          opts.Synthesizer,
		registry:       opts.Registry,
		synthesisModel: opts.SynthesisModel,
	}

	r.Get("/health", Health)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/models", h.Models)

	r.Route("/session", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Post("/", h.Start)
		r.Delete("/", h.Reset)
	})

	r.Post("/rounds", h.Round)
	r.Post("/winner", h.Winner)
	r.Post("/lock", h.Lock)
	r.Post("/checkpoint", h.Checkpoint)
	r.Post("/replace", h.Replace)
	r.Post("/feedback", h.Feedback)
	r.Post("/decide", h.Decide)
	r.Post("/synthesize", h.Synthesize)
	r.Get("/export", h.Export)

	return r
}
