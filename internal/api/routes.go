package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	// No auth on this surface, so no credentialed CORS either.
	origins := h.corsOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", h.HealthCheck)

	// Provider event webhook (SNS posts here; outside /api)
	if h.webhook != nil {
		r.Post("/webhooks/ses", h.webhook)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/campaigns", func(r chi.Router) {
			r.Post("/", h.CreateCampaign)
			r.Get("/", h.ListCampaigns)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetCampaign)
				r.Delete("/", h.DeleteCampaign)

				// Lifecycle
				r.Post("/start", h.StartCampaign)
				r.Post("/pause", h.PauseCampaign)
				r.Post("/resume", h.ResumeCampaign)
				r.Post("/transition-day", h.TransitionDay)

				// Stats
				r.Get("/stats/realtime", h.GetRealtimeStats)
				r.Get("/analytics", h.GetDailyAnalytics)

				// Plans
				r.Route("/plan", func(r chi.Router) {
					r.Get("/", h.GetCampaignPlan)
					r.Get("/today", h.GetTodaysPlan)
					r.Get("/execution", h.GetCurrentExecutionPlan)
					r.Post("/regenerate", h.RegeneratePlan)
					r.Post("/simulate", h.SimulateDailyPlan)
				})

				// Sender identities
				r.Route("/senders", func(r chi.Router) {
					r.Post("/", h.AddSenderEmail)
					r.Put("/{email}", h.UpdateSenderEmail)
					r.Delete("/{email}", h.RemoveSenderEmail)
				})
			})
		})

		// Custom recipient lists
		r.Route("/lists", func(r chi.Router) {
			r.Get("/", h.ListRecipientLists)
			r.Post("/upload", h.UploadRecipientList)
			r.Delete("/{listID}", h.DeleteRecipientList)
		})

		r.Get("/queue/stats", h.GetQueueStats)
		r.Get("/events/stream", h.StreamEvents)
	})

	return r
}
