package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/rhodrigo081/doare.back/internal/charge"
	"github.com/rhodrigo081/doare.back/internal/donation"
	"github.com/rhodrigo081/doare.back/internal/notification"
	"github.com/rhodrigo081/doare.back/internal/transport/middleware"
	"github.com/rhodrigo081/doare.back/internal/transport/swagger"
)

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, chargeHandler *charge.Handler, webhookHandler *donation.WebhookHandler, notificationHandler *notification.Handler, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	// Apply global middleware
	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		// Health check route
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		r.Route("/donations", func(dr chi.Router) {
			// request/response body logging stays off the event stream: the
			// buffering writer wrapper would break SSE flushing
			dr.Group(func(gr chi.Router) {
				gr.Use(middleware.LoggingMiddleware(logger))

				if chargeHandler != nil {
					gr.Post("/charge", chargeHandler.CreateCharge)
				}

				if webhookHandler != nil {
					gr.Post("/webhook", webhookHandler.HandlePixWebhook)
					gr.Get("/", webhookHandler.ListDonations)
				}
			})

			if notificationHandler != nil {
				// long-lived SSE stream, one subscriber per txid
				dr.Get("/events/{txid}", notificationHandler.StreamDonationEvents)
			}
		})
	})
}
