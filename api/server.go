/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/customers/*      Customer directory, readings, debt, reconnection
  /api/invoices/*       Invoice generation and inspection
  /api/payments/*       Settlement and pending-payment workflow
  /api/collections/*    Delinquency sweep
  /api/admin/*          Operational configuration

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Customer routes
		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.ListCustomers)
			r.Post("/", h.CreateCustomer)
			r.Get("/{id}", h.GetCustomer)
			r.Get("/{id}/invoices", h.GetCustomerInvoices)
			r.Get("/{id}/debt", h.GetCustomerDebt)
			r.Get("/{id}/history", h.GetCustomerHistory)
			r.Get("/{id}/plan", h.GetCustomerPlan)
			r.Post("/{id}/readings", h.SubmitReading)
			r.Post("/{id}/regularize", h.RegularizeCustomer)
			r.Post("/{id}/reconnect", h.ReconnectCustomer)
		})

		// Invoice routes
		r.Route("/invoices", func(r chi.Router) {
			r.Post("/generate", h.GenerateInvoice)
			r.Post("/generate-bulk", h.GenerateBulk)
			r.Get("/{id}", h.GetInvoice)
			r.Get("/{id}/charges", h.GetInvoiceCharges)
			r.Get("/{id}/payments", h.GetInvoicePayments)
			r.Post("/{id}/regenerate", h.RegenerateInvoice)
		})

		// Payment routes
		r.Route("/payments", func(r chi.Router) {
			r.Post("/", h.SettlePayment)
			r.Post("/begin", h.BeginPayment)
			r.Post("/{id}/approve", h.ApprovePayment)
			r.Post("/{id}/reject", h.RejectPayment)
		})

		// Collections routes
		r.Route("/collections", func(r chi.Router) {
			r.Post("/sweep", h.RunSweep)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Get("/config", h.GetConfig)
			r.Put("/config", h.UpdateConfig)
			r.Get("/tariff", h.GetTariff)
		})
	})

	return r
}
