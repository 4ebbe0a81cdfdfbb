package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/scanin/scanin/internal/web/handlers"
	"github.com/scanin/scanin/internal/web/middleware"
)

func (s *Server) setupRoutes(deps Deps) {
	// Create handlers
	authHandler := handlers.NewAuthHandler(deps.Admins, deps.Issuer)
	scanHandler := handlers.NewScanHandler(deps.Trainees, deps.Service, deps.Policies, deps.Extractor, deps.Gate)
	traineesHandler := handlers.NewTraineesHandler(deps.Trainees, deps.Extractor, deps.EmbeddingDim)
	attendanceHandler := handlers.NewAttendanceHandler(deps.Attendance, deps.Service)
	policyHandler := handlers.NewPolicyHandler(deps.Policies)
	eventsHandler := handlers.NewEventsHandler(deps.Broadcaster)
	reportsHandler := handlers.NewReportsHandler(deps.Attendance)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", authHandler.Login)

		// Kiosk endpoints. The scan terminal runs unattended, so these take
		// no token; recognition itself is the gate.
		r.Post("/attendance/checkin", scanHandler.Checkin)
		r.Post("/attendance/checkout", scanHandler.Checkout)
		r.Post("/attendance/identify", scanHandler.Identify)
		r.Post("/trainees/register-self", traineesHandler.RegisterSelf)
		r.Get("/attendance/events", eventsHandler.Stream)

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(deps.Issuer))

			// Attendance ledger
			r.Get("/attendance", attendanceHandler.List)
			r.Patch("/attendance/{id}", attendanceHandler.Edit)

			// Trainees
			r.Get("/trainees", traineesHandler.List)
			r.Post("/trainees", traineesHandler.RegisterAdmin)
			r.Get("/trainees/{id}", traineesHandler.Get)
			r.Delete("/trainees/{id}", traineesHandler.Delete)
			r.Get("/trainees/{id}/templates", traineesHandler.Templates)
			r.Post("/trainees/{id}/templates", traineesHandler.AddTemplate)

			// Scan policy
			r.Get("/policy", policyHandler.Get)
			r.Patch("/policy", policyHandler.Update)

			// Reports
			r.Get("/reports/export", reportsHandler.Export)
		})
	})
}
