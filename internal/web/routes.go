package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	// Create handlers
	identitiesHandler := handlers.NewIdentitiesHandler(s.store, s.embedder)
	observeHandler := handlers.NewObserveHandler(s.coordinator)
	attendanceHandler := handlers.NewAttendanceHandler(s.ledger)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Identities
		r.Get("/identities", identitiesHandler.List)
		r.Post("/identities", identitiesHandler.Enroll)

		// Observations
		r.Post("/observe", observeHandler.Observe)
		r.Post("/session/reset", observeHandler.ResetSession)

		// Attendance
		r.Get("/attendance", attendanceHandler.List)
		r.Get("/attendance/export", attendanceHandler.Export)
	})
}
