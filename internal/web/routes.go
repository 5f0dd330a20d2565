package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/web/handlers"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	// Create handlers
	enrollHandler := handlers.NewEnrollHandler(s.deps.Service)
	recognizeHandler := handlers.NewRecognizeHandler(s.deps.Service)
	studentsHandler := handlers.NewStudentsHandler(s.deps.Students, s.deps.Index)
	attendanceHandler := handlers.NewAttendanceHandler(s.deps.Records, s.deps.Recorder)
	statsHandler := handlers.NewStatsHandler(s.deps.Students, s.deps.Records, s.deps.Queue, s.deps.Recorder)
	syncHandler := handlers.NewSyncHandler(s.deps.Syncer)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireToken(s.config.Server.AuthToken))

		// Kiosk
		r.Post("/recognize", recognizeHandler.Recognize)

		// Enrollment and roster
		r.Post("/enroll", enrollHandler.Enroll)
		r.Put("/students/{code}/photos", enrollHandler.Reenroll)
		r.Get("/students", studentsHandler.List)
		r.Get("/students/{code}", studentsHandler.Get)
		r.Delete("/students/{code}", studentsHandler.Deactivate)

		// Attendance reports
		r.Get("/attendance", attendanceHandler.ListByDate)
		r.Get("/students/{code}/attendance", attendanceHandler.ListByStudent)

		// Dashboard
		r.Get("/stats", statsHandler.Get)

		// District export
		r.Post("/sync", syncHandler.Trigger)
	})
}
