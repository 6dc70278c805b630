package routes

import (
	"net/http"

	"github.com/clinscribe/backend/internal/api/handlers"
	"github.com/clinscribe/backend/internal/api/middleware"
	"github.com/clinscribe/backend/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	consultationHandler *handlers.ConsultationHandler
	metrics             *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	consultationHandler *handlers.ConsultationHandler,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux: http.NewServeMux(),

		consultationHandler: consultationHandler,
		metrics:             metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Health check endpoint
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Consultation endpoints
	r.mux.HandleFunc("GET /api/v1/consultations/{id}", r.consultationHandler.GetConsultation)
	r.mux.HandleFunc("POST /api/v1/consultations/{id}/process", r.consultationHandler.TriggerProcessing)
	r.mux.HandleFunc("POST /api/v1/consultations/{id}/reprocess", r.consultationHandler.TriggerReprocessing)
	r.mux.HandleFunc("GET /api/v1/consultations/{id}/notes", r.consultationHandler.ListNotes)
	r.mux.HandleFunc("GET /api/v1/consultations/{id}/notes/latest", r.consultationHandler.GetLatestNote)

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.CORSMiddleware(handler)

	return handler
}
