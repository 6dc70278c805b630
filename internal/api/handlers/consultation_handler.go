package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/clinscribe/backend/internal/domain/entities"
	"github.com/clinscribe/backend/internal/infrastructure/observability"
	apperrors "github.com/clinscribe/backend/pkg/errors"
)

// ConsultationProcessor defines the interface for pipeline operations
type ConsultationProcessor interface {
	Process(ctx context.Context, consultationID string)
	Reprocess(ctx context.Context, consultationID string) error
}

// ConsultationQueryService defines the interface for consultation reads
type ConsultationQueryService interface {
	GetConsultation(ctx context.Context, id string) (*entities.Consultation, error)
	ListNotes(ctx context.Context, consultationID string) ([]*entities.SOAPNote, error)
	GetLatestNote(ctx context.Context, consultationID string) (*entities.SOAPNote, error)
}

// ConsultationHandler handles consultation processing requests
type ConsultationHandler struct {
	processor ConsultationProcessor
	queries   ConsultationQueryService
}

// NewConsultationHandler creates a new consultation handler
func NewConsultationHandler(processor ConsultationProcessor, queries ConsultationQueryService) *ConsultationHandler {
	return &ConsultationHandler{
		processor: processor,
		queries:   queries,
	}
}

// TriggerProcessing handles POST /api/v1/consultations/{id}/process.
// The pipeline runs as a background task; outcome is observable only through
// the consultation status.
func (h *ConsultationHandler) TriggerProcessing(w http.ResponseWriter, r *http.Request) {
	consultationID := r.PathValue("id")
	if consultationID == "" {
		respondWithError(w, http.StatusBadRequest, "consultation ID is required")
		return
	}

	// Detach from the request context: the run must outlive this response.
	go h.processor.Process(context.WithoutCancel(r.Context()), consultationID)

	respondWithJSON(w, http.StatusAccepted, map[string]string{
		"consultation_id": consultationID,
		"message":         "processing started",
	})
}

// TriggerReprocessing handles POST /api/v1/consultations/{id}/reprocess
func (h *ConsultationHandler) TriggerReprocessing(w http.ResponseWriter, r *http.Request) {
	consultationID := r.PathValue("id")
	if consultationID == "" {
		respondWithError(w, http.StatusBadRequest, "consultation ID is required")
		return
	}

	ctx := context.WithoutCancel(r.Context())
	go func() {
		if err := h.processor.Reprocess(ctx, consultationID); err != nil {
			observability.LoggerFromContext(ctx).Error().
				Err(err).
				Str("consultation_id", consultationID).
				Msg("reprocessing rejected")
		}
	}()

	respondWithJSON(w, http.StatusAccepted, map[string]string{
		"consultation_id": consultationID,
		"message":         "reprocessing started",
	})
}

// GetConsultation handles GET /api/v1/consultations/{id}
func (h *ConsultationHandler) GetConsultation(w http.ResponseWriter, r *http.Request) {
	consultationID := r.PathValue("id")
	if consultationID == "" {
		respondWithError(w, http.StatusBadRequest, "consultation ID is required")
		return
	}

	consultation, err := h.queries.GetConsultation(r.Context(), consultationID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, consultation)
}

// ListNotes handles GET /api/v1/consultations/{id}/notes
func (h *ConsultationHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	consultationID := r.PathValue("id")
	if consultationID == "" {
		respondWithError(w, http.StatusBadRequest, "consultation ID is required")
		return
	}

	notes, err := h.queries.ListNotes(r.Context(), consultationID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"notes": notes,
		"count": len(notes),
	})
}

// GetLatestNote handles GET /api/v1/consultations/{id}/notes/latest
func (h *ConsultationHandler) GetLatestNote(w http.ResponseWriter, r *http.Request) {
	consultationID := r.PathValue("id")
	if consultationID == "" {
		respondWithError(w, http.StatusBadRequest, "consultation ID is required")
		return
	}

	note, err := h.queries.GetLatestNote(r.Context(), consultationID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, note)
}

// Helper functions
func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

func respondWithAppError(w http.ResponseWriter, err error) {
	if appErr, ok := err.(*apperrors.AppError); ok {
		switch appErr.Type {
		case apperrors.ErrorTypeNotFound:
			respondWithError(w, http.StatusNotFound, appErr.Message)
			return
		case apperrors.ErrorTypeValidation:
			respondWithError(w, http.StatusBadRequest, appErr.Message)
			return
		case apperrors.ErrorTypeConflict:
			respondWithError(w, http.StatusConflict, appErr.Message)
			return
		case apperrors.ErrorTypeExternal:
			respondWithError(w, http.StatusBadGateway, appErr.Message)
			return
		}
	}
	respondWithError(w, http.StatusInternalServerError, err.Error())
}
