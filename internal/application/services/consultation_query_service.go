package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/clinscribe/backend/internal/domain/entities"
	"github.com/clinscribe/backend/internal/domain/providers"
	"github.com/clinscribe/backend/internal/domain/repositories"
	"github.com/clinscribe/backend/internal/infrastructure/observability"
)

const consultationCacheTTLSeconds = 5

// ConsultationQueryService serves the read side of the processing API.
// Consultation status reads are briefly cached because UIs poll them while a
// pipeline run is underway; notes and patient context are never cached.
type ConsultationQueryService struct {
	consultationRepo repositories.ConsultationRepository
	noteRepo         repositories.SOAPNoteRepository
	cache            providers.CacheProvider
}

// NewConsultationQueryService creates a new consultation query service
func NewConsultationQueryService(
	consultationRepo repositories.ConsultationRepository,
	noteRepo repositories.SOAPNoteRepository,
	cache providers.CacheProvider,
) *ConsultationQueryService {
	return &ConsultationQueryService{
		consultationRepo: consultationRepo,
		noteRepo:         noteRepo,
		cache:            cache,
	}
}

// GetConsultation retrieves a consultation, preferring the short-lived cache
func (s *ConsultationQueryService) GetConsultation(ctx context.Context, id string) (*entities.Consultation, error) {
	cacheKey := fmt.Sprintf("consultation:status:%s", id)

	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var consultation entities.Consultation
			if err := json.Unmarshal(data, &consultation); err == nil {
				return &consultation, nil
			}
		}
	}

	consultation, err := s.consultationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(consultation); err == nil {
			if err := s.cache.Set(ctx, cacheKey, data, consultationCacheTTLSeconds); err != nil {
				observability.LoggerFromContext(ctx).Warn().
					Err(err).
					Str("consultation_id", id).
					Msg("failed to cache consultation")
			}
		}
	}

	return consultation, nil
}

// ListNotes retrieves the note history for a consultation, newest first.
// Only a completed status implies the latest note is a finished artifact.
func (s *ConsultationQueryService) ListNotes(ctx context.Context, consultationID string) ([]*entities.SOAPNote, error) {
	return s.noteRepo.ListByConsultation(ctx, consultationID)
}

// GetLatestNote retrieves the most recent note for a consultation
func (s *ConsultationQueryService) GetLatestNote(ctx context.Context, consultationID string) (*entities.SOAPNote, error) {
	return s.noteRepo.GetLatestByConsultation(ctx, consultationID)
}
