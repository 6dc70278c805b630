package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/clinscribe/backend/internal/domain/entities"
	"github.com/clinscribe/backend/internal/domain/repositories"
	"github.com/clinscribe/backend/internal/infrastructure/observability"
)

// PatientContextService derives the lightweight patient context handed to
// note generation. Resolution is best-effort: personalization is an
// enhancement, so a missing or unreadable profile yields a default context
// instead of failing the pipeline.
type PatientContextService struct {
	profileRepo repositories.PatientProfileRepository
	now         func() time.Time
}

// NewPatientContextService creates a new patient context service
func NewPatientContextService(profileRepo repositories.PatientProfileRepository) *PatientContextService {
	return &PatientContextService{
		profileRepo: profileRepo,
		now:         time.Now,
	}
}

// Resolve builds the context for a patient, fresh on every call
func (s *PatientContextService) Resolve(ctx context.Context, patientID string) *entities.PatientContext {
	patientCtx := &entities.PatientContext{Age: entities.AgeUnknown}

	profile, err := s.profileRepo.GetByUserID(ctx, patientID)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().
			Err(err).
			Str("patient_id", patientID).
			Msg("patient profile unavailable, using default context")
		return patientCtx
	}

	patientCtx.FirstName = profile.FirstName
	patientCtx.LastName = profile.LastName
	patientCtx.Gender = profile.Gender
	if profile.DateOfBirth != nil {
		patientCtx.Age = ageAt(*profile.DateOfBirth, s.now())
	}
	patientCtx.Notes = buildNotes(profile)

	return patientCtx
}

// ageAt computes whole years since the last birthday
func ageAt(dateOfBirth, now time.Time) int {
	age := now.Year() - dateOfBirth.Year()
	if now.Month() < dateOfBirth.Month() ||
		(now.Month() == dateOfBirth.Month() && now.Day() < dateOfBirth.Day()) {
		age--
	}
	return age
}

func buildNotes(profile *entities.PatientProfile) string {
	var parts []string
	if profile.City != "" || profile.State != "" {
		parts = append(parts, fmt.Sprintf("Address: %s, %s", profile.City, profile.State))
	}
	if profile.MedicalHistory != "" {
		parts = append(parts, fmt.Sprintf("Medical history: %s", profile.MedicalHistory))
	}
	return strings.Join(parts, " | ")
}
