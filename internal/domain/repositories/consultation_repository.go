package repositories

import (
	"context"

	"github.com/clinscribe/backend/internal/domain/entities"
)

// ConsultationRepository defines the interface for consultation data operations
type ConsultationRepository interface {
	// Create creates a new consultation
	Create(ctx context.Context, consultation *entities.Consultation) error

	// GetByID retrieves a consultation by ID
	GetByID(ctx context.Context, id string) (*entities.Consultation, error)

	// TransitionStatus atomically moves a consultation from one status to
	// another. It returns false when the consultation was not in the expected
	// status, which is how concurrent pipeline runs detect a lost claim.
	TransitionStatus(ctx context.Context, id string, from, to entities.ConsultationStatus) (bool, error)

	// CompleteWithNote persists the generated note and marks the consultation
	// completed in a single transaction. Returns a conflict error if the
	// consultation is no longer in progress.
	CompleteWithNote(ctx context.Context, consultationID string, note *entities.SOAPNote) error

	// ListByPatient retrieves consultations for a patient
	ListByPatient(ctx context.Context, patientID string, filter ConsultationFilter) ([]*entities.Consultation, error)
}

// ConsultationFilter defines filters for listing consultations
type ConsultationFilter struct {
	Status entities.ConsultationStatus
	Limit  int
	Offset int
}

// AudioFileRepository defines the interface for audio file data operations
type AudioFileRepository interface {
	// Create creates a new audio file record
	Create(ctx context.Context, audio *entities.AudioFile) error

	// GetByConsultation retrieves the audio file for a consultation
	GetByConsultation(ctx context.Context, consultationID string) (*entities.AudioFile, error)

	// SaveTranscription writes the transcript text for an audio file
	SaveTranscription(ctx context.Context, id string, transcription string) error
}

// SOAPNoteRepository defines the interface for SOAP note data operations
type SOAPNoteRepository interface {
	// Create inserts a new note record
	Create(ctx context.Context, note *entities.SOAPNote) error

	// GetLatestByConsultation retrieves the most recent note for a consultation
	GetLatestByConsultation(ctx context.Context, consultationID string) (*entities.SOAPNote, error)

	// ListByConsultation retrieves all notes for a consultation, newest first
	ListByConsultation(ctx context.Context, consultationID string) ([]*entities.SOAPNote, error)
}

// PatientProfileRepository defines the interface for patient profile reads
type PatientProfileRepository interface {
	// GetByUserID retrieves the profile for a patient user
	GetByUserID(ctx context.Context, userID string) (*entities.PatientProfile, error)

	// Upsert creates or updates a patient profile
	Upsert(ctx context.Context, profile *entities.PatientProfile) error
}
