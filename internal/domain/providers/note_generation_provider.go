package providers

import (
	"context"

	"github.com/clinscribe/backend/internal/domain/entities"
)

// NoteGenerationProvider defines the interface for external structured-note
// generation services (Gemini, OpenAI, etc.)
type NoteGenerationProvider interface {
	// GenerateNote produces a structured SOAP note plus risk flags from a
	// transcript, its speaker turns, and patient context
	GenerateNote(ctx context.Context, transcript string, utterances []entities.Utterance, patient *entities.PatientContext) (*entities.GeneratedNote, error)
}
