package notegen

import (
	"context"

	"github.com/clinscribe/backend/internal/domain/entities"
	"github.com/clinscribe/backend/internal/domain/providers"
)

// MockAdapter returns a canned SOAP note for local development
type MockAdapter struct{}

// NewMockAdapter creates a mock note generation provider
func NewMockAdapter() providers.NoteGenerationProvider {
	return &MockAdapter{}
}

// GenerateNote returns a deterministic note derived from the transcript
func (m *MockAdapter) GenerateNote(ctx context.Context, transcript string, utterances []entities.Utterance, patient *entities.PatientContext) (*entities.GeneratedNote, error) {
	return &entities.GeneratedNote{
		SOAPBody: map[string]interface{}{
			"subjective": map[string]interface{}{
				"chief_complaint":            "Persistent headache",
				"history_of_present_illness": "Headache for three days.",
			},
			"objective": map[string]interface{}{
				"observations": "Patient alert and oriented.",
			},
			"assessment": map[string]interface{}{
				"primary_assessment": "Tension headache, likely benign.",
			},
			"plan": map[string]interface{}{
				"treatment": "OTC analgesics, hydration, rest.",
				"follow_up": "Return if symptoms persist beyond one week.",
			},
		},
		RiskFlags: []string{},
	}, nil
}
