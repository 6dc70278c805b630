package transcription

import (
	"context"

	"github.com/clinscribe/backend/internal/domain/entities"
	"github.com/clinscribe/backend/internal/domain/providers"
)

// MockAdapter returns a canned transcript for local development
type MockAdapter struct{}

// NewMockAdapter creates a mock transcription provider
func NewMockAdapter() providers.TranscriptionProvider {
	return &MockAdapter{}
}

// Transcribe returns a deterministic two-speaker transcript
func (m *MockAdapter) Transcribe(ctx context.Context, audioURL string) (*entities.TranscriptResult, error) {
	confidence := 0.95
	return &entities.TranscriptResult{
		Text:       "Doctor: How have you been feeling? Patient: I've had a persistent headache for three days.",
		Confidence: &confidence,
		Utterances: []entities.Utterance{
			{Speaker: "A", Text: "How have you been feeling?", StartMs: 0, EndMs: 2400, Confidence: 0.97},
			{Speaker: "B", Text: "I've had a persistent headache for three days.", StartMs: 2600, EndMs: 6100, Confidence: 0.93},
		},
	}, nil
}
