package providers

import (
	"context"

	"github.com/clinscribe/backend/internal/domain/entities"
)

// TranscriptionProvider defines the interface for external speech-to-text
// services (AssemblyAI, Deepgram, etc.). Transcription is long-running and
// roughly proportional to audio length; implementations must honor context
// cancellation while polling.
type TranscriptionProvider interface {
	// Transcribe submits the referenced audio and blocks until a transcript
	// with speaker-attributed utterances is available
	Transcribe(ctx context.Context, audioURL string) (*entities.TranscriptResult, error)
}
