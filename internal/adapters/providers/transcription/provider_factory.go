package transcription

import (
	"fmt"

	"github.com/clinscribe/backend/internal/domain/providers"
	"github.com/clinscribe/backend/internal/infrastructure/observability"
	"github.com/clinscribe/backend/pkg/config"
)

// NewTranscriptionProvider creates the configured transcription provider
func NewTranscriptionProvider(cfg *config.TranscriptionConfig, metrics *observability.Metrics) (providers.TranscriptionProvider, error) {
	switch cfg.Provider {
	case "assemblyai":
		return NewAssemblyAIAdapter(cfg, metrics)
	case "mock", "":
		return NewMockAdapter(), nil
	default:
		return nil, fmt.Errorf("unknown transcription provider: %s", cfg.Provider)
	}
}
