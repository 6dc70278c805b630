package notegen

import (
	"fmt"

	"github.com/clinscribe/backend/internal/domain/providers"
	"github.com/clinscribe/backend/internal/infrastructure/observability"
	"github.com/clinscribe/backend/pkg/config"
)

// NewNoteGenerationProvider creates the configured note generation provider
func NewNoteGenerationProvider(cfg *config.NoteGenConfig, metrics *observability.Metrics) (providers.NoteGenerationProvider, error) {
	switch cfg.Provider {
	case "gemini":
		return NewGeminiAdapter(cfg, metrics)
	case "mock", "":
		return NewMockAdapter(), nil
	default:
		return nil, fmt.Errorf("unknown note generation provider: %s", cfg.Provider)
	}
}
