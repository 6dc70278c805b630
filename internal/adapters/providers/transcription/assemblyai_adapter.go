package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/clinscribe/backend/internal/domain/entities"
	"github.com/clinscribe/backend/internal/infrastructure/observability"
	"github.com/clinscribe/backend/pkg/config"
	apperrors "github.com/clinscribe/backend/pkg/errors"
)

const defaultBaseURL = "https://api.assemblyai.com"

// AssemblyAIAdapter implements the TranscriptionProvider interface against
// the AssemblyAI v2 API. A transcript is submitted and then polled until the
// provider reports a terminal state.
type AssemblyAIAdapter struct {
	apiKey       string
	baseURL      string
	pollInterval time.Duration
	timeout      time.Duration
	httpClient   *http.Client
	metrics      *observability.Metrics
}

// NewAssemblyAIAdapter creates a new AssemblyAI transcription adapter
func NewAssemblyAIAdapter(cfg *config.TranscriptionConfig, metrics *observability.Metrics) (*AssemblyAIAdapter, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, errors.New("assemblyai api key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}

	return &AssemblyAIAdapter{
		apiKey:       cfg.APIKey,
		baseURL:      baseURL,
		pollInterval: pollInterval,
		timeout:      timeout,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		metrics: metrics,
	}, nil
}

type submitRequest struct {
	AudioURL      string `json:"audio_url"`
	SpeakerLabels bool   `json:"speaker_labels"`
	Punctuate     bool   `json:"punctuate"`
	FormatText    bool   `json:"format_text"`
}

type transcriptUtterance struct {
	Speaker    string  `json:"speaker"`
	Text       string  `json:"text"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float64 `json:"confidence"`
}

type transcriptEnvelope struct {
	ID         string                `json:"id"`
	Status     string                `json:"status"`
	Text       string                `json:"text"`
	Confidence *float64              `json:"confidence"`
	Error      string                `json:"error"`
	Utterances []transcriptUtterance `json:"utterances"`
}

// Transcribe submits the audio and polls until the transcript is ready
func (a *AssemblyAIAdapter) Transcribe(ctx context.Context, audioURL string) (*entities.TranscriptResult, error) {
	if audioURL == "" {
		return nil, apperrors.NewValidationError("audio url is required")
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	result, err := a.transcribe(ctx, audioURL)
	observability.RecordProviderCall(ctx, a.metrics, "assemblyai", time.Since(start), err)
	return result, err
}

func (a *AssemblyAIAdapter) transcribe(ctx context.Context, audioURL string) (*entities.TranscriptResult, error) {
	transcriptID, err := a.submit(ctx, audioURL)
	if err != nil {
		return nil, err
	}

	for {
		envelope, err := a.poll(ctx, transcriptID)
		if err != nil {
			return nil, err
		}

		switch envelope.Status {
		case "completed":
			return toTranscriptResult(envelope), nil
		case "error":
			return nil, apperrors.NewExternalError(
				fmt.Sprintf("transcription rejected by provider: %s", envelope.Error), nil)
		}

		select {
		case <-ctx.Done():
			return nil, apperrors.NewExternalError("transcription timed out", ctx.Err())
		case <-time.After(a.pollInterval):
		}
	}
}

func (a *AssemblyAIAdapter) submit(ctx context.Context, audioURL string) (string, error) {
	body, err := json.Marshal(submitRequest{
		AudioURL:      audioURL,
		SpeakerLabels: true,
		Punctuate:     true,
		FormatText:    true,
	})
	if err != nil {
		return "", apperrors.NewInternalError("failed to marshal transcript request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v2/transcript", bytes.NewReader(body))
	if err != nil {
		return "", apperrors.NewInternalError("failed to build transcript request", err)
	}
	req.Header.Set("Authorization", a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", apperrors.NewExternalError("failed to submit transcript", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apperrors.NewExternalError(
			fmt.Sprintf("transcript submission failed with status %d", resp.StatusCode), nil)
	}

	var envelope transcriptEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", apperrors.NewExternalError("failed to decode transcript submission", err)
	}
	if envelope.ID == "" {
		return "", apperrors.NewExternalError("transcript submission returned no id", nil)
	}

	return envelope.ID, nil
}

func (a *AssemblyAIAdapter) poll(ctx context.Context, transcriptID string) (*transcriptEnvelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/v2/transcript/"+transcriptID, nil)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build poll request", err)
	}
	req.Header.Set("Authorization", a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewExternalError("failed to poll transcript", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewExternalError(
			fmt.Sprintf("transcript poll failed with status %d", resp.StatusCode), nil)
	}

	var envelope transcriptEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, apperrors.NewExternalError("failed to decode transcript poll", err)
	}

	return &envelope, nil
}

func toTranscriptResult(envelope *transcriptEnvelope) *entities.TranscriptResult {
	result := &entities.TranscriptResult{
		Text:       envelope.Text,
		Confidence: envelope.Confidence,
	}
	for _, u := range envelope.Utterances {
		result.Utterances = append(result.Utterances, entities.Utterance{
			Speaker:    u.Speaker,
			Text:       u.Text,
			StartMs:    u.Start,
			EndMs:      u.End,
			Confidence: u.Confidence,
		})
	}
	return result
}
