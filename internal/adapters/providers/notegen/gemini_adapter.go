package notegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/clinscribe/backend/internal/domain/entities"
	"github.com/clinscribe/backend/internal/infrastructure/observability"
	"github.com/clinscribe/backend/pkg/config"
	apperrors "github.com/clinscribe/backend/pkg/errors"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// GeminiAdapter implements the NoteGenerationProvider interface against the
// Gemini generateContent API
type GeminiAdapter struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	metrics    *observability.Metrics
}

// NewGeminiAdapter creates a new Gemini note generation adapter
func NewGeminiAdapter(cfg *config.NoteGenConfig, metrics *observability.Metrics) (*GeminiAdapter, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-pro"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &GeminiAdapter{
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		metrics: metrics,
	}, nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent   `json:"contents"`
	SystemInstruction *geminiContent    `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type notePayload struct {
	SOAPNote  map[string]interface{} `json:"soap_note"`
	RiskFlags []string               `json:"risk_flags"`
}

// GenerateNote produces a structured SOAP note from a transcript
func (g *GeminiAdapter) GenerateNote(ctx context.Context, transcript string, utterances []entities.Utterance, patient *entities.PatientContext) (*entities.GeneratedNote, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, apperrors.NewValidationError("transcript is required")
	}

	payload := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: buildSOAPUserPrompt(transcript, utterances, patient)}}},
		},
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: soapSystemPrompt}},
		},
		GenerationConfig: &generationConfig{
			Temperature:      0.2,
			ResponseMimeType: "application/json",
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to marshal generation request", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build generation request", err)
	}
	req.Header.Set("x-goog-api-key", g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	observability.RecordProviderCall(ctx, g.metrics, "gemini", time.Since(start), err)
	if err != nil {
		return nil, apperrors.NewExternalError("note generation request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewExternalError(
			fmt.Sprintf("note generation failed with status %d", resp.StatusCode), nil)
	}

	var envelope geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, apperrors.NewExternalError("failed to decode generation response", err)
	}

	text := firstCandidateText(&envelope)
	if text == "" {
		return nil, apperrors.NewExternalError("generation response missing candidate text", nil)
	}

	parsed, err := parseNotePayload(text)
	if err != nil {
		return nil, apperrors.NewExternalError("failed to parse generated note", err)
	}

	return &entities.GeneratedNote{
		SOAPBody:  parsed.SOAPNote,
		RiskFlags: parsed.RiskFlags,
	}, nil
}

func firstCandidateText(envelope *geminiResponse) string {
	for _, candidate := range envelope.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				return part.Text
			}
		}
	}
	return ""
}

func parseNotePayload(text string) (*notePayload, error) {
	// Clean Markdown code blocks if present
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimSuffix(cleaned, "```")
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
	}
	cleaned = strings.TrimSpace(cleaned)

	var payload notePayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, err
	}
	if payload.SOAPNote == nil {
		return nil, errors.New("payload missing soap_note")
	}
	if payload.RiskFlags == nil {
		payload.RiskFlags = []string{}
	}

	return &payload, nil
}
