package notegen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinscribe/backend/internal/domain/entities"
	"github.com/clinscribe/backend/pkg/config"
	apperrors "github.com/clinscribe/backend/pkg/errors"
)

func geminiTestConfig(baseURL string) *config.NoteGenConfig {
	return &config.NoteGenConfig{
		Provider: "gemini",
		APIKey:   "test-key",
		Model:    "gemini-2.5-pro",
		BaseURL:  baseURL,
	}
}

func candidateResponse(text string) map[string]interface{} {
	return map[string]interface{}{
		"candidates": []map[string]interface{}{
			{"content": map[string]interface{}{
				"parts": []map[string]interface{}{{"text": text}},
			}},
		},
	}
}

func TestGeminiAdapter_GenerateNote(t *testing.T) {
	patient := &entities.PatientContext{FirstName: "Ada", LastName: "Obi", Age: 34, Gender: "female"}
	utterances := []entities.Utterance{
		{Speaker: "A", Text: "What brings you in?"},
		{Speaker: "B", Text: "Chest tightness since yesterday."},
	}

	t.Run("parses note and risk flags", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
			assert.Contains(t, r.URL.Path, "gemini-2.5-pro:generateContent")

			var req map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			raw, _ := json.Marshal(req)
			assert.Contains(t, string(raw), "Chest tightness")
			assert.Contains(t, string(raw), "Ada")

			json.NewEncoder(w).Encode(candidateResponse(`{
				"soap_note": {
					"subjective": {"chief_complaint": "Chest tightness"},
					"assessment": {"primary_assessment": "Possible angina"}
				},
				"risk_flags": ["chest pain mentioned"]
			}`))
		}))
		defer server.Close()

		adapter, err := NewGeminiAdapter(geminiTestConfig(server.URL), nil)
		require.NoError(t, err)

		note, err := adapter.GenerateNote(context.Background(),
			"What brings you in? Chest tightness since yesterday.", utterances, patient)

		require.NoError(t, err)
		assert.Equal(t, []string{"chest pain mentioned"}, note.RiskFlags)
		subjective, ok := note.SOAPBody["subjective"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "Chest tightness", subjective["chief_complaint"])
	})

	t.Run("strips markdown fences from model output", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			text := "```json\n{\"soap_note\": {\"plan\": {\"treatment\": \"rest\"}}, \"risk_flags\": []}\n```"
			json.NewEncoder(w).Encode(candidateResponse(text))
		}))
		defer server.Close()

		adapter, err := NewGeminiAdapter(geminiTestConfig(server.URL), nil)
		require.NoError(t, err)

		note, err := adapter.GenerateNote(context.Background(), "transcript", nil, nil)

		require.NoError(t, err)
		assert.Empty(t, note.RiskFlags)
		assert.Contains(t, note.SOAPBody, "plan")
	})

	t.Run("non-2xx response surfaces as external error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		adapter, err := NewGeminiAdapter(geminiTestConfig(server.URL), nil)
		require.NoError(t, err)

		_, err = adapter.GenerateNote(context.Background(), "transcript", nil, nil)

		require.Error(t, err)
		assert.True(t, apperrors.IsExternal(err))
	})

	t.Run("payload without soap_note rejected", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(candidateResponse(`{"risk_flags": ["x"]}`))
		}))
		defer server.Close()

		adapter, err := NewGeminiAdapter(geminiTestConfig(server.URL), nil)
		require.NoError(t, err)

		_, err = adapter.GenerateNote(context.Background(), "transcript", nil, nil)
		require.Error(t, err)
	})

	t.Run("rejects empty transcript", func(t *testing.T) {
		adapter, err := NewGeminiAdapter(geminiTestConfig("http://localhost:0"), nil)
		require.NoError(t, err)

		_, err = adapter.GenerateNote(context.Background(), "   ", nil, nil)
		require.Error(t, err)
	})
}

func TestBuildSOAPUserPrompt(t *testing.T) {
	t.Run("includes speaker turns and context", func(t *testing.T) {
		patient := &entities.PatientContext{FirstName: "Sam", Age: entities.AgeUnknown}
		prompt := buildSOAPUserPrompt("full text", []entities.Utterance{
			{Speaker: "A", Text: "hello"},
		}, patient)

		assert.Contains(t, prompt, "Speaker A: hello")
		assert.Contains(t, prompt, "Age: unknown")
		assert.True(t, strings.Contains(prompt, "full text"))
	})

	t.Run("falls back to raw transcript without utterances", func(t *testing.T) {
		prompt := buildSOAPUserPrompt("raw transcript only", nil, nil)
		assert.Contains(t, prompt, "raw transcript only")
		assert.Contains(t, prompt, "Not available.")
	})
}
