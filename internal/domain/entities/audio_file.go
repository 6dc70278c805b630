package entities

import (
	"time"
)

// AudioFile represents the recorded audio for a consultation.
// Transcription is empty until the processing pipeline commits it.
type AudioFile struct {
	ID             string    `json:"id" db:"id"`
	ConsultationID string    `json:"consultation_id" db:"consultation_id"`
	FileURL        string    `json:"file_url" db:"file_url"`
	MimeType       string    `json:"mime_type" db:"mime_type"`
	DurationSec    *float64  `json:"duration_sec" db:"duration_sec"`
	Transcription  *string   `json:"transcription" db:"transcription"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}
