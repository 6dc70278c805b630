package entities

import (
	"time"
)

// SOAPNote is the structured clinical note generated for a consultation.
// Notes are append-only: reprocessing a consultation inserts a new record
// rather than mutating an earlier one.
type SOAPNote struct {
	ID             string                 `json:"id" db:"id"`
	ConsultationID string                 `json:"consultation_id" db:"consultation_id"`
	SOAPBody       map[string]interface{} `json:"soap_body" db:"soap_body"`
	RiskFlags      []string               `json:"risk_flags" db:"risk_flags"`
	Confidence     *float64               `json:"confidence" db:"confidence"`
	GeneratedByAI  bool                   `json:"generated_by_ai" db:"generated_by_ai"`
	CreatedAt      time.Time              `json:"created_at" db:"created_at"`
}
