package entities

import (
	"time"
)

// ConsultationEventType categorizes pipeline lifecycle events
type ConsultationEventType string

const (
	EventProcessingStarted   ConsultationEventType = "processing_started"
	EventTranscriptReady     ConsultationEventType = "transcript_ready"
	EventProcessingCompleted ConsultationEventType = "processing_completed"
	EventProcessingFailed    ConsultationEventType = "processing_failed"
)

// ConsultationEvent is published on the event bus whenever the pipeline
// commits a status change or checkpoint, so downstream consumers (SSE, UI)
// can follow processing progress without polling.
type ConsultationEvent struct {
	ID             string                `json:"id"`
	ConsultationID string                `json:"consultation_id"`
	Type           ConsultationEventType `json:"type"`
	Status         ConsultationStatus    `json:"status"`
	Stage          string                `json:"stage,omitempty"`
	Error          string                `json:"error,omitempty"`
	Timestamp      time.Time             `json:"timestamp"`
}
