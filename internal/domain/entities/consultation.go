package entities

import (
	"time"
)

// ConsultationStatus represents the processing status of a consultation
type ConsultationStatus string

const (
	ConsultationStatusPending    ConsultationStatus = "pending"
	ConsultationStatusInProgress ConsultationStatus = "in_progress"
	ConsultationStatusCompleted  ConsultationStatus = "completed"
	ConsultationStatusFailed     ConsultationStatus = "failed"
)

// IsTerminal reports whether no further automatic transition is allowed
func (s ConsultationStatus) IsTerminal() bool {
	return s == ConsultationStatusCompleted || s == ConsultationStatusFailed
}

// Consultation represents one clinical encounter undergoing processing
type Consultation struct {
	ID          string             `json:"id" db:"id"`
	PatientID   string             `json:"patient_id" db:"patient_id"`
	DoctorID    string             `json:"doctor_id" db:"doctor_id"`
	Status      ConsultationStatus `json:"status" db:"status"`
	ScheduledAt time.Time          `json:"scheduled_at" db:"scheduled_at"`
	CreatedAt   time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at" db:"updated_at"`
}
