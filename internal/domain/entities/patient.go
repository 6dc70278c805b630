package entities

import (
	"strconv"
	"time"
)

// PatientProfile holds the demographic record for a patient
type PatientProfile struct {
	UserID         string     `json:"user_id" db:"user_id"`
	FirstName      string     `json:"first_name" db:"first_name"`
	LastName       string     `json:"last_name" db:"last_name"`
	DateOfBirth    *time.Time `json:"date_of_birth" db:"date_of_birth"`
	Gender         string     `json:"gender" db:"gender"`
	PhoneNumber    string     `json:"phone_number" db:"phone_number"`
	City           string     `json:"city" db:"city"`
	State          string     `json:"state" db:"state"`
	MedicalHistory string     `json:"medical_history" db:"medical_history"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// AgeUnknown is the sentinel age used when a profile has no date of birth
const AgeUnknown = -1

// PatientContext is the ephemeral projection of a patient profile handed to
// note generation for personalization. It is computed fresh on every pipeline
// run and never persisted or cached.
type PatientContext struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Age       int    `json:"age"`
	Gender    string `json:"gender"`
	Notes     string `json:"notes"`
}

// AgeString renders the age for prompt building
func (c *PatientContext) AgeString() string {
	if c.Age == AgeUnknown {
		return "unknown"
	}
	return strconv.Itoa(c.Age)
}
