package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/clinscribe/backend/internal/domain/entities"
	"github.com/clinscribe/backend/internal/domain/repositories"
	"github.com/clinscribe/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/clinscribe/backend/pkg/errors"
)

// PatientProfileAdapter implements the PatientProfileRepository interface
type PatientProfileAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewPatientProfileAdapter creates a new patient profile adapter
func NewPatientProfileAdapter(client *postgres.Client) repositories.PatientProfileRepository {
	return &PatientProfileAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetByUserID retrieves the profile for a patient user
func (a *PatientProfileAdapter) GetByUserID(ctx context.Context, userID string) (*entities.PatientProfile, error) {
	query, args, err := a.db.Select(
		"user_id", "first_name", "last_name", "date_of_birth", "gender",
		"phone_number", "city", "state", "medical_history",
		"created_at", "updated_at",
	).From("patient_profiles").
		Where(goqu.Ex{"user_id": userID}).
		ToSQL()

	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	profile := &entities.PatientProfile{}
	var dateOfBirth sql.NullTime
	var gender, phoneNumber, city, state, medicalHistory sql.NullString

	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&profile.UserID,
		&profile.FirstName,
		&profile.LastName,
		&dateOfBirth,
		&gender,
		&phoneNumber,
		&city,
		&state,
		&medicalHistory,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("patient profile for user %s not found", userID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get patient profile", err)
	}

	if dateOfBirth.Valid {
		profile.DateOfBirth = &dateOfBirth.Time
	}
	profile.Gender = gender.String
	profile.PhoneNumber = phoneNumber.String
	profile.City = city.String
	profile.State = state.String
	profile.MedicalHistory = medicalHistory.String

	return profile, nil
}

// Upsert creates or updates a patient profile
func (a *PatientProfileAdapter) Upsert(ctx context.Context, profile *entities.PatientProfile) error {
	profile.UpdatedAt = time.Now()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = profile.UpdatedAt
	}

	record := goqu.Record{
		"user_id":         profile.UserID,
		"first_name":      profile.FirstName,
		"last_name":       profile.LastName,
		"date_of_birth":   profile.DateOfBirth,
		"gender":          profile.Gender,
		"phone_number":    profile.PhoneNumber,
		"city":            profile.City,
		"state":           profile.State,
		"medical_history": profile.MedicalHistory,
		"created_at":      profile.CreatedAt,
		"updated_at":      profile.UpdatedAt,
	}

	query, args, err := a.db.Insert("patient_profiles").
		Rows(record).
		OnConflict(goqu.DoUpdate("user_id", goqu.Record{
			"first_name":      profile.FirstName,
			"last_name":       profile.LastName,
			"date_of_birth":   profile.DateOfBirth,
			"gender":          profile.Gender,
			"phone_number":    profile.PhoneNumber,
			"city":            profile.City,
			"state":           profile.State,
			"medical_history": profile.MedicalHistory,
			"updated_at":      profile.UpdatedAt,
		})).
		ToSQL()

	if err != nil {
		return apperrors.NewInternalError("failed to build upsert query", err)
	}

	_, err = a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to upsert patient profile", err)
	}

	return nil
}
