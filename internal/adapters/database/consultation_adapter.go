package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"

	"github.com/clinscribe/backend/internal/domain/entities"
	"github.com/clinscribe/backend/internal/domain/repositories"
	"github.com/clinscribe/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/clinscribe/backend/pkg/errors"
)

// ConsultationAdapter implements the ConsultationRepository interface
type ConsultationAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewConsultationAdapter creates a new consultation adapter
func NewConsultationAdapter(client *postgres.Client) repositories.ConsultationRepository {
	return &ConsultationAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create creates a new consultation
func (a *ConsultationAdapter) Create(ctx context.Context, consultation *entities.Consultation) error {
	record := goqu.Record{
		"id":           consultation.ID,
		"patient_id":   consultation.PatientID,
		"doctor_id":    consultation.DoctorID,
		"status":       consultation.Status,
		"scheduled_at": consultation.ScheduledAt,
		"created_at":   consultation.CreatedAt,
		"updated_at":   consultation.UpdatedAt,
	}

	query, args, err := a.db.Insert("consultations").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	_, err = a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to create consultation", err)
	}

	return nil
}

// GetByID retrieves a consultation by ID
func (a *ConsultationAdapter) GetByID(ctx context.Context, id string) (*entities.Consultation, error) {
	query, args, err := a.db.Select(
		"id", "patient_id", "doctor_id", "status", "scheduled_at",
		"created_at", "updated_at",
	).From("consultations").
		Where(goqu.Ex{"id": id}).
		ToSQL()

	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	consultation := &entities.Consultation{}
	var doctorID sql.NullString

	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&consultation.ID,
		&consultation.PatientID,
		&doctorID,
		&consultation.Status,
		&consultation.ScheduledAt,
		&consultation.CreatedAt,
		&consultation.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("consultation with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get consultation", err)
	}

	consultation.DoctorID = doctorID.String

	return consultation, nil
}

// TransitionStatus atomically moves a consultation between statuses. The
// conditional WHERE doubles as the claim used to serialize concurrent runs.
func (a *ConsultationAdapter) TransitionStatus(ctx context.Context, id string, from, to entities.ConsultationStatus) (bool, error) {
	query, args, err := a.db.Update("consultations").
		Set(goqu.Record{
			"status":     to,
			"updated_at": time.Now(),
		}).
		Where(goqu.Ex{"id": id, "status": from}).
		ToSQL()

	if err != nil {
		return false, apperrors.NewInternalError("failed to build transition query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return false, apperrors.NewInternalError("failed to transition consultation status", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.NewInternalError("failed to get rows affected", err)
	}

	return rowsAffected == 1, nil
}

// CompleteWithNote persists the generated note and marks the consultation
// completed in one transaction, so the final artifact and status land
// together or not at all.
func (a *ConsultationAdapter) CompleteWithNote(ctx context.Context, consultationID string, note *entities.SOAPNote) error {
	if note.ID == "" {
		note.ID = uuid.New().String()
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now()
	}
	note.ConsultationID = consultationID

	soapBody, err := json.Marshal(note.SOAPBody)
	if err != nil {
		return apperrors.NewInternalError("failed to marshal soap body", err)
	}
	riskFlags, err := json.Marshal(note.RiskFlags)
	if err != nil {
		return apperrors.NewInternalError("failed to marshal risk flags", err)
	}

	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	insertQuery, insertArgs, err := a.db.Insert("soap_notes").Rows(goqu.Record{
		"id":              note.ID,
		"consultation_id": note.ConsultationID,
		"soap_body":       string(soapBody),
		"risk_flags":      string(riskFlags),
		"confidence":      note.Confidence,
		"generated_by_ai": note.GeneratedByAI,
		"created_at":      note.CreatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build note insert query", err)
	}

	if _, err := tx.ExecContext(ctx, insertQuery, insertArgs...); err != nil {
		return apperrors.NewInternalError("failed to insert soap note", err)
	}

	updateQuery, updateArgs, err := a.db.Update("consultations").
		Set(goqu.Record{
			"status":     entities.ConsultationStatusCompleted,
			"updated_at": time.Now(),
		}).
		Where(goqu.Ex{
			"id":     consultationID,
			"status": entities.ConsultationStatusInProgress,
		}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build completion query", err)
	}

	result, err := tx.ExecContext(ctx, updateQuery, updateArgs...)
	if err != nil {
		return apperrors.NewInternalError("failed to mark consultation completed", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewConflictError(fmt.Sprintf("consultation %s is no longer in progress", consultationID))
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewInternalError("failed to commit completion", err)
	}

	return nil
}

// ListByPatient retrieves consultations for a patient
func (a *ConsultationAdapter) ListByPatient(ctx context.Context, patientID string, filter repositories.ConsultationFilter) ([]*entities.Consultation, error) {
	ds := a.db.Select(
		"id", "patient_id", "doctor_id", "status", "scheduled_at",
		"created_at", "updated_at",
	).From("consultations").
		Where(goqu.Ex{"patient_id": patientID})

	if filter.Status != "" {
		ds = ds.Where(goqu.Ex{"status": filter.Status})
	}

	ds = ds.Order(goqu.I("scheduled_at").Desc())

	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}

	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list consultations", err)
	}
	defer rows.Close()

	var consultations []*entities.Consultation
	for rows.Next() {
		consultation := &entities.Consultation{}
		var doctorID sql.NullString

		err := rows.Scan(
			&consultation.ID,
			&consultation.PatientID,
			&doctorID,
			&consultation.Status,
			&consultation.ScheduledAt,
			&consultation.CreatedAt,
			&consultation.UpdatedAt,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan consultation", err)
		}

		consultation.DoctorID = doctorID.String
		consultations = append(consultations, consultation)
	}

	return consultations, nil
}
