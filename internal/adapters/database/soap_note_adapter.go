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

// SOAPNoteAdapter implements the SOAPNoteRepository interface
type SOAPNoteAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewSOAPNoteAdapter creates a new SOAP note adapter
func NewSOAPNoteAdapter(client *postgres.Client) repositories.SOAPNoteRepository {
	return &SOAPNoteAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create inserts a new note record
func (a *SOAPNoteAdapter) Create(ctx context.Context, note *entities.SOAPNote) error {
	if note.ID == "" {
		note.ID = uuid.New().String()
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now()
	}

	soapBody, err := json.Marshal(note.SOAPBody)
	if err != nil {
		return apperrors.NewInternalError("failed to marshal soap body", err)
	}
	riskFlags, err := json.Marshal(note.RiskFlags)
	if err != nil {
		return apperrors.NewInternalError("failed to marshal risk flags", err)
	}

	record := goqu.Record{
		"id":              note.ID,
		"consultation_id": note.ConsultationID,
		"soap_body":       string(soapBody),
		"risk_flags":      string(riskFlags),
		"confidence":      note.Confidence,
		"generated_by_ai": note.GeneratedByAI,
		"created_at":      note.CreatedAt,
	}

	query, args, err := a.db.Insert("soap_notes").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	_, err = a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to create soap note", err)
	}

	return nil
}

// GetLatestByConsultation retrieves the most recent note for a consultation
func (a *SOAPNoteAdapter) GetLatestByConsultation(ctx context.Context, consultationID string) (*entities.SOAPNote, error) {
	query, args, err := a.db.Select(
		"id", "consultation_id", "soap_body", "risk_flags", "confidence",
		"generated_by_ai", "created_at",
	).From("soap_notes").
		Where(goqu.Ex{"consultation_id": consultationID}).
		Order(goqu.I("created_at").Desc()).
		Limit(1).
		ToSQL()

	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	note, err := a.scanNote(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no soap note for consultation %s", consultationID))
	}
	if err != nil {
		return nil, err
	}

	return note, nil
}

// ListByConsultation retrieves all notes for a consultation, newest first
func (a *SOAPNoteAdapter) ListByConsultation(ctx context.Context, consultationID string) ([]*entities.SOAPNote, error) {
	query, args, err := a.db.Select(
		"id", "consultation_id", "soap_body", "risk_flags", "confidence",
		"generated_by_ai", "created_at",
	).From("soap_notes").
		Where(goqu.Ex{"consultation_id": consultationID}).
		Order(goqu.I("created_at").Desc()).
		ToSQL()

	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list soap notes", err)
	}
	defer rows.Close()

	var notes []*entities.SOAPNote
	for rows.Next() {
		note, err := a.scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}

	return notes, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (a *SOAPNoteAdapter) scanNote(row rowScanner) (*entities.SOAPNote, error) {
	note := &entities.SOAPNote{}
	var soapBody, riskFlags []byte
	var confidence sql.NullFloat64

	err := row.Scan(
		&note.ID,
		&note.ConsultationID,
		&soapBody,
		&riskFlags,
		&confidence,
		&note.GeneratedByAI,
		&note.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to scan soap note", err)
	}

	if len(soapBody) > 0 {
		if err := json.Unmarshal(soapBody, &note.SOAPBody); err != nil {
			return nil, apperrors.NewInternalError("failed to unmarshal soap body", err)
		}
	}
	if len(riskFlags) > 0 {
		if err := json.Unmarshal(riskFlags, &note.RiskFlags); err != nil {
			return nil, apperrors.NewInternalError("failed to unmarshal risk flags", err)
		}
	}
	if confidence.Valid {
		note.Confidence = &confidence.Float64
	}

	return note, nil
}
