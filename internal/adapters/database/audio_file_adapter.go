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

// AudioFileAdapter implements the AudioFileRepository interface
type AudioFileAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewAudioFileAdapter creates a new audio file adapter
func NewAudioFileAdapter(client *postgres.Client) repositories.AudioFileRepository {
	return &AudioFileAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create creates a new audio file record
func (a *AudioFileAdapter) Create(ctx context.Context, audio *entities.AudioFile) error {
	record := goqu.Record{
		"id":              audio.ID,
		"consultation_id": audio.ConsultationID,
		"file_url":        audio.FileURL,
		"mime_type":       audio.MimeType,
		"duration_sec":    audio.DurationSec,
		"transcription":   audio.Transcription,
		"created_at":      audio.CreatedAt,
		"updated_at":      audio.UpdatedAt,
	}

	query, args, err := a.db.Insert("audio_files").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	_, err = a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to create audio file", err)
	}

	return nil
}

// GetByConsultation retrieves the audio file for a consultation. The pipeline
// processes a single recording per consultation; the newest row wins.
func (a *AudioFileAdapter) GetByConsultation(ctx context.Context, consultationID string) (*entities.AudioFile, error) {
	query, args, err := a.db.Select(
		"id", "consultation_id", "file_url", "mime_type", "duration_sec",
		"transcription", "created_at", "updated_at",
	).From("audio_files").
		Where(goqu.Ex{"consultation_id": consultationID}).
		Order(goqu.I("created_at").Desc()).
		Limit(1).
		ToSQL()

	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	audio := &entities.AudioFile{}
	var mimeType sql.NullString
	var durationSec sql.NullFloat64
	var transcription sql.NullString

	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&audio.ID,
		&audio.ConsultationID,
		&audio.FileURL,
		&mimeType,
		&durationSec,
		&transcription,
		&audio.CreatedAt,
		&audio.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no audio file for consultation %s", consultationID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get audio file", err)
	}

	audio.MimeType = mimeType.String
	if durationSec.Valid {
		audio.DurationSec = &durationSec.Float64
	}
	if transcription.Valid {
		audio.Transcription = &transcription.String
	}

	return audio, nil
}

// SaveTranscription writes the transcript text for an audio file
func (a *AudioFileAdapter) SaveTranscription(ctx context.Context, id string, transcription string) error {
	query, args, err := a.db.Update("audio_files").
		Set(goqu.Record{
			"transcription": transcription,
			"updated_at":    time.Now(),
		}).
		Where(goqu.Ex{"id": id}).
		ToSQL()

	if err != nil {
		return apperrors.NewInternalError("failed to build transcription update", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to save transcription", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}

	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("audio file with id %s not found", id))
	}

	return nil
}
