//go:build integration

package database_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/clinscribe/backend/internal/adapters/database"
	"github.com/clinscribe/backend/internal/domain/entities"
	"github.com/clinscribe/backend/internal/domain/repositories"
	"github.com/clinscribe/backend/internal/infrastructure/clients/postgres"
	"github.com/clinscribe/backend/pkg/config"
	apperrors "github.com/clinscribe/backend/pkg/errors"
)

type ConsultationAdapterIntegrationTestSuite struct {
	suite.Suite
	client  *postgres.Client
	adapter repositories.ConsultationRepository
	notes   repositories.SOAPNoteRepository
	db      *sql.DB
}

func (suite *ConsultationAdapterIntegrationTestSuite) SetupSuite() {
	cfg := &config.DatabaseConfig{
		Host:     getEnv("TEST_DB_HOST", "localhost"),
		Port:     getEnvAsInt("TEST_DB_PORT", 5432),
		User:     getEnv("TEST_DB_USER", "postgres"),
		Password: getEnv("TEST_DB_PASSWORD", "postgres"),
		Database: getEnv("TEST_DB_NAME", "clinscribe_test"),
		SSLMode:  getEnv("TEST_DB_SSLMODE", "disable"),
	}

	client, err := postgres.NewClient(cfg)
	require.NoError(suite.T(), err, "Failed to create postgres client")

	suite.client = client
	suite.db = client.DB()
	suite.adapter = database.NewConsultationAdapter(client)
	suite.notes = database.NewSOAPNoteAdapter(client)

	suite.runMigrations()
}

func (suite *ConsultationAdapterIntegrationTestSuite) TearDownSuite() {
	if suite.client != nil {
		suite.client.Close()
	}
}

func (suite *ConsultationAdapterIntegrationTestSuite) SetupTest() {
	suite.cleanupTestData()
}

func (suite *ConsultationAdapterIntegrationTestSuite) runMigrations() {
	migrationSQL, err := os.ReadFile("../../../migrations/001_initial_schema.sql")
	require.NoError(suite.T(), err)
	_, err = suite.db.Exec(string(migrationSQL))
	require.NoError(suite.T(), err)
}

func (suite *ConsultationAdapterIntegrationTestSuite) cleanupTestData() {
	tables := []string{"soap_notes", "audio_files", "consultations", "patient_profiles"}
	for _, table := range tables {
		_, err := suite.db.Exec(fmt.Sprintf("DELETE FROM %s", table))
		require.NoError(suite.T(), err)
	}
}

func (suite *ConsultationAdapterIntegrationTestSuite) seedConsultation(status entities.ConsultationStatus) *entities.Consultation {
	now := time.Now().UTC().Truncate(time.Millisecond)
	consultation := &entities.Consultation{
		ID:          uuid.New().String(),
		PatientID:   uuid.New().String(),
		DoctorID:    uuid.New().String(),
		Status:      status,
		ScheduledAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(suite.T(), suite.adapter.Create(context.Background(), consultation))
	return consultation
}

func (suite *ConsultationAdapterIntegrationTestSuite) TestCreateAndGetByID() {
	created := suite.seedConsultation(entities.ConsultationStatusPending)

	got, err := suite.adapter.GetByID(context.Background(), created.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), created.ID, got.ID)
	assert.Equal(suite.T(), created.PatientID, got.PatientID)
	assert.Equal(suite.T(), entities.ConsultationStatusPending, got.Status)
}

func (suite *ConsultationAdapterIntegrationTestSuite) TestGetByID_NotFound() {
	_, err := suite.adapter.GetByID(context.Background(), uuid.New().String())
	assert.True(suite.T(), apperrors.IsNotFound(err))
}

func (suite *ConsultationAdapterIntegrationTestSuite) TestTransitionStatus_ClaimsOnce() {
	consultation := suite.seedConsultation(entities.ConsultationStatusPending)
	ctx := context.Background()

	claimed, err := suite.adapter.TransitionStatus(ctx, consultation.ID,
		entities.ConsultationStatusPending, entities.ConsultationStatusInProgress)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), claimed)

	// A second claim against the same expected status must lose.
	claimed, err = suite.adapter.TransitionStatus(ctx, consultation.ID,
		entities.ConsultationStatusPending, entities.ConsultationStatusInProgress)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), claimed)

	got, err := suite.adapter.GetByID(ctx, consultation.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), entities.ConsultationStatusInProgress, got.Status)
}

func (suite *ConsultationAdapterIntegrationTestSuite) TestCompleteWithNote() {
	consultation := suite.seedConsultation(entities.ConsultationStatusInProgress)
	ctx := context.Background()

	confidence := 0.93
	note := &entities.SOAPNote{
		ID:             uuid.New().String(),
		ConsultationID: consultation.ID,
		SOAPBody: map[string]interface{}{
			"subjective": "Patient reports intermittent chest pain.",
			"objective":  "BP 128/82, HR 74.",
			"assessment": "Atypical chest pain.",
			"plan":       "ECG and follow-up in one week.",
		},
		RiskFlags:     []string{"chest pain"},
		Confidence:    &confidence,
		GeneratedByAI: true,
		CreatedAt:     time.Now().UTC(),
	}

	require.NoError(suite.T(), suite.adapter.CompleteWithNote(ctx, consultation.ID, note))

	got, err := suite.adapter.GetByID(ctx, consultation.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), entities.ConsultationStatusCompleted, got.Status)

	latest, err := suite.notes.GetLatestByConsultation(ctx, consultation.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), note.ID, latest.ID)
	assert.Equal(suite.T(), "Atypical chest pain.", latest.SOAPBody["assessment"])
	assert.Equal(suite.T(), []string{"chest pain"}, latest.RiskFlags)
}

func (suite *ConsultationAdapterIntegrationTestSuite) TestCompleteWithNote_ConflictWhenNotInProgress() {
	consultation := suite.seedConsultation(entities.ConsultationStatusCompleted)

	note := &entities.SOAPNote{
		ID:             uuid.New().String(),
		ConsultationID: consultation.ID,
		SOAPBody:       map[string]interface{}{"subjective": "n/a"},
		RiskFlags:      []string{},
		GeneratedByAI:  true,
		CreatedAt:      time.Now().UTC(),
	}

	err := suite.adapter.CompleteWithNote(context.Background(), consultation.ID, note)
	assert.True(suite.T(), apperrors.IsConflict(err))

	// The conflict must roll back the note insert.
	list, err := suite.notes.ListByConsultation(context.Background(), consultation.ID)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), list)
}

func (suite *ConsultationAdapterIntegrationTestSuite) TestListByPatient_FilterByStatus() {
	first := suite.seedConsultation(entities.ConsultationStatusCompleted)
	ctx := context.Background()

	// Second consultation for the same patient, still pending.
	now := time.Now().UTC()
	second := &entities.Consultation{
		ID:          uuid.New().String(),
		PatientID:   first.PatientID,
		DoctorID:    first.DoctorID,
		Status:      entities.ConsultationStatusPending,
		ScheduledAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(suite.T(), suite.adapter.Create(ctx, second))

	completed, err := suite.adapter.ListByPatient(ctx, first.PatientID, repositories.ConsultationFilter{
		Status: entities.ConsultationStatusCompleted,
	})
	require.NoError(suite.T(), err)
	require.Len(suite.T(), completed, 1)
	assert.Equal(suite.T(), first.ID, completed[0].ID)

	all, err := suite.adapter.ListByPatient(ctx, first.PatientID, repositories.ConsultationFilter{})
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), all, 2)
}

func TestConsultationAdapterIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	suite.Run(t, new(ConsultationAdapterIntegrationTestSuite))
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
