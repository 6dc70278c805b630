package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/clinscribe/backend/internal/application/services"
	"github.com/clinscribe/backend/internal/domain/entities"
	"github.com/clinscribe/backend/internal/domain/repositories"
	apperrors "github.com/clinscribe/backend/pkg/errors"
)

// Mocks

type MockConsultationRepository struct {
	mock.Mock
}

func (m *MockConsultationRepository) Create(ctx context.Context, consultation *entities.Consultation) error {
	args := m.Called(ctx, consultation)
	return args.Error(0)
}

func (m *MockConsultationRepository) GetByID(ctx context.Context, id string) (*entities.Consultation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Consultation), args.Error(1)
}

func (m *MockConsultationRepository) TransitionStatus(ctx context.Context, id string, from, to entities.ConsultationStatus) (bool, error) {
	args := m.Called(ctx, id, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *MockConsultationRepository) CompleteWithNote(ctx context.Context, consultationID string, note *entities.SOAPNote) error {
	args := m.Called(ctx, consultationID, note)
	return args.Error(0)
}

func (m *MockConsultationRepository) ListByPatient(ctx context.Context, patientID string, filter repositories.ConsultationFilter) ([]*entities.Consultation, error) {
	return nil, nil
}

type MockAudioFileRepository struct {
	mock.Mock
}

func (m *MockAudioFileRepository) Create(ctx context.Context, audio *entities.AudioFile) error {
	return nil
}

func (m *MockAudioFileRepository) GetByConsultation(ctx context.Context, consultationID string) (*entities.AudioFile, error) {
	args := m.Called(ctx, consultationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.AudioFile), args.Error(1)
}

func (m *MockAudioFileRepository) SaveTranscription(ctx context.Context, id string, transcription string) error {
	args := m.Called(ctx, id, transcription)
	return args.Error(0)
}

type MockPatientProfileRepository struct {
	mock.Mock
}

func (m *MockPatientProfileRepository) GetByUserID(ctx context.Context, userID string) (*entities.PatientProfile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PatientProfile), args.Error(1)
}

func (m *MockPatientProfileRepository) Upsert(ctx context.Context, profile *entities.PatientProfile) error {
	return nil
}

type MockTranscriptionProvider struct {
	mock.Mock
}

func (m *MockTranscriptionProvider) Transcribe(ctx context.Context, audioURL string) (*entities.TranscriptResult, error) {
	args := m.Called(ctx, audioURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.TranscriptResult), args.Error(1)
}

type MockNoteGenerationProvider struct {
	mock.Mock
}

func (m *MockNoteGenerationProvider) GenerateNote(ctx context.Context, transcript string, utterances []entities.Utterance, patient *entities.PatientContext) (*entities.GeneratedNote, error) {
	args := m.Called(ctx, transcript, utterances, patient)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.GeneratedNote), args.Error(1)
}

// Fixtures

func pendingConsultation(id string) *entities.Consultation {
	return &entities.Consultation{
		ID:        id,
		PatientID: "patient-1",
		Status:    entities.ConsultationStatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func consultationAudio(consultationID string) *entities.AudioFile {
	return &entities.AudioFile{
		ID:             "audio-1",
		ConsultationID: consultationID,
		FileURL:        "https://storage.example.com/recordings/audio-1.wav",
	}
}

func sampleTranscript() *entities.TranscriptResult {
	confidence := 0.91
	return &entities.TranscriptResult{
		Text:       "How are you feeling? I have a headache.",
		Confidence: &confidence,
		Utterances: []entities.Utterance{
			{Speaker: "A", Text: "How are you feeling?", StartMs: 0, EndMs: 1500},
			{Speaker: "B", Text: "I have a headache.", StartMs: 1700, EndMs: 3200},
		},
	}
}

func newProcessor(
	repo *MockConsultationRepository,
	audioRepo *MockAudioFileRepository,
	profileRepo *MockPatientProfileRepository,
	transcriber *MockTranscriptionProvider,
	generator *MockNoteGenerationProvider,
) *services.ConsultationProcessor {
	return services.NewConsultationProcessor(
		repo,
		audioRepo,
		services.NewPatientContextService(profileRepo),
		transcriber,
		generator,
		nil, // event bus optional
		nil, // metrics optional
	)
}

// Tests

func TestConsultationProcessor_Process(t *testing.T) {
	t.Run("successful run completes with exactly one note", func(t *testing.T) {
		repo := new(MockConsultationRepository)
		audioRepo := new(MockAudioFileRepository)
		profileRepo := new(MockPatientProfileRepository)
		transcriber := new(MockTranscriptionProvider)
		generator := new(MockNoteGenerationProvider)

		repo.On("GetByID", mock.Anything, "c-1").Return(pendingConsultation("c-1"), nil)
		repo.On("TransitionStatus", mock.Anything, "c-1",
			entities.ConsultationStatusPending, entities.ConsultationStatusInProgress).Return(true, nil)
		audioRepo.On("GetByConsultation", mock.Anything, "c-1").Return(consultationAudio("c-1"), nil)
		transcriber.On("Transcribe", mock.Anything, "https://storage.example.com/recordings/audio-1.wav").
			Return(sampleTranscript(), nil)
		audioRepo.On("SaveTranscription", mock.Anything, "audio-1", "How are you feeling? I have a headache.").Return(nil)
		profileRepo.On("GetByUserID", mock.Anything, "patient-1").
			Return(nil, apperrors.NewNotFoundError("no profile"))
		generator.On("GenerateNote", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(&entities.GeneratedNote{
				SOAPBody:  map[string]interface{}{"subjective": "headache"},
				RiskFlags: []string{"persistent headache"},
			}, nil)
		repo.On("CompleteWithNote", mock.Anything, "c-1", mock.MatchedBy(func(n *entities.SOAPNote) bool {
			return n.ConsultationID == "c-1" &&
				n.GeneratedByAI &&
				n.Confidence != nil && *n.Confidence == 0.91 &&
				len(n.RiskFlags) == 1
		})).Return(nil)

		processor := newProcessor(repo, audioRepo, profileRepo, transcriber, generator)
		processor.Process(context.Background(), "c-1")

		repo.AssertExpectations(t)
		audioRepo.AssertExpectations(t)
		transcriber.AssertExpectations(t)
		generator.AssertExpectations(t)
		repo.AssertNumberOfCalls(t, "CompleteWithNote", 1)
	})

	t.Run("transcription failure marks failed and writes no transcript", func(t *testing.T) {
		repo := new(MockConsultationRepository)
		audioRepo := new(MockAudioFileRepository)
		profileRepo := new(MockPatientProfileRepository)
		transcriber := new(MockTranscriptionProvider)
		generator := new(MockNoteGenerationProvider)

		repo.On("GetByID", mock.Anything, "c-2").Return(pendingConsultation("c-2"), nil)
		repo.On("TransitionStatus", mock.Anything, "c-2",
			entities.ConsultationStatusPending, entities.ConsultationStatusInProgress).Return(true, nil)
		audioRepo.On("GetByConsultation", mock.Anything, "c-2").Return(consultationAudio("c-2"), nil)
		transcriber.On("Transcribe", mock.Anything, mock.Anything).
			Return(nil, apperrors.NewExternalError("provider timeout", nil))
		repo.On("TransitionStatus", mock.Anything, "c-2",
			entities.ConsultationStatusInProgress, entities.ConsultationStatusFailed).Return(true, nil)

		processor := newProcessor(repo, audioRepo, profileRepo, transcriber, generator)
		processor.Process(context.Background(), "c-2")

		repo.AssertExpectations(t)
		audioRepo.AssertNotCalled(t, "SaveTranscription", mock.Anything, mock.Anything, mock.Anything)
		generator.AssertNotCalled(t, "GenerateNote", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "CompleteWithNote", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("generation failure marks failed but keeps committed transcript", func(t *testing.T) {
		repo := new(MockConsultationRepository)
		audioRepo := new(MockAudioFileRepository)
		profileRepo := new(MockPatientProfileRepository)
		transcriber := new(MockTranscriptionProvider)
		generator := new(MockNoteGenerationProvider)

		repo.On("GetByID", mock.Anything, "c-3").Return(pendingConsultation("c-3"), nil)
		repo.On("TransitionStatus", mock.Anything, "c-3",
			entities.ConsultationStatusPending, entities.ConsultationStatusInProgress).Return(true, nil)
		audioRepo.On("GetByConsultation", mock.Anything, "c-3").Return(consultationAudio("c-3"), nil)
		transcriber.On("Transcribe", mock.Anything, mock.Anything).Return(sampleTranscript(), nil)
		audioRepo.On("SaveTranscription", mock.Anything, "audio-1", mock.Anything).Return(nil)
		profileRepo.On("GetByUserID", mock.Anything, "patient-1").
			Return(nil, apperrors.NewNotFoundError("no profile"))
		generator.On("GenerateNote", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, apperrors.NewExternalError("generation rejected", nil))
		repo.On("TransitionStatus", mock.Anything, "c-3",
			entities.ConsultationStatusInProgress, entities.ConsultationStatusFailed).Return(true, nil)

		processor := newProcessor(repo, audioRepo, profileRepo, transcriber, generator)
		processor.Process(context.Background(), "c-3")

		repo.AssertExpectations(t)
		audioRepo.AssertNumberOfCalls(t, "SaveTranscription", 1)
		repo.AssertNotCalled(t, "CompleteWithNote", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing audio leaves consultation in progress with no artifacts", func(t *testing.T) {
		repo := new(MockConsultationRepository)
		audioRepo := new(MockAudioFileRepository)
		profileRepo := new(MockPatientProfileRepository)
		transcriber := new(MockTranscriptionProvider)
		generator := new(MockNoteGenerationProvider)

		repo.On("GetByID", mock.Anything, "c-4").Return(pendingConsultation("c-4"), nil)
		repo.On("TransitionStatus", mock.Anything, "c-4",
			entities.ConsultationStatusPending, entities.ConsultationStatusInProgress).Return(true, nil)
		audioRepo.On("GetByConsultation", mock.Anything, "c-4").
			Return(nil, apperrors.NewNotFoundError("no audio file"))

		processor := newProcessor(repo, audioRepo, profileRepo, transcriber, generator)
		processor.Process(context.Background(), "c-4")

		repo.AssertExpectations(t)
		transcriber.AssertNotCalled(t, "Transcribe", mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "CompleteWithNote", mock.Anything, mock.Anything, mock.Anything)
		// no failed transition either: the run simply stops
		repo.AssertNotCalled(t, "TransitionStatus", mock.Anything, "c-4",
			entities.ConsultationStatusInProgress, entities.ConsultationStatusFailed)
	})

	t.Run("unknown consultation halts with no status change", func(t *testing.T) {
		repo := new(MockConsultationRepository)
		audioRepo := new(MockAudioFileRepository)
		profileRepo := new(MockPatientProfileRepository)
		transcriber := new(MockTranscriptionProvider)
		generator := new(MockNoteGenerationProvider)

		repo.On("GetByID", mock.Anything, "missing").
			Return(nil, apperrors.NewNotFoundError("consultation not found"))

		processor := newProcessor(repo, audioRepo, profileRepo, transcriber, generator)
		processor.Process(context.Background(), "missing")

		repo.AssertExpectations(t)
		repo.AssertNotCalled(t, "TransitionStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("lost claim aborts without touching providers", func(t *testing.T) {
		repo := new(MockConsultationRepository)
		audioRepo := new(MockAudioFileRepository)
		profileRepo := new(MockPatientProfileRepository)
		transcriber := new(MockTranscriptionProvider)
		generator := new(MockNoteGenerationProvider)

		// A concurrent trigger already moved the row out of pending.
		repo.On("GetByID", mock.Anything, "c-5").Return(pendingConsultation("c-5"), nil)
		repo.On("TransitionStatus", mock.Anything, "c-5",
			entities.ConsultationStatusPending, entities.ConsultationStatusInProgress).Return(false, nil)

		processor := newProcessor(repo, audioRepo, profileRepo, transcriber, generator)
		processor.Process(context.Background(), "c-5")

		repo.AssertExpectations(t)
		audioRepo.AssertNotCalled(t, "GetByConsultation", mock.Anything, mock.Anything)
		transcriber.AssertNotCalled(t, "Transcribe", mock.Anything, mock.Anything)
	})

	t.Run("terminal consultation is not re-run", func(t *testing.T) {
		repo := new(MockConsultationRepository)
		audioRepo := new(MockAudioFileRepository)
		profileRepo := new(MockPatientProfileRepository)
		transcriber := new(MockTranscriptionProvider)
		generator := new(MockNoteGenerationProvider)

		completed := pendingConsultation("c-6")
		completed.Status = entities.ConsultationStatusCompleted
		repo.On("GetByID", mock.Anything, "c-6").Return(completed, nil)

		processor := newProcessor(repo, audioRepo, profileRepo, transcriber, generator)
		processor.Process(context.Background(), "c-6")

		repo.AssertExpectations(t)
		repo.AssertNotCalled(t, "TransitionStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestConsultationProcessor_Reprocess(t *testing.T) {
	t.Run("reprocesses a failed consultation and appends a new note", func(t *testing.T) {
		repo := new(MockConsultationRepository)
		audioRepo := new(MockAudioFileRepository)
		profileRepo := new(MockPatientProfileRepository)
		transcriber := new(MockTranscriptionProvider)
		generator := new(MockNoteGenerationProvider)

		failed := pendingConsultation("c-7")
		failed.Status = entities.ConsultationStatusFailed
		repo.On("GetByID", mock.Anything, "c-7").Return(failed, nil).Once()
		repo.On("TransitionStatus", mock.Anything, "c-7",
			entities.ConsultationStatusFailed, entities.ConsultationStatusPending).Return(true, nil)

		// The subsequent run observes the reset row.
		repo.On("GetByID", mock.Anything, "c-7").Return(pendingConsultation("c-7"), nil).Once()
		repo.On("TransitionStatus", mock.Anything, "c-7",
			entities.ConsultationStatusPending, entities.ConsultationStatusInProgress).Return(true, nil)
		audioRepo.On("GetByConsultation", mock.Anything, "c-7").Return(consultationAudio("c-7"), nil)
		transcriber.On("Transcribe", mock.Anything, mock.Anything).Return(sampleTranscript(), nil)
		audioRepo.On("SaveTranscription", mock.Anything, "audio-1", mock.Anything).Return(nil)
		profileRepo.On("GetByUserID", mock.Anything, "patient-1").
			Return(nil, apperrors.NewNotFoundError("no profile"))
		generator.On("GenerateNote", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(&entities.GeneratedNote{SOAPBody: map[string]interface{}{"plan": "rest"}}, nil)
		repo.On("CompleteWithNote", mock.Anything, "c-7", mock.Anything).Return(nil)

		processor := newProcessor(repo, audioRepo, profileRepo, transcriber, generator)
		err := processor.Reprocess(context.Background(), "c-7")

		assert.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("rejects reprocessing a non-terminal consultation", func(t *testing.T) {
		repo := new(MockConsultationRepository)
		audioRepo := new(MockAudioFileRepository)
		profileRepo := new(MockPatientProfileRepository)
		transcriber := new(MockTranscriptionProvider)
		generator := new(MockNoteGenerationProvider)

		repo.On("GetByID", mock.Anything, "c-8").Return(pendingConsultation("c-8"), nil)

		processor := newProcessor(repo, audioRepo, profileRepo, transcriber, generator)
		err := processor.Reprocess(context.Background(), "c-8")

		assert.Error(t, err)
		repo.AssertNotCalled(t, "TransitionStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
