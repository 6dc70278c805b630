package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinscribe/backend/internal/domain/entities"
	"github.com/clinscribe/backend/internal/domain/providers"
	"github.com/clinscribe/backend/internal/domain/repositories"
	"github.com/clinscribe/backend/internal/infrastructure/observability"
	apperrors "github.com/clinscribe/backend/pkg/errors"
)

// ConsultationProcessor drives one consultation through transcription,
// context resolution, note generation, and persistence. Progress is
// committed at each checkpoint so the stored status always reflects how far
// a run got; no error escapes Process.
type ConsultationProcessor struct {
	consultationRepo repositories.ConsultationRepository
	audioRepo        repositories.AudioFileRepository
	contextService   *PatientContextService
	transcriber      providers.TranscriptionProvider
	generator        providers.NoteGenerationProvider
	eventBus         providers.EventBus
	metrics          *observability.Metrics
}

// NewConsultationProcessor creates a new consultation processor
func NewConsultationProcessor(
	consultationRepo repositories.ConsultationRepository,
	audioRepo repositories.AudioFileRepository,
	contextService *PatientContextService,
	transcriber providers.TranscriptionProvider,
	generator providers.NoteGenerationProvider,
	eventBus providers.EventBus,
	metrics *observability.Metrics,
) *ConsultationProcessor {
	return &ConsultationProcessor{
		consultationRepo: consultationRepo,
		audioRepo:        audioRepo,
		contextService:   contextService,
		transcriber:      transcriber,
		generator:        generator,
		eventBus:         eventBus,
		metrics:          metrics,
	}
}

// Process runs the pipeline for one consultation. It communicates outcome
// only through the status store and logs; callers get nothing back.
func (s *ConsultationProcessor) Process(ctx context.Context, consultationID string) {
	ctx, span := observability.StartSpan(ctx, "pipeline.process")
	defer span.End()

	logger := observability.LoggerFromContext(ctx).With().
		Str("consultation_id", consultationID).
		Logger()

	consultation, err := s.consultationRepo.GetByID(ctx, consultationID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			logger.Warn().Msg("consultation not found, nothing to process")
		} else {
			logger.Error().Err(err).Msg("failed to load consultation")
		}
		return
	}

	if consultation.Status.IsTerminal() {
		logger.Warn().
			Str("status", string(consultation.Status)).
			Msg("consultation already in terminal state, skipping")
		return
	}

	// The conditional transition doubles as the run claim: of two
	// simultaneous triggers only one sees the row move out of pending.
	claimed, err := s.consultationRepo.TransitionStatus(ctx, consultationID,
		entities.ConsultationStatusPending, entities.ConsultationStatusInProgress)
	if err != nil {
		logger.Error().Err(err).Msg("failed to claim consultation")
		return
	}
	if !claimed {
		logger.Warn().Msg("consultation not in pending state, another run owns it")
		return
	}

	if s.metrics != nil {
		s.metrics.PipelineRunsStarted.Add(ctx, 1)
	}
	s.publishEvent(ctx, consultationID, entities.EventProcessingStarted,
		entities.ConsultationStatusInProgress, "claim", "")
	logger.Info().Msg("consultation processing started")

	audio, err := s.audioRepo.GetByConsultation(ctx, consultationID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			// The upload may still be in flight; leave the consultation in
			// progress rather than failing it outright.
			logger.Warn().Msg("audio file missing, aborting run")
			return
		}
		s.markFailed(ctx, &logger, consultationID, "load_audio", err)
		return
	}

	transcribeStart := time.Now()
	transcript, err := s.transcriber.Transcribe(ctx, audio.FileURL)
	observability.RecordStageMetric(ctx, s.metrics, "transcribe", time.Since(transcribeStart))
	if err != nil {
		s.markFailed(ctx, &logger, consultationID, "transcribe", err)
		return
	}

	// Transcription is the expensive half of the run. Commit it now so a
	// later generation failure never forces it to be redone.
	if err := s.audioRepo.SaveTranscription(ctx, audio.ID, transcript.Text); err != nil {
		s.markFailed(ctx, &logger, consultationID, "save_transcript", err)
		return
	}
	s.publishEvent(ctx, consultationID, entities.EventTranscriptReady,
		entities.ConsultationStatusInProgress, "transcribe", "")
	logger.Info().Int("utterances", len(transcript.Utterances)).Msg("transcription committed")

	patientCtx := s.contextService.Resolve(ctx, consultation.PatientID)

	generateStart := time.Now()
	generated, err := s.generator.GenerateNote(ctx, transcript.Text, transcript.Utterances, patientCtx)
	observability.RecordStageMetric(ctx, s.metrics, "generate", time.Since(generateStart))
	if err != nil {
		s.markFailed(ctx, &logger, consultationID, "generate", err)
		return
	}

	note := &entities.SOAPNote{
		ID:             uuid.New().String(),
		ConsultationID: consultationID,
		SOAPBody:       generated.SOAPBody,
		RiskFlags:      generated.RiskFlags,
		Confidence:     transcript.Confidence,
		GeneratedByAI:  true,
		CreatedAt:      time.Now(),
	}

	if err := s.consultationRepo.CompleteWithNote(ctx, consultationID, note); err != nil {
		s.markFailed(ctx, &logger, consultationID, "persist_note", err)
		return
	}

	if s.metrics != nil {
		s.metrics.PipelineRunsCompleted.Add(ctx, 1)
	}
	s.publishEvent(ctx, consultationID, entities.EventProcessingCompleted,
		entities.ConsultationStatusCompleted, "complete", "")
	logger.Info().Str("note_id", note.ID).Msg("consultation processing completed")
}

// Reprocess resets a terminal consultation and runs the pipeline again. A new
// note is appended; earlier notes are never mutated.
func (s *ConsultationProcessor) Reprocess(ctx context.Context, consultationID string) error {
	consultation, err := s.consultationRepo.GetByID(ctx, consultationID)
	if err != nil {
		return err
	}

	if !consultation.Status.IsTerminal() {
		return apperrors.NewValidationError("consultation is not in a terminal state")
	}

	reset, err := s.consultationRepo.TransitionStatus(ctx, consultationID,
		consultation.Status, entities.ConsultationStatusPending)
	if err != nil {
		return err
	}
	if !reset {
		return apperrors.NewConflictError("consultation status changed concurrently")
	}

	s.Process(ctx, consultationID)
	return nil
}

// markFailed folds any pipeline error into a terminal failed status. The
// cause is preserved in logs and the failure event, not in the row itself.
func (s *ConsultationProcessor) markFailed(ctx context.Context, logger *zerolog.Logger, consultationID, stage string, cause error) {
	logger.Error().Err(cause).Str("stage", stage).Msg("consultation processing failed")

	moved, err := s.consultationRepo.TransitionStatus(ctx, consultationID,
		entities.ConsultationStatusInProgress, entities.ConsultationStatusFailed)
	if err != nil {
		logger.Error().Err(err).Msg("failed to record failed status")
	} else if !moved {
		logger.Warn().Msg("consultation left in_progress before failure could be recorded")
	}

	if s.metrics != nil {
		s.metrics.PipelineRunsFailed.Add(ctx, 1)
	}
	s.publishEvent(ctx, consultationID, entities.EventProcessingFailed,
		entities.ConsultationStatusFailed, stage, cause.Error())
}

func (s *ConsultationProcessor) publishEvent(ctx context.Context, consultationID string, eventType entities.ConsultationEventType, status entities.ConsultationStatus, stage, errMsg string) {
	if s.eventBus == nil {
		return
	}

	event := &entities.ConsultationEvent{
		ID:             uuid.New().String(),
		ConsultationID: consultationID,
		Type:           eventType,
		Status:         status,
		Stage:          stage,
		Error:          errMsg,
		Timestamp:      time.Now(),
	}

	if err := s.eventBus.Publish(ctx, providers.GetConsultationChannel(consultationID), event); err != nil {
		observability.LoggerFromContext(ctx).Warn().
			Err(err).
			Str("consultation_id", consultationID).
			Msg("failed to publish consultation event")
	}
	if err := s.eventBus.Publish(ctx, providers.EventChannelConsultationUpdates, event); err != nil {
		observability.LoggerFromContext(ctx).Warn().
			Err(err).
			Str("consultation_id", consultationID).
			Msg("failed to publish consultation event")
	}
}
