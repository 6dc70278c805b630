package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/clinscribe/backend/internal/adapters/providers/notegen"
	"github.com/clinscribe/backend/internal/adapters/providers/transcription"
	"github.com/clinscribe/backend/internal/domain/entities"
	"github.com/clinscribe/backend/internal/infrastructure/observability"
	"github.com/clinscribe/backend/pkg/config"
)

// batchResult is the JSON document written per manifest entry.
type batchResult struct {
	AudioURL   string                 `json:"audio_url"`
	Transcript string                 `json:"transcript"`
	Confidence *float64               `json:"confidence,omitempty"`
	SOAPNote   map[string]interface{} `json:"soap_note"`
	RiskFlags  []string               `json:"risk_flags"`
	Error      string                 `json:"error,omitempty"`
	DurationMs int64                  `json:"duration_ms"`
}

func main() {
	manifestPath := flag.String("manifest", "", "path to a file with one audio URL per line")
	outputDir := flag.String("out", "batch-output", "directory for per-entry JSON results")
	flag.Parse()

	if *manifestPath == "" {
		fmt.Fprintln(os.Stderr, "usage: batch -manifest <file> [-out <dir>]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger("clinscribe-batch", cfg.Environment)
	logger := observability.GetLogger()

	transcriber, err := transcription.NewTranscriptionProvider(&cfg.Transcription, nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize transcription provider")
	}

	generator, err := notegen.NewNoteGenerationProvider(&cfg.NoteGen, nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize note generation provider")
	}

	urls, err := readManifest(*manifestPath)
	if err != nil {
		logger.Fatal().Err(err).Str("manifest", *manifestPath).Msg("failed to read manifest")
	}
	if len(urls) == 0 {
		logger.Fatal().Str("manifest", *manifestPath).Msg("manifest contains no audio URLs")
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		logger.Fatal().Err(err).Str("dir", *outputDir).Msg("failed to create output directory")
	}

	ctx := context.Background()

	// No per-patient records in batch mode; every entry gets the same
	// anonymous context.
	patient := &entities.PatientContext{
		Age:    entities.AgeUnknown,
		Gender: "Unknown",
		Notes:  "No patient context available",
	}

	succeeded, failed := 0, 0
	for i, audioURL := range urls {
		start := time.Now()
		result := batchResult{AudioURL: audioURL}

		transcript, err := transcriber.Transcribe(ctx, audioURL)
		if err != nil {
			result.Error = err.Error()
		} else {
			result.Transcript = transcript.Text
			result.Confidence = transcript.Confidence

			note, err := generator.GenerateNote(ctx, transcript.Text, transcript.Utterances, patient)
			if err != nil {
				result.Error = err.Error()
			} else {
				result.SOAPNote = note.SOAPBody
				result.RiskFlags = note.RiskFlags
			}
		}
		result.DurationMs = time.Since(start).Milliseconds()

		outPath := filepath.Join(*outputDir, fmt.Sprintf("result_%03d.json", i+1))
		if err := writeResult(outPath, &result); err != nil {
			logger.Error().Err(err).Str("path", outPath).Msg("failed to write result")
			failed++
			continue
		}

		if result.Error != "" {
			logger.Warn().Str("audio_url", audioURL).Str("error", result.Error).Msg("entry failed")
			failed++
		} else {
			logger.Info().Str("audio_url", audioURL).Int64("duration_ms", result.DurationMs).Msg("entry completed")
			succeeded++
		}
	}

	logger.Info().
		Int("total", len(urls)).
		Int("succeeded", succeeded).
		Int("failed", failed).
		Str("output_dir", *outputDir).
		Msg("batch complete")

	if failed > 0 {
		os.Exit(1)
	}
}

func readManifest(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, scanner.Err()
}

func writeResult(path string, result *batchResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
