package entities

// Utterance is one speaker-attributed, time-bounded segment of transcribed
// speech. Times are milliseconds from the start of the recording.
type Utterance struct {
	Speaker    string  `json:"speaker"`
	Text       string  `json:"text"`
	StartMs    int     `json:"start_ms"`
	EndMs      int     `json:"end_ms"`
	Confidence float64 `json:"confidence"`
}

// TranscriptResult is the typed output of a transcription provider
type TranscriptResult struct {
	Text       string      `json:"text"`
	Confidence *float64    `json:"confidence"`
	Utterances []Utterance `json:"utterances"`
}

// GeneratedNote is the typed output of a note generation provider
type GeneratedNote struct {
	SOAPBody  map[string]interface{} `json:"soap_note"`
	RiskFlags []string               `json:"risk_flags"`
}
