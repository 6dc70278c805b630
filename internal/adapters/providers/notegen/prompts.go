package notegen

import (
	"fmt"
	"strings"

	"github.com/clinscribe/backend/internal/domain/entities"
)

const soapSystemPrompt = `You are a clinical documentation assistant. Given the transcript of a doctor-patient consultation, produce a SOAP note. Return ONLY valid JSON with this schema:
{
  "soap_note": {
    "subjective": {"chief_complaint": string, "history_of_present_illness": string, "review_of_systems": string},
    "objective": {"observations": string, "vitals_mentioned": string},
    "assessment": {"primary_assessment": string, "differential": string[]},
    "plan": {"treatment": string, "medications": string[], "follow_up": string, "patient_education": string}
  },
  "risk_flags": string[] (short indicators such as "chest pain mentioned" or "medication non-adherence"; empty array if none)
}
Base every statement strictly on the transcript. Do not invent findings. Use the patient context only to personalize phrasing, never as a source of symptoms.`

func buildSOAPUserPrompt(transcript string, utterances []entities.Utterance, patient *entities.PatientContext) string {
	var sb strings.Builder

	sb.WriteString("PATIENT CONTEXT:\n")
	if patient != nil {
		fmt.Fprintf(&sb, "Name: %s %s\n", patient.FirstName, patient.LastName)
		fmt.Fprintf(&sb, "Age: %s\n", patient.AgeString())
		fmt.Fprintf(&sb, "Gender: %s\n", patient.Gender)
		if patient.Notes != "" {
			fmt.Fprintf(&sb, "Notes: %s\n", patient.Notes)
		}
	} else {
		sb.WriteString("Not available.\n")
	}

	sb.WriteString("\nCONVERSATION (speaker-labelled):\n")
	if len(utterances) > 0 {
		for _, u := range utterances {
			fmt.Fprintf(&sb, "Speaker %s: %s\n", u.Speaker, u.Text)
		}
	} else {
		sb.WriteString(transcript)
		sb.WriteString("\n")
	}

	sb.WriteString("\nFULL TRANSCRIPT:\n")
	sb.WriteString(transcript)

	return sb.String()
}
