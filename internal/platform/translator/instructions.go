package translator

import (
	"strings"

	"github.com/epsgw/epsgw/internal/platform/fhir"
)

// Additional instructions are a small sub-grammar embedded in the text of
// the first line item only: an ordered run of <medication> fragments (the
// patient's repeat-medication list), then <patientInfo> fragments (messages
// for the patient), then any free-text instruction. The ordering and the
// first-line-item-only placement are part of the wire contract.

// encodeAdditionalInstructions assembles the sub-grammar text. Returns ""
// when there is nothing to embed.
func encodeAdditionalInstructions(medications, patientInfo []string, freeText string) string {
	var sb strings.Builder
	for _, m := range medications {
		sb.WriteString("<medication>")
		sb.WriteString(m)
		sb.WriteString("</medication>")
	}
	for _, p := range patientInfo {
		sb.WriteString("<patientInfo>")
		sb.WriteString(p)
		sb.WriteString("</patientInfo>")
	}
	sb.WriteString(freeText)
	return sb.String()
}

// DecodeAdditionalInstructions splits sub-grammar text back into its parts.
// Fragments may interleave on the wire; document order is preserved within
// each list.
func DecodeAdditionalInstructions(text string) (medications, patientInfo []string, freeText string) {
	rest := text
	for {
		switch {
		case strings.HasPrefix(rest, "<medication>"):
			body, tail, ok := cutFragment(rest, "medication")
			if !ok {
				freeText = rest
				return
			}
			medications = append(medications, body)
			rest = tail
		case strings.HasPrefix(rest, "<patientInfo>"):
			body, tail, ok := cutFragment(rest, "patientInfo")
			if !ok {
				freeText = rest
				return
			}
			patientInfo = append(patientInfo, body)
			rest = tail
		default:
			freeText = rest
			return
		}
	}
}

func cutFragment(s, tag string) (body, tail string, ok bool) {
	open, close := "<"+tag+">", "</"+tag+">"
	end := strings.Index(s, close)
	if end < 0 {
		return "", "", false
	}
	return s[len(open):end], s[end+len(close):], true
}

// additionalInstructionsFor gathers the medication list and patient-info
// communication requests addressed to the patient and encodes them together
// with the line item's own instruction text.
func additionalInstructionsFor(b *fhir.Bundle, patientURN string, dosage []fhir.Dosage) string {
	var medications []string
	for _, raw := range fhir.ResourcesOfType(b, "List") {
		var list fhir.List
		if err := fhir.DecodeResource(raw, &list); err != nil {
			continue
		}
		for _, entry := range list.Entry {
			if entry.Item.Display != "" {
				medications = append(medications, entry.Item.Display)
			}
		}
	}

	var patientInfo []string
	for _, raw := range fhir.ResourcesOfType(b, "CommunicationRequest") {
		var cr fhir.CommunicationRequest
		if err := fhir.DecodeResource(raw, &cr); err != nil {
			continue
		}
		if cr.Subject != nil && cr.Subject.Reference != "" && cr.Subject.Reference != patientURN {
			continue
		}
		for _, p := range cr.Payload {
			if p.ContentString != "" {
				patientInfo = append(patientInfo, p.ContentString)
			}
		}
	}

	var freeText string
	for _, d := range dosage {
		if d.PatientInstruction != "" {
			freeText = d.PatientInstruction
			break
		}
	}

	if len(medications) == 0 && len(patientInfo) == 0 && freeText == "" {
		return ""
	}
	return encodeAdditionalInstructions(medications, patientInfo, freeText)
}
