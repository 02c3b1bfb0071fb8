package translator

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/epsgw/epsgw/internal/platform/fhir"
	"github.com/epsgw/epsgw/internal/platform/hl7v3"
)

// Response is the translated form of a raw exchange reply: an HTTP-style
// status plus either a clinical Bundle or an OperationOutcome.
type Response struct {
	StatusCode int
	Resource   interface{}
}

// TranslateResponse classifies a raw exchange response body by structural
// pattern and maps it to FHIR. Recognised patterns: a synchronous
// acknowledgement, an asynchronous acknowledgement wrapped in a
// ControlActEvent, a cancellation response, or a body that is already
// structured JSON (passed through untouched).
func (t *Translator) TranslateResponse(rawBody []byte) (Response, error) {
	trimmed := bytes.TrimSpace(rawBody)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return Response{StatusCode: http.StatusOK, Resource: trimmed}, nil
	}

	root, err := hl7v3.Parse(trimmed)
	if err != nil {
		return Response{}, fhir.NewInvalidValue("", "response is neither JSON nor well-formed XML: %v", err)
	}

	if cancel := root.FindDescendant("CancellationResponse"); cancel != nil {
		return t.translateCancellationResponse(root, cancel)
	}

	ack := root.FindDescendant("acknowledgement")
	if ack == nil {
		return Response{}, fhir.NewInvalidValue("", "response %s carries no acknowledgement", root.Name)
	}

	switch ack.AttrValue("typeCode") {
	case hl7v3.AckTypeAcknowledged:
		return Response{
			StatusCode: http.StatusOK,
			Resource:   fhir.SuccessOutcome(),
		}, nil
	case hl7v3.AckTypeError, hl7v3.AckTypeRejected:
		return Response{
			StatusCode: http.StatusBadRequest,
			Resource:   acknowledgementOutcome(root, ack),
		}, nil
	}
	return Response{}, fhir.NewInvalidValue("", "unknown acknowledgement type %q", ack.AttrValue("typeCode"))
}

// acknowledgementOutcome maps every reported error to one issue: the
// acknowledgementDetail codes of a rejection and the reason/justification
// codes of an application error are all surfaced, never just the first.
func acknowledgementOutcome(root, ack *hl7v3.Element) *fhir.OperationOutcome {
	b := fhir.NewOutcomeBuilder()

	for _, detail := range ack.FindAll("acknowledgementDetail") {
		if code := detail.Find("code"); code != nil {
			b.AddIssueWithDetails(fhir.IssueSeverityError, fhir.IssueTypeProcessing,
				code.AttrValue("displayName"),
				&fhir.CodeableConcept{Coding: []fhir.Coding{{
					System:  code.AttrValue("codeSystem"),
					Code:    code.AttrValue("code"),
					Display: code.AttrValue("displayName"),
				}}})
		}
	}
	root.Walk(func(e *hl7v3.Element) bool {
		if e.Name == "justifyingDetectedIssueEvent" {
			if code := e.Find("code"); code != nil {
				b.AddIssueWithDetails(fhir.IssueSeverityError, fhir.IssueTypeBusinessRule,
					code.AttrValue("displayName"),
					&fhir.CodeableConcept{Coding: []fhir.Coding{{
						System:  code.AttrValue("codeSystem"),
						Code:    code.AttrValue("code"),
						Display: code.AttrValue("displayName"),
					}}})
			}
		}
		return true
	})

	outcome := b.Build()
	if len(outcome.Issue) == 0 {
		outcome = fhir.NewOperationOutcome(fhir.IssueSeverityError, fhir.IssueTypeProcessing,
			"the exchange rejected the message without detail codes")
	}
	return outcome
}

// translateCancellationResponse maps the cancellation-specific reply back
// into a clinical bundle: the patient, the affected medication request, and
// the responding practitioner/organization graph.
func (t *Translator) translateCancellationResponse(root, cancel *hl7v3.Element) (Response, error) {
	status := http.StatusOK
	if ack := root.FindDescendant("acknowledgement"); ack != nil &&
		ack.AttrValue("typeCode") != hl7v3.AckTypeAcknowledged {
		status = http.StatusBadRequest
	}

	patientID := uuid.New().String()
	practitionerID := uuid.New().String()
	roleID := uuid.New().String()
	orgID := uuid.New().String()
	mrID := uuid.New().String()

	patient := fhir.PatientResource{ResourceType: "Patient", ID: patientID}
	if nhs := cancel.FindPath("recordTarget", "Patient", "id"); nhs != nil {
		patient.Identifier = []fhir.Identifier{{System: SystemNHSNumber, Value: nhs.AttrValue("extension")}}
	}
	if name := cancel.FindPath("recordTarget", "Patient", "patientPerson", "name"); name != nil {
		patient.Name = []fhir.HumanName{fhirName(name)}
	}

	practitioner := fhir.Practitioner{ResourceType: "Practitioner", ID: practitionerID}
	role := fhir.PractitionerRole{
		ResourceType: "PractitionerRole",
		ID:           roleID,
		Practitioner: &fhir.Reference{Reference: "urn:uuid:" + practitionerID},
		Organization: &fhir.Reference{Reference: "urn:uuid:" + orgID},
	}
	org := fhir.OrganizationResource{ResourceType: "Organization", ID: orgID}

	if agent := cancel.FindDescendant("AgentPerson"); agent != nil {
		if id := agent.Find("id"); id != nil {
			role.Identifier = []fhir.Identifier{{System: SystemSDSRoleProfileID, Value: id.AttrValue("extension")}}
		}
		if person := agent.Find("agentPerson"); person != nil {
			if id := person.Find("id"); id != nil {
				practitioner.Identifier = []fhir.Identifier{{System: SystemSDSUserID, Value: id.AttrValue("extension")}}
			}
			if name := person.Find("name"); name != nil {
				practitioner.Name = []fhir.HumanName{fhirName(name)}
			}
		}
		if repOrg := agent.Find("representedOrganization"); repOrg != nil {
			if id := repOrg.Find("id"); id != nil {
				org.Identifier = []fhir.Identifier{{System: SystemODSCode, Value: id.AttrValue("extension")}}
			}
			if n := repOrg.Find("name"); n != nil {
				org.Name = n.Text
			}
		}
	}

	mr := fhir.MedicationRequest{
		ResourceType: "MedicationRequest",
		ID:           mrID,
		Status:       "cancelled",
		Intent:       "order",
		Subject:      &fhir.Reference{Reference: "urn:uuid:" + patientID},
		Requester:    &fhir.Reference{Reference: "urn:uuid:" + roleID},
	}
	if rx := cancel.FindDescendant("pertinentPrescription"); rx != nil {
		for _, id := range rx.FindAll("id") {
			if id.AttrValue("root") == hl7v3.OIDPrescriptionShortForm {
				mr.GroupIdentifier = &fhir.GroupIdentifier{
					System: SystemPrescriptionOrder,
					Value:  id.AttrValue("extension"),
				}
			}
		}
	}
	if reason := cancel.FindDescendant("pertinentResponse"); reason != nil {
		if v := reason.Find("value"); v != nil {
			mr.StatusReason = &fhir.CodeableConcept{Coding: []fhir.Coding{{
				Code:    v.AttrValue("code"),
				Display: v.AttrValue("displayName"),
			}}}
		}
	}

	bundle, err := fhir.NewMessageBundle(strings.ToLower(t.newID()), []interface{}{
		&patient, &mr, &role, &practitioner, &org,
	})
	if err != nil {
		return Response{}, err
	}
	return Response{StatusCode: status, Resource: bundle}, nil
}

func fhirName(name *hl7v3.Element) fhir.HumanName {
	out := fhir.HumanName{Use: "usual"}
	for _, c := range name.Children {
		switch c.Name {
		case "prefix":
			out.Prefix = append(out.Prefix, c.Text)
		case "given":
			out.Given = append(out.Given, c.Text)
		case "family":
			out.Family = c.Text
		case "suffix":
			out.Suffix = append(out.Suffix, c.Text)
		}
	}
	return out
}
