package translator

import (
	"github.com/epsgw/epsgw/internal/platform/fhir"
	"github.com/epsgw/epsgw/internal/platform/hl7v3"
)

const systemCancellationReason = "https://fhir.nhs.uk/CodeSystem/medicationrequest-status-reason"

// buildCancellation maps a prescription-order-update bundle to a
// cancellation request for one line item of a previously submitted order.
func (t *Translator) buildCancellation(b *fhir.Bundle) (*hl7v3.CancellationRequest, error) {
	patient, _, err := buildPatient(b)
	if err != nil {
		return nil, err
	}

	requests, err := medicationRequests(b)
	if err != nil {
		return nil, err
	}
	if len(requests) > 1 {
		return nil, fhir.NewTooManyValues("Bundle.entry(MedicationRequest)",
			"cancellation bundle contains %d MedicationRequests, expected one", len(requests))
	}
	mr := requests[0]

	authoredOn, err := parseFHIRTime(mr.AuthoredOn, "MedicationRequest.authoredOn")
	if err != nil {
		return nil, err
	}

	shortForm, longForm, err := prescriptionIDs(mr)
	if err != nil {
		return nil, err
	}

	lineItemID, err := fhir.IdentifierValue(mr.Identifier, systemOrderItemNumber, "MedicationRequest.identifier")
	if err != nil {
		return nil, err
	}

	reason, err := fhir.CodingForSystem(mr.StatusReason, systemCancellationReason, "MedicationRequest.statusReason")
	if err != nil {
		return nil, err
	}

	author, err := resolveAgent(b, mr.Requester, "MedicationRequest.requester")
	if err != nil {
		return nil, err
	}

	cr := &hl7v3.CancellationRequest{
		ID:             t.newID(),
		Effective:      authoredOn,
		Patient:        patient,
		Author:         author,
		PrescriptionID: longForm,
		ShortFormID:    shortForm,
		LineItemID:     lineItemID,
		ReasonCode:     reason.Code,
		ReasonDisplay:  reason.Display,
	}

	if ext := fhir.ExtensionByURL(mr.Extension, fhir.ExtResponsiblePractitioner); ext != nil && ext.ValueReference != nil {
		rp, err := resolveAgent(b, ext.ValueReference, "MedicationRequest.extension(responsiblePractitioner)")
		if err != nil {
			return nil, err
		}
		cr.ResponsibleParty = &rp
	}

	return cr, nil
}
