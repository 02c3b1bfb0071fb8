package translator

import (
	"fmt"
	"strconv"

	"github.com/epsgw/epsgw/internal/platform/fhir"
	"github.com/epsgw/epsgw/internal/platform/hl7v3"
)

const systemOrderItemNumber = "https://fhir.nhs.uk/Id/prescription-order-item-number"

// Course-of-therapy codes mapped to prescription treatment type.
const (
	TreatmentAcute             = "0001"
	TreatmentRepeatPrescribing = "0002"
	TreatmentRepeatDispensing  = "0003"
)

// BuildParentPrescription maps a prescription-order bundle to the signable
// ParentPrescription payload. It is exported because the digest engine runs
// the same mapping when preparing a prescription for signing: the signed
// bytes and the submitted bytes must come from one construction path.
func (t *Translator) BuildParentPrescription(b *fhir.Bundle) (*hl7v3.ParentPrescription, error) {
	patient, patientURN, err := buildPatient(b)
	if err != nil {
		return nil, err
	}

	requests, err := medicationRequests(b)
	if err != nil {
		return nil, err
	}
	first := requests[0]

	authoredOn, err := parseFHIRTime(first.AuthoredOn, "MedicationRequest.authoredOn")
	if err != nil {
		return nil, err
	}

	shortForm, longForm, err := prescriptionIDs(first)
	if err != nil {
		return nil, err
	}

	author, err := resolveAgent(b, first.Requester, "MedicationRequest.requester")
	if err != nil {
		return nil, err
	}

	rx := hl7v3.Prescription{
		ID:          longForm,
		ShortFormID: shortForm,
		AuthoredOn:  authoredOn,
		Author:      author,
	}

	if ext := fhir.ExtensionByURL(first.Extension, fhir.ExtResponsiblePractitioner); ext != nil && ext.ValueReference != nil {
		rp, err := resolveAgent(b, ext.ValueReference, "MedicationRequest.extension(responsiblePractitioner)")
		if err != nil {
			return nil, err
		}
		rx.ResponsibleParty = &rp
	} else {
		rp := author
		rx.ResponsibleParty = &rp
	}

	typeExt, err := fhir.ExtensionByURLStrict(first.Extension, fhir.ExtPrescriptionType, "MedicationRequest.extension(prescriptionType)")
	if err != nil {
		return nil, err
	}
	if typeExt.ValueCoding == nil {
		return nil, fhir.NewInvalidValue("MedicationRequest.extension(prescriptionType)", "extension carries no coding")
	}
	rx.PrescriptionTypeCode = typeExt.ValueCoding.Code
	rx.PrescriptionTypeDisplay = typeExt.ValueCoding.Display

	rx.TreatmentTypeCode, err = treatmentType(first)
	if err != nil {
		return nil, err
	}

	if first.DispenseRequest != nil {
		if ext := fhir.ExtensionByURL(first.DispenseRequest.Extension, fhir.ExtPerformerSiteType); ext != nil && ext.ValueCoding != nil {
			rx.DispensingSitePref = ext.ValueCoding.Code
		}
	}

	if err := applyRepeatDispensing(&rx, first); err != nil {
		return nil, err
	}

	for i, mr := range requests {
		li, err := buildLineItem(b, mr, i, patientURN)
		if err != nil {
			return nil, err
		}
		rx.LineItems = append(rx.LineItems, li)
	}

	return &hl7v3.ParentPrescription{
		ID:           t.newID(),
		Effective:    authoredOn,
		Patient:      patient,
		Prescription: rx,
	}, nil
}

func buildPatient(b *fhir.Bundle) (hl7v3.Patient, string, error) {
	var out hl7v3.Patient

	raw, err := fhir.ResolveOne(b, "Patient", "Bundle.entry(Patient)")
	if err != nil {
		return out, "", err
	}
	var p fhir.PatientResource
	if err := fhir.DecodeResource(raw, &p); err != nil {
		return out, "", fhir.NewInvalidValue("Patient", "malformed resource: %v", err)
	}

	nhsNumber, err := fhir.IdentifierValue(p.Identifier, SystemNHSNumber, "Patient.identifier")
	if err != nil {
		return out, "", err
	}
	out.NHSNumber = nhsNumber
	out.Name = personName(p.Name)
	out.Gender = genderCode(p.Gender)

	if p.BirthDate != "" {
		bd, err := parseFHIRTime(p.BirthDate, "Patient.birthDate")
		if err != nil {
			return out, "", err
		}
		out.BirthDate = bd
	}
	if len(p.Address) > 0 {
		a := p.Address[0]
		lines := append([]string(nil), a.Line...)
		if a.City != "" {
			lines = append(lines, a.City)
		}
		out.Address = hl7v3.Address{Use: "H", Lines: lines, Postcode: a.PostalCode}
	}

	return out, "urn:uuid:" + p.ID, nil
}

func medicationRequests(b *fhir.Bundle) ([]*fhir.MedicationRequest, error) {
	raws := fhir.ResourcesOfType(b, "MedicationRequest")
	if len(raws) == 0 {
		return nil, fhir.NewTooFewValues("Bundle.entry(MedicationRequest)", "bundle contains no MedicationRequest")
	}
	out := make([]*fhir.MedicationRequest, 0, len(raws))
	for i, raw := range raws {
		var mr fhir.MedicationRequest
		if err := fhir.DecodeResource(raw, &mr); err != nil {
			return nil, fhir.NewInvalidValue(fmt.Sprintf("MedicationRequest[%d]", i), "malformed resource: %v", err)
		}
		out = append(out, &mr)
	}
	return out, nil
}

// prescriptionIDs extracts the paired identifiers: the human-readable
// short form from groupIdentifier.value and the long-form UUID from its
// prescription-id extension.
func prescriptionIDs(mr *fhir.MedicationRequest) (shortForm, longForm string, err error) {
	if mr.GroupIdentifier == nil {
		return "", "", fhir.NewTooFewValues("MedicationRequest.groupIdentifier", "group identifier is missing")
	}
	if mr.GroupIdentifier.System != SystemPrescriptionOrder {
		return "", "", fhir.NewInvalidValue("MedicationRequest.groupIdentifier.system",
			"system %q, expected %q", mr.GroupIdentifier.System, SystemPrescriptionOrder)
	}
	shortForm = mr.GroupIdentifier.Value

	ext, err := fhir.ExtensionByURLStrict(mr.GroupIdentifier.Extension, fhir.ExtGroupIdentifierUUID,
		"MedicationRequest.groupIdentifier.extension")
	if err != nil {
		return "", "", err
	}
	if ext.ValueIdentifier == nil || ext.ValueIdentifier.Value == "" {
		return "", "", fhir.NewInvalidValue("MedicationRequest.groupIdentifier.extension",
			"prescription-id extension carries no identifier")
	}
	return shortForm, ext.ValueIdentifier.Value, nil
}

func treatmentType(mr *fhir.MedicationRequest) (string, error) {
	if mr.CourseOfTherapyType == nil || len(mr.CourseOfTherapyType.Coding) == 0 {
		return TreatmentAcute, nil
	}
	switch code := mr.CourseOfTherapyType.Coding[0].Code; code {
	case "acute":
		return TreatmentAcute, nil
	case "continuous":
		return TreatmentRepeatPrescribing, nil
	case "continuous-repeat-dispensing":
		return TreatmentRepeatDispensing, nil
	default:
		return "", fhir.NewInvalidValue("MedicationRequest.courseOfTherapyType", "unknown course of therapy %q", code)
	}
}

// applyRepeatDispensing enforces the repeat-dispensing contract: a validity
// period, an expected supply duration in days, and the repeat-information
// extension are all required, never defaulted.
func applyRepeatDispensing(rx *hl7v3.Prescription, mr *fhir.MedicationRequest) error {
	if days, err := supplyDurationDays(mr); err != nil {
		return err
	} else {
		rx.ExpectedSupplyDays = days
	}

	if mr.DispenseRequest != nil && mr.DispenseRequest.ValidityPeriod != nil {
		vp := mr.DispenseRequest.ValidityPeriod
		if vp.Start != "" {
			start, err := parseFHIRTime(vp.Start, "MedicationRequest.dispenseRequest.validityPeriod.start")
			if err != nil {
				return err
			}
			rx.ValidityLow = start
		}
		if vp.End != "" {
			end, err := parseFHIRTime(vp.End, "MedicationRequest.dispenseRequest.validityPeriod.end")
			if err != nil {
				return err
			}
			rx.ValidityHigh = end
		}
	}

	repeatExt := fhir.ExtensionByURL(mr.Extension, fhir.ExtRepeatInformation)
	if repeatExt != nil {
		for _, sub := range repeatExt.Extension {
			switch sub.URL {
			case fhir.ExtNumberOfRepeatsAllowed:
				if sub.ValueUnsignedInt != nil {
					rx.RepeatLow = repeatIssueNumber(repeatExt)
					rx.RepeatHigh = *sub.ValueUnsignedInt
				}
			case fhir.ExtAuthorisationExpiryDate:
				v := sub.ValueDateTime
				if v == "" {
					v = sub.ValueDate
				}
				if v != "" {
					rd, err := parseFHIRTime(v, "MedicationRequest.extension(repeatInformation).authorisationExpiryDate")
					if err != nil {
						return err
					}
					rx.ReviewDate = rd
				}
			}
		}
	}

	if rx.TreatmentTypeCode == TreatmentRepeatDispensing {
		if rx.ValidityLow.IsZero() && rx.ValidityHigh.IsZero() {
			return fhir.NewTooFewValues("MedicationRequest.dispenseRequest.validityPeriod",
				"repeat dispensing requires a validity period")
		}
		if rx.ExpectedSupplyDays == 0 {
			return fhir.NewTooFewValues("MedicationRequest.dispenseRequest.expectedSupplyDuration",
				"repeat dispensing requires an expected supply duration")
		}
		if repeatExt == nil {
			return fhir.NewTooFewValues("MedicationRequest.extension(repeatInformation)",
				"repeat dispensing requires the repeat-information extension")
		}
	}
	return nil
}

// supplyDurationDays returns the expected supply duration, insisting on a
// day-denominated quantity. Any other unit is a translation error, never a
// silent conversion.
func supplyDurationDays(mr *fhir.MedicationRequest) (int, error) {
	if mr.DispenseRequest == nil || mr.DispenseRequest.ExpectedSupplyDuration == nil {
		return 0, nil
	}
	d := mr.DispenseRequest.ExpectedSupplyDuration
	if d.Code != "d" {
		return 0, fhir.NewInvalidValue("MedicationRequest.dispenseRequest.expectedSupplyDuration",
			"expected supply duration must be expressed in days, got unit %q", d.Code)
	}
	if d.Value == nil {
		return 0, fhir.NewTooFewValues("MedicationRequest.dispenseRequest.expectedSupplyDuration", "duration has no value")
	}
	return int(*d.Value), nil
}

func buildLineItem(b *fhir.Bundle, mr *fhir.MedicationRequest, index int, patientURN string) (hl7v3.LineItem, error) {
	var li hl7v3.LineItem
	path := fmt.Sprintf("MedicationRequest[%d]", index)

	itemID, err := fhir.IdentifierValue(mr.Identifier, systemOrderItemNumber, path+".identifier")
	if err != nil {
		return li, err
	}
	li.ID = itemID

	coding, err := fhir.CodingForSystem(mr.MedicationCodeableConcept, SystemSNOMED, path+".medicationCodeableConcept")
	if err != nil {
		return li, err
	}
	li.SnomedCode = coding.Code
	li.SnomedDisplay = coding.Display

	if mr.DispenseRequest == nil || mr.DispenseRequest.Quantity == nil || mr.DispenseRequest.Quantity.Value == nil {
		return li, fhir.NewTooFewValues(path+".dispenseRequest.quantity", "dispense quantity is missing")
	}
	q := mr.DispenseRequest.Quantity
	li.QuantityValue = strconv.FormatFloat(*q.Value, 'f', -1, 64)
	li.QuantityUnit = q.Unit
	li.QuantityCode = q.Code

	if len(mr.DosageInstruction) == 0 || mr.DosageInstruction[0].Text == "" {
		return li, fhir.NewTooFewValues(path+".dosageInstruction", "dosage instruction text is missing")
	}
	li.DosageInstructions = mr.DosageInstruction[0].Text

	// The medication list and patient-info communications attach to the
	// first line item only.
	if index == 0 {
		li.AdditionalInstructions = additionalInstructionsFor(b, patientURN, mr.DosageInstruction)
	}

	if repeatExt := fhir.ExtensionByURL(mr.Extension, fhir.ExtRepeatInformation); repeatExt != nil {
		for _, sub := range repeatExt.Extension {
			if sub.URL == fhir.ExtNumberOfRepeatsAllowed && sub.ValueUnsignedInt != nil {
				li.RepeatLow = repeatIssueNumber(repeatExt)
				li.RepeatHigh = *sub.ValueUnsignedInt
			}
		}
	}

	return li, nil
}

// repeatIssueNumber derives the current issue number of a repeat-dispensing
// prescription: one past the number of issues already made, or the first
// issue when that count is absent.
func repeatIssueNumber(repeatExt *fhir.Extension) int {
	for _, sub := range repeatExt.Extension {
		if sub.URL == fhir.ExtNumberOfRepeatsIssued && sub.ValueUnsignedInt != nil {
			return *sub.ValueUnsignedInt + 1
		}
	}
	return 1
}

func genderCode(gender string) string {
	switch gender {
	case "male":
		return "1"
	case "female":
		return "2"
	case "other":
		return "3"
	default:
		return "0"
	}
}
