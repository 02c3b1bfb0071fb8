package translator

import (
	"fmt"
	"strconv"

	"github.com/epsgw/epsgw/internal/platform/fhir"
	"github.com/epsgw/epsgw/internal/platform/hl7v3"
)

const (
	systemDispenseItemStatus     = "https://fhir.nhs.uk/CodeSystem/medicationdispense-type"
	systemPrescriptionTaskStatus = "https://fhir.nhs.uk/CodeSystem/EPS-task-business-status"
	systemChargeExemption        = "https://fhir.nhs.uk/CodeSystem/prescription-charge-exemption"
)

// buildDispenseNotification maps a dispense-notification bundle. There is a
// single canonical pipeline: the dispensing author is always resolved from
// the practitioner-role/organization graph in the bundle, never substituted
// with placeholder identifiers.
func (t *Translator) buildDispenseNotification(b *fhir.Bundle) (*hl7v3.DispenseNotification, error) {
	dispenses, err := medicationDispenses(b)
	if err != nil {
		return nil, err
	}
	first := dispenses[0]

	nhsNumber, err := patientNHSNumber(b, first)
	if err != nil {
		return nil, err
	}

	handedOver, err := parseFHIRTime(first.WhenHandedOver, "MedicationDispense.whenHandedOver")
	if err != nil {
		return nil, err
	}

	if len(first.Performer) == 0 {
		return nil, fhir.NewTooFewValues("MedicationDispense.performer", "dispense has no performer")
	}
	dispenser, err := resolveAgent(b, &first.Performer[0].Actor, "MedicationDispense.performer.actor")
	if err != nil {
		return nil, err
	}

	shortForm, longForm, status, err := dispensePrescriptionIDs(b, first)
	if err != nil {
		return nil, err
	}

	dn := &hl7v3.DispenseNotification{
		ID:               t.newID(),
		Effective:        handedOver,
		PatientNHSNumber: nhsNumber,
		Dispenser:        dispenser,
		PrescriptionID:   longForm,
		ShortFormID:      shortForm,
		StatusCode:       status.Code,
		StatusDisplay:    status.Display,
	}

	if ext := fhir.ExtensionByURL(first.Extension, fhir.ExtDispensingReleaseRef); ext != nil && ext.ValueIdentifier != nil {
		dn.PriorMessageRef = ext.ValueIdentifier.Value
	}

	for i, md := range dispenses {
		li, err := buildSuppliedLineItem(md, i)
		if err != nil {
			return nil, err
		}
		dn.LineItems = append(dn.LineItems, li)
	}
	return dn, nil
}

// buildDispenseClaim maps a dispense-claim bundle; it shares the supplied
// line item shape with the notification pipeline and adds charge/exemption.
func (t *Translator) buildDispenseClaim(b *fhir.Bundle) (*hl7v3.DispenseClaim, error) {
	dispenses, err := medicationDispenses(b)
	if err != nil {
		return nil, err
	}
	first := dispenses[0]

	nhsNumber, err := patientNHSNumber(b, first)
	if err != nil {
		return nil, err
	}

	handedOver, err := parseFHIRTime(first.WhenHandedOver, "MedicationDispense.whenHandedOver")
	if err != nil {
		return nil, err
	}

	if len(first.Performer) == 0 {
		return nil, fhir.NewTooFewValues("MedicationDispense.performer", "dispense has no performer")
	}
	dispenser, err := resolveAgent(b, &first.Performer[0].Actor, "MedicationDispense.performer.actor")
	if err != nil {
		return nil, err
	}

	shortForm, longForm, status, err := dispensePrescriptionIDs(b, first)
	if err != nil {
		return nil, err
	}

	dc := &hl7v3.DispenseClaim{
		ID:               t.newID(),
		Effective:        handedOver,
		PatientNHSNumber: nhsNumber,
		Dispenser:        dispenser,
		PrescriptionID:   longForm,
		ShortFormID:      shortForm,
		StatusCode:       status.Code,
		StatusDisplay:    status.Display,
		ChargeExemption:  "0001",
		ChargePaid:       true,
	}
	if ccEx, err := fhir.CodingForSystem(first.Type, systemChargeExemption, "MedicationDispense.type"); err == nil {
		dc.ChargeExemption = ccEx.Code
		dc.ChargePaid = ccEx.Code == "0001"
	}

	for i, md := range dispenses {
		li, err := buildSuppliedLineItem(md, i)
		if err != nil {
			return nil, err
		}
		dc.LineItems = append(dc.LineItems, li)
	}
	return dc, nil
}

func medicationDispenses(b *fhir.Bundle) ([]*fhir.MedicationDispense, error) {
	raws := fhir.ResourcesOfType(b, "MedicationDispense")
	if len(raws) == 0 {
		return nil, fhir.NewTooFewValues("Bundle.entry(MedicationDispense)", "bundle contains no MedicationDispense")
	}
	out := make([]*fhir.MedicationDispense, 0, len(raws))
	for i, raw := range raws {
		var md fhir.MedicationDispense
		if err := fhir.DecodeResource(raw, &md); err != nil {
			return nil, fhir.NewInvalidValue(fmt.Sprintf("MedicationDispense[%d]", i), "malformed resource: %v", err)
		}
		out = append(out, &md)
	}
	return out, nil
}

// patientNHSNumber accepts either form of the subject reference: an
// identifier reference carrying the NHS number directly, or a bundle-entry
// reference to a Patient resource.
func patientNHSNumber(b *fhir.Bundle, md *fhir.MedicationDispense) (string, error) {
	if md.Subject == nil {
		return "", fhir.NewTooFewValues("MedicationDispense.subject", "subject is missing")
	}
	if md.Subject.Identifier != nil {
		return fhir.IdentifierReferenceValue(md.Subject, SystemNHSNumber, "MedicationDispense.subject")
	}
	var p fhir.PatientResource
	if err := fhir.ResolveReferenceInto(b, md.Subject, "MedicationDispense.subject", &p); err != nil {
		return "", err
	}
	return fhir.IdentifierValue(p.Identifier, SystemNHSNumber, "Patient.identifier")
}

// dispensePrescriptionIDs pulls the prescription identifiers and business
// status shared by every line of a dispense message.
func dispensePrescriptionIDs(b *fhir.Bundle, md *fhir.MedicationDispense) (shortForm, longForm string, status *fhir.Coding, err error) {
	if len(md.AuthorizingPrescription) == 0 {
		return "", "", nil, fhir.NewTooFewValues("MedicationDispense.authorizingPrescription", "authorizing prescription is missing")
	}
	var mr fhir.MedicationRequest
	if err := fhir.ResolveReferenceInto(b, &md.AuthorizingPrescription[0], "MedicationDispense.authorizingPrescription", &mr); err != nil {
		return "", "", nil, err
	}
	shortForm, longForm, err = prescriptionIDs(&mr)
	if err != nil {
		return "", "", nil, err
	}

	if ext := fhir.ExtensionByURL(md.Extension, fhir.ExtTaskBusinessStatus); ext != nil && ext.ValueCoding != nil {
		if ext.ValueCoding.System != "" && ext.ValueCoding.System != systemPrescriptionTaskStatus {
			return "", "", nil, fhir.NewInvalidValue("MedicationDispense.extension(taskBusinessStatus)",
				"system %q, expected %q", ext.ValueCoding.System, systemPrescriptionTaskStatus)
		}
		return shortForm, longForm, ext.ValueCoding, nil
	}
	// Fall back to the dispense status when the business-status extension
	// is absent.
	return shortForm, longForm, &fhir.Coding{Code: "0001", Display: md.Status}, nil
}

func buildSuppliedLineItem(md *fhir.MedicationDispense, index int) (hl7v3.SuppliedLineItem, error) {
	var li hl7v3.SuppliedLineItem
	path := fmt.Sprintf("MedicationDispense[%d]", index)

	id, err := fhir.IdentifierValue(md.Identifier, "https://fhir.nhs.uk/Id/prescription-dispense-item-number", path+".identifier")
	if err != nil {
		return li, err
	}
	li.ID = id

	coding, err := fhir.CodingForSystem(md.MedicationCodeableConcept, SystemSNOMED, path+".medicationCodeableConcept")
	if err != nil {
		return li, err
	}
	li.SnomedCode = coding.Code
	li.SnomedDisplay = coding.Display

	if md.Quantity == nil || md.Quantity.Value == nil {
		return li, fhir.NewTooFewValues(path+".quantity", "supplied quantity is missing")
	}
	li.QuantityValue = strconv.FormatFloat(*md.Quantity.Value, 'f', -1, 64)
	li.QuantityUnit = md.Quantity.Unit
	li.QuantityCode = md.Quantity.Code

	if len(md.DosageInstruction) > 0 {
		li.DosageText = md.DosageInstruction[0].Text
	}

	if itemStatus, err := fhir.CodingForSystem(md.Type, systemDispenseItemStatus, path+".type"); err == nil {
		li.StatusCode = itemStatus.Code
		li.StatusDisplay = itemStatus.Display
	} else {
		li.StatusCode = "0001"
		li.StatusDisplay = "Item fully dispensed"
	}

	// The ordered line item this supply fulfils travels as an identifier on
	// the authorizing prescription reference.
	if len(md.AuthorizingPrescription) > 0 && md.AuthorizingPrescription[0].Identifier != nil {
		li.OrderedItemID = md.AuthorizingPrescription[0].Identifier.Value
	}
	if li.OrderedItemID == "" {
		return li, fhir.NewTooFewValues(path+".authorizingPrescription.identifier",
			"ordered line item identifier is missing")
	}
	return li, nil
}
