package translator

import (
	"testing"

	"github.com/epsgw/epsgw/internal/platform/fhir"
)

func dispenseFixture(t *testing.T) (*fhir.Bundle, *fhir.MedicationDispense) {
	t.Helper()
	mr := fhir.MedicationRequest{
		ResourceType: "MedicationRequest",
		ID:           "mr-1",
		GroupIdentifier: &fhir.GroupIdentifier{
			System: SystemPrescriptionOrder,
			Value:  "E3E6FA-A83008-41F09Y",
			Extension: []fhir.Extension{{
				URL: fhir.ExtGroupIdentifierUUID,
				ValueIdentifier: &fhir.Identifier{
					Value: "B2FC79F0-2793-4736-9B2D-0976C21E73A5",
				},
			}},
		},
	}
	b := &fhir.Bundle{
		ResourceType: "Bundle",
		Type:         "message",
		Entry:        []fhir.BundleEntry{mustEntry(t, "mr-1", mr)},
	}
	md := &fhir.MedicationDispense{
		ResourceType:            "MedicationDispense",
		Status:                  "completed",
		AuthorizingPrescription: []fhir.Reference{{Reference: "urn:uuid:mr-1"}},
	}
	return b, md
}

func TestDispensePrescriptionIDsBusinessStatus(t *testing.T) {
	b, md := dispenseFixture(t)
	md.Extension = []fhir.Extension{{
		URL: fhir.ExtTaskBusinessStatus,
		ValueCoding: &fhir.Coding{
			System:  systemPrescriptionTaskStatus,
			Code:    "0006",
			Display: "Dispensed",
		},
	}}

	shortForm, longForm, status, err := dispensePrescriptionIDs(b, md)
	if err != nil {
		t.Fatalf("dispensePrescriptionIDs: %v", err)
	}
	if shortForm != "E3E6FA-A83008-41F09Y" || longForm != "B2FC79F0-2793-4736-9B2D-0976C21E73A5" {
		t.Errorf("ids = %q, %q", shortForm, longForm)
	}
	if status.Code != "0006" || status.Display != "Dispensed" {
		t.Errorf("status = %+v", status)
	}
}

func TestDispensePrescriptionIDsRejectsForeignStatusSystem(t *testing.T) {
	b, md := dispenseFixture(t)
	md.Extension = []fhir.Extension{{
		URL: fhir.ExtTaskBusinessStatus,
		ValueCoding: &fhir.Coding{
			System: "https://example.com/CodeSystem/other-status",
			Code:   "0006",
		},
	}}

	_, _, _, err := dispensePrescriptionIDs(b, md)
	assertTranslationCode(t, err, fhir.CodeInvalidValue)
}

func TestDispensePrescriptionIDsStatusFallback(t *testing.T) {
	b, md := dispenseFixture(t)

	_, _, status, err := dispensePrescriptionIDs(b, md)
	if err != nil {
		t.Fatalf("dispensePrescriptionIDs: %v", err)
	}
	if status.Code != "0001" || status.Display != "completed" {
		t.Errorf("fallback status = %+v", status)
	}
}
