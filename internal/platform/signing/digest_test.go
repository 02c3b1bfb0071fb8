package signing

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/epsgw/epsgw/internal/platform/fhir"
	"github.com/epsgw/epsgw/internal/platform/hl7v3"
)

func testAgent() hl7v3.AgentPerson {
	return hl7v3.AgentPerson{
		RoleProfileID: "100102238986",
		JobRoleCode:   "R8000",
		UserID:        "555086689106",
		Name:          hl7v3.PersonName{Prefix: "MR", Given: []string{"RANDOM"}, Family: "FIFTYSEVEN"},
		Telecom:       "tel:011327534256",
		Organization: hl7v3.Organization{
			ODSCode:  "A83008",
			Name:     "HALLGARTH SURGERY",
			TypeCode: "999",
			Parent:   &hl7v3.Organization{ODSCode: "84H", Name: "NHS COUNTY DURHAM CCG"},
		},
	}
}

// testPrescription builds a complete single-item prescription payload the
// way the translator would emit it.
func testPrescription() *hl7v3.Element {
	authored := time.Date(2020, 12, 18, 12, 34, 34, 0, time.UTC)
	agent := testAgent()
	pp := hl7v3.ParentPrescription{
		ID:        "C0C756C1-5A71-4133-87BF-B7D6B7B0FD0D",
		Effective: authored,
		Patient: hl7v3.Patient{
			NHSNumber: "9446368138",
			Name:      hl7v3.PersonName{Prefix: "MISS", Given: []string{"ETTA"}, Family: "CORY"},
			Gender:    "2",
			BirthDate: time.Date(1999, 1, 4, 0, 0, 0, 0, time.UTC),
			Address:   hl7v3.Address{Use: "H", Lines: []string{"123 Dale Avenue", "Long Eaton"}, Postcode: "NG10 1NP"},
		},
		Prescription: hl7v3.Prescription{
			ID:                      "B2FC79F0-2793-4736-9B2D-0976C21E73A5",
			ShortFormID:             "E3E6FA-A83008-41F09Y",
			AuthoredOn:              authored,
			Author:                  agent,
			ResponsibleParty:        &agent,
			TreatmentTypeCode:       "0001",
			PrescriptionTypeCode:    "0101",
			PrescriptionTypeDisplay: "Primary Care Prescriber - Medical Prescriber",
			LineItems: []hl7v3.LineItem{{
				ID:                 "A0B2E8F2-3E3E-4B3A-9BD8-A1B7E2BF1DDF",
				SnomedCode:         "39720311000001101",
				SnomedDisplay:      "Paracetamol 500mg soluble tablets",
				QuantityValue:      "60",
				QuantityUnit:       "tablet",
				QuantityCode:       "428673006",
				DosageInstructions: "4 times a day - Oral",
			}},
		},
	}
	return pp.Element()
}

func TestPrepareDigestDeterministic(t *testing.T) {
	first, err := PrepareDigest(testPrescription())
	if err != nil {
		t.Fatalf("PrepareDigest: %v", err)
	}
	second, err := PrepareDigest(testPrescription())
	if err != nil {
		t.Fatalf("PrepareDigest: %v", err)
	}
	if first.DigestValue != second.DigestValue {
		t.Errorf("digest values differ: %q vs %q", first.DigestValue, second.DigestValue)
	}
	if first.SignedInfo != second.SignedInfo {
		t.Errorf("SignedInfo differs across runs")
	}
	if first.Fragments != second.Fragments {
		t.Errorf("fragments differ across runs")
	}
}

func TestExtractFragmentsOrder(t *testing.T) {
	fragments, err := ExtractFragments(testPrescription())
	if err != nil {
		t.Fatalf("ExtractFragments: %v", err)
	}
	if fragments.Name != "FragmentsToBeHashed" {
		t.Fatalf("root = %q, want FragmentsToBeHashed", fragments.Name)
	}

	var inner []string
	for _, f := range fragments.Children {
		if f.Name != "Fragment" {
			t.Fatalf("child = %q, want Fragment", f.Name)
		}
		if len(f.Children) != 1 {
			t.Fatalf("Fragment carries %d elements, want 1", len(f.Children))
		}
		if f.Children[0].AttrValue("xmlns") != hl7v3.Namespace {
			t.Errorf("fragment %s lost its namespace", f.Children[0].Name)
		}
		inner = append(inner, f.Children[0].Name)
	}

	want := []string{"time", "id", "AgentPerson", "recordTarget", "pertinentLineItem"}
	if len(inner) != len(want) {
		t.Fatalf("fragments = %v, want %v", inner, want)
	}
	for i := range want {
		if inner[i] != want[i] {
			t.Fatalf("fragments = %v, want %v", inner, want)
		}
	}
}

func TestExtractFragmentsDoesNotMutateInput(t *testing.T) {
	pp := testPrescription()
	before := string(hl7v3.Canonicalize(pp))
	if _, err := ExtractFragments(pp); err != nil {
		t.Fatalf("ExtractFragments: %v", err)
	}
	if after := string(hl7v3.Canonicalize(pp)); after != before {
		t.Error("input prescription was mutated")
	}
}

func TestExtractFragmentsMissingShortFormID(t *testing.T) {
	pp := testPrescription()
	rx := pp.FindPath("pertinentInformation1", "pertinentPrescription")
	kept := rx.Children[:0]
	for _, c := range rx.Children {
		if c.Name == "id" && c.AttrValue("root") == hl7v3.OIDPrescriptionShortForm {
			continue
		}
		kept = append(kept, c)
	}
	rx.Children = kept

	_, err := ExtractFragments(pp)
	var terr *fhir.TranslationError
	if !errors.As(err, &terr) || terr.Code != fhir.CodeTooFewValues {
		t.Fatalf("want TOO_FEW_VALUES_SUBMITTED, got %v", err)
	}
}

func TestPrepareDigestCoversLineItemChanges(t *testing.T) {
	base, err := PrepareDigest(testPrescription())
	if err != nil {
		t.Fatalf("PrepareDigest: %v", err)
	}

	changed := testPrescription()
	quantity := changed.FindPath("pertinentInformation1", "pertinentPrescription",
		"pertinentInformation2", "pertinentLineItem", "component", "lineItemQuantity", "quantity")
	quantity.Attr("value", "120")

	other, err := PrepareDigest(changed)
	if err != nil {
		t.Fatalf("PrepareDigest: %v", err)
	}
	if base.DigestValue == other.DigestValue {
		t.Error("digest did not change with the line item quantity")
	}
}

func TestDigestParameters(t *testing.T) {
	d, err := PrepareDigest(testPrescription())
	if err != nil {
		t.Fatalf("PrepareDigest: %v", err)
	}
	params := d.Parameters()
	if params.ResourceType != "Parameters" {
		t.Errorf("resourceType = %q, want Parameters", params.ResourceType)
	}
	if len(params.Parameter) != 1 || params.Parameter[0].Name != "message-digest" {
		t.Fatalf("parameters = %+v, want one message-digest parameter", params.Parameter)
	}
	if got := params.Parameter[0].ValueString; got != d.SignedInfo {
		t.Errorf("message-digest = %q, want the canonical SignedInfo", got)
	}
	if !strings.HasPrefix(params.Parameter[0].ValueString, "<SignedInfo") {
		t.Error("message-digest is not the SignedInfo XML")
	}
}

func TestSignedInfoElementAlgorithms(t *testing.T) {
	si := SignedInfoElement("DIGEST")
	if got := si.Find("CanonicalizationMethod").AttrValue("Algorithm"); got != AlgorithmC14N {
		t.Errorf("canonicalization = %q, want %q", got, AlgorithmC14N)
	}
	if got := si.Find("SignatureMethod").AttrValue("Algorithm"); got != AlgorithmRSASHA1 {
		t.Errorf("signature method = %q, want %q", got, AlgorithmRSASHA1)
	}
	ref := si.Find("Reference")
	if got := ref.Find("DigestMethod").AttrValue("Algorithm"); got != AlgorithmSHA1 {
		t.Errorf("digest method = %q, want %q", got, AlgorithmSHA1)
	}
	if got := ref.Find("DigestValue").Text; got != "DIGEST" {
		t.Errorf("digest value = %q", got)
	}
}
