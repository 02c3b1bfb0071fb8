package translator

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/epsgw/epsgw/internal/platform/fhir"
	"github.com/epsgw/epsgw/internal/platform/hl7v3"
)

func TestTranslateResponseJSONPassthrough(t *testing.T) {
	tr := newTestTranslator()
	body := []byte(`  {"resourceType":"OperationOutcome","issue":[]}`)
	resp, err := tr.TranslateResponse(body)
	if err != nil {
		t.Fatalf("TranslateResponse: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	raw, ok := resp.Resource.([]byte)
	if !ok {
		t.Fatalf("resource type = %T, want []byte", resp.Resource)
	}
	if fhir.ResourceType(raw) != "OperationOutcome" {
		t.Errorf("passthrough resource = %s", fhir.ResourceType(raw))
	}
}

func TestTranslateResponseAcknowledged(t *testing.T) {
	tr := newTestTranslator()
	body := []byte(`<PORX_IN020102UK31 xmlns="urn:hl7-org:v3">` +
		`<id root="2CDA0FBF-0195-42F2-8F82-2E4CCBEA6EAB"/>` +
		`<acknowledgement typeCode="AA"/>` +
		`</PORX_IN020102UK31>`)

	resp, err := tr.TranslateResponse(body)
	if err != nil {
		t.Fatalf("TranslateResponse: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	outcome, ok := resp.Resource.(*fhir.OperationOutcome)
	if !ok {
		t.Fatalf("resource type = %T, want *fhir.OperationOutcome", resp.Resource)
	}
	if len(outcome.Issue) != 1 || outcome.Issue[0].Severity != fhir.IssueSeverityInformation {
		t.Errorf("success outcome = %+v", outcome)
	}
}

func TestTranslateResponseRejectedReportsEveryDetail(t *testing.T) {
	tr := newTestTranslator()
	body := []byte(`<MCCI_IN010000UK13 xmlns="urn:hl7-org:v3">` +
		`<acknowledgement typeCode="AR">` +
		`<acknowledgementDetail typeCode="ER">` +
		`<code codeSystem="2.16.840.1.113883.2.1.3.2.4.17.32" code="5000" displayName="Unable to process message"/>` +
		`</acknowledgementDetail>` +
		`<acknowledgementDetail typeCode="ER">` +
		`<code codeSystem="2.16.840.1.113883.2.1.3.2.4.17.32" code="5008" displayName="Duplicate item ID exists"/>` +
		`</acknowledgementDetail>` +
		`</acknowledgement>` +
		`</MCCI_IN010000UK13>`)

	resp, err := tr.TranslateResponse(body)
	if err != nil {
		t.Fatalf("TranslateResponse: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	outcome := resp.Resource.(*fhir.OperationOutcome)
	if len(outcome.Issue) != 2 {
		t.Fatalf("issues = %d, want 2", len(outcome.Issue))
	}
	var codes []string
	for _, issue := range outcome.Issue {
		if issue.Severity != fhir.IssueSeverityError {
			t.Errorf("issue severity = %s, want error", issue.Severity)
		}
		if issue.Details == nil || len(issue.Details.Coding) == 0 {
			t.Fatalf("issue carries no detail coding: %+v", issue)
		}
		codes = append(codes, issue.Details.Coding[0].Code)
	}
	if codes[0] != "5000" || codes[1] != "5008" {
		t.Errorf("detail codes = %v, want [5000 5008]", codes)
	}
}

func TestTranslateResponseApplicationError(t *testing.T) {
	tr := newTestTranslator()
	body := []byte(`<PORX_IN020101UK31 xmlns="urn:hl7-org:v3">` +
		`<acknowledgement typeCode="AE"/>` +
		`<ControlActEvent classCode="CACT" moodCode="EVN">` +
		`<reason typeCode="RSON">` +
		`<justifyingDetectedIssueEvent classCode="ALRT" moodCode="EVN">` +
		`<code codeSystem="2.16.840.1.113883.2.1.3.2.4.17.22" code="0001" displayName="Patient is not registered"/>` +
		`</justifyingDetectedIssueEvent>` +
		`</reason>` +
		`</ControlActEvent>` +
		`</PORX_IN020101UK31>`)

	resp, err := tr.TranslateResponse(body)
	if err != nil {
		t.Fatalf("TranslateResponse: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	outcome := resp.Resource.(*fhir.OperationOutcome)
	if len(outcome.Issue) != 1 {
		t.Fatalf("issues = %d, want 1", len(outcome.Issue))
	}
	issue := outcome.Issue[0]
	if issue.Code != fhir.IssueTypeBusinessRule {
		t.Errorf("issue code = %s, want business-rule", issue.Code)
	}
	if issue.Details == nil || issue.Details.Coding[0].Code != "0001" {
		t.Errorf("issue details = %+v, want code 0001", issue.Details)
	}
}

func TestTranslateResponseErrorWithoutDetails(t *testing.T) {
	tr := newTestTranslator()
	body := []byte(`<MCCI_IN010000UK13 xmlns="urn:hl7-org:v3"><acknowledgement typeCode="AE"/></MCCI_IN010000UK13>`)

	resp, err := tr.TranslateResponse(body)
	if err != nil {
		t.Fatalf("TranslateResponse: %v", err)
	}
	outcome := resp.Resource.(*fhir.OperationOutcome)
	if len(outcome.Issue) != 1 {
		t.Fatalf("issues = %d, want a single fallback issue", len(outcome.Issue))
	}
}

func TestTranslateResponseRejectsUnrecognisedBody(t *testing.T) {
	tr := newTestTranslator()
	for _, body := range []string{
		"neither json nor xml",
		`<Unknown xmlns="urn:hl7-org:v3"><subject/></Unknown>`,
	} {
		if _, err := tr.TranslateResponse([]byte(body)); err == nil {
			t.Errorf("TranslateResponse(%q) accepted", body)
		}
	}
}

func cancellationResponseBody() []byte {
	return []byte(fmt.Sprintf(`<PORX_IN050102UK32 xmlns="urn:hl7-org:v3">`+
		`<acknowledgement typeCode="AA"/>`+
		`<ControlActEvent classCode="CACT" moodCode="EVN">`+
		`<subject typeCode="SUBJ">`+
		`<CancellationResponse classCode="INFO" moodCode="EVN">`+
		`<recordTarget typeCode="RCT">`+
		`<Patient classCode="PAT">`+
		`<id root="2.16.840.1.113883.2.1.4.1" extension="9446368138"/>`+
		`<patientPerson classCode="PSN" determinerCode="INSTANCE">`+
		`<name use="L"><prefix>MISS</prefix><given>ETTA</given><family>CORY</family></name>`+
		`</patientPerson>`+
		`</Patient>`+
		`</recordTarget>`+
		`<author typeCode="AUT">`+
		`<AgentPerson classCode="AGNT">`+
		`<id root="1.2.826.0.1285.0.2.0.67" extension="100102238986"/>`+
		`<agentPerson classCode="PSN" determinerCode="INSTANCE">`+
		`<id root="1.2.826.0.1285.0.2.0.65" extension="555086689106"/>`+
		`<name use="L"><given>RANDOM</given><family>FIFTYSEVEN</family></name>`+
		`</agentPerson>`+
		`<representedOrganization classCode="ORG" determinerCode="INSTANCE">`+
		`<id root="1.2.826.0.1285.0.1.10" extension="A83008"/>`+
		`<name>HALLGARTH SURGERY</name>`+
		`</representedOrganization>`+
		`</AgentPerson>`+
		`</author>`+
		`<pertinentInformation1 typeCode="PERT">`+
		`<pertinentPrescription classCode="SBADM" moodCode="RQO">`+
		`<id root="B2FC79F0-2793-4736-9B2D-0976C21E73A5"/>`+
		`<id root="%s" extension="E3E6FA-A83008-41F09Y"/>`+
		`</pertinentPrescription>`+
		`</pertinentInformation1>`+
		`<pertinentInformation2 typeCode="PERT">`+
		`<pertinentResponse classCode="OBS" moodCode="EVN">`+
		`<value code="0001" displayName="Prescription/item was cancelled"/>`+
		`</pertinentResponse>`+
		`</pertinentInformation2>`+
		`</CancellationResponse>`+
		`</subject>`+
		`</ControlActEvent>`+
		`</PORX_IN050102UK32>`, hl7v3.OIDPrescriptionShortForm))
}

func TestTranslateResponseCancellation(t *testing.T) {
	tr := newTestTranslator()
	resp, err := tr.TranslateResponse(cancellationResponseBody())
	if err != nil {
		t.Fatalf("TranslateResponse: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	bundle, ok := resp.Resource.(*fhir.Bundle)
	if !ok {
		t.Fatalf("resource type = %T, want *fhir.Bundle", resp.Resource)
	}
	if bundle.Type != "message" {
		t.Errorf("bundle type = %q, want message", bundle.Type)
	}

	byType := map[string]json.RawMessage{}
	for _, entry := range bundle.Entry {
		byType[fhir.ResourceType(entry.Resource)] = entry.Resource
	}

	var patient fhir.PatientResource
	if err := fhir.DecodeResource(byType["Patient"], &patient); err != nil {
		t.Fatalf("decode Patient: %v", err)
	}
	if len(patient.Identifier) == 0 || patient.Identifier[0].Value != "9446368138" {
		t.Errorf("patient identifier = %+v, want 9446368138", patient.Identifier)
	}
	if len(patient.Name) == 0 || patient.Name[0].Family != "CORY" {
		t.Errorf("patient name = %+v, want family CORY", patient.Name)
	}

	var mr fhir.MedicationRequest
	if err := fhir.DecodeResource(byType["MedicationRequest"], &mr); err != nil {
		t.Fatalf("decode MedicationRequest: %v", err)
	}
	if mr.Status != "cancelled" {
		t.Errorf("medication request status = %q, want cancelled", mr.Status)
	}
	if mr.GroupIdentifier == nil || mr.GroupIdentifier.Value != "E3E6FA-A83008-41F09Y" {
		t.Errorf("group identifier = %+v, want E3E6FA-A83008-41F09Y", mr.GroupIdentifier)
	}
	if mr.StatusReason == nil || mr.StatusReason.Coding[0].Code != "0001" {
		t.Errorf("status reason = %+v, want code 0001", mr.StatusReason)
	}

	var practitioner fhir.Practitioner
	if err := fhir.DecodeResource(byType["Practitioner"], &practitioner); err != nil {
		t.Fatalf("decode Practitioner: %v", err)
	}
	if len(practitioner.Identifier) == 0 || practitioner.Identifier[0].Value != "555086689106" {
		t.Errorf("practitioner identifier = %+v, want 555086689106", practitioner.Identifier)
	}

	var org fhir.OrganizationResource
	if err := fhir.DecodeResource(byType["Organization"], &org); err != nil {
		t.Fatalf("decode Organization: %v", err)
	}
	if org.Name != "HALLGARTH SURGERY" {
		t.Errorf("organization name = %q, want HALLGARTH SURGERY", org.Name)
	}
}

func TestTranslateResponseCancellationRejection(t *testing.T) {
	tr := newTestTranslator()
	body := []byte(fmt.Sprintf(`<PORX_IN050102UK32 xmlns="urn:hl7-org:v3">`+
		`<acknowledgement typeCode="AE"/>`+
		`<CancellationResponse classCode="INFO" moodCode="EVN">`+
		`<pertinentInformation1 typeCode="PERT">`+
		`<pertinentPrescription classCode="SBADM" moodCode="RQO">`+
		`<id root="%s" extension="E3E6FA-A83008-41F09Y"/>`+
		`</pertinentPrescription>`+
		`</pertinentInformation1>`+
		`</CancellationResponse>`+
		`</PORX_IN050102UK32>`, hl7v3.OIDPrescriptionShortForm))

	resp, err := tr.TranslateResponse(body)
	if err != nil {
		t.Fatalf("TranslateResponse: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if _, ok := resp.Resource.(*fhir.Bundle); !ok {
		t.Errorf("resource type = %T, want *fhir.Bundle", resp.Resource)
	}
}
