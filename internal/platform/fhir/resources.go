package fhir

import "encoding/json"

// ---- Shared datatypes ----

type Identifier struct {
	System string `json:"system,omitempty"`
	Value  string `json:"value,omitempty"`
}

type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// Reference is either a URN pointing at another bundle entry or an
// identifier-based reference, depending on deployment mode. The two forms
// are mutually exclusive per field; resolvers check the form they expect and
// fail if the other is supplied.
type Reference struct {
	Reference  string      `json:"reference,omitempty"`
	Identifier *Identifier `json:"identifier,omitempty"`
	Display    string      `json:"display,omitempty"`
}

type Quantity struct {
	Value  *float64 `json:"value,omitempty"`
	Unit   string   `json:"unit,omitempty"`
	System string   `json:"system,omitempty"`
	Code   string   `json:"code,omitempty"`
}

type Period struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

type HumanName struct {
	Use    string   `json:"use,omitempty"`
	Family string   `json:"family,omitempty"`
	Given  []string `json:"given,omitempty"`
	Prefix []string `json:"prefix,omitempty"`
	Suffix []string `json:"suffix,omitempty"`
}

type AddressType struct {
	Use        string   `json:"use,omitempty"`
	Line       []string `json:"line,omitempty"`
	City       string   `json:"city,omitempty"`
	District   string   `json:"district,omitempty"`
	PostalCode string   `json:"postalCode,omitempty"`
}

type ContactPoint struct {
	System string `json:"system,omitempty"`
	Value  string `json:"value,omitempty"`
	Use    string `json:"use,omitempty"`
}

type Annotation struct {
	Text string `json:"text,omitempty"`
}

// ---- Resources ----

// MessageHeader selects the translation branch through its event coding;
// exactly one is present per inbound message bundle.
type MessageHeader struct {
	ResourceType string     `json:"resourceType"`
	ID           string     `json:"id,omitempty"`
	EventCoding  Coding     `json:"eventCoding"`
	Sender       *Reference `json:"sender,omitempty"`
	Source       *struct {
		Endpoint string `json:"endpoint,omitempty"`
	} `json:"source,omitempty"`
	Focus []Reference `json:"focus,omitempty"`
}

type PatientResource struct {
	ResourceType        string        `json:"resourceType"`
	ID                  string        `json:"id,omitempty"`
	Identifier          []Identifier  `json:"identifier,omitempty"`
	Name                []HumanName   `json:"name,omitempty"`
	Gender              string        `json:"gender,omitempty"`
	BirthDate           string        `json:"birthDate,omitempty"`
	Address             []AddressType `json:"address,omitempty"`
	GeneralPractitioner []Reference   `json:"generalPractitioner,omitempty"`
}

type Practitioner struct {
	ResourceType string       `json:"resourceType"`
	ID           string       `json:"id,omitempty"`
	Identifier   []Identifier `json:"identifier,omitempty"`
	Name         []HumanName  `json:"name,omitempty"`
}

type PractitionerRole struct {
	ResourceType      string            `json:"resourceType"`
	ID                string            `json:"id,omitempty"`
	Identifier        []Identifier      `json:"identifier,omitempty"`
	Practitioner      *Reference        `json:"practitioner,omitempty"`
	Organization      *Reference        `json:"organization,omitempty"`
	HealthcareService []Reference       `json:"healthcareService,omitempty"`
	Code              []CodeableConcept `json:"code,omitempty"`
	Telecom           []ContactPoint    `json:"telecom,omitempty"`
}

type OrganizationResource struct {
	ResourceType string            `json:"resourceType"`
	ID           string            `json:"id,omitempty"`
	Identifier   []Identifier      `json:"identifier,omitempty"`
	Type         []CodeableConcept `json:"type,omitempty"`
	Name         string            `json:"name,omitempty"`
	Telecom      []ContactPoint    `json:"telecom,omitempty"`
	Address      []AddressType     `json:"address,omitempty"`
	PartOf       *Reference        `json:"partOf,omitempty"`
}

type HealthcareService struct {
	ResourceType string         `json:"resourceType"`
	ID           string         `json:"id,omitempty"`
	Identifier   []Identifier   `json:"identifier,omitempty"`
	Name         string         `json:"name,omitempty"`
	Telecom      []ContactPoint `json:"telecom,omitempty"`
	Location     []Reference    `json:"location,omitempty"`
	ProvidedBy   *Reference     `json:"providedBy,omitempty"`
}

type Location struct {
	ResourceType string       `json:"resourceType"`
	ID           string       `json:"id,omitempty"`
	Identifier   []Identifier `json:"identifier,omitempty"`
	Address      *AddressType `json:"address,omitempty"`
}

type Dosage struct {
	Text                  string            `json:"text,omitempty"`
	PatientInstruction    string            `json:"patientInstruction,omitempty"`
	AdditionalInstruction []CodeableConcept `json:"additionalInstruction,omitempty"`
}

type DispenseRequest struct {
	Quantity               *Quantity   `json:"quantity,omitempty"`
	ExpectedSupplyDuration *Quantity   `json:"expectedSupplyDuration,omitempty"`
	ValidityPeriod         *Period     `json:"validityPeriod,omitempty"`
	Performer              *Reference  `json:"performer,omitempty"`
	Extension              []Extension `json:"extension,omitempty"`
}

type MedicationRequest struct {
	ResourceType              string           `json:"resourceType"`
	ID                        string           `json:"id,omitempty"`
	Extension                 []Extension      `json:"extension,omitempty"`
	Identifier                []Identifier     `json:"identifier,omitempty"`
	Status                    string           `json:"status,omitempty"`
	StatusReason              *CodeableConcept `json:"statusReason,omitempty"`
	Intent                    string           `json:"intent,omitempty"`
	MedicationCodeableConcept *CodeableConcept `json:"medicationCodeableConcept,omitempty"`
	Subject                   *Reference       `json:"subject,omitempty"`
	AuthoredOn                string           `json:"authoredOn,omitempty"`
	Requester                 *Reference       `json:"requester,omitempty"`
	GroupIdentifier           *GroupIdentifier `json:"groupIdentifier,omitempty"`
	CourseOfTherapyType       *CodeableConcept `json:"courseOfTherapyType,omitempty"`
	Note                      []Annotation     `json:"note,omitempty"`
	DosageInstruction         []Dosage         `json:"dosageInstruction,omitempty"`
	DispenseRequest           *DispenseRequest `json:"dispenseRequest,omitempty"`
}

// GroupIdentifier carries the short-form prescription id in its value and the
// long-form UUID in a nested extension.
type GroupIdentifier struct {
	System    string      `json:"system,omitempty"`
	Value     string      `json:"value,omitempty"`
	Extension []Extension `json:"extension,omitempty"`
}

type MedicationDispense struct {
	ResourceType              string           `json:"resourceType"`
	ID                        string           `json:"id,omitempty"`
	Extension                 []Extension      `json:"extension,omitempty"`
	Identifier                []Identifier     `json:"identifier,omitempty"`
	Status                    string           `json:"status,omitempty"`
	MedicationCodeableConcept *CodeableConcept `json:"medicationCodeableConcept,omitempty"`
	Subject                   *Reference       `json:"subject,omitempty"`
	Performer                 []struct {
		Actor Reference `json:"actor"`
	} `json:"performer,omitempty"`
	AuthorizingPrescription []Reference      `json:"authorizingPrescription,omitempty"`
	Type                    *CodeableConcept `json:"type,omitempty"`
	Quantity                *Quantity        `json:"quantity,omitempty"`
	WhenHandedOver          string           `json:"whenHandedOver,omitempty"`
	DosageInstruction       []Dosage         `json:"dosageInstruction,omitempty"`
}

// Task carries dispense-workflow return and withdraw requests.
type Task struct {
	ResourceType    string           `json:"resourceType"`
	ID              string           `json:"id,omitempty"`
	Extension       []Extension      `json:"extension,omitempty"`
	Identifier      []Identifier     `json:"identifier,omitempty"`
	Status          string           `json:"status,omitempty"`
	StatusReason    *CodeableConcept `json:"statusReason,omitempty"`
	Intent          string           `json:"intent,omitempty"`
	Code            *CodeableConcept `json:"code,omitempty"`
	GroupIdentifier *Identifier      `json:"groupIdentifier,omitempty"`
	Focus           *Reference       `json:"focus,omitempty"`
	For             *Reference       `json:"for,omitempty"`
	AuthoredOn      string           `json:"authoredOn,omitempty"`
	Owner           *Reference       `json:"owner,omitempty"`
	Requester       *Reference       `json:"requester,omitempty"`
	Reason          *CodeableConcept `json:"reasonCode,omitempty"`
}

// Provenance carries the prescriber's digital signature over the order.
type Provenance struct {
	ResourceType string      `json:"resourceType"`
	ID           string      `json:"id,omitempty"`
	Target       []Reference `json:"target,omitempty"`
	Recorded     string      `json:"recorded,omitempty"`
	Agent        []struct {
		Who Reference `json:"who"`
	} `json:"agent,omitempty"`
	Signature []SignatureData `json:"signature,omitempty"`
}

// SignatureData holds a detached XML-DSig signature, base64 in Data.
type SignatureData struct {
	Type []Coding   `json:"type,omitempty"`
	When string     `json:"when,omitempty"`
	Who  *Reference `json:"who,omitempty"`
	Data string     `json:"data,omitempty"`
}

// CommunicationRequest contributes patient-info lines to the
// additional-instructions text of the first line item.
type CommunicationRequest struct {
	ResourceType string     `json:"resourceType"`
	ID           string     `json:"id,omitempty"`
	Status       string     `json:"status,omitempty"`
	Subject      *Reference `json:"subject,omitempty"`
	Payload      []struct {
		ContentString    string     `json:"contentString,omitempty"`
		ContentReference *Reference `json:"contentReference,omitempty"`
	} `json:"payload,omitempty"`
}

// List contributes repeat-medication lines to the additional-instructions
// text of the first line item.
type List struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id,omitempty"`
	Status       string `json:"status,omitempty"`
	Entry        []struct {
		Item Reference `json:"item"`
	} `json:"entry,omitempty"`
}

// DecodeResource unmarshals a raw bundle entry into a typed resource.
func DecodeResource(raw json.RawMessage, dst interface{}) error {
	return json.Unmarshal(raw, dst)
}
