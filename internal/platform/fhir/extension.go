package fhir

// Extension URLs recognised by the translator.
const (
	ExtRepeatInformation       = "https://fhir.nhs.uk/StructureDefinition/Extension-UKCore-MedicationRepeatInformation"
	ExtNumberOfRepeatsAllowed  = "numberOfRepeatPrescriptionsAllowed"
	ExtNumberOfRepeatsIssued   = "numberOfRepeatPrescriptionsIssued"
	ExtAuthorisationExpiryDate = "authorisationExpiryDate"
	ExtPrescriptionType        = "https://fhir.nhs.uk/StructureDefinition/Extension-DM-PrescriptionType"
	ExtResponsiblePractitioner = "https://fhir.nhs.uk/StructureDefinition/Extension-DM-ResponsiblePractitioner"
	ExtPerformerSiteType       = "https://fhir.nhs.uk/StructureDefinition/Extension-DM-PerformerSiteType"
	ExtGroupIdentifierUUID     = "https://fhir.nhs.uk/StructureDefinition/Extension-DM-PrescriptionId"
	ExtDispensingReleaseRef    = "https://fhir.nhs.uk/StructureDefinition/Extension-DM-DispensingReleaseReference"
	ExtTaskBusinessStatus      = "https://fhir.nhs.uk/StructureDefinition/Extension-EPS-TaskBusinessStatus"
)

// Extension is the polymorphic FHIR extension: a URL key plus exactly one
// value variant, or a nested extension list (group extensions such as the
// prescription group identifier nest shortForm/UUID sub-extensions).
type Extension struct {
	URL              string       `json:"url"`
	ValueIdentifier  *Identifier  `json:"valueIdentifier,omitempty"`
	ValueCoding      *Coding      `json:"valueCoding,omitempty"`
	ValueString      string       `json:"valueString,omitempty"`
	ValueBoolean     *bool        `json:"valueBoolean,omitempty"`
	ValueDateTime    string       `json:"valueDateTime,omitempty"`
	ValueDate        string       `json:"valueDate,omitempty"`
	ValueUnsignedInt *int         `json:"valueUnsignedInt,omitempty"`
	ValueReference   *Reference   `json:"valueReference,omitempty"`
	Extension        []Extension  `json:"extension,omitempty"`
}

// ExtensionKind names the active variant of an Extension.
type ExtensionKind int

const (
	ExtensionKindEmpty ExtensionKind = iota
	ExtensionKindIdentifier
	ExtensionKindCoding
	ExtensionKindString
	ExtensionKindBoolean
	ExtensionKindDateTime
	ExtensionKindUnsignedInt
	ExtensionKindReference
	ExtensionKindNested
)

// Kind reports which variant the extension carries. Exactly one variant is
// expected; when several are populated the first in declaration order wins,
// matching how the wire producer emits them.
func (e Extension) Kind() ExtensionKind {
	switch {
	case e.ValueIdentifier != nil:
		return ExtensionKindIdentifier
	case e.ValueCoding != nil:
		return ExtensionKindCoding
	case e.ValueString != "":
		return ExtensionKindString
	case e.ValueBoolean != nil:
		return ExtensionKindBoolean
	case e.ValueDateTime != "" || e.ValueDate != "":
		return ExtensionKindDateTime
	case e.ValueUnsignedInt != nil:
		return ExtensionKindUnsignedInt
	case e.ValueReference != nil:
		return ExtensionKindReference
	case len(e.Extension) > 0:
		return ExtensionKindNested
	}
	return ExtensionKindEmpty
}
