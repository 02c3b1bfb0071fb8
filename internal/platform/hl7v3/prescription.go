package hl7v3

import (
	"strconv"
	"time"
)

// PersonName is a structured person name on the wire.
type PersonName struct {
	Prefix string
	Given  []string
	Family string
}

// Address is a structured postal address.
type Address struct {
	Use      string
	Lines    []string
	Postcode string
}

// Organization is a represented organization in the prescriber or dispenser
// graph. A non-nil Parent marks the primary-care shape, where the practice is
// licensed by a parent commissioning organization.
type Organization struct {
	ODSCode  string
	Name     string
	TypeCode string
	Telecom  string
	Address  *Address
	Parent   *Organization
}

// AgentPerson is the clinical author or responsible party: the person, their
// role profile, and the organization they acted for.
type AgentPerson struct {
	RoleProfileID string
	JobRoleCode   string
	UserID        string
	Name          PersonName
	Telecom       string
	Organization  Organization
}

// Patient is the prescription's record target.
type Patient struct {
	NHSNumber string
	Name      PersonName
	Gender    string
	BirthDate time.Time
	Address   Address
}

// LineItem is one supplied medication order line. AdditionalInstructions is
// only ever populated on the first line item of a prescription; it carries
// the pre-encoded medication/patient-info sub-grammar text.
type LineItem struct {
	ID                     string
	SnomedCode             string
	SnomedDisplay          string
	QuantityValue          string
	QuantityUnit           string
	QuantityCode           string
	DosageInstructions     string
	AdditionalInstructions string
	RepeatLow              int
	RepeatHigh             int
}

// Prescription is the signable clinical order inside a ParentPrescription.
type Prescription struct {
	ID                      string // long-form UUID
	ShortFormID             string
	AuthoredOn              time.Time
	Author                  AgentPerson
	ResponsibleParty        *AgentPerson
	TreatmentTypeCode       string
	PrescriptionTypeCode    string
	PrescriptionTypeDisplay string
	DispensingSitePref      string
	ValidityLow             time.Time
	ValidityHigh            time.Time
	ExpectedSupplyDays      int
	RepeatLow               int
	RepeatHigh              int
	ReviewDate              time.Time
	LineItems               []LineItem
}

// ParentPrescription is the full prescription order message payload; it is
// the object a prescriber digitally signs.
type ParentPrescription struct {
	ID           string
	Effective    time.Time
	Patient      Patient
	Prescription Prescription
}

// Element renders the complete payload sub-tree. The element layout here is
// load-bearing: the signature digest is computed over fragments extracted
// from this exact tree, so structural changes invalidate existing signatures.
func (pp ParentPrescription) Element() *Element {
	root := NewElement("ParentPrescription").
		Attr("classCode", ClassInfo).
		Attr("moodCode", MoodEvent).
		Add(
			IDRoot(pp.ID),
			Code(OIDSNOMED, "163501000000109", "Prescription - FocusActOrEvent"),
			TimeValue("effectiveTime", FormatTimeMinute(pp.Effective)),
			pp.Patient.recordTarget(),
			NewElement("pertinentInformation1").
				Attr("typeCode", "PERT").
				Attr("contextConductionInd", "true").
				Add(
					NewElement("templateId").
						Attr("root", "2.16.840.1.113883.2.1.3.2.4.18.2").
						Attr("extension", "CSAB_RM-NPfITUK10.pertinentInformation"),
					pp.Prescription.element(),
				),
		)
	return root
}

func (p Patient) recordTarget() *Element {
	person := NewElement("patientPerson").
		Attr("classCode", ClassPerson).
		Attr("determinerCode", DeterminerInstance).
		Add(p.Name.element("name"))
	if p.Gender != "" {
		person.Add(NewElement("administrativeGenderCode").Attr("code", p.Gender))
	}
	if !p.BirthDate.IsZero() {
		person.Add(TimeValue("birthTime", FormatDate(p.BirthDate)))
	}

	patient := NewElement("Patient").Attr("classCode", ClassPatient).
		Add(ID(OIDNHSNumber, p.NHSNumber))
	if addr := p.Address.element(); addr != nil {
		patient.Add(addr)
	}
	patient.Add(person)

	return NewElement("recordTarget").Attr("typeCode", "RCT").Add(patient)
}

func (n PersonName) element(name string) *Element {
	e := NewElement(name).Attr("use", "L")
	if n.Prefix != "" {
		e.Add(NewTextElement("prefix", n.Prefix))
	}
	for _, g := range n.Given {
		e.Add(NewTextElement("given", g))
	}
	if n.Family != "" {
		e.Add(NewTextElement("family", n.Family))
	}
	return e
}

func (a Address) element() *Element {
	if len(a.Lines) == 0 && a.Postcode == "" {
		return nil
	}
	use := a.Use
	if use == "" {
		use = "H"
	}
	e := NewElement("addr").Attr("use", use)
	for _, l := range a.Lines {
		e.Add(NewTextElement("streetAddressLine", l))
	}
	if a.Postcode != "" {
		e.Add(NewTextElement("postalCode", a.Postcode))
	}
	return e
}

func (p Prescription) element() *Element {
	rx := NewElement("pertinentPrescription").
		Attr("classCode", ClassSubstAdmin).
		Attr("moodCode", MoodRequest).
		Add(
			IDRoot(p.ID),
			ID(OIDPrescriptionShortForm, p.ShortFormID),
		)

	if !p.ValidityLow.IsZero() || !p.ValidityHigh.IsZero() {
		var low, high string
		if !p.ValidityLow.IsZero() {
			low = FormatDate(p.ValidityLow)
		}
		if !p.ValidityHigh.IsZero() {
			high = FormatDate(p.ValidityHigh)
		}
		rx.Add(Interval("effectiveTime", low, high))
	}

	if p.RepeatHigh > 0 {
		rx.Add(NewElement("repeatNumber").
			Add(NewElement("low").Attr("value", strconv.Itoa(p.RepeatLow)),
				NewElement("high").Attr("value", strconv.Itoa(p.RepeatHigh))))
	}

	author := NewElement("author").Add(
		TimeValue("time", FormatTimeMinute(p.AuthoredOn)),
		NewElement("signatureText").Attr("nullFlavor", "NA"),
		p.Author.element(),
	)
	rx.Add(author)

	if p.ResponsibleParty != nil {
		rx.Add(NewElement("responsibleParty").Add(p.ResponsibleParty.element()))
	}

	if p.DispensingSitePref != "" {
		rx.Add(pertinentAttribute("pertinentInformation1", "pertinentDispensingSitePreference",
			NamedCode("value", OIDDispensingSitePref, p.DispensingSitePref, "")))
	}

	for _, li := range p.LineItems {
		rx.Add(NewElement("pertinentInformation2").
			Attr("typeCode", "PERT").
			Attr("inversionInd", "false").
			Attr("contextConductionInd", "true").
			Attr("negationInd", "false").
			Add(
				NewElement("seperatableInd").Attr("value", "true"),
				li.element(),
			))
	}

	if !p.ReviewDate.IsZero() {
		rx.Add(pertinentAttribute("pertinentInformation3", "pertinentReviewDate",
			TimeValue("value", FormatDate(p.ReviewDate))))
	}

	rx.Add(pertinentAttribute("pertinentInformation4", "pertinentPrescriptionType",
		NamedCode("value", OIDPrescriptionType, p.PrescriptionTypeCode, p.PrescriptionTypeDisplay)))
	rx.Add(pertinentAttribute("pertinentInformation5", "pertinentPrescriptionTreatmentType",
		NamedCode("value", OIDPrescriptionTreatment, p.TreatmentTypeCode, "")))

	if p.ExpectedSupplyDays > 0 {
		rx.Add(NewElement("component1").Attr("typeCode", "COMP").Add(
			NewElement("daysSupply").
				Attr("classCode", ClassSupply).
				Attr("moodCode", MoodRequest).
				Add(Quantity("expectedUseTime", strconv.Itoa(p.ExpectedSupplyDays), "d")),
		))
	}

	return rx
}

// pertinentAttribute wraps a coded or timed value in the ACT-relationship
// shell the schema uses for prescription-level attributes.
func pertinentAttribute(relName, actName string, value *Element) *Element {
	return NewElement(relName).
		Attr("typeCode", "PERT").
		Attr("contextConductionInd", "true").
		Add(
			NewElement("seperatableInd").Attr("value", "false"),
			NewElement(actName).
				Attr("classCode", ClassObservation).
				Attr("moodCode", MoodEvent).
				Add(value),
		)
}

func (a AgentPerson) element() *Element {
	agent := NewElement("AgentPerson").Attr("classCode", ClassAgent).Add(
		ID(OIDSDSRoleProfileID, a.RoleProfileID),
	)
	if a.JobRoleCode != "" {
		agent.Add(NewElement("code").
			Attr("codeSystem", OIDSDSJobRoleCode).
			Attr("code", a.JobRoleCode))
	}
	if a.Telecom != "" {
		agent.Add(NewElement("telecom").Attr("use", "WP").Attr("value", a.Telecom))
	}
	agent.Add(
		NewElement("agentPerson").
			Attr("classCode", ClassPerson).
			Attr("determinerCode", DeterminerInstance).
			Add(
				ID(OIDSDSUserID, a.UserID),
				a.Name.element("name"),
			),
		a.Organization.element("representedOrganization"),
	)
	return agent
}

func (o Organization) element(name string) *Element {
	org := NewElement(name).
		Attr("classCode", ClassOrganization).
		Attr("determinerCode", DeterminerInstance).
		Add(ID(OIDSDSOrganizationID, o.ODSCode))
	if o.TypeCode != "" {
		org.Add(NewElement("code").
			Attr("codeSystem", OIDOrganizationType).
			Attr("code", o.TypeCode))
	}
	if o.Name != "" {
		org.Add(NewTextElement("name", o.Name))
	}
	if o.Telecom != "" {
		org.Add(NewElement("telecom").Attr("use", "WP").Attr("value", o.Telecom))
	}
	if addr := o.addrElement(); addr != nil {
		org.Add(addr)
	}
	if o.Parent != nil {
		org.Add(NewElement("healthCareProviderLicense").
			Attr("classCode", "PROV").
			Add(o.Parent.element("Organization")))
	}
	return org
}

func (o Organization) addrElement() *Element {
	if o.Address == nil {
		return nil
	}
	a := *o.Address
	if a.Use == "" {
		a.Use = "WP"
	}
	return a.element()
}

func (li LineItem) element() *Element {
	item := NewElement("pertinentLineItem").
		Attr("classCode", ClassSubstAdmin).
		Attr("moodCode", MoodRequest).
		Add(
			IDRoot(li.ID),
			NewElement("code").
				Attr("codeSystem", OIDSNOMED).
				Attr("code", "225426007"),
			NewElement("effectiveTime").Attr("nullFlavor", "NA"),
		)

	if li.RepeatHigh > 0 {
		item.Add(NewElement("repeatNumber").
			Add(NewElement("low").Attr("value", strconv.Itoa(li.RepeatLow)),
				NewElement("high").Attr("value", strconv.Itoa(li.RepeatHigh))))
	}

	item.Add(NewElement("product").
		Attr("typeCode", "PRD").
		Attr("contextControlCode", "OP").
		Add(NewElement("manufacturedProduct").Attr("classCode", "MANU").Add(
			NewElement("manufacturedRequestedMaterial").
				Attr("classCode", "MMAT").
				Attr("determinerCode", "KIND").
				Add(Code(OIDSNOMED, li.SnomedCode, li.SnomedDisplay)),
		)))

	item.Add(NewElement("component").Attr("typeCode", "COMP").Add(
		NewElement("seperatableInd").Attr("value", "false"),
		NewElement("lineItemQuantity").
			Attr("classCode", ClassSupply).
			Attr("moodCode", MoodRequest).
			Add(
				Code(OIDSNOMED, li.QuantityCode, li.QuantityUnit),
				NewElement("quantity").
					Attr("value", li.QuantityValue).
					Attr("unit", "1"),
			),
	))

	// Additional instructions precede dosage instructions on the first line
	// item; the order of these pertinent-information blocks is hashed.
	if li.AdditionalInstructions != "" {
		item.Add(NewElement("pertinentInformation1").
			Attr("typeCode", "PERT").
			Attr("contextConductionInd", "true").
			Add(
				NewElement("seperatableInd").Attr("value", "false"),
				NewElement("pertinentAdditionalInstructions").
					Attr("classCode", ClassObservation).
					Attr("moodCode", MoodEvent).
					Add(NewTextElement("value", li.AdditionalInstructions)),
			))
	}

	item.Add(NewElement("pertinentInformation2").
		Attr("typeCode", "PERT").
		Attr("contextConductionInd", "true").
		Add(
			NewElement("seperatableInd").Attr("value", "false"),
			NewElement("pertinentDosageInstructions").
				Attr("classCode", ClassObservation).
				Attr("moodCode", MoodEvent).
				Add(NewTextElement("value", li.DosageInstructions)),
		))

	return item
}
