package hl7v3

import (
	"strconv"
	"time"
)

// CancellationRequest asks the exchange to cancel one line item of a
// previously submitted prescription.
type CancellationRequest struct {
	ID               string
	Effective        time.Time
	Patient          Patient
	Author           AgentPerson
	ResponsibleParty *AgentPerson
	PrescriptionID   string // long-form UUID of the order being cancelled
	ShortFormID      string
	LineItemID       string
	ReasonCode       string
	ReasonDisplay    string
}

// Element renders the cancellation payload.
func (c CancellationRequest) Element() *Element {
	cancel := NewElement("pertinentCancellation").
		Attr("classCode", ClassSubstAdmin).
		Attr("moodCode", MoodRequest).
		Add(
			IDRoot(c.PrescriptionID),
			ID(OIDPrescriptionShortForm, c.ShortFormID),
			NewElement("author").Add(
				TimeValue("time", FormatTimeMinute(c.Effective)),
				c.Author.element(),
			),
		)
	if c.ResponsibleParty != nil {
		cancel.Add(NewElement("responsibleParty").Add(c.ResponsibleParty.element()))
	}
	cancel.Add(
		pertinentAttribute("pertinentInformation1", "pertinentCancellationReason",
			NamedCode("value", OIDCancellationReason, c.ReasonCode, c.ReasonDisplay)),
		NewElement("pertinentInformation2").
			Attr("typeCode", "PERT").
			Attr("contextConductionInd", "true").
			Add(
				NewElement("seperatableInd").Attr("value", "false"),
				NewElement("pertinentLineItemRef").
					Attr("classCode", ClassSubstAdmin).
					Attr("moodCode", MoodRequest).
					Add(IDRoot(c.LineItemID)),
			),
	)

	return NewElement("CancellationRequested").
		Attr("classCode", ClassInfo).
		Attr("moodCode", MoodEvent).
		Add(
			IDRoot(c.ID),
			Code(OIDSNOMED, "165971000000100", "Prescription Cancellation"),
			TimeValue("effectiveTime", FormatTimeMinute(c.Effective)),
			c.Patient.recordTarget(),
			NewElement("pertinentInformation2").
				Attr("typeCode", "PERT").
				Attr("contextConductionInd", "true").
				Add(
					NewElement("seperatableInd").Attr("value", "false"),
					cancel,
				),
		)
}

// SuppliedLineItem records one dispensed medication line: what was actually
// supplied against the ordered line item it fulfils.
type SuppliedLineItem struct {
	ID            string
	OrderedItemID string
	StatusCode    string
	StatusDisplay string
	SnomedCode    string
	SnomedDisplay string
	QuantityValue string
	QuantityUnit  string
	QuantityCode  string
	DosageText    string
	RepeatLow     int
	RepeatHigh    int
}

func (s SuppliedLineItem) element(mood string) *Element {
	item := NewElement("suppliedLineItem").
		Attr("classCode", ClassSubstAdmin).
		Attr("moodCode", mood).
		Add(
			IDRoot(s.ID),
			Code(OIDSNOMED, "225426007", "Administration of therapeutic substance"),
			NewElement("effectiveTime").Attr("nullFlavor", "NA"),
		)
	if s.RepeatHigh > 0 {
		item.Add(NewElement("repeatNumber").
			Add(NewElement("low").Attr("value", strconv.Itoa(s.RepeatLow)),
				NewElement("high").Attr("value", strconv.Itoa(s.RepeatHigh))))
	}
	item.Add(
		NewElement("component").Attr("typeCode", "COMP").Add(
			NewElement("suppliedLineItemQuantity").
				Attr("classCode", ClassSupply).
				Attr("moodCode", MoodEvent).
				Add(
					Code(OIDSNOMED, s.QuantityCode, s.QuantityUnit),
					NewElement("quantity").Attr("value", s.QuantityValue).Attr("unit", "1"),
					NewElement("product").Attr("typeCode", "PRD").Add(
						NewElement("suppliedManufacturedProduct").Attr("classCode", "MANU").Add(
							NewElement("manufacturedSuppliedMaterial").
								Attr("classCode", "MMAT").
								Attr("determinerCode", "KIND").
								Add(Code(OIDSNOMED, s.SnomedCode, s.SnomedDisplay)),
						),
					),
					pertinentAttribute("pertinentInformation1", "pertinentSupplyInstructions",
						NewTextElement("value", s.DosageText)),
				),
		),
		pertinentAttribute("pertinentInformation3", "pertinentItemStatus",
			NamedCode("value", "2.16.840.1.113883.2.1.3.2.4.16.30", s.StatusCode, s.StatusDisplay)),
		NewElement("inFulfillmentOf").Attr("typeCode", "FLFS").Add(
			NewElement("seperatableInd").Attr("value", "false"),
			NewElement("priorOriginalItemRef").
				Attr("classCode", ClassSubstAdmin).
				Attr("moodCode", MoodRequest).
				Add(IDRoot(s.OrderedItemID)),
		),
	)
	return item
}

// DispenseNotification reports medication actually supplied to the patient.
type DispenseNotification struct {
	ID                string
	Effective         time.Time
	PatientNHSNumber  string
	Dispenser         AgentPerson
	PrescriptionID    string
	ShortFormID       string
	PriorMessageRef   string // message id of the prescription release, when known
	StatusCode        string
	StatusDisplay     string
	LineItems         []SuppliedLineItem
}

// Element renders the dispense notification payload.
func (d DispenseNotification) Element() *Element {
	header := NewElement("pertinentSupplyHeader").
		Attr("classCode", ClassSubstAdmin).
		Attr("moodCode", MoodEvent).
		Add(
			IDRoot(d.ID),
			Code(OIDSNOMED, "225426007", "Administration of therapeutic substance"),
			NewElement("effectiveTime").Attr("nullFlavor", "NA"),
			NewElement("author").Add(
				TimeValue("time", FormatTime(d.Effective)),
				NewElement("signatureText").Attr("nullFlavor", "NA"),
				d.Dispenser.element(),
			),
		)
	for _, li := range d.LineItems {
		header.Add(NewElement("pertinentInformation1").
			Attr("typeCode", "PERT").
			Attr("contextConductionInd", "true").
			Add(
				NewElement("seperatableInd").Attr("value", "false"),
				NewElement("templateId").
					Attr("root", "2.16.840.1.113883.2.1.3.2.4.18.2").
					Attr("extension", "CSAB_RM-NPfITUK10.sourceOf2"),
				li.element(MoodEvent),
			))
	}
	header.Add(
		pertinentAttribute("pertinentInformation3", "pertinentPrescriptionStatus",
			NamedCode("value", "2.16.840.1.113883.2.1.3.2.4.16.29", d.StatusCode, d.StatusDisplay)),
		pertinentAttribute("pertinentInformation4", "pertinentPrescriptionID",
			NewElement("value").Attr("root", OIDPrescriptionShortForm).Attr("extension", d.ShortFormID)),
		NewElement("inFulfillmentOf").Attr("typeCode", "FLFS").Add(
			NewElement("seperatableInd").Attr("value", "false"),
			NewElement("priorOriginalPrescriptionRef").
				Attr("classCode", ClassSubstAdmin).
				Attr("moodCode", MoodRequest).
				Add(IDRoot(d.PrescriptionID)),
		),
	)

	dn := NewElement("DispenseNotification").
		Attr("classCode", ClassInfo).
		Attr("moodCode", MoodEvent).
		Add(
			IDRoot(d.ID),
			Code(OIDSNOMED, "163541000000107", "Dispensed Medication - FocusActOrEvent"),
			TimeValue("effectiveTime", FormatTime(d.Effective)),
			NewElement("recordTarget").Attr("typeCode", "RCT").Add(
				NewElement("patient").Attr("classCode", ClassPatient).
					Add(ID(OIDNHSNumber, d.PatientNHSNumber)),
			),
		)
	if d.PriorMessageRef != "" {
		dn.Add(NewElement("sequelTo").Attr("typeCode", "SEQL").Add(
			NewElement("priorPrescriptionReleaseEventRef").
				Attr("classCode", "INFO").
				Attr("moodCode", MoodEvent).
				Add(IDRoot(d.PriorMessageRef)),
		))
	}
	dn.Add(NewElement("pertinentInformation1").
		Attr("typeCode", "PERT").
		Attr("contextConductionInd", "true").
		Add(
			NewElement("templateId").
				Attr("root", "2.16.840.1.113883.2.1.3.2.4.18.2").
				Attr("extension", "CSAB_RM-NPfITUK10.pertinentInformation"),
			header,
		))
	return dn
}

// DispenseClaim requests reimbursement for a completed dispense.
type DispenseClaim struct {
	ID               string
	Effective        time.Time
	PatientNHSNumber string
	Dispenser        AgentPerson
	PrescriptionID   string
	ShortFormID      string
	StatusCode       string
	StatusDisplay    string
	ChargeExemption  string
	ChargePaid       bool
	LineItems        []SuppliedLineItem
}

// Element renders the dispense claim payload. It shares the supply-header
// shape with DispenseNotification and adds the charge/exemption block.
func (d DispenseClaim) Element() *Element {
	header := NewElement("pertinentSupplyHeader").
		Attr("classCode", ClassSubstAdmin).
		Attr("moodCode", MoodEvent).
		Add(
			IDRoot(d.ID),
			Code(OIDSNOMED, "225426007", "Administration of therapeutic substance"),
			NewElement("effectiveTime").Attr("nullFlavor", "NA"),
			NewElement("author").Add(
				TimeValue("time", FormatTime(d.Effective)),
				d.Dispenser.element(),
			),
		)
	chargePaid := "false"
	if d.ChargePaid {
		chargePaid = "true"
	}
	exemption := NewElement("pertinentChargeExempt").
		Attr("classCode", ClassObservation).
		Attr("moodCode", MoodEvent).
		Add(NamedCode("value", "2.16.840.1.113883.2.1.3.2.4.16.33", d.ChargeExemption, ""))
	header.Add(NewElement("legalAuthenticator").Attr("typeCode", "LA").Add(
		NewElement("time").Attr("value", FormatTime(d.Effective)),
		NewElement("signatureText").Attr("nullFlavor", "NA"),
	))
	for _, li := range d.LineItems {
		header.Add(NewElement("pertinentInformation1").
			Attr("typeCode", "PERT").
			Attr("contextConductionInd", "true").
			Add(
				NewElement("seperatableInd").Attr("value", "false"),
				li.element(MoodEvent),
			))
	}
	header.Add(
		NewElement("pertinentInformation2").
			Attr("typeCode", "PERT").
			Attr("contextConductionInd", "true").
			Add(
				NewElement("seperatableInd").Attr("value", "false"),
				exemption.Attr("chargePaid", chargePaid),
			),
		pertinentAttribute("pertinentInformation3", "pertinentPrescriptionStatus",
			NamedCode("value", "2.16.840.1.113883.2.1.3.2.4.16.29", d.StatusCode, d.StatusDisplay)),
		pertinentAttribute("pertinentInformation4", "pertinentPrescriptionID",
			NewElement("value").Attr("root", OIDPrescriptionShortForm).Attr("extension", d.ShortFormID)),
		NewElement("inFulfillmentOf").Attr("typeCode", "FLFS").Add(
			NewElement("seperatableInd").Attr("value", "false"),
			NewElement("priorOriginalPrescriptionRef").
				Attr("classCode", ClassSubstAdmin).
				Attr("moodCode", MoodRequest).
				Add(IDRoot(d.PrescriptionID)),
		),
	)

	return NewElement("DispenseClaim").
		Attr("classCode", ClassInfo).
		Attr("moodCode", MoodEvent).
		Add(
			IDRoot(d.ID),
			Code(OIDSNOMED, "163551000000105", "Dispensed Medication Claim - FocusActOrEvent"),
			TimeValue("effectiveTime", FormatTime(d.Effective)),
			NewElement("recordTarget").Attr("typeCode", "RCT").Add(
				NewElement("patient").Attr("classCode", ClassPatient).
					Add(ID(OIDNHSNumber, d.PatientNHSNumber)),
			),
			NewElement("pertinentInformation1").
				Attr("typeCode", "PERT").
				Attr("contextConductionInd", "true").
				Add(header),
		)
}

// DispenseProposalReturn hands an unstarted prescription back to the exchange.
type DispenseProposalReturn struct {
	ID             string
	Effective      time.Time
	Agent          AgentPerson
	PrescriptionID string
	ShortFormID    string
	ReasonCode     string
	ReasonDisplay  string
}

// Element renders the return payload.
func (r DispenseProposalReturn) Element() *Element {
	return NewElement("DispenseProposalReturn").
		Attr("classCode", ClassInfo).
		Attr("moodCode", MoodEvent).
		Add(
			IDRoot(r.ID),
			TimeValue("effectiveTime", FormatTime(r.Effective)),
			NewElement("author").Add(
				TimeValue("time", FormatTime(r.Effective)),
				r.Agent.element(),
			),
			NewElement("pertinentInformation1").
				Attr("typeCode", "PERT").
				Attr("contextConductionInd", "true").
				Add(
					NewElement("seperatableInd").Attr("value", "false"),
					NewElement("pertinentPrescriptionID").
						Attr("classCode", ClassObservation).
						Attr("moodCode", MoodEvent).
						Add(NewElement("value").
							Attr("root", OIDPrescriptionShortForm).
							Attr("extension", r.ShortFormID)),
				),
			NewElement("pertinentInformation3").
				Attr("typeCode", "PERT").
				Attr("contextConductionInd", "true").
				Add(
					NewElement("seperatableInd").Attr("value", "false"),
					NewElement("pertinentReturnReason").
						Attr("classCode", ClassObservation).
						Attr("moodCode", MoodEvent).
						Add(NamedCode("value", OIDReturnReason, r.ReasonCode, r.ReasonDisplay)),
				),
			NewElement("reversalOf").Attr("typeCode", "REV").Add(
				NewElement("priorPrescriptionReleaseResponseRef").
					Attr("classCode", ClassInfo).
					Attr("moodCode", MoodEvent).
					Add(IDRoot(r.PrescriptionID)),
			),
		)
}

// EtpWithdraw withdraws a previously submitted dispense notification.
type EtpWithdraw struct {
	ID               string
	Effective        time.Time
	Agent            AgentPerson
	PatientNHSNumber string
	ShortFormID      string
	WithdrawnID      string // id of the dispense notification being withdrawn
	ReasonCode       string
	ReasonDisplay    string
}

// Element renders the withdraw payload.
func (w EtpWithdraw) Element() *Element {
	return NewElement("EtpWithdraw").
		Attr("classCode", ClassInfo).
		Attr("moodCode", MoodEvent).
		Add(
			IDRoot(w.ID),
			TimeValue("effectiveTime", FormatTime(w.Effective)),
			NewElement("recordTarget").Attr("typeCode", "RCT").Add(
				NewElement("patient").Attr("classCode", ClassPatient).
					Add(ID(OIDNHSNumber, w.PatientNHSNumber)),
			),
			NewElement("author").Add(
				TimeValue("time", FormatTime(w.Effective)),
				w.Agent.element(),
			),
			NewElement("pertinentInformation1").
				Attr("typeCode", "PERT").
				Attr("contextConductionInd", "true").
				Add(
					NewElement("seperatableInd").Attr("value", "false"),
					NewElement("pertinentWithdrawID").
						Attr("classCode", ClassObservation).
						Attr("moodCode", MoodEvent).
						Add(NewElement("value").Attr("root", w.WithdrawnID)),
				),
			NewElement("pertinentInformation2").
				Attr("typeCode", "PERT").
				Attr("contextConductionInd", "true").
				Add(
					NewElement("seperatableInd").Attr("value", "false"),
					NewElement("pertinentPrescriptionID").
						Attr("classCode", ClassObservation).
						Attr("moodCode", MoodEvent).
						Add(NewElement("value").
							Attr("root", OIDPrescriptionShortForm).
							Attr("extension", w.ShortFormID)),
				),
			NewElement("pertinentInformation5").
				Attr("typeCode", "PERT").
				Attr("contextConductionInd", "true").
				Add(
					NewElement("seperatableInd").Attr("value", "false"),
					NewElement("pertinentWithdrawReason").
						Attr("classCode", ClassObservation).
						Attr("moodCode", MoodEvent).
						Add(NamedCode("value", OIDWithdrawReason, w.ReasonCode, w.ReasonDisplay)),
				),
		)
}
