package hl7v3

import "time"

// Agent identifies the authenticated user on whose behalf a message is sent.
// This is the session identity from the message header, not the clinical
// author recorded inside the prescription itself.
type Agent struct {
	RoleProfileID string
	UserID        string
	JobRoleCode   string
}

// SendMessagePayload is the outer wire envelope: message id, interaction id,
// sending/receiving device identifiers (ASIDs) and the ControlActEvent that
// carries the clinical payload. One value is built per outbound message and
// serialized exactly once.
type SendMessagePayload struct {
	MessageID     string
	InteractionID string
	CreationTime  time.Time
	FromASID      string
	ToASID        string
	Agent         Agent
	Subject       *Element
}

// Element renders the envelope as a wire document rooted at the interaction
// name, with the HL7 V3 namespace declared on the root.
func (p SendMessagePayload) Element() *Element {
	root := NewElement(p.InteractionID).
		Attr("xmlns", Namespace).
		Add(
			IDRoot(p.MessageID),
			TimeValue("creationTime", FormatTime(p.CreationTime)),
			NewElement("versionCode").Attr("code", "V3NPfIT3.0"),
			NewElement("interactionId").
				Attr("root", OIDInteractionID).
				Attr("extension", p.InteractionID),
		)
	root.Add(
		NewElement("processingCode").Attr("code", "P"),
		NewElement("processingModeCode").Attr("code", "T"),
		NewElement("acceptAckCode").Attr("code", "NE"),
		communicationFunction("communicationFunctionRcv", "RCV", p.ToASID),
		communicationFunction("communicationFunctionSnd", "SND", p.FromASID),
		p.controlActEvent(),
	)
	return root
}

func communicationFunction(name, typeCode, asid string) *Element {
	return NewElement(name).Attr("typeCode", typeCode).Add(
		NewElement("device").
			Attr("classCode", ClassDevice).
			Attr("determinerCode", DeterminerInstance).
			Add(ID(OIDAccreditedSystemID, asid)),
	)
}

func (p SendMessagePayload) controlActEvent() *Element {
	cae := NewElement("ControlActEvent").
		Attr("classCode", "CACT").
		Attr("moodCode", MoodEvent)

	cae.Add(NewElement("author1").Attr("typeCode", "AUT").Add(
		NewElement("AgentSystemSDS").Attr("classCode", ClassAgent).Add(
			NewElement("agentSystemSDS").
				Attr("classCode", ClassDevice).
				Attr("determinerCode", DeterminerInstance).
				Add(ID(OIDAccreditedSystemID, p.FromASID)),
		),
	))

	if p.Agent.RoleProfileID != "" {
		agent := NewElement("AgentPersonSDS").Attr("classCode", ClassAgent).Add(
			ID(OIDSDSRoleProfileID, p.Agent.RoleProfileID),
		)
		if p.Agent.JobRoleCode != "" {
			agent.Add(NewElement("code").
				Attr("codeSystem", OIDSDSJobRoleCode).
				Attr("code", p.Agent.JobRoleCode))
		}
		if p.Agent.UserID != "" {
			agent.Add(NewElement("agentPersonSDS").
				Attr("classCode", ClassPerson).
				Attr("determinerCode", DeterminerInstance).
				Add(ID(OIDSDSUserID, p.Agent.UserID)))
		}
		cae.Add(NewElement("author").Attr("typeCode", "AUT").Add(agent))
	}

	cae.Add(NewElement("subject").Attr("typeCode", "SUBJ").Add(p.Subject))
	return cae
}
