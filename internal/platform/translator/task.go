package translator

import (
	"github.com/epsgw/epsgw/internal/platform/fhir"
	"github.com/epsgw/epsgw/internal/platform/hl7v3"
)

const (
	systemReturnReason   = "https://fhir.nhs.uk/CodeSystem/EPS-task-dispense-return-status-reason"
	systemWithdrawReason = "https://fhir.nhs.uk/CodeSystem/EPS-task-dispense-withdraw-reason"
)

// buildReturn maps a rejected Task to a dispense proposal return, handing an
// unstarted prescription back to the exchange.
func (t *Translator) buildReturn(task *fhir.Task) (*hl7v3.DispenseProposalReturn, error) {
	authoredOn, err := parseFHIRTime(task.AuthoredOn, "Task.authoredOn")
	if err != nil {
		return nil, err
	}

	shortForm, err := taskShortFormID(task)
	if err != nil {
		return nil, err
	}

	if task.Focus == nil || task.Focus.Identifier == nil {
		return nil, fhir.NewTooFewValues("Task.focus", "focus identifier (release message id) is missing")
	}

	reason, err := fhir.CodingForSystem(task.Reason, systemReturnReason, "Task.reasonCode")
	if err != nil {
		return nil, err
	}

	agent, err := taskAgent(task)
	if err != nil {
		return nil, err
	}

	return &hl7v3.DispenseProposalReturn{
		ID:             t.newID(),
		Effective:      authoredOn,
		Agent:          agent,
		PrescriptionID: task.Focus.Identifier.Value,
		ShortFormID:    shortForm,
		ReasonCode:     reason.Code,
		ReasonDisplay:  reason.Display,
	}, nil
}

// buildWithdraw maps an in-progress Task to a withdrawal of a previously
// submitted dispense notification.
func (t *Translator) buildWithdraw(task *fhir.Task) (*hl7v3.EtpWithdraw, error) {
	authoredOn, err := parseFHIRTime(task.AuthoredOn, "Task.authoredOn")
	if err != nil {
		return nil, err
	}

	shortForm, err := taskShortFormID(task)
	if err != nil {
		return nil, err
	}

	if task.Focus == nil || task.Focus.Identifier == nil {
		return nil, fhir.NewTooFewValues("Task.focus", "focus identifier (dispense notification id) is missing")
	}

	if task.For == nil {
		return nil, fhir.NewTooFewValues("Task.for", "patient reference is missing")
	}
	nhsNumber, err := fhir.IdentifierReferenceValue(task.For, SystemNHSNumber, "Task.for")
	if err != nil {
		return nil, err
	}

	reason, err := fhir.CodingForSystem(task.StatusReason, systemWithdrawReason, "Task.statusReason")
	if err != nil {
		return nil, err
	}

	agent, err := taskAgent(task)
	if err != nil {
		return nil, err
	}

	return &hl7v3.EtpWithdraw{
		ID:               t.newID(),
		Effective:        authoredOn,
		Agent:            agent,
		PatientNHSNumber: nhsNumber,
		ShortFormID:      shortForm,
		WithdrawnID:      task.Focus.Identifier.Value,
		ReasonCode:       reason.Code,
		ReasonDisplay:    reason.Display,
	}, nil
}

func taskShortFormID(task *fhir.Task) (string, error) {
	if task.GroupIdentifier == nil {
		return "", fhir.NewTooFewValues("Task.groupIdentifier", "group identifier is missing")
	}
	if task.GroupIdentifier.System != SystemPrescriptionOrder {
		return "", fhir.NewInvalidValue("Task.groupIdentifier.system",
			"system %q, expected %q", task.GroupIdentifier.System, SystemPrescriptionOrder)
	}
	return task.GroupIdentifier.Value, nil
}

// taskAgent builds the acting dispenser identity from the Task's owner and
// requester identifier references. Tasks travel without a supporting
// resource graph, so the identity is identifier-based.
func taskAgent(task *fhir.Task) (hl7v3.AgentPerson, error) {
	var agent hl7v3.AgentPerson

	odsCode, err := fhir.IdentifierReferenceValue(task.Owner, SystemODSCode, "Task.owner")
	if err != nil {
		return agent, err
	}
	agent.Organization = hl7v3.Organization{ODSCode: odsCode, Name: task.Owner.Display, TypeCode: "999"}

	if task.Requester != nil && task.Requester.Identifier != nil {
		switch task.Requester.Identifier.System {
		case SystemSDSRoleProfileID:
			agent.RoleProfileID = task.Requester.Identifier.Value
		case SystemSDSUserID:
			agent.UserID = task.Requester.Identifier.Value
		}
	}
	return agent, nil
}
