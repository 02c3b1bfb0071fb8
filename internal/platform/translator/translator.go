// Package translator converts FHIR message bundles and tasks into HL7 V3
// wire payloads and converts exchange responses back into FHIR. Dispatch is
// by message classification: the MessageHeader event code (or Task status)
// selects one mapping pipeline, which either produces a complete wire
// message or aborts with a typed translation error. No partial message is
// ever produced.
package translator

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/epsgw/epsgw/internal/platform/fhir"
	"github.com/epsgw/epsgw/internal/platform/hl7v3"
)

// Identifier systems on inbound FHIR resources.
const (
	SystemNHSNumber         = "https://fhir.nhs.uk/Id/nhs-number"
	SystemODSCode           = "https://fhir.nhs.uk/Id/ods-organization-code"
	SystemSDSUserID         = "https://fhir.nhs.uk/Id/sds-user-id"
	SystemSDSRoleProfileID  = "https://fhir.nhs.uk/Id/sds-role-profile-id"
	SystemPrescriptionOrder = "https://fhir.nhs.uk/Id/prescription-order-number"
	SystemPrescriptionUUID  = "https://fhir.nhs.uk/Id/prescription"
	SystemJobRoleCode       = "https://fhir.nhs.uk/CodeSystem/NHSDigital-SDS-JobRoleCode"
	SystemSNOMED            = "http://snomed.info/sct"
)

// Message event codes carried on MessageHeader.eventCoding.
const (
	EventPrescriptionOrder       = "prescription-order"
	EventPrescriptionOrderUpdate = "prescription-order-update"
	EventDispenseNotification    = "dispense-notification"
	EventDispenseClaim           = "dispense-claim"
)

// MessageKind is the translation branch selected for an input.
type MessageKind int

const (
	KindUnsupported MessageKind = iota
	KindPrescriptionOrder
	KindCancellation
	KindDispenseNotification
	KindDispenseClaim
	KindReturn
	KindWithdraw
)

// Config carries the injected gateway identity used on every envelope: the
// sending and receiving accredited system ids and the authenticated agent.
// Keeping it an explicit value keeps translation pure and unit-testable.
type Config struct {
	FromASID string
	ToASID   string
	Agent    hl7v3.Agent
}

// Translator builds outbound wire messages. It is safe for concurrent use
// because it holds only immutable configuration; clock and id generation are
// injectable for deterministic tests.
type Translator struct {
	cfg   Config
	now   func() time.Time
	newID func() string
}

// Option customises a Translator.
type Option func(*Translator)

// WithClock fixes the clock used for envelope creation times.
func WithClock(now func() time.Time) Option {
	return func(t *Translator) { t.now = now }
}

// WithIDGenerator fixes the message id generator.
func WithIDGenerator(gen func() string) Option {
	return func(t *Translator) { t.newID = gen }
}

// New creates a Translator with the given gateway identity.
func New(cfg Config, opts ...Option) *Translator {
	t := &Translator{
		cfg: cfg,
		now: time.Now,
		newID: func() string {
			return strings.ToUpper(uuid.New().String())
		},
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Classify determines the translation branch for a bundle from its
// MessageHeader event code.
func Classify(b *fhir.Bundle) (MessageKind, error) {
	mh, err := fhir.MessageHeaderOf(b)
	if err != nil {
		return KindUnsupported, err
	}
	switch mh.EventCoding.Code {
	case EventPrescriptionOrder:
		return KindPrescriptionOrder, nil
	case EventPrescriptionOrderUpdate:
		return KindCancellation, nil
	case EventDispenseNotification:
		return KindDispenseNotification, nil
	case EventDispenseClaim:
		return KindDispenseClaim, nil
	}
	return KindUnsupported, fhir.NewUnsupportedMessageType(mh.EventCoding.Code)
}

// ClassifyTask determines the translation branch for a dispense-workflow
// Task from its status.
func ClassifyTask(task *fhir.Task) (MessageKind, error) {
	switch task.Status {
	case "rejected":
		return KindReturn, nil
	case "in-progress":
		return KindWithdraw, nil
	}
	return KindUnsupported, fhir.NewUnsupportedMessageType("Task.status=" + task.Status)
}

// TranslateRequest dispatches a raw inbound resource (Bundle or Task) to the
// matching pipeline and returns the complete wire envelope.
func (t *Translator) TranslateRequest(raw []byte) (*hl7v3.SendMessagePayload, error) {
	switch fhir.ResourceType(raw) {
	case "Bundle":
		b, err := fhir.ParseBundle(raw)
		if err != nil {
			return nil, err
		}
		return t.TranslateBundle(b)
	case "Task":
		var task fhir.Task
		if err := json.Unmarshal(raw, &task); err != nil {
			return nil, fhir.NewInvalidValue("Task", "malformed resource: %v", err)
		}
		return t.TranslateTask(&task)
	}
	return nil, fhir.NewUnsupportedMessageType(fhir.ResourceType(raw))
}

// TranslateBundle runs the pipeline selected by the bundle's message header.
func (t *Translator) TranslateBundle(b *fhir.Bundle) (*hl7v3.SendMessagePayload, error) {
	kind, err := Classify(b)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindPrescriptionOrder:
		pp, err := t.BuildParentPrescription(b)
		if err != nil {
			return nil, err
		}
		return t.envelope(hl7v3.InteractionParentPrescription, pp.Element()), nil
	case KindCancellation:
		cr, err := t.buildCancellation(b)
		if err != nil {
			return nil, err
		}
		return t.envelope(hl7v3.InteractionCancelRequest, cr.Element()), nil
	case KindDispenseNotification:
		dn, err := t.buildDispenseNotification(b)
		if err != nil {
			return nil, err
		}
		return t.envelope(hl7v3.InteractionDispenseNotification, dn.Element()), nil
	case KindDispenseClaim:
		dc, err := t.buildDispenseClaim(b)
		if err != nil {
			return nil, err
		}
		return t.envelope(hl7v3.InteractionDispenseClaim, dc.Element()), nil
	}
	return nil, fhir.NewUnsupportedMessageType("Bundle")
}

// TranslateTask runs the return or withdraw pipeline for a Task.
func (t *Translator) TranslateTask(task *fhir.Task) (*hl7v3.SendMessagePayload, error) {
	kind, err := ClassifyTask(task)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindReturn:
		ret, err := t.buildReturn(task)
		if err != nil {
			return nil, err
		}
		return t.envelope(hl7v3.InteractionDispenseReturn, ret.Element()), nil
	case KindWithdraw:
		wd, err := t.buildWithdraw(task)
		if err != nil {
			return nil, err
		}
		return t.envelope(hl7v3.InteractionDispenseWithdraw, wd.Element()), nil
	}
	return nil, fhir.NewUnsupportedMessageType("Task")
}

func (t *Translator) envelope(interactionID string, subject *hl7v3.Element) *hl7v3.SendMessagePayload {
	return &hl7v3.SendMessagePayload{
		MessageID:     t.newID(),
		InteractionID: interactionID,
		CreationTime:  t.now(),
		FromASID:      t.cfg.FromASID,
		ToASID:        t.cfg.ToASID,
		Agent:         t.cfg.Agent,
		Subject:       subject,
	}
}

// parseFHIRTime accepts FHIR instant/dateTime values with or without a time
// component; values carrying an offset are normalised to UTC by the wire
// formatters.
func parseFHIRTime(v, path string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, v); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fhir.NewInvalidValue(path, "invalid dateTime %q", v)
}
