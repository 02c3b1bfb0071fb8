// Package gateway wires the translation and signing libraries to the HTTP
// surface: classify and translate inbound payloads, prepare signing digests,
// and verify returned signed prescriptions, enriching bundles from the
// organization directory and cross-checking against the prescription
// tracker where those collaborators are configured.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/epsgw/epsgw/internal/platform/fhir"
	"github.com/epsgw/epsgw/internal/platform/hl7v3"
	"github.com/epsgw/epsgw/internal/platform/signing"
	"github.com/epsgw/epsgw/internal/platform/spine"
	"github.com/epsgw/epsgw/internal/platform/translator"
)

type Service struct {
	translator *translator.Translator
	verifier   *signing.Verifier
	tracker    spine.Tracker
	directory  spine.Directory
	log        zerolog.Logger
}

// NewService builds the gateway service. Tracker and directory may be nil;
// the cross-check and enrichment steps are then skipped.
func NewService(t *translator.Translator, v *signing.Verifier, tracker spine.Tracker, directory spine.Directory, log zerolog.Logger) *Service {
	return &Service{translator: t, verifier: v, tracker: tracker, directory: directory, log: log}
}

// Convert translates between the two wire forms. A JSON body is treated as
// an outbound FHIR Bundle or Task and translated to the HL7 V3 wire
// message; anything else is treated as an inbound exchange response and
// translated back to a FHIR resource with an HTTP-style status.
func (s *Service) Convert(ctx context.Context, body []byte) (*ConvertResult, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return s.convertOutbound(ctx, trimmed)
	}

	resp, err := s.translator.TranslateResponse(body)
	if err != nil {
		return nil, err
	}
	return &ConvertResult{StatusCode: resp.StatusCode, Resource: resp.Resource}, nil
}

// ConvertResult is either an outbound XML wire message, tagged with its wire
// interaction, or a translated inbound response resource with its status.
type ConvertResult struct {
	XML           []byte
	InteractionID string
	StatusCode    int
	Resource      interface{}
}

func (s *Service) convertOutbound(ctx context.Context, body []byte) (*ConvertResult, error) {
	enriched, err := s.enrichDispenseBundle(ctx, body)
	if err != nil {
		return nil, err
	}
	payload, err := s.translator.TranslateRequest(enriched)
	if err != nil {
		return nil, err
	}
	return &ConvertResult{
		XML:           hl7v3.Canonicalize(payload.Element()),
		InteractionID: payload.InteractionID,
	}, nil
}

// PrepareDigest builds the prescription from an order bundle and returns the
// canonical signing payload as a Parameters resource.
func (s *Service) PrepareDigest(body []byte) (*fhir.Parameters, error) {
	b, err := fhir.ParseBundle(body)
	if err != nil {
		return nil, err
	}
	pp, err := s.translator.BuildParentPrescription(b)
	if err != nil {
		return nil, err
	}
	digest, err := signing.PrepareDigest(pp.Element())
	if err != nil {
		return nil, err
	}
	return digest.Parameters(), nil
}

// VerifySignature checks the signed prescription in the given HL7 V3
// document and returns every failure found; an empty slice means valid.
// When a tracker is configured, the received prescription is additionally
// cross-checked against the stored order.
func (s *Service) VerifySignature(ctx context.Context, body []byte) ([]string, error) {
	pp, err := parseParentPrescription(body)
	if err != nil {
		return nil, err
	}
	failures := s.verifier.VerifySignature(ctx, pp)
	failures = append(failures, s.crossCheck(ctx, pp)...)
	return failures, nil
}

// IsCertificateValid reports whether the signing certificate in the given
// HL7 V3 document was valid at signing time.
func (s *Service) IsCertificateValid(ctx context.Context, body []byte) (bool, error) {
	pp, err := parseParentPrescription(body)
	if err != nil {
		return false, err
	}
	return s.verifier.IsCertificateValid(ctx, pp), nil
}

func parseParentPrescription(body []byte) (*hl7v3.Element, error) {
	root, err := hl7v3.Parse(body)
	if err != nil {
		return nil, fhir.NewInvalidValue("ParentPrescription", "body is not well-formed XML: %v", err)
	}
	if root.Name == "ParentPrescription" {
		return root, nil
	}
	if pp := root.FindDescendant("ParentPrescription"); pp != nil {
		return pp, nil
	}
	return nil, fhir.NewInvalidValue("ParentPrescription", "document contains no ParentPrescription")
}

// crossCheck compares the received prescription with the stored order: the
// short-form id must resolve in the tracker and the line-item ids must
// match. The comparison is deliberately bounded to identity fields.
func (s *Service) crossCheck(ctx context.Context, received *hl7v3.Element) []string {
	if s.tracker == nil {
		return nil
	}
	shortFormID := receivedShortFormID(received)
	if shortFormID == "" {
		return []string{"Prescription carries no short-form id"}
	}
	stored, err := s.tracker.Prescription(ctx, shortFormID)
	if err != nil {
		s.log.Warn().Err(err).Str("prescription_id", shortFormID).
			Msg("tracker lookup failed, skipping order cross-check")
		return nil
	}
	if storedPP := stored.FindDescendant("ParentPrescription"); storedPP != nil {
		stored = storedPP
	}
	if !sameLineItems(received, stored) {
		return []string{"Prescription does not match the stored order"}
	}
	return nil
}

func receivedShortFormID(pp *hl7v3.Element) string {
	prescription := pp.FindPath("pertinentInformation1", "pertinentPrescription")
	if prescription == nil {
		return ""
	}
	for _, id := range prescription.FindAll("id") {
		if id.AttrValue("root") == hl7v3.OIDPrescriptionShortForm {
			return id.AttrValue("extension")
		}
	}
	return ""
}

func sameLineItems(a, b *hl7v3.Element) bool {
	return fmt.Sprint(lineItemIDs(a)) == fmt.Sprint(lineItemIDs(b))
}

func lineItemIDs(pp *hl7v3.Element) []string {
	var ids []string
	prescription := pp.FindPath("pertinentInformation1", "pertinentPrescription")
	if prescription == nil {
		return ids
	}
	for _, pert := range prescription.FindAll("pertinentInformation2") {
		li := pert.Find("pertinentLineItem")
		if li == nil {
			continue
		}
		if id := li.Find("id"); id != nil {
			ids = append(ids, id.AttrValue("root"))
		}
	}
	return ids
}

// enrichDispenseBundle fills in dispensing-site organizations referenced by
// ODS code only. Dispense bundles frequently carry the performing role with
// a bare identifier reference; the directory lookup turns it into a
// resolvable bundle entry so translation can proceed.
func (s *Service) enrichDispenseBundle(ctx context.Context, body []byte) ([]byte, error) {
	if s.directory == nil {
		return body, nil
	}
	b, err := fhir.ParseBundle(body)
	if err != nil {
		// Not a bundle (a Task, say); nothing to enrich.
		return body, nil
	}
	kind, err := translator.Classify(b)
	if err != nil || (kind != translator.KindDispenseNotification && kind != translator.KindDispenseClaim) {
		return body, nil
	}

	changed := false
	for i, entry := range b.Entry {
		if fhir.ResourceType(entry.Resource) != "PractitionerRole" {
			continue
		}
		var role fhir.PractitionerRole
		if err := json.Unmarshal(entry.Resource, &role); err != nil {
			continue
		}
		ref := role.Organization
		if ref == nil || ref.Reference != "" || ref.Identifier == nil || ref.Identifier.System != translator.SystemODSCode {
			continue
		}
		org, err := s.directory.Organization(ctx, ref.Identifier.Value)
		if err != nil {
			s.log.Warn().Err(err).Str("ods_code", ref.Identifier.Value).
				Msg("directory lookup failed, leaving reference unresolved")
			continue
		}
		raw, err := json.Marshal(org)
		if err != nil {
			return nil, fmt.Errorf("gateway: marshal directory organization: %w", err)
		}
		fullURL := "urn:uuid:" + uuid.New().String()
		b.Entry = append(b.Entry, fhir.BundleEntry{FullURL: fullURL, Resource: raw})

		role.Organization = &fhir.Reference{Reference: fullURL}
		rawRole, err := json.Marshal(role)
		if err != nil {
			return nil, fmt.Errorf("gateway: marshal enriched role: %w", err)
		}
		b.Entry[i].Resource = rawRole
		changed = true
	}
	if !changed {
		return body, nil
	}
	out, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("gateway: marshal enriched bundle: %w", err)
	}
	return out, nil
}
