// Package signing implements the prescription digital-signature lifecycle:
// preparing a canonical digest for external signing, verifying a returned
// signed prescription, and checking certificate revocation against the
// issuing authority's CRL.
package signing

import (
	"crypto/sha1"
	"encoding/base64"

	"github.com/epsgw/epsgw/internal/platform/fhir"
	"github.com/epsgw/epsgw/internal/platform/hl7v3"
)

// XML-DSig algorithm identifiers. The exchange's signing profile is fixed
// at exclusive c14n with RSA-SHA1; these are not negotiable per message.
const (
	DSigNamespace    = "http://www.w3.org/2000/09/xmldsig#"
	AlgorithmC14N    = "http://www.w3.org/2001/10/xml-exc-c14n#"
	AlgorithmRSASHA1 = "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
	AlgorithmSHA1    = "http://www.w3.org/2000/09/xmldsig#sha1"

	digestParameterName = "message-digest"
)

// Digest is a prepared signing payload: the canonical SignedInfo handed to
// the external signer and the fragment set it covers, kept for traceability.
type Digest struct {
	// DigestValue is the base64 SHA-1 of the canonicalized fragments.
	DigestValue string
	// SignedInfo is the canonicalized SignedInfo XML, the exact bytes the
	// external signer signs.
	SignedInfo string
	// Fragments is the canonicalized fragment set the digest covers.
	Fragments string
}

// ExtractFragments pulls the signable excerpts of a built prescription in
// the mandated order: author time, prescription id, the prescribing
// AgentPerson, the record target, then each line item. The order is part of
// the signing contract; reordering changes the digest.
func ExtractFragments(parentPrescription *hl7v3.Element) (*hl7v3.Element, error) {
	prescription, err := parentPrescription.MustFindPath("pertinentInformation1", "pertinentPrescription")
	if err != nil {
		return nil, err
	}
	author, err := prescription.MustFindPath("author")
	if err != nil {
		return nil, err
	}
	authorTime, err := author.MustFindPath("time")
	if err != nil {
		return nil, err
	}
	agentPerson, err := author.MustFindPath("AgentPerson")
	if err != nil {
		return nil, err
	}
	recordTarget, err := parentPrescription.MustFindPath("recordTarget")
	if err != nil {
		return nil, err
	}

	shortFormID := prescriptionShortFormID(prescription)
	if shortFormID == nil {
		return nil, fhir.NewTooFewValues("ParentPrescription", "prescription has no short-form id")
	}

	fragments := hl7v3.NewElement("FragmentsToBeHashed").
		Attr("xmlns", hl7v3.Namespace).
		Add(
			fragment(authorTime),
			fragment(shortFormID),
			fragment(agentPerson),
			fragment(recordTarget),
		)
	for _, pert := range prescription.FindAll("pertinentInformation2") {
		if li := pert.Find("pertinentLineItem"); li != nil {
			fragments.Add(fragment(li))
		}
	}
	return fragments, nil
}

func fragment(e *hl7v3.Element) *hl7v3.Element {
	f := hl7v3.NewElement("Fragment")
	inner := e.Clone()
	// Fragments lose their ancestors' namespace context when extracted;
	// each regains the declaration before hashing.
	if inner.AttrValue("xmlns") == "" {
		inner.Attr("xmlns", hl7v3.Namespace)
	}
	return f.Add(inner)
}

func prescriptionShortFormID(prescription *hl7v3.Element) *hl7v3.Element {
	for _, id := range prescription.FindAll("id") {
		if id.AttrValue("root") == hl7v3.OIDPrescriptionShortForm {
			return id
		}
	}
	return nil
}

// PrepareDigest canonicalizes the signable fragments of a built
// prescription, digests them, and wraps the result in a canonical
// SignedInfo ready for external signing. Called twice on an unmodified
// prescription it returns identical values.
func PrepareDigest(parentPrescription *hl7v3.Element) (*Digest, error) {
	fragments, err := ExtractFragments(parentPrescription)
	if err != nil {
		return nil, err
	}
	canonicalFragments := hl7v3.Canonicalize(fragments)

	sum := sha1.Sum(canonicalFragments)
	digestValue := base64.StdEncoding.EncodeToString(sum[:])

	signedInfo := SignedInfoElement(digestValue)
	canonicalSignedInfo := hl7v3.Canonicalize(signedInfo)

	return &Digest{
		DigestValue: digestValue,
		SignedInfo:  string(canonicalSignedInfo),
		Fragments:   string(canonicalFragments),
	}, nil
}

// SignedInfoElement builds the SignedInfo tree for a digest value, declaring
// the fixed canonicalization, signature and digest methods.
func SignedInfoElement(digestValue string) *hl7v3.Element {
	return hl7v3.NewElement("SignedInfo").
		Attr("xmlns", DSigNamespace).
		Add(
			hl7v3.NewElement("CanonicalizationMethod").Attr("Algorithm", AlgorithmC14N),
			hl7v3.NewElement("SignatureMethod").Attr("Algorithm", AlgorithmRSASHA1),
			hl7v3.NewElement("Reference").Add(
				hl7v3.NewElement("Transforms").Add(
					hl7v3.NewElement("Transform").Attr("Algorithm", AlgorithmC14N),
				),
				hl7v3.NewElement("DigestMethod").Attr("Algorithm", AlgorithmSHA1),
				hl7v3.NewTextElement("DigestValue", digestValue),
			),
		)
}

// Parameters packages a prepared digest as the FHIR Parameters resource
// returned to the caller: a single message-digest string parameter holding
// the canonical SignedInfo XML, the exact bytes the external signer signs.
func (d *Digest) Parameters() *fhir.Parameters {
	return fhir.NewParameters(fhir.Parameter{
		Name:        digestParameterName,
		ValueString: d.SignedInfo,
	})
}
