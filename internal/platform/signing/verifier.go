package signing

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/epsgw/epsgw/internal/platform/hl7v3"
)

// Human-readable verification failures. Callers surface these verbatim, so
// changes here are caller-visible.
const (
	FailureFormatInvalid     = "Signature is invalid"
	FailureDigestMismatch    = "Signature doesn't match prescription"
	FailureCryptoInvalid     = "Signature is invalid"
	FailureCertificateExpiry = "Certificate expired when signed"
	FailureCertUntrusted     = "Certificate not issued by a trusted authority"
	FailureCertRevoked       = "Certificate is revoked"
)

// Verifier checks a returned signed prescription: signature structure,
// digest integrity, RSA signature, and the signing certificate's validity,
// trust chain and revocation status at signing time.
type Verifier struct {
	trusted    []*x509.Certificate
	revocation *RevocationChecker
	log        zerolog.Logger
}

// NewVerifier builds a verifier trusting the given issuing sub-CA
// certificates. Signing certificates must be issued directly by one of them.
func NewVerifier(trusted []*x509.Certificate, revocation *RevocationChecker, log zerolog.Logger) *Verifier {
	return &Verifier{trusted: trusted, revocation: revocation, log: log}
}

// signature is the structural content of a parsed Signature element after
// the format check has passed.
type signature struct {
	signedInfo     *hl7v3.Element
	digestValue    string
	signatureValue []byte
	certificate    *x509.Certificate
}

// VerifySignature runs every check against the signed prescription and
// returns all failures found; an empty slice means the signature is valid.
// Only a structurally broken signature short-circuits, since nothing else is
// computable without SignedInfo, a signature value and a certificate.
func (v *Verifier) VerifySignature(ctx context.Context, parentPrescription *hl7v3.Element) []string {
	sig, err := extractSignature(parentPrescription)
	if err != nil {
		v.log.Info().Err(err).Msg("signature failed format check")
		return []string{FailureFormatInvalid}
	}

	var failures []string
	if !v.checkDigest(parentPrescription, sig) {
		failures = append(failures, FailureDigestMismatch)
	}
	if !v.checkCryptographic(sig) {
		failures = append(failures, FailureCryptoInvalid)
	}
	failures = append(failures, v.certificateFailures(ctx, parentPrescription, sig.certificate)...)
	return dedupe(failures)
}

// IsCertificateValid checks only the certificate properties of the signed
// prescription: validity window at signing time, trusted issuer, and
// revocation. A prescription with a broken signature structure fails too,
// because no certificate can be extracted from it.
func (v *Verifier) IsCertificateValid(ctx context.Context, parentPrescription *hl7v3.Element) bool {
	sig, err := extractSignature(parentPrescription)
	if err != nil {
		v.log.Info().Err(err).Msg("cannot extract certificate from signature")
		return false
	}
	return len(v.certificateFailures(ctx, parentPrescription, sig.certificate)) == 0
}

func (v *Verifier) certificateFailures(ctx context.Context, parentPrescription *hl7v3.Element, cert *x509.Certificate) []string {
	var failures []string
	signingTime, err := signingTimeOf(parentPrescription)
	if err != nil {
		v.log.Info().Err(err).Msg("prescription has no readable signing time")
		failures = append(failures, FailureCertificateExpiry)
		return failures
	}
	if signingTime.Before(cert.NotBefore) || signingTime.After(cert.NotAfter) {
		failures = append(failures, FailureCertificateExpiry)
	}
	if !v.isTrusted(cert) {
		failures = append(failures, FailureCertUntrusted)
	}
	if v.revocation != nil {
		if status := v.revocation.IsRevoked(ctx, cert, signingTime); status.Revoked {
			failures = append(failures, FailureCertRevoked)
		}
	}
	return failures
}

// checkDigest recomputes the fragment digest from the received prescription
// and compares it to the DigestValue the signer committed to.
func (v *Verifier) checkDigest(parentPrescription *hl7v3.Element, sig *signature) bool {
	fragments, err := ExtractFragments(parentPrescription)
	if err != nil {
		v.log.Info().Err(err).Msg("cannot extract signable fragments from prescription")
		return false
	}
	sum := sha1.Sum(hl7v3.Canonicalize(fragments))
	return base64.StdEncoding.EncodeToString(sum[:]) == sig.digestValue
}

// checkCryptographic verifies the RSA-SHA1 signature over the canonical
// form of the received SignedInfo.
func (v *Verifier) checkCryptographic(sig *signature) bool {
	pub, ok := sig.certificate.PublicKey.(*rsa.PublicKey)
	if !ok {
		return false
	}
	canonical := canonicalSignedInfo(sig.signedInfo)
	sum := sha1.Sum(canonical)
	return rsa.VerifyPKCS1v15(pub, crypto.SHA1, sum[:], sig.signatureValue) == nil
}

func (v *Verifier) isTrusted(cert *x509.Certificate) bool {
	for _, ca := range v.trusted {
		if cert.CheckSignatureFrom(ca) == nil {
			return true
		}
	}
	return false
}

// extractSignature locates the Signature element embedded in the
// prescription author's signatureText and validates its structure.
func extractSignature(parentPrescription *hl7v3.Element) (*signature, error) {
	sigRoot := parentPrescription.FindPath(
		"pertinentInformation1", "pertinentPrescription", "author", "signatureText", "Signature")
	if sigRoot == nil {
		return nil, fmt.Errorf("signing: prescription author carries no Signature element")
	}

	signedInfo := sigRoot.Find("SignedInfo")
	if signedInfo == nil {
		return nil, fmt.Errorf("signing: Signature has no SignedInfo")
	}
	digestValue := signedInfo.FindPath("Reference", "DigestValue")
	if digestValue == nil || strings.TrimSpace(digestValue.Text) == "" {
		return nil, fmt.Errorf("signing: SignedInfo has no DigestValue")
	}

	sigValueElem := sigRoot.Find("SignatureValue")
	if sigValueElem == nil || strings.TrimSpace(sigValueElem.Text) == "" {
		return nil, fmt.Errorf("signing: Signature has no SignatureValue")
	}
	sigValue, err := base64.StdEncoding.DecodeString(compactBase64(sigValueElem.Text))
	if err != nil {
		return nil, fmt.Errorf("signing: SignatureValue is not valid base64: %w", err)
	}

	certElem := sigRoot.FindPath("KeyInfo", "X509Data", "X509Certificate")
	if certElem == nil || strings.TrimSpace(certElem.Text) == "" {
		return nil, fmt.Errorf("signing: Signature has no X509Certificate")
	}
	cert, err := ParseCertificate(certElem.Text)
	if err != nil {
		return nil, err
	}

	return &signature{
		signedInfo:     signedInfo,
		digestValue:    strings.TrimSpace(digestValue.Text),
		signatureValue: sigValue,
		certificate:    cert,
	}, nil
}

// ParseCertificate decodes the base64 DER certificate carried in an
// X509Certificate element. The wire form carries no PEM armor.
func ParseCertificate(b64 string) (*x509.Certificate, error) {
	der, err := base64.StdEncoding.DecodeString(compactBase64(b64))
	if err != nil {
		return nil, fmt.Errorf("signing: certificate is not valid base64: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("signing: parse certificate: %w", err)
	}
	return cert, nil
}

// signingTimeOf reads the author/time attribute of the prescription, the
// timestamp the temporal and revocation checks are evaluated against.
func signingTimeOf(parentPrescription *hl7v3.Element) (time.Time, error) {
	t, err := parentPrescription.MustFindPath(
		"pertinentInformation1", "pertinentPrescription", "author", "time")
	if err != nil {
		return time.Time{}, err
	}
	return hl7v3.ParseTime(t.AttrValue("value"))
}

// canonicalSignedInfo re-serializes a parsed SignedInfo with the XML-DSig
// namespace restored. Parsing strips namespace declarations, but the signer
// signed the namespaced canonical form.
func canonicalSignedInfo(signedInfo *hl7v3.Element) []byte {
	root := signedInfo
	if root.AttrValue("xmlns") == "" {
		root = signedInfo.Clone()
		root.Attr("xmlns", DSigNamespace)
	}
	return hl7v3.Canonicalize(root)
}

// compactBase64 strips the line breaks and indentation XML signers commonly
// insert into base64 payloads.
func compactBase64(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s)
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
