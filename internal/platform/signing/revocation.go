package signing

import (
	"context"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/epsgw/epsgw/internal/platform/fhir"
)

// CRL reason codes (RFC 5280 section 5.3.1).
const (
	ReasonUnspecified          = 0
	ReasonKeyCompromise        = 1
	ReasonCACompromise         = 2
	ReasonAffiliationChanged   = 3
	ReasonSuperseded           = 4
	ReasonCessationOfOperation = 5
	ReasonCertificateHold      = 6
	ReasonRemoveFromCRL        = 8
	ReasonPrivilegeWithdrawn   = 9
	ReasonAACompromise         = 10
)

// RevocationStatus is the outcome of a CRL lookup for one certificate.
type RevocationStatus struct {
	Revoked        bool
	ReasonCode     int
	RevocationDate time.Time
}

// RevocationChecker evaluates a certificate's revocation status against the
// CRL published at the certificate's own distribution point. Fetch and parse
// failures are logged and reported as not revoked: an infrastructure outage
// must not retroactively invalidate previously-valid prescriptions.
type RevocationChecker struct {
	client *http.Client
	log    zerolog.Logger
}

// NewRevocationChecker builds a checker using the given HTTP client. A nil
// client gets a default with a 10 second timeout.
func NewRevocationChecker(client *http.Client, log zerolog.Logger) *RevocationChecker {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RevocationChecker{client: client, log: log}
}

// IsRevoked fetches the certificate's CRL and decides whether the
// certificate was invalid at signingTime. A revocation dated on or before
// the signing time always invalidates; a later revocation invalidates only
// for key or CA compromise, which taint signatures retroactively.
func (c *RevocationChecker) IsRevoked(ctx context.Context, cert *x509.Certificate, signingTime time.Time) RevocationStatus {
	if len(cert.CRLDistributionPoints) == 0 {
		c.log.Warn().
			Str("serial", SerialHex(cert)).
			Msg("certificate has no CRL distribution point, skipping revocation check")
		return RevocationStatus{}
	}

	for _, dp := range cert.CRLDistributionPoints {
		crl, err := c.fetchCRL(ctx, dp)
		if err != nil {
			c.log.Warn().
				Err(err).
				Str("url", dp).
				Str("serial", SerialHex(cert)).
				Str("code", fhir.CodeRevocationListUnavailable).
				Msg("revocation list unavailable, treating certificate as not revoked")
			continue
		}
		if entry, ok := findSerial(crl, cert); ok {
			status := RevocationStatus{
				ReasonCode:     entry.ReasonCode,
				RevocationDate: entry.RevocationTime,
			}
			status.Revoked = invalidatesAt(entry, signingTime)
			c.log.Info().
				Str("serial", SerialHex(cert)).
				Int("reason", entry.ReasonCode).
				Time("revoked_at", entry.RevocationTime).
				Bool("invalidates", status.Revoked).
				Msg("certificate appears on revocation list")
			return status
		}
	}
	return RevocationStatus{}
}

func (c *RevocationChecker) fetchCRL(ctx context.Context, url string) (*x509.RevocationList, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build CRL request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch CRL: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch CRL: unexpected status %d", resp.StatusCode)
	}
	der, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read CRL body: %w", err)
	}
	crl, err := x509.ParseRevocationList(der)
	if err != nil {
		return nil, fmt.Errorf("parse CRL: %w", err)
	}
	return crl, nil
}

func findSerial(crl *x509.RevocationList, cert *x509.Certificate) (x509.RevocationListEntry, bool) {
	want := SerialHex(cert)
	for _, entry := range crl.RevokedCertificateEntries {
		if strings.EqualFold(entry.SerialNumber.Text(16), want) {
			return entry, true
		}
	}
	return x509.RevocationListEntry{}, false
}

// invalidatesAt applies the reason-code policy. Key and CA compromise mean
// the key may have been misused before the recorded revocation date, so they
// invalidate signatures made at any time.
func invalidatesAt(entry x509.RevocationListEntry, signingTime time.Time) bool {
	if !entry.RevocationTime.After(signingTime) {
		return true
	}
	switch entry.ReasonCode {
	case ReasonKeyCompromise, ReasonCACompromise, ReasonAACompromise:
		return true
	}
	return false
}

// SerialHex renders a certificate's serial number in lowercase hex, the
// form used for CRL entry comparison and logging.
func SerialHex(cert *x509.Certificate) string {
	return strings.ToLower(cert.SerialNumber.Text(16))
}
