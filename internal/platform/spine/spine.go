// Package spine holds the outbound collaborator clients: the prescription
// tracker, used to fetch a prior prescription for cross-checking, and the
// ODS organization directory, used when a dispense bundle omits the
// dispensing site details. Both are small interfaces over bounded-timeout
// HTTP so callers can stub them in tests.
package spine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/epsgw/epsgw/internal/platform/fhir"
	"github.com/epsgw/epsgw/internal/platform/hl7v3"
)

// DefaultTimeout bounds every tracker and directory request.
const DefaultTimeout = 10 * time.Second

// Tracker fetches a previously submitted prescription by its short-form id.
type Tracker interface {
	Prescription(ctx context.Context, shortFormID string) (*hl7v3.Element, error)
}

// Directory looks up an organization by its ODS code.
type Directory interface {
	Organization(ctx context.Context, odsCode string) (*fhir.OrganizationResource, error)
}

// TrackerClient is the HTTP Tracker implementation.
type TrackerClient struct {
	httpClient *http.Client
	baseURL    string
	log        zerolog.Logger
}

// NewTrackerClient builds a tracker client for the given base URL. A nil
// HTTP client gets a default with DefaultTimeout.
func NewTrackerClient(baseURL string, httpClient *http.Client, log zerolog.Logger) *TrackerClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &TrackerClient{httpClient: httpClient, baseURL: baseURL, log: log}
}

// Prescription fetches the stored HL7 V3 prescription for a short-form id
// and parses it into an element tree.
func (c *TrackerClient) Prescription(ctx context.Context, shortFormID string) (*hl7v3.Element, error) {
	u := fmt.Sprintf("%s/prescriptions/%s", c.baseURL, url.PathEscape(shortFormID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("spine: build tracker request: %w", err)
	}
	req.Header.Set("Accept", "application/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("spine: fetch prescription %s: %w", shortFormID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("spine: prescription %s not found", shortFormID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("spine: fetch prescription %s: unexpected status %d", shortFormID, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("spine: read tracker response: %w", err)
	}
	root, err := hl7v3.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("spine: parse tracked prescription %s: %w", shortFormID, err)
	}
	c.log.Debug().Str("prescription_id", shortFormID).Msg("fetched tracked prescription")
	return root, nil
}

// DirectoryClient is the HTTP Directory implementation over the ODS FHIR API.
type DirectoryClient struct {
	httpClient *http.Client
	baseURL    string
	log        zerolog.Logger
}

// NewDirectoryClient builds a directory client for the given base URL. A nil
// HTTP client gets a default with DefaultTimeout.
func NewDirectoryClient(baseURL string, httpClient *http.Client, log zerolog.Logger) *DirectoryClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &DirectoryClient{httpClient: httpClient, baseURL: baseURL, log: log}
}

// Organization fetches the FHIR Organization record for an ODS code.
func (c *DirectoryClient) Organization(ctx context.Context, odsCode string) (*fhir.OrganizationResource, error) {
	u := fmt.Sprintf("%s/Organization/%s", c.baseURL, url.PathEscape(odsCode))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("spine: build directory request: %w", err)
	}
	req.Header.Set("Accept", "application/fhir+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("spine: fetch organization %s: %w", odsCode, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("spine: organization %s not found", odsCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("spine: fetch organization %s: unexpected status %d", odsCode, resp.StatusCode)
	}

	var org fhir.OrganizationResource
	if err := json.NewDecoder(resp.Body).Decode(&org); err != nil {
		return nil, fmt.Errorf("spine: decode organization %s: %w", odsCode, err)
	}
	if org.ResourceType != "Organization" {
		return nil, fmt.Errorf("spine: directory returned %q for %s, want Organization", org.ResourceType, odsCode)
	}
	c.log.Debug().Str("ods_code", odsCode).Msg("fetched organization from directory")
	return &org, nil
}
