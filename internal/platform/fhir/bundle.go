// Package fhir holds the FHIR R4 resource model consumed and produced by the
// gateway, together with the resource-graph navigator used to resolve
// references, identifiers and extensions inside a message bundle.
package fhir

import (
	"encoding/json"
	"fmt"
	"time"
)

// Bundle represents a FHIR Bundle resource.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Type         string        `json:"type"`
	Identifier   *Identifier   `json:"identifier,omitempty"`
	Link         []BundleLink  `json:"link,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
	Timestamp    *time.Time    `json:"timestamp,omitempty"`
}

type BundleLink struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
}

// ParseBundle decodes a message bundle and enforces the structural contract
// that entry full-URLs are unique. A duplicate is a translation error, never
// silently tolerated: downstream reference resolution depends on uniqueness.
func ParseBundle(data []byte) (*Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("fhir: decode bundle: %w", err)
	}
	if b.ResourceType != "Bundle" {
		return nil, NewInvalidValue("resourceType", "expected Bundle, got %q", b.ResourceType)
	}
	seen := make(map[string]bool, len(b.Entry))
	for i, e := range b.Entry {
		if e.FullURL == "" {
			continue
		}
		if seen[e.FullURL] {
			return nil, NewInvalidValue(
				fmt.Sprintf("entry[%d].fullUrl", i),
				"duplicate fullUrl %q in bundle", e.FullURL)
		}
		seen[e.FullURL] = true
	}
	return &b, nil
}

// ResourceType peeks at the resourceType discriminator of a raw resource.
func ResourceType(raw json.RawMessage) string {
	var probe struct {
		ResourceType string `json:"resourceType"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	return probe.ResourceType
}

// NewMessageBundle assembles a message-type bundle from pre-marshalled
// resources, generating entry full-URLs from each resource's id.
func NewMessageBundle(id string, resources []interface{}) (*Bundle, error) {
	now := time.Now().UTC()
	entries := make([]BundleEntry, 0, len(resources))
	for _, r := range resources {
		raw, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("fhir: marshal bundle entry: %w", err)
		}
		var probe struct {
			ID string `json:"id"`
		}
		_ = json.Unmarshal(raw, &probe)
		entries = append(entries, BundleEntry{
			FullURL:  "urn:uuid:" + probe.ID,
			Resource: raw,
		})
	}
	return &Bundle{
		ResourceType: "Bundle",
		ID:           id,
		Type:         "message",
		Timestamp:    &now,
		Entry:        entries,
	}, nil
}
