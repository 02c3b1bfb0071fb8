package fhir

import (
	"encoding/json"
	"fmt"
)

// The navigator centralizes every lookup into a message bundle's resource
// graph with a strict "exactly one, or fail loudly" cardinality policy.
// Silent nil propagation through deep optional reference chains is the
// single biggest source of subtle mapping bugs in this domain, so every
// resolver here reports TooFewValues or TooManyValues instead of returning
// nothing.

// ResourcesOfType returns the raw resources of the given type, in bundle
// order. It never fails; callers asserting cardinality use ResolveOne.
func ResourcesOfType(b *Bundle, resourceType string) []json.RawMessage {
	var out []json.RawMessage
	for _, e := range b.Entry {
		if ResourceType(e.Resource) == resourceType {
			out = append(out, e.Resource)
		}
	}
	return out
}

// ResolveOne returns the single resource of the given type, enforcing the
// exactly-one contract.
func ResolveOne(b *Bundle, resourceType, path string) (json.RawMessage, error) {
	matches := ResourcesOfType(b, resourceType)
	switch len(matches) {
	case 0:
		return nil, NewTooFewValues(path, "bundle contains no %s resource", resourceType)
	case 1:
		return matches[0], nil
	default:
		return nil, NewTooManyValues(path, "bundle contains %d %s resources, expected one", len(matches), resourceType)
	}
}

// ResolveReference resolves a URN-form reference to the single bundle entry
// with a matching fullUrl. An identifier-form reference is the wrong shape
// for this resolver and is rejected rather than guessed at.
func ResolveReference(b *Bundle, ref *Reference, path string) (json.RawMessage, error) {
	if ref == nil || ref.Reference == "" {
		if ref != nil && ref.Identifier != nil {
			return nil, NewInvalidValue(path,
				"expected a bundle-entry reference but got an identifier reference (%s|%s)",
				ref.Identifier.System, ref.Identifier.Value)
		}
		return nil, NewTooFewValues(path, "reference is missing")
	}
	var matches []json.RawMessage
	for _, e := range b.Entry {
		if e.FullURL == ref.Reference {
			matches = append(matches, e.Resource)
		}
	}
	switch len(matches) {
	case 0:
		return nil, NewTooFewValues(path, "no bundle entry matches reference %q", ref.Reference)
	case 1:
		return matches[0], nil
	default:
		return nil, NewTooManyValues(path, "%d bundle entries match reference %q", len(matches), ref.Reference)
	}
}

// ResolveReferenceInto resolves a reference and decodes the target into dst.
func ResolveReferenceInto(b *Bundle, ref *Reference, path string, dst interface{}) error {
	raw, err := ResolveReference(b, ref, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return NewInvalidValue(path, "referenced resource is malformed: %v", err)
	}
	return nil
}

// IdentifierReferenceValue returns the identifier value from an
// identifier-form reference, rejecting the URN form.
func IdentifierReferenceValue(ref *Reference, system, path string) (string, error) {
	if ref == nil || ref.Identifier == nil {
		if ref != nil && ref.Reference != "" {
			return "", NewInvalidValue(path,
				"expected an identifier reference but got a bundle-entry reference %q", ref.Reference)
		}
		return "", NewTooFewValues(path, "identifier reference is missing")
	}
	if ref.Identifier.System != system {
		return "", NewInvalidValue(path, "identifier system %q, expected %q", ref.Identifier.System, system)
	}
	return ref.Identifier.Value, nil
}

// IdentifierValue returns the single identifier value for a system,
// enforcing the exactly-one contract over the identifier list.
func IdentifierValue(identifiers []Identifier, system, path string) (string, error) {
	var matches []string
	for _, id := range identifiers {
		if id.System == system {
			matches = append(matches, id.Value)
		}
	}
	switch len(matches) {
	case 0:
		return "", NewTooFewValues(path, "no identifier with system %q", system)
	case 1:
		return matches[0], nil
	default:
		return "", NewTooManyValues(path, "%d identifiers with system %q, expected one", len(matches), system)
	}
}

// ExtensionByURL returns the first extension with the given URL, or nil.
func ExtensionByURL(extensions []Extension, url string) *Extension {
	for i := range extensions {
		if extensions[i].URL == url {
			return &extensions[i]
		}
	}
	return nil
}

// ExtensionByURLStrict returns the single extension with the given URL and
// fails if the URL is repeated; absence is reported as TooFewValues.
func ExtensionByURLStrict(extensions []Extension, url, path string) (*Extension, error) {
	var matches []*Extension
	for i := range extensions {
		if extensions[i].URL == url {
			matches = append(matches, &extensions[i])
		}
	}
	switch len(matches) {
	case 0:
		return nil, NewTooFewValues(path, "no extension with url %q", url)
	case 1:
		return matches[0], nil
	default:
		return nil, NewTooManyValues(path, "%d extensions with url %q, expected one", len(matches), url)
	}
}

// CodingForSystem returns the single coding for a system from a concept.
func CodingForSystem(cc *CodeableConcept, system, path string) (*Coding, error) {
	if cc == nil {
		return nil, NewTooFewValues(path, "codeable concept is missing")
	}
	var matches []*Coding
	for i := range cc.Coding {
		if cc.Coding[i].System == system {
			matches = append(matches, &cc.Coding[i])
		}
	}
	switch len(matches) {
	case 0:
		return nil, NewTooFewValues(path, "no coding with system %q", system)
	case 1:
		return matches[0], nil
	default:
		return nil, NewTooManyValues(path, "%d codings with system %q, expected one", len(matches), system)
	}
}

// MessageHeaderOf returns the bundle's single MessageHeader, which selects
// the translation branch.
func MessageHeaderOf(b *Bundle) (*MessageHeader, error) {
	raw, err := ResolveOne(b, "MessageHeader", "Bundle.entry")
	if err != nil {
		return nil, err
	}
	var mh MessageHeader
	if err := json.Unmarshal(raw, &mh); err != nil {
		return nil, NewInvalidValue("MessageHeader", "malformed resource: %v", err)
	}
	return &mh, nil
}

// EntryPath renders a bundle path for error reporting.
func EntryPath(resourceType, field string) string {
	return fmt.Sprintf("Bundle.entry(%s).%s", resourceType, field)
}
