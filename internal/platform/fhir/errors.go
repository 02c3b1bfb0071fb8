package fhir

import "fmt"

// Translation error codes. Translation errors abort the translation
// immediately; no partial wire message is ever produced from a bad input.
const (
	CodeInvalidValue           = "INVALID_VALUE"
	CodeTooFewValues           = "TOO_FEW_VALUES_SUBMITTED"
	CodeTooManyValues          = "TOO_MANY_VALUES_SUBMITTED"
	CodeUnsupportedMessageType = "UNSUPPORTED_MESSAGE_TYPE"
)

// Signature verification failure codes, attached as issue details when a
// verify-signature outcome reports the matching accumulated reason. A
// structurally invalid signature is indistinguishable from a failed
// cryptographic check on the wire, so both report SIGNATURE_INVALID.
const (
	CodeSignatureDigestMismatch   = "SIGNATURE_DIGEST_MISMATCH"
	CodeSignatureInvalid          = "SIGNATURE_INVALID"
	CodeCertificateExpired        = "CERTIFICATE_EXPIRED_AT_SIGNING"
	CodeCertificateUntrusted      = "CERTIFICATE_UNTRUSTED"
	CodeCertificateRevoked        = "CERTIFICATE_REVOKED"
	CodeRevocationListUnavailable = "REVOCATION_LIST_UNAVAILABLE"
)

// TranslationError is a typed, machine-readable translation failure. Path,
// when set, is a FHIRPath-style pointer into the offending input field.
type TranslationError struct {
	Code    string
	Message string
	Path    string
}

func (e *TranslationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (at %s)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidValue reports a field outside its expected format or vocabulary.
func NewInvalidValue(path, format string, args ...interface{}) *TranslationError {
	return &TranslationError{Code: CodeInvalidValue, Message: fmt.Sprintf(format, args...), Path: path}
}

// NewTooFewValues reports a lookup that matched nothing where exactly one
// match was required.
func NewTooFewValues(path, format string, args ...interface{}) *TranslationError {
	return &TranslationError{Code: CodeTooFewValues, Message: fmt.Sprintf(format, args...), Path: path}
}

// NewTooManyValues reports a lookup that matched more than one candidate
// where exactly one match was required.
func NewTooManyValues(path, format string, args ...interface{}) *TranslationError {
	return &TranslationError{Code: CodeTooManyValues, Message: fmt.Sprintf(format, args...), Path: path}
}

// NewUnsupportedMessageType reports an event code or task classification that
// no translation pipeline handles.
func NewUnsupportedMessageType(value string) *TranslationError {
	return &TranslationError{
		Code:    CodeUnsupportedMessageType,
		Message: fmt.Sprintf("message type %q is not supported", value),
		Path:    "MessageHeader.eventCoding.code",
	}
}

// Outcome converts a translation error into an OperationOutcome carrying the
// machine-readable code as issue details and the path as an expression.
func (e *TranslationError) Outcome() *OperationOutcome {
	issueType := IssueTypeInvalid
	switch e.Code {
	case CodeTooFewValues:
		issueType = IssueTypeRequired
	case CodeTooManyValues:
		issueType = IssueTypeStructure
	case CodeUnsupportedMessageType:
		issueType = IssueTypeNotSupported
	}
	b := NewOutcomeBuilder()
	if e.Path != "" {
		b.AddIssueWithLocation(IssueSeverityError, issueType, e.Error(), e.Path)
	} else {
		b.AddIssue(IssueSeverityError, issueType, e.Error())
	}
	return b.Build()
}
