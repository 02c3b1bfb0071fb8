package hl7v3

import "time"

// OIDs and fixed vocabularies used on the prescription wire protocol.
const (
	// Identifier roots
	OIDNHSNumber             = "2.16.840.1.113883.2.1.4.1"
	OIDPrescriptionShortForm = "2.16.840.1.113883.2.1.3.2.4.18.8"
	OIDSDSUserID             = "1.2.826.0.1285.0.2.0.65"
	OIDSDSRoleProfileID      = "1.2.826.0.1285.0.2.0.67"
	OIDSDSJobRoleCode        = "1.2.826.0.1285.0.2.1.104"
	OIDSDSOrganizationID     = "1.2.826.0.1285.0.1.10"
	OIDAccreditedSystemID    = "1.2.826.0.1285.0.2.0.107"
	OIDInteractionID         = "2.16.840.1.113883.2.1.3.2.4.12"

	// Code systems
	OIDSNOMED                = "2.16.840.1.113883.2.1.3.2.4.15"
	OIDPrescriptionType      = "2.16.840.1.113883.2.1.3.2.4.17.25"
	OIDPrescriptionTreatment = "2.16.840.1.113883.2.1.3.2.4.16.36"
	OIDDispensingSitePref    = "2.16.840.1.113883.2.1.3.2.4.17.21"
	OIDOrganizationType      = "2.16.840.1.113883.2.1.3.2.4.17.94"
	OIDCancellationReason    = "2.16.840.1.113883.2.1.3.2.4.16.34"
	OIDReturnReason          = "2.16.840.1.113883.2.1.3.2.4.16.35"
	OIDWithdrawReason        = "2.16.840.1.113883.2.1.3.2.4.17.258"
	OIDAcknowledgementDetail = "2.16.840.1.113883.2.1.3.2.4.17.32"
)

// Interaction identifiers selecting the message handler on the exchange side.
const (
	InteractionParentPrescription   = "PORX_IN020101SM31"
	InteractionCancelRequest        = "PORX_IN030101UK32"
	InteractionDispenseNotification = "PORX_IN080101SM31"
	InteractionDispenseClaim        = "PORX_IN090101UK31"
	InteractionDispenseReturn       = "PORX_IN100101SM31"
	InteractionDispenseWithdraw     = "PORX_IN510101SM31"
)

// Structural attribute vocabularies (HL7 V3 RIM).
const (
	ClassAgent        = "AGNT"
	ClassDevice       = "DEV"
	ClassOrganization = "ORG"
	ClassPatient      = "PAT"
	ClassPerson       = "PSN"
	ClassRole         = "ROL"
	ClassSubstAdmin   = "SBADM"
	ClassSupply       = "SPLY"
	ClassInfo         = "INFO"
	ClassObservation  = "OBS"

	MoodEvent         = "EVN"
	MoodRequest       = "RQO"
	MoodProposal      = "PRP"
	MoodPermissionReq = "PERMR"

	DeterminerInstance = "INSTANCE"
)

// Acknowledgement type codes on synchronous and asynchronous responses.
const (
	AckTypeAcknowledged = "AA"
	AckTypeError        = "AE"
	AckTypeRejected     = "AR"
)

// FormatTime renders a time in the fixed numeric wire form, UTC with no
// separators (YYYYMMDDHHMMSS), regardless of the input zone.
func FormatTime(t time.Time) string {
	return t.UTC().Format("20060102150405")
}

// FormatTimeMinute renders a time at minute precision with zeroed seconds.
// The author/time on a signed prescription carries this form, so it must be
// stable against sub-minute differences between preparation and signing.
func FormatTimeMinute(t time.Time) string {
	return t.UTC().Truncate(time.Minute).Format("20060102150405")
}

// FormatDate renders a date-only value (YYYYMMDD) in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format("20060102")
}

// ParseTime accepts the wire forms YYYYMMDDHHMMSS and YYYYMMDD.
func ParseTime(v string) (time.Time, error) {
	if len(v) == 8 {
		return time.ParseInLocation("20060102", v, time.UTC)
	}
	return time.ParseInLocation("20060102150405", v, time.UTC)
}
