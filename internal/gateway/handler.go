package gateway

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/epsgw/epsgw/internal/platform/fhir"
	"github.com/epsgw/epsgw/internal/platform/signing"
)

// Handler exposes the gateway operations over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the gateway routes. Middleware passed here applies
// to the operation routes only, leaving status endpoints unguarded.
func (h *Handler) RegisterRoutes(e *echo.Echo, mw ...echo.MiddlewareFunc) {
	g := e.Group("", mw...)
	g.POST("/$convert", h.Convert)
	g.POST("/$prepare", h.Prepare)
	g.POST("/$verify-signature", h.VerifySignature)
}

// Convert translates a FHIR message to the HL7 V3 wire form, or an exchange
// response body back to FHIR, depending on the submitted content.
func (h *Handler) Convert(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return err
	}
	result, err := h.svc.Convert(c.Request().Context(), body)
	if err != nil {
		return translationError(c, err)
	}
	if result.XML != nil {
		// Surfaced in the request log.
		c.Set("interaction_id", result.InteractionID)
		return c.Blob(http.StatusOK, "application/xml", result.XML)
	}
	return c.JSON(result.StatusCode, result.Resource)
}

// Prepare returns the canonical signing digest for an order bundle.
func (h *Handler) Prepare(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return err
	}
	params, err := h.svc.PrepareDigest(body)
	if err != nil {
		return translationError(c, err)
	}
	return c.JSON(http.StatusOK, params)
}

// VerifySignature verifies a signed prescription and reports every failure
// as an OperationOutcome issue; a valid signature yields a success outcome.
func (h *Handler) VerifySignature(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return err
	}
	failures, err := h.svc.VerifySignature(c.Request().Context(), body)
	if err != nil {
		return translationError(c, err)
	}
	if len(failures) == 0 {
		return c.JSON(http.StatusOK, fhir.SuccessOutcome())
	}
	builder := fhir.NewOutcomeBuilder()
	for _, f := range failures {
		if code, ok := failureCodes[f]; ok {
			builder.AddIssueWithDetails(fhir.IssueSeverityError, fhir.IssueTypeInvalid, f,
				&fhir.CodeableConcept{Coding: []fhir.Coding{{Code: code, Display: f}}})
			continue
		}
		builder.AddIssue(fhir.IssueSeverityError, fhir.IssueTypeInvalid, f)
	}
	return c.JSON(http.StatusOK, builder.Build())
}

// failureCodes maps each verifier failure reason to its machine-readable
// issue code. Format and crypto failures share one wire string, so both
// surface as SIGNATURE_INVALID.
var failureCodes = map[string]string{
	signing.FailureCryptoInvalid:     fhir.CodeSignatureInvalid,
	signing.FailureDigestMismatch:    fhir.CodeSignatureDigestMismatch,
	signing.FailureCertificateExpiry: fhir.CodeCertificateExpired,
	signing.FailureCertUntrusted:     fhir.CodeCertificateUntrusted,
	signing.FailureCertRevoked:       fhir.CodeCertificateRevoked,
}

func readBody(c echo.Context) ([]byte, error) {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "cannot read request body")
	}
	if len(body) == 0 {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "empty request body")
	}
	return body, nil
}

// translationError renders a translation failure as an OperationOutcome;
// anything else propagates as an internal error.
func translationError(c echo.Context, err error) error {
	var terr *fhir.TranslationError
	if errors.As(err, &terr) {
		return c.JSON(http.StatusBadRequest, terr.Outcome())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
