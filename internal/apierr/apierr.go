// Package apierr holds the closed error vocabulary shared by every endpoint
// and the mapping from any error to the JSON envelope
// {code, description, reasonPhrase}.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Reason phrases of the closed taxonomy. Resource specific not-found and
// already-exist phrases are built by NotFound and AlreadyExist.
const (
	ReasonNotAuthenticated        = "UserNotAuthenticatedError"
	ReasonEmptyRequestBody        = "EmptyRequestBodyError"
	ReasonFieldValidation         = "FieldValidationError"
	ReasonInvalidUUID             = "InvalidUUIDError"
	ReasonMerchantLinked          = "MerchantLinkedError"
	ReasonVouchersLinked          = "VouchersLinkedError"
	ReasonPaymentProviderNotFound = "PaymentProviderNotFoundError"
	ReasonNotEnabled              = "NotEnabledError"
	ReasonStatusCodeNotValid      = "StatusCodeNotValidError"
	ReasonInternal                = "InternalServerError"
	ReasonDownstream              = "DownstreamServiceError"
	ReasonMethodNotAllowed        = "MethodNotAllowedError"
	ReasonRouteNotFound           = "RouteNotFoundError"
	ReasonTooManyRequests         = "TooManyRequestsError"
	ReasonForbidden               = "ForbiddenError"
	ReasonPayloadTooLarge         = "PayloadTooLargeError"
)

const defaultNotAuthenticated = "Unable to authenticate user."

// Envelope is the wire shape of every error response and of constructed
// success responses (reasonPhrase omitted).
type Envelope struct {
	Code         int    `json:"code"`
	Description  string `json:"description"`
	ReasonPhrase string `json:"reasonPhrase,omitempty"`
}

// Error is returned by every stage of an endpoint pipeline.
type Error struct {
	Code        int
	Reason      string
	Description string
	cause       error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s (%d): %s: %v", e.Reason, e.Code, e.Description, e.cause)
	}
	return fmt.Sprintf("%s (%d): %s", e.Reason, e.Code, e.Description)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches on reason phrase so callers can test against the exported
// templates: errors.Is(err, apierr.NotAuthenticated("")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Reason == e.Reason
}

// Envelope renders the error for the wire.
func (e *Error) Envelope() Envelope {
	return Envelope{Code: e.Code, Description: e.Description, ReasonPhrase: e.Reason}
}

// Wrap attaches an underlying cause without changing the envelope.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.cause = cause
	return &cp
}

// New builds an arbitrary taxonomy entry.
func New(code int, reason, description string) *Error {
	return &Error{Code: code, Reason: reason, Description: description}
}

// Success renders the constructed success envelope {code:200, description}.
func Success(description string) Envelope {
	return Envelope{Code: http.StatusOK, Description: description}
}

func NotAuthenticated(description string) *Error {
	if description == "" {
		description = defaultNotAuthenticated
	}
	return New(http.StatusUnauthorized, ReasonNotAuthenticated, description)
}

func EmptyRequestBody(resource string) *Error {
	desc := "The request body is empty. Kindly pass the request data in application/json format."
	if resource != "" {
		desc = fmt.Sprintf("You've requested to create or update a %s but the request body seems to be empty. Kindly pass the %s using request body in application/json format.", resource, resource)
	}
	return New(http.StatusBadRequest, ReasonEmptyRequestBody, desc)
}

// MissingFields lists required fields that were absent.
func MissingFields(fields ...string) *Error {
	return New(http.StatusBadRequest, ReasonFieldValidation,
		fmt.Sprintf("Missing required fields: %s", strings.Join(fields, ", ")))
}

func FieldValidation(description string) *Error {
	return New(http.StatusBadRequest, ReasonFieldValidation, description)
}

func InvalidUUID(field string) *Error {
	return New(http.StatusBadRequest, ReasonInvalidUUID,
		fmt.Sprintf("The %s specified does not match the UUID v4 format.", field))
}

// NotFound builds the per-resource 404, e.g. NotFound("BusinessUnit", "business-unit")
// -> BusinessUnitNotFoundError "The business-unit id specified doesn't exist.".
func NotFound(kind, label string) *Error {
	return New(http.StatusNotFound, kind+"NotFoundError",
		fmt.Sprintf("The %s id specified doesn't exist.", label))
}

// AlreadyExist builds the per-resource 403 duplicate guard error.
func AlreadyExist(kind, description string) *Error {
	return New(http.StatusForbidden, kind+"AlreadyExistError", description)
}

func MerchantLinked(description string) *Error {
	return New(http.StatusForbidden, ReasonMerchantLinked, description)
}

func VouchersLinked(description string) *Error {
	return New(http.StatusForbidden, ReasonVouchersLinked, description)
}

func PaymentProviderNotFound(description string) *Error {
	return New(http.StatusNotFound, ReasonPaymentProviderNotFound, description)
}

func NotEnabled(description string) *Error {
	return New(http.StatusUnauthorized, ReasonNotEnabled, description)
}

func StatusCodeNotValid(description string) *Error {
	return New(http.StatusForbidden, ReasonStatusCodeNotValid, description)
}

func PayloadTooLarge(limit int64) *Error {
	return New(http.StatusRequestEntityTooLarge, ReasonPayloadTooLarge,
		fmt.Sprintf("The request body exceeds the limit of %d bytes.", limit))
}

func Internal() *Error {
	return New(http.StatusInternalServerError, ReasonInternal, "An unexpected error occurred while processing the request.")
}

// StatusCoder is implemented by collaborator transport errors that carry the
// downstream HTTP status.
type StatusCoder interface {
	StatusCode() int
}

// From maps any error onto the taxonomy. Taxonomy errors pass through,
// collaborator failures keep their status, everything else becomes a 500.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		code := sc.StatusCode()
		if code < 400 || code > 599 {
			code = http.StatusBadGateway
		}
		return New(code, ReasonDownstream, "A collaborator service rejected the request.").Wrap(err)
	}
	return Internal().Wrap(err)
}
