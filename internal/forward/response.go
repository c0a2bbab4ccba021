package forward

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/passage-gw/passage/internal/credential"
	"github.com/passage-gw/passage/internal/registry"
)

// ContentTypeJSON is the content type for JSON bodies, both synthesized
// error bodies and forwarded request bodies.
const ContentTypeJSON = "application/json; charset=utf-8"

// Error body codes.
const (
	CodeBadRequest    = "BadRequest"
	CodeUnauthorized  = "Unauthorized"
	CodeInternalError = "InternalServerError"
)

// Response is the outward HTTP-shaped result of a forward. Every failure
// mode produces one; the caller never sees an unhandled fault.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// errorBody is the JSON schema of synthesized error responses.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorResponse synthesizes a JSON error response.
func NewErrorResponse(status int, code, message string) *Response {
	body, _ := json.Marshal(errorBody{Code: code, Message: message})
	header := http.Header{}
	header.Set("Content-Type", ContentTypeJSON)
	return &Response{
		Status: status,
		Header: header,
		Body:   body,
	}
}

// MapResolveError maps a tenant resolution failure to its outward
// response. All resolution failures are client errors answered before any
// backend call is attempted.
func MapResolveError(err error) *Response {
	return NewErrorResponse(http.StatusBadRequest, CodeBadRequest, err.Error())
}

// mapTokenError maps a credential failure to its outward response.
func mapTokenError(err error) *Response {
	if errors.Is(err, credential.ErrTokenAcquisition) {
		return NewErrorResponse(http.StatusInternalServerError, CodeInternalError,
			"failed to acquire backend credential")
	}
	return NewErrorResponse(http.StatusInternalServerError, CodeInternalError, err.Error())
}

// IsResolveError reports whether err belongs to the resolution taxonomy.
func IsResolveError(err error) bool {
	return errors.Is(err, registry.ErrConfigurationConflict) ||
		errors.Is(err, registry.ErrNoDefaultTenant) ||
		errors.Is(err, &registry.UnknownTenantError{}) ||
		errors.Is(err, &registry.UnsupportedClassError{})
}
