// Package oauthx carries the wire-level OAuth2 error model shared by the
// server handlers and any Go clients of the API.
package oauthx

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// OAuth2 error codes per RFC 6749.
const (
	ErrorCodeInvalidRequest          = "invalid_request"
	ErrorCodeInvalidClient           = "invalid_client"
	ErrorCodeInvalidGrant            = "invalid_grant"
	ErrorCodeUnsupportedGrantType    = "unsupported_grant_type"
	ErrorCodeInvalidScope            = "invalid_scope"
	ErrorCodeServerError             = "server_error"
	ErrorCodeInvalidToken            = "invalid_token"
	ErrorCodeInsufficientScope       = "insufficient_scope"
	ErrorCodeAccessDenied            = "access_denied"
	ErrorCodeUnsupportedResponseType = "unsupported_response_type"
)

const rfc6749 = "https://datatracker.ietf.org/doc/html/rfc6749"

// Error is a standard OAuth2 error response per RFC 6749 section 5.2. It
// implements the error interface so services can return it directly and
// handlers can write it to the wire unchanged.
type Error struct {
	// StatusCode is the HTTP status this error is served with.
	StatusCode int `json:"-"`

	// Code is the OAuth2 error code, e.g. "invalid_grant".
	Code string `json:"error"`

	// Description is a human-readable explanation.
	Description string `json:"error_description"`

	// URI optionally points at documentation for the error.
	URI string `json:"error_uri,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WithDescription returns a copy of e carrying a specific description.
// Predefined errors are shared values and must never be mutated in place.
func (e *Error) WithDescription(desc string) *Error {
	clone := *e
	clone.Description = desc
	return &clone
}

// Write serialises the error as an OAuth2 JSON error response with no-store
// cache headers.
func (e *Error) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(e)
}

// Predefined errors. Use WithDescription for request-specific detail.
var (
	// ErrInvalidRequest: missing, repeated or malformed parameters.
	ErrInvalidRequest = &Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
		URI:         rfc6749 + "#section-4.1.2.1",
	}

	// ErrInvalidClient: the client is unknown or inactive.
	ErrInvalidClient = &Error{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidClient,
		Description: "invalid client",
		URI:         rfc6749 + "#section-5.2",
	}

	// ErrInvalidGrant: the code or refresh token is invalid, expired,
	// revoked, bound to a different client or redirect URI, or failed PKCE
	// verification. All of those cases intentionally read the same.
	ErrInvalidGrant = &Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidGrant,
		Description: "the provided grant is invalid, expired or revoked",
		URI:         rfc6749 + "#section-5.2",
	}

	// ErrUnsupportedGrantType: grant_type outside the supported set.
	ErrUnsupportedGrantType = &Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeUnsupportedGrantType,
		Description: "grant type not supported",
		URI:         rfc6749 + "#section-5.2",
	}

	// ErrInvalidScope: requested scopes exceed what the client is allowed.
	ErrInvalidScope = &Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidScope,
		Description: "requested scope is invalid or exceeds the client grant",
		URI:         rfc6749 + "#section-3.3",
	}

	// ErrUnsupportedResponseType: only response_type=code is issued here.
	ErrUnsupportedResponseType = &Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeUnsupportedResponseType,
		Description: "response type not supported",
		URI:         rfc6749 + "#section-4.1.2.1",
	}

	// ErrServerError: unexpected internal failure.
	ErrServerError = &Error{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}

	// ErrInvalidContentType: token endpoints only accept form encoding.
	ErrInvalidContentType = &Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "content-type must be application/x-www-form-urlencoded",
	}

	// ErrInvalidFormBody: the form body failed to parse.
	ErrInvalidFormBody = &Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "invalid form body",
	}

	// ErrInvalidToken: bearer token missing, invalid, expired or revoked.
	ErrInvalidToken = &Error{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidToken,
		Description: "the access token is missing, invalid, expired or revoked",
	}

	// ErrInsufficientScope: the bearer token lacks a required scope or role.
	ErrInsufficientScope = &Error{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodeInsufficientScope,
		Description: "the access token does not grant the required access",
	}

	// ErrAccessDenied: the resource owner or server refused the request.
	ErrAccessDenied = &Error{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodeAccessDenied,
		Description: "access denied",
	}
)

// New builds an Error with an explicit status, code and description.
func New(statusCode int, code, description string) *Error {
	return &Error{StatusCode: statusCode, Code: code, Description: description}
}
