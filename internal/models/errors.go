package models

import (
	"errors"
	"fmt"
)

// ExternalServiceError is the closed error taxonomy for collaborator
// failures. It carries an HTTP-like status and an optional endpoint-group tag
// used to distinguish "catalog unavailable" from a generic backend failure.
// It is mapped into user-facing copy once, at the pipeline boundary.
type ExternalServiceError struct {
	Status        int    // HTTP-like status; 0 for network/timeout failures
	EndpointGroup string // e.g. "catalog", "orders", "recommendations", "payments"
	Op            string
	Err           error
}

func (e *ExternalServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: external service error (status=%d group=%s): %v", e.Op, e.Status, e.EndpointGroup, e.Err)
	}
	return fmt.Sprintf("%s: external service error (status=%d group=%s)", e.Op, e.Status, e.EndpointGroup)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// IsCatalog reports whether the failure originated in the catalog endpoint
// group.
func (e *ExternalServiceError) IsCatalog() bool { return e.EndpointGroup == "catalog" }

// AsExternalServiceError unwraps err into an ExternalServiceError if one is in
// the chain.
func AsExternalServiceError(err error) (*ExternalServiceError, bool) {
	var ese *ExternalServiceError
	if errors.As(err, &ese) {
		return ese, true
	}
	return nil, false
}

// LookupFailureCode is the closed failure taxonomy of the guest order-lookup
// collaborator.
type LookupFailureCode string

const (
	LookupNotFoundOrMismatch LookupFailureCode = "not_found_or_mismatch"
	LookupInvalidPayload     LookupFailureCode = "invalid_payload"
	LookupUnauthorized       LookupFailureCode = "unauthorized"
	LookupThrottled          LookupFailureCode = "throttled"
)

// LookupError is a typed guest order-lookup failure.
type LookupError struct {
	Code LookupFailureCode
	Err  error
}

func (e *LookupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("order lookup failed (%s): %v", e.Code, e.Err)
	}
	return fmt.Sprintf("order lookup failed (%s)", e.Code)
}

func (e *LookupError) Unwrap() error { return e.Err }

// AsLookupError unwraps err into a LookupError if one is in the chain.
func AsLookupError(err error) (*LookupError, bool) {
	var le *LookupError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}
