// Package errors provides standardized error handling for the pass
// generation pipeline.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Request errors (caller-facing).
	ErrCodeRequestInvalid ErrorCode = "REQUEST_INVALID"

	// Deployment misconfiguration.
	ErrCodeTemplateMissing       ErrorCode = "TEMPLATE_MISSING"
	ErrCodeCredentialUnavailable ErrorCode = "CREDENTIAL_UNAVAILABLE"

	// Signing errors. Each maps to a different operator remediation step,
	// so they are kept distinct rather than folded into one code.
	ErrCodeSigningMalformedPEM   ErrorCode = "SIGNING_MALFORMED_PEM"
	ErrCodeSigningKeyMismatch    ErrorCode = "SIGNING_KEY_MISMATCH"
	ErrCodeSigningUnsupportedKey ErrorCode = "SIGNING_UNSUPPORTED_KEY"
	ErrCodeSigningFailed         ErrorCode = "SIGNING_FAILED"

	// Staging / filesystem errors.
	ErrCodeStagingIOFailure ErrorCode = "STAGING_IO_FAILURE"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewRequestInvalidError creates a non-retryable request validation error.
func NewRequestInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRequestInvalid,
		Message:   "Pass request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTemplateMissingError creates a non-retryable misconfiguration error for
// an unreadable template or required static asset.
func NewTemplateMissingError(name string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTemplateMissing,
		Message:   "Pass template or required asset unavailable",
		Details:   fmt.Sprintf("resource: %s, error: %v", name, err),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCredentialUnavailableError creates a non-retryable credential
// resolution error. The missing materials are named so operators know what
// to provision.
func NewCredentialUnavailableError(source string, missing []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCredentialUnavailable,
		Message:   "Signing credentials could not be resolved",
		Details:   fmt.Sprintf("source: %s, missing: %s", source, strings.Join(missing, ", ")),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewMalformedPEMError creates a non-retryable error for credential material
// that could not be decoded.
func NewMalformedPEMError(material string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSigningMalformedPEM,
		Message:   "Credential PEM could not be parsed",
		Details:   fmt.Sprintf("material: %s, error: %v", material, err),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewKeyMismatchError creates a non-retryable error for a private key that
// does not belong to the signing certificate.
func NewKeyMismatchError() *StandardError {
	return &StandardError{
		Code:      ErrCodeSigningKeyMismatch,
		Message:   "Signing certificate and private key do not match",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnsupportedKeyError creates a non-retryable error for a key algorithm
// the signer cannot use.
func NewUnsupportedKeyError(algorithm string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSigningUnsupportedKey,
		Message:   "Unsupported private key algorithm",
		Details:   fmt.Sprintf("algorithm: %s", algorithm),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSigningFailedError creates a non-retryable error for a rejected
// cryptographic operation.
func NewSigningFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSigningFailed,
		Message:   "Manifest signing failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStagingIOError creates a retryable filesystem error.
func NewStagingIOError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStagingIOFailure,
		Message:   "Staging area I/O failure",
		Details:   fmt.Sprintf("op: %s, error: %v", op, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Boundary Mapping
// ==========================

// AsStandard extracts a StandardError from an error chain, or wraps an
// unknown error as a generic signing-pipeline failure.
func AsStandard(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeStagingIOFailure,
		Message:   "Pass generation failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// HTTPStatus maps an error code to the status the boundary layer should
// return. Only request validation is the caller's fault; everything else is
// a server-side condition.
func HTTPStatus(code ErrorCode) int {
	if code == ErrCodeRequestInvalid {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "REQUEST"):
		return "VALIDATION"
	case strings.Contains(codeStr, "TEMPLATE"):
		return "TEMPLATE"
	case strings.Contains(codeStr, "CREDENTIAL") || strings.Contains(codeStr, "SIGNING"):
		return "SIGNING"
	case strings.Contains(codeStr, "STAGING"):
		return "STAGING"
	default:
		return "OTHER"
	}
}
