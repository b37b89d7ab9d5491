// Copyright (c) 2025 pedrocodesforcoffee
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"errors"
	"fmt"
	"net/http"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrInvalidCredentials indicates a login attempt with a wrong email or
	// password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthorized indicates the bearer token was rejected (HTTP 401).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the caller lacks permission for the resource.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = errors.New("rate limited")

	// ErrRefreshRejected indicates the refresh token was not accepted.
	ErrRefreshRejected = errors.New("refresh token rejected")
)

// APIError represents a structured error response from the Builder API.
type APIError struct {
	Code    string
	Message string
	Status  int
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("builder API error [%s] (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("builder API error (HTTP %d): %s", e.Status, e.Message)
}

// errorBody is the wire shape of API error responses.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// mapStatusError maps an HTTP error status to the package sentinel errors,
// preserving the server's message when one was parseable.
func mapStatusError(status int, apiErr *APIError) error {
	var sentinel error
	switch status {
	case http.StatusUnauthorized:
		sentinel = ErrUnauthorized
	case http.StatusForbidden:
		sentinel = ErrForbidden
	case http.StatusNotFound:
		sentinel = ErrNotFound
	case http.StatusTooManyRequests:
		sentinel = ErrRateLimited
	default:
		return apiErr
	}
	if apiErr.Message != "" {
		return fmt.Errorf("%w: %s", sentinel, apiErr.Message)
	}
	return sentinel
}

// IsRetryable reports whether an error should trigger a transport retry.
// Rate limiting and 5xx responses are retryable; auth failures and context
// cancellation are not.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500 && apiErr.Status < 600
	}
	return false
}
