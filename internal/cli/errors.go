// Copyright (c) 2025 pedrocodesforcoffee
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Unified error handling for all CLI commands.
//
// Every handler returns errors instead of printing and returning nil;
// main decides how to display them and which exit code to use.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/pedrocodesforcoffee/builder-go/internal/api"
	"github.com/pedrocodesforcoffee/builder-go/internal/offline"
	"github.com/pedrocodesforcoffee/builder-go/internal/session"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates authentication or authorization failure
	ExitAuthError = 4
	// ExitNetworkError indicates network or connectivity error
	ExitNetworkError = 5
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 6
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // Command that failed (e.g., "perms", "rfis")
	Action  string // Action being performed (e.g., "show", "create")
	Reason  string // Human-readable reason
	Err     error  // Underlying error (if any)
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// UsageError indicates invalid arguments; the handler's usage text is
// printed alongside.
type UsageError struct {
	Command string
	Usage   string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("usage: %s", e.Usage)
}

// NewCommandError creates a command error.
func NewCommandError(command, action, reason string, err error) error {
	return &CommandError{Command: command, Action: action, Reason: reason, Err: err}
}

// =============================================================================
// ERROR DISPLAY
// =============================================================================

// DisplayError prints an error consistently, as JSON when requested.
func DisplayError(err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		out := map[string]any{"success": false, "error": err.Error()}
		json.NewEncoder(os.Stderr).Encode(out)
		return
	}
	fmt.Fprintf(os.Stderr, "%s %s\n", errorLabel(), err.Error())
}

// ExitCode maps an error to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, api.ErrInvalidCredentials),
		errors.Is(err, api.ErrUnauthorized),
		errors.Is(err, api.ErrForbidden),
		errors.Is(err, session.ErrNotAuthenticated),
		errors.Is(err, session.ErrRefreshFailed),
		errors.Is(err, session.ErrSessionExpired):
		return ExitAuthError
	case errors.Is(err, api.ErrNotFound):
		return ExitNotFoundError
	case errors.Is(err, offline.ErrFieldMode),
		errors.Is(err, api.ErrRateLimited):
		return ExitNetworkError
	default:
		var usageErr *UsageError
		if errors.As(err, &usageErr) {
			return ExitUsageError
		}
		return ExitGeneralError
	}
}
