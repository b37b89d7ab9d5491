// Copyright (c) 2025 pedrocodesforcoffee
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api implements the HTTP client for the Builder construction
// management API.
//
// The Client handles the transport concerns every service shares: bearer
// token injection via a TokenSource, a single retried request after a 401
// once the session manager has refreshed the token pair, client-side rate
// limiting, retries with exponential backoff for transient failures, and
// field-mode gating of all network access.
//
// Resource services (AuthClient, ProjectService, PermissionService, ...)
// sit on top of Client and translate between Go types and the wire format.
package api
