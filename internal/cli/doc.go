// Copyright (c) 2025 pedrocodesforcoffee
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the builder command-line surface: argument
// parsing, the per-command handlers, shared terminal styling, and
// structured command errors with exit codes.
package cli
