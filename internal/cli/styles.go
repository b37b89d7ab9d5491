// Copyright (c) 2025 pedrocodesforcoffee
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Centralized terminal styling for all CLI commands.
//
// Color handling:
//   - Colors are disabled for non-TTY output (piped, redirected)
//   - Respects the NO_COLOR environment variable (https://no-color.org/)
//   - FORCE_COLOR overrides detection
package cli

import (
	"os"
	"sync"

	"github.com/muesli/termenv"
)

var (
	outputOnce sync.Once
	output     *termenv.Output
)

// termOutput returns the shared termenv output, resolving the color
// profile once per process.
func termOutput() *termenv.Output {
	outputOnce.Do(func() {
		profile := termenv.EnvColorProfile()
		if os.Getenv("NO_COLOR") != "" {
			profile = termenv.Ascii
		} else if os.Getenv("FORCE_COLOR") != "" && profile == termenv.Ascii {
			profile = termenv.ANSI256
		}
		output = termenv.NewOutput(os.Stdout, termenv.WithProfile(profile))
	})
	return output
}

// =============================================================================
// SHARED STYLES
// =============================================================================

func title(s string) string {
	return termOutput().String(s).Bold().Foreground(termOutput().Color("39")).String()
}

func section(s string) string {
	return termOutput().String(s).Bold().String()
}

func label(s string) string {
	return termOutput().String(s).Foreground(termOutput().Color("245")).String()
}

func success(s string) string {
	return termOutput().String(s).Bold().Foreground(termOutput().Color("42")).String()
}

func errorText(s string) string {
	return termOutput().String(s).Bold().Foreground(termOutput().Color("196")).String()
}

func warning(s string) string {
	return termOutput().String(s).Foreground(termOutput().Color("214")).String()
}

func dim(s string) string {
	return termOutput().String(s).Foreground(termOutput().Color("242")).String()
}

func errorLabel() string {
	return errorText("[ERROR]")
}

func warnLabel() string {
	return warning("[WARNING]")
}

func okLabel() string {
	return success("[OK]")
}
