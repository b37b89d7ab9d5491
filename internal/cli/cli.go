// Copyright (c) 2025 pedrocodesforcoffee
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and command routing for builder.
package cli

import (
	"fmt"
	"os"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "1.0.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdHelp Command = iota
	CmdVersion
	CmdLogin
	CmdLogout
	CmdRegister
	CmdWhoami
	CmdStatus
	CmdProjects
	CmdOrgs
	CmdRFIs
	CmdPerms
	CmdConfig
	CmdCache
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet     bool
	Verbose   bool
	JSON      bool
	FieldMode bool // block all network access (job-site mode)

	// Command-specific
	Subcommand string
	ProjectID  string
	ConfigKey  string
	ConfigVal  string

	// Raw args remaining after flag parsing
	Raw []string
}

const usageText = `builder - construction management from the command line

Builder keeps field crews and the office on the same page: projects,
RFIs and per-project permissions, with an offline-tolerant permission
cache for job sites without connectivity.

Usage:
  builder login                    Sign in (prompts for credentials)
  builder logout                   Sign out and clear local tokens
  builder register                 Create an account
  builder whoami                   Show the signed-in user
  builder status, s                Session and cache status
  builder projects [list|show|create|delete]   Project management
  builder orgs [list|show|members]             Organizations
  builder rfis <project> [list|show|create|answer|close]  RFIs
  builder perms <project> [--refresh]          Permissions for a project
  builder config [show|set <key> <value>]      Configuration
  builder cache [stats|clear]                  Permission cache management

Global flags:
  --json         Structured JSON output
  --field-mode   Block all network access; serve cached data only
  --quiet, -q    Suppress non-essential output
  --verbose, -v  Verbose output
  --help, -h     Show this help
  --version      Show version

Examples:
  builder login
  builder projects list
  builder perms 7f3a21 --refresh
  builder rfis 7f3a21 create --subject "Footing rebar size" \
      --question "Drawing S-201 shows #5, spec says #6. Which governs?"

Environment:
  BUILDER_API_URL      Override the API endpoint
  BUILDER_CONFIG       Override the config file path
  BUILDER_FIELD_MODE   Set to 1 to force field mode
  NO_COLOR             Disable colored output
`

// Parse parses os.Args into a command and its arguments.
func Parse() (Command, Args) {
	return parseArgs(os.Args[1:])
}

// parseArgs is the testable core of Parse.
func parseArgs(argv []string) (Command, Args) {
	args := Args{}
	var positional []string

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		switch {
		case arg == "--help" || arg == "-h":
			return CmdHelp, args
		case arg == "--version":
			return CmdVersion, args
		case arg == "--json":
			args.JSON = true
		case arg == "--field-mode":
			args.FieldMode = true
		case arg == "--quiet" || arg == "-q":
			args.Quiet = true
		case arg == "--verbose" || arg == "-v":
			args.Verbose = true
		case strings.HasPrefix(arg, "--"):
			// Command-specific options stay in Raw for the handler.
			positional = append(positional, arg)
			// Capture the option's value too, when present.
			if i+1 < len(argv) && !strings.HasPrefix(argv[i+1], "-") {
				i++
				positional = append(positional, argv[i])
			}
		default:
			positional = append(positional, arg)
		}
	}

	if len(positional) == 0 {
		return CmdHelp, args
	}

	cmd := positional[0]
	rest := positional[1:]

	switch cmd {
	case "login":
		return CmdLogin, withRest(args, rest)
	case "logout":
		return CmdLogout, withRest(args, rest)
	case "register":
		return CmdRegister, withRest(args, rest)
	case "whoami":
		return CmdWhoami, withRest(args, rest)
	case "status", "s":
		return CmdStatus, withRest(args, rest)
	case "projects", "project":
		return CmdProjects, withSubcommand(args, rest)
	case "orgs", "org", "organizations":
		return CmdOrgs, withSubcommand(args, rest)
	case "rfis", "rfi":
		// First positional after the command is the project ID.
		if len(rest) > 0 && !strings.HasPrefix(rest[0], "-") {
			args.ProjectID = rest[0]
			rest = rest[1:]
		}
		return CmdRFIs, withSubcommand(args, rest)
	case "perms", "permissions":
		if len(rest) > 0 && !strings.HasPrefix(rest[0], "-") {
			args.ProjectID = rest[0]
			rest = rest[1:]
		}
		return CmdPerms, withRest(args, rest)
	case "config":
		args = withSubcommand(args, rest)
		if args.Subcommand == "set" && len(args.Raw) >= 2 {
			args.ConfigKey = args.Raw[0]
			args.ConfigVal = args.Raw[1]
		}
		return CmdConfig, args
	case "cache":
		return CmdCache, withSubcommand(args, rest)
	case "help":
		return CmdHelp, args
	case "version":
		return CmdVersion, args
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		return CmdHelp, args
	}
}

func withRest(args Args, rest []string) Args {
	args.Raw = rest
	return args
}

func withSubcommand(args Args, rest []string) Args {
	if len(rest) > 0 && !strings.HasPrefix(rest[0], "-") {
		args.Subcommand = rest[0]
		rest = rest[1:]
	}
	args.Raw = rest
	return args
}

// option returns the value following a --name option in Raw, or "".
func (a Args) option(name string) string {
	flag := "--" + name
	for i, arg := range a.Raw {
		if arg == flag && i+1 < len(a.Raw) {
			return a.Raw[i+1]
		}
		if strings.HasPrefix(arg, flag+"=") {
			return strings.TrimPrefix(arg, flag+"=")
		}
	}
	return ""
}

// hasFlag reports whether a bare --name flag is present in Raw.
func (a Args) hasFlag(name string) bool {
	flag := "--" + name
	for _, arg := range a.Raw {
		if arg == flag {
			return true
		}
	}
	return false
}

// HandleHelp prints usage.
func HandleHelp() {
	fmt.Print(usageText)
}

// HandleVersion prints version information.
func HandleVersion() {
	fmt.Printf("builder %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
}
