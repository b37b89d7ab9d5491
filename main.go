// builder - construction management from the command line.
//
// Copyright (c) 2025 pedrocodesforcoffee
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pedrocodesforcoffee/builder-go/internal/cli"
	"github.com/pedrocodesforcoffee/builder-go/internal/config"
	"github.com/pedrocodesforcoffee/builder-go/internal/session"
)

// Version information (set at build time)
var (
	Version   = "1.0.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	// Help and version need no wiring.
	switch cmd {
	case cli.CmdHelp:
		cli.HandleHelp()
		return
	case cli.CmdVersion:
		cli.HandleVersion()
		return
	}

	if !args.Verbose {
		// The API request/response log lines are debugging aid, not
		// command output.
		log.SetOutput(io.Discard)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot load configuration: %v\n", err)
		os.Exit(cli.ExitConfigError)
	}

	app, err := cli.NewApp(cfg, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.ExitGeneralError)
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Restore any persisted session before running the command.
	if err := app.Sessions.Resume(ctx); err != nil && !errors.Is(err, session.ErrSessionExpired) {
		fmt.Fprintf(os.Stderr, "Warning: could not resume session: %v\n", err)
	}

	if err := dispatch(ctx, app, cmd, args); err != nil {
		cli.DisplayError(err, args.JSON)
		os.Exit(cli.ExitCode(err))
	}
}

func dispatch(ctx context.Context, app *cli.App, cmd cli.Command, args cli.Args) error {
	switch cmd {
	case cli.CmdLogin:
		return app.HandleLogin(ctx, args)
	case cli.CmdLogout:
		return app.HandleLogout(ctx, args)
	case cli.CmdRegister:
		return app.HandleRegister(ctx, args)
	case cli.CmdWhoami:
		return app.HandleWhoami(ctx, args)
	case cli.CmdStatus:
		return app.HandleStatus(ctx, args)
	case cli.CmdProjects:
		return app.HandleProjects(ctx, args)
	case cli.CmdOrgs:
		return app.HandleOrgs(ctx, args)
	case cli.CmdRFIs:
		return app.HandleRFIs(ctx, args)
	case cli.CmdPerms:
		return app.HandlePerms(ctx, args)
	case cli.CmdConfig:
		return app.HandleConfig(ctx, args)
	case cli.CmdCache:
		return app.HandleCache(ctx, args)
	default:
		cli.HandleHelp()
		return nil
	}
}
