// Copyright (c) 2025 pedrocodesforcoffee
// SPDX-License-Identifier: AGPL-3.0-or-later

// auth_cmd.go - login, logout, register and whoami commands.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pedrocodesforcoffee/builder-go/internal/api"
	"github.com/pedrocodesforcoffee/builder-go/internal/session"
)

// HandleLogin signs the user in, prompting for any credential not given
// as an option.
func (a *App) HandleLogin(ctx context.Context, args Args) error {
	email := args.option("email")
	if email == "" {
		var err error
		email, err = promptLine("Email: ")
		if err != nil {
			return NewCommandError("login", "prompt", "could not read email", err)
		}
	}

	password := args.option("password")
	if password == "" {
		var err error
		password, err = promptPassword("Password: ")
		if err != nil {
			return NewCommandError("login", "prompt", "could not read password", err)
		}
	}

	sess, err := a.Sessions.Login(ctx, email, password)
	if err != nil {
		if errors.Is(err, api.ErrInvalidCredentials) {
			return NewCommandError("login", "authenticate", "email or password is incorrect", nil)
		}
		return NewCommandError("login", "authenticate", "could not sign in", err)
	}

	if args.JSON {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"success": true,
			"user":    sess.User,
		})
	}

	fmt.Printf("%s Signed in as %s %s <%s>\n", okLabel(),
		sess.User.FirstName, sess.User.LastName, sess.User.Email)

	// A deep link recorded before an auth redirect resumes here.
	if route := a.Sessions.PendingRoute(); route != "" {
		fmt.Printf("%s\n", dim("Resuming: "+route))
		a.Sessions.ClearPendingRoute()
	}
	return nil
}

// HandleLogout signs out and clears local state, including the permission
// cache so one user's authorization never leaks into the next session.
func (a *App) HandleLogout(ctx context.Context, args Args) error {
	if err := a.Sessions.Logout(ctx); err != nil {
		return NewCommandError("logout", "clear", "could not sign out", err)
	}
	if err := a.Perms.Reset(); err != nil {
		return NewCommandError("logout", "clear", "could not clear permission cache", err)
	}

	if args.JSON {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{"success": true})
	}
	fmt.Printf("%s Signed out\n", okLabel())
	return nil
}

// HandleRegister creates an account and signs it in.
func (a *App) HandleRegister(ctx context.Context, args Args) error {
	email := args.option("email")
	firstName := args.option("first-name")
	lastName := args.option("last-name")

	var err error
	if email == "" {
		if email, err = promptLine("Email: "); err != nil {
			return NewCommandError("register", "prompt", "could not read email", err)
		}
	}
	if firstName == "" {
		if firstName, err = promptLine("First name: "); err != nil {
			return NewCommandError("register", "prompt", "could not read name", err)
		}
	}
	if lastName == "" {
		if lastName, err = promptLine("Last name: "); err != nil {
			return NewCommandError("register", "prompt", "could not read name", err)
		}
	}

	password, err := promptPassword("Password: ")
	if err != nil {
		return NewCommandError("register", "prompt", "could not read password", err)
	}
	confirm, err := promptPassword("Confirm password: ")
	if err != nil {
		return NewCommandError("register", "prompt", "could not read password", err)
	}
	if password != confirm {
		return NewCommandError("register", "validate", "passwords do not match", nil)
	}

	sess, err := a.Sessions.Register(ctx, email, password, firstName, lastName)
	if err != nil {
		return NewCommandError("register", "create", "could not create account", err)
	}

	fmt.Printf("%s Account created; signed in as %s\n", okLabel(), sess.User.Email)
	return nil
}

// HandleWhoami shows the signed-in user.
func (a *App) HandleWhoami(ctx context.Context, args Args) error {
	sess := a.Sessions.Current()
	if sess == nil || a.Sessions.State() != session.StateAuthenticated {
		return session.ErrNotAuthenticated
	}

	if args.JSON {
		return json.NewEncoder(os.Stdout).Encode(sess.User)
	}

	name := strings.TrimSpace(sess.User.FirstName + " " + sess.User.LastName)
	fmt.Println(title("Signed-in User"))
	printField("Name", name)
	printField("Email", sess.User.Email)
	if sess.User.OrganizationID != "" {
		printField("Organization", sess.User.OrganizationID)
	}
	return nil
}
