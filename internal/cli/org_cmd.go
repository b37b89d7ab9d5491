// Copyright (c) 2025 pedrocodesforcoffee
// SPDX-License-Identifier: AGPL-3.0-or-later

// org_cmd.go - Organization commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

const orgsUsage = "builder orgs [list|show <id>|members <id>]"

// HandleOrgs dispatches the orgs subcommands.
func (a *App) HandleOrgs(ctx context.Context, args Args) error {
	switch args.Subcommand {
	case "", "list":
		return a.orgsList(ctx, args)
	case "show":
		return a.orgsShow(ctx, args)
	case "members":
		return a.orgsMembers(ctx, args)
	default:
		return &UsageError{Command: "orgs", Usage: orgsUsage}
	}
}

func (a *App) orgsList(ctx context.Context, args Args) error {
	orgs, err := a.Orgs.List(ctx)
	if err != nil {
		return NewCommandError("orgs", "list", "could not list organizations", err)
	}

	if args.JSON {
		return json.NewEncoder(os.Stdout).Encode(orgs)
	}

	if len(orgs) == 0 {
		fmt.Println(dim("No organizations."))
		return nil
	}

	widths := []int{10, 32, 14, 16}
	printHeader(widths, "ID", "NAME", "TYPE", "TRADE")
	for _, o := range orgs {
		printRow(widths, o.ID, o.Name, displayRole(o.Type), o.Trade)
	}
	return nil
}

func (a *App) orgsShow(ctx context.Context, args Args) error {
	if len(args.Raw) == 0 {
		return &UsageError{Command: "orgs", Usage: "builder orgs show <id>"}
	}
	o, err := a.Orgs.Get(ctx, args.Raw[0])
	if err != nil {
		return NewCommandError("orgs", "show", "could not load organization", err)
	}

	if args.JSON {
		return json.NewEncoder(os.Stdout).Encode(o)
	}

	fmt.Println(title(o.Name))
	printField("ID", o.ID)
	printField("Type", displayRole(o.Type))
	if o.Trade != "" {
		printField("Trade", o.Trade)
	}
	return nil
}

func (a *App) orgsMembers(ctx context.Context, args Args) error {
	if len(args.Raw) == 0 {
		return &UsageError{Command: "orgs", Usage: "builder orgs members <id>"}
	}
	members, err := a.Orgs.Members(ctx, args.Raw[0])
	if err != nil {
		return NewCommandError("orgs", "members", "could not list members", err)
	}

	if args.JSON {
		return json.NewEncoder(os.Stdout).Encode(members)
	}

	if len(members) == 0 {
		fmt.Println(dim("No members."))
		return nil
	}

	widths := []int{28, 28, 18}
	printHeader(widths, "NAME", "EMAIL", "ROLE")
	for _, m := range members {
		name := strings.TrimSpace(m.FirstName + " " + m.LastName)
		printRow(widths, name, m.Email, displayRole(m.Role))
	}
	return nil
}
