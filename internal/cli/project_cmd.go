// Copyright (c) 2025 pedrocodesforcoffee
// SPDX-License-Identifier: AGPL-3.0-or-later

// project_cmd.go - Project management commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/pedrocodesforcoffee/builder-go/internal/api"
)

const projectsUsage = "builder projects [list|show <id>|create --name <name> --org <org-id>|delete <id>]"

// HandleProjects dispatches the projects subcommands.
func (a *App) HandleProjects(ctx context.Context, args Args) error {
	switch args.Subcommand {
	case "", "list":
		return a.projectsList(ctx, args)
	case "show":
		return a.projectsShow(ctx, args)
	case "create":
		return a.projectsCreate(ctx, args)
	case "delete":
		return a.projectsDelete(ctx, args)
	default:
		return &UsageError{Command: "projects", Usage: projectsUsage}
	}
}

func (a *App) projectsList(ctx context.Context, args Args) error {
	projects, err := a.Projects.List(ctx)
	if err != nil {
		return NewCommandError("projects", "list", "could not list projects", err)
	}

	if args.JSON {
		return json.NewEncoder(os.Stdout).Encode(projects)
	}

	if len(projects) == 0 {
		fmt.Println(dim("No projects."))
		return nil
	}

	widths := []int{10, 32, 12, 10}
	printHeader(widths, "ID", "NAME", "NUMBER", "STATUS")
	for _, p := range projects {
		printRow(widths, p.ID, p.Name, p.Number, displayStatus(p.Status))
	}
	return nil
}

func (a *App) projectsShow(ctx context.Context, args Args) error {
	if len(args.Raw) == 0 {
		return &UsageError{Command: "projects", Usage: "builder projects show <id>"}
	}
	p, err := a.Projects.Get(ctx, args.Raw[0])
	if err != nil {
		return NewCommandError("projects", "show", "could not load project", err)
	}

	if args.JSON {
		return json.NewEncoder(os.Stdout).Encode(p)
	}

	fmt.Println(title(p.Name))
	printField("ID", p.ID)
	printField("Organization", p.OrganizationID)
	if p.Number != "" {
		printField("Number", p.Number)
	}
	if p.Address != "" {
		printField("Address", p.Address)
	}
	printField("Status", displayStatus(p.Status))
	if p.StartDate != nil {
		printField("Start", p.StartDate.Format("2006-01-02"))
	}
	if p.EndDate != nil {
		printField("End", p.EndDate.Format("2006-01-02"))
	}
	printField("Updated", relativeAge(p.UpdatedAt, time.Now()))
	return nil
}

func (a *App) projectsCreate(ctx context.Context, args Args) error {
	name := args.option("name")
	org := args.option("org")
	if name == "" || org == "" {
		return &UsageError{Command: "projects",
			Usage: "builder projects create --name <name> --org <org-id> [--number <n>] [--address <addr>]"}
	}

	p, err := a.Projects.Create(ctx, api.CreateProjectInput{
		OrganizationID: org,
		Name:           name,
		Number:         args.option("number"),
		Address:        args.option("address"),
	})
	if err != nil {
		return NewCommandError("projects", "create", "could not create project", err)
	}

	if args.JSON {
		return json.NewEncoder(os.Stdout).Encode(p)
	}
	fmt.Printf("%s Created project %s (%s)\n", okLabel(), p.Name, p.ID)
	return nil
}

func (a *App) projectsDelete(ctx context.Context, args Args) error {
	if len(args.Raw) == 0 {
		return &UsageError{Command: "projects", Usage: "builder projects delete <id>"}
	}
	id := args.Raw[0]
	if err := a.Projects.Delete(ctx, id); err != nil {
		return NewCommandError("projects", "delete", "could not delete project", err)
	}
	fmt.Printf("%s Deleted project %s\n", okLabel(), id)
	return nil
}

// displayStatus renders an API status value for humans.
func displayStatus(status string) string {
	switch status {
	case "active":
		return success(displayRole(status))
	case "on_hold":
		return warning(displayRole(status))
	case "closed":
		return dim(displayRole(status))
	default:
		return displayRole(status)
	}
}
