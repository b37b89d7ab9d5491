// Copyright (c) 2025 pedrocodesforcoffee
// SPDX-License-Identifier: AGPL-3.0-or-later

// rfi_cmd.go - RFI commands.
//
// Command: rfis <project-id> [list|show|create|answer|close|delete]
//
// Creating or answering an RFI checks the cached project permissions
// first so field crews get an immediate answer instead of a server-side
// 403 after typing out the whole request.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/pedrocodesforcoffee/builder-go/internal/api"
	"github.com/pedrocodesforcoffee/builder-go/internal/util"
)

const rfisUsage = "builder rfis <project-id> [list|show <id>|create --subject <s> --question <q>|answer <id> --answer <a>|close <id>|delete <id>]"

// HandleRFIs dispatches the RFI subcommands.
func (a *App) HandleRFIs(ctx context.Context, args Args) error {
	if args.ProjectID == "" {
		return &UsageError{Command: "rfis", Usage: rfisUsage}
	}

	switch args.Subcommand {
	case "", "list":
		return a.rfisList(ctx, args)
	case "show":
		return a.rfisShow(ctx, args)
	case "create":
		return a.rfisCreate(ctx, args)
	case "answer":
		return a.rfisAnswer(ctx, args)
	case "close":
		return a.rfisClose(ctx, args)
	case "delete":
		return a.rfisDelete(ctx, args)
	default:
		return &UsageError{Command: "rfis", Usage: rfisUsage}
	}
}

// requirePermission checks a permission against the cached snapshot. A
// stale snapshot still gates: better a cached denial than a doomed write.
func (a *App) requirePermission(ctx context.Context, projectID, perm string) error {
	snap, err := a.Perms.Fetch(ctx, projectID)
	if err != nil {
		// Permission state unknown; let the server decide.
		return nil
	}
	if !snap.Has(perm) {
		return NewCommandError("rfis", "authorize",
			fmt.Sprintf("your role (%s) lacks the %s permission on this project", displayRole(snap.Role), perm), nil)
	}
	return nil
}

func (a *App) rfisList(ctx context.Context, args Args) error {
	rfis, err := a.RFIs.List(ctx, args.ProjectID)
	if err != nil {
		return NewCommandError("rfis", "list", "could not list RFIs", err)
	}

	if args.JSON {
		return json.NewEncoder(os.Stdout).Encode(rfis)
	}

	if len(rfis) == 0 {
		fmt.Println(dim("No RFIs."))
		return nil
	}

	widths := []int{6, 40, 12}
	printHeader(widths, "NO.", "SUBJECT", "UPDATED", "STATUS")
	now := time.Now()
	for _, r := range rfis {
		printRow(widths,
			fmt.Sprintf("#%d", r.Number),
			r.Subject,
			relativeAge(r.UpdatedAt, now),
			displayRFIStatus(r.Status))
	}
	return nil
}

func (a *App) rfisShow(ctx context.Context, args Args) error {
	if len(args.Raw) == 0 {
		return &UsageError{Command: "rfis", Usage: "builder rfis <project-id> show <rfi-id>"}
	}
	r, err := a.RFIs.Get(ctx, args.ProjectID, args.Raw[0])
	if err != nil {
		return NewCommandError("rfis", "show", "could not load RFI", err)
	}

	if args.JSON {
		return json.NewEncoder(os.Stdout).Encode(r)
	}

	fmt.Println(title(fmt.Sprintf("RFI #%d: %s", r.Number, r.Subject)))
	printField("Status", displayRFIStatus(r.Status))
	if r.Trade != "" {
		printField("Trade", r.Trade)
	}
	if r.Area != "" {
		printField("Area", r.Area)
	}
	if r.DueDate != nil {
		printField("Due", r.DueDate.Format("2006-01-02"))
	}
	fmt.Println(section("Question"))
	fmt.Println("  " + util.FirstLine(r.Question))
	if r.Answer != "" {
		fmt.Println(section("Answer"))
		fmt.Println("  " + util.FirstLine(r.Answer))
	}
	return nil
}

func (a *App) rfisCreate(ctx context.Context, args Args) error {
	subject := args.option("subject")
	question := args.option("question")
	if subject == "" || question == "" {
		return &UsageError{Command: "rfis",
			Usage: "builder rfis <project-id> create --subject <s> --question <q> [--trade <t>] [--area <a>]"}
	}

	if err := a.requirePermission(ctx, args.ProjectID, "rfi:create"); err != nil {
		return err
	}

	r, err := a.RFIs.Create(ctx, args.ProjectID, api.CreateRFIInput{
		Subject:  subject,
		Question: question,
		Trade:    args.option("trade"),
		Area:     args.option("area"),
	})
	if err != nil {
		return NewCommandError("rfis", "create", "could not create RFI", err)
	}

	if args.JSON {
		return json.NewEncoder(os.Stdout).Encode(r)
	}
	fmt.Printf("%s Created RFI #%d (%s)\n", okLabel(), r.Number, r.ID)
	return nil
}

func (a *App) rfisAnswer(ctx context.Context, args Args) error {
	if len(args.Raw) == 0 || args.option("answer") == "" {
		return &UsageError{Command: "rfis", Usage: "builder rfis <project-id> answer <rfi-id> --answer <text>"}
	}

	if err := a.requirePermission(ctx, args.ProjectID, "rfi:answer"); err != nil {
		return err
	}

	r, err := a.RFIs.Answer(ctx, args.ProjectID, args.Raw[0], args.option("answer"))
	if err != nil {
		return NewCommandError("rfis", "answer", "could not answer RFI", err)
	}
	fmt.Printf("%s RFI #%d answered\n", okLabel(), r.Number)
	return nil
}

func (a *App) rfisClose(ctx context.Context, args Args) error {
	if len(args.Raw) == 0 {
		return &UsageError{Command: "rfis", Usage: "builder rfis <project-id> close <rfi-id>"}
	}
	r, err := a.RFIs.Close(ctx, args.ProjectID, args.Raw[0])
	if err != nil {
		return NewCommandError("rfis", "close", "could not close RFI", err)
	}
	fmt.Printf("%s RFI #%d closed\n", okLabel(), r.Number)
	return nil
}

func (a *App) rfisDelete(ctx context.Context, args Args) error {
	if len(args.Raw) == 0 {
		return &UsageError{Command: "rfis", Usage: "builder rfis <project-id> delete <rfi-id>"}
	}
	if err := a.RFIs.Delete(ctx, args.ProjectID, args.Raw[0]); err != nil {
		return NewCommandError("rfis", "delete", "could not delete RFI", err)
	}
	fmt.Printf("%s RFI deleted\n", okLabel())
	return nil
}

func displayRFIStatus(status string) string {
	switch status {
	case "open":
		return warning("open")
	case "answered":
		return success("answered")
	case "closed":
		return dim("closed")
	default:
		return status
	}
}
