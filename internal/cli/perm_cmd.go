// Copyright (c) 2025 pedrocodesforcoffee
// SPDX-License-Identifier: AGPL-3.0-or-later

// perm_cmd.go - Per-project permission display.
//
// Command: perms <project-id>
//
// Flags:
//   --refresh   Drop the cached snapshot and refetch
//   --json      Structured output
//
// A snapshot served from cache after a network failure is marked stale
// and displayed with an explicit warning; expiring project access gets a
// heads-up before it lapses.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// HandlePerms shows the signed-in user's permissions for one project.
func (a *App) HandlePerms(ctx context.Context, args Args) error {
	if args.ProjectID == "" {
		return &UsageError{Command: "perms", Usage: "builder perms <project-id> [--refresh]"}
	}

	if args.hasFlag("refresh") {
		if err := a.Perms.Invalidate(args.ProjectID); err != nil {
			return NewCommandError("perms", "refresh", "could not invalidate cache", err)
		}
	}

	snap, err := a.Perms.Fetch(ctx, args.ProjectID)
	if err != nil {
		return NewCommandError("perms", "fetch", "could not load permissions", err)
	}

	now := time.Now()

	if args.JSON {
		out := map[string]any{
			"project_id":  snap.ProjectID,
			"role":        snap.Role,
			"permissions": snap.Permissions,
			"fetched_at":  snap.FetchedAt,
			"stale":       snap.Stale,
		}
		if snap.Scope != nil {
			out["scope"] = snap.Scope
		}
		if snap.ExpiresAt != nil {
			out["expires_at"] = snap.ExpiresAt
		}
		return json.NewEncoder(os.Stdout).Encode(out)
	}

	fmt.Println(title("Permissions: " + snap.ProjectID))

	if snap.Stale {
		fmt.Printf("%s Shown from cache fetched %s; the server could not be reached\n",
			warnLabel(), relativeAge(snap.FetchedAt, now))
	}

	printField("Role", displayRole(snap.Role))
	printField("Fetched", relativeAge(snap.FetchedAt, now))

	if snap.ExpiresAt != nil {
		if days, ok := snap.DaysUntilExpiration(now); ok {
			switch {
			case snap.IsExpired(now):
				printField("Access", errorText("expired"))
			case snap.IsExpiringSoon(now, a.Config.Cache.ExpiryWarnDays):
				printField("Access", warning(fmt.Sprintf("expires in %d days", days)))
			default:
				printField("Access", fmt.Sprintf("expires %s", snap.ExpiresAt.Format("2006-01-02")))
			}
		}
	}

	if !snap.Scope.IsEmpty() {
		fmt.Println(section("Scope"))
		if len(snap.Scope.Trades) > 0 {
			printField("Trades", strings.Join(snap.Scope.Trades, ", "))
		}
		if len(snap.Scope.Areas) > 0 {
			printField("Areas", strings.Join(snap.Scope.Areas, ", "))
		}
		if len(snap.Scope.Phases) > 0 {
			printField("Phases", strings.Join(snap.Scope.Phases, ", "))
		}
	}

	fmt.Println(section("Grants"))
	keys := make([]string, 0, len(snap.Permissions))
	for k := range snap.Permissions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if snap.Permissions[k] {
			fmt.Printf("  %s %s\n", success("+"), k)
		} else {
			fmt.Printf("  %s %s\n", dim("-"), dim(k))
		}
	}
	if len(keys) == 0 {
		fmt.Println(dim("  (no permissions granted)"))
	}

	return nil
}
