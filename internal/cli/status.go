// Copyright (c) 2025 pedrocodesforcoffee
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - Session and cache status command.
//
// Command: status
// Aliases: s
//
// Sections:
//   Session:  auth state, user, token expiry
//   Network:  API endpoint, field mode
//   Cache:    entry count, hit rate
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pedrocodesforcoffee/builder-go/internal/offline"
	"github.com/pedrocodesforcoffee/builder-go/internal/session"
)

// HandleStatus prints session, network and cache status.
func (a *App) HandleStatus(ctx context.Context, args Args) error {
	state := a.Sessions.State()
	sess := a.Sessions.Current()
	stats := a.Perms.Cache().Stats()

	if args.JSON {
		out := map[string]any{
			"state":      state.String(),
			"field_mode": offline.IsFieldMode(),
			"api_url":    a.Config.API.BaseURL,
			"cache": map[string]any{
				"entries":  stats.Entries,
				"hits":     stats.Hits,
				"misses":   stats.Misses,
				"hit_rate": stats.HitRate,
			},
		}
		if sess != nil {
			out["user"] = sess.User.Email
			out["token_expires_at"] = sess.ExpiresAt
		}
		return json.NewEncoder(os.Stdout).Encode(out)
	}

	fmt.Println(title("Builder Status"))

	fmt.Println(section("Session"))
	switch state {
	case session.StateAuthenticated:
		printField("State", success(state.String()))
	case session.StateRefreshing:
		printField("State", warning(state.String()))
	default:
		printField("State", dim(state.String()))
	}
	if sess != nil {
		printField("User", sess.User.Email)
		remaining := sess.TimeUntilExpiry(time.Now())
		if remaining > 0 {
			printField("Token expires", fmt.Sprintf("in %s", remaining.Round(time.Second)))
		} else {
			printField("Token expires", warning("expired"))
		}
	}

	fmt.Println(section("Network"))
	printField("API", a.Config.API.BaseURL)
	if offline.IsFieldMode() {
		printField("Field mode", warning("on, serving cached data only"))
	} else {
		printField("Field mode", "off")
	}

	fmt.Println(section("Permission Cache"))
	printField("Entries", fmt.Sprintf("%d", stats.Entries))
	printField("Hits", fmt.Sprintf("%d", stats.Hits))
	printField("Misses", fmt.Sprintf("%d", stats.Misses))
	printField("Hit rate", fmt.Sprintf("%.0f%%", stats.HitRate*100))

	if expiring := a.Perms.Cache().ExpiringSoon(time.Now(), a.Config.Cache.ExpiryWarnDays); len(expiring) > 0 {
		fmt.Printf("%s Project access expiring within %d days: %s\n",
			warnLabel(), a.Config.Cache.ExpiryWarnDays, strings.Join(expiring, ", "))
	}

	return nil
}

// HandleCache implements cache stats/clear.
func (a *App) HandleCache(ctx context.Context, args Args) error {
	switch args.Subcommand {
	case "", "stats":
		stats := a.Perms.Cache().Stats()
		if args.JSON {
			return json.NewEncoder(os.Stdout).Encode(stats)
		}
		fmt.Println(title("Permission Cache"))
		printField("Entries", fmt.Sprintf("%d", stats.Entries))
		printField("Hits", fmt.Sprintf("%d", stats.Hits))
		printField("Misses", fmt.Sprintf("%d", stats.Misses))
		printField("Hit rate", fmt.Sprintf("%.0f%%", stats.HitRate*100))
		return nil
	case "clear":
		if err := a.Perms.Reset(); err != nil {
			return NewCommandError("cache", "clear", "could not clear cache", err)
		}
		fmt.Printf("%s Permission cache cleared\n", okLabel())
		return nil
	default:
		return &UsageError{Command: "cache", Usage: "builder cache [stats|clear]"}
	}
}
