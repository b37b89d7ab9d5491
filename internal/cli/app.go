// Copyright (c) 2025 pedrocodesforcoffee
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Dependency wiring shared by all command handlers.
package cli

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/pedrocodesforcoffee/builder-go/internal/api"
	"github.com/pedrocodesforcoffee/builder-go/internal/config"
	"github.com/pedrocodesforcoffee/builder-go/internal/offline"
	"github.com/pedrocodesforcoffee/builder-go/internal/permission"
	"github.com/pedrocodesforcoffee/builder-go/internal/secstore"
	"github.com/pedrocodesforcoffee/builder-go/internal/session"
	"github.com/pedrocodesforcoffee/builder-go/internal/storage"
	"github.com/pedrocodesforcoffee/builder-go/internal/util"
)

// App holds the wired collaborators every handler needs. Built once in
// main and passed to the command dispatch.
type App struct {
	Config   *config.Config
	Sessions *session.Manager
	Perms    *permission.Service

	Auth     *api.AuthClient
	Projects *api.ProjectService
	Orgs     *api.OrganizationService
	RFIs     *api.RFIService

	snapshots *storage.SnapshotStore
	watcher   *config.Watcher
}

// NewApp wires the full client stack from configuration: secure store,
// session manager, API client and the permission service with optional
// SQLite persistence.
func NewApp(cfg *config.Config, args Args) (*App, error) {
	if args.FieldMode || cfg.FieldMode {
		offline.SetFieldMode(true)
	}

	configDir, err := config.ConfigDir()
	if err != nil {
		return nil, fmt.Errorf("cannot resolve config directory: %w", err)
	}

	store, err := secstore.NewFileStore(filepath.Join(configDir, "secrets"))
	if err != nil {
		return nil, fmt.Errorf("cannot open secure store: %w", err)
	}

	client := api.NewClient(cfg.API.BaseURL).
		WithTimeout(cfg.Timeout()).
		WithMaxRetries(cfg.API.MaxRetries).
		WithRateLimit(cfg.API.RateLimit)

	auth := api.NewAuthClient(client)

	sessions := session.NewManager(auth, store, session.Config{
		RefreshMargin:      cfg.RefreshMargin(),
		MaxRefreshAttempts: cfg.Session.MaxRefreshAttempts,
	})
	client.WithTokenSource(sessions)

	app := &App{
		Config:   cfg,
		Sessions: sessions,
		Auth:     auth,
		Projects: api.NewProjectService(client),
		Orgs:     api.NewOrganizationService(client),
		RFIs:     api.NewRFIService(client),
	}

	cache := permission.NewCache()
	if cfg.CachePersist() {
		cacheDir, err := cfg.CacheDir()
		if err == nil {
			snapshots, err := storage.Open(filepath.Join(cacheDir, "snapshots.db"))
			if err == nil {
				cache = permission.NewCacheWithStore(snapshots)
				app.snapshots = snapshots
			}
			// Persistence failures degrade to memory-only caching.
		}
	}
	app.Perms = permission.NewService(cache, api.NewPermissionService(client))

	// Retry loops and rate limiting can keep a command alive for a while;
	// watch the config file so a field-mode toggle from another terminal
	// applies without a restart. An explicit --field-mode flag stays pinned.
	if path, err := config.Path(); err == nil {
		w, err := config.NewWatcher(path, func(next *config.Config) {
			offline.SetFieldMode(args.FieldMode || next.FieldMode)
		})
		if err == nil {
			if err := w.Watch(); err == nil {
				app.watcher = w
			} else {
				_ = w.Close()
			}
		}
	}

	return app, nil
}

// Close releases the app's resources.
func (a *App) Close() {
	a.Sessions.Close()
	if a.watcher != nil {
		_ = a.watcher.Close()
	}
	if a.snapshots != nil {
		a.snapshots.Close()
	}
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

var titleCaser = cases.Title(language.English)

// displayRole renders an API role identifier for humans:
// "project_manager" -> "Project Manager".
func displayRole(role string) string {
	if role == "" {
		return "-"
	}
	out := make([]byte, 0, len(role))
	for i := 0; i < len(role); i++ {
		if role[i] == '_' || role[i] == '-' {
			out = append(out, ' ')
		} else {
			out = append(out, role[i])
		}
	}
	return titleCaser.String(string(out))
}

// printField prints an aligned label/value pair.
func printField(name, value string) {
	fmt.Printf("  %s %s\n", label(util.PadWidth(name, 16)), value)
}

// printRow prints table cells padded to the given widths. Cells must be
// unstyled: escape sequences would throw off the width arithmetic.
func printRow(widths []int, cells ...string) {
	fmt.Println(paddedRow(widths, cells))
}

// printHeader prints a styled table header. The style wraps the already
// padded line so alignment survives color output.
func printHeader(widths []int, cells ...string) {
	fmt.Println(label(paddedRow(widths, cells)))
}

func paddedRow(widths []int, cells []string) string {
	var b strings.Builder
	for i, cell := range cells {
		if i > 0 {
			b.WriteString("  ")
		}
		if i < len(widths) {
			b.WriteString(util.PadWidth(util.TruncateWidth(cell, widths[i]), widths[i]))
		} else {
			b.WriteString(cell)
		}
	}
	return b.String()
}

// relativeAge renders a timestamp as "3h ago" style text.
func relativeAge(t time.Time, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
