// Copyright (c) 2025 pedrocodesforcoffee
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Configuration show/set commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/pedrocodesforcoffee/builder-go/internal/config"
)

const configUsage = "builder config [show|set <key> <value>|path]"

// HandleConfig dispatches the config subcommands.
func (a *App) HandleConfig(ctx context.Context, args Args) error {
	switch args.Subcommand {
	case "", "show":
		return a.configShow(args)
	case "set":
		return a.configSet(args)
	case "path":
		path, err := config.Path()
		if err != nil {
			return NewCommandError("config", "path", "could not resolve config path", err)
		}
		fmt.Println(path)
		return nil
	default:
		return &UsageError{Command: "config", Usage: configUsage}
	}
}

func (a *App) configShow(args Args) error {
	if args.JSON {
		return json.NewEncoder(os.Stdout).Encode(a.Config)
	}

	fmt.Println(title("Configuration"))
	printField("api.base_url", a.Config.API.BaseURL)
	printField("api.timeout_secs", strconv.Itoa(a.Config.API.TimeoutSecs))
	printField("api.max_retries", strconv.Itoa(a.Config.API.MaxRetries))
	printField("api.rate_limit", strconv.FormatFloat(a.Config.API.RateLimit, 'f', -1, 64))
	printField("session.refresh_margin_secs", strconv.Itoa(a.Config.Session.RefreshMarginSecs))
	printField("session.max_refresh_attempts", strconv.Itoa(a.Config.Session.MaxRefreshAttempts))
	printField("cache.persist", strconv.FormatBool(a.Config.CachePersist()))
	printField("cache.expiry_warn_days", strconv.Itoa(a.Config.Cache.ExpiryWarnDays))
	printField("field_mode", strconv.FormatBool(a.Config.FieldMode))
	printField("color", a.Config.Color)
	return nil
}

func (a *App) configSet(args Args) error {
	if args.ConfigKey == "" || args.ConfigVal == "" {
		return &UsageError{Command: "config", Usage: "builder config set <key> <value>"}
	}

	key, val := args.ConfigKey, args.ConfigVal
	cfg := a.Config

	var err error
	switch key {
	case "api.base_url":
		cfg.API.BaseURL = val
	case "api.timeout_secs":
		cfg.API.TimeoutSecs, err = strconv.Atoi(val)
	case "api.max_retries":
		cfg.API.MaxRetries, err = strconv.Atoi(val)
	case "api.rate_limit":
		cfg.API.RateLimit, err = strconv.ParseFloat(val, 64)
	case "session.refresh_margin_secs":
		cfg.Session.RefreshMarginSecs, err = strconv.Atoi(val)
	case "session.max_refresh_attempts":
		cfg.Session.MaxRefreshAttempts, err = strconv.Atoi(val)
	case "cache.persist":
		var b bool
		if b, err = strconv.ParseBool(val); err == nil {
			cfg.Cache.Persist = &b
		}
	case "cache.expiry_warn_days":
		cfg.Cache.ExpiryWarnDays, err = strconv.Atoi(val)
	case "field_mode":
		cfg.FieldMode, err = strconv.ParseBool(val)
	case "color":
		cfg.Color = val
	default:
		return NewCommandError("config", "set", fmt.Sprintf("unknown key %q", key), nil)
	}
	if err != nil {
		return NewCommandError("config", "set", fmt.Sprintf("invalid value %q for %s", val, key), err)
	}

	if err := cfg.Validate(); err != nil {
		return NewCommandError("config", "set", "resulting configuration is invalid", err)
	}
	if err := config.Save(cfg); err != nil {
		return NewCommandError("config", "set", "could not save configuration", err)
	}

	fmt.Printf("%s %s = %s\n", okLabel(), key, val)
	return nil
}
