// Copyright 2026 Peter Edge
//
// All rights reserved.

package main

import (
	"context"

	"buf.build/go/app/appcmd"
	"buf.build/go/app/appext"
	"github.com/bufdev/tcsctl/cmd/tcsctl/internal/command/collect"
	"github.com/bufdev/tcsctl/cmd/tcsctl/internal/command/config"
	"github.com/bufdev/tcsctl/cmd/tcsctl/internal/command/export"
	"github.com/bufdev/tcsctl/cmd/tcsctl/internal/command/probe"
	"github.com/bufdev/tcsctl/cmd/tcsctl/internal/command/report"
	"github.com/joho/godotenv"
)

func main() {
	// A .env file in the working directory augments the environment before
	// the app container snapshots it. Existing variables win.
	_ = godotenv.Load()
	appcmd.Main(context.Background(), newRootCommand("tcsctl"))
}

// newRootCommand creates the root tcsctl command with all sub-commands.
func newRootCommand(name string) *appcmd.Command {
	builder := appext.NewBuilder(name)
	return &appcmd.Command{
		Use:                 name,
		Short:               "Collect and analyze Tinkoff Invest account operations",
		BindPersistentFlags: builder.BindRoot,
		SubCommands: []*appcmd.Command{
			collect.NewCommand("collect", builder),
			export.NewCommand("export", builder),
			report.NewCommand("report", builder),
			probe.NewCommand("probe", builder),
			config.NewCommand("config", builder),
		},
	}
}
