// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package collect implements the "collect" command.
package collect

import (
	"context"
	"fmt"

	"buf.build/go/app/appcmd"
	"buf.build/go/app/appext"
	"github.com/bufdev/tcsctl/cmd/tcsctl/internal/tcsctlcmd"
	"github.com/bufdev/tcsctl/internal/standard/xtime"
	"github.com/bufdev/tcsctl/internal/tcsctl/tcsctldoc"
	"github.com/spf13/pflag"
)

const (
	// sinceFlagName is the flag name for the start date.
	sinceFlagName = "since"
	// untilFlagName is the flag name for the inclusive end date.
	untilFlagName = "until"
	// accountIDFlagName is the flag name for the account id override.
	accountIDFlagName = "account-id"
	// outFlagName is the flag name for the output document path.
	outFlagName = "out"
	// limitFlagName is the flag name for the provider page size.
	limitFlagName = "limit"
)

// NewCommand returns a new collect command that walks the operations feed and
// writes the operations document.
func NewCommand(name string, builder appext.SubCommandBuilder) *appcmd.Command {
	flags := newFlags()
	return &appcmd.Command{
		Use:   name,
		Short: "Collect account operations into the operations document",
		Long: `Collect account operations into the operations document.

Walks the Tinkoff Invest operations feed page by page for the configured
account and the given date range, normalizes every executed operation, and
writes the result as a single JSON document. The document is written
atomically: a failed run leaves no partial file behind.

The date range is inclusive on both ends and is interpreted in the configured
timezone.`,
		Args: appcmd.NoArgs,
		Run: builder.NewRunFunc(
			func(ctx context.Context, container appext.Container) error {
				return run(ctx, container, flags)
			},
		),
		BindFlags: flags.Bind,
	}
}

type flags struct {
	// Since is the start date (YYYY-MM-DD).
	Since string
	// Until is the inclusive end date (YYYY-MM-DD).
	Until string
	// AccountID overrides the configured account id.
	AccountID string
	// Out is the output document path.
	Out string
	// Limit is the page size requested from the provider.
	Limit int32
}

func newFlags() *flags {
	return &flags{}
}

// Bind registers the flag definitions with the given flag set.
func (f *flags) Bind(flagSet *pflag.FlagSet) {
	flagSet.StringVar(
		&f.Since,
		sinceFlagName,
		"",
		"Start date (YYYY-MM-DD, required)",
	)
	flagSet.StringVar(
		&f.Until,
		untilFlagName,
		"",
		"End date (YYYY-MM-DD, inclusive, required)",
	)
	flagSet.StringVar(
		&f.AccountID,
		accountIDFlagName,
		"",
		"Account id (defaults to the configured account)",
	)
	flagSet.StringVar(
		&f.Out,
		outFlagName,
		"",
		"Output document path (defaults to the data directory)",
	)
	flagSet.Int32Var(
		&f.Limit,
		limitFlagName,
		0,
		"Operations per page (defaults to the provider maximum)",
	)
}

func run(ctx context.Context, container appext.Container, flags *flags) error {
	if flags.Since == "" || flags.Until == "" {
		return appcmd.NewInvalidArgumentErrorf("--%s and --%s are required", sinceFlagName, untilFlagName)
	}
	since, err := xtime.ParseDate(flags.Since)
	if err != nil {
		return appcmd.NewInvalidArgumentErrorf("invalid --%s date %q, expected YYYY-MM-DD format: %v", sinceFlagName, flags.Since, err)
	}
	until, err := xtime.ParseDate(flags.Until)
	if err != nil {
		return appcmd.NewInvalidArgumentErrorf("invalid --%s date %q, expected YYYY-MM-DD format: %v", untilFlagName, flags.Until, err)
	}
	// Construct the collector using shared command wiring.
	collector, err := tcsctlcmd.NewCollector(container, flags.AccountID, since, until, flags.Limit)
	if err != nil {
		return err
	}
	document, err := collector.Collect(ctx)
	if err != nil {
		return err
	}
	documentPath, err := tcsctlcmd.DocumentPath(container, flags.Out)
	if err != nil {
		return err
	}
	if err := tcsctldoc.Write(documentPath, document); err != nil {
		return err
	}
	// Print the document path so the user knows where to find it.
	_, err = fmt.Fprintf(container.Stdout(), "%s\n", documentPath)
	return err
}
