// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package export implements the "export" command.
package export

import (
	"context"
	"fmt"

	"buf.build/go/app/appcmd"
	"buf.build/go/app/appext"
	"github.com/bufdev/tcsctl/cmd/tcsctl/internal/tcsctlcmd"
	"github.com/bufdev/tcsctl/internal/standard/xos"
	"github.com/bufdev/tcsctl/internal/tcsctl/tcsctlexcel"
	"github.com/spf13/pflag"
)

const (
	// outFlagName is the flag name for the output workbook path.
	outFlagName = "out"

	defaultWindow  = "month"
	defaultOutPath = "stats.xlsx"
)

// NewCommand returns a new export command that aggregates the operations
// document into calendar windows and writes an .xlsx workbook.
func NewCommand(name string, builder appext.SubCommandBuilder) *appcmd.Command {
	flags := newFlags()
	return &appcmd.Command{
		Use:   name,
		Short: "Export windowed statistics to an .xlsx workbook",
		Long: `Export windowed statistics to an .xlsx workbook.

Reads the operations document written by "tcsctl collect", buckets the
operations into calendar windows, and writes a workbook with per-window
aggregates, a per-instrument breakdown, the raw operations and summary charts.
The workbook is written atomically: a failed run leaves no partial file
behind.

Without --since/--until, the window range is derived from the document's own
operations. Window boundaries are computed in the document's timezone.`,
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
	// In is the input document path.
	In string
	// Window is the calendar window period (day, week, month, quarter, year).
	Window string
	// Since is the start date (YYYY-MM-DD).
	Since string
	// Until is the inclusive end date (YYYY-MM-DD).
	Until string
	// Out is the output workbook path.
	Out string
}

func newFlags() *flags {
	return &flags{}
}

// Bind registers the flag definitions with the given flag set.
func (f *flags) Bind(flagSet *pflag.FlagSet) {
	flagSet.StringVar(
		&f.In,
		tcsctlcmd.InFlagName,
		"",
		"Input document path (defaults to the data directory)",
	)
	flagSet.StringVar(
		&f.Window,
		tcsctlcmd.WindowFlagName,
		defaultWindow,
		"Calendar window period (day, week, month, quarter, year)",
	)
	flagSet.StringVar(
		&f.Since,
		tcsctlcmd.SinceFlagName,
		"",
		"Start date (YYYY-MM-DD, defaults to the first operation)",
	)
	flagSet.StringVar(
		&f.Until,
		tcsctlcmd.UntilFlagName,
		"",
		"End date (YYYY-MM-DD, inclusive, defaults to the last operation)",
	)
	flagSet.StringVar(
		&f.Out,
		outFlagName,
		defaultOutPath,
		"Output workbook path",
	)
}

func run(_ context.Context, container appext.Container, flags *flags) error {
	period, since, until, err := tcsctlcmd.ParseWindowFlags(flags.Window, flags.Since, flags.Until)
	if err != nil {
		return err
	}
	documentPath, err := tcsctlcmd.DocumentPath(container, flags.In)
	if err != nil {
		return err
	}
	document, result, err := tcsctlcmd.AggregateDocument(container, documentPath, period, since, until)
	if err != nil {
		return err
	}
	outPath, err := xos.ExpandHome(flags.Out)
	if err != nil {
		return err
	}
	if err := tcsctlexcel.Write(outPath, document, result); err != nil {
		return err
	}
	// Print the workbook path so the user knows where to find it.
	_, err = fmt.Fprintf(container.Stdout(), "%s\n", outPath)
	return err
}
