// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package report implements the "report" command.
package report

import (
	"context"
	"fmt"

	"buf.build/go/app/appcmd"
	"buf.build/go/app/appext"
	"github.com/bufdev/tcsctl/cmd/tcsctl/internal/tcsctlcmd"
	"github.com/bufdev/tcsctl/internal/pkg/cliio"
	"github.com/bufdev/tcsctl/internal/pkg/moneyfmt"
	"github.com/bufdev/tcsctl/internal/tcsctl/tcsctlstats"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
)

// formatFlagName is the flag name for the output format.
const formatFlagName = "format"

const defaultWindow = "month"

// NewCommand returns a new report command that prints windowed statistics to
// stdout.
func NewCommand(name string, builder appext.SubCommandBuilder) *appcmd.Command {
	flags := newFlags()
	return &appcmd.Command{
		Use:   name,
		Short: "Print windowed statistics to stdout",
		Long: `Print windowed statistics to stdout.

Reads the operations document written by "tcsctl collect", buckets the
operations into calendar windows, and prints one row per window plus a TOTAL
row. The table format renders amounts in the document currency; csv and json
carry raw decimal values.`,
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
	// Format is the output format (table, csv, json).
	Format string
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
		&f.Format,
		formatFlagName,
		"table",
		"Output format (table, csv, json)",
	)
}

func run(_ context.Context, container appext.Container, flags *flags) error {
	format, err := cliio.ParseFormat(flags.Format)
	if err != nil {
		return appcmd.NewInvalidArgumentError(err.Error())
	}
	period, since, until, err := tcsctlcmd.ParseWindowFlags(flags.Window, flags.Since, flags.Until)
	if err != nil {
		return err
	}
	documentPath, err := tcsctlcmd.DocumentPath(container, flags.In)
	if err != nil {
		return err
	}
	_, result, err := tcsctlcmd.AggregateDocument(container, documentPath, period, since, until)
	if err != nil {
		return err
	}
	writer := container.Stdout()
	switch format {
	case cliio.FormatTable:
		rows := make([][]string, 0, len(result.Windows))
		for i := range result.Windows {
			rows = append(rows, windowStatsToTableRow(&result.Windows[i]))
		}
		return cliio.WriteTableWithTotals(
			writer,
			tcsctlstats.WindowStatsHeaders(),
			rows,
			windowStatsToTableRow(&result.Total),
		)
	case cliio.FormatCSV:
		rows := make([][]string, 0, len(result.Windows)+1)
		for i := range result.Windows {
			rows = append(rows, tcsctlstats.WindowStatsToRow(&result.Windows[i]))
		}
		rows = append(rows, tcsctlstats.WindowStatsToRow(&result.Total))
		return cliio.WriteCSVRecords(writer, tcsctlstats.WindowStatsHeaders(), rows)
	case cliio.FormatJSON:
		return cliio.WriteJSON(writer, result)
	default:
		return appcmd.NewInvalidArgumentErrorf("unsupported format: %s", format)
	}
}

// windowStatsToTableRow converts a WindowStats to a table row with amounts
// rendered in the window currency. A window with no currency (an empty
// document) falls back to raw decimal values.
func windowStatsToTableRow(windowStats *tcsctlstats.WindowStats) []string {
	if windowStats.Currency == "" {
		return tcsctlstats.WindowStatsToRow(windowStats)
	}
	formatAmount := func(amount decimal.Decimal) string {
		return moneyfmt.Format(amount, windowStats.Currency)
	}
	return []string{
		windowStats.Identifier,
		fmt.Sprintf("%d", windowStats.Operations),
		formatAmount(windowStats.Turnover),
		formatAmount(windowStats.BuyCash),
		formatAmount(windowStats.SellCash),
		formatAmount(windowStats.Fees),
		formatAmount(windowStats.Taxes),
		formatAmount(windowStats.Dividends),
		formatAmount(windowStats.Coupons),
		formatAmount(windowStats.TransfersIn),
		formatAmount(windowStats.TransfersOut),
		formatAmount(windowStats.Other),
		formatAmount(windowStats.NetTrading),
		formatAmount(windowStats.Total),
		formatAmount(windowStats.CumulativeTotal),
	}
}
