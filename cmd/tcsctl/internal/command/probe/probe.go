// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package probe implements the "probe" command for testing API connectivity and date ranges.
package probe

import (
	"context"
	"fmt"

	"buf.build/go/app/appcmd"
	"buf.build/go/app/appext"
	"github.com/bufdev/tcsctl/cmd/tcsctl/internal/tcsctlcmd"
	"github.com/bufdev/tcsctl/internal/pkg/tinkoffinvest"
	"github.com/bufdev/tcsctl/internal/standard/xtime"
	"github.com/bufdev/tcsctl/internal/tcsctl/tcsctlconfig"
	"github.com/spf13/pflag"
)

const (
	// sinceFlagName is the flag name for the start date.
	sinceFlagName = "since"
	// untilFlagName is the flag name for the end date.
	untilFlagName = "until"
	// accountIDFlagName is the flag name for the account id.
	accountIDFlagName = "account-id"
	// limitFlagName is the flag name for the page size.
	limitFlagName = "limit"
)

// NewCommand returns a new probe command for testing API connectivity and date ranges.
func NewCommand(name string, builder appext.SubCommandBuilder) *appcmd.Command {
	flags := newFlags()
	return &appcmd.Command{
		Use:   name,
		Short: "Probe the Tinkoff Invest API with a specific date range",
		Long: `Probe the Tinkoff Invest API with a specific date range.

Fetches a single page of the operations feed and prints the number of items
returned together with the pagination state. Does not write anything.`,
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
	// AccountID is the optional account id override.
	AccountID string
	// Limit is the page size.
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
	config, err := tcsctlconfig.ReadConfig(container.ConfigDirPath())
	if err != nil {
		return err
	}
	client, err := tcsctlcmd.NewAPIClient(container, config)
	if err != nil {
		return err
	}
	accountID := flags.AccountID
	if accountID == "" {
		accountID = config.AccountID
	}
	// The until date is inclusive, the feed range is half-open.
	from := since.In(config.Location)
	to := until.AddDays(1).In(config.Location)
	logger := container.Logger()
	logger.Info("probing API", "account_id", accountID, "from", since.String(), "to", until.String())
	page, err := client.GetOperationsPage(ctx, &tinkoffinvest.GetOperationsPageRequest{
		AccountID: accountID,
		From:      from,
		To:        to,
		Limit:     flags.Limit,
		State:     tinkoffinvest.OperationStateExecuted,
	})
	if err != nil {
		return fmt.Errorf("probe failed: %w", err)
	}
	_, err = fmt.Fprintf(
		container.Stdout(),
		"items: %d\nhas_next: %t\nnext_cursor: %s\n",
		len(page.Items),
		page.HasNext,
		page.NextCursor,
	)
	return err
}
