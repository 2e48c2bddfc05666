// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package tcsctlcmd provides shared wiring for tcsctl commands: reading the
// configuration, extracting the Tinkoff Invest API token from the
// environment, constructing API clients and resolving shared paths.
package tcsctlcmd

import (
	"errors"
	"fmt"
	"time"

	"buf.build/go/app/appcmd"
	"buf.build/go/app/appext"
	"github.com/bufdev/tcsctl/internal/pkg/tinkoffinvest"
	"github.com/bufdev/tcsctl/internal/standard/xos"
	"github.com/bufdev/tcsctl/internal/standard/xtime"
	"github.com/bufdev/tcsctl/internal/tcsctl/tcsctlcollect"
	"github.com/bufdev/tcsctl/internal/tcsctl/tcsctlconfig"
	"github.com/bufdev/tcsctl/internal/tcsctl/tcsctldoc"
	"github.com/bufdev/tcsctl/internal/tcsctl/tcsctlpath"
	"github.com/bufdev/tcsctl/internal/tcsctl/tcsctlstats"
)

// TokenEnvVar is the environment variable name for the Tinkoff Invest API token.
//
// The token is deliberately never part of the configuration file. A .env file
// in the working directory is loaded into the environment at startup.
const TokenEnvVar = "TINKOFF_TOKEN"

const (
	// InFlagName is the shared flag name for the input document path.
	InFlagName = "in"
	// WindowFlagName is the shared flag name for the calendar window period.
	WindowFlagName = "window"
	// SinceFlagName is the shared flag name for the start date.
	SinceFlagName = "since"
	// UntilFlagName is the shared flag name for the inclusive end date.
	UntilFlagName = "until"
)

// NewCollector constructs a Collector from the appext container by reading
// the config file, extracting the API token from the environment, and
// creating the API client.
//
// accountID overrides the configured account when non-empty.
func NewCollector(
	container appext.Container,
	accountID string,
	since xtime.Date,
	until xtime.Date,
	limit int32,
) (tcsctlcollect.Collector, error) {
	config, err := tcsctlconfig.ReadConfig(container.ConfigDirPath())
	if err != nil {
		return nil, err
	}
	client, err := NewAPIClient(container, config)
	if err != nil {
		return nil, err
	}
	if accountID == "" {
		accountID = config.AccountID
	}
	return tcsctlcollect.NewCollector(
		container.Logger(),
		client,
		accountID,
		since,
		until,
		config.Location,
		limit,
	), nil
}

// NewAPIClient constructs a Tinkoff Invest API client from the appext
// container and the configuration.
func NewAPIClient(container appext.Container, config *tcsctlconfig.Config) (tinkoffinvest.Client, error) {
	token := container.Env(TokenEnvVar)
	if token == "" {
		return nil, errors.New("TINKOFF_TOKEN environment variable is required, set it to your Tinkoff Invest API token or put it in a .env file (see \"tcsctl --help\" for details)")
	}
	return tinkoffinvest.NewClient(
		container.Logger(),
		token,
		tinkoffinvest.ClientWithEndpoint(config.Endpoint),
	), nil
}

// DocumentPath resolves the operations document path: the explicit flag value
// with ~ expanded, or the default path under the container data directory.
func DocumentPath(container appext.Container, flagValue string) (string, error) {
	if flagValue != "" {
		return xos.ExpandHome(flagValue)
	}
	return tcsctlpath.DefaultDocumentPath(container.DataDirPath()), nil
}

// ResolveLocation returns the timezone operations should be windowed in: the
// document's own timezone when it carries one, the configured timezone
// otherwise. A document collected by tcsctl always carries its timezone, so
// the configuration is only consulted for foreign documents.
func ResolveLocation(container appext.Container, document *tcsctldoc.Document) (*time.Location, error) {
	if timezoneName := document.Meta.Timezone; timezoneName != "" {
		location, err := time.LoadLocation(timezoneName)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %q in document meta: %w", timezoneName, err)
		}
		return location, nil
	}
	config, err := tcsctlconfig.ReadConfig(container.ConfigDirPath())
	if err != nil {
		return nil, err
	}
	return config.Location, nil
}

// ParseWindowFlags parses the --window/--since/--until flag values shared by
// the aggregation commands. Empty date values yield zero dates.
func ParseWindowFlags(windowValue string, sinceValue string, untilValue string) (xtime.Period, xtime.Date, xtime.Date, error) {
	var since, until xtime.Date
	period, err := xtime.ParsePeriod(windowValue)
	if err != nil {
		return 0, since, until, appcmd.NewInvalidArgumentErrorf("invalid --%s: %v", WindowFlagName, err)
	}
	if sinceValue != "" {
		since, err = xtime.ParseDate(sinceValue)
		if err != nil {
			return 0, since, until, appcmd.NewInvalidArgumentErrorf("invalid --%s date %q, expected YYYY-MM-DD format: %v", SinceFlagName, sinceValue, err)
		}
	}
	if untilValue != "" {
		until, err = xtime.ParseDate(untilValue)
		if err != nil {
			return 0, since, until, appcmd.NewInvalidArgumentErrorf("invalid --%s date %q, expected YYYY-MM-DD format: %v", UntilFlagName, untilValue, err)
		}
	}
	return period, since, until, nil
}

// AggregateDocument reads the operations document at documentPath and
// aggregates it into calendar windows of the given period.
//
// since and until are an inclusive civil date range; a zero date leaves the
// corresponding bound to be derived from the document itself.
func AggregateDocument(
	container appext.Container,
	documentPath string,
	period xtime.Period,
	since xtime.Date,
	until xtime.Date,
) (*tcsctldoc.Document, *tcsctlstats.Result, error) {
	document, err := tcsctldoc.Read(documentPath)
	if err != nil {
		return nil, nil, err
	}
	location, err := ResolveLocation(container, document)
	if err != nil {
		return nil, nil, err
	}
	var sinceTime, untilTime time.Time
	if !since.IsZero() {
		sinceTime = since.In(location)
	}
	if !until.IsZero() {
		// The until date is inclusive, aggregation bounds are half-open.
		untilTime = until.AddDays(1).In(location)
	}
	result, err := tcsctlstats.Compute(document, period, location, sinceTime, untilTime)
	if err != nil {
		return nil, nil, err
	}
	return document, result, nil
}
