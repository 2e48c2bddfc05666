// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package tcsctlstats computes per-window aggregates from a collected
// operations document.
//
// Operations are bucketed into half-open calendar windows [start, end) in a
// single timezone. Every operation lands in exactly one window and every
// window inside the bounds is emitted even when empty, so window totals
// always sum to the document total and the timeline has no gaps.
package tcsctlstats

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bufdev/tcsctl/internal/standard/xtime"
	"github.com/bufdev/tcsctl/internal/tcsctl/tcsctldoc"
	"github.com/shopspring/decimal"
)

// TotalIdentifier is the identifier of the grand total row.
const TotalIdentifier = "TOTAL"

// WindowStats contains the aggregates for a single calendar window.
//
// All monetary fields are signed sums of operation amounts, which carry the
// provider's sign convention: buys, fees, taxes and outgoing transfers are
// negative, sells, dividends, coupons and incoming transfers are positive.
type WindowStats struct {
	// Window is the half-open time interval the stats cover.
	Window xtime.Window `json:"window"`
	// Identifier is the short window label, e.g. "2024-01" for a month.
	Identifier string `json:"identifier"`
	// Currency is the ISO currency code shared by all operations.
	Currency string `json:"currency,omitempty"`
	// Operations is the number of operations in the window.
	Operations int `json:"operations"`
	// Turnover is the sum of absolute trade amounts.
	Turnover decimal.Decimal `json:"turnover"`
	// BuyCash is the sum of buy amounts.
	BuyCash decimal.Decimal `json:"buy_cash"`
	// SellCash is the sum of sell amounts.
	SellCash decimal.Decimal `json:"sell_cash"`
	// Fees is the sum of fee and commission amounts.
	Fees decimal.Decimal `json:"fees"`
	// Taxes is the sum of tax amounts.
	Taxes decimal.Decimal `json:"taxes"`
	// Dividends is the sum of dividend amounts.
	Dividends decimal.Decimal `json:"dividends"`
	// Coupons is the sum of coupon amounts.
	Coupons decimal.Decimal `json:"coupons"`
	// TransfersIn is the sum of non-negative transfer amounts.
	TransfersIn decimal.Decimal `json:"transfers_in"`
	// TransfersOut is the sum of negative transfer amounts.
	TransfersOut decimal.Decimal `json:"transfers_out"`
	// Other is the sum of amounts of unclassified operations.
	Other decimal.Decimal `json:"other"`
	// NetTrading is the trading result excluding transfers and unclassified
	// operations: buys + sells + fees + taxes + dividends + coupons.
	NetTrading decimal.Decimal `json:"net_trading"`
	// Total is the signed sum of every operation amount in the window.
	Total decimal.Decimal `json:"total"`
	// CumulativeTotal is the running sum of Total across windows.
	CumulativeTotal decimal.Decimal `json:"cumulative_total"`
	// Instruments is the per-instrument breakdown, net descending.
	Instruments []InstrumentStats `json:"instruments,omitempty"`
}

// InstrumentStats contains the per-instrument aggregates within a window.
type InstrumentStats struct {
	// InstrumentID is the instrument identifier, empty for operations not
	// tied to an instrument (e.g. account transfers).
	InstrumentID string `json:"instrument_id,omitempty"`
	// Instrument is the human-readable instrument name.
	Instrument string `json:"instrument,omitempty"`
	// Operations is the number of operations for the instrument.
	Operations int `json:"operations"`
	// Net is the signed sum of operation amounts for the instrument.
	Net decimal.Decimal `json:"net"`
}

// Result contains the full aggregation of an operations document.
type Result struct {
	// Period is the calendar period used for windowing.
	Period xtime.Period `json:"period"`
	// Timezone is the IANA timezone name the windows were computed in.
	Timezone string `json:"timezone"`
	// Currency is the ISO currency code shared by all operations, empty for
	// a document with no operations.
	Currency string `json:"currency,omitempty"`
	// Since is the inclusive start of the aggregated range.
	Since time.Time `json:"since"`
	// Until is the exclusive end of the aggregated range.
	Until time.Time `json:"until"`
	// Windows is the continuous window timeline in chronological order.
	Windows []WindowStats `json:"windows"`
	// Total is the grand total row summing all windows.
	Total WindowStats `json:"total"`
}

// WindowStatsHeaders returns the column headers for table/CSV output.
func WindowStatsHeaders() []string {
	return []string{
		"WINDOW",
		"OPS",
		"TURNOVER",
		"BUY",
		"SELL",
		"FEES",
		"TAXES",
		"DIVIDENDS",
		"COUPONS",
		"TRANSFERS IN",
		"TRANSFERS OUT",
		"OTHER",
		"NET TRADING",
		"TOTAL",
		"CUMULATIVE",
	}
}

// WindowStatsToRow converts a WindowStats to a string slice for table/CSV output.
func WindowStatsToRow(windowStats *WindowStats) []string {
	return []string{
		windowStats.Identifier,
		fmt.Sprintf("%d", windowStats.Operations),
		windowStats.Turnover.String(),
		windowStats.BuyCash.String(),
		windowStats.SellCash.String(),
		windowStats.Fees.String(),
		windowStats.Taxes.String(),
		windowStats.Dividends.String(),
		windowStats.Coupons.String(),
		windowStats.TransfersIn.String(),
		windowStats.TransfersOut.String(),
		windowStats.Other.String(),
		windowStats.NetTrading.String(),
		windowStats.Total.String(),
		windowStats.CumulativeTotal.String(),
	}
}

// Compute buckets the document's operations into calendar windows of the
// given period computed in loc, and aggregates each window.
//
// A zero since or until is derived from the earliest or latest operation
// timestamp rounded outward to a period boundary, so derived bounds always
// cover every operation. Explicit bounds are used as-is: the first and last
// windows clamp to them, and an operation outside [since, until) is an error
// rather than silently dropped.
//
// All operations must share one currency. An operation with no timestamp or
// with a currency differing from the first operation's is an error.
func Compute(
	document *tcsctldoc.Document,
	period xtime.Period,
	loc *time.Location,
	since time.Time,
	until time.Time,
) (*Result, error) {
	if document == nil {
		return nil, errors.New("document is required")
	}
	if loc == nil {
		return nil, errors.New("location is required")
	}

	// Validate operations and determine the shared currency and the
	// timestamp extremes before any windowing decisions.
	var currency string
	var minTimestamp time.Time
	var maxTimestamp time.Time
	for _, operation := range document.Operations {
		if operation.Timestamp.IsZero() {
			return nil, fmt.Errorf("operation %q has no timestamp", operation.ID)
		}
		if currency == "" {
			currency = operation.Currency
		} else if operation.Currency != currency {
			return nil, fmt.Errorf(
				"operation %q has currency %s but the document uses %s",
				operation.ID,
				operation.Currency,
				currency,
			)
		}
		if minTimestamp.IsZero() || operation.Timestamp.Before(minTimestamp) {
			minTimestamp = operation.Timestamp
		}
		if maxTimestamp.IsZero() || operation.Timestamp.After(maxTimestamp) {
			maxTimestamp = operation.Timestamp
		}
	}

	explicitSince := !since.IsZero()
	explicitUntil := !until.IsZero()
	if explicitSince {
		since = since.In(loc)
	} else if !minTimestamp.IsZero() {
		since = xtime.StartOfPeriod(minTimestamp, period, loc)
	}
	if explicitUntil {
		until = until.In(loc)
	} else if !maxTimestamp.IsZero() {
		until = xtime.NextPeriodStart(xtime.StartOfPeriod(maxTimestamp, period, loc), period)
	}
	// No operations and no explicit bound to derive a timeline from.
	if since.IsZero() && until.IsZero() {
		return &Result{
			Period:   period,
			Timezone: loc.String(),
			Total:    WindowStats{Identifier: TotalIdentifier},
		}, nil
	}
	// Bounds can only be partially derived when the document is empty.
	if since.IsZero() || until.IsZero() {
		return nil, errors.New("document has no operations, both since and until are required to build a timeline")
	}
	if !since.Before(until) {
		return nil, fmt.Errorf(
			"invalid range: since %s is not before until %s",
			since.Format(time.RFC3339),
			until.Format(time.RFC3339),
		)
	}

	// Build the continuous window timeline, then bucket each operation into
	// exactly one window by binary search on window starts.
	windows := xtime.Windows(since, until, period, loc)
	windowStats := make([]WindowStats, len(windows))
	for i, window := range windows {
		windowStats[i] = WindowStats{
			Window:     window,
			Identifier: window.Identifier(period),
			Currency:   currency,
		}
	}
	instrumentIndexes := make([]map[string]int, len(windows))
	for _, operation := range document.Operations {
		timestamp := operation.Timestamp.In(loc)
		if timestamp.Before(since) || !timestamp.Before(until) {
			return nil, fmt.Errorf(
				"operation %q at %s is outside the requested range [%s, %s)",
				operation.ID,
				timestamp.Format(time.RFC3339),
				since.Format(time.RFC3339),
				until.Format(time.RFC3339),
			)
		}
		i := sort.Search(len(windows), func(i int) bool {
			return windows[i].Start.After(timestamp)
		}) - 1
		if i < 0 || !windows[i].Contains(timestamp) {
			return nil, fmt.Errorf(
				"operation %q at %s does not fall within any window",
				operation.ID,
				timestamp.Format(time.RFC3339),
			)
		}
		if instrumentIndexes[i] == nil {
			instrumentIndexes[i] = make(map[string]int)
		}
		applyOperation(&windowStats[i], instrumentIndexes[i], operation)
	}

	// Finalize derived fields and accumulate the grand total row.
	total := WindowStats{
		Window:     xtime.Window{Start: since, End: until},
		Identifier: TotalIdentifier,
		Currency:   currency,
	}
	var cumulativeTotal decimal.Decimal
	for i := range windowStats {
		stats := &windowStats[i]
		stats.NetTrading = netTrading(stats)
		cumulativeTotal = cumulativeTotal.Add(stats.Total)
		stats.CumulativeTotal = cumulativeTotal
		sort.SliceStable(stats.Instruments, func(a, b int) bool {
			if !stats.Instruments[a].Net.Equal(stats.Instruments[b].Net) {
				return stats.Instruments[a].Net.GreaterThan(stats.Instruments[b].Net)
			}
			return stats.Instruments[a].InstrumentID < stats.Instruments[b].InstrumentID
		})
		total.Operations += stats.Operations
		total.Turnover = total.Turnover.Add(stats.Turnover)
		total.BuyCash = total.BuyCash.Add(stats.BuyCash)
		total.SellCash = total.SellCash.Add(stats.SellCash)
		total.Fees = total.Fees.Add(stats.Fees)
		total.Taxes = total.Taxes.Add(stats.Taxes)
		total.Dividends = total.Dividends.Add(stats.Dividends)
		total.Coupons = total.Coupons.Add(stats.Coupons)
		total.TransfersIn = total.TransfersIn.Add(stats.TransfersIn)
		total.TransfersOut = total.TransfersOut.Add(stats.TransfersOut)
		total.Other = total.Other.Add(stats.Other)
		total.Total = total.Total.Add(stats.Total)
	}
	total.NetTrading = netTrading(&total)
	total.CumulativeTotal = total.Total

	return &Result{
		Period:   period,
		Timezone: loc.String(),
		Currency: currency,
		Since:    since,
		Until:    until,
		Windows:  windowStats,
		Total:    total,
	}, nil
}

func applyOperation(
	stats *WindowStats,
	instrumentIndex map[string]int,
	operation tcsctldoc.Operation,
) {
	stats.Operations++
	stats.Total = stats.Total.Add(operation.Amount)
	switch operation.Kind {
	case tcsctldoc.KindBuy:
		stats.BuyCash = stats.BuyCash.Add(operation.Amount)
	case tcsctldoc.KindSell:
		stats.SellCash = stats.SellCash.Add(operation.Amount)
	case tcsctldoc.KindFee:
		stats.Fees = stats.Fees.Add(operation.Amount)
	case tcsctldoc.KindTax:
		stats.Taxes = stats.Taxes.Add(operation.Amount)
	case tcsctldoc.KindDividend:
		stats.Dividends = stats.Dividends.Add(operation.Amount)
	case tcsctldoc.KindCoupon:
		stats.Coupons = stats.Coupons.Add(operation.Amount)
	case tcsctldoc.KindTransfer:
		if operation.Amount.Sign() >= 0 {
			stats.TransfersIn = stats.TransfersIn.Add(operation.Amount)
		} else {
			stats.TransfersOut = stats.TransfersOut.Add(operation.Amount)
		}
	default:
		stats.Other = stats.Other.Add(operation.Amount)
	}
	if operation.IsTrade {
		stats.Turnover = stats.Turnover.Add(operation.Amount.Abs())
	}
	i, ok := instrumentIndex[operation.InstrumentID]
	if !ok {
		i = len(stats.Instruments)
		instrumentIndex[operation.InstrumentID] = i
		stats.Instruments = append(stats.Instruments, InstrumentStats{
			InstrumentID: operation.InstrumentID,
			Instrument:   operation.Instrument,
		})
	}
	instrumentStats := &stats.Instruments[i]
	instrumentStats.Operations++
	instrumentStats.Net = instrumentStats.Net.Add(operation.Amount)
	if instrumentStats.Instrument == "" {
		instrumentStats.Instrument = operation.Instrument
	}
}

func netTrading(stats *WindowStats) decimal.Decimal {
	return stats.BuyCash.
		Add(stats.SellCash).
		Add(stats.Fees).
		Add(stats.Taxes).
		Add(stats.Dividends).
		Add(stats.Coupons)
}

