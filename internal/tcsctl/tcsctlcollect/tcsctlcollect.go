// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package tcsctlcollect provides the collection orchestrator: it walks the
// provider's cursor-paginated operations feed to completion and produces a
// normalized operations document.
package tcsctlcollect

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/bufdev/tcsctl/internal/pkg/tinkoffinvest"
	"github.com/bufdev/tcsctl/internal/standard/xtime"
	"github.com/bufdev/tcsctl/internal/tcsctl/tcsctldoc"
	"github.com/google/uuid"
)

// Collector is the interface for collecting an account's operations.
type Collector interface {
	// Collect walks the operations feed to completion and returns the
	// normalized document. The document exists only once the whole walk has
	// succeeded: a failed run produces nothing.
	Collect(ctx context.Context) (*tcsctldoc.Document, error)
}

// NewCollector creates a new Collector.
//
// The since and until dates are an inclusive civil date range interpreted in
// location: collection covers midnight of since up to (but excluding)
// midnight after until. The limit is the page size requested from the
// provider; zero means the provider maximum.
func NewCollector(
	logger *slog.Logger,
	client tinkoffinvest.Client,
	accountID string,
	since xtime.Date,
	until xtime.Date,
	location *time.Location,
	limit int32,
) Collector {
	return &collector{
		logger:    logger,
		client:    client,
		accountID: accountID,
		since:     since,
		until:     until,
		location:  location,
		limit:     limit,
	}
}

// *** PRIVATE ***

type collector struct {
	logger    *slog.Logger
	client    tinkoffinvest.Client
	accountID string
	since     xtime.Date
	until     xtime.Date
	location  *time.Location
	limit     int32
}

func (c *collector) Collect(ctx context.Context) (*tcsctldoc.Document, error) {
	// Step 1: Interpret the inclusive civil date range as instants in the
	// configured timezone. The until date is inclusive, so the provider
	// receives the exclusive midnight after it.
	if c.accountID == "" {
		return nil, errors.New("account id is required")
	}
	if c.since.IsZero() || c.until.IsZero() {
		return nil, errors.New("since and until are required")
	}
	if c.until.Before(c.since) {
		return nil, fmt.Errorf("until %v is before since %v", c.until, c.since)
	}
	from := c.since.In(c.location)
	to := c.until.AddDays(1).In(c.location)
	runID := uuid.NewString()
	logger := c.logger.With("run_id", runID)
	logger.Info("collecting operations", "account_id", c.accountID, "from", from, "to", to)

	// Step 2: Walk the feed to completion, normalizing items as pages arrive.
	operations := make([]tcsctldoc.Operation, 0)
	seenIDs := make(map[string]bool)
	var cashlessSkipped, duplicatesSkipped int
	for item, err := range c.operationItems(ctx, from, to) {
		if err != nil {
			return nil, err
		}
		if item.Payment == nil {
			// Cashless records (instrument deliveries, corporate actions)
			// carry no monetary amount and cannot contribute to cash flow.
			logger.Debug("skipping cashless operation", "id", item.ID, "type", item.Type)
			cashlessSkipped++
			continue
		}
		if item.Date.IsZero() {
			return nil, fmt.Errorf("operation %q has no timestamp", item.ID)
		}
		if item.ID != "" {
			if seenIDs[item.ID] {
				logger.Warn("skipping duplicate operation", "id", item.ID)
				duplicatesSkipped++
				continue
			}
			seenIDs[item.ID] = true
		}
		operations = append(operations, c.normalizeItem(item))
	}
	logger.Info(
		"operations collected",
		"count", len(operations),
		"cashless_skipped", cashlessSkipped,
		"duplicates_skipped", duplicatesSkipped,
	)

	// Step 3: Sort by timestamp, then id, for a deterministic document
	// regardless of feed order.
	sort.SliceStable(operations, func(i int, j int) bool {
		if !operations[i].Timestamp.Equal(operations[j].Timestamp) {
			return operations[i].Timestamp.Before(operations[j].Timestamp)
		}
		return operations[i].ID < operations[j].ID
	})

	// Step 4: Stamp the document meta. The timezone travels with the data so
	// aggregation aligns windows the same way collection interpreted the range.
	return &tcsctldoc.Document{
		Meta: tcsctldoc.Meta{
			RunID:       runID,
			AccountID:   c.accountID,
			Timezone:    c.location.String(),
			Since:       from,
			Until:       to,
			GeneratedAt: time.Now().In(c.location),
		},
		Operations: operations,
	}, nil
}

// operationItems returns a lazy sequence over every item in the feed for the
// range. Pages are fetched on demand as the sequence is consumed; the
// sequence ends after the provider reports no further pages. Errors are
// yielded as the second value and terminate the sequence.
func (c *collector) operationItems(ctx context.Context, from time.Time, to time.Time) iter.Seq2[*tinkoffinvest.OperationItem, error] {
	return func(yield func(*tinkoffinvest.OperationItem, error) bool) {
		cursor := ""
		for page := 1; ; page++ {
			operationsPage, err := c.client.GetOperationsPage(ctx, &tinkoffinvest.GetOperationsPageRequest{
				AccountID: c.accountID,
				From:      from,
				To:        to,
				Cursor:    cursor,
				Limit:     c.limit,
				State:     tinkoffinvest.OperationStateExecuted,
			})
			if err != nil {
				yield(nil, fmt.Errorf("fetching operations page %d: %w", page, err))
				return
			}
			c.logger.Debug(
				"operations page fetched",
				"page", page,
				"items", len(operationsPage.Items),
				"has_next", operationsPage.HasNext,
			)
			for i := range operationsPage.Items {
				if !yield(&operationsPage.Items[i], nil) {
					return
				}
			}
			if !operationsPage.HasNext {
				return
			}
			// The cursor protocol is strictly forward-only. A missing or
			// repeated next cursor would walk forever, so fail instead,
			// naming the last cursor consumed.
			if operationsPage.NextCursor == "" {
				yield(nil, fmt.Errorf("pagination protocol error: response advertises more pages with an empty next cursor, last consumed cursor %q", cursor))
				return
			}
			if operationsPage.NextCursor == cursor {
				yield(nil, fmt.Errorf("pagination protocol error: next cursor repeats the last consumed cursor %q", cursor))
				return
			}
			cursor = operationsPage.NextCursor
		}
	}
}

// normalizeItem converts a provider item to an operation record.
func (c *collector) normalizeItem(item *tinkoffinvest.OperationItem) tcsctldoc.Operation {
	kind := tcsctldoc.ClassifyOperationType(item.Type)
	return tcsctldoc.Operation{
		ID:           item.ID,
		Timestamp:    item.Date.In(c.location),
		Kind:         kind,
		Type:         item.Type,
		InstrumentID: instrumentIdentity(item),
		Instrument:   item.Name,
		Amount:       item.Payment.Decimal(),
		Currency:     normalizeCurrency(item.Payment.Currency),
		IsTrade:      kind.IsTrade(),
	}
}

// instrumentIdentity returns the first non-empty instrument identifier.
// Account-level operations such as cash transfers have none.
func instrumentIdentity(item *tinkoffinvest.OperationItem) string {
	for _, id := range []string{item.InstrumentUID, item.Figi, item.PositionUID} {
		if id != "" {
			return id
		}
	}
	return ""
}

// normalizeCurrency uppercases the provider's currency code. An empty code
// means the provider default, RUB.
func normalizeCurrency(currency string) string {
	if currency == "" {
		return "RUB"
	}
	return strings.ToUpper(currency)
}
