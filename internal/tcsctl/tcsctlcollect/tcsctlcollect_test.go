// Copyright 2026 Peter Edge
//
// All rights reserved.

package tcsctlcollect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/bufdev/tcsctl/internal/pkg/tinkoffinvest"
	"github.com/bufdev/tcsctl/internal/standard/xtime"
	"github.com/bufdev/tcsctl/internal/tcsctl/tcsctldoc"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var moscow = time.FixedZone("MSK", 3*60*60)

// fakeClient serves scripted pages in order, recording every request.
type fakeClient struct {
	pages    []*tinkoffinvest.OperationsPage
	errAt    int
	err      error
	requests []*tinkoffinvest.GetOperationsPageRequest
}

func newFakeClient(pages ...*tinkoffinvest.OperationsPage) *fakeClient {
	return &fakeClient{pages: pages, errAt: -1}
}

func (f *fakeClient) GetOperationsPage(_ context.Context, request *tinkoffinvest.GetOperationsPageRequest) (*tinkoffinvest.OperationsPage, error) {
	index := len(f.requests)
	f.requests = append(f.requests, request)
	if f.err != nil && index == f.errAt {
		return nil, f.err
	}
	if index >= len(f.pages) {
		return nil, fmt.Errorf("unexpected request %d", index+1)
	}
	return f.pages[index], nil
}

func newTestCollector(client tinkoffinvest.Client) Collector {
	return NewCollector(
		slog.New(slog.DiscardHandler),
		client,
		"account-1",
		xtime.Date{Year: 2024, Month: time.January, Day: 1},
		xtime.Date{Year: 2024, Month: time.June, Day: 30},
		moscow,
		0,
	)
}

func rubItem(id string, date time.Time, operationType string, units int64, nano int32) tinkoffinvest.OperationItem {
	return tinkoffinvest.OperationItem{
		ID:      id,
		Date:    date,
		Type:    operationType,
		State:   tinkoffinvest.OperationStateExecuted,
		Payment: &tinkoffinvest.MoneyValue{Currency: "rub", Units: units, Nano: nano},
	}
}

func TestCollectSinglePage(t *testing.T) {
	t.Parallel()

	client := newFakeClient(&tinkoffinvest.OperationsPage{
		Items: []tinkoffinvest.OperationItem{
			{
				ID:            "op-1",
				Date:          time.Date(2024, time.January, 15, 10, 30, 0, 0, time.UTC),
				Type:          "OPERATION_TYPE_BUY",
				Name:          "Gazprom",
				InstrumentUID: "uid-1",
				Payment:       &tinkoffinvest.MoneyValue{Currency: "rub", Units: -1000, Nano: -500000000},
			},
			rubItem("op-2", time.Date(2024, time.February, 1, 9, 0, 0, 0, time.UTC), "OPERATION_TYPE_INPUT", 5000, 0),
			rubItem("op-3", time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC), "OPERATION_TYPE_DIVIDEND_TAX", -13, 0),
		},
	})
	document, err := newTestCollector(client).Collect(t.Context())
	require.NoError(t, err)

	require.Len(t, client.requests, 1)
	request := client.requests[0]
	require.Equal(t, "account-1", request.AccountID)
	require.True(t, request.From.Equal(time.Date(2024, time.January, 1, 0, 0, 0, 0, moscow)), "from %v", request.From)
	// The until date is inclusive: the provider receives the midnight after it.
	require.True(t, request.To.Equal(time.Date(2024, time.July, 1, 0, 0, 0, 0, moscow)), "to %v", request.To)
	require.Empty(t, request.Cursor)
	require.Equal(t, tinkoffinvest.OperationStateExecuted, request.State)
	require.False(t, request.WithoutTrades)

	require.Equal(t, "account-1", document.Meta.AccountID)
	require.Equal(t, "MSK", document.Meta.Timezone)
	require.NotEmpty(t, document.Meta.RunID)
	require.True(t, document.Meta.Since.Equal(time.Date(2024, time.January, 1, 0, 0, 0, 0, moscow)))
	require.True(t, document.Meta.Until.Equal(time.Date(2024, time.July, 1, 0, 0, 0, 0, moscow)))
	require.False(t, document.Meta.GeneratedAt.IsZero())

	require.Len(t, document.Operations, 3)
	first := document.Operations[0]
	require.Equal(t, "op-1", first.ID)
	require.Equal(t, tcsctldoc.KindBuy, first.Kind)
	require.True(t, first.IsTrade)
	require.Equal(t, "RUB", first.Currency)
	require.Equal(t, "uid-1", first.InstrumentID)
	require.Equal(t, "Gazprom", first.Instrument)
	require.True(t, decimal.RequireFromString("-1000.5").Equal(first.Amount))
	// Timestamps are rendered in the collection timezone.
	require.Equal(t, "MSK", first.Timestamp.Location().String())
	require.True(t, first.Timestamp.Equal(time.Date(2024, time.January, 15, 13, 30, 0, 0, moscow)))

	require.Equal(t, tcsctldoc.KindTransfer, document.Operations[1].Kind)
	require.Equal(t, tcsctldoc.KindTax, document.Operations[2].Kind)
}

func TestCollectWalksAllPages(t *testing.T) {
	t.Parallel()

	client := newFakeClient(
		&tinkoffinvest.OperationsPage{
			HasNext:    true,
			NextCursor: "cursor-1",
			Items: []tinkoffinvest.OperationItem{
				rubItem("op-3", time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), "OPERATION_TYPE_SELL", 1200, 0),
			},
		},
		&tinkoffinvest.OperationsPage{
			HasNext:    true,
			NextCursor: "cursor-2",
			Items: []tinkoffinvest.OperationItem{
				rubItem("op-1", time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC), "OPERATION_TYPE_BUY", -1000, 0),
			},
		},
		&tinkoffinvest.OperationsPage{
			Items: []tinkoffinvest.OperationItem{
				rubItem("op-2", time.Date(2024, time.February, 5, 0, 0, 0, 0, time.UTC), "OPERATION_TYPE_BROKER_FEE", -50, 0),
			},
		},
	)
	document, err := newTestCollector(client).Collect(t.Context())
	require.NoError(t, err)

	// Every page was fetched, each with the cursor the previous page handed out.
	require.Len(t, client.requests, 3)
	require.Empty(t, client.requests[0].Cursor)
	require.Equal(t, "cursor-1", client.requests[1].Cursor)
	require.Equal(t, "cursor-2", client.requests[2].Cursor)

	// No loss, no duplication, deterministic timestamp order.
	require.Len(t, document.Operations, 3)
	require.Equal(t, "op-1", document.Operations[0].ID)
	require.Equal(t, "op-2", document.Operations[1].ID)
	require.Equal(t, "op-3", document.Operations[2].ID)
}

func TestCollectEmptyFeed(t *testing.T) {
	t.Parallel()

	client := newFakeClient(&tinkoffinvest.OperationsPage{})
	document, err := newTestCollector(client).Collect(t.Context())
	require.NoError(t, err)
	require.Len(t, client.requests, 1)
	require.NotNil(t, document.Operations)
	require.Empty(t, document.Operations)
	require.Equal(t, "account-1", document.Meta.AccountID)
}

func TestCollectDeduplicatesAcrossPages(t *testing.T) {
	t.Parallel()

	duplicated := rubItem("op-1", time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC), "OPERATION_TYPE_BUY", -100, 0)
	client := newFakeClient(
		&tinkoffinvest.OperationsPage{
			HasNext:    true,
			NextCursor: "cursor-1",
			Items:      []tinkoffinvest.OperationItem{duplicated},
		},
		&tinkoffinvest.OperationsPage{
			Items: []tinkoffinvest.OperationItem{
				duplicated,
				rubItem("op-2", time.Date(2024, time.January, 6, 0, 0, 0, 0, time.UTC), "OPERATION_TYPE_SELL", 120, 0),
			},
		},
	)
	document, err := newTestCollector(client).Collect(t.Context())
	require.NoError(t, err)
	require.Len(t, document.Operations, 2)
	require.Equal(t, "op-1", document.Operations[0].ID)
	require.Equal(t, "op-2", document.Operations[1].ID)
}

func TestCollectSkipsCashlessKeepsZeroAmount(t *testing.T) {
	t.Parallel()

	client := newFakeClient(&tinkoffinvest.OperationsPage{
		Items: []tinkoffinvest.OperationItem{
			// No payment value at all: nothing to record.
			{
				ID:   "op-cashless",
				Date: time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC),
				Type: "OPERATION_TYPE_DELIVERY",
			},
			// A present zero payment is still a record.
			rubItem("op-zero", time.Date(2024, time.January, 6, 0, 0, 0, 0, time.UTC), "OPERATION_TYPE_OVERNIGHT", 0, 0),
		},
	})
	document, err := newTestCollector(client).Collect(t.Context())
	require.NoError(t, err)
	require.Len(t, document.Operations, 1)
	require.Equal(t, "op-zero", document.Operations[0].ID)
	require.True(t, document.Operations[0].Amount.IsZero())
}

func TestCollectMissingTimestampIsFatal(t *testing.T) {
	t.Parallel()

	client := newFakeClient(&tinkoffinvest.OperationsPage{
		Items: []tinkoffinvest.OperationItem{
			{
				ID:      "op-9",
				Type:    "OPERATION_TYPE_BUY",
				Payment: &tinkoffinvest.MoneyValue{Currency: "rub", Units: -100},
			},
		},
	})
	_, err := newTestCollector(client).Collect(t.Context())
	require.Error(t, err)
	require.Contains(t, err.Error(), `operation "op-9" has no timestamp`)
}

func TestCollectEmptyNextCursorIsProtocolError(t *testing.T) {
	t.Parallel()

	client := newFakeClient(
		&tinkoffinvest.OperationsPage{
			HasNext:    true,
			NextCursor: "cursor-1",
			Items: []tinkoffinvest.OperationItem{
				rubItem("op-1", time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC), "OPERATION_TYPE_BUY", -100, 0),
			},
		},
		&tinkoffinvest.OperationsPage{HasNext: true},
	)
	_, err := newTestCollector(client).Collect(t.Context())
	require.Error(t, err)
	require.Contains(t, err.Error(), "pagination protocol error")
	require.Contains(t, err.Error(), `"cursor-1"`)
}

func TestCollectRepeatedCursorIsProtocolError(t *testing.T) {
	t.Parallel()

	client := newFakeClient(
		&tinkoffinvest.OperationsPage{HasNext: true, NextCursor: "cursor-1"},
		&tinkoffinvest.OperationsPage{HasNext: true, NextCursor: "cursor-1"},
	)
	_, err := newTestCollector(client).Collect(t.Context())
	require.Error(t, err)
	require.Contains(t, err.Error(), "pagination protocol error")
	require.Contains(t, err.Error(), `repeats the last consumed cursor "cursor-1"`)
}

func TestCollectPageFetchErrorPropagates(t *testing.T) {
	t.Parallel()

	client := newFakeClient(
		&tinkoffinvest.OperationsPage{HasNext: true, NextCursor: "cursor-1"},
	)
	client.errAt = 1
	client.err = errors.New("gateway unavailable")
	_, err := newTestCollector(client).Collect(t.Context())
	require.Error(t, err)
	require.Contains(t, err.Error(), "fetching operations page 2")
	require.Contains(t, err.Error(), "gateway unavailable")
}

func TestCollectValidatesInputs(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.DiscardHandler)
	client := newFakeClient()

	_, err := NewCollector(logger, client, "", xtime.Date{Year: 2024, Month: time.January, Day: 1}, xtime.Date{Year: 2024, Month: time.June, Day: 30}, moscow, 0).Collect(t.Context())
	require.Error(t, err)
	require.Contains(t, err.Error(), "account id is required")

	_, err = NewCollector(logger, client, "account-1", xtime.Date{}, xtime.Date{}, moscow, 0).Collect(t.Context())
	require.Error(t, err)
	require.Contains(t, err.Error(), "since and until are required")

	_, err = NewCollector(logger, client, "account-1", xtime.Date{Year: 2024, Month: time.June, Day: 30}, xtime.Date{Year: 2024, Month: time.January, Day: 1}, moscow, 0).Collect(t.Context())
	require.Error(t, err)
	require.Contains(t, err.Error(), "is before since")

	require.Empty(t, client.requests)
}
