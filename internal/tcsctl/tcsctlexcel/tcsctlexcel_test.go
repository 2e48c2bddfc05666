// Copyright 2026 Peter Edge
//
// All rights reserved.

package tcsctlexcel

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bufdev/tcsctl/internal/standard/xtime"
	"github.com/bufdev/tcsctl/internal/tcsctl/tcsctldoc"
	"github.com/bufdev/tcsctl/internal/tcsctl/tcsctlstats"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var moscow = time.FixedZone("MSK", 3*60*60)

func newScenarioDocument() *tcsctldoc.Document {
	return &tcsctldoc.Document{
		Meta: tcsctldoc.Meta{
			RunID:       "run-1",
			AccountID:   "account-1",
			Timezone:    "MSK",
			Since:       time.Date(2024, 1, 1, 0, 0, 0, 0, moscow),
			Until:       time.Date(2024, 3, 1, 0, 0, 0, 0, moscow),
			GeneratedAt: time.Date(2024, 3, 2, 10, 0, 0, 0, moscow),
		},
		Operations: []tcsctldoc.Operation{
			{
				ID:           "op-1",
				Timestamp:    time.Date(2024, 1, 10, 12, 0, 0, 0, moscow),
				Kind:         tcsctldoc.KindBuy,
				Type:         "OPERATION_TYPE_BUY",
				InstrumentID: "uid-1",
				Instrument:   "Acme Shares",
				Amount:       decimal.RequireFromString("-1000"),
				Currency:     "RUB",
				IsTrade:      true,
			},
			{
				ID:           "op-2",
				Timestamp:    time.Date(2024, 1, 20, 15, 30, 0, 0, moscow),
				Kind:         tcsctldoc.KindSell,
				Type:         "OPERATION_TYPE_SELL",
				InstrumentID: "uid-1",
				Instrument:   "Acme Shares",
				Amount:       decimal.RequireFromString("1200"),
				Currency:     "RUB",
				IsTrade:      true,
			},
			{
				ID:        "op-3",
				Timestamp: time.Date(2024, 2, 5, 9, 0, 0, 0, moscow),
				Kind:      tcsctldoc.KindFee,
				Type:      "OPERATION_TYPE_BROKER_FEE",
				Amount:    decimal.RequireFromString("-50"),
				Currency:  "RUB",
				IsTrade:   false,
			},
		},
	}
}

func computeScenarioResult(t *testing.T, document *tcsctldoc.Document) *tcsctlstats.Result {
	t.Helper()
	result, err := tcsctlstats.Compute(
		document,
		xtime.PeriodMonth,
		moscow,
		time.Date(2024, 1, 1, 0, 0, 0, 0, moscow),
		time.Date(2024, 3, 1, 0, 0, 0, 0, moscow),
	)
	require.NoError(t, err)
	return result
}

func TestWriteWorkbook(t *testing.T) {
	t.Parallel()

	document := newScenarioDocument()
	result := computeScenarioResult(t, document)
	filePath := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, Write(filePath, document, result))

	// The temp file used for the atomic write must not be left behind.
	entries, err := os.ReadDir(filepath.Dir(filePath))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	workbook, err := excelize.OpenFile(filePath)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, workbook.Close())
	}()
	require.Equal(
		t,
		[]string{SheetWindows, SheetInstruments, SheetOperations, SheetSummary},
		workbook.GetSheetList(),
	)
	cellValue := func(sheet string, cell string) string {
		value, err := workbook.GetCellValue(sheet, cell)
		require.NoError(t, err)
		return value
	}

	// Windows sheet: two window rows and a grand total row.
	require.Equal(t, "Window", cellValue(SheetWindows, "A1"))
	require.Equal(t, "2024-01", cellValue(SheetWindows, "A2"))
	require.Equal(t, "2024-01-01 00:00", cellValue(SheetWindows, "B2"))
	require.Equal(t, "2024-02-01 00:00", cellValue(SheetWindows, "C2"))
	require.Equal(t, "2", cellValue(SheetWindows, "D2"))
	require.Equal(t, "2,200.00", cellValue(SheetWindows, "E2"))
	require.Equal(t, "-1,000.00", cellValue(SheetWindows, "F2"))
	require.Equal(t, "200.00", cellValue(SheetWindows, "P2"))
	require.Equal(t, "2024-02", cellValue(SheetWindows, "A3"))
	require.Equal(t, "-50.00", cellValue(SheetWindows, "H3"))
	require.Equal(t, "150.00", cellValue(SheetWindows, "Q3"))
	require.Equal(t, "TOTAL", cellValue(SheetWindows, "A4"))
	require.Equal(t, "3", cellValue(SheetWindows, "D4"))
	require.Equal(t, "150.00", cellValue(SheetWindows, "P4"))

	// Amounts are native numbers, not formatted text.
	rawTotal, err := workbook.GetCellValue(SheetWindows, "P2", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Equal(t, "200", rawTotal)

	// Instruments sheet: January's instrument, then February's no-instrument fee.
	require.Equal(t, "2024-01", cellValue(SheetInstruments, "A2"))
	require.Equal(t, "uid-1", cellValue(SheetInstruments, "B2"))
	require.Equal(t, "Acme Shares", cellValue(SheetInstruments, "C2"))
	require.Equal(t, "2", cellValue(SheetInstruments, "D2"))
	require.Equal(t, "200.00", cellValue(SheetInstruments, "E2"))
	require.Equal(t, "2024-02", cellValue(SheetInstruments, "A3"))
	require.Equal(t, "", cellValue(SheetInstruments, "B3"))
	require.Equal(t, "-50.00", cellValue(SheetInstruments, "E3"))

	// Operations sheet: one row per normalized record.
	operationRows, err := workbook.GetRows(SheetOperations)
	require.NoError(t, err)
	require.Len(t, operationRows, 4)
	require.Equal(t, "2024-01-10 12:00", cellValue(SheetOperations, "A2"))
	require.Equal(t, "op-1", cellValue(SheetOperations, "B2"))
	require.Equal(t, "buy", cellValue(SheetOperations, "C2"))
	require.Equal(t, "OPERATION_TYPE_BUY", cellValue(SheetOperations, "D2"))
	require.Equal(t, "-1,000.00", cellValue(SheetOperations, "G2"))
	require.Equal(t, "RUB", cellValue(SheetOperations, "H2"))
	require.Equal(t, "TRUE", cellValue(SheetOperations, "I2"))
	require.Equal(t, "FALSE", cellValue(SheetOperations, "I4"))

	// Summary sheet: metadata rows.
	require.Equal(t, "Account", cellValue(SheetSummary, "A1"))
	require.Equal(t, "account-1", cellValue(SheetSummary, "B1"))
	require.Equal(t, "month", cellValue(SheetSummary, "B4"))
	require.Equal(t, "2024-01-01 00:00", cellValue(SheetSummary, "B5"))
	require.Equal(t, "RUB", cellValue(SheetSummary, "B7"))
	require.Equal(t, "3", cellValue(SheetSummary, "B8"))
	require.Equal(t, "2", cellValue(SheetSummary, "B9"))
	require.Equal(t, "150.00", cellValue(SheetSummary, "B12"))
}

func TestWriteEmptyTimeline(t *testing.T) {
	t.Parallel()

	document := &tcsctldoc.Document{
		Meta:       tcsctldoc.Meta{RunID: "run-1", AccountID: "account-1", Timezone: "MSK"},
		Operations: []tcsctldoc.Operation{},
	}
	result, err := tcsctlstats.Compute(
		document,
		xtime.PeriodMonth,
		moscow,
		time.Date(2024, 1, 1, 0, 0, 0, 0, moscow),
		time.Date(2024, 3, 1, 0, 0, 0, 0, moscow),
	)
	require.NoError(t, err)

	filePath := filepath.Join(t.TempDir(), "empty.xlsx")
	require.NoError(t, Write(filePath, document, result))

	workbook, err := excelize.OpenFile(filePath)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, workbook.Close())
	}()
	value, err := workbook.GetCellValue(SheetWindows, "A4")
	require.NoError(t, err)
	require.Equal(t, "TOTAL", value)
	value, err = workbook.GetCellValue(SheetWindows, "D2")
	require.NoError(t, err)
	require.Equal(t, "0", value)
}

func TestWriteNoWindows(t *testing.T) {
	t.Parallel()

	document := &tcsctldoc.Document{
		Meta: tcsctldoc.Meta{RunID: "run-1", AccountID: "account-1", Timezone: "MSK"},
	}
	result, err := tcsctlstats.Compute(document, xtime.PeriodMonth, moscow, time.Time{}, time.Time{})
	require.NoError(t, err)

	filePath := filepath.Join(t.TempDir(), "bare.xlsx")
	require.NoError(t, Write(filePath, document, result))

	workbook, err := excelize.OpenFile(filePath)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, workbook.Close())
	}()
	value, err := workbook.GetCellValue(SheetWindows, "A2")
	require.NoError(t, err)
	require.Equal(t, "TOTAL", value)
}

func TestWriteErrorLeavesTargetUntouched(t *testing.T) {
	t.Parallel()

	document := newScenarioDocument()
	result := computeScenarioResult(t, document)

	// The parent "directory" is a regular file, so the write cannot start.
	tempDirPath := t.TempDir()
	blockedPath := filepath.Join(tempDirPath, "blocked")
	require.NoError(t, os.WriteFile(blockedPath, []byte("sentinel"), 0o644))

	err := Write(filepath.Join(blockedPath, "report.xlsx"), document, result)
	require.Error(t, err)

	content, err := os.ReadFile(blockedPath)
	require.NoError(t, err)
	require.Equal(t, "sentinel", string(content))
}

func TestWriteRequiresInputs(t *testing.T) {
	t.Parallel()

	document := newScenarioDocument()
	result := computeScenarioResult(t, document)
	filePath := filepath.Join(t.TempDir(), "report.xlsx")

	err := Write(filePath, nil, result)
	require.EqualError(t, err, "document is required")
	err = Write(filePath, document, nil)
	require.EqualError(t, err, "result is required")
	require.NoFileExists(t, filePath)
}
