// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package tcsctlexcel writes an aggregation result to an .xlsx workbook.
//
// The workbook has four sheets: Windows (one row per calendar window plus a
// grand total row), Instruments (per-window instrument breakdown), Operations
// (the normalized records) and Summary (run metadata plus charts over the
// Windows sheet). Monetary and count cells are native numbers, never text.
// Excel cannot represent timezone-aware datetimes, so datetime cells carry
// the wall clock reading of the result timezone.
//
// The workbook is built in memory and written atomically: on error the target
// file is never produced or modified.
package tcsctlexcel

import (
	"errors"
	"fmt"
	"time"

	"github.com/bufdev/tcsctl/internal/standard/xos"
	"github.com/bufdev/tcsctl/internal/tcsctl/tcsctldoc"
	"github.com/bufdev/tcsctl/internal/tcsctl/tcsctlstats"
	"github.com/xuri/excelize/v2"
)

const (
	// SheetWindows is the per-window aggregate sheet.
	SheetWindows = "Windows"
	// SheetInstruments is the per-window instrument breakdown sheet.
	SheetInstruments = "Instruments"
	// SheetOperations is the normalized operations sheet.
	SheetOperations = "Operations"
	// SheetSummary is the run metadata and charts sheet.
	SheetSummary = "Summary"

	// moneyNumberFormat is the builtin "#,##0.00" number format.
	moneyNumberFormat = 4
	// headerFillColor fills the header row of every sheet.
	headerFillColor = "DDEBF7"

	dateTimeNumberFormat = "yyyy-mm-dd hh:mm"
)

// Write builds the workbook for the document and result and writes it to
// filePath. The file either keeps its previous content or contains the
// complete workbook, never a partial write.
func Write(filePath string, document *tcsctldoc.Document, result *tcsctlstats.Result) error {
	if document == nil {
		return errors.New("document is required")
	}
	if result == nil {
		return errors.New("result is required")
	}
	workbook := excelize.NewFile()
	defer func() {
		_ = workbook.Close()
	}()
	workbookStyles, err := newWorkbookStyles(workbook)
	if err != nil {
		return fmt.Errorf("creating styles: %w", err)
	}
	if err := writeWindowsSheet(workbook, workbookStyles, result); err != nil {
		return fmt.Errorf("building %s sheet: %w", SheetWindows, err)
	}
	if err := writeInstrumentsSheet(workbook, workbookStyles, result); err != nil {
		return fmt.Errorf("building %s sheet: %w", SheetInstruments, err)
	}
	if err := writeOperationsSheet(workbook, workbookStyles, document); err != nil {
		return fmt.Errorf("building %s sheet: %w", SheetOperations, err)
	}
	if err := writeSummarySheet(workbook, workbookStyles, document, result); err != nil {
		return fmt.Errorf("building %s sheet: %w", SheetSummary, err)
	}
	buffer, err := workbook.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("serializing workbook: %w", err)
	}
	if err := xos.WriteFileAtomic(filePath, buffer.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// *** PRIVATE ***

// workbookStyles holds the style IDs shared by all sheets.
type workbookStyles struct {
	header    int
	bold      int
	money     int
	boldMoney int
	dateTime  int
}

func newWorkbookStyles(workbook *excelize.File) (*workbookStyles, error) {
	header, err := workbook.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{headerFillColor}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}
	bold, err := workbook.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return nil, err
	}
	money, err := workbook.NewStyle(&excelize.Style{
		NumFmt: moneyNumberFormat,
	})
	if err != nil {
		return nil, err
	}
	boldMoney, err := workbook.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		NumFmt: moneyNumberFormat,
	})
	if err != nil {
		return nil, err
	}
	dateTimeFormat := dateTimeNumberFormat
	dateTime, err := workbook.NewStyle(&excelize.Style{
		CustomNumFmt: &dateTimeFormat,
	})
	if err != nil {
		return nil, err
	}
	return &workbookStyles{
		header:    header,
		bold:      bold,
		money:     money,
		boldMoney: boldMoney,
		dateTime:  dateTime,
	}, nil
}

func writeWindowsSheet(workbook *excelize.File, styles *workbookStyles, result *tcsctlstats.Result) error {
	// NewFile starts with a single default sheet; make it the Windows sheet.
	if err := workbook.SetSheetName(workbook.GetSheetName(0), SheetWindows); err != nil {
		return err
	}
	headers := []any{
		"Window", "Start", "End", "Operations", "Turnover",
		"Buy Cash", "Sell Cash", "Fees", "Taxes", "Dividends", "Coupons",
		"Transfers In", "Transfers Out", "Other", "Net Trading", "Total", "Cumulative Total",
	}
	if err := workbook.SetSheetRow(SheetWindows, "A1", &headers); err != nil {
		return err
	}
	for i := range result.Windows {
		window := &result.Windows[i]
		values := []any{
			window.Identifier,
			excelDateTime(window.Window.Start),
			excelDateTime(window.Window.End),
			window.Operations,
			window.Turnover.InexactFloat64(),
			window.BuyCash.InexactFloat64(),
			window.SellCash.InexactFloat64(),
			window.Fees.InexactFloat64(),
			window.Taxes.InexactFloat64(),
			window.Dividends.InexactFloat64(),
			window.Coupons.InexactFloat64(),
			window.TransfersIn.InexactFloat64(),
			window.TransfersOut.InexactFloat64(),
			window.Other.InexactFloat64(),
			window.NetTrading.InexactFloat64(),
			window.Total.InexactFloat64(),
			window.CumulativeTotal.InexactFloat64(),
		}
		if err := workbook.SetSheetRow(SheetWindows, fmt.Sprintf("A%d", i+2), &values); err != nil {
			return err
		}
	}
	totalRow := len(result.Windows) + 2
	totalValues := []any{
		result.Total.Identifier,
		nil,
		nil,
		result.Total.Operations,
		result.Total.Turnover.InexactFloat64(),
		result.Total.BuyCash.InexactFloat64(),
		result.Total.SellCash.InexactFloat64(),
		result.Total.Fees.InexactFloat64(),
		result.Total.Taxes.InexactFloat64(),
		result.Total.Dividends.InexactFloat64(),
		result.Total.Coupons.InexactFloat64(),
		result.Total.TransfersIn.InexactFloat64(),
		result.Total.TransfersOut.InexactFloat64(),
		result.Total.Other.InexactFloat64(),
		result.Total.NetTrading.InexactFloat64(),
		result.Total.Total.InexactFloat64(),
		result.Total.CumulativeTotal.InexactFloat64(),
	}
	if err := workbook.SetSheetRow(SheetWindows, fmt.Sprintf("A%d", totalRow), &totalValues); err != nil {
		return err
	}
	if err := workbook.SetCellStyle(SheetWindows, "A1", "Q1", styles.header); err != nil {
		return err
	}
	if len(result.Windows) > 0 {
		lastDataRow := len(result.Windows) + 1
		if err := workbook.SetCellStyle(SheetWindows, "B2", fmt.Sprintf("C%d", lastDataRow), styles.dateTime); err != nil {
			return err
		}
		if err := workbook.SetCellStyle(SheetWindows, "E2", fmt.Sprintf("Q%d", lastDataRow), styles.money); err != nil {
			return err
		}
	}
	if err := workbook.SetCellStyle(SheetWindows, fmt.Sprintf("A%d", totalRow), fmt.Sprintf("D%d", totalRow), styles.bold); err != nil {
		return err
	}
	if err := workbook.SetCellStyle(SheetWindows, fmt.Sprintf("E%d", totalRow), fmt.Sprintf("Q%d", totalRow), styles.boldMoney); err != nil {
		return err
	}
	if err := setColumnWidths(workbook, SheetWindows, []columnWidth{
		{"A", "A", 12},
		{"B", "C", 17},
		{"D", "D", 11},
		{"E", "Q", 14},
	}); err != nil {
		return err
	}
	return decorateSheet(workbook, SheetWindows, fmt.Sprintf("A1:Q%d", totalRow))
}

func writeInstrumentsSheet(workbook *excelize.File, styles *workbookStyles, result *tcsctlstats.Result) error {
	if _, err := workbook.NewSheet(SheetInstruments); err != nil {
		return err
	}
	headers := []any{"Window", "Instrument ID", "Instrument", "Operations", "Net"}
	if err := workbook.SetSheetRow(SheetInstruments, "A1", &headers); err != nil {
		return err
	}
	row := 2
	for i := range result.Windows {
		window := &result.Windows[i]
		for _, instrument := range window.Instruments {
			values := []any{
				window.Identifier,
				instrument.InstrumentID,
				instrument.Instrument,
				instrument.Operations,
				instrument.Net.InexactFloat64(),
			}
			if err := workbook.SetSheetRow(SheetInstruments, fmt.Sprintf("A%d", row), &values); err != nil {
				return err
			}
			row++
		}
	}
	if err := workbook.SetCellStyle(SheetInstruments, "A1", "E1", styles.header); err != nil {
		return err
	}
	if row > 2 {
		if err := workbook.SetCellStyle(SheetInstruments, "E2", fmt.Sprintf("E%d", row-1), styles.money); err != nil {
			return err
		}
	}
	if err := setColumnWidths(workbook, SheetInstruments, []columnWidth{
		{"A", "A", 12},
		{"B", "B", 40},
		{"C", "C", 36},
		{"D", "D", 11},
		{"E", "E", 14},
	}); err != nil {
		return err
	}
	return decorateSheet(workbook, SheetInstruments, fmt.Sprintf("A1:E%d", row-1))
}

func writeOperationsSheet(workbook *excelize.File, styles *workbookStyles, document *tcsctldoc.Document) error {
	if _, err := workbook.NewSheet(SheetOperations); err != nil {
		return err
	}
	headers := []any{
		"Timestamp", "ID", "Kind", "Type", "Instrument ID", "Instrument",
		"Amount", "Currency", "Trade",
	}
	if err := workbook.SetSheetRow(SheetOperations, "A1", &headers); err != nil {
		return err
	}
	for i, operation := range document.Operations {
		values := []any{
			excelDateTime(operation.Timestamp),
			operation.ID,
			string(operation.Kind),
			operation.Type,
			operation.InstrumentID,
			operation.Instrument,
			operation.Amount.InexactFloat64(),
			operation.Currency,
			operation.IsTrade,
		}
		if err := workbook.SetSheetRow(SheetOperations, fmt.Sprintf("A%d", i+2), &values); err != nil {
			return err
		}
	}
	if err := workbook.SetCellStyle(SheetOperations, "A1", "I1", styles.header); err != nil {
		return err
	}
	if len(document.Operations) > 0 {
		lastRow := len(document.Operations) + 1
		if err := workbook.SetCellStyle(SheetOperations, "A2", fmt.Sprintf("A%d", lastRow), styles.dateTime); err != nil {
			return err
		}
		if err := workbook.SetCellStyle(SheetOperations, "G2", fmt.Sprintf("G%d", lastRow), styles.money); err != nil {
			return err
		}
	}
	if err := setColumnWidths(workbook, SheetOperations, []columnWidth{
		{"A", "A", 17},
		{"B", "B", 40},
		{"C", "C", 10},
		{"D", "D", 36},
		{"E", "E", 40},
		{"F", "F", 36},
		{"G", "G", 14},
		{"H", "H", 10},
		{"I", "I", 8},
	}); err != nil {
		return err
	}
	return decorateSheet(workbook, SheetOperations, fmt.Sprintf("A1:I%d", len(document.Operations)+1))
}

func writeSummarySheet(
	workbook *excelize.File,
	styles *workbookStyles,
	document *tcsctldoc.Document,
	result *tcsctlstats.Result,
) error {
	if _, err := workbook.NewSheet(SheetSummary); err != nil {
		return err
	}
	rows := []struct {
		label string
		value any
	}{
		{"Account", document.Meta.AccountID},
		{"Run ID", document.Meta.RunID},
		{"Timezone", result.Timezone},
		{"Period", result.Period.String()},
		{"Since", dateTimeCell(result.Since)},
		{"Until", dateTimeCell(result.Until)},
		{"Currency", result.Currency},
		{"Operations", result.Total.Operations},
		{"Windows", len(result.Windows)},
		{"Turnover", result.Total.Turnover.InexactFloat64()},
		{"Net Trading", result.Total.NetTrading.InexactFloat64()},
		{"Total", result.Total.Total.InexactFloat64()},
	}
	for i, row := range rows {
		values := []any{row.label, row.value}
		if err := workbook.SetSheetRow(SheetSummary, fmt.Sprintf("A%d", i+1), &values); err != nil {
			return err
		}
	}
	if err := workbook.SetCellStyle(SheetSummary, "A1", fmt.Sprintf("A%d", len(rows)), styles.bold); err != nil {
		return err
	}
	if err := workbook.SetCellStyle(SheetSummary, "B5", "B6", styles.dateTime); err != nil {
		return err
	}
	if err := workbook.SetCellStyle(SheetSummary, "B10", "B12", styles.money); err != nil {
		return err
	}
	if err := workbook.SetColWidth(SheetSummary, "A", "A", 14); err != nil {
		return err
	}
	if err := workbook.SetColWidth(SheetSummary, "B", "B", 24); err != nil {
		return err
	}
	return addSummaryCharts(workbook, result)
}

// addSummaryCharts adds a column chart of per-window net trading and a line
// chart of the cumulative total, both reading from the Windows sheet. Nothing
// is added when there are no windows to plot.
func addSummaryCharts(workbook *excelize.File, result *tcsctlstats.Result) error {
	if len(result.Windows) == 0 {
		return nil
	}
	lastDataRow := len(result.Windows) + 1
	categories := fmt.Sprintf("%s!$A$2:$A$%d", SheetWindows, lastDataRow)
	if err := workbook.AddChart(SheetSummary, "D2", &excelize.Chart{
		Type: excelize.Col,
		Series: []excelize.ChartSeries{
			{
				Name:       fmt.Sprintf("%s!$O$1", SheetWindows),
				Categories: categories,
				Values:     fmt.Sprintf("%s!$O$2:$O$%d", SheetWindows, lastDataRow),
			},
		},
		Title:  []excelize.RichTextRun{{Text: chartTitle("Net trading per "+result.Period.String(), result.Currency)}},
		Legend: excelize.ChartLegend{Position: "bottom"},
		Format: excelize.GraphicOptions{ScaleX: 1.4, ScaleY: 1.3},
	}); err != nil {
		return err
	}
	return workbook.AddChart(SheetSummary, "D20", &excelize.Chart{
		Type: excelize.Line,
		Series: []excelize.ChartSeries{
			{
				Name:       fmt.Sprintf("%s!$Q$1", SheetWindows),
				Categories: categories,
				Values:     fmt.Sprintf("%s!$Q$2:$Q$%d", SheetWindows, lastDataRow),
			},
		},
		Title:  []excelize.RichTextRun{{Text: chartTitle("Cumulative total", result.Currency)}},
		Legend: excelize.ChartLegend{Position: "bottom"},
		Format: excelize.GraphicOptions{ScaleX: 1.4, ScaleY: 1.3},
	})
}

// columnWidth sets the width of the start through end columns.
type columnWidth struct {
	start string
	end   string
	width float64
}

func setColumnWidths(workbook *excelize.File, sheet string, widths []columnWidth) error {
	for _, w := range widths {
		if err := workbook.SetColWidth(sheet, w.start, w.end, w.width); err != nil {
			return err
		}
	}
	return nil
}

// decorateSheet applies the conventions shared by the tabular sheets: an
// autofilter over the used range and a frozen header row.
func decorateSheet(workbook *excelize.File, sheet string, rangeRef string) error {
	if err := workbook.AutoFilter(sheet, rangeRef, nil); err != nil {
		return err
	}
	return workbook.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// excelDateTime strips the timezone, keeping the wall clock reading.
func excelDateTime(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

func dateTimeCell(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return excelDateTime(t)
}

func chartTitle(name string, currency string) string {
	if currency == "" {
		return name
	}
	return fmt.Sprintf("%s (%s)", name, currency)
}
