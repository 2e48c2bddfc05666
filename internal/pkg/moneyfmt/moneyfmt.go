// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package moneyfmt renders decimal amounts using a currency's display
// conventions (symbol, separators, fraction digits).
package moneyfmt

import (
	"fmt"
	"strings"

	money "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Format renders amount with the display conventions of the given ISO 4217
// currency code, e.g. "$1,234.50" or "1 234.50 ₽". The amount is rounded to
// the currency's fraction digits for display only. Codes unknown to the
// currency registry fall back to "<amount> <CODE>".
func Format(amount decimal.Decimal, currencyCode string) string {
	code := strings.ToUpper(currencyCode)
	currency := money.GetCurrency(code)
	if currency == nil {
		return fmt.Sprintf("%s %s", amount.String(), code)
	}
	// The formatter works in minor units (e.g. cents).
	minorUnits := amount.Shift(int32(currency.Fraction)).Round(0).IntPart()
	return currency.Formatter().Format(minorUnits)
}
