// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package tcsctldoc defines the operations document, the handoff format
// between collection and aggregation.
//
// A document is a JSON file with a meta block (run id, account, range,
// timezone) and a flat list of normalized operations. Timestamps carry the
// collection timezone's offset, and amounts travel as exact decimal strings.
// Writes are atomic: a document file appears only once it is complete.
package tcsctldoc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bufdev/tcsctl/internal/standard/xos"
	"github.com/shopspring/decimal"
)

// Kind is the normalized operation kind.
type Kind string

const (
	// KindBuy is a purchase of an instrument.
	KindBuy Kind = "buy"
	// KindSell is a sale of an instrument.
	KindSell Kind = "sell"
	// KindFee is a broker, service, or margin fee.
	KindFee Kind = "fee"
	// KindDividend is a dividend payment.
	KindDividend Kind = "dividend"
	// KindCoupon is a bond coupon payment.
	KindCoupon Kind = "coupon"
	// KindTax is a withheld tax.
	KindTax Kind = "tax"
	// KindTransfer is a cash deposit or withdrawal; the amount's sign carries
	// the direction.
	KindTransfer Kind = "transfer"
	// KindOther is everything the classifier does not recognize.
	KindOther Kind = "other"
)

// IsTrade reports whether the kind is a trade execution (buy or sell).
func (k Kind) IsTrade() bool {
	return k == KindBuy || k == KindSell
}

// ClassifyOperationType maps a provider operation type enum name (e.g.
// "OPERATION_TYPE_BUY") to a Kind.
//
// Matching is by substring on the enum name so unrecognized variants of a
// family still classify (OPERATION_TYPE_INPUT_SWIFT is a transfer). Trades
// are matched first, and taxes before dividends and coupons so that
// OPERATION_TYPE_DIVIDEND_TAX classifies as tax, not dividend.
func ClassifyOperationType(operationType string) Kind {
	name := strings.ToUpper(operationType)
	switch {
	case strings.Contains(name, "BUY"):
		return KindBuy
	case strings.Contains(name, "SELL"):
		return KindSell
	case strings.Contains(name, "FEE"),
		strings.Contains(name, "COMMISSION"),
		strings.Contains(name, "SERVICE"):
		return KindFee
	case strings.Contains(name, "TAX"):
		return KindTax
	case strings.Contains(name, "DIVIDEND"):
		return KindDividend
	case strings.Contains(name, "COUPON"):
		return KindCoupon
	case strings.Contains(name, "INPUT"),
		strings.Contains(name, "DEPOSIT"),
		strings.Contains(name, "OUTPUT"),
		strings.Contains(name, "WITHDRAW"):
		return KindTransfer
	default:
		return KindOther
	}
}

// Operation is one normalized operation record.
type Operation struct {
	// ID is the provider's operation identifier.
	ID string `json:"id"`
	// Timestamp is the operation instant, rendered in the collection timezone.
	Timestamp time.Time `json:"timestamp"`
	// Kind is the normalized operation kind.
	Kind Kind `json:"kind"`
	// Type is the provider's raw operation type enum name.
	Type string `json:"type,omitempty"`
	// InstrumentID is the instrument identity: the first non-empty of the
	// provider's instrument uid, figi, and position uid. Empty for
	// account-level operations such as cash transfers.
	InstrumentID string `json:"instrument_id,omitempty"`
	// Instrument is the instrument display name, when known.
	Instrument string `json:"instrument,omitempty"`
	// Amount is the signed monetary effect: negative for outflows (buys,
	// fees, taxes, withdrawals), positive for inflows.
	Amount decimal.Decimal `json:"amount"`
	// Currency is the uppercase ISO 4217 code.
	Currency string `json:"currency"`
	// IsTrade reports whether the operation is a trade execution.
	IsTrade bool `json:"is_trade"`
}

// Meta describes how and when the document was collected.
type Meta struct {
	// RunID correlates the document with the collection run's logs.
	RunID string `json:"run_id"`
	// AccountID is the brokerage account the operations belong to.
	AccountID string `json:"account_id"`
	// Timezone is the IANA name of the timezone the range was interpreted in.
	// Window boundaries over this document are computed in it.
	Timezone string `json:"timezone"`
	// Since is the inclusive start instant of the collected range.
	Since time.Time `json:"since"`
	// Until is the exclusive end instant of the collected range.
	Until time.Time `json:"until"`
	// GeneratedAt is when the collection run finished.
	GeneratedAt time.Time `json:"generated_at"`
}

// Document is the operations document.
type Document struct {
	// Meta describes the collection run.
	Meta Meta `json:"meta"`
	// Operations is the normalized operation list, ordered by timestamp.
	Operations []Operation `json:"operations"`
}

// Write marshals the document and writes it atomically to filePath, creating
// parent directories as needed. The file appears only once it is complete: a
// failed run never leaves a partial or corrupt document behind.
func Write(filePath string, document *Document) error {
	data, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling operations document: %w", err)
	}
	data = append(data, '\n')
	if err := xos.WriteFileAtomic(filePath, data, 0o644); err != nil {
		return fmt.Errorf("writing operations document %s: %w", filePath, err)
	}
	return nil
}

// Read reads and parses the document at filePath. Unknown fields are rejected
// so schema drift surfaces as an error instead of silently dropped data.
func Read(filePath string) (*Document, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading operations document: %w", err)
	}
	jsonDecoder := json.NewDecoder(bytes.NewReader(data))
	jsonDecoder.DisallowUnknownFields()
	var document Document
	if err := jsonDecoder.Decode(&document); err != nil {
		return nil, fmt.Errorf("parsing operations document %s: %w", filePath, err)
	}
	return &document, nil
}
