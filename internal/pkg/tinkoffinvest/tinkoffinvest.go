// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package tinkoffinvest provides a client for the Tinkoff Invest API v2 REST gateway.
//
// The gateway mirrors the gRPC contract over HTTP: each method is a POST to
// {endpoint}/tinkoff.public.invest.api.contract.v1.<Service>/<Method> with a
// proto3-JSON body and a Bearer token. The proto3 JSON mapping means camelCase
// keys, int64 values encoded as JSON strings, enums as full names (e.g.
// "OPERATION_TYPE_BUY"), RFC 3339 timestamps, and fields at their proto default
// omitted entirely (so a missing "hasNext" means false and missing "items"
// means an empty page).
//
// Transient failures (transport errors, HTTP 429, HTTP 5xx) are retried with
// exponential backoff; an HTTP 429 honors the gateway's x-ratelimit-reset
// header. Authentication failures and other client errors are returned
// immediately.
package tinkoffinvest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bufdev/tcsctl/internal/pkg/backoff"
	"github.com/shopspring/decimal"
)

const (
	// DefaultEndpoint is the production REST gateway base URL.
	DefaultEndpoint = "https://invest-public-api.tinkoff.ru/rest"
	// MaxPageLimit is the largest page size GetOperationsByCursor accepts.
	MaxPageLimit = 1000
	// OperationStateExecuted filters the feed to executed operations.
	OperationStateExecuted = "OPERATION_STATE_EXECUTED"

	// operationsByCursorPath is the REST path of the cursor-paginated operations method.
	operationsByCursorPath = "/tinkoff.public.invest.api.contract.v1.OperationsService/GetOperationsByCursor"
	// maxAttempts is the maximum number of attempts for each API call.
	maxAttempts = 5
	// initialRetryDelay is the initial delay before the first retry.
	initialRetryDelay = 500 * time.Millisecond
	// maxRetryDelay is the maximum delay between retries.
	maxRetryDelay = 10 * time.Second
	// errorBodySnippetLen caps how much of an unparseable error body is kept.
	errorBodySnippetLen = 512
)

// Client is the interface for fetching operations from the Tinkoff Invest API.
type Client interface {
	// GetOperationsPage fetches a single page of the account's operations feed.
	//
	// An empty request cursor fetches the first page. When the returned page
	// has HasNext set, the next call must pass the page's NextCursor. The
	// method is one HTTP call (plus internal retries); walking the feed to
	// completion is the caller's loop.
	GetOperationsPage(ctx context.Context, request *GetOperationsPageRequest) (*OperationsPage, error)
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*client)

// ClientWithEndpoint sets the REST gateway base URL, e.g. for the sandbox
// environment. Defaults to DefaultEndpoint.
func ClientWithEndpoint(endpoint string) ClientOption {
	return func(c *client) {
		c.endpoint = strings.TrimSuffix(endpoint, "/")
	}
}

// ClientWithHTTPClient sets the HTTP client to use for requests.
func ClientWithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a new Tinkoff Invest API client with the given options.
// The logger is required. The token is the portal-issued API token sent as a
// Bearer credential on every request.
func NewClient(logger *slog.Logger, token string, options ...ClientOption) Client {
	c := &client{
		httpClient:        http.DefaultClient,
		logger:            logger,
		endpoint:          DefaultEndpoint,
		token:             token,
		maxAttempts:       maxAttempts,
		initialRetryDelay: initialRetryDelay,
		maxRetryDelay:     maxRetryDelay,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// GetOperationsPageRequest is a single GetOperationsByCursor call.
type GetOperationsPageRequest struct {
	// AccountID is the brokerage account identifier. Required.
	AccountID string
	// From is the inclusive start instant of the requested range.
	From time.Time
	// To is the exclusive end instant of the requested range.
	To time.Time
	// Cursor is the pagination cursor from the previous page's NextCursor.
	// Empty fetches the first page.
	Cursor string
	// Limit is the page size. Zero means MaxPageLimit.
	Limit int32
	// State filters operations by state, e.g. OperationStateExecuted.
	// Empty returns operations in every state.
	State string
	// WithoutTrades excludes individual trade executions from the feed.
	WithoutTrades bool
}

// OperationsPage is one page of the operations feed.
type OperationsPage struct {
	// HasNext reports whether more pages follow this one.
	HasNext bool `json:"hasNext"`
	// NextCursor is the cursor for the next page. Only meaningful when
	// HasNext is true.
	NextCursor string `json:"nextCursor"`
	// Items is the page's operations, newest first as the gateway returns them.
	Items []OperationItem `json:"items"`
}

// OperationItem is a single operation as returned by GetOperationsByCursor.
type OperationItem struct {
	// Cursor is this item's own position in the feed.
	Cursor string `json:"cursor"`
	// ID is the operation identifier, unique within the account.
	ID string `json:"id"`
	// ParentOperationID links child operations (e.g. a commission) to their parent.
	ParentOperationID string `json:"parentOperationId"`
	// Name is the instrument display name.
	Name string `json:"name"`
	// Date is the operation timestamp. The gateway emits RFC 3339.
	Date time.Time `json:"date"`
	// Type is the operation type enum name, e.g. "OPERATION_TYPE_BUY".
	Type string `json:"type"`
	// Description is the human-readable operation description.
	Description string `json:"description"`
	// State is the operation state enum name, e.g. "OPERATION_STATE_EXECUTED".
	State string `json:"state"`
	// InstrumentUID is the instrument's stable identifier.
	InstrumentUID string `json:"instrumentUid"`
	// Figi is the instrument's FIGI, when assigned.
	Figi string `json:"figi"`
	// InstrumentType is the instrument class, e.g. "share" or "bond".
	InstrumentType string `json:"instrumentType"`
	// PositionUID identifies the position the operation affected.
	PositionUID string `json:"positionUid"`
	// Payment is the signed monetary effect of the operation. Nil for
	// cashless records.
	Payment *MoneyValue `json:"payment"`
	// Commission is the commission charged, when the operation carries one.
	Commission *MoneyValue `json:"commission"`
	// Quantity is the executed quantity in instrument units.
	Quantity int64 `json:"quantity,string"`
}

// MoneyValue is a monetary amount in the gateway's encoding: an integer units
// part plus a nano fraction, both sharing the amount's sign.
type MoneyValue struct {
	// Currency is the ISO 4217 code, lowercase as the gateway emits it.
	Currency string `json:"currency"`
	// Units is the whole-unit part. int64 travels as a JSON string.
	Units int64 `json:"units,string"`
	// Nano is the fractional part in nanounits (10⁻⁹).
	Nano int32 `json:"nano"`
}

// Decimal returns the exact decimal value, units + nano×10⁻⁹.
func (m *MoneyValue) Decimal() decimal.Decimal {
	if m == nil {
		return decimal.Decimal{}
	}
	return decimal.NewFromInt(m.Units).Add(decimal.New(int64(m.Nano), -9))
}

// IsZero reports whether the value is absent or exactly zero.
func (m *MoneyValue) IsZero() bool {
	return m == nil || (m.Units == 0 && m.Nano == 0)
}

// APIError is an error response from the REST gateway.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int `json:"-"`
	// Code is the gRPC status code from the error body.
	Code int `json:"code"`
	// Message is the short error message from the error body.
	Message string `json:"message"`
	// Description is the longer error description from the error body.
	Description string `json:"description"`
	// TrackingID is the x-tracking-id response header, when present.
	TrackingID string `json:"-"`
}

// Error implements error.
func (a *APIError) Error() string {
	message := a.Message
	if message == "" {
		message = a.Description
	}
	s := fmt.Sprintf("tinkoff invest api: status %d, code %d: %s", a.StatusCode, a.Code, message)
	if a.Description != "" && a.Description != message {
		s += ": " + a.Description
	}
	if a.TrackingID != "" {
		s += fmt.Sprintf(" (tracking id %s)", a.TrackingID)
	}
	return s
}

// *** PRIVATE ***

type client struct {
	httpClient        *http.Client
	logger            *slog.Logger
	endpoint          string
	token             string
	maxAttempts       int
	initialRetryDelay time.Duration
	maxRetryDelay     time.Duration
}

// getOperationsByCursorRequest is the proto3-JSON request body. Fields at
// their proto default are omitted, matching what the gateway itself emits.
type getOperationsByCursorRequest struct {
	AccountID     string `json:"accountId"`
	From          string `json:"from,omitempty"`
	To            string `json:"to,omitempty"`
	Cursor        string `json:"cursor,omitempty"`
	Limit         int32  `json:"limit,omitempty"`
	State         string `json:"state,omitempty"`
	WithoutTrades bool   `json:"withoutTrades,omitempty"`
}

// clientWithRetryDelays overrides the retry schedule. Test-only.
func clientWithRetryDelays(maxAttempts int, initialRetryDelay time.Duration, maxRetryDelay time.Duration) ClientOption {
	return func(c *client) {
		c.maxAttempts = maxAttempts
		c.initialRetryDelay = initialRetryDelay
		c.maxRetryDelay = maxRetryDelay
	}
}

func (c *client) GetOperationsPage(ctx context.Context, request *GetOperationsPageRequest) (*OperationsPage, error) {
	if request.AccountID == "" {
		return nil, errors.New("account ID is required")
	}
	limit := request.Limit
	if limit == 0 {
		limit = MaxPageLimit
	}
	wireRequest := getOperationsByCursorRequest{
		AccountID:     request.AccountID,
		Cursor:        request.Cursor,
		Limit:         limit,
		State:         request.State,
		WithoutTrades: request.WithoutTrades,
	}
	// Timestamps travel as RFC 3339 UTC, the proto3 JSON canonical form.
	if !request.From.IsZero() {
		wireRequest.From = request.From.UTC().Format(time.RFC3339Nano)
	}
	if !request.To.IsZero() {
		wireRequest.To = request.To.UTC().Format(time.RFC3339Nano)
	}
	requestBody, err := json.Marshal(wireRequest)
	if err != nil {
		return nil, err
	}
	reqURL := c.endpoint + operationsByCursorPath
	return backoff.Retry(ctx, c.maxAttempts, c.initialRetryDelay, c.maxRetryDelay,
		func(ctx context.Context, attempt int) (*OperationsPage, bool, error) {
			if attempt > 0 {
				c.logger.Warn("retrying operations page request", "attempt", attempt+1, "cursor", request.Cursor)
			}
			c.logger.Debug("requesting operations page", "account_id", request.AccountID, "cursor", request.Cursor, "limit", limit)
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(requestBody))
			if err != nil {
				return nil, false, err
			}
			req.Header.Set("Authorization", "Bearer "+c.token)
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "application/json")
			resp, err := c.httpClient.Do(req)
			if err != nil {
				// Transport errors are transient until proven otherwise.
				return nil, true, err
			}
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return nil, true, err
			}
			if resp.StatusCode != http.StatusOK {
				retryable, err := c.errorFromResponse(resp, body)
				return nil, retryable, err
			}
			if len(bytes.TrimSpace(body)) == 0 {
				return nil, false, errors.New("empty response body with status 200")
			}
			var page OperationsPage
			if err := json.Unmarshal(body, &page); err != nil {
				return nil, false, fmt.Errorf("parsing operations response: %w", err)
			}
			return &page, false, nil
		},
	)
}

// errorFromResponse decodes a non-200 gateway response and reports whether the
// failure is retryable. 429 and 5xx are transient; auth failures and other
// client errors are final.
func (c *client) errorFromResponse(resp *http.Response, body []byte) (bool, error) {
	retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
	apiError := &APIError{
		StatusCode: resp.StatusCode,
		TrackingID: resp.Header.Get("x-tracking-id"),
	}
	if err := json.Unmarshal(body, apiError); err != nil {
		// Not the standard error body; keep a snippet for diagnosis.
		return retryable, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bodySnippet(body))
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		if delay := rateLimitResetDelay(resp.Header); delay > 0 {
			c.logger.Warn("rate limited", "reset", delay, "tracking_id", apiError.TrackingID)
			return true, &backoff.RetryAfterError{Delay: delay, Err: apiError}
		}
	}
	return retryable, apiError
}

// rateLimitResetDelay reads the gateway's x-ratelimit-reset header, the number
// of seconds until the rate-limit window resets.
func rateLimitResetDelay(header http.Header) time.Duration {
	value := header.Get("x-ratelimit-reset")
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func bodySnippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > errorBodySnippetLen {
		return s[:errorBodySnippetLen] + "..."
	}
	return s
}
