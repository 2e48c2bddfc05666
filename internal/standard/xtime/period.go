// Copyright 2026 Peter Edge
//
// All rights reserved.

package xtime

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Period is a calendar period length used to tile a time range into windows.
type Period int

const (
	// PeriodDay is a calendar day.
	PeriodDay Period = iota
	// PeriodWeek is an ISO week (Monday through Sunday).
	PeriodWeek
	// PeriodMonth is a calendar month.
	PeriodMonth
	// PeriodQuarter is a calendar quarter (Jan, Apr, Jul, Oct).
	PeriodQuarter
	// PeriodYear is a calendar year.
	PeriodYear
)

// ParsePeriod parses a period name. Both the noun and adjective forms are
// accepted (e.g. "month" and "monthly").
func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(s) {
	case "day", "daily":
		return PeriodDay, nil
	case "week", "weekly":
		return PeriodWeek, nil
	case "month", "monthly":
		return PeriodMonth, nil
	case "quarter", "quarterly":
		return PeriodQuarter, nil
	case "year", "yearly":
		return PeriodYear, nil
	default:
		return 0, fmt.Errorf("unknown period %q, must be one of: day, week, month, quarter, year", s)
	}
}

// String returns the period's noun form.
func (p Period) String() string {
	switch p {
	case PeriodDay:
		return "day"
	case PeriodWeek:
		return "week"
	case PeriodMonth:
		return "month"
	case PeriodQuarter:
		return "quarter"
	case PeriodYear:
		return "year"
	default:
		return fmt.Sprintf("Period(%d)", int(p))
	}
}

// StartOfPeriod returns the period boundary at or before t, computed in loc.
// Weeks start on Monday (ISO 8601).
func StartOfPeriod(t time.Time, p Period, loc *time.Location) time.Time {
	t = t.In(loc)
	year, month, day := t.Date()
	switch p {
	case PeriodDay:
		return time.Date(year, month, day, 0, 0, 0, 0, loc)
	case PeriodWeek:
		// time.Weekday counts Sunday as 0; shift so Monday is the week start.
		daysSinceMonday := (int(t.Weekday()) + 6) % 7
		return time.Date(year, month, day-daysSinceMonday, 0, 0, 0, 0, loc)
	case PeriodMonth:
		return time.Date(year, month, 1, 0, 0, 0, 0, loc)
	case PeriodQuarter:
		quarterMonth := time.Month((int(month)-1)/3*3 + 1)
		return time.Date(year, quarterMonth, 1, 0, 0, 0, 0, loc)
	case PeriodYear:
		return time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	default:
		return t
	}
}

// NextPeriodStart returns the period boundary immediately after start.
// start must itself be a period boundary, as returned by StartOfPeriod.
//
// Boundaries are computed from calendar components rather than fixed
// durations so that daylight-saving transitions do not shift them.
func NextPeriodStart(start time.Time, p Period) time.Time {
	loc := start.Location()
	year, month, day := start.Date()
	switch p {
	case PeriodDay:
		return time.Date(year, month, day+1, 0, 0, 0, 0, loc)
	case PeriodWeek:
		return time.Date(year, month, day+7, 0, 0, 0, 0, loc)
	case PeriodMonth:
		return time.Date(year, month+1, 1, 0, 0, 0, 0, loc)
	case PeriodQuarter:
		return time.Date(year, month+3, 1, 0, 0, 0, 0, loc)
	case PeriodYear:
		return time.Date(year+1, time.January, 1, 0, 0, 0, 0, loc)
	default:
		return start
	}
}

// MarshalJSON marshals the period as its noun form, e.g. "month".
func (p Period) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON unmarshals a period from either its noun or adjective form.
func (p *Period) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParsePeriod(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Window is a half-open time interval [Start, End).
type Window struct {
	// Start is the inclusive window start.
	Start time.Time `json:"start"`
	// End is the exclusive window end.
	End time.Time `json:"end"`
}

// Contains reports whether t falls within the window. A time exactly at Start
// is contained; a time exactly at End is not.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Identifier returns a short label for the period the window lies in, such as
// "2024-01-15" (day), "2024-W03" (ISO week), "2024-01" (month), "2024-Q1"
// (quarter), or "2024" (year).
//
// Any instant within a period yields the same identifier, so clamped windows
// are labeled by their enclosing period.
func (w Window) Identifier(p Period) string {
	switch p {
	case PeriodDay:
		return w.Start.Format("2006-01-02")
	case PeriodWeek:
		year, week := w.Start.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case PeriodMonth:
		return w.Start.Format("2006-01")
	case PeriodQuarter:
		return fmt.Sprintf("%d-Q%d", w.Start.Year(), (int(w.Start.Month())-1)/3+1)
	case PeriodYear:
		return w.Start.Format("2006")
	default:
		return w.Start.Format(time.RFC3339)
	}
}

// Windows tiles the half-open range [since, until) with consecutive period
// windows computed in loc. The first and last windows are clamped to the
// range bounds, so the returned windows cover the range exactly, with no gaps
// and no overlaps. Returns nil if since is not before until.
func Windows(since time.Time, until time.Time, p Period, loc *time.Location) []Window {
	since = since.In(loc)
	until = until.In(loc)
	if !since.Before(until) {
		return nil
	}
	var windows []Window
	for cursor := StartOfPeriod(since, p, loc); cursor.Before(until); cursor = NextPeriodStart(cursor, p) {
		window := Window{Start: cursor, End: NextPeriodStart(cursor, p)}
		if window.Start.Before(since) {
			window.Start = since
		}
		if window.End.After(until) {
			window.End = until
		}
		windows = append(windows, window)
	}
	return windows
}
