// Package timerange turns human time-range expressions into concrete query
// windows and scores how trustworthy item dates are relative to a window.
package timerange

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidRange reports a range expression that could not be parsed.
var ErrInvalidRange = errors.New("invalid range format")

// MinTTL is the system-wide minimum re-fetch interval. TTLFor never returns
// less than this.
const MinTTL = 15 * time.Minute

// Date confidence levels attached to normalized items.
const (
	ConfidenceHigh = "high"
	ConfidenceMed  = "med" // reserved; the classifier never produces it
	ConfidenceLow  = "low"
)

const (
	day   = 24 * time.Hour
	week  = 7 * day
	month = 30 * day // months are approximated as 30 days
)

// rangePattern matches expressions like "2 hours", "2hours", "2h", "6mo".
var rangePattern = regexp.MustCompile(`^(\d+)\s*(h|hours?|d|days?|w|weeks?|mo|months?)$`)

// ParseRange parses a natural language time range string.
//
// Supported formats:
//   - "2 hours", "2hours", "2h"
//   - "3 days", "3days", "3d"
//   - "2 weeks", "2weeks", "2w"
//   - "6 months", "6months", "6mo"
//
// The returned error wraps ErrInvalidRange when the input does not match.
func ParseRange(s string) (time.Duration, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))

	matches := rangePattern.FindStringSubmatch(normalized)
	if matches == nil {
		return 0, fmt.Errorf("%w: %q (use formats like \"2 hours\", \"3 days\", \"2 weeks\", \"6 months\")", ErrInvalidRange, s)
	}

	amount, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRange, s)
	}

	switch matches[2] {
	case "h", "hour", "hours":
		return time.Duration(amount) * time.Hour, nil
	case "d", "day", "days":
		return time.Duration(amount) * day, nil
	case "w", "week", "weeks":
		return time.Duration(amount) * week, nil
	case "mo", "month", "months":
		return time.Duration(amount) * month, nil
	default:
		return 0, fmt.Errorf("%w: unknown unit %q", ErrInvalidRange, matches[2])
	}
}

// Days converts a legacy integer-days value into a duration. It is the one
// adapter for callers that still speak in whole days; everything in this
// package takes durations.
func Days(n int) time.Duration {
	return time.Duration(n) * day
}

// Window resolves a duration into (from, to) boundary strings ending at now.
//
// Durations under one day produce full RFC 3339 timestamps so sub-day windows
// stay precise; longer durations produce YYYY-MM-DD date strings. Both
// boundaries always share one precision, which keeps downstream string
// comparisons valid.
func Window(d time.Duration, now time.Time) (from, to string) {
	now = now.UTC()
	start := now.Add(-d)

	if d < day {
		return start.Format(time.RFC3339), now.Format(time.RFC3339)
	}
	return start.Format(time.DateOnly), now.Format(time.DateOnly)
}

// TTLFor returns the cache TTL appropriate for a search window. Short
// windows change fast and should be re-fetched often; long windows are
// stable, so caching aggressively saves external calls.
func TTLFor(d time.Duration) time.Duration {
	switch {
	case d <= 2*time.Hour:
		return 30 * time.Minute
	case d <= 6*time.Hour:
		return time.Hour
	case d <= day:
		return 2 * time.Hour
	case d <= 3*day:
		return 6 * time.Hour
	case d <= week:
		return 12 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Label returns a human-readable phrase for a duration, like "last 2 hours"
// or "last 3 days". Values are floored to the largest unit that still reads
// as at least one.
func Label(d time.Duration) string {
	hours := d.Hours()
	days := hours / 24

	switch {
	case hours < 24:
		return fmt.Sprintf("last %d %s", int(hours), plural(int(hours), "hour"))
	case days < 7:
		return fmt.Sprintf("last %d %s", int(days), plural(int(days), "day"))
	case days < 30:
		weeks := int(days / 7)
		return fmt.Sprintf("last %d %s", weeks, plural(weeks, "week"))
	default:
		months := int(days / 30)
		return fmt.Sprintf("last %d %s", months, plural(months, "month"))
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}

// dateLayouts are tried in order by ParseDate after the epoch check. The
// first match wins.
var dateLayouts = []string{
	time.DateOnly,
	"2006-01-02T15:04:05",
	time.RFC3339, // covers Z, numeric offsets, and fractional seconds
	"2006-01-02T15:04:05-0700",
}

// ParseDate parses a date string in the formats external sources actually
// emit: Unix epoch seconds, YYYY-MM-DD, or ISO 8601 datetimes. The result is
// normalized to UTC. ok is false when the input is empty or matches nothing.
func ParseDate(s string) (t time.Time, ok bool) {
	if s == "" {
		return time.Time{}, false
	}

	// Reddit reports epoch seconds, sometimes fractional.
	if ts, err := strconv.ParseFloat(s, 64); err == nil {
		sec := int64(ts)
		nsec := int64((ts - float64(sec)) * 1e9)
		return time.Unix(sec, nsec).UTC(), true
	}

	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed.UTC(), true
		}
	}

	return time.Time{}, false
}

// TimestampToDate converts Unix epoch seconds to a YYYY-MM-DD string.
func TimestampToDate(ts float64) string {
	sec := int64(ts)
	return time.Unix(sec, 0).UTC().Format(time.DateOnly)
}

// DateOnly reduces a date string to its YYYY-MM-DD portion so that date-only
// and datetime representations compare consistently.
func DateOnly(s string) string {
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		return s[:i]
	}
	return s
}

// Confidence classifies how much to trust an item's reported date relative
// to the [from, to] window. Dates inside the window (inclusive, compared at
// day granularity) are high confidence; missing, unparsable, too-old, or
// future dates are low. ConfidenceMed is reserved and never returned.
func Confidence(date, from, to string) string {
	if date == "" {
		return ConfidenceLow
	}

	d, err := time.Parse(time.DateOnly, DateOnly(date))
	if err != nil {
		return ConfidenceLow
	}
	start, err := time.Parse(time.DateOnly, DateOnly(from))
	if err != nil {
		return ConfidenceLow
	}
	end, err := time.Parse(time.DateOnly, DateOnly(to))
	if err != nil {
		return ConfidenceLow
	}

	if d.Before(start) {
		// Older than the window
		return ConfidenceLow
	}
	if d.After(end) {
		// Future date (suspicious)
		return ConfidenceLow
	}
	return ConfidenceHigh
}

// DaysAgo returns how many calendar days ago a YYYY-MM-DD date is, relative
// to today in UTC. ok is false for empty or unparsable input.
func DaysAgo(date string) (days int, ok bool) {
	if date == "" {
		return 0, false
	}

	d, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return 0, false
	}

	today, _ := time.Parse(time.DateOnly, time.Now().UTC().Format(time.DateOnly))
	return int(today.Sub(d).Hours() / 24), true
}

// RecencyScore scores freshness from 0 to 100: 100 at age zero, declining
// linearly to 0 at maxAge. Future dates clamp to 100, unknown or unparsable
// dates score 0. This is the single ranking signal consumers use to prefer
// fresher items.
func RecencyScore(date string, maxAge time.Duration) int {
	parsed, ok := ParseDate(date)
	if !ok {
		return 0 // unknown date gets the worst score
	}

	age := time.Now().UTC().Sub(parsed)
	if age < 0 {
		return 100 // future date, treat as now
	}
	if age >= maxAge {
		return 0
	}

	ratio := age.Seconds() / maxAge.Seconds()
	return int(100 * (1 - ratio))
}
