// Package format renders money, receipt timestamps and durations for display.
package format

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kathmandu is the civil zone every receipt is printed in, whatever the viewer's locale.
var Kathmandu = time.FixedZone("Asia/Kathmandu", 5*60*60+45*60)

const (
	InvalidDate = "Invalid Date"
	InvalidTime = "Invalid Time"
	Missing     = "N/A"
)

// ErrEmptyTimestamp is returned by ParseTimestamp for blank input.
var ErrEmptyTimestamp = errors.New("empty timestamp")

// timestampLayouts covers what the API emits: RFC 3339 with or without zone and fractions.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
}

// Money normalizes an amount to exactly two decimals, rounding half away from zero.
func Money(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// ParseTimestamp reads an ISO-8601 instant. Values without a zone are taken as UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrEmptyTimestamp
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

// ReceiptDate renders the day/month/year of an instant in Kathmandu time.
func ReceiptDate(raw string) string {
	date, _ := ReceiptTimestamp(raw)
	return date
}

// ReceiptTime renders the 12-hour clock time of an instant in Kathmandu time.
func ReceiptTime(raw string) string {
	_, clock := ReceiptTimestamp(raw)
	return clock
}

// ReceiptTimestamp converts the instant to Kathmandu before extracting calendar fields.
// Blank input yields N/A and unparseable input yields the Invalid sentinels.
func ReceiptTimestamp(raw string) (date, clock string) {
	t, err := ParseTimestamp(raw)
	if errors.Is(err, ErrEmptyTimestamp) {
		return Missing, Missing
	}
	if err != nil {
		return InvalidDate, InvalidTime
	}
	local := t.In(Kathmandu)
	return local.Format("02/01/2006"), local.Format("03:04 PM")
}

// Duration renders the whole minutes between two instants as "45m" or "2h 15m".
// An end before start is not clamped.
func Duration(start, end time.Time) string {
	mins := int64(math.Floor(end.Sub(start).Minutes()))
	if mins < 60 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%dh %dm", mins/60, mins%60)
}

// Elapsed is the badge shown on an occupied table: time since the guest arrived.
func Elapsed(since, now time.Time) string {
	return Duration(since, now)
}

// DurationBetween is Duration over raw API timestamps, N/A when either side is unreadable.
func DurationBetween(rawStart, rawEnd string) string {
	start, err := ParseTimestamp(rawStart)
	if err != nil {
		return Missing
	}
	end, err := ParseTimestamp(rawEnd)
	if err != nil {
		return Missing
	}
	return Duration(start, end)
}
