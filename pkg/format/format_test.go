package format

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestMoney(t *testing.T) {
	tests := []struct {
		in   decimal.Decimal
		want string
	}{
		{decimal.NewFromInt(12), "12.00"},
		{decimal.RequireFromString("12.005"), "12.01"},
		{decimal.NewFromFloat(12.005), "12.01"},
		{decimal.Zero, "0.00"},
		{decimal.RequireFromString("1499.999"), "1500.00"},
		{decimal.RequireFromString("3.1"), "3.10"},
	}
	for _, tt := range tests {
		if got := Money(tt.in); got != tt.want {
			t.Errorf("Money(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReceiptTimestamp(t *testing.T) {
	tests := []struct {
		raw       string
		wantDate  string
		wantClock string
	}{
		{"2024-01-01T00:00:00Z", "01/01/2024", "05:45 AM"},
		{"2024-01-01T00:00:00", "01/01/2024", "05:45 AM"},
		{"2024-06-30T18:20:00.123456", "01/07/2024", "12:05 AM"},
		{"2024-06-30T12:00:00+05:45", "30/06/2024", "12:00 PM"},
		{"2023-12-31T20:00:00-05:00", "01/01/2024", "06:45 AM"},
		{"not a date", InvalidDate, InvalidTime},
		{"", Missing, Missing},
	}
	for _, tt := range tests {
		date, clock := ReceiptTimestamp(tt.raw)
		if date != tt.wantDate || clock != tt.wantClock {
			t.Errorf("ReceiptTimestamp(%q) = %q %q, want %q %q", tt.raw, date, clock, tt.wantDate, tt.wantClock)
		}
		if ReceiptDate(tt.raw) != tt.wantDate || ReceiptTime(tt.raw) != tt.wantClock {
			t.Errorf("ReceiptDate/ReceiptTime(%q) disagree with ReceiptTimestamp", tt.raw)
		}
	}
}

func TestDuration(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2024, 1, 1, h, m, 0, 0, time.UTC) }

	tests := []struct {
		start, end time.Time
		want       string
	}{
		{at(10, 0), at(10, 45), "45m"},
		{at(10, 0), at(12, 15), "2h 15m"},
		{at(10, 0), at(11, 0), "1h 0m"},
		{at(10, 0), at(10, 0), "0m"},
		{at(10, 0), at(10, 0).Add(59*time.Minute + 59*time.Second), "59m"},
	}
	for _, tt := range tests {
		if got := Duration(tt.start, tt.end); got != tt.want {
			t.Errorf("Duration(%s, %s) = %q, want %q", tt.start.Format("15:04"), tt.end.Format("15:04"), got, tt.want)
		}
	}
}

func TestDurationNegativeIsNotClamped(t *testing.T) {
	// End before start is undefined input; the arithmetic result passes through.
	start := time.Date(2024, 1, 1, 10, 45, 0, 0, time.UTC)
	end := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	if got := Duration(start, end); got != "-45m" {
		t.Fatalf("expected unclamped -45m, got %q", got)
	}
}

func TestDurationBetween(t *testing.T) {
	if got := DurationBetween("2024-01-01T10:00:00Z", "2024-01-01T12:15:00Z"); got != "2h 15m" {
		t.Fatalf("unexpected duration %q", got)
	}
	if got := DurationBetween("garbage", "2024-01-01T12:15:00Z"); got != Missing {
		t.Fatalf("expected %q for unreadable start, got %q", Missing, got)
	}
}

func TestElapsed(t *testing.T) {
	arrival := time.Date(2024, 1, 1, 19, 5, 0, 0, time.UTC)
	now := arrival.Add(95 * time.Minute)
	if got := Elapsed(arrival, now); got != "1h 35m" {
		t.Fatalf("unexpected badge %q", got)
	}
}
