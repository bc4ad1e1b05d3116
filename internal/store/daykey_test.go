package store

import (
	"testing"
	"time"
)

func TestDayKeyUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	local := time.Date(2026, 3, 1, 3, 15, 0, 0, loc)
	if got := DayKey(local); got != "2026-02-28" {
		t.Fatalf("DayKey(%v)=%q, want 2026-02-28", local, got)
	}
	utc := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	if got := DayKey(utc); got != "2026-03-01" {
		t.Fatalf("DayKey(%v)=%q, want 2026-03-01", utc, got)
	}
}

func TestFormatTicketNo(t *testing.T) {
	cases := []struct {
		no   int64
		want string
	}{
		{1, "0001"},
		{42, "0042"},
		{9999, "9999"},
		{12345, "12345"},
	}
	for _, tt := range cases {
		if got := FormatTicketNo(tt.no); got != tt.want {
			t.Fatalf("FormatTicketNo(%d)=%q, want %q", tt.no, got, tt.want)
		}
	}
}

func TestDisplayTicketID(t *testing.T) {
	if got := DisplayTicketID("b1", "2026-03-01", 7, ""); got != "t_b1_2026-03-01_7" {
		t.Fatalf("shared id=%q", got)
	}
	if got := DisplayTicketID("b1", "2026-03-01", 7, "cut"); got != "t_b1_2026-03-01_7_cut" {
		t.Fatalf("per-service id=%q", got)
	}
}
