package util

import (
	"testing"
	"time"
)

func TestDaySeriesInclusive(t *testing.T) {
	now := time.Date(2026, 3, 2, 15, 4, 5, 0, time.UTC)
	got := DaySeries(now.AddDate(0, 0, -3), now)
	want := []string{"2026-02-27", "2026-02-28", "2026-03-01", "2026-03-02"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestDaySeriesUsesUTC(t *testing.T) {
	paris := time.FixedZone("CET", 3600)
	at := time.Date(2026, 1, 10, 0, 30, 0, 0, paris) // 2026-01-09 23:30 UTC
	got := DaySeries(at, at)
	if len(got) != 1 || got[0] != "2026-01-09" {
		t.Fatalf("got %v", got)
	}
	if DaySeries(at, at.Add(-48*time.Hour)) != nil {
		t.Fatalf("reversed range should be empty")
	}
}

func TestClamp(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, 1}, {7, 7}, {9999, 365}, {-4, 1}, {365, 365},
	}
	for _, tc := range cases {
		if got := Clamp(tc.in, 1, 365); got != tc.want {
			t.Errorf("%d -> %d, want %d", tc.in, got, tc.want)
		}
	}
}
