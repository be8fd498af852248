package parser

import (
	"testing"
	"time"
)

func TestParseDMY(t *testing.T) {
	loc := time.FixedZone("ICT", 7*3600)

	got, err := ParseDMY("05/03/2025", loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2025, time.March, 5, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}

	for _, bad := range []string{"", "2025-03-05", "05/03", "aa/03/2025"} {
		if _, err := ParseDMY(bad, loc); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestStartOfDay(t *testing.T) {
	loc := time.FixedZone("ICT", 7*3600)
	in := time.Date(2025, time.March, 5, 23, 59, 1, 5, loc)
	got := StartOfDay(in)
	if got.Hour() != 0 || got.Minute() != 0 || got.Nanosecond() != 0 || got.Day() != 5 {
		t.Fatalf("unexpected %s", got)
	}
}

func TestParseInputDate(t *testing.T) {
	loc := time.UTC
	for _, in := range []string{"2025-03-05T10:30", "2025-03-05", "2025-03-05T10:30:15"} {
		got, err := ParseInputDate(in, loc)
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		if got.Year() != 2025 || got.Month() != time.March || got.Day() != 5 {
			t.Fatalf("%q parsed to %s", in, got)
		}
	}
	if _, err := ParseInputDate("hôm nay", loc); err == nil {
		t.Fatal("expected error")
	}
}
