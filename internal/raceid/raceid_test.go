package raceid

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseRoundTrip(t *testing.T) {
	tests := []string{
		"202305021211",
		"201901010101",
		"202410060112",
		"000000000000",
	}
	for _, s := range tests {
		id, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q): %v", s, err)
		}
		if got := id.String(); got != s {
			t.Errorf("Parse(%q).String() = %q, want %q", s, got, s)
		}
	}
}

func TestParseComponents(t *testing.T) {
	id, err := Parse("202305021211")
	if err != nil {
		t.Fatal(err)
	}
	want := ID{Year: 2023, Venue: 5, Meeting: 2, Day: 12, Race: 11}
	if id != want {
		t.Errorf("Parse = %+v, want %+v", id, want)
	}
	if !id.Valid() {
		t.Error("Valid() = false, want true")
	}
}

func TestParseRejects(t *testing.T) {
	for _, s := range []string{"", "20230502121", "2023050212111", "2023O5021211", "nan"} {
		if _, err := Parse(s); err == nil {
			t.Errorf("Parse(%q) = nil error, want error", s)
		}
	}
}

func TestEnumerate(t *testing.T) {
	ids := Enumerate(2022, 6)
	if len(ids) != 864 {
		t.Fatalf("len(Enumerate) = %d, want 864", len(ids))
	}
	if got := ids[0].String(); got != "202206010101" {
		t.Errorf("first = %s, want 202206010101", got)
	}
	if got := ids[len(ids)-1].String(); got != "202206061212" {
		t.Errorf("last = %s, want 202206061212", got)
	}
	seen := make(map[ID]bool)
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func writeCalendar(t *testing.T, dir string, year int, body string) {
	t.Helper()
	if err := os.WriteFile(CalendarPath(dir, year), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
}

const calendar2023 = `month,day,course,times,days
5,27,5,2,11
5,28,5,2,12
5,28,8,3,12
6,3,5,3,1
`

func TestSynthesizerDay(t *testing.T) {
	dir := t.TempDir()
	writeCalendar(t, dir, 2023, calendar2023)
	s := NewSynthesizer(dir)

	day := time.Date(2023, 5, 28, 0, 0, 0, 0, time.UTC)

	all := s.Day(day, 0)
	if len(all) != 24 {
		t.Fatalf("len(Day(all venues)) = %d, want 24", len(all))
	}

	tokyo := s.Day(day, 5)
	if len(tokyo) != 12 {
		t.Fatalf("len(Day(tokyo)) = %d, want 12", len(tokyo))
	}
	if got := tokyo[0].String(); got != "202305021201" {
		t.Errorf("first = %s, want 202305021201", got)
	}
	if got := tokyo[11].String(); got != "202305021212" {
		t.Errorf("last = %s, want 202305021212", got)
	}

	if got := s.Day(time.Date(2023, 5, 29, 0, 0, 0, 0, time.UTC), 0); len(got) != 0 {
		t.Errorf("len(Day(no racing)) = %d, want 0", len(got))
	}
}

func TestSynthesizerWeeks(t *testing.T) {
	dir := t.TempDir()
	writeCalendar(t, dir, 2023, calendar2023)
	s := NewSynthesizer(dir)

	// Monday 5 June: the past week is 28 May .. 3 June.
	ref := time.Date(2023, 6, 5, 0, 0, 0, 0, time.UTC)
	past := s.PastWeek(ref, 5)
	if len(past) != 24 {
		t.Fatalf("len(PastWeek) = %d, want 24", len(past))
	}
	if got := past[0].String(); got != "202305021201" {
		t.Errorf("PastWeek first = %s, want 202305021201", got)
	}

	next := s.NextWeek(time.Date(2023, 5, 27, 0, 0, 0, 0, time.UTC), 0)
	if len(next) != 36 {
		t.Errorf("len(NextWeek) = %d, want 36", len(next))
	}

	ytd := s.YearToDate(time.Date(2023, 5, 28, 0, 0, 0, 0, time.UTC), 0)
	if len(ytd) != 36 {
		t.Errorf("len(YearToDate) = %d, want 36", len(ytd))
	}

	if got := s.Year(2023, 8); len(got) != 12 {
		t.Errorf("len(Year(kyoto)) = %d, want 12", len(got))
	}
}

func TestSynthesizerMissingCalendar(t *testing.T) {
	s := NewSynthesizer(filepath.Join(t.TempDir(), "nowhere"))
	if got := s.Day(time.Date(2023, 5, 28, 0, 0, 0, 0, time.UTC), 0); len(got) != 0 {
		t.Errorf("len(Day) = %d, want 0 for missing calendar", len(got))
	}
}

func TestSynthesizerCalendarWrittenLater(t *testing.T) {
	dir := t.TempDir()
	s := NewSynthesizer(dir)
	day := time.Date(2023, 5, 28, 0, 0, 0, 0, time.UTC)
	if got := s.Day(day, 0); len(got) != 0 {
		t.Fatalf("len(Day) = %d, want 0 before the calendar exists", len(got))
	}

	writeCalendar(t, dir, 2023, "month,day,course,times,days\n5,28,5,2,12\n")
	if got := s.Day(day, 0); len(got) != 0 {
		t.Errorf("len(Day) = %d, want 0 while the miss is cached", len(got))
	}

	s.missTTL = 0
	if got := s.Day(day, 0); len(got) != MaxRace {
		t.Errorf("len(Day) = %d, want %d once the calendar is retried", len(got), MaxRace)
	}
}

func TestSynthesizerMalformedCalendar(t *testing.T) {
	dir := t.TempDir()
	writeCalendar(t, dir, 2023, "month,day,course,times,days\nfive,27,5,2,11\n")
	s := NewSynthesizer(dir)
	if got := s.Year(2023, 0); len(got) != 0 {
		t.Errorf("len(Year) = %d, want 0 for malformed calendar", len(got))
	}
}
