package raceid

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rs/zerolog/log"
)

// CalendarDay is one raceday at one venue.
type CalendarDay struct {
	Month   int `csv:"month"`
	Day     int `csv:"day"`
	Venue   int `csv:"course"`
	Meeting int `csv:"times"`
	DayNo   int `csv:"days"`
}

// CalendarPath returns the calendar file for a year.
func CalendarPath(dir string, year int) string {
	return filepath.Join(dir, fmt.Sprintf("%d_race_calendar.csv", year))
}

// LoadCalendar reads {dir}/{year}_race_calendar.csv.
func LoadCalendar(dir string, year int) ([]CalendarDay, error) {
	b, err := os.ReadFile(CalendarPath(dir, year))
	if err != nil {
		return nil, fmt.Errorf("read calendar: %w", err)
	}
	var days []CalendarDay
	if err := csvutil.Unmarshal(b, &days); err != nil {
		return nil, fmt.Errorf("decode calendar %d: %w", year, err)
	}
	return days, nil
}

// Synthesizer produces race ids from the per-year calendar files. Calendar
// problems are logged and yield an empty list; callers treat that as nothing
// to do.
type Synthesizer struct {
	dir string

	missTTL time.Duration

	mu     sync.Mutex
	years  map[int][]CalendarDay
	misses map[int]time.Time
}

func NewSynthesizer(dir string) *Synthesizer {
	return &Synthesizer{
		dir:     dir,
		missTTL: time.Minute,
		years:   make(map[int][]CalendarDay),
		misses:  make(map[int]time.Time),
	}
}

// calendar returns the cached days of year. A failed load is retried once
// missTTL has passed, so a calendar written later is picked up.
func (s *Synthesizer) calendar(year int) []CalendarDay {
	s.mu.Lock()
	defer s.mu.Unlock()
	if days, ok := s.years[year]; ok {
		return days
	}
	if at, ok := s.misses[year]; ok && time.Since(at) < s.missTTL {
		return nil
	}
	days, err := LoadCalendar(s.dir, year)
	if err != nil {
		log.Warn().Err(err).Int("year", year).Msg("raceid: calendar unavailable")
		s.misses[year] = time.Now()
		return nil
	}
	delete(s.misses, year)
	s.years[year] = days
	return days
}

// Day returns the ids of every race on date at venue. Venue 0 selects all
// venues. Each matched raceday expands to races 1..12.
func (s *Synthesizer) Day(date time.Time, venue int) []ID {
	var ids []ID
	for _, cd := range s.calendar(date.Year()) {
		if cd.Month != int(date.Month()) || cd.Day != date.Day() {
			continue
		}
		if venue != 0 && cd.Venue != venue {
			continue
		}
		for r := 1; r <= MaxRace; r++ {
			ids = append(ids, ID{Year: date.Year(), Venue: cd.Venue, Meeting: cd.Meeting, Day: cd.DayNo, Race: r})
		}
	}
	return ids
}

// Window concatenates Day over n consecutive days starting at start.
func (s *Synthesizer) Window(start time.Time, n, venue int) []ID {
	var ids []ID
	for i := 0; i < n; i++ {
		ids = append(ids, s.Day(start.AddDate(0, 0, i), venue)...)
	}
	return ids
}

// PastWeek covers the seven days from ref-8 to ref-2, the weekend just run
// when called early in the week.
func (s *Synthesizer) PastWeek(ref time.Time, venue int) []ID {
	return s.Window(ref.AddDate(0, 0, -8), 7, venue)
}

// NextWeek covers ref and the six days after it.
func (s *Synthesizer) NextWeek(ref time.Time, venue int) []ID {
	return s.Window(ref, 7, venue)
}

// YearToDate covers 1 January through ref inclusive.
func (s *Synthesizer) YearToDate(ref time.Time, venue int) []ID {
	start := time.Date(ref.Year(), time.January, 1, 0, 0, 0, 0, ref.Location())
	days := int(ref.Sub(start).Hours()/24) + 1
	return s.Window(start, days, venue)
}

// Year returns every calendar raceday of a year for the venue.
func (s *Synthesizer) Year(year, venue int) []ID {
	var ids []ID
	for _, cd := range s.calendar(year) {
		if venue != 0 && cd.Venue != venue {
			continue
		}
		for r := 1; r <= MaxRace; r++ {
			ids = append(ids, ID{Year: year, Venue: cd.Venue, Meeting: cd.Meeting, Day: cd.DayNo, Race: r})
		}
	}
	return ids
}
