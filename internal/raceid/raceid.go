// Package raceid builds and parses netkeiba race identifiers.
//
// An identifier is twelve digits: YYYY year, PP venue, KK meeting within the
// year, DD day within the meeting, RR race number within the day.
package raceid

import (
	"fmt"
	"strconv"
)

const (
	MaxMeeting = 6
	MaxDay     = 12
	MaxRace    = 12
	Length     = 12
)

// ID is a parsed race identifier.
type ID struct {
	Year    int
	Venue   int
	Meeting int
	Day     int
	Race    int
}

// Parse slices a 12-digit identifier into its components. Anything that is
// not exactly twelve ASCII digits is rejected.
func Parse(s string) (ID, error) {
	if len(s) != Length {
		return ID{}, fmt.Errorf("race id %q: want %d digits, got %d", s, Length, len(s))
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return ID{}, fmt.Errorf("race id %q: non-digit at offset %d", s, i)
		}
	}
	atoi := func(part string) int {
		n, _ := strconv.Atoi(part)
		return n
	}
	return ID{
		Year:    atoi(s[0:4]),
		Venue:   atoi(s[4:6]),
		Meeting: atoi(s[6:8]),
		Day:     atoi(s[8:10]),
		Race:    atoi(s[10:12]),
	}, nil
}

// String renders the zero-padded 12-digit form.
func (id ID) String() string {
	return fmt.Sprintf("%04d%02d%02d%02d%02d", id.Year, id.Venue, id.Meeting, id.Day, id.Race)
}

// Valid reports whether every component is inside its plausible range.
func (id ID) Valid() bool {
	return id.Year >= 1000 && id.Year <= 9999 &&
		id.Venue >= 1 && id.Venue <= 10 &&
		id.Meeting >= 1 && id.Meeting <= MaxMeeting &&
		id.Day >= 1 && id.Day <= MaxDay &&
		id.Race >= 1 && id.Race <= MaxRace
}

// Enumerate returns every meeting × day × race combination for a venue and
// year (6 × 12 × 12 = 864 ids). Nothing is validated here: ids that never ran
// are filtered out later when their pages come back empty.
func Enumerate(year, venue int) []ID {
	ids := make([]ID, 0, MaxMeeting*MaxDay*MaxRace)
	for m := 1; m <= MaxMeeting; m++ {
		for d := 1; d <= MaxDay; d++ {
			for r := 1; r <= MaxRace; r++ {
				ids = append(ids, ID{Year: year, Venue: venue, Meeting: m, Day: d, Race: r})
			}
		}
	}
	return ids
}

// Strings renders a slice of ids.
func Strings(ids []ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
