package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lox/keiba/internal/models"
)

// VenueLookup resolves venue names to JRA venue codes.
type VenueLookup interface {
	// VenueCode returns the code of the venue named exactly name, or -1.
	VenueCode(name string) int
	// VenueByName returns the code of the venue whose name occurs in text, or -1.
	VenueByName(text string) int
}

// History table columns after header normalisation.
const (
	colDate      = "日付"
	colVenue     = "開催"
	colWeather   = "天気"
	colRaceNo    = "R"
	colRaceName  = "レース名"
	colFieldSize = "頭数"
	colOddsHist  = "オッズ"
	colCourse    = "距離"
	colGround    = "馬場"
)

// PastRaces converts a horse history table into typed rows, newest first as
// the site lists them, each with its reconstructed race id.
func PastRaces(raw Table, horseID string, venues VenueLookup) ([]models.PastRace, error) {
	src := "history " + horseID
	t := raw.Normalized()
	if len(t.Rows) == 0 {
		return nil, models.ErrNotFound
	}
	if err := t.checkShape(colDate, colVenue, colRaceNo, colFinish); err != nil {
		return nil, models.NewParseError(src, err)
	}
	col := t.Col
	var (
		date, venue, weather, raceNo = col(colDate), col(colVenue), col(colWeather), col(colRaceNo)
		name, field, frame, horseNo  = col(colRaceName), col(colFieldSize), col(colFrame), col(colHorseNo)
		odds, pop, finish, jockey    = col(colOddsHist), col(colPopularity), col(colFinish), col(colJockey)
		weight, course, ground, tm   = col(colWeight), col(colCourse), col(colGround), col(colTime)
		margin, passing, last3f      = col(colMargin), col(colPassing), col(colLast3F)
		body                         = col(colBodyWeight)
	)

	out := make([]models.PastRace, 0, len(t.Rows))
	for _, r := range t.Rows {
		p := models.PastRace{
			Date:          cell(r, date),
			VenueText:     cell(r, venue),
			Weather:       cell(r, weather),
			RaceNo:        atoi(cell(r, raceNo)),
			RaceName:      cell(r, name),
			FieldSize:     atoi(cell(r, field)),
			Frame:         intPtr(cell(r, frame)),
			HorseNo:       intPtr(cell(r, horseNo)),
			Odds:          floatPtr(cell(r, odds)),
			Popularity:    intPtr(cell(r, pop)),
			Finish:        cell(r, finish),
			Jockey:        cell(r, jockey),
			WeightCarried: floatPtr(cell(r, weight)),
			CourseText:    cell(r, course),
			GroundText:    cell(r, ground),
			Time:          PrefixHour(cell(r, tm)),
			Margin:        cell(r, margin),
			Passing:       cell(r, passing),
			Last3F:        floatPtr(cell(r, last3f)),
			BodyWeight:    intPtr(StripParens(cell(r, body))),
		}
		p.RaceID = ReconstructRaceID(p.Date, p.VenueText, p.RaceNo, venues)
		out = append(out, p)
	}
	return out, nil
}

var leadingDigits = regexp.MustCompile(`^\d+`)

// ReconstructRaceID rebuilds the race id of a history row from its date
// ("2023/05/28"), meeting text ("2東京12": meeting 2, day 12) and race
// number. It returns "" when the venue is not a JRA venue or the text cannot
// be read.
func ReconstructRaceID(date, venueText string, raceNo int, venues VenueLookup) string {
	year := leadingDigits.FindString(strings.TrimSpace(date))
	if len(year) != 4 {
		return ""
	}
	name := strings.TrimSpace(digitsRe.ReplaceAllString(venueText, ""))
	code := venues.VenueCode(name)
	if code <= 0 {
		return ""
	}
	nums := digitsRe.FindAllString(venueText, -1)
	if len(nums) < 2 || raceNo <= 0 {
		return ""
	}
	return fmt.Sprintf("%s%02d%02d%02d%02d", year, code, atoi(nums[0]), atoi(nums[1]), raceNo)
}

// CourseInfo derives the condition bucket a past race was run under. Races
// away from the JRA venues report Venue -1 and nothing else.
func CourseInfo(p models.PastRace, venues VenueLookup) models.Course {
	c := models.Course{Venue: venues.VenueByName(p.VenueText)}
	if c.Venue < 0 {
		return c
	}
	switch {
	case strings.Contains(p.CourseText, "芝"):
		c.Surface = models.SurfaceTurf
	case strings.Contains(p.CourseText, "ダ"):
		c.Surface = models.SurfaceDirt
	default:
		c.Surface = models.SurfaceJump
	}
	c.Distance = atoi(nonDigit.ReplaceAllString(p.CourseText, ""))
	c.Ground = models.CanonicalGround(strings.TrimSpace(p.GroundText))
	c.Class = RaceClass(p.RaceName)
	return c
}
