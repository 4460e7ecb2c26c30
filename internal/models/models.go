package models

import (
	"strconv"
	"strings"
	"unicode"
)

// ResultRow is one entrant's finish in one race.
type ResultRow struct {
	RaceID        string   `csv:"race_id"`
	HorseID       string   `csv:"horse_id"`
	JockeyID      string   `csv:"jockey_id"`
	Finish        string   `csv:"finish"` // digits, or 中/除/取/失
	Frame         int      `csv:"frame"`
	HorseNo       int      `csv:"horse_no"`
	HorseName     string   `csv:"horse_name"`
	SexAge        string   `csv:"sex_age"`
	WeightCarried float64  `csv:"weight_carried"`
	Jockey        string   `csv:"jockey"`
	Time          string   `csv:"time"` // H:MM:SS.s
	Margin        string   `csv:"margin"`
	Passing       string   `csv:"passing"`
	Last3F        *float64 `csv:"last_3f"`
	Odds          *float64 `csv:"odds"`
	Popularity    *int     `csv:"popularity"`
	BodyWeight    *int     `csv:"body_weight"`
	Trainer       string   `csv:"trainer"`
	Surface       Surface  `csv:"surface"`
	Distance      int      `csv:"distance"`
	Ground        Ground   `csv:"ground"`
	Class         Class    `csv:"class"`
	Weather       Weather  `csv:"weather"`
	Date          string   `csv:"date"`
}

// FinishPosition returns the numeric finishing position. Scratched, stopped
// and disqualified runners report false.
func (r ResultRow) FinishPosition() (int, bool) {
	return leadingInt(r.Finish)
}

// InShow reports whether the runner finished first to third.
func (r ResultRow) InShow() bool {
	p, ok := r.FinishPosition()
	return ok && p >= 1 && p <= 3
}

// Year returns the season encoded in the race id, or 0.
func (r ResultRow) Year() int {
	return raceYear(r.RaceID)
}

// Venue returns the venue code encoded in the race id, or 0.
func (r ResultRow) Venue() int {
	if len(r.RaceID) < 6 {
		return 0
	}
	v, err := strconv.Atoi(r.RaceID[4:6])
	if err != nil {
		return 0
	}
	return v
}

// Course returns the condition bucket the row was run under.
func (r ResultRow) Course() Course {
	return Course{
		Venue:    r.Venue(),
		Surface:  r.Surface,
		Distance: r.Distance,
		Ground:   r.Ground,
		Class:    r.Class,
	}
}

// PastRace is one row of a horse's race history as shown on its profile page.
type PastRace struct {
	RaceID        string   `csv:"race_id"` // empty when it could not be reconstructed
	Date          string   `csv:"date"`
	VenueText     string   `csv:"venue_text"` // e.g. 2東京12
	Weather       string   `csv:"weather"`
	RaceNo        int      `csv:"race_no"`
	RaceName      string   `csv:"race_name"`
	FieldSize     int      `csv:"field_size"`
	Frame         *int     `csv:"frame"`
	HorseNo       *int     `csv:"horse_no"`
	Odds          *float64 `csv:"odds"`
	Popularity    *int     `csv:"popularity"`
	Finish        string   `csv:"finish"`
	Jockey        string   `csv:"jockey"`
	WeightCarried *float64 `csv:"weight_carried"`
	CourseText    string   `csv:"course_text"` // e.g. 芝1800
	GroundText    string   `csv:"ground_text"`
	Time          string   `csv:"time"`
	Margin        string   `csv:"margin"`
	Passing       string   `csv:"passing"`
	Last3F        *float64 `csv:"last_3f"`
	BodyWeight    *int     `csv:"body_weight"`
}

// Key identifies the row within a history. Rows whose race id is unknown fall
// back to date, venue text and race number so they never collapse together.
func (p PastRace) Key() string {
	if p.RaceID != "" {
		return p.RaceID
	}
	return p.Date + "|" + p.VenueText + "|" + strconv.Itoa(p.RaceNo)
}

// PedigreeSize is the number of ancestors across five generations.
const PedigreeSize = 2 + 4 + 8 + 16 + 32

// Pedigree holds five generations of ancestors, generation by generation:
// index 0 sire, 1 dam, 2..5 grandparents (4 = dam's sire) and so on.
type Pedigree struct {
	HorseID   string
	Ancestors []string
}

func (p Pedigree) at(i int) string {
	if i < len(p.Ancestors) {
		return p.Ancestors[i]
	}
	return ""
}

func (p Pedigree) Sire() string    { return p.at(0) }
func (p Pedigree) Dam() string     { return p.at(1) }
func (p Pedigree) Damsire() string { return p.at(4) }

// PedigreeEntry is the stored, transposed form of one ancestor slot.
type PedigreeEntry struct {
	Position int    `csv:"position"`
	Name     string `csv:"name"`
}

// Entries returns the stored, transposed form of the pedigree.
func (p Pedigree) Entries() []PedigreeEntry {
	out := make([]PedigreeEntry, len(p.Ancestors))
	for i, name := range p.Ancestors {
		out[i] = PedigreeEntry{Position: i, Name: name}
	}
	return out
}

// PedigreeFromEntries rebuilds a pedigree from its stored entries. Missing
// positions are left empty.
func PedigreeFromEntries(horseID string, entries []PedigreeEntry) Pedigree {
	ancestors := make([]string, PedigreeSize)
	for _, e := range entries {
		if e.Position >= 0 && e.Position < PedigreeSize {
			ancestors[e.Position] = e.Name
		}
	}
	return Pedigree{HorseID: horseID, Ancestors: ancestors}
}

// PedsResultRow joins one race outcome with the runner's pedigree.
type PedsResultRow struct {
	RaceID   string  `csv:"race_id"`
	HorseID  string  `csv:"horse_id"`
	Finish   string  `csv:"finish"`
	Surface  Surface `csv:"surface"`
	Distance int     `csv:"distance"`
	Ground   Ground  `csv:"ground"`
	Class    Class   `csv:"class"`
	Sire     string  `csv:"sire"`
	Dam      string  `csv:"dam"`
	Damsire  string  `csv:"damsire"`
}

func (r PedsResultRow) Year() int { return raceYear(r.RaceID) }

// ReturnRow is one payout line of a race.
type ReturnRow struct {
	RaceID     string  `csv:"race_id"`
	BetType    BetType `csv:"bet_type"`
	Selection  string  `csv:"selection"`  // members joined by "-", selections by " "
	Payout     string  `csv:"payout"`     // yen per 100, space separated per selection
	Popularity string  `csv:"popularity"` // space separated per selection
}

// Selections returns each winning combination as horse (or bracket) numbers.
func (r ReturnRow) Selections() [][]int {
	var out [][]int
	for _, sel := range strings.Fields(r.Selection) {
		var combo []int
		for _, part := range strings.Split(sel, "-") {
			n, err := strconv.Atoi(part)
			if err != nil {
				combo = nil
				break
			}
			combo = append(combo, n)
		}
		if combo != nil {
			out = append(out, combo)
		}
	}
	return out
}

// Payouts returns the payout for each selection, in the same order.
func (r ReturnRow) Payouts() []int {
	var out []int
	for _, f := range strings.Fields(r.Payout) {
		n, err := strconv.Atoi(f)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Entry is one runner on a race card.
type Entry struct {
	RaceID        string  `csv:"race_id"`
	Frame         int     `csv:"frame"`
	HorseNo       int     `csv:"horse_no"`
	HorseName     string  `csv:"horse_name"`
	SexAge        string  `csv:"sex_age"`
	WeightCarried float64 `csv:"weight_carried"`
	Jockey        string  `csv:"jockey"`
	Trainer       string  `csv:"trainer"`
	Stable        string  `csv:"stable"` // 美浦, 栗東 or empty
	HorseID       string  `csv:"horse_id"`
	JockeyID      string  `csv:"jockey_id"`
	RaceName      string  `csv:"race_name"`
	Surface       Surface `csv:"surface"`
	Distance      int     `csv:"distance"`
	Ground        Ground  `csv:"ground"`
	Weather       Weather `csv:"weather"`
	Class         Class   `csv:"class"`
}

// HorseName maps a horse id to its registered name.
type HorseName struct {
	HorseID string `csv:"horse_id"`
	Name    string `csv:"name"`
}

// Course is a condition bucket: where, on what, how far, going and class.
// Venue -1 marks a race outside the ten JRA venues.
type Course struct {
	Venue    int
	Surface  Surface
	Distance int
	Ground   Ground
	Class    Class
}

// CourseAverage is the mean finishing time of one condition bucket.
type CourseAverage struct {
	Venue     int     `csv:"venue"`
	Surface   Surface `csv:"surface"`
	Distance  int     `csv:"distance"`
	Ground    Ground  `csv:"ground"`
	Class     Class   `csv:"class"`
	AvgTimeMs *int64  `csv:"avg_time_ms"`
	Samples   int     `csv:"samples"`
}

// SireStat counts placings for one sire within one condition bucket.
type SireStat struct {
	Surface  Surface `csv:"surface"`
	Distance int     `csv:"distance"`
	Ground   Ground  `csv:"ground"`
	Class    Class   `csv:"class"`
	Sire     string  `csv:"sire"`
	First    int     `csv:"first"`
	Second   int     `csv:"second"`
	Third    int     `csv:"third"`
	Out      int     `csv:"out"`
}

// Prediction is one ranked runner from the external ranking model.
type Prediction struct {
	RaceID  string  `csv:"race_id"`
	HorseNo int     `csv:"horse_no"`
	Rank    int     `csv:"rank"`
	Score   float64 `csv:"score"`
}

func leadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] < 0x80 && unicode.IsDigit(rune(s[end])) {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

func raceYear(id string) int {
	if len(id) < 4 {
		return 0
	}
	y, err := strconv.Atoi(id[:4])
	if err != nil {
		return 0
	}
	return y
}
