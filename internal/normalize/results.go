package normalize

import (
	"fmt"
	"strings"

	"github.com/lox/keiba/internal/models"
)

// Intro is the race-level information printed above a result table.
type Intro struct {
	Surface  models.Surface
	Distance int
	Class    models.Class
	Ground   models.Ground
	Weather  models.Weather
	Date     string
}

// ParseIntro scans the intro text word by word. Each field takes the value of
// the last word that matches it. An intro without a class word falls back to
// the race-name keywords, and so to open.
func ParseIntro(text string) Intro {
	words := Words(text)
	var in Intro
	in.Surface, _ = IntroSurface.Scan(words)
	var ok bool
	if in.Class, ok = IntroClass.Scan(words); !ok {
		in.Class = RaceClass(text)
	}
	in.Ground, _ = IntroGround.Scan(words)
	in.Weather, _ = IntroWeather.Scan(words)
	for _, w := range words {
		if strings.Contains(w, "m") {
			if n, ok := lastNumber(w); ok {
				in.Distance = n
			}
		}
		if strings.Contains(w, "年") {
			in.Date = w
		}
	}
	return in
}

// Result table columns after header normalisation.
const (
	colFinish     = "着順"
	colFrame      = "枠番"
	colHorseNo    = "馬番"
	colHorseName  = "馬名"
	colSexAge     = "性齢"
	colWeight     = "斤量"
	colJockey     = "騎手"
	colTime       = "タイム"
	colMargin     = "着差"
	colPassing    = "通過"
	colLast3F     = "上り"
	colOdds       = "単勝"
	colPopularity = "人気"
	colBodyWeight = "馬体重"
	colTrainer    = "調教師"
)

// Results converts a scraped result table into typed rows. horseIDs and
// jockeyIDs are the ids linked from each row, in row order.
func Results(raw Table, intro string, raceID string, horseIDs, jockeyIDs []string) ([]models.ResultRow, error) {
	src := "results " + raceID
	t := raw.Normalized()
	if len(t.Rows) == 0 {
		return nil, models.ErrNotFound
	}
	if err := t.checkShape(colFinish, colHorseNo, colHorseName); err != nil {
		return nil, models.NewParseError(src, err)
	}
	if len(horseIDs) != len(t.Rows) {
		return nil, models.NewParseError(src, fmt.Errorf("%d horse links for %d rows", len(horseIDs), len(t.Rows)))
	}
	if len(jockeyIDs) != len(t.Rows) {
		jockeyIDs = nil
	}

	in := ParseIntro(intro)
	col := func(name string) int { return t.Col(name) }
	var (
		finish, frame, horseNo, name = col(colFinish), col(colFrame), col(colHorseNo), col(colHorseName)
		sexAge, weight, jockey       = col(colSexAge), col(colWeight), col(colJockey)
		tm, margin, passing, last3f  = col(colTime), col(colMargin), col(colPassing), col(colLast3F)
		odds, pop, body, trainer     = col(colOdds), col(colPopularity), col(colBodyWeight), col(colTrainer)
	)

	rows := make([]models.ResultRow, 0, len(t.Rows))
	for i, r := range t.Rows {
		row := models.ResultRow{
			RaceID:        raceID,
			HorseID:       horseIDs[i],
			Finish:        cell(r, finish),
			Frame:         atoi(cell(r, frame)),
			HorseNo:       atoi(cell(r, horseNo)),
			HorseName:     cell(r, name),
			SexAge:        cell(r, sexAge),
			WeightCarried: atof(cell(r, weight)),
			Jockey:        cell(r, jockey),
			Time:          cell(r, tm),
			Margin:        cell(r, margin),
			Passing:       cell(r, passing),
			Last3F:        floatPtr(cell(r, last3f)),
			Odds:          floatPtr(cell(r, odds)),
			Popularity:    intPtr(cell(r, pop)),
			BodyWeight:    intPtr(StripParens(cell(r, body))),
			Trainer:       StripStable(cell(r, trainer)),
			Surface:       in.Surface,
			Distance:      in.Distance,
			Ground:        in.Ground,
			Class:         in.Class,
			Weather:       in.Weather,
			Date:          in.Date,
		}
		if jockeyIDs != nil {
			row.JockeyID = jockeyIDs[i]
		}
		rows = append(rows, NormalizeResult(row))
	}
	return rows, nil
}

// NormalizeResult applies the per-row clean-up. It is idempotent.
func NormalizeResult(r models.ResultRow) models.ResultRow {
	r.Finish = strings.TrimSpace(r.Finish)
	r.HorseName = strings.TrimSpace(r.HorseName)
	r.Jockey = strings.TrimSpace(r.Jockey)
	r.Trainer = strings.TrimSpace(r.Trainer)
	r.Time = PrefixHour(r.Time)
	r.Margin = strings.TrimSpace(r.Margin)
	r.Passing = strings.TrimSpace(r.Passing)
	if r.Ground != "" {
		r.Ground = models.CanonicalGround(string(r.Ground))
	}
	return r
}

// StripStable removes the 美浦/栗東 affiliation prefix from a trainer cell,
// returning the trainer name.
func StripStable(s string) string {
	_, name := SplitStable(s)
	return name
}

// SplitStable separates the 美浦/栗東 affiliation from a trainer cell.
func SplitStable(s string) (stable, trainer string) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "[東]"):
		return "美浦", strings.TrimSpace(strings.TrimPrefix(s, "[東]"))
	case strings.HasPrefix(s, "[西]"):
		return "栗東", strings.TrimSpace(strings.TrimPrefix(s, "[西]"))
	}
	for _, st := range []string{"美浦", "栗東"} {
		if strings.Contains(s, st) {
			return st, strings.TrimSpace(strings.ReplaceAll(s, st, ""))
		}
	}
	return "", s
}
