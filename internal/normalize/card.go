package normalize

import (
	"fmt"
	"strings"

	"github.com/lox/keiba/internal/models"
)

// CardInfo is the race-level header of a race card.
type CardInfo struct {
	RaceName string
	Surface  models.Surface
	Distance int
	Ground   models.Ground
	Weather  models.Weather
	Class    models.Class
}

// ParseCardInfo reads the race card header text. Course variant letters
// (A/B/C) are ignored; as with result intros the last matching word wins.
func ParseCardInfo(name, text string) CardInfo {
	var words []string
	for _, w := range Words(name + " " + text) {
		if w == "A" || w == "B" || w == "C" {
			continue
		}
		words = append(words, w)
	}
	info := CardInfo{RaceName: strings.TrimSpace(name)}
	info.Surface, _ = CardSurface.Scan(words)
	info.Ground, _ = CardGround.Scan(words)
	info.Weather, _ = IntroWeather.Scan(words)
	info.Class, _ = CardClass.Scan(words)
	if info.Class == "" {
		info.Class = RaceClass(name)
	}
	for _, w := range words {
		if strings.Contains(w, "m") {
			if n, ok := lastNumber(w); ok {
				info.Distance = n
			}
		}
	}
	return info
}

const (
	colCardFrame   = "枠"
	colCardHorseNo = "馬番"
	colCardStable  = "厩舎"
)

// Entries converts a race card table into typed entries.
func Entries(raw Table, raceID string, info CardInfo, horseIDs, jockeyIDs []string) ([]models.Entry, error) {
	src := "card " + raceID
	t := raw.Normalized()
	if len(t.Rows) == 0 {
		return nil, models.ErrNotFound
	}
	if err := t.checkShape(colCardHorseNo, colHorseName); err != nil {
		return nil, models.NewParseError(src, err)
	}
	if len(horseIDs) != len(t.Rows) {
		return nil, models.NewParseError(src, fmt.Errorf("%d horse links for %d rows", len(horseIDs), len(t.Rows)))
	}
	frame := t.Col(colCardFrame)
	if frame < 0 {
		frame = t.Col(colFrame)
	}
	horseNo, name, sexAge := t.Col(colCardHorseNo), t.Col(colHorseName), t.Col(colSexAge)
	weight, jockey, stable := t.Col(colWeight), t.Col(colJockey), t.Col(colCardStable)

	out := make([]models.Entry, 0, len(t.Rows))
	for i, r := range t.Rows {
		st, trainer := SplitStable(cell(r, stable))
		e := models.Entry{
			RaceID:        raceID,
			Frame:         atoi(cell(r, frame)),
			HorseNo:       atoi(cell(r, horseNo)),
			HorseName:     cell(r, name),
			SexAge:        cell(r, sexAge),
			WeightCarried: atof(cell(r, weight)),
			Jockey:        cell(r, jockey),
			Trainer:       trainer,
			Stable:        st,
			HorseID:       horseIDs[i],
			RaceName:      info.RaceName,
			Surface:       info.Surface,
			Distance:      info.Distance,
			Ground:        info.Ground,
			Weather:       info.Weather,
			Class:         info.Class,
		}
		if len(jockeyIDs) == len(t.Rows) {
			e.JockeyID = jockeyIDs[i]
		}
		out = append(out, e)
	}
	return out, nil
}
