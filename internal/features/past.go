package features

import (
	"math"
	"strings"

	"github.com/lox/keiba/internal/models"
)

// PastRaces returns up to n races run before raceID from a newest-first
// history. When raceID is not in the history every row is taken as prior.
func PastRaces(history []models.PastRace, raceID string, n int) []models.PastRace {
	rows := history
	for i, p := range history {
		if p.RaceID == raceID {
			rows = history[i+1:]
			break
		}
	}
	if len(rows) > n {
		rows = rows[:n]
	}
	return rows
}

// popularityAndFinish applies the finish sentinels: excluded and scratched
// runners (除, 取) have neither value, stopped and disqualified ones (中, 失)
// keep their popularity but have no finish, and a missing popularity voids
// both.
func popularityAndFinish(p models.PastRace) (pop, finish float64) {
	nan := math.NaN()
	if p.Popularity == nil {
		return nan, nan
	}
	switch {
	case strings.ContainsAny(p.Finish, "除取"):
		return nan, nan
	case strings.ContainsAny(p.Finish, "中失"):
		return float64(*p.Popularity), nan
	}
	pos, ok := models.ResultRow{Finish: p.Finish}.FinishPosition()
	if !ok {
		return float64(*p.Popularity), nan
	}
	return float64(*p.Popularity), float64(pos)
}
