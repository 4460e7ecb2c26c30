// Package payout replays model rankings against settled payouts.
package payout

import (
	"fmt"
	"slices"

	"github.com/lox/keiba/internal/models"
)

// Bet is one betting rule keyed on the model's ranks.
type Bet struct {
	Name string
	Pool models.BetType
	// Combos is the number of 100-yen tickets the rule buys per race.
	Combos int
	// Hit reports whether a winning selection, given as the model ranks of
	// its runners, was covered.
	Hit func(ranks []int) bool
}

// Win backs the top-ranked runner to win.
func Win() Bet {
	return Bet{Name: "win", Pool: models.BetWin, Combos: 1, Hit: topOnly}
}

// Place backs the top-ranked runner to place.
func Place() Bet {
	return Bet{Name: "place", Pool: models.BetPlace, Combos: 1, Hit: topOnly}
}

func topOnly(ranks []int) bool { return len(ranks) == 1 && ranks[0] == 1 }

// QuinellaBox boxes the top n runners.
func QuinellaBox(n int) Bet {
	return Bet{Name: fmt.Sprintf("quinella_box%d", n), Pool: models.BetQuinella, Combos: choose(n, 2), Hit: box(n)}
}

// QuinellaWheel keys the top runner with the next n.
func QuinellaWheel(n int) Bet {
	return Bet{Name: fmt.Sprintf("quinella_wheel%d", n), Pool: models.BetQuinella, Combos: n, Hit: wheel(n)}
}

// TrioBox boxes the top n runners.
func TrioBox(n int) Bet {
	return Bet{Name: fmt.Sprintf("trio_box%d", n), Pool: models.BetTrio, Combos: choose(n, 3), Hit: box(n)}
}

// TrioWheel keys the top runner with any two of the next n.
func TrioWheel(n int) Bet {
	return Bet{Name: fmt.Sprintf("trio_wheel%d", n), Pool: models.BetTrio, Combos: choose(n, 2), Hit: wheel(n)}
}

// DefaultBets is the standard report: single bets, then three- and
// five-runner boxes and wheels.
func DefaultBets() []Bet {
	return []Bet{
		Win(), Place(),
		QuinellaBox(3), QuinellaBox(5), QuinellaWheel(3), QuinellaWheel(5),
		TrioBox(3), TrioBox(5), TrioWheel(3), TrioWheel(5),
	}
}

func box(n int) func([]int) bool {
	return func(ranks []int) bool {
		if len(ranks) == 0 {
			return false
		}
		for _, r := range ranks {
			if r < 1 || r > n {
				return false
			}
		}
		return true
	}
}

func wheel(n int) func([]int) bool {
	return func(ranks []int) bool {
		return slices.Contains(ranks, 1) && box(n+1)(ranks)
	}
}

func choose(n, k int) int {
	if k < 0 || k > n {
		return 0
	}
	c := 1
	for i := 0; i < k; i++ {
		c = c * (n - i) / (i + 1)
	}
	return c
}

// Result summarises one bet over the simulated races.
type Result struct {
	Bet     string  `json:"bet"`
	Races   int     `json:"races"`
	Hits    int     `json:"hits"`
	HitRate float64 `json:"hit_rate"`
	// ReturnRate is yen returned per 100 yen staked, as a percentage.
	ReturnRate float64  `json:"return_rate"`
	HitRaces   []string `json:"hit_races"`
}

// Simulate plays each bet on every race that has both predictions and
// payouts. Races missing either are skipped.
func Simulate(preds []models.Prediction, returns []models.ReturnRow, bets []Bet) []Result {
	ranks := make(map[string]map[int]int)
	for _, p := range preds {
		if ranks[p.RaceID] == nil {
			ranks[p.RaceID] = make(map[int]int)
		}
		ranks[p.RaceID][p.HorseNo] = p.Rank
	}
	pools := make(map[string][]models.ReturnRow)
	for _, r := range returns {
		pools[r.RaceID] = append(pools[r.RaceID], r)
	}
	var races []string
	for id := range ranks {
		if len(pools[id]) > 0 {
			races = append(races, id)
		}
	}
	slices.Sort(races)

	out := make([]Result, 0, len(bets))
	for _, bet := range bets {
		res := Result{Bet: bet.Name, Races: len(races)}
		var paid float64
		for _, id := range races {
			hit := false
			for _, row := range pools[id] {
				if row.BetType != bet.Pool {
					continue
				}
				payouts := row.Payouts()
				for i, sel := range row.Selections() {
					if !bet.Hit(rankOf(ranks[id], sel)) || i >= len(payouts) {
						continue
					}
					paid += float64(payouts[i])
					hit = true
				}
			}
			if hit {
				res.Hits++
				res.HitRaces = append(res.HitRaces, id)
			}
		}
		if res.Races > 0 {
			res.HitRate = float64(res.Hits) / float64(res.Races)
			if bet.Combos > 0 {
				res.ReturnRate = paid / float64(res.Races) / float64(bet.Combos)
			}
		}
		out = append(out, res)
	}
	return out
}

// rankOf maps horse numbers to model ranks; unranked runners get 0.
func rankOf(ranks map[int]int, sel []int) []int {
	out := make([]int, len(sel))
	for i, no := range sel {
		out[i] = ranks[no]
	}
	return out
}
