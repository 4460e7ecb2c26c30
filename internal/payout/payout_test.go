package payout

import (
	"math"
	"reflect"
	"testing"

	"github.com/lox/keiba/internal/models"
)

func TestChoose(t *testing.T) {
	tests := []struct{ n, k, want int }{
		{3, 2, 3}, {5, 2, 10}, {3, 3, 1}, {5, 3, 10}, {2, 3, 0},
	}
	for _, tt := range tests {
		if got := choose(tt.n, tt.k); got != tt.want {
			t.Errorf("choose(%d, %d) = %d, want %d", tt.n, tt.k, got, tt.want)
		}
	}
}

func TestHitRules(t *testing.T) {
	tests := []struct {
		bet   Bet
		ranks []int
		want  bool
	}{
		{Win(), []int{1}, true},
		{Win(), []int{2}, false},
		{QuinellaBox(3), []int{3, 1}, true},
		{QuinellaBox(3), []int{4, 1}, false},
		{QuinellaWheel(3), []int{4, 1}, true},
		{QuinellaWheel(3), []int{2, 3}, false},
		{QuinellaWheel(3), []int{1, 5}, false},
		{TrioBox(5), []int{5, 2, 4}, true},
		{TrioBox(3), []int{0, 1, 2}, false},
		{TrioWheel(3), []int{4, 1, 2}, true},
		{TrioWheel(3), []int{2, 3, 4}, false},
	}
	for _, tt := range tests {
		if got := tt.bet.Hit(tt.ranks); got != tt.want {
			t.Errorf("%s.Hit(%v) = %v, want %v", tt.bet.Name, tt.ranks, got, tt.want)
		}
	}
}

func preds(race string, byRank ...int) []models.Prediction {
	out := make([]models.Prediction, len(byRank))
	for i, no := range byRank {
		out[i] = models.Prediction{RaceID: race, HorseNo: no, Rank: i + 1}
	}
	return out
}

func TestSimulate(t *testing.T) {
	var p []models.Prediction
	p = append(p, preds("r1", 5, 3, 7, 1, 2)...)
	p = append(p, preds("r2", 8, 2, 4, 6, 1)...)
	p = append(p, preds("r3", 1, 2, 3)...) // no payouts: skipped

	returns := []models.ReturnRow{
		{RaceID: "r1", BetType: models.BetWin, Selection: "5", Payout: "250"},
		{RaceID: "r1", BetType: models.BetPlace, Selection: "5 3 9", Payout: "120 200 500"},
		{RaceID: "r1", BetType: models.BetQuinella, Selection: "3-5", Payout: "800"},
		{RaceID: "r1", BetType: models.BetTrio, Selection: "3-5-9", Payout: "4000"},
		{RaceID: "r2", BetType: models.BetWin, Selection: "2", Payout: "400"},
		{RaceID: "r2", BetType: models.BetPlace, Selection: "2 8 6", Payout: "150 110 300"},
		{RaceID: "r2", BetType: models.BetQuinella, Selection: "2-8", Payout: "600"},
		{RaceID: "r2", BetType: models.BetTrio, Selection: "2-6-8", Payout: "2000"},
		{RaceID: "r4", BetType: models.BetWin, Selection: "1", Payout: "200"}, // no predictions
	}
	results := Simulate(p, returns, []Bet{Win(), Place(), QuinellaBox(3), QuinellaWheel(3), TrioBox(5), TrioWheel(3)})
	byName := make(map[string]Result)
	for _, r := range results {
		byName[r.Bet] = r
	}

	win := byName["win"]
	if win.Races != 2 || win.Hits != 1 || win.HitRate != 0.5 || win.ReturnRate != 125 {
		t.Errorf("win = %+v, want 2 races, 1 hit, 50%% hits, 125 return", win)
	}
	if !reflect.DeepEqual(win.HitRaces, []string{"r1"}) {
		t.Errorf("win.HitRaces = %v", win.HitRaces)
	}

	place := byName["place"]
	if place.Hits != 2 || place.ReturnRate != (120.0+110)/2 {
		t.Errorf("place = %+v", place)
	}

	qbox := byName["quinella_box3"]
	// r1 3-5 are ranks 2 and 1; r2 2-8 are ranks 2 and 1. Three tickets a race.
	if qbox.Hits != 2 || math.Abs(qbox.ReturnRate-(800.0+600)/2/3) > 1e-9 {
		t.Errorf("quinella_box3 = %+v", qbox)
	}
	qwheel := byName["quinella_wheel3"]
	if qwheel.Hits != 2 || math.Abs(qwheel.ReturnRate-(800.0+600)/2/3) > 1e-9 {
		t.Errorf("quinella_wheel3 = %+v", qwheel)
	}

	tbox := byName["trio_box5"]
	// r1 includes 9, which the model did not rank; r2 2-6-8 are ranks 2, 4, 1.
	if tbox.Hits != 1 || math.Abs(tbox.ReturnRate-2000.0/2/10) > 1e-9 {
		t.Errorf("trio_box5 = %+v", tbox)
	}
	twheel := byName["trio_wheel3"]
	if twheel.Hits != 1 || !reflect.DeepEqual(twheel.HitRaces, []string{"r2"}) {
		t.Errorf("trio_wheel3 = %+v", twheel)
	}
}

func TestSimulateDeadHeat(t *testing.T) {
	// A dead heat for second pays two quinella combinations in one race.
	p := preds("r1", 1, 2, 3)
	returns := []models.ReturnRow{
		{RaceID: "r1", BetType: models.BetQuinella, Selection: "1-2 1-3", Payout: "500 700"},
	}
	res := Simulate(p, returns, []Bet{QuinellaBox(3)})[0]
	if res.Races != 1 || res.Hits != 1 || res.HitRate != 1 {
		t.Errorf("quinella_box3 = %+v, want 1 race, 1 hit, hit rate 1", res)
	}
	if !reflect.DeepEqual(res.HitRaces, []string{"r1"}) {
		t.Errorf("HitRaces = %v, want [r1]", res.HitRaces)
	}
	if want := (500.0 + 700) / 3; math.Abs(res.ReturnRate-want) > 1e-9 {
		t.Errorf("ReturnRate = %v, want %v", res.ReturnRate, want)
	}
}

func TestSimulateNoRaces(t *testing.T) {
	res := Simulate(nil, nil, DefaultBets())
	if len(res) != 10 {
		t.Fatalf("len = %d, want 10", len(res))
	}
	for _, r := range res {
		if r.Races != 0 || r.HitRate != 0 || r.ReturnRate != 0 {
			t.Errorf("%s = %+v, want zeros", r.Bet, r)
		}
	}
}
