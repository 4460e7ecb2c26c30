package pedigree

import (
	"fmt"
	"testing"

	"github.com/lox/keiba/internal/config"
	"github.com/lox/keiba/internal/models"
)

type fakeSource map[int][]models.PedsResultRow

func (f fakeSource) PedsResults(venue, year int) ([]models.PedsResultRow, error) {
	rows, ok := f[year]
	if !ok {
		return nil, models.ErrNotFound
	}
	return rows, nil
}

func row(year int, finish string, dist int, class models.Class, sire, damsire string) models.PedsResultRow {
	return models.PedsResultRow{
		RaceID:   fmt.Sprintf("%d05010101", year),
		Finish:   finish,
		Surface:  models.SurfaceTurf,
		Distance: dist,
		Ground:   models.GroundFirm,
		Class:    class,
		Sire:     sire,
		Damsire:  damsire,
	}
}

func testAggregator(t *testing.T, src Source, narrowing string) *Aggregator {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatal(err)
	}
	cfg.Pedigree.Narrowing = narrowing
	return NewAggregator(src, cfg)
}

var course = models.Course{Venue: 5, Surface: models.SurfaceTurf, Distance: 1600, Ground: models.GroundFirm, Class: models.ClassMaiden}

func scenario() fakeSource {
	return fakeSource{
		2021: {
			row(2021, "1", 1600, models.ClassMaiden, "SireX", "DsY"),
			row(2021, "3", 1600, models.ClassWin1, "SireX", "DsZ"),
			row(2021, "8", 1800, models.ClassMaiden, "SireX", "DsY"),
		},
		2022: {
			row(2022, "1", 1600, models.ClassMaiden, "SireX", "DsZ"),
			row(2022, "中", 2000, models.ClassOpen, "SireX", "DsY"),
			row(2022, "2", 1600, models.ClassMaiden, "Other", "DsY"),
			// Dirt runs never count for a turf course.
			{RaceID: "202205010101", Finish: "1", Surface: models.SurfaceDirt, Distance: 1600, Ground: models.GroundFirm, Class: models.ClassMaiden, Sire: "SireX"},
		},
	}
}

func TestLookupScenario(t *testing.T) {
	a := testAggregator(t, scenario(), config.NarrowCumulative)
	res, err := a.Lookup("SireX", "DsY", course, 2023)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := res.Sire.Venue, (Counts{First: 2, Third: 1, Out: 2}); got != want {
		t.Errorf("Sire.Venue = %+v, want %+v", got, want)
	}
	if res.Sire.Venue.Total() != 5 {
		t.Errorf("Sire.Venue.Total = %d, want 5", res.Sire.Venue.Total())
	}
	if got, want := res.Sire.Distance, (Counts{First: 2, Third: 1}); got != want {
		t.Errorf("Sire.Distance = %+v, want %+v", got, want)
	}
	if got, want := res.Sire.Class, (Counts{First: 2}); got != want {
		t.Errorf("Sire.Class = %+v, want %+v", got, want)
	}
	if res.Sire.Class.Total() > res.Sire.Venue.Total() {
		t.Error("class scope counted more starts than the venue scope")
	}
	if got, want := res.Damsire.Venue, (Counts{First: 1, Second: 1, Out: 2}); got != want {
		t.Errorf("Damsire.Venue = %+v, want %+v", got, want)
	}
	if got, want := res.Cross.Venue, (Counts{First: 1, Out: 2}); got != want {
		t.Errorf("Cross.Venue = %+v, want %+v", got, want)
	}
}

func TestLookupNarrowing(t *testing.T) {
	src := fakeSource{2022: {
		row(2022, "1", 1600, models.ClassMaiden, "S", "D"),
		row(2022, "2", 1800, models.ClassMaiden, "S", "D"),
	}}
	tests := []struct {
		mode string
		want Counts
	}{
		{config.NarrowIndependent, Counts{First: 1, Second: 1}},
		{config.NarrowCumulative, Counts{First: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			res, err := testAggregator(t, src, tt.mode).Lookup("S", "D", course, 2023)
			if err != nil {
				t.Fatal(err)
			}
			if res.Sire.Class != tt.want {
				t.Errorf("Sire.Class = %+v, want %+v", res.Sire.Class, tt.want)
			}
			if res.Sire.Distance != (Counts{First: 1}) {
				t.Errorf("Sire.Distance = %+v", res.Sire.Distance)
			}
		})
	}
}

func TestLookupNoLookAhead(t *testing.T) {
	clean := scenario()
	leaky := scenario()
	// A season file that also carries races from the target year must not
	// change the answer.
	leaky[2022] = append(leaky[2022], row(2023, "1", 1600, models.ClassMaiden, "SireX", "DsY"))
	leaky[2023] = []models.PedsResultRow{row(2023, "1", 1600, models.ClassMaiden, "SireX", "DsY")}

	want, err := testAggregator(t, clean, config.NarrowIndependent).Lookup("SireX", "DsY", course, 2023)
	if err != nil {
		t.Fatal(err)
	}
	got, err := testAggregator(t, leaky, config.NarrowIndependent).Lookup("SireX", "DsY", course, 2023)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("Lookup with future rows = %+v, want %+v", got, want)
	}

	early, err := testAggregator(t, clean, config.NarrowIndependent).Lookup("SireX", "DsY", course, 2022)
	if err != nil {
		t.Fatal(err)
	}
	if early.Sire.Venue.Total() != 3 {
		t.Errorf("Lookup(asOf 2022) venue total = %d, want 3", early.Sire.Venue.Total())
	}
}

func TestLookupNoMatchesIsZero(t *testing.T) {
	res, err := testAggregator(t, scenario(), config.NarrowIndependent).Lookup("Nobody", "", course, 2023)
	if err != nil {
		t.Fatal(err)
	}
	if res != (Result{}) {
		t.Errorf("Lookup(unknown) = %+v, want zero counts", res)
	}
	for i, v := range res.Flatten() {
		if v != 0 {
			t.Fatalf("Flatten()[%d] = %v, want 0", i, v)
		}
	}
}

func TestFlattenOrder(t *testing.T) {
	r := Result{
		Sire:    Breakdown{Venue: Counts{First: 1}, Distance: Counts{First: 4}, Class: Counts{First: 7}},
		Damsire: Breakdown{Venue: Counts{First: 2}, Distance: Counts{First: 5}, Class: Counts{First: 8}},
		Cross:   Breakdown{Venue: Counts{First: 3}, Distance: Counts{First: 6}, Class: Counts{Out: 9}},
	}
	got := r.Flatten()
	if len(got) != 36 {
		t.Fatalf("len(Flatten) = %d, want 36", len(got))
	}
	for i, want := range []float64{1, 2, 3, 4, 5, 6, 7, 8} {
		if got[i*4] != want {
			t.Errorf("Flatten()[%d] = %v, want %v", i*4, got[i*4], want)
		}
	}
	if got[35] != 9 {
		t.Errorf("Flatten()[35] = %v, want 9", got[35])
	}
}

type fakePeds map[string]models.Pedigree

func (f fakePeds) Pedigree(id string) (models.Pedigree, error) {
	p, ok := f[id]
	if !ok {
		return models.Pedigree{}, models.ErrNotFound
	}
	return p, nil
}

func TestJoin(t *testing.T) {
	anc := make([]string, models.PedigreeSize)
	anc[0], anc[1], anc[4] = "S", "D", "DS"
	peds := fakePeds{"h1": {HorseID: "h1", Ancestors: anc}}
	results := []models.ResultRow{
		{RaceID: "202305010101", HorseID: "h1", Finish: "1", Surface: models.SurfaceTurf, Distance: 1600},
		{RaceID: "202305010101", HorseID: "h2", Finish: "2"},
	}
	got := Join(results, peds)
	if len(got) != 1 {
		t.Fatalf("len(Join) = %d, want 1", len(got))
	}
	if got[0].Sire != "S" || got[0].Dam != "D" || got[0].Damsire != "DS" || got[0].Distance != 1600 {
		t.Errorf("Join = %+v", got[0])
	}
}

func TestSireStats(t *testing.T) {
	courses := []config.CourseKey{{Surface: models.SurfaceTurf, Distance: 1600}}
	rows := []models.PedsResultRow{
		row(2022, "2", 1600, models.ClassMaiden, "B", ""),
		row(2022, "1", 1600, models.ClassMaiden, "A", ""),
		row(2022, "1", 1600, models.ClassWin1, "A", ""),
		row(2022, "1", 1800, models.ClassWin1, "A", ""),
	}
	stats := SireStats(rows, courses)
	if len(stats) == 0 {
		t.Fatal("no stats")
	}
	first := stats[0]
	if first.Ground != models.GroundAll || first.Class != models.ClassAll || first.Sire != "A" || first.First != 2 {
		t.Errorf("stats[0] = %+v, want sire A with 2 wins in the 全/all bucket", first)
	}
	if stats[1].Sire != "B" || stats[1].Second != 1 {
		t.Errorf("stats[1] = %+v", stats[1])
	}

	total := SumSireStats(courses, stats, stats)
	if total[0].First != 4 {
		t.Errorf("SumSireStats first = %+v, want 4 wins", total[0])
	}
}
