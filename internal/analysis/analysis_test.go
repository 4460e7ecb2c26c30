package analysis

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/lox/keiba/internal/config"
	"github.com/lox/keiba/internal/models"
)

var courses = []config.CourseKey{{Surface: models.SurfaceTurf, Distance: 1600}}

func intp(n int) *int           { return &n }
func floatp(f float64) *float64 { return &f }

func rows() []models.ResultRow {
	base := func(race, finish string, frame, no, pop int) models.ResultRow {
		return models.ResultRow{
			RaceID: race, Finish: finish, Frame: frame, HorseNo: no, Popularity: intp(pop),
			Surface: models.SurfaceTurf, Distance: 1600, Ground: models.GroundFirm, Class: models.ClassMaiden,
		}
	}
	// Race 1 has 9 runners, race 2 has 18.
	var out []models.ResultRow
	for i := 1; i <= 9; i++ {
		r := base("r1", "5", 1, i, 9)
		if i == 1 {
			r = base("r1", "1", 1, 1, 3)
			r.BodyWeight = intp(480)
			r.Last3F = floatp(34.0)
			r.Passing = "3-3-2-1"
		}
		if i == 2 {
			r = base("r1", "2", 2, 2, 1)
		}
		if i == 9 {
			r = base("r1", "除", 8, 9, 0)
			r.Popularity = nil
		}
		out = append(out, r)
	}
	for i := 1; i <= 18; i++ {
		r := base("r2", "9", 4, i, 10)
		if i == 18 {
			r = base("r2", "1", 8, 18, 6)
			r.BodyWeight = intp(500)
			r.Last3F = floatp(35.0)
			r.Passing = "18-18"
			r.Class = models.ClassWin1
			r.Ground = models.GroundGood
		}
		out = append(out, r)
	}
	return out
}

func value(t *testing.T, tab Table, col string, b Bucket) float64 {
	t.Helper()
	c, ok := tab.Column(col)
	if !ok {
		t.Fatalf("no column %q", col)
	}
	for i, bb := range tab.Buckets {
		if bb == b {
			return c.Values[i]
		}
	}
	t.Fatalf("no bucket %+v", b)
	return 0
}

var (
	all    = Bucket{Surface: models.SurfaceTurf, Distance: 1600, Ground: models.GroundAll, Class: models.ClassAll}
	maiden = Bucket{Surface: models.SurfaceTurf, Distance: 1600, Ground: models.GroundAll, Class: models.ClassMaiden}
	heavy  = Bucket{Surface: models.SurfaceTurf, Distance: 1600, Ground: models.GroundYielding, Class: models.ClassAll}
)

func TestBuckets(t *testing.T) {
	b := Buckets(courses)
	if len(b) != 7*5 {
		t.Fatalf("len(Buckets) = %d, want 35", len(b))
	}
	if b[0] != all {
		t.Errorf("Buckets()[0] = %+v, want %+v", b[0], all)
	}
	if b[5].Class != models.ClassMaiden || b[5].Ground != models.GroundAll {
		t.Errorf("Buckets()[5] = %+v, want 未勝利/全", b[5])
	}
}

func TestWeights(t *testing.T) {
	tab := Weights(rows(), courses)
	if got := value(t, tab, "body_weight", all); got != 490 {
		t.Errorf("all = %v, want 490", got)
	}
	if got := value(t, tab, "body_weight", maiden); got != 480 {
		t.Errorf("未勝利 = %v, want 480", got)
	}
	if got := value(t, tab, "body_weight", heavy); !math.IsNaN(got) {
		t.Errorf("empty bucket = %v, want NaN", got)
	}
}

func TestPops(t *testing.T) {
	tab := Pops(rows(), courses, false)
	// Winner of a 9-runner race at 3rd favourite scales to 6; 6th favourite
	// in a full field stays 6.
	if got := value(t, tab, "avg_pop", all); got != 6 {
		t.Errorf("avg_pop = %v, want 6", got)
	}
	if got := value(t, tab, "pop_3_count", all); got != 1 {
		t.Errorf("pop_3_count = %v, want 1", got)
	}
	if got := value(t, tab, "pop_6_count", all); got != 1 {
		t.Errorf("pop_6_count = %v, want 1", got)
	}
	if got := value(t, tab, "pop_1_count", heavy); got != 0 {
		t.Errorf("empty bucket count = %v, want 0", got)
	}

	top3 := Pops(rows(), courses, true)
	if got := value(t, top3, "pop_1_count", all); got != 1 {
		t.Errorf("top3 pop_1_count = %v, want 1", got)
	}
}

func TestFieldScaleBounds(t *testing.T) {
	for n := 1; n <= 18; n++ {
		for p := 1; p <= n; p++ {
			got := fieldScale(p, n)
			if got < 18/float64(n)-1e-9 || got > 18+1e-9 {
				t.Fatalf("fieldScale(%d, %d) = %v, outside [%v, 18]", p, n, got, 18/float64(n))
			}
			if n == 18 && got != float64(p) {
				t.Fatalf("fieldScale(%d, 18) = %v, want %d", p, got, p)
			}
		}
	}
}

func TestFrames(t *testing.T) {
	tab := Frames(rows(), courses, false)
	if got := value(t, tab, "avg_frame", all); got != 4.5 {
		t.Errorf("avg_frame = %v, want 4.5", got)
	}
	if got := value(t, tab, "total_wins", all); got != 2 {
		t.Errorf("total_wins = %v, want 2", got)
	}
	if got := value(t, tab, "horse_18_wins", all); got != 1 {
		t.Errorf("horse_18_wins = %v, want 1", got)
	}
	top3 := Frames(rows(), courses, true)
	if got := value(t, top3, "total_top3", maiden); got != 2 {
		t.Errorf("total_top3 = %v, want 2", got)
	}
	if got := value(t, top3, "frame_2_top3", maiden); got != 1 {
		t.Errorf("frame_2_top3 = %v, want 1", got)
	}
}

func TestPassing(t *testing.T) {
	tab := Passing(rows(), courses)
	if got := value(t, tab, "last_3f", all); got != 34.5 {
		t.Errorf("last_3f = %v, want 34.5", got)
	}
	// r1 has 8 runners once the excluded horse is removed: 3/8*18 = 6.75.
	if got := value(t, tab, "corner_1", maiden); got != 6.75 {
		t.Errorf("corner_1 = %v, want 6.75", got)
	}
	if got := value(t, tab, "corner_4", maiden); got != 2.25 {
		t.Errorf("corner_4 = %v, want 2.25", got)
	}
	if got := value(t, tab, "corner_1", all); got != (6.75+18)/2 {
		t.Errorf("corner_1 all = %v", got)
	}
	if got := value(t, tab, "corner_3", all); got != 4.5 {
		t.Errorf("corner_3 all = %v, want 4.5 from the one winner that passed it", got)
	}
}

func TestCorners(t *testing.T) {
	if got := Corners("3-3-2-1"); !reflect.DeepEqual(got, []int{3, 3, 2, 1}) {
		t.Errorf("Corners = %v", got)
	}
	if got := Corners(""); len(got) != 0 {
		t.Errorf("Corners(\"\") = %v", got)
	}
}

func TestTotal(t *testing.T) {
	y1 := Weights(rows(), courses)
	y2 := Weights(rows()[:9], courses)
	tot, err := Total(y1, y2)
	if err != nil {
		t.Fatal(err)
	}
	if got := value(t, tot, "body_weight", all); got != (490+480)/2 {
		t.Errorf("total body_weight = %v, want 485", got)
	}
	if got := value(t, tot, "body_weight", heavy); !math.IsNaN(got) {
		t.Errorf("total empty bucket = %v, want NaN", got)
	}

	p1 := Pops(rows(), courses, false)
	ptot, err := Total(p1, p1)
	if err != nil {
		t.Fatal(err)
	}
	if got := value(t, ptot, "pop_3_count", all); got != 2 {
		t.Errorf("total pop_3_count = %v, want 2", got)
	}

	if _, err := Total(p1, y1); err == nil {
		t.Error("Total of mismatched tables returned no error")
	}
}

type memFiles map[string]string

func (m memFiles) WriteFile(path string, data []byte) error {
	m[path] = string(data)
	return nil
}

func TestWrite(t *testing.T) {
	files := memFiles{}
	if err := Write(files, "w.csv", Pops(rows(), courses, false)); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(files["w.csv"]), "\n")
	if len(lines) != 36 {
		t.Fatalf("lines = %d, want 36", len(lines))
	}
	if !strings.HasPrefix(lines[0], "surface,distance,ground,class,avg_pop,pop_1_count") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "芝,1600,全,all,") {
		t.Errorf("first row = %q", lines[1])
	}
}
