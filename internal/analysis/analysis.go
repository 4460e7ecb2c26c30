package analysis

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lox/keiba/internal/config"
	"github.com/lox/keiba/internal/models"
)

// fieldScale rescales a position in a field of n runners to an 18-runner
// field.
func fieldScale(pos, n int) float64 {
	return float64(pos) * 18 / float64(n)
}

func placed(r models.ResultRow, top3 bool) bool {
	pos, ok := r.FinishPosition()
	if !ok {
		return false
	}
	if top3 {
		return pos >= 1 && pos <= 3
	}
	return pos == 1
}

// Weights averages the body weight of winners.
func Weights(rows []models.ResultRow, courses []config.CourseKey) Table {
	buckets := Buckets(courses)
	t := newTable(buckets, []string{"body_weight"}, []bool{false})
	for i, b := range buckets {
		var xs []float64
		for _, r := range rows {
			if b.matches(r) && placed(r, false) && r.BodyWeight != nil {
				xs = append(xs, float64(*r.BodyWeight))
			}
		}
		t.Columns[0].Values[i] = mean(xs)
	}
	return t
}

// Pops averages the popularity of winners, or of the first three when top3
// is set, rescaled to an 18-runner field, and counts them per popularity.
func Pops(rows []models.ResultRow, courses []config.CourseKey, top3 bool) Table {
	field := make(map[string]int)
	for _, r := range rows {
		if r.HorseNo > 0 {
			field[r.RaceID]++
		}
	}

	names, counts := []string{"avg_pop"}, []bool{false}
	for p := 1; p <= 18; p++ {
		names, counts = append(names, fmt.Sprintf("pop_%d_count", p)), append(counts, true)
	}
	buckets := Buckets(courses)
	t := newTable(buckets, names, counts)
	for i, b := range buckets {
		var xs []float64
		for _, r := range rows {
			if !b.matches(r) || !placed(r, top3) || r.Popularity == nil {
				continue
			}
			pop := *r.Popularity
			if n := field[r.RaceID]; n > 0 {
				xs = append(xs, fieldScale(pop, n))
			}
			if pop >= 1 && pop <= 18 {
				t.Columns[pop].Values[i]++
			}
		}
		t.Columns[0].Values[i] = mean(xs)
	}
	return t
}

// Frames averages the frame and horse number of winners, or of the first
// three, and counts them per frame and per horse number.
func Frames(rows []models.ResultRow, courses []config.CourseKey, top3 bool) Table {
	suffix := "wins"
	if top3 {
		suffix = "top3"
	}
	names := []string{"avg_frame", "avg_horse", "total_" + suffix}
	counts := []bool{false, false, true}
	for f := 1; f <= 8; f++ {
		names, counts = append(names, fmt.Sprintf("frame_%d_%s", f, suffix)), append(counts, true)
	}
	for h := 1; h <= 18; h++ {
		names, counts = append(names, fmt.Sprintf("horse_%d_%s", h, suffix)), append(counts, true)
	}
	const frameCol, horseCol = 3, 3 + 8

	buckets := Buckets(courses)
	t := newTable(buckets, names, counts)
	for i, b := range buckets {
		var frames, horses []float64
		for _, r := range rows {
			if !b.matches(r) || !placed(r, top3) {
				continue
			}
			frames = append(frames, float64(r.Frame))
			horses = append(horses, float64(r.HorseNo))
			if r.Frame >= 1 && r.Frame <= 8 {
				t.Columns[frameCol+r.Frame-1].Values[i]++
			}
			if r.HorseNo >= 1 && r.HorseNo <= 18 {
				t.Columns[horseCol+r.HorseNo-1].Values[i]++
			}
		}
		t.Columns[0].Values[i] = mean(frames)
		t.Columns[1].Values[i] = mean(horses)
		t.Columns[2].Values[i] = float64(len(frames))
	}
	return t
}

// Passing averages the winners' last-3F time and their position at each of
// up to four corners, rescaled to an 18-runner field. Runners excluded
// before the start (除) do not count towards the field.
func Passing(rows []models.ResultRow, courses []config.CourseKey) Table {
	runners := make(map[string]int)
	for _, r := range rows {
		if r.Finish != "除" {
			runners[r.RaceID]++
		}
	}

	buckets := Buckets(courses)
	t := newTable(buckets, []string{"last_3f", "corner_1", "corner_2", "corner_3", "corner_4"}, make([]bool, 5))
	for i, b := range buckets {
		var last []float64
		corners := make([][]float64, 4)
		for _, r := range rows {
			if !b.matches(r) || !placed(r, false) {
				continue
			}
			if r.Last3F != nil {
				last = append(last, *r.Last3F)
			}
			n := runners[r.RaceID]
			if n == 0 {
				continue
			}
			for c, pos := range Corners(r.Passing) {
				if c < 4 {
					corners[c] = append(corners[c], fieldScale(pos, n))
				}
			}
		}
		t.Columns[0].Values[i] = mean(last)
		for c := range corners {
			t.Columns[1+c].Values[i] = mean(corners[c])
		}
	}
	return t
}

// Corners parses a passing string such as "3-3-2-1".
func Corners(passing string) []int {
	var out []int
	for _, f := range strings.Split(passing, "-") {
		if n, err := strconv.Atoi(strings.TrimSpace(f)); err == nil {
			out = append(out, n)
		}
	}
	return out
}
