// Package timing converts finish times to milliseconds and builds the course
// time averages that past performances are measured against.
package timing

import (
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"
)

const day = int64(24 * 60 * 60 * 1000)

// ParseMs parses "H:MM:SS.s", "M:SS.s" or "SS.s" into milliseconds. The
// fraction is decimal, so ".5" is 500 ms and ".25" is 250 ms.
func ParseMs(text string) (int64, bool) {
	text = strings.TrimSpace(text)
	if text == "" || strings.EqualFold(text, "nan") {
		return 0, false
	}
	parts := strings.Split(text, ":")
	if len(parts) > 3 {
		return 0, false
	}

	secText := parts[len(parts)-1]
	whole, frac, _ := strings.Cut(secText, ".")
	sec, ok := digits(whole)
	if !ok {
		return 0, false
	}
	ms := sec * 1000
	if frac != "" {
		f, ok := digits(frac)
		if !ok {
			return 0, false
		}
		// Scale to three places: "5" -> 500, "25" -> 250, "1234" -> 123.
		for n := len(frac); n < 3; n++ {
			f *= 10
		}
		for n := len(frac); n > 3; n-- {
			f /= 10
		}
		ms += f
	}

	unit := int64(60 * 1000)
	for i := len(parts) - 2; i >= 0; i-- {
		v, ok := digits(parts[i])
		if !ok {
			return 0, false
		}
		ms += v * unit
		unit *= 60
	}
	return ms, true
}

func digits(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}

// AverageMs returns the mean of the parseable samples as milliseconds within
// one day, truncated. It reports false when no sample parses.
func AverageMs(samples []string) (int64, bool) {
	xs := make([]float64, 0, len(samples))
	for _, s := range samples {
		if ms, ok := ParseMs(s); ok {
			xs = append(xs, float64(ms%day))
		}
	}
	if len(xs) == 0 {
		return 0, false
	}
	return int64(stat.Mean(xs, nil)), true
}

// RelativeDiff returns (ref-obs)/ref: positive when obs was faster than the
// reference. NaN inputs and a zero reference give NaN.
func RelativeDiff(ref, obs float64) float64 {
	if math.IsNaN(ref) || math.IsNaN(obs) || ref == 0 {
		return math.NaN()
	}
	return (ref - obs) / ref
}
