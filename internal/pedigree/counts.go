// Package pedigree counts how the offspring of a sire, a damsire and the
// pair of them have placed under given race conditions.
package pedigree

import "github.com/lox/keiba/internal/models"

// Counts tallies placings: first, second, third and out of the frame.
type Counts struct {
	First, Second, Third, Out int
}

func (c *Counts) add(finish string) {
	pos, _ := models.ResultRow{Finish: finish}.FinishPosition()
	switch pos {
	case 1:
		c.First++
	case 2:
		c.Second++
	case 3:
		c.Third++
	default:
		c.Out++
	}
}

// Total is the number of starts counted.
func (c Counts) Total() int { return c.First + c.Second + c.Third + c.Out }

func (c Counts) values() []float64 {
	return []float64{float64(c.First), float64(c.Second), float64(c.Third), float64(c.Out)}
}

// Breakdown holds counts at the three narrowing scopes.
type Breakdown struct {
	Venue    Counts // surface and ground at the venue
	Distance Counts // plus distance
	Class    Counts // plus class
}

// Result is the breakdown for the sire, the damsire and the pair.
type Result struct {
	Sire, Damsire, Cross Breakdown
}

// Flatten returns the 36 counts scope by scope: the venue scope's sire,
// damsire and cross counts, then the distance scope's, then the class
// scope's. Each counts group is first, second, third, out.
func (r Result) Flatten() []float64 {
	out := make([]float64, 0, 36)
	scopes := []func(Breakdown) Counts{
		func(b Breakdown) Counts { return b.Venue },
		func(b Breakdown) Counts { return b.Distance },
		func(b Breakdown) Counts { return b.Class },
	}
	for _, scope := range scopes {
		for _, b := range []Breakdown{r.Sire, r.Damsire, r.Cross} {
			out = append(out, scope(b).values()...)
		}
	}
	return out
}
