package features

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/lox/keiba/internal/models"
	"github.com/lox/keiba/internal/normalize"
	"github.com/lox/keiba/internal/pedigree"
	"github.com/lox/keiba/internal/raceid"
)

// PedigreeSource returns stored pedigrees.
type PedigreeSource interface {
	Pedigree(horseID string) (models.Pedigree, error)
}

// HistorySource returns a horse's race history, newest first.
type HistorySource interface {
	History(horseID string) ([]models.PastRace, error)
}

// PlacingLookup counts placings by pedigree.
type PlacingLookup interface {
	Lookup(sire, damsire string, c models.Course, asOfYear int) (pedigree.Result, error)
}

// TimeDiffer measures a finish time against its course average.
type TimeDiffer interface {
	Diff(c models.Course, time string) (vsAll, vsClass float64)
}

// Assembler builds feature vectors. Missing pedigrees, histories or course
// averages leave NaN in the affected slots.
type Assembler struct {
	peds    PedigreeSource
	history HistorySource
	placing PlacingLookup
	diff    TimeDiffer
	venues  normalize.VenueLookup
}

// NewAssembler wires an assembler from its sources.
func NewAssembler(peds PedigreeSource, history HistorySource, placing PlacingLookup, diff TimeDiffer, venues normalize.VenueLookup) *Assembler {
	return &Assembler{peds: peds, history: history, placing: placing, diff: diff, venues: venues}
}

// Assemble builds the vector for one result row. Only a malformed race id is
// an error.
func (a *Assembler) Assemble(r models.ResultRow) (Vector, error) {
	id, err := raceid.Parse(r.RaceID)
	if err != nil {
		return Vector{}, fmt.Errorf("assemble %s: %w", r.HorseID, err)
	}
	values := make([]float64, 0, len(ValueColumns()))
	values = append(values, a.pedigreeValues(r, id)...)
	values = append(values, a.pastValues(r)...)
	values = append(values, float64(r.Frame), float64(r.HorseNo))

	v := Vector{RaceID: r.RaceID, HorseID: r.HorseID, Values: values}
	if r.InShow() {
		v.Label = 1
	}
	return v, nil
}

func (a *Assembler) pedigreeValues(r models.ResultRow, id raceid.ID) []float64 {
	p, err := a.peds.Pedigree(r.HorseID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			log.Warn().Err(err).Str("horse", r.HorseID).Msg("features: pedigree unreadable")
		}
		return nans(36)
	}
	c := r.Course()
	c.Venue = id.Venue
	res, err := a.placing.Lookup(p.Sire(), p.Damsire(), c, id.Year)
	if err != nil {
		log.Warn().Err(err).Str("race", r.RaceID).Msg("features: placing lookup failed")
		return nans(36)
	}
	return res.Flatten()
}

func (a *Assembler) pastValues(r models.ResultRow) []float64 {
	history, err := a.history.History(r.HorseID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		log.Warn().Err(err).Str("horse", r.HorseID).Msg("features: history unreadable")
	}
	out := make([]float64, 0, PastRaceCount*len(pastFields))
	for _, p := range PastRaces(history, r.RaceID, PastRaceCount) {
		vsAll, vsClass := a.diff.Diff(normalize.CourseInfo(p, a.venues), p.Time)
		pop, finish := popularityAndFinish(p)
		out = append(out, vsAll, vsClass, pop, finish)
	}
	for len(out) < cap(out) {
		out = append(out, math.NaN())
	}
	return out
}

func nans(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
