package pedigree

import (
	"errors"
	"fmt"
	"sync"

	"github.com/lox/keiba/internal/config"
	"github.com/lox/keiba/internal/models"
)

// Source loads the pedigree-joined results of a venue season.
type Source interface {
	PedsResults(venue, year int) ([]models.PedsResultRow, error)
}

type seasonKey struct{ venue, year int }

// Aggregator answers placing-count lookups against historical seasons.
type Aggregator struct {
	src        Source
	firstYear  int
	cumulative bool

	mu      sync.Mutex
	seasons map[seasonKey][]models.PedsResultRow
}

// NewAggregator reads seasons from FirstYear on and narrows scopes as
// cfg.Pedigree.Narrowing says.
func NewAggregator(src Source, cfg *config.Config) *Aggregator {
	return &Aggregator{
		src:        src,
		firstYear:  cfg.FirstYear,
		cumulative: cfg.Pedigree.Narrowing == config.NarrowCumulative,
		seasons:    make(map[seasonKey][]models.PedsResultRow),
	}
}

// Lookup counts placings for runners by sire, by damsire and by both, run on
// the course's surface and ground at its venue, then narrowed by distance and
// by class. Only seasons before asOfYear are read, and any row whose race id
// is dated asOfYear or later is dropped.
func (a *Aggregator) Lookup(sire, damsire string, c models.Course, asOfYear int) (Result, error) {
	rows, err := a.history(c.Venue, asOfYear)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Sire:    a.breakdown(rows, c, func(r models.PedsResultRow) bool { return sire != "" && r.Sire == sire }),
		Damsire: a.breakdown(rows, c, func(r models.PedsResultRow) bool { return damsire != "" && r.Damsire == damsire }),
		Cross: a.breakdown(rows, c, func(r models.PedsResultRow) bool {
			return sire != "" && damsire != "" && r.Sire == sire && r.Damsire == damsire
		}),
	}, nil
}

func (a *Aggregator) breakdown(rows []models.PedsResultRow, c models.Course, subject func(models.PedsResultRow) bool) Breakdown {
	var b Breakdown
	for _, r := range rows {
		if !subject(r) || r.Surface != c.Surface || r.Ground != c.Ground {
			continue
		}
		b.Venue.add(r.Finish)
		distance := r.Distance == c.Distance
		if distance {
			b.Distance.add(r.Finish)
		}
		if r.Class == c.Class && (distance || !a.cumulative) {
			b.Class.add(r.Finish)
		}
	}
	return b
}

func (a *Aggregator) history(venue, asOfYear int) ([]models.PedsResultRow, error) {
	var out []models.PedsResultRow
	for y := a.firstYear; y < asOfYear; y++ {
		rows, err := a.season(venue, y)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			if r.Year() < asOfYear {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (a *Aggregator) season(venue, year int) ([]models.PedsResultRow, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	k := seasonKey{venue, year}
	if rows, ok := a.seasons[k]; ok {
		return rows, nil
	}
	rows, err := a.src.PedsResults(venue, year)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("peds results %d/%d: %w", venue, year, err)
	}
	a.seasons[k] = rows
	return rows, nil
}
