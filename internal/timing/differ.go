package timing

import (
	"errors"
	"math"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/lox/keiba/internal/dataset"
	"github.com/lox/keiba/internal/models"
)

// AverageSource loads stored course averages.
type AverageSource interface {
	Averages(venue int, scope dataset.Scope) ([]models.CourseAverage, error)
}

// Differ measures past finish times against the multi-year average of the
// course they were run on.
type Differ struct {
	src AverageSource

	mu     sync.Mutex
	tables map[int]Table
}

// NewDiffer returns a Differ reading total tables from src.
func NewDiffer(src AverageSource) *Differ {
	return &Differ{src: src, tables: make(map[int]Table)}
}

// Diff returns the relative differential of time against the course's
// all-class average and against its own class average. Either value is NaN
// when the venue is not a JRA venue, the bucket has no average or the time
// does not parse.
func (d *Differ) Diff(c models.Course, time string) (vsAll, vsClass float64) {
	nan := math.NaN()
	if c.Venue <= 0 {
		return nan, nan
	}
	obs, ok := ParseMs(time)
	if !ok {
		return nan, nan
	}
	t := d.table(c.Venue)
	return diffAgainst(t, c, models.ClassAll, obs), diffAgainst(t, c, c.Class, obs)
}

func diffAgainst(t Table, c models.Course, class models.Class, obs int64) float64 {
	ref, ok := t.Find(c.Surface, c.Distance, c.Ground, class)
	if !ok {
		return math.NaN()
	}
	return RelativeDiff(float64(ref), float64(obs))
}

func (d *Differ) table(venue int) Table {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.tables[venue]; ok {
		return t
	}
	rows, err := d.src.Averages(venue, dataset.Total)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		log.Warn().Err(err).Int("venue", venue).Msg("timing: averages unreadable")
	}
	d.tables[venue] = rows
	return rows
}
