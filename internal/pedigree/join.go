package pedigree

import (
	"cmp"
	"slices"

	"github.com/lox/keiba/internal/config"
	"github.com/lox/keiba/internal/models"
)

// PedigreeLookup returns a stored pedigree.
type PedigreeLookup interface {
	Pedigree(horseID string) (models.Pedigree, error)
}

// Join attaches sire, dam and damsire to each result row. Runners without a
// stored pedigree are left out.
func Join(results []models.ResultRow, peds PedigreeLookup) []models.PedsResultRow {
	out := make([]models.PedsResultRow, 0, len(results))
	cache := make(map[string]models.Pedigree)
	for _, r := range results {
		p, ok := cache[r.HorseID]
		if !ok {
			var err error
			if p, err = peds.Pedigree(r.HorseID); err != nil {
				continue
			}
			cache[r.HorseID] = p
		}
		out = append(out, models.PedsResultRow{
			RaceID:   r.RaceID,
			HorseID:  r.HorseID,
			Finish:   r.Finish,
			Surface:  r.Surface,
			Distance: r.Distance,
			Ground:   r.Ground,
			Class:    r.Class,
			Sire:     p.Sire(),
			Dam:      p.Dam(),
			Damsire:  p.Damsire(),
		})
	}
	return out
}

type statKey struct {
	surface  models.Surface
	distance int
	ground   models.Ground
	class    models.Class
	sire     string
}

// SireStats tabulates every sire's placings per configured course, ground
// bucket and class bucket. Within a bucket sires are ordered by wins, then
// seconds, then thirds.
func SireStats(rows []models.PedsResultRow, courses []config.CourseKey) []models.SireStat {
	counts := make(map[statKey]*Counts)
	for _, c := range courses {
		for _, r := range rows {
			if r.Surface != c.Surface || r.Distance != c.Distance || r.Sire == "" {
				continue
			}
			for _, g := range []models.Ground{models.GroundAll, r.Ground} {
				for _, cl := range []models.Class{models.ClassAll, r.Class} {
					k := statKey{c.Surface, c.Distance, g, cl, r.Sire}
					if counts[k] == nil {
						counts[k] = &Counts{}
					}
					counts[k].add(r.Finish)
				}
			}
		}
	}
	out := make([]models.SireStat, 0, len(counts))
	for k, c := range counts {
		out = append(out, sireStat(k, *c))
	}
	sortStats(out, courses)
	return out
}

// SumSireStats adds yearly tables into a multi-year total.
func SumSireStats(courses []config.CourseKey, tables ...[]models.SireStat) []models.SireStat {
	counts := make(map[statKey]*Counts)
	for _, t := range tables {
		for _, s := range t {
			k := statKey{s.Surface, s.Distance, s.Ground, s.Class, s.Sire}
			if counts[k] == nil {
				counts[k] = &Counts{}
			}
			counts[k].First += s.First
			counts[k].Second += s.Second
			counts[k].Third += s.Third
			counts[k].Out += s.Out
		}
	}
	out := make([]models.SireStat, 0, len(counts))
	for k, c := range counts {
		out = append(out, sireStat(k, *c))
	}
	sortStats(out, courses)
	return out
}

func sireStat(k statKey, c Counts) models.SireStat {
	return models.SireStat{
		Surface:  k.surface,
		Distance: k.distance,
		Ground:   k.ground,
		Class:    k.class,
		Sire:     k.sire,
		First:    c.First,
		Second:   c.Second,
		Third:    c.Third,
		Out:      c.Out,
	}
}

// sortStats orders rows by course in configured order, ground and class in
// bucket order, then best record first.
func sortStats(rows []models.SireStat, courses []config.CourseKey) {
	courseIdx := make(map[config.CourseKey]int, len(courses))
	for i, c := range courses {
		courseIdx[c] = i
	}
	groundIdx := indexOf(models.GroundBuckets())
	classIdx := indexOf(models.ClassBuckets())
	slices.SortFunc(rows, func(a, b models.SireStat) int {
		return cmp.Or(
			cmp.Compare(courseIdx[config.CourseKey{Surface: a.Surface, Distance: a.Distance}],
				courseIdx[config.CourseKey{Surface: b.Surface, Distance: b.Distance}]),
			cmp.Compare(groundIdx[a.Ground], groundIdx[b.Ground]),
			cmp.Compare(classIdx[a.Class], classIdx[b.Class]),
			cmp.Compare(b.First, a.First),
			cmp.Compare(b.Second, a.Second),
			cmp.Compare(b.Third, a.Third),
			cmp.Compare(a.Sire, b.Sire),
		)
	})
}

func indexOf[T comparable](xs []T) map[T]int {
	m := make(map[T]int, len(xs))
	for i, x := range xs {
		m[x] = i
	}
	return m
}
