package timing

import (
	"github.com/lox/keiba/internal/config"
	"github.com/lox/keiba/internal/models"
)

// Table is the full set of course averages for one venue and scope.
type Table []models.CourseAverage

// Find returns the average of one bucket. There is no fallback to coarser
// buckets; callers that want one look up GroundAll or ClassAll themselves.
func (t Table) Find(surface models.Surface, distance int, ground models.Ground, class models.Class) (int64, bool) {
	for _, a := range t {
		if a.Surface == surface && a.Distance == distance && a.Ground == ground && a.Class == class {
			if a.AvgTimeMs == nil {
				return 0, false
			}
			return *a.AvgTimeMs, true
		}
	}
	return 0, false
}

// Builder computes course averages from result rows.
type Builder struct {
	cfg       *config.Config
	maxFinish int
}

// NewBuilder returns a builder sampling finishers up to
// cfg.Averages.SampleMaxFinish.
func NewBuilder(cfg *config.Config) *Builder {
	return &Builder{cfg: cfg, maxFinish: cfg.Averages.SampleMaxFinish}
}

type courseKey struct {
	surface  models.Surface
	distance int
}

// Build materialises one row per configured course, class bucket and ground
// bucket of the venue. Buckets without samples carry a nil average.
func (b *Builder) Build(venue int, rows []models.ResultRow) Table {
	byCourse := make(map[courseKey][]models.ResultRow)
	for _, r := range rows {
		pos, ok := r.FinishPosition()
		if !ok || pos < 1 || pos > b.maxFinish {
			continue
		}
		k := courseKey{r.Surface, r.Distance}
		byCourse[k] = append(byCourse[k], r)
	}

	var out Table
	for _, c := range b.cfg.Courses(venue) {
		sample := byCourse[courseKey{c.Surface, c.Distance}]
		for _, class := range models.ClassBuckets() {
			for _, ground := range models.GroundBuckets() {
				var times []string
				for _, r := range sample {
					if class != models.ClassAll && r.Class != class {
						continue
					}
					if ground != models.GroundAll && r.Ground != ground {
						continue
					}
					times = append(times, r.Time)
				}
				avg := models.CourseAverage{
					Venue:    venue,
					Surface:  c.Surface,
					Distance: c.Distance,
					Ground:   ground,
					Class:    class,
					Samples:  len(times),
				}
				if ms, ok := AverageMs(times); ok {
					avg.AvgTimeMs = &ms
				}
				out = append(out, avg)
			}
		}
	}
	return out
}

// BuildTotal builds the multi-year table from the concatenated seasons.
func (b *Builder) BuildTotal(venue int, seasons ...[]models.ResultRow) Table {
	var all []models.ResultRow
	for _, s := range seasons {
		all = append(all, s...)
	}
	return b.Build(venue, all)
}
