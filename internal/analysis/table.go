// Package analysis aggregates winner and top-three tendencies per course
// condition: body weight, popularity, draw and running position.
package analysis

import (
	"bytes"
	"fmt"
	"math"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/stat"

	"github.com/lox/keiba/internal/config"
	"github.com/lox/keiba/internal/models"
)

// Bucket is one course condition.
type Bucket struct {
	Surface  models.Surface
	Distance int
	Ground   models.Ground
	Class    models.Class
}

func (b Bucket) matches(r models.ResultRow) bool {
	return r.Surface == b.Surface && r.Distance == b.Distance &&
		(b.Class == models.ClassAll || r.Class == b.Class) &&
		(b.Ground == models.GroundAll || r.Ground == b.Ground)
}

// Buckets lists every condition of the courses: by course, then class, then
// ground.
func Buckets(courses []config.CourseKey) []Bucket {
	var out []Bucket
	for _, c := range courses {
		for _, class := range models.ClassBuckets() {
			for _, ground := range models.GroundBuckets() {
				out = append(out, Bucket{Surface: c.Surface, Distance: c.Distance, Ground: ground, Class: class})
			}
		}
	}
	return out
}

// Column is one aggregated value per bucket. Count columns are summed across
// seasons, the others averaged.
type Column struct {
	Name   string
	Count  bool
	Values []float64
}

// Table is an analysis result: one row per bucket.
type Table struct {
	Buckets []Bucket
	Columns []Column
}

func newTable(buckets []Bucket, names []string, counts []bool) Table {
	t := Table{Buckets: buckets, Columns: make([]Column, len(names))}
	for i, name := range names {
		t.Columns[i] = Column{Name: name, Count: counts[i], Values: make([]float64, len(buckets))}
	}
	return t
}

// Column returns the named column.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Total combines seasonal tables built over the same buckets: averages are
// the mean of the seasons that have one, counts are summed.
func Total(tables ...Table) (Table, error) {
	if len(tables) == 0 {
		return Table{}, nil
	}
	first := tables[0]
	for _, t := range tables[1:] {
		if len(t.Buckets) != len(first.Buckets) || len(t.Columns) != len(first.Columns) {
			return Table{}, fmt.Errorf("total: tables built over different buckets")
		}
	}
	out := Table{Buckets: first.Buckets, Columns: make([]Column, len(first.Columns))}
	for j, col := range first.Columns {
		values := make([]float64, len(first.Buckets))
		for i := range values {
			var xs []float64
			for _, t := range tables {
				if x := t.Columns[j].Values[i]; !math.IsNaN(x) {
					xs = append(xs, x)
				}
			}
			switch {
			case col.Count:
				values[i] = sum(xs)
			case len(xs) == 0:
				values[i] = math.NaN()
			default:
				values[i] = stat.Mean(xs, nil)
			}
		}
		out.Columns[j] = Column{Name: col.Name, Count: col.Count, Values: values}
	}
	return out, nil
}

func sum(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s
}

// mean returns NaN for no samples.
func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return stat.Mean(xs, nil)
}

// Frame converts the table to a dataframe keyed by surface, distance, ground
// and class.
func (t Table) Frame() dataframe.DataFrame {
	n := len(t.Buckets)
	surfaces, grounds, classes := make([]string, n), make([]string, n), make([]string, n)
	distances := make([]int, n)
	for i, b := range t.Buckets {
		surfaces[i], distances[i] = string(b.Surface), b.Distance
		grounds[i], classes[i] = string(b.Ground), string(b.Class)
	}
	cols := []series.Series{
		series.New(surfaces, series.String, "surface"),
		series.New(distances, series.Int, "distance"),
		series.New(grounds, series.String, "ground"),
		series.New(classes, series.String, "class"),
	}
	for _, c := range t.Columns {
		if c.Count {
			ints := make([]int, n)
			for i, v := range c.Values {
				ints[i] = int(v)
			}
			cols = append(cols, series.New(ints, series.Int, c.Name))
			continue
		}
		cols = append(cols, series.New(c.Values, series.Float, c.Name))
	}
	return dataframe.New(cols...)
}

// FileWriter persists a finished file.
type FileWriter interface {
	WriteFile(path string, data []byte) error
}

// Write exports the table as CSV. Empty tables are not written.
func Write(w FileWriter, path string, t Table) error {
	if len(t.Buckets) == 0 {
		return nil
	}
	df := t.Frame()
	if df.Err != nil {
		return fmt.Errorf("analysis %s: %w", path, df.Err)
	}
	var buf bytes.Buffer
	if err := df.WriteCSV(&buf); err != nil {
		return fmt.Errorf("analysis %s: %w", path, err)
	}
	return w.WriteFile(path, buf.Bytes())
}
