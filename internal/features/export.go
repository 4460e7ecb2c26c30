package features

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/rs/zerolog/log"

	"github.com/lox/keiba/internal/models"
)

// ResultSource returns a venue's results for one season.
type ResultSource interface {
	Results(venue, year int) ([]models.ResultRow, error)
}

// Builder assembles the vectors of every runner on one course in a season.
type Builder struct {
	results ResultSource
	asm     *Assembler
}

// NewBuilder returns a builder reading results from src.
func NewBuilder(src ResultSource, asm *Assembler) *Builder {
	return &Builder{results: src, asm: asm}
}

// BuildCourse returns one vector per starter of every race run on the given
// surface and distance, ordered by race then horse number. Runners that did
// not start (除, 取) are left out.
func (b *Builder) BuildCourse(venue, year int, surface models.Surface, distance int) ([]Vector, error) {
	rows, err := b.results.Results(venue, year)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("build %s%d: %w", surface, distance, err)
	}
	var runners []models.ResultRow
	for _, r := range rows {
		if r.Venue() != venue || r.Surface != surface || r.Distance != distance {
			continue
		}
		if strings.ContainsAny(r.Finish, "除取") {
			continue
		}
		runners = append(runners, r)
	}
	slices.SortStableFunc(runners, func(a, b models.ResultRow) int {
		return cmp.Or(cmp.Compare(a.RaceID, b.RaceID), cmp.Compare(a.HorseNo, b.HorseNo))
	})

	out := make([]Vector, 0, len(runners))
	for _, r := range runners {
		v, err := b.asm.Assemble(r)
		if err != nil {
			log.Warn().Err(err).Str("race", r.RaceID).Msg("features: skipping runner")
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// Frames returns the rank and flag tables, both keyed by race_id and
// horse_id. NaN values are replaced by missing.
func Frames(vectors []Vector, missing float64) (rank, flag dataframe.DataFrame) {
	raceIDs := make([]string, len(vectors))
	horseIDs := make([]string, len(vectors))
	labels := make([]int, len(vectors))
	valueCols := ValueColumns()
	values := make([][]float64, len(valueCols))
	for j := range values {
		values[j] = make([]float64, len(vectors))
	}
	for i, v := range vectors {
		raceIDs[i], horseIDs[i], labels[i] = v.RaceID, v.HorseID, v.Label
		for j := range valueCols {
			x := math.NaN()
			if j < len(v.Values) {
				x = v.Values[j]
			}
			if math.IsNaN(x) {
				x = missing
			}
			values[j][i] = x
		}
	}

	cols := []series.Series{
		series.New(raceIDs, series.String, "race_id"),
		series.New(horseIDs, series.String, "horse_id"),
	}
	for j, name := range valueCols {
		cols = append(cols, series.New(values[j], series.Float, name))
	}
	rank = dataframe.New(cols...)
	flag = dataframe.New(
		series.New(raceIDs, series.String, "race_id"),
		series.New(horseIDs, series.String, "horse_id"),
		series.New(labels, series.Int, "label"),
	)
	return rank, flag
}

// FileWriter persists a finished file.
type FileWriter interface {
	WriteFile(path string, data []byte) error
}

// Export writes the rank and flag files. Nothing is written for an empty set.
func Export(w FileWriter, rankPath, flagPath string, vectors []Vector, missing float64) error {
	if len(vectors) == 0 {
		return nil
	}
	rank, flag := Frames(vectors, missing)
	for _, f := range []struct {
		path string
		df   dataframe.DataFrame
	}{{rankPath, rank}, {flagPath, flag}} {
		if f.df.Err != nil {
			return fmt.Errorf("export %s: %w", f.path, f.df.Err)
		}
		var buf bytes.Buffer
		if err := f.df.WriteCSV(&buf); err != nil {
			return fmt.Errorf("export %s: %w", f.path, err)
		}
		if err := w.WriteFile(f.path, buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}
