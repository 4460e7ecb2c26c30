package ingest

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/lox/keiba/internal/analysis"
	"github.com/lox/keiba/internal/config"
	"github.com/lox/keiba/internal/dataset"
	"github.com/lox/keiba/internal/features"
	"github.com/lox/keiba/internal/metrics"
	"github.com/lox/keiba/internal/models"
	"github.com/lox/keiba/internal/pedigree"
	"github.com/lox/keiba/internal/timing"
)

// season is one year of a venue's results.
type season struct {
	year int
	rows []models.ResultRow
}

// Rebuild regenerates every derived table of a venue for year: course time
// averages, pedigree joins and sire stats, the analysis tables and finally
// the per-course feature datasets. Total tables cover FirstYear..year.
func (p *Pipeline) Rebuild(ctx context.Context, venue, year int) error {
	v, err := p.cfg.Venue(venue)
	if err != nil {
		return err
	}
	seasons, err := p.seasons(venue, year)
	if err != nil {
		return err
	}
	if len(seasons) == 0 || seasons[len(seasons)-1].year != year {
		return fmt.Errorf("rebuild %s %d: %w", v.Slug, year, models.ErrNotFound)
	}

	steps := []struct {
		name string
		run  func() error
	}{
		{"averages", func() error { return p.rebuildAverages(venue, year, seasons) }},
		{"pedigree", func() error { return p.rebuildPedigree(venue, year, seasons) }},
		{"analysis", func() error { return p.rebuildAnalysis(venue, year, seasons) }},
		{"datasets", func() error { return p.rebuildDatasets(ctx, v, year) }},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step.run(); err != nil {
			return fmt.Errorf("rebuild %s %d %s: %w", v.Slug, year, step.name, err)
		}
		log.Info().Str("venue", v.Slug).Int("year", year).Str("step", step.name).Msg("ingest: rebuilt")
	}
	return nil
}

func (p *Pipeline) seasons(venue, year int) ([]season, error) {
	var out []season
	for y := p.cfg.FirstYear; y <= year; y++ {
		rows, err := p.data.Results(venue, y)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, season{year: y, rows: rows})
	}
	return out, nil
}

func (p *Pipeline) rebuildAverages(venue, year int, seasons []season) error {
	b := timing.NewBuilder(p.cfg)
	all := make([][]models.ResultRow, len(seasons))
	for i, s := range seasons {
		all[i] = s.rows
	}
	if err := p.data.PutAverages(venue, dataset.Year(year), b.Build(venue, all[len(all)-1])); err != nil {
		return err
	}
	return p.data.PutAverages(venue, dataset.Total, b.BuildTotal(venue, all...))
}

// rebuildPedigree rejoins every season, since pedigrees fetched since the
// last run widen older seasons too.
func (p *Pipeline) rebuildPedigree(venue, year int, seasons []season) error {
	courses := p.cfg.Courses(venue)
	stats := make([][]models.SireStat, 0, len(seasons))
	for _, s := range seasons {
		peds := pedigree.Join(s.rows, p.data)
		if err := p.data.PutPedsResults(venue, s.year, peds); err != nil {
			return err
		}
		st := pedigree.SireStats(peds, courses)
		if s.year == year {
			if err := p.data.PutSireStats(venue, dataset.Year(year), st); err != nil {
				return err
			}
		}
		stats = append(stats, st)
	}
	return p.data.PutSireStats(venue, dataset.Total, pedigree.SumSireStats(courses, stats...))
}

func (p *Pipeline) rebuildAnalysis(venue, year int, seasons []season) error {
	courses := p.cfg.Courses(venue)
	build := map[string]func([]models.ResultRow) analysis.Table{
		dataset.AnalysisWeights:    func(r []models.ResultRow) analysis.Table { return analysis.Weights(r, courses) },
		dataset.AnalysisPops:       func(r []models.ResultRow) analysis.Table { return analysis.Pops(r, courses, false) },
		dataset.AnalysisPopsTop3:   func(r []models.ResultRow) analysis.Table { return analysis.Pops(r, courses, true) },
		dataset.AnalysisFrames:     func(r []models.ResultRow) analysis.Table { return analysis.Frames(r, courses, false) },
		dataset.AnalysisFramesTop3: func(r []models.ResultRow) analysis.Table { return analysis.Frames(r, courses, true) },
		dataset.AnalysisPassing:    func(r []models.ResultRow) analysis.Table { return analysis.Passing(r, courses) },
	}
	for _, kind := range dataset.AnalysisKinds() {
		tables := make([]analysis.Table, len(seasons))
		for i, s := range seasons {
			tables[i] = build[kind](s.rows)
		}
		current := tables[len(tables)-1]
		if err := analysis.Write(p.data, p.data.AnalysisPath(kind, venue, dataset.Year(year)), current); err != nil {
			return err
		}
		total, err := analysis.Total(tables...)
		if err != nil {
			return fmt.Errorf("%s: %w", kind, err)
		}
		if err := analysis.Write(p.data, p.data.AnalysisPath(kind, venue, dataset.Total), total); err != nil {
			return err
		}
	}
	return nil
}

// ExportDatasets writes the per-course feature datasets of a venue season
// from the tables already on disk.
func (p *Pipeline) ExportDatasets(ctx context.Context, venue, year int) error {
	v, err := p.cfg.Venue(venue)
	if err != nil {
		return err
	}
	return p.rebuildDatasets(ctx, v, year)
}

// rebuildDatasets reads the averages and pedigree joins written by the
// earlier steps, so its lookups are constructed fresh.
func (p *Pipeline) rebuildDatasets(ctx context.Context, v config.Venue, year int) error {
	asm := features.NewAssembler(p.data, p.data, pedigree.NewAggregator(p.data, p.cfg), timing.NewDiffer(p.data), p.cfg)
	b := features.NewBuilder(p.data, asm)
	for _, c := range v.Courses() {
		if err := ctx.Err(); err != nil {
			return err
		}
		vectors, err := b.BuildCourse(v.Code, year, c.Surface, c.Distance)
		if err != nil {
			return err
		}
		rank, flag := p.data.DatasetPaths(v.Code, year, c.Surface, c.Distance)
		if err := features.Export(p.data, rank, flag, vectors, p.cfg.MissingValue); err != nil {
			return err
		}
		metrics.DatasetRows.WithLabelValues(v.Slug, c.Surface.Slug()+strconv.Itoa(c.Distance)).Set(float64(len(vectors)))
		log.Debug().Str("venue", v.Slug).Str("surface", string(c.Surface)).Int("distance", c.Distance).
			Int("rows", len(vectors)).Msg("ingest: dataset exported")
	}
	return nil
}
