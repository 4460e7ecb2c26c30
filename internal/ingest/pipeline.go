// Package ingest scrapes races into the data store and rebuilds the derived
// tables.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lox/keiba/internal/config"
	"github.com/lox/keiba/internal/dataset"
	"github.com/lox/keiba/internal/metrics"
	"github.com/lox/keiba/internal/models"
	"github.com/lox/keiba/internal/normalize"
	"github.com/lox/keiba/internal/raceid"
	"github.com/lox/keiba/internal/scrape"
)

// Fetcher retrieves netkeiba pages. *scrape.Client implements it.
type Fetcher interface {
	Get(ctx context.Context, p scrape.Page, parse scrape.ParseFunc) error
	ResultPage(raceID string) scrape.Page
	HistoryPage(horseID string) scrape.Page
	PedigreePage(horseID string) scrape.Page
	CardPage(raceID string) scrape.Page
}

// MissLog remembers pages that do not exist. *store.Store implements it.
type MissLog interface {
	IsMiss(endpoint, pageKey string) (bool, error)
	RecordMiss(endpoint, pageKey string) error
}

// Pipeline runs the scrape and rebuild jobs against one data directory.
type Pipeline struct {
	cfg    *config.Config
	fetch  Fetcher
	data   *dataset.Store
	misses MissLog
	ids    *raceid.Synthesizer
	now    func() time.Time
}

func NewPipeline(cfg *config.Config, fetch Fetcher, data *dataset.Store, misses MissLog, ids *raceid.Synthesizer) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		fetch:  fetch,
		data:   data,
		misses: misses,
		ids:    ids,
		now:    time.Now,
	}
}

// Summary counts what an update did.
type Summary struct {
	Races   int
	Missing int
	Skipped int
	Failed  int
	Horses  int
	Cards   int
	Venues  []int
}

// UpdateRaces scrapes each race, merges its results and payouts into the
// venue season, then refreshes the history and pedigree of every runner.
// Failures are logged and skipped; cancellation stops between items.
func (p *Pipeline) UpdateRaces(ctx context.Context, ids []raceid.ID) (Summary, error) {
	var sum Summary
	seen := make(map[string]bool)
	venues := make(map[int]bool)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return p.finish(sum, venues), err
		}
		key := id.String()
		if p.isMiss(scrape.EndpointRace, key) {
			sum.Skipped++
			continue
		}

		rows, err := p.updateRace(ctx, id)
		switch {
		case ctx.Err() != nil:
			return p.finish(sum, venues), ctx.Err()
		case errors.Is(err, models.ErrNotFound):
			sum.Missing++
			p.recordMiss(id)
			continue
		case err != nil:
			sum.Failed++
			log.Warn().Err(err).Str("race_id", key).Msg("ingest: update race")
			continue
		}
		sum.Races++
		venues[id.Venue] = true

		horses := make([]models.HorseName, 0, len(rows))
		for _, r := range rows {
			horses = append(horses, models.HorseName{HorseID: r.HorseID, Name: r.HorseName})
		}
		n, err := p.updateHorses(ctx, horses, seen)
		sum.Horses += n
		if err != nil {
			return p.finish(sum, venues), err
		}
	}

	log.Info().Int("races", sum.Races).Int("missing", sum.Missing).Int("skipped", sum.Skipped).
		Int("failed", sum.Failed).Int("horses", sum.Horses).Msg("ingest: races updated")
	return p.finish(sum, venues), nil
}

func (p *Pipeline) finish(sum Summary, venues map[int]bool) Summary {
	for v := range venues {
		sum.Venues = append(sum.Venues, v)
	}
	slices.Sort(sum.Venues)
	return sum
}

func (p *Pipeline) isMiss(endpoint, key string) bool {
	if p.misses == nil {
		return false
	}
	miss, err := p.misses.IsMiss(endpoint, key)
	if err != nil {
		log.Warn().Err(err).Str("page", key).Msg("ingest: check page miss")
		return false
	}
	return miss
}

// recordMiss remembers a missing race page. Only past seasons are final, so
// ids in the current year are left to be tried again.
func (p *Pipeline) recordMiss(id raceid.ID) {
	if p.misses == nil || id.Year >= p.now().Year() {
		return
	}
	if err := p.misses.RecordMiss(scrape.EndpointRace, id.String()); err != nil {
		log.Warn().Err(err).Str("race_id", id.String()).Msg("ingest: record page miss")
	}
}

func (p *Pipeline) updateRace(ctx context.Context, id raceid.ID) ([]models.ResultRow, error) {
	key := id.String()
	var kept []models.ResultRow
	err := p.fetch.Get(ctx, p.fetch.ResultPage(key), func(body []byte) (int, int, error) {
		page, err := scrape.ParseResultPage(bytes.NewReader(body))
		if err != nil {
			return 0, 0, err
		}
		rows, err := normalize.Results(page.Results, page.Intro, key, page.HorseIDs, page.JockeyIDs)
		if err != nil {
			return 0, 0, err
		}

		rejected := 0
		for _, r := range rows {
			if flags := ValidateResult(r); len(flags) > 0 {
				rejected++
				log.Debug().Str("race_id", key).Str("horse_id", r.HorseID).
					Str("flags", QualityFlagsToJSON(flags)).Msg("ingest: rejected result row")
				continue
			}
			kept = append(kept, r)
		}
		if len(kept) == 0 {
			return 0, rejected, models.NewParseError("results "+key, errors.New("every row rejected"))
		}
		if err := p.data.MergeResults(id.Venue, id.Year, kept); err != nil {
			return 0, rejected, err
		}
		metrics.RowsIngested.WithLabelValues("results").Add(float64(len(kept)))

		returns, err := normalize.Returns(page.Returns, key)
		switch {
		case errors.Is(err, models.ErrNotFound):
			log.Debug().Str("race_id", key).Msg("ingest: no payouts")
		case err != nil:
			rejected++
			log.Warn().Err(err).Str("race_id", key).Msg("ingest: payouts")
		default:
			if err := p.data.MergeReturns(id.Venue, id.Year, returns); err != nil {
				return len(kept), rejected, err
			}
			metrics.RowsIngested.WithLabelValues("returns").Add(float64(len(returns)))
		}
		return len(kept), rejected, nil
	})
	if err != nil {
		return nil, err
	}
	return kept, nil
}

// updateHorses refreshes each horse's history and fetches its pedigree once.
// Horses already in seen are skipped. Only cancellation is returned as an
// error.
func (p *Pipeline) updateHorses(ctx context.Context, horses []models.HorseName, seen map[string]bool) (int, error) {
	var names []models.HorseName
	n := 0
	for _, h := range horses {
		if h.HorseID == "" || seen[h.HorseID] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}
		seen[h.HorseID] = true
		names = append(names, h)

		if err := p.updateHistory(ctx, h.HorseID); err != nil {
			if ctx.Err() != nil {
				return n, ctx.Err()
			}
			if !errors.Is(err, models.ErrNotFound) {
				log.Warn().Err(err).Str("horse_id", h.HorseID).Msg("ingest: update history")
			}
		}
		if !p.data.HasPedigree(h.HorseID) {
			if err := p.updatePedigree(ctx, h.HorseID); err != nil {
				if ctx.Err() != nil {
					return n, ctx.Err()
				}
				log.Warn().Err(err).Str("horse_id", h.HorseID).Msg("ingest: fetch pedigree")
			}
		}
		n++
	}
	if err := p.data.MergeHorseNames(names); err != nil {
		log.Warn().Err(err).Msg("ingest: merge horse names")
	}
	return n, nil
}

func (p *Pipeline) updateHistory(ctx context.Context, horseID string) error {
	return p.fetch.Get(ctx, p.fetch.HistoryPage(horseID), func(body []byte) (int, int, error) {
		raw, err := scrape.ParseHistoryPage(bytes.NewReader(body))
		if err != nil {
			return 0, 0, err
		}
		rows, err := normalize.PastRaces(raw, horseID, p.cfg)
		if err != nil {
			return 0, 0, err
		}
		if err := p.data.MergeHistory(horseID, rows); err != nil {
			return 0, 0, err
		}
		metrics.RowsIngested.WithLabelValues("history").Add(float64(len(rows)))
		return len(rows), 0, nil
	})
}

func (p *Pipeline) updatePedigree(ctx context.Context, horseID string) error {
	return p.fetch.Get(ctx, p.fetch.PedigreePage(horseID), func(body []byte) (int, int, error) {
		cells, err := scrape.ParsePedigreePage(bytes.NewReader(body))
		if err != nil {
			return 0, 0, err
		}
		ped, err := normalize.Pedigree(horseID, cells)
		if err != nil {
			return 0, 1, err
		}
		if err := p.data.PutPedigree(ped); err != nil {
			return 0, 0, err
		}
		metrics.RowsIngested.WithLabelValues("pedigree").Inc()
		return 1, 0, nil
	})
}

// UpdateCards scrapes the race cards of one day and stores them per venue,
// then refreshes every entrant's history and pedigree.
func (p *Pipeline) UpdateCards(ctx context.Context, date time.Time, ids []raceid.ID) (Summary, error) {
	var sum Summary
	byVenue := make(map[int][]models.Entry)
	venues := make(map[int]bool)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return p.finish(sum, venues), err
		}
		entries, err := p.updateCard(ctx, id)
		switch {
		case ctx.Err() != nil:
			return p.finish(sum, venues), ctx.Err()
		case errors.Is(err, models.ErrNotFound):
			sum.Missing++
			continue
		case err != nil:
			sum.Failed++
			log.Warn().Err(err).Str("race_id", id.String()).Msg("ingest: update card")
			continue
		}
		sum.Cards++
		venues[id.Venue] = true
		byVenue[id.Venue] = append(byVenue[id.Venue], entries...)
	}

	day := date.Format("20060102")
	seen := make(map[string]bool)
	for venue, entries := range byVenue {
		if err := p.data.PutCard(venue, day, entries); err != nil {
			return p.finish(sum, venues), fmt.Errorf("store card %s venue %d: %w", day, venue, err)
		}
		horses := make([]models.HorseName, 0, len(entries))
		for _, e := range entries {
			horses = append(horses, models.HorseName{HorseID: e.HorseID, Name: e.HorseName})
		}
		n, err := p.updateHorses(ctx, horses, seen)
		sum.Horses += n
		if err != nil {
			return p.finish(sum, venues), err
		}
	}
	return p.finish(sum, venues), nil
}

func (p *Pipeline) updateCard(ctx context.Context, id raceid.ID) ([]models.Entry, error) {
	key := id.String()
	var entries []models.Entry
	err := p.fetch.Get(ctx, p.fetch.CardPage(key), func(body []byte) (int, int, error) {
		page, err := scrape.ParseRaceCardPage(bytes.NewReader(body))
		if err != nil {
			return 0, 0, err
		}
		info := normalize.ParseCardInfo(page.Name, page.Info)
		entries, err = normalize.Entries(page.Entries, key, info, page.HorseIDs, page.JockeyIDs)
		if err != nil {
			return 0, 0, err
		}
		return len(entries), 0, nil
	})
	return entries, err
}

// Weekly scrapes the races run in the past week and the cards of the week
// ahead of ref.
func (p *Pipeline) Weekly(ctx context.Context, ref time.Time) (Summary, error) {
	sum, err := p.UpdateRaces(ctx, p.ids.PastWeek(ref, 0))
	if err != nil {
		return sum, err
	}
	for d := 0; d < 7; d++ {
		day := ref.AddDate(0, 0, d)
		ids := p.ids.Day(day, 0)
		if len(ids) == 0 {
			continue
		}
		cards, err := p.UpdateCards(ctx, day, ids)
		sum.Cards += cards.Cards
		sum.Horses += cards.Horses
		if err != nil {
			return sum, err
		}
	}
	return sum, nil
}

// YearToDate scrapes every race from 1 January through ref.
func (p *Pipeline) YearToDate(ctx context.Context, ref time.Time) (Summary, error) {
	return p.UpdateRaces(ctx, p.ids.YearToDate(ref, 0))
}

// Backfill scrapes a whole season at venue, or at every venue when venue is
// 0. Without a calendar file every syntactically possible id is tried, and
// pages found missing are remembered so later backfills skip them.
func (p *Pipeline) Backfill(ctx context.Context, year, venue int) (Summary, error) {
	ids := p.ids.Year(year, venue)
	if len(ids) == 0 {
		venues := []int{venue}
		if venue == 0 {
			venues = p.cfg.VenueCodes()
		}
		for _, v := range venues {
			ids = append(ids, raceid.Enumerate(year, v)...)
		}
		log.Info().Int("year", year).Int("ids", len(ids)).Msg("ingest: no calendar, enumerating ids")
	}
	return p.UpdateRaces(ctx, ids)
}
