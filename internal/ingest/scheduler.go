package ingest

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Scheduler runs the weekly update and rebuild at a fixed weekday and hour,
// Japan time.
type Scheduler struct {
	pipeline *Pipeline
	loc      *time.Location
	weekday  time.Weekday
	hour     int
	interval time.Duration

	lastRun string
}

func NewScheduler(p *Pipeline, loc *time.Location) *Scheduler {
	return &Scheduler{
		pipeline: p,
		loc:      loc,
		weekday:  p.cfg.Scheduler.Weekday,
		hour:     p.cfg.Scheduler.Hour,
		interval: p.cfg.Scheduler.Interval,
	}
}

// Tokyo returns the Asia/Tokyo location, or a fixed +09:00 zone when the
// tz database is unavailable.
func Tokyo() *time.Location {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		return time.FixedZone("JST", 9*60*60)
	}
	return loc
}

func (s *Scheduler) Run(ctx context.Context) {
	s.runIfDue(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("scheduler: shutting down")
			return
		case <-ticker.C:
			s.runIfDue(ctx)
		}
	}
}

// due reports whether now falls in the scheduled hour and the job has not
// yet run that day.
func (s *Scheduler) due(now time.Time) bool {
	local := now.In(s.loc)
	return local.Weekday() == s.weekday &&
		local.Hour() == s.hour &&
		local.Format("2006-01-02") != s.lastRun
}

func (s *Scheduler) runIfDue(ctx context.Context) {
	now := s.pipeline.now()
	if !s.due(now) {
		return
	}
	local := now.In(s.loc)
	s.lastRun = local.Format("2006-01-02")

	log.Info().Time("ref", local).Msg("scheduler: running weekly update")
	sum, err := s.pipeline.Weekly(ctx, local)
	if err != nil {
		log.Error().Err(err).Msg("scheduler: weekly update")
		if ctx.Err() != nil {
			return
		}
	}
	for _, venue := range sum.Venues {
		if err := s.pipeline.Rebuild(ctx, venue, local.Year()); err != nil {
			log.Error().Err(err).Int("venue", venue).Msg("scheduler: rebuild")
		}
	}
	log.Info().Int("races", sum.Races).Int("cards", sum.Cards).Int("horses", sum.Horses).
		Msg("scheduler: weekly update complete")
}
