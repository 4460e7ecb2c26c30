package main

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"github.com/lox/keiba/internal/api"
	"github.com/lox/keiba/internal/ingest"
	"github.com/lox/keiba/internal/payout"
	"github.com/lox/keiba/internal/raceid"
)

type IDsCmd struct {
	Date      string `help:"Raceday (YYYY-MM-DD). Defaults to today."`
	Week      string `help:"Print the week around --date instead: past or next."`
	YTD       bool   `name:"ytd" help:"Print every id from 1 January to --date."`
	Year      int    `help:"Print a whole season instead."`
	Enumerate bool   `help:"With --year, print every possible id rather than calendar days."`
	Venue     int    `help:"Venue code, 0 for all." default:"0"`
}

func (c *IDsCmd) Run(a *app) error {
	ids, err := c.ids(a)
	if err != nil {
		return err
	}
	for _, s := range raceid.Strings(ids) {
		fmt.Println(s)
	}
	return nil
}

func (c *IDsCmd) ids(a *app) ([]raceid.ID, error) {
	syn := raceid.NewSynthesizer(a.cfg.CalendarDir)
	if c.Year != 0 {
		if !c.Enumerate {
			return syn.Year(c.Year, c.Venue), nil
		}
		venues, err := a.venues(c.Venue)
		if err != nil {
			return nil, err
		}
		var ids []raceid.ID
		for _, v := range venues {
			ids = append(ids, raceid.Enumerate(c.Year, v)...)
		}
		return ids, nil
	}

	ref, err := a.parseDate(c.Date)
	if err != nil {
		return nil, err
	}
	switch {
	case c.Week != "" && c.Week != "past" && c.Week != "next":
		return nil, fmt.Errorf("--week must be past or next, got %q", c.Week)
	case c.YTD:
		return syn.YearToDate(ref, c.Venue), nil
	case c.Week == "past":
		return syn.PastWeek(ref, c.Venue), nil
	case c.Week == "next":
		return syn.NextWeek(ref, c.Venue), nil
	default:
		return syn.Day(ref, c.Venue), nil
	}
}

type UpdateCmd struct {
	Date      string `help:"Reference date (YYYY-MM-DD). Defaults to today."`
	YTD       bool   `name:"ytd" help:"Scrape every race since 1 January instead of last week."`
	NoRebuild bool   `help:"Skip rebuilding the touched venues."`
}

func (c *UpdateCmd) Run(a *app) error {
	ref, err := a.parseDate(c.Date)
	if err != nil {
		return err
	}
	p, err := a.pipeline()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	var sum ingest.Summary
	if c.YTD {
		sum, err = p.YearToDate(ctx, ref)
	} else {
		sum, err = p.Weekly(ctx, ref)
	}
	if err != nil {
		return err
	}
	log.Info().Int("races", sum.Races).Int("cards", sum.Cards).Int("horses", sum.Horses).
		Int("missing", sum.Missing).Int("failed", sum.Failed).Msg("update complete")

	if c.NoRebuild {
		return nil
	}
	for _, v := range sum.Venues {
		if err := p.Rebuild(ctx, v, ref.Year()); err != nil {
			return err
		}
	}
	return nil
}

type BackfillCmd struct {
	Year    int  `help:"Season to scrape." required:""`
	Venue   int  `help:"Venue code, 0 for all." default:"0"`
	Rebuild bool `help:"Rebuild the venues afterwards."`
}

func (c *BackfillCmd) Run(a *app) error {
	venues, err := a.venues(c.Venue)
	if err != nil {
		return err
	}
	p, err := a.pipeline()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	sum, err := p.Backfill(ctx, c.Year, c.Venue)
	if err != nil {
		return err
	}
	log.Info().Int("year", c.Year).Int("races", sum.Races).Int("missing", sum.Missing).
		Int("skipped", sum.Skipped).Int("failed", sum.Failed).Msg("backfill complete")

	if !c.Rebuild {
		return nil
	}
	for _, v := range venues {
		if err := p.Rebuild(ctx, v, c.Year); err != nil {
			log.Warn().Err(err).Int("venue", v).Msg("rebuild skipped")
		}
	}
	return nil
}

type RebuildCmd struct {
	Year  int `help:"Season to rebuild." required:""`
	Venue int `help:"Venue code, 0 for all." default:"0"`
}

func (c *RebuildCmd) Run(a *app) error {
	venues, err := a.venues(c.Venue)
	if err != nil {
		return err
	}
	p, err := a.pipeline()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	for _, v := range venues {
		if err := p.Rebuild(ctx, v, c.Year); err != nil {
			if c.Venue != 0 {
				return err
			}
			log.Warn().Err(err).Int("venue", v).Msg("rebuild skipped")
		}
	}
	return nil
}

type DatasetCmd struct {
	Year  int `help:"Season to export." required:""`
	Venue int `help:"Venue code, 0 for all." default:"0"`
}

func (c *DatasetCmd) Run(a *app) error {
	venues, err := a.venues(c.Venue)
	if err != nil {
		return err
	}
	p, err := a.pipeline()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	for _, v := range venues {
		if err := p.ExportDatasets(ctx, v, c.Year); err != nil {
			return err
		}
	}
	return nil
}

type SimulateCmd struct {
	Venue int  `help:"Venue code." required:""`
	Year  int  `help:"Season." required:""`
	JSON  bool `name:"json" help:"Print JSON instead of a table."`
	Races bool `help:"List the races each bet hit."`
}

func (c *SimulateCmd) Run(a *app) error {
	preds, err := a.data.Predictions(c.Venue, c.Year)
	if err != nil {
		return fmt.Errorf("predictions: %w", err)
	}
	returns, err := a.data.Returns(c.Venue, c.Year)
	if err != nil {
		return fmt.Errorf("returns: %w", err)
	}
	results := payout.Simulate(preds, returns, payout.DefaultBets())

	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BET\tRACES\tHITS\tHIT RATE\tRETURN")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%d\t%d\t%.1f%%\t%.1f%%\n", r.Bet, r.Races, r.Hits, r.HitRate*100, r.ReturnRate)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if c.Races {
		for _, r := range results {
			if len(r.HitRaces) > 0 {
				fmt.Printf("%s: %s\n", r.Bet, strings.Join(r.HitRaces, " "))
			}
		}
	}
	return nil
}

type MissesCmd struct {
	Clear MissesClearCmd `cmd:"" help:"Forget missing pages so they are fetched again."`
}

type MissesClearCmd struct {
	Endpoint string `help:"Page endpoint." default:"race" enum:"race,horse,ped,shutuba"`
	Prefix   string `help:"Only clear page keys with this prefix, e.g. a year."`
}

func (c *MissesClearCmd) Run(a *app) error {
	st, err := a.openStore()
	if err != nil {
		return err
	}
	n, err := st.ClearMisses(c.Endpoint, c.Prefix)
	if err != nil {
		return err
	}
	log.Info().Int64("cleared", n).Str("endpoint", c.Endpoint).Str("prefix", c.Prefix).Msg("misses cleared")
	return nil
}

type PayloadsCmd struct {
	Stats   PayloadsStatsCmd   `cmd:"" help:"Show archive size per endpoint."`
	Cleanup PayloadsCleanupCmd `cmd:"" help:"Delete archived payloads older than --days."`
	Show    PayloadsShowCmd    `cmd:"" help:"Print the latest archived page."`
}

type PayloadsStatsCmd struct{}

func (c *PayloadsStatsCmd) Run(a *app) error {
	st, err := a.openStore()
	if err != nil {
		return err
	}
	stats, err := st.GetRawPayloadStats()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ENDPOINT\tPAGES\tSIZE")
	for _, endpoint := range slices.Sorted(maps.Keys(stats.CountByEndpoint)) {
		size := humanize.Bytes(uint64(stats.SizeByEndpoint[endpoint]))
		fmt.Fprintf(w, "%s\t%d\t%s\n", endpoint, stats.CountByEndpoint[endpoint], size)
	}
	fmt.Fprintf(w, "total\t%d\t%s\n", stats.TotalCount, humanize.Bytes(uint64(stats.TotalSizeBytes)))
	return w.Flush()
}

type PayloadsCleanupCmd struct {
	Days int `help:"Retention in days." default:"90"`
}

func (c *PayloadsCleanupCmd) Run(a *app) error {
	st, err := a.openStore()
	if err != nil {
		return err
	}
	n, err := st.CleanupOldRawPayloads(c.Days)
	if err != nil {
		return err
	}
	log.Info().Int64("deleted", n).Int("days", c.Days).Msg("payloads cleaned up")
	return nil
}

type PayloadsShowCmd struct {
	Endpoint string `arg:"" help:"Page endpoint." enum:"race,horse,ped,shutuba"`
	Key      string `arg:"" help:"Race or horse id."`
}

func (c *PayloadsShowCmd) Run(a *app) error {
	st, err := a.openStore()
	if err != nil {
		return err
	}
	body, err := st.LatestRawPayload(c.Endpoint, c.Key)
	if err != nil {
		return err
	}
	if body == nil {
		return fmt.Errorf("no archived %s page for %s", c.Endpoint, c.Key)
	}
	_, err = os.Stdout.Write(body)
	return err
}

type ServeCmd struct {
	Port   string `help:"HTTP port (overrides config)."`
	NoPoll bool   `help:"Disable the scheduler (server only)."`
}

func (c *ServeCmd) Run(a *app) error {
	p, err := a.pipeline()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	if !c.NoPoll {
		go ingest.NewScheduler(p, a.loc).Run(ctx)
	} else {
		log.Info().Msg("polling disabled (--no-poll)")
	}

	return api.NewServer(a.store, a.data, a.cfg, c.Port).Run(ctx)
}
