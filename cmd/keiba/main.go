package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/lox/keiba/internal/config"
	"github.com/lox/keiba/internal/dataset"
	"github.com/lox/keiba/internal/ingest"
	"github.com/lox/keiba/internal/logging"
	"github.com/lox/keiba/internal/raceid"
	"github.com/lox/keiba/internal/scrape"
	"github.com/lox/keiba/internal/store"
)

type CLI struct {
	Config   string `help:"Path to YAML config file." type:"path" env:"KEIBA_CONFIG"`
	EnvFile  string `name:"env-file" help:"Path to .env file loaded before the config." default:".env"`
	DB       string `help:"Path to SQLite database (overrides config)."`
	DataDir  string `name:"data-dir" help:"Data directory (overrides config)."`
	LogLevel string `name:"log-level" help:"Log level (overrides config)."`

	IDs      IDsCmd      `cmd:"" name:"ids" help:"Print race ids from the calendar."`
	Update   UpdateCmd   `cmd:"" help:"Scrape last week's races and this week's cards."`
	Backfill BackfillCmd `cmd:"" help:"Scrape a whole season."`
	Rebuild  RebuildCmd  `cmd:"" help:"Rebuild averages, analysis tables and datasets."`
	Dataset  DatasetCmd  `cmd:"" help:"Export feature datasets from existing tables."`
	Simulate SimulateCmd `cmd:"" help:"Simulate betting returns from stored predictions."`
	Misses   MissesCmd   `cmd:"" help:"Inspect or clear the missing-page log."`
	Payloads PayloadsCmd `cmd:"" help:"Raw payload archive maintenance."`
	Serve    ServeCmd    `cmd:"" help:"Run the scheduler and HTTP server."`
}

// app holds what every command needs. The database is opened lazily since
// some commands never touch it.
type app struct {
	cfg  *config.Config
	data *dataset.Store
	loc  *time.Location

	db    *sql.DB
	store *store.Store
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("keiba"),
		kong.Description("JRA race results scraper and dataset builder."),
		kong.UsageOnError(),
	)

	if err := godotenv.Load(cli.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", cli.EnvFile, err)
		os.Exit(1)
	}

	cfg, err := config.Load(cli.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if cli.DB != "" {
		cfg.DBPath = cli.DB
	}
	if cli.DataDir != "" {
		cfg.DataDir = cli.DataDir
	}
	if cli.LogLevel != "" {
		cfg.Log.Level = cli.LogLevel
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}

	a := &app{cfg: cfg, data: dataset.New(cfg), loc: ingest.Tokyo()}
	defer a.close()

	kctx.FatalIfErrorf(kctx.Run(a))
}

func (a *app) openStore() (*store.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	if err := os.MkdirAll(filepath.Dir(a.cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", a.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Debug().Str("path", a.cfg.DBPath).Msg("database migrated")
	a.db, a.store = db, st
	return st, nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
}

func (a *app) pipeline() (*ingest.Pipeline, error) {
	st, err := a.openStore()
	if err != nil {
		return nil, err
	}
	client := scrape.NewClient(a.cfg, st)
	return ingest.NewPipeline(a.cfg, client, a.data, st, raceid.NewSynthesizer(a.cfg.CalendarDir)), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// parseDate reads YYYY-MM-DD in Japan time. Empty means today.
func (a *app) parseDate(s string) (time.Time, error) {
	if s == "" {
		now := time.Now().In(a.loc)
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, a.loc), nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, a.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return t, nil
}

// venues expands 0 to every configured venue.
func (a *app) venues(code int) ([]int, error) {
	if code == 0 {
		return a.cfg.VenueCodes(), nil
	}
	if _, err := a.cfg.Venue(code); err != nil {
		return nil, err
	}
	return []int{code}, nil
}
