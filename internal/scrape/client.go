// Package scrape fetches netkeiba pages and extracts their tables.
package scrape

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"github.com/lox/keiba/internal/config"
	"github.com/lox/keiba/internal/httputil"
	"github.com/lox/keiba/internal/metrics"
	"github.com/lox/keiba/internal/models"
	"github.com/lox/keiba/internal/store"
)

// Page endpoints, used as metric labels and audit keys.
const (
	EndpointRace     = "race"
	EndpointHorse    = "horse"
	EndpointPedigree = "ped"
	EndpointCard     = "shutuba"
)

// Page names one netkeiba page.
type Page struct {
	Source   string // "db" or "race"
	Endpoint string
	Key      string // race or horse id
	URL      string
}

// Archive records fetches and keeps their bodies. *store.Store implements it.
type Archive interface {
	StartIngestRun(source, endpoint, pageKey string) (*store.IngestRun, error)
	CompleteIngestRun(run *store.IngestRun) error
	StoreRawPayload(runID *int64, source, endpoint, pageKey string, payload []byte) (int64, error)
}

// Client fetches pages serially, waiting at least the configured delay
// between requests.
type Client struct {
	http        *http.Client
	archive     Archive
	dbBase      string
	raceBase    string
	delay       time.Duration
	maxElapsed  time.Duration
	initialWait time.Duration

	mu   sync.Mutex
	last time.Time
}

// NewClient returns a client for the configured hosts. archive may be nil.
func NewClient(cfg *config.Config, archive Archive) *Client {
	return &Client{
		http:        httputil.NewClient(cfg.HTTP.Timeout, cfg.HTTP.UserAgent),
		archive:     archive,
		dbBase:      strings.TrimRight(cfg.HTTP.DBBaseURL, "/"),
		raceBase:    strings.TrimRight(cfg.HTTP.RaceBaseURL, "/"),
		delay:       cfg.HTTP.Delay,
		maxElapsed:  cfg.HTTP.MaxElapsed,
		initialWait: backoff.DefaultInitialInterval,
	}
}

// ResultPage is the db page of a finished race: results, intro and payouts.
func (c *Client) ResultPage(raceID string) Page {
	return Page{Source: "db", Endpoint: EndpointRace, Key: raceID, URL: c.dbBase + "/race/" + raceID + "/"}
}

// HistoryPage is a horse's profile with its race history.
func (c *Client) HistoryPage(horseID string) Page {
	return Page{Source: "db", Endpoint: EndpointHorse, Key: horseID, URL: c.dbBase + "/horse/" + horseID + "/"}
}

// PedigreePage is a horse's five-generation pedigree.
func (c *Client) PedigreePage(horseID string) Page {
	return Page{Source: "db", Endpoint: EndpointPedigree, Key: horseID, URL: c.dbBase + "/horse/ped/" + horseID + "/"}
}

// CardPage is the race card of an upcoming race.
func (c *Client) CardPage(raceID string) Page {
	return Page{Source: "race", Endpoint: EndpointCard, Key: raceID, URL: c.raceBase + "/race/shutuba.html?race_id=" + raceID}
}

// StatusError is a non-200 response.
type StatusError struct {
	Status int
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
}

// retryable reports whether a status is worth retrying.
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// ParseFunc extracts rows from a fetched page, returning how many it stored
// and how many it rejected.
type ParseFunc func(body []byte) (stored, rejected int, err error)

// Get fetches p, archives its body and hands it to parse. The whole exchange
// is recorded as one ingest run. A 404 or a page without its table returns
// an error matching models.ErrNotFound.
func (c *Client) Get(ctx context.Context, p Page, parse ParseFunc) error {
	var run *store.IngestRun
	if c.archive != nil {
		var err error
		run, err = c.archive.StartIngestRun(p.Source, p.Endpoint, p.Key)
		if err != nil {
			log.Warn().Err(err).Str("page", p.Key).Msg("scrape: start ingest run")
		}
	}

	body, status, err := c.fetch(ctx, p)
	if run != nil && status > 0 {
		run.HTTPStatus = sql.NullInt64{Int64: int64(status), Valid: true}
	}
	if err == nil {
		if run != nil {
			run.ResponseSizeBytes = sql.NullInt64{Int64: int64(len(body)), Valid: true}
			if _, aerr := c.archive.StoreRawPayload(&run.ID, p.Source, p.Endpoint, p.Key, body); aerr != nil {
				log.Warn().Err(aerr).Str("page", p.Key).Msg("scrape: archive payload")
			}
		}
		var stored, rejected int
		stored, rejected, err = parse(body)
		if run != nil {
			run.RecordsParsed = sql.NullInt64{Int64: int64(stored + rejected), Valid: true}
			run.RecordsStored = sql.NullInt64{Int64: int64(stored), Valid: true}
			run.ParseErrors = sql.NullInt64{Int64: int64(rejected), Valid: true}
		}
		if rejected > 0 {
			metrics.ParseErrors.WithLabelValues(p.Endpoint).Add(float64(rejected))
		}
		if models.IsParseError(err) {
			metrics.ParseErrors.WithLabelValues(p.Endpoint).Inc()
		}
	}

	if run != nil {
		run.Success = err == nil
		if err != nil {
			run.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
		}
		if cerr := c.archive.CompleteIngestRun(run); cerr != nil {
			log.Warn().Err(cerr).Str("page", p.Key).Msg("scrape: complete ingest run")
		}
	}
	return err
}

// Fetch returns the decoded body of p without parsing or archiving it.
func (c *Client) Fetch(ctx context.Context, p Page) ([]byte, error) {
	body, _, err := c.fetch(ctx, p)
	return body, err
}

func (c *Client) fetch(ctx context.Context, p Page) ([]byte, int, error) {
	if err := c.wait(ctx); err != nil {
		return nil, 0, err
	}

	var (
		body   []byte
		status int
	)
	operation := func() error {
		start := time.Now()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		metrics.PageFetchLatency.WithLabelValues(p.Endpoint).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.PageFetchesTotal.WithLabelValues(p.Endpoint, "error").Inc()
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("fetch %s: %w", p.URL, err)
		}
		defer resp.Body.Close()

		status = resp.StatusCode
		metrics.PageFetchesTotal.WithLabelValues(p.Endpoint, strconv.Itoa(status)).Inc()
		switch {
		case status == http.StatusOK:
		case status == http.StatusNotFound:
			return backoff.Permanent(fmt.Errorf("fetch %s: %w", p.URL, models.ErrNotFound))
		case retryable(status):
			return &StatusError{Status: status, URL: p.URL}
		default:
			return backoff.Permanent(&StatusError{Status: status, URL: p.URL})
		}

		body, err = io.ReadAll(decoder(resp))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialWait
	bo.MaxElapsedTime = c.maxElapsed
	err := backoff.RetryNotify(operation, backoff.WithContext(bo, ctx), func(err error, d time.Duration) {
		log.Debug().Err(err).Dur("wait", d).Str("page", p.Key).Msg("scrape: retrying")
	})
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
		return nil, status, err
	}
	return body, status, nil
}

// decoder converts the body to UTF-8. netkeiba serves EUC-JP unless the
// response says otherwise.
func decoder(resp *http.Response) io.Reader {
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.Contains(ct, "utf-8") {
		return resp.Body
	}
	return transform.NewReader(resp.Body, japanese.EUCJP.NewDecoder())
}

func (c *Client) wait(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if d := c.delay - time.Since(c.last); d > 0 && !c.last.IsZero() {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	c.last = time.Now()
	return nil
}
