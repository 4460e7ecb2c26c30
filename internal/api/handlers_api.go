package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/lox/keiba/internal/dataset"
	"github.com/lox/keiba/internal/models"
	"github.com/lox/keiba/internal/payout"
)

func (s *Server) handleAPIIngestHealth(w http.ResponseWriter, r *http.Request) {
	days := intParam(r, "days", 7)
	summaries, err := s.store.GetIngestHealth(days)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, summaries)
}

type IngestError struct {
	StartedAt string `json:"started_at"`
	Endpoint  string `json:"endpoint"`
	PageKey   string `json:"page_key"`
	Status    int64  `json:"http_status"`
	Error     string `json:"error"`
}

func (s *Server) handleAPIIngestErrors(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.GetRecentIngestErrors(intParam(r, "limit", 20))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]IngestError, 0, len(runs))
	for _, run := range runs {
		out = append(out, IngestError{
			StartedAt: run.StartedAt.Format(time.RFC3339),
			Endpoint:  run.Endpoint,
			PageKey:   run.PageKey.String,
			Status:    run.HTTPStatus.Int64,
			Error:     run.ErrorMessage.String,
		})
	}
	writeJSON(w, out)
}

type VenueInfo struct {
	Code    int      `json:"code"`
	Name    string   `json:"name"`
	Slug    string   `json:"slug"`
	Courses []string `json:"courses"`
}

func (s *Server) handleAPIVenues(w http.ResponseWriter, r *http.Request) {
	out := make([]VenueInfo, 0, len(s.cfg.Venues))
	for _, v := range s.cfg.Venues {
		info := VenueInfo{Code: v.Code, Name: v.Name, Slug: v.Slug}
		for _, c := range v.Courses() {
			info.Courses = append(info.Courses, string(c.Surface)+strconv.Itoa(c.Distance))
		}
		out = append(out, info)
	}
	writeJSON(w, out)
}

// handleAPIAverages serves a venue's course time averages for year, or the
// multi-year total when year is absent.
func (s *Server) handleAPIAverages(w http.ResponseWriter, r *http.Request) {
	venue, ok := s.venueParam(w, r)
	if !ok {
		return
	}
	scope := dataset.Total
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "invalid year", http.StatusBadRequest)
			return
		}
		scope = dataset.Year(y)
	}
	rows, err := s.data.Averages(venue, scope)
	if writeLoadError(w, err) {
		return
	}
	writeJSON(w, rows)
}

// handleAPICards serves the stored card of a venue on one date (YYYYMMDD).
func (s *Server) handleAPICards(w http.ResponseWriter, r *http.Request) {
	venue, ok := s.venueParam(w, r)
	if !ok {
		return
	}
	date := r.URL.Query().Get("date")
	if len(date) != 8 {
		http.Error(w, "date must be YYYYMMDD", http.StatusBadRequest)
		return
	}
	entries, err := s.data.Card(venue, date)
	if writeLoadError(w, err) {
		return
	}
	writeJSON(w, entries)
}

// handleAPISimulate plays the default bets on a season's stored predictions.
func (s *Server) handleAPISimulate(w http.ResponseWriter, r *http.Request) {
	venue, ok := s.venueParam(w, r)
	if !ok {
		return
	}
	year := intParam(r, "year", 0)
	if year == 0 {
		http.Error(w, "year is required", http.StatusBadRequest)
		return
	}
	preds, err := s.data.Predictions(venue, year)
	if writeLoadError(w, err) {
		return
	}
	returns, err := s.data.Returns(venue, year)
	if writeLoadError(w, err) {
		return
	}
	writeJSON(w, payout.Simulate(preds, returns, payout.DefaultBets()))
}

func (s *Server) venueParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	code := intParam(r, "venue", 0)
	if _, err := s.cfg.Venue(code); err != nil {
		http.Error(w, "unknown venue", http.StatusBadRequest)
		return 0, false
	}
	return code, true
}

func intParam(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func writeLoadError(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, models.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
	return true
}
