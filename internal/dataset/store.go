package dataset

import (
	"cmp"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/lox/keiba/internal/config"
	"github.com/lox/keiba/internal/models"
)

// Scope names a yearly table or the multi-year total.
type Scope string

// Total is the scope of tables aggregated over FirstYear..Y.
const Total Scope = "total"

// Year returns the scope of a single season.
func Year(y int) Scope { return Scope(strconv.Itoa(y)) }

// Store reads and writes the data directory.
type Store struct {
	root   string
	venues map[int]string
}

// New returns a store rooted at cfg.DataDir.
func New(cfg *config.Config) *Store {
	venues := make(map[int]string, len(cfg.Venues))
	for _, v := range cfg.Venues {
		venues[v.Code] = v.Slug
	}
	return &Store{root: cfg.DataDir, venues: venues}
}

// Root returns the data directory.
func (s *Store) Root() string { return s.root }

func (s *Store) venueDir(kind string, venue int) string {
	slug, ok := s.venues[venue]
	if !ok {
		slug = fmt.Sprintf("%02d", venue)
	}
	return filepath.Join(s.root, kind, slug)
}

// Results returns a venue's race results for one season.
func (s *Store) Results(venue, year int) ([]models.ResultRow, error) {
	return load[models.ResultRow](s.resultsPath(venue, year))
}

// MergeResults adds rows to the season table, deduplicated by (race_id, horse_id).
func (s *Store) MergeResults(venue, year int, rows []models.ResultRow) error {
	_, err := merge(s.resultsPath(venue, year), rows, func(r models.ResultRow) string {
		return r.RaceID + "|" + r.HorseID
	})
	return err
}

func (s *Store) resultsPath(venue, year int) string {
	return filepath.Join(s.venueDir("RaceResults", venue), fmt.Sprintf("%d_race_results.csv", year))
}

// Returns returns a venue's payouts for one season.
func (s *Store) Returns(venue, year int) ([]models.ReturnRow, error) {
	return load[models.ReturnRow](s.returnsPath(venue, year))
}

// MergeReturns adds payout rows, deduplicated by (race_id, bet_type).
func (s *Store) MergeReturns(venue, year int, rows []models.ReturnRow) error {
	_, err := merge(s.returnsPath(venue, year), rows, func(r models.ReturnRow) string {
		return r.RaceID + "|" + string(r.BetType)
	})
	return err
}

func (s *Store) returnsPath(venue, year int) string {
	return filepath.Join(s.venueDir("RaceReturns", venue), fmt.Sprintf("%d_race_returns.csv", year))
}

// Card returns the race cards of a venue for one date (YYYYMMDD).
func (s *Store) Card(venue int, date string) ([]models.Entry, error) {
	return load[models.Entry](s.cardPath(venue, date))
}

// PutCard overwrites the cards of a venue for one date.
func (s *Store) PutCard(venue int, date string, entries []models.Entry) error {
	return save(s.cardPath(venue, date), entries)
}

func (s *Store) cardPath(venue int, date string) string {
	return filepath.Join(s.venueDir("RaceCards", venue), date+"_race_card.csv")
}

// History returns a horse's race history, newest first.
func (s *Store) History(horseID string) ([]models.PastRace, error) {
	return load[models.PastRace](s.historyPath(horseID))
}

// MergeHistory adds history rows, deduplicated by PastRace.Key, and keeps the
// table ordered newest first so rows after a race are the races before it.
func (s *Store) MergeHistory(horseID string, rows []models.PastRace) error {
	path := s.historyPath(horseID)
	existing, err := s.History(horseID)
	if err != nil && !isNotFound(err) {
		return err
	}
	merged := dedupe(append(existing, rows...), models.PastRace.Key)
	slices.SortStableFunc(merged, func(a, b models.PastRace) int {
		return cmp.Compare(b.Date, a.Date)
	})
	return save(path, merged)
}

func (s *Store) historyPath(horseID string) string {
	return filepath.Join(s.root, "PastPerformance", horseID+".csv")
}

// Pedigree returns a horse's stored pedigree. Pedigrees never change once
// stored.
func (s *Store) Pedigree(horseID string) (models.Pedigree, error) {
	entries, err := load[models.PedigreeEntry](s.pedigreePath(horseID))
	if err != nil {
		return models.Pedigree{}, err
	}
	return models.PedigreeFromEntries(horseID, entries), nil
}

// HasPedigree reports whether a pedigree is stored for the horse.
func (s *Store) HasPedigree(horseID string) bool {
	return exists(s.pedigreePath(horseID))
}

// PutPedigree stores a pedigree as one position,name row per ancestor.
func (s *Store) PutPedigree(p models.Pedigree) error {
	return save(s.pedigreePath(p.HorseID), p.Entries())
}

func (s *Store) pedigreePath(horseID string) string {
	return filepath.Join(s.root, "HorsePeds", horseID+".csv")
}

// HorseNames returns the horse id to name table.
func (s *Store) HorseNames() ([]models.HorseName, error) {
	return load[models.HorseName](s.namesPath())
}

// MergeHorseNames adds names, deduplicated by horse id and then by name.
func (s *Store) MergeHorseNames(names []models.HorseName) error {
	path := s.namesPath()
	existing, err := s.HorseNames()
	if err != nil && !isNotFound(err) {
		return err
	}
	merged := dedupe(append(existing, names...), func(n models.HorseName) string { return n.HorseID })
	merged = dedupe(merged, func(n models.HorseName) string { return n.Name })
	return save(path, merged)
}

func (s *Store) namesPath() string {
	return filepath.Join(s.root, "HorseNames", "horse_names.csv")
}

// PedsResults returns the pedigree-joined results of a venue season.
func (s *Store) PedsResults(venue, year int) ([]models.PedsResultRow, error) {
	return load[models.PedsResultRow](s.pedsPath(venue, year))
}

// PutPedsResults overwrites the pedigree-joined results of a venue season.
func (s *Store) PutPedsResults(venue, year int, rows []models.PedsResultRow) error {
	return save(s.pedsPath(venue, year), rows)
}

func (s *Store) pedsPath(venue, year int) string {
	return filepath.Join(s.venueDir("PedsResults", venue), fmt.Sprintf("%d_peds_data.csv", year))
}

// Averages returns the course time averages of a venue in scope.
func (s *Store) Averages(venue int, scope Scope) ([]models.CourseAverage, error) {
	return load[models.CourseAverage](s.averagesPath(venue, scope))
}

// PutAverages overwrites the course time averages of a venue in scope.
func (s *Store) PutAverages(venue int, scope Scope, rows []models.CourseAverage) error {
	return save(s.averagesPath(venue, scope), rows)
}

func (s *Store) averagesPath(venue int, scope Scope) string {
	return filepath.Join(s.venueDir("AverageTimes", venue), string(scope)+"_average_times.csv")
}

// SireStats returns the sire placing table of a venue in scope.
func (s *Store) SireStats(venue int, scope Scope) ([]models.SireStat, error) {
	return load[models.SireStat](s.sirePath(venue, scope))
}

// PutSireStats overwrites the sire placing table of a venue in scope.
func (s *Store) PutSireStats(venue int, scope Scope, rows []models.SireStat) error {
	return save(s.sirePath(venue, scope), rows)
}

func (s *Store) sirePath(venue int, scope Scope) string {
	return filepath.Join(s.venueDir("PedsStats", venue), string(scope)+"_sire_stats.csv")
}

// Predictions returns the ranking model output for a venue season.
func (s *Store) Predictions(venue, year int) ([]models.Prediction, error) {
	return load[models.Prediction](s.PredictionsPath(venue, year))
}

// PredictionsPath is where the external predictor writes its output.
func (s *Store) PredictionsPath(venue, year int) string {
	return filepath.Join(s.venueDir("Predictions", venue), fmt.Sprintf("%d_predictions.csv", year))
}

// Analysis tables written by the analysis package.
const (
	AnalysisWeights    = "AverageWeights"
	AnalysisPops       = "AveragePops"
	AnalysisPopsTop3   = "AveragePopsTop3"
	AnalysisFrames     = "AverageFrames"
	AnalysisFramesTop3 = "AverageFramesTop3"
	AnalysisPassing    = "AveragePassing"
)

var analysisFiles = map[string]struct{ dir, suffix string }{
	AnalysisWeights:    {"AverageWeights", "average_weights"},
	AnalysisPops:       {"AveragePops", "average_pops"},
	AnalysisPopsTop3:   {"AveragePops", "average_pops_top3"},
	AnalysisFrames:     {"AverageFrames", "average_frames"},
	AnalysisFramesTop3: {"AverageFrames", "average_frames_top3"},
	AnalysisPassing:    {"AveragePassing", "average_passing"},
}

// AnalysisKinds lists every analysis table.
func AnalysisKinds() []string {
	return []string{AnalysisWeights, AnalysisPops, AnalysisPopsTop3, AnalysisFrames, AnalysisFramesTop3, AnalysisPassing}
}

// AnalysisPath returns the file of one analysis table.
func (s *Store) AnalysisPath(kind string, venue int, scope Scope) string {
	f := analysisFiles[kind]
	return filepath.Join(s.venueDir(f.dir, venue), fmt.Sprintf("%s_%s.csv", scope, f.suffix))
}

// DatasetPaths returns the rank and flag files of one exported feature set.
func (s *Store) DatasetPaths(venue, year int, surface models.Surface, distance int) (rank, flag string) {
	dir := s.venueDir(filepath.Join("PredictionModels", "LightGBM", "Datasets"), venue)
	base := fmt.Sprintf("%d_%s%d_ai_dataset", year, surface, distance)
	return filepath.Join(dir, base+"_for_rank.csv"), filepath.Join(dir, base+"_flag.csv")
}

// ModelPath returns where the external trainer keeps the model for a course.
func (s *Store) ModelPath(venue int, surface models.Surface, distance int) string {
	dir := s.venueDir(filepath.Join("PredictionModels", "LightGBM", "Models"), venue)
	return filepath.Join(dir, fmt.Sprintf("%s%d_lambdarank_model.txt", surface.Slug(), distance))
}

// WriteFile atomically writes a file produced elsewhere, such as an exported
// dataframe.
func (s *Store) WriteFile(path string, data []byte) error {
	return writeAtomic(path, data)
}
