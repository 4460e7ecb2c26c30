package store

import (
	"time"
)

// RecordMiss marks a page as known not to exist.
func (s *Store) RecordMiss(endpoint, pageKey string) error {
	_, err := s.db.Exec(`
		INSERT INTO page_misses (endpoint, page_key, recorded_at)
		VALUES (?, ?, ?)
		ON CONFLICT(endpoint, page_key) DO NOTHING
	`, endpoint, pageKey, time.Now().UTC())
	return err
}

// IsMiss reports whether the page was previously recorded as missing.
func (s *Store) IsMiss(endpoint, pageKey string) (bool, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM page_misses WHERE endpoint = ? AND page_key = ?
	`, endpoint, pageKey).Scan(&n)
	return n > 0, err
}

// ClearMisses forgets every recorded miss for endpoint whose key starts
// with prefix, so a later backfill fetches them again.
func (s *Store) ClearMisses(endpoint, prefix string) (int64, error) {
	result, err := s.db.Exec(`
		DELETE FROM page_misses WHERE endpoint = ? AND page_key LIKE ? || '%'
	`, endpoint, prefix)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
