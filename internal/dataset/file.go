// Package dataset is the flat-file store: one CSV table per entity with a gob
// snapshot beside it.
package dataset

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jszwec/csvutil"
	"github.com/rs/zerolog/log"

	"github.com/lox/keiba/internal/models"
)

const snapshotExt = ".gob"

// load reads a table, preferring the snapshot and falling back to the CSV.
func load[T any](path string) ([]T, error) {
	if rows, err := loadSnapshot[T](path + snapshotExt); err == nil {
		return rows, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Str("path", path).Msg("dataset: snapshot unreadable, using csv")
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var rows []T
	if err := csvutil.Unmarshal(data, &rows); err != nil {
		return nil, models.NewParseError(path, err)
	}
	return rows, nil
}

func loadSnapshot[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var rows []T
	if err := gob.NewDecoder(f).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return rows, nil
}

// save writes the CSV and its snapshot. Empty tables are not written.
func save[T any](path string, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	data, err := csvutil.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	var snap bytes.Buffer
	if err := gob.NewEncoder(&snap).Encode(rows); err != nil {
		return fmt.Errorf("encode %s: %w", path+snapshotExt, err)
	}
	if err := writeAtomic(path, data); err != nil {
		return err
	}
	return writeAtomic(path+snapshotExt, snap.Bytes())
}

// merge appends rows to the stored table, keeping the first row per key.
func merge[T any](path string, rows []T, key func(T) string) ([]T, error) {
	existing, err := load[T](path)
	if err != nil && !isNotFound(err) {
		return nil, err
	}
	merged := dedupe(append(existing, rows...), key)
	if err := save(path, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

func dedupe[T any](rows []T, key func(T) string) []T {
	seen := make(map[string]struct{}, len(rows))
	out := rows[:0:0]
	for _, r := range rows {
		k := key(r)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

// writeAtomic writes data to a temp file in the target directory and renames
// it into place.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func isNotFound(err error) bool {
	return errors.Is(err, models.ErrNotFound)
}
