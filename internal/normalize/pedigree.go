package normalize

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/lox/keiba/internal/models"
)

// PedigreeCell is one ancestor cell of the five-generation table, in
// document order.
type PedigreeCell struct {
	Rowspan int
	Text    string
}

// generation maps the rowspan of a cell in the 32-row table to its
// generation: sires and dams span 16 rows, great-great-great grandparents 1.
func generation(rowspan int) (int, bool) {
	switch rowspan {
	case 16:
		return 0, true
	case 8:
		return 1, true
	case 4:
		return 2, true
	case 2:
		return 3, true
	case 0, 1:
		return 4, true
	}
	return 0, false
}

// Pedigree flattens the ancestor cells generation by generation, so index 0
// is the sire, 1 the dam, 4 the dam's sire, and the result always has
// models.PedigreeSize names.
func Pedigree(horseID string, cells []PedigreeCell) (models.Pedigree, error) {
	src := "pedigree " + horseID
	if len(cells) == 0 {
		return models.Pedigree{}, models.ErrNotFound
	}
	var gens [5][]string
	for i, c := range cells {
		g, ok := generation(c.Rowspan)
		if !ok {
			return models.Pedigree{}, models.NewParseError(src, fmt.Errorf("cell %d: unexpected rowspan %d", i, c.Rowspan))
		}
		gens[g] = append(gens[g], StripBirthYear(c.Text))
	}
	ancestors := make([]string, 0, models.PedigreeSize)
	for g, names := range gens {
		if want := 2 << g; len(names) != want {
			return models.Pedigree{}, models.NewParseError(src, fmt.Errorf("generation %d has %d names, want %d", g, len(names), want))
		}
		ancestors = append(ancestors, names...)
	}
	return models.Pedigree{HorseID: horseID, Ancestors: ancestors}, nil
}

// StripBirthYear cuts an ancestor cell at its first digit, which starts the
// birth year and coat colour line, and trims what is left.
func StripBirthYear(s string) string {
	if i := strings.IndexFunc(s, unicode.IsDigit); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
