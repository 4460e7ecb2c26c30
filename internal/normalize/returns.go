package normalize

import (
	"fmt"
	"strings"

	"github.com/lox/keiba/internal/models"
)

var betAliases = map[string]models.BetType{
	"単勝":  models.BetWin,
	"複勝":  models.BetPlace,
	"枠連":  models.BetBracketQuin,
	"馬連":  models.BetQuinella,
	"ワイド": models.BetQuinellaPlace,
	"馬単":  models.BetExacta,
	"三連複": models.BetTrio,
	"3連複": models.BetTrio,
	"三連単": models.BetTrifecta,
	"3連単": models.BetTrifecta,
}

// ParseBetType resolves the pool name of a payout row.
func ParseBetType(s string) (models.BetType, bool) {
	b, ok := betAliases[NormalizeHeader(s)]
	return b, ok
}

// Returns converts payout table rows (pool, selection, payout, popularity)
// into typed rows. Cells holding several selections must keep one line break
// per original <br>; separators such as "-" and "→" are dropped and the
// remaining numbers are regrouped by the pool's arity.
func Returns(raw Table, raceID string) ([]models.ReturnRow, error) {
	src := "returns " + raceID
	if len(raw.Rows) == 0 {
		return nil, models.ErrNotFound
	}
	out := make([]models.ReturnRow, 0, len(raw.Rows))
	for i, r := range raw.Rows {
		if len(r) < 3 {
			return nil, models.NewParseError(src, fmt.Errorf("row %d has %d cells, want at least 3", i, len(r)))
		}
		bet, ok := ParseBetType(r[0])
		if !ok {
			return nil, models.NewParseError(src, fmt.Errorf("row %d: unknown pool %q", i, r[0]))
		}
		row := models.ReturnRow{
			RaceID:    raceID,
			BetType:   bet,
			Selection: RegroupSelections(r[1], bet.Arity()),
			Payout:    cleanAmounts(r[2]),
		}
		if len(r) > 3 {
			row.Popularity = cleanAmounts(r[3])
		}
		out = append(out, row)
	}
	return out, nil
}

// RegroupSelections joins every arity numbers of a multi-line selection cell
// into one "a-b(-c)" combination and separates combinations with a space.
func RegroupSelections(cellText string, arity int) string {
	if arity < 1 {
		arity = 1
	}
	var nums []string
	for _, tok := range strings.FieldsFunc(cellText, isSelectionSep) {
		if digitsRe.MatchString(tok) && nonDigit.FindString(tok) == "" {
			nums = append(nums, tok)
		}
	}
	var combos []string
	for i := 0; i+arity <= len(nums); i += arity {
		combos = append(combos, strings.Join(nums[i:i+arity], "-"))
	}
	return strings.Join(combos, " ")
}

func isSelectionSep(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '　', '-', '→', '－', '>':
		return true
	}
	return false
}

// cleanAmounts strips 円, thousands separators and 人気 from a payout or
// popularity cell, keeping one space-separated value per line.
func cleanAmounts(s string) string {
	r := strings.NewReplacer("円", "", ",", "", "人気", "")
	return strings.Join(strings.Fields(r.Replace(s)), " ")
}
