package ingest

import (
	"encoding/json"
	"strings"

	"github.com/lox/keiba/internal/models"
	"github.com/lox/keiba/internal/timing"
)

const (
	FlagFinishInvalid        = "finish_invalid"
	FlagTimeUnparsable       = "time_unparsable"
	FlagDistanceOutOfRange   = "distance_out_of_range"
	FlagSurfaceUnknown       = "surface_unknown"
	FlagHorseNoInvalid       = "horse_no_invalid"
	FlagBodyWeightOutOfRange = "body_weight_out_of_range"
)

// Non-numeric finishes: stopped, scratched, withdrawn, disqualified.
var nonFinishes = []string{"中", "除", "取", "失"}

// ValidateResult flags implausible values in a normalized result row.
func ValidateResult(r models.ResultRow) []string {
	var flags []string

	pos, finished := r.FinishPosition()
	switch {
	case finished && (pos < 1 || pos > 18):
		flags = append(flags, FlagFinishInvalid)
	case !finished && !hasAnyPrefix(r.Finish, nonFinishes):
		flags = append(flags, FlagFinishInvalid)
	}

	if finished {
		if _, ok := timing.ParseMs(r.Time); !ok {
			flags = append(flags, FlagTimeUnparsable)
		}
	}

	if r.Distance < 800 || r.Distance > 4300 {
		flags = append(flags, FlagDistanceOutOfRange)
	}

	switch r.Surface {
	case models.SurfaceTurf, models.SurfaceDirt, models.SurfaceJump:
	default:
		flags = append(flags, FlagSurfaceUnknown)
	}

	if r.HorseNo < 1 || r.HorseNo > 18 {
		flags = append(flags, FlagHorseNoInvalid)
	}

	if r.BodyWeight != nil && (*r.BodyWeight < 300 || *r.BodyWeight > 700) {
		flags = append(flags, FlagBodyWeightOutOfRange)
	}

	return flags
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func QualityFlagsToJSON(flags []string) string {
	if len(flags) == 0 {
		return ""
	}
	b, _ := json.Marshal(flags)
	return string(b)
}
