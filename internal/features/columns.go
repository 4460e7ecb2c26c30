// Package features assembles the per-runner ranking feature vectors and
// exports them for the external LambdaRank trainer.
package features

import "fmt"

// PastRaceCount is the number of previous races described per runner.
const PastRaceCount = 3

var (
	pedigreeScopes   = []string{"venue", "distance", "class"}
	pedigreeSubjects = []string{"sire", "damsire", "cross"}
	placings         = []string{"1st", "2nd", "3rd", "out"}
	pastFields       = []string{"time_diff_all", "time_diff_class", "popularity", "finish"}
)

// ValueColumns names each value of a Vector, in order.
func ValueColumns() []string {
	var cols []string
	for _, scope := range pedigreeScopes {
		for _, subject := range pedigreeSubjects {
			for _, p := range placings {
				cols = append(cols, fmt.Sprintf("%s_%s_%s", scope, subject, p))
			}
		}
	}
	for i := 1; i <= PastRaceCount; i++ {
		for _, f := range pastFields {
			cols = append(cols, fmt.Sprintf("past%d_%s", i, f))
		}
	}
	return append(cols, "frame", "horse_no")
}

// Columns is the header of an exported rank file: the key columns then the
// value columns.
func Columns() []string {
	return append([]string{"race_id", "horse_id"}, ValueColumns()...)
}

// Vector is one runner's features, keyed by race and horse.
type Vector struct {
	RaceID  string
	HorseID string
	Values  []float64
	Label   int // 1 when the runner finished in the first three
}
