// Package features turns labeled dataset rows into the emitted feature table
package features

import (
	"gonum.org/v1/gonum/floats"

	"github.com/ppiankov/retracite/internal/model"
)

// MinMax scales values linearly onto [0,1]: the minimum maps to exactly 0 and
// the maximum to exactly 1. A constant column (including a single value) has
// no range and maps to all zeros.
func MinMax(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}

	lo, hi := floats.Min(values), floats.Max(values)
	span := hi - lo
	if span == 0 {
		return out
	}

	copy(out, values)
	floats.AddConst(-lo, out)
	for i := range out {
		// Divide rather than multiply by 1/span so the maximum lands on 1.0
		out[i] /= span
	}
	return out
}

// Build computes the feature table for rows, normalizing each year column
// over the whole merged table. Row order is preserved.
func Build(rows []model.DatasetRow) []model.FeatureRow {
	published := make([]float64, len(rows))
	retracted := make([]float64, len(rows))
	between := make([]float64, len(rows))
	for i, row := range rows {
		published[i] = float64(row.Record.PublishedYear)
		retracted[i] = float64(row.Record.RetractedYear)
		between[i] = float64(row.Record.YearsBetween())
	}

	publishedNorm := MinMax(published)
	retractedNorm := MinMax(retracted)
	betweenNorm := MinMax(between)

	out := make([]model.FeatureRow, len(rows))
	for i, row := range rows {
		out[i] = model.FeatureRow{
			Label:                   row.Record.Label,
			PublishedYearNominal:    row.Record.PublishedYear,
			PublishedYearNormalized: publishedNorm[i],
			RetractedYearNominal:    row.Record.RetractedYear,
			RetractedYearNormalized: retractedNorm[i],
			YearsBetweenNominal:     row.Record.YearsBetween(),
			YearsBetweenNormalized:  betweenNorm[i],
			Section:                 row.Record.Section,
			Paragraph:               row.Paragraph,
			MatchScore:              row.MatchScore,
		}
	}
	return out
}
