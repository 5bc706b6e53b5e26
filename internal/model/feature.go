package model

// FeatureRow is one row of the emitted training table
type FeatureRow struct {
	Label Label `json:"label"`

	PublishedYearNominal    int     `json:"year_publ_nominal"`
	PublishedYearNormalized float64 `json:"year_publ_min_max_normalized"`
	RetractedYearNominal    int     `json:"year_retracted_nominal"`
	RetractedYearNormalized float64 `json:"year_retracted_min_max_normalized"`
	YearsBetweenNormalized  float64 `json:"years_btwn_cit_and_retraction_min_max_normalized"`
	YearsBetweenNominal     int     `json:"-"` // Kept for normalization, not emitted

	Section   string `json:"citation_context_IMRaD_section"`
	Paragraph string `json:"citation_paragraph_parsed"`

	// MatchScore is the matcher's similarity for unknowing rows; nil for
	// knowing rows whose context comes from the corpus.
	MatchScore *int `json:"match_score,omitempty"`
}

// FeatureColumns is the emitted column order
var FeatureColumns = []string{
	"label",
	"year_publ_nominal",
	"year_publ_min_max_normalized",
	"year_retracted_nominal",
	"year_retracted_min_max_normalized",
	"years_btwn_cit_and_retraction_min_max_normalized",
	"citation_context_IMRaD_section",
	"citation_paragraph_parsed",
	"match_score",
}

// DatasetRow is a labeled record with its paragraph context, before
// normalization
type DatasetRow struct {
	Record     CitationRecord `json:"record"`
	Paragraph  string         `json:"paragraph"`
	MatchScore *int           `json:"match_score,omitempty"`
}

// UnknowingRow labels a resolved citation; the paragraph is the matched one
func UnknowingRow(r ResolvedCitation) DatasetRow {
	rec := r.Record
	rec.Label = LabelUnknowing
	row := DatasetRow{Record: rec, Paragraph: r.Match.Paragraph}
	if r.HasContext() {
		score := r.Match.Score
		row.MatchScore = &score
	}
	return row
}

// KnowingRow labels a knowing record; its context is authoritative
func KnowingRow(r CitationRecord) DatasetRow {
	r.Label = LabelKnowing
	return DatasetRow{Record: r, Paragraph: r.Context}
}
