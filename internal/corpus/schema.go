// Package corpus reads and writes the delimited tables the pipeline consumes
// and produces. Each source corpus names its columns differently; a
// model.ColumnMapping translates native names into canonical record fields so
// nothing downstream depends on a source's header.
package corpus

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/retracite/internal/model"
)

var (
	// ErrMissingColumn means a mapped column is absent from the header
	ErrMissingColumn = errors.New("missing column")
	// ErrEmptyTable means the input has no header row
	ErrEmptyTable = errors.New("empty table")
)

const utf8BOM = "\ufeff"

// CanonicalColumns maps every field to its canonical checkpoint column name
func CanonicalColumns() model.ColumnMapping {
	return model.ColumnMapping{
		CitingPMID:     "citing_pmid",
		CitingPMCID:    "citing_pmcid",
		CitedPMID:      "cited_pmid",
		Sentence:       "sentence",
		Section:        "section",
		PublishedYear:  "published_year",
		RetractedYear:  "retracted_year",
		PostRetraction: "post_retraction",
		Context:        "context",
	}
}

// fieldIndex holds header positions per canonical field; -1 when unmapped
type fieldIndex struct {
	citingPMID, citingPMCID, citedPMID     int
	sentence, section, context             int
	publishedYear, retractedYear, postFlag int
}

// required lists the canonical fields a mapping must resolve
var required = []string{"citing_pmcid", "sentence", "published_year", "retracted_year"}

// resolve locates every mapped column in header. A mapped name absent from
// the header is an error; an unmapped field gets -1.
func resolve(header []string, m model.ColumnMapping) (fieldIndex, error) {
	positions := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, utf8BOM))
		if _, dup := positions[name]; !dup {
			positions[name] = i
		}
	}

	var missing []string
	lookup := func(field, column string) int {
		if column == "" {
			for _, r := range required {
				if r == field {
					missing = append(missing, field+" (unmapped)")
				}
			}
			return -1
		}
		idx, ok := positions[column]
		if !ok {
			missing = append(missing, column)
			return -1
		}
		return idx
	}

	idx := fieldIndex{
		citingPMID:    lookup("citing_pmid", m.CitingPMID),
		citingPMCID:   lookup("citing_pmcid", m.CitingPMCID),
		citedPMID:     lookup("cited_pmid", m.CitedPMID),
		sentence:      lookup("sentence", m.Sentence),
		section:       lookup("section", m.Section),
		context:       lookup("context", m.Context),
		publishedYear: lookup("published_year", m.PublishedYear),
		retractedYear: lookup("retracted_year", m.RetractedYear),
		postFlag:      lookup("post_retraction", m.PostRetraction),
	}

	if len(missing) > 0 {
		return idx, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return idx, nil
}

// NormalizePMCID returns id with a single upper-case PMC prefix.
// Empty input stays empty.
func NormalizePMCID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	if len(id) >= 3 && strings.EqualFold(id[:3], "PMC") {
		id = id[3:]
	}
	// pandas writes integer-looking ids as floats when a column has NaNs
	id = strings.TrimSuffix(id, ".0")
	return "PMC" + id
}
