package corpus

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ppiankov/retracite/internal/model"
)

// recordColumns is the canonical header written for record checkpoints
var recordColumns = []string{
	"citing_pmid", "citing_pmcid", "cited_pmid", "sentence", "section",
	"published_year", "retracted_year", "post_retraction", "context", "label",
}

// resolvedColumns extends recordColumns with the resolution outcome
var resolvedColumns = append(append([]string{}, recordColumns...),
	"status", "paragraph", "match_score", "paragraph_index", "error")

func recordFields(r model.CitationRecord) []string {
	post := "0"
	if r.PostRetraction {
		post = "1"
	}
	return []string{
		r.CitingPMID, r.CitingPMCID, r.CitedPMID, r.Sentence, r.Section,
		strconv.Itoa(r.PublishedYear), strconv.Itoa(r.RetractedYear), post, r.Context, string(r.Label),
	}
}

// WriteRecords writes records with the canonical header
func WriteRecords(w io.Writer, records []model.CitationRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(recordColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(recordFields(r)); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteResolved writes resolved citations, one row each
func WriteResolved(w io.Writer, rows []model.ResolvedCitation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(resolvedColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		score, index := "", ""
		if row.HasContext() {
			score = strconv.Itoa(row.Match.Score)
			index = strconv.Itoa(row.Match.Index)
		}
		fields := append(recordFields(row.Record), string(row.Status), row.Match.Paragraph, score, index, row.Error)
		if err := cw.Write(fields); err != nil {
			return fmt.Errorf("write resolved row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFeatures writes the final table in model.FeatureColumns order
func WriteFeatures(w io.Writer, rows []model.FeatureRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(model.FeatureColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		score := ""
		if row.MatchScore != nil {
			score = strconv.Itoa(*row.MatchScore)
		}
		fields := []string{
			string(row.Label),
			strconv.Itoa(row.PublishedYearNominal),
			formatFloat(row.PublishedYearNormalized),
			strconv.Itoa(row.RetractedYearNominal),
			formatFloat(row.RetractedYearNormalized),
			formatFloat(row.YearsBetweenNormalized),
			row.Section,
			row.Paragraph,
			score,
		}
		if err := cw.Write(fields); err != nil {
			return fmt.Errorf("write feature row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteFileAtomic creates parent directories and writes through a temp file
// renamed into place, so an interrupted run never leaves a half-written table.
func WriteFileAtomic(path string, write func(io.Writer) error) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
