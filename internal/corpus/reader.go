package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/ppiankov/retracite/internal/model"
)

// ErrBadRow is wrapped by every per-row parse problem
var ErrBadRow = errors.New("bad row")

// RowIssue records a row that was skipped while reading
type RowIssue struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// Table is the result of reading a corpus
type Table struct {
	Records []model.CitationRecord
	Skipped []RowIssue
}

// ReadFile reads a corpus from path
func ReadFile(path string, mapping model.ColumnMapping) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer func() { _ = f.Close() }()

	table, err := Read(f, mapping)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// Read parses a header-led CSV into canonical records.
// Rows whose identifiers, sentence or years cannot be parsed are skipped and
// reported in Table.Skipped; structural CSV errors abort the read.
func Read(r io.Reader, mapping model.ColumnMapping) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyTable
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx, err := resolve(header, mapping)
	if err != nil {
		return nil, err
	}

	table := &Table{}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		line, _ := reader.FieldPos(0)

		record, err := parseRow(row, idx)
		if err != nil {
			table.Skipped = append(table.Skipped, RowIssue{Line: line, Reason: err.Error()})
			continue
		}
		table.Records = append(table.Records, record)
	}

	return table, nil
}

func parseRow(row []string, idx fieldIndex) (model.CitationRecord, error) {
	get := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	record := model.CitationRecord{
		CitingPMID:  trimFloatSuffix(get(idx.citingPMID)),
		CitingPMCID: NormalizePMCID(get(idx.citingPMCID)),
		CitedPMID:   trimFloatSuffix(get(idx.citedPMID)),
		Section:     get(idx.section),
		Context:     get(idx.context),
	}
	// Sentences keep inner whitespace; the matcher trims what it needs
	if idx.sentence >= 0 && idx.sentence < len(row) {
		record.Sentence = row[idx.sentence]
	}

	if record.CitingPMCID == "" {
		return record, fmt.Errorf("%w: empty citing PMCID", ErrBadRow)
	}
	if strings.TrimSpace(record.Sentence) == "" {
		return record, fmt.Errorf("%w: empty citation sentence", ErrBadRow)
	}

	var err error
	if record.PublishedYear, err = ParseYear(get(idx.publishedYear)); err != nil {
		return record, fmt.Errorf("%w: published year: %v", ErrBadRow, err)
	}
	if record.RetractedYear, err = ParseYear(get(idx.retractedYear)); err != nil {
		return record, fmt.Errorf("%w: retracted year: %v", ErrBadRow, err)
	}
	if idx.postFlag >= 0 {
		record.PostRetraction = ParseFlag(get(idx.postFlag))
	}

	return record, nil
}

// ParseYear accepts integer years and the float form pandas writes ("2010.0")
func ParseYear(s string) (int, error) {
	if s == "" {
		return 0, errors.New("empty")
	}
	if year, err := strconv.Atoi(s); err == nil {
		return year, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || f != math.Trunc(f) {
		return 0, fmt.Errorf("not a year: %q", s)
	}
	return int(f), nil
}

// ParseFlag reads 1/0, true/false and their float spellings
func ParseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "1.0", "true", "t", "yes", "y":
		return true
	default:
		return false
	}
}

func trimFloatSuffix(id string) string {
	return strings.TrimSuffix(id, ".0")
}

// ReadResolvedFile reads a resolved checkpoint written by WriteResolved
func ReadResolvedFile(path string) ([]model.ResolvedCitation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyTable)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", path, err)
	}

	idx, err := resolve(header, CanonicalColumns())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	positions := make(map[string]int, len(header))
	for i, name := range header {
		positions[name] = i
	}
	for _, col := range []string{"status", "paragraph", "match_score", "paragraph_index", "error"} {
		if _, ok := positions[col]; !ok {
			return nil, fmt.Errorf("%s: %w: %s", path, ErrMissingColumn, col)
		}
	}

	var rows []model.ResolvedCitation
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: read row: %w", path, err)
		}
		line, _ := reader.FieldPos(0)

		record, err := parseRow(row, idx)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}

		cell := func(name string) string {
			if i := positions[name]; i < len(row) {
				return row[i]
			}
			return ""
		}

		resolved := model.ResolvedCitation{
			Record: record,
			Status: model.ResolveStatus(cell("status")),
			Match:  model.NoMatch(0, 0),
			Error:  cell("error"),
		}
		if paragraph := cell("paragraph"); paragraph != "" {
			score, _ := strconv.Atoi(cell("match_score"))
			index, _ := strconv.Atoi(cell("paragraph_index"))
			resolved.Match = model.MatchResult{
				Found:     true,
				Paragraph: paragraph,
				Score:     score,
				Index:     index,
				Sentence:  -1,
				Scanned:   index + 1,
			}
		}
		rows = append(rows, resolved)
	}

	return rows, nil
}
