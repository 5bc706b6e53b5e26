package model

import (
	"time"
	"unicode/utf8"
)

// MaxExamples caps the example rows kept per resolution status
const MaxExamples = 5

// RunReport summarizes one dataset build
type RunReport struct {
	RunID       string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Size        int       `json:"size"`      // Requested rows per class
	Seed        int64     `json:"seed"`      // Seed every random stream was derived from
	Threshold   int       `json:"threshold"` // Matcher confidence threshold
	ResumedFrom string    `json:"resumed_from,omitempty"`

	Stages     []StageCount                     `json:"stages"`     // Rows after each stage, in run order
	Resolution map[ResolveStatus]*StatusSummary `json:"resolution"` // Outcome of every resolved row, refills included
	Skipped    map[string]int                   `json:"skipped_input_rows,omitempty"`
	Cache      CacheStats                       `json:"cache"`

	ClassSize   int      `json:"class_size"` // Rows per class after balancing
	Output      string   `json:"output,omitempty"`
	Checkpoints []string `json:"checkpoints,omitempty"`
	Error       string   `json:"error,omitempty"` // Set when the build failed
}

// StageCount is the number of rows a stage produced
type StageCount struct {
	Stage string `json:"stage"`
	Rows  int    `json:"rows"`
}

// StatusSummary counts rows with one resolution status
type StatusSummary struct {
	Count    int          `json:"count"`
	Examples []RowExample `json:"examples,omitempty"`
}

// RowExample identifies a row for the operator
type RowExample struct {
	PMCID    string `json:"pmcid"`
	Sentence string `json:"sentence"`
	Error    string `json:"error,omitempty"`
}

// CacheStats reports resolution memo usage
type CacheStats struct {
	Enabled bool  `json:"enabled"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// NewRunReport creates an empty report
func NewRunReport(runID string, startedAt time.Time) *RunReport {
	return &RunReport{
		RunID:      runID,
		StartedAt:  startedAt,
		Resolution: make(map[ResolveStatus]*StatusSummary),
		Skipped:    make(map[string]int),
	}
}

// AddStage records the row count a stage produced
func (r *RunReport) AddStage(stage string, rows int) {
	r.Stages = append(r.Stages, StageCount{Stage: stage, Rows: rows})
}

// Tally counts one resolved row, keeping the first MaxExamples of each
// non-matched status as examples
func (r *RunReport) Tally(rc ResolvedCitation) {
	summary, ok := r.Resolution[rc.Status]
	if !ok {
		summary = &StatusSummary{}
		r.Resolution[rc.Status] = summary
	}
	summary.Count++

	if rc.Status == StatusMatched || len(summary.Examples) >= MaxExamples {
		return
	}
	summary.Examples = append(summary.Examples, RowExample{
		PMCID:    rc.Record.CitingPMCID,
		Sentence: truncate(rc.Record.Sentence, 120),
		Error:    rc.Error,
	})
}

// Count returns how many rows ended with status
func (r *RunReport) Count(status ResolveStatus) int {
	if s, ok := r.Resolution[status]; ok {
		return s.Count
	}
	return 0
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
