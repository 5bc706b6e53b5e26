package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/retracite/internal/model"
)

// Stage names one step of a dataset build
type Stage string

const (
	StageLoadUnknowing Stage = "load_unknowing"
	StageFilter        Stage = "filter"
	StageSample        Stage = "sample"
	StageResolve       Stage = "resolve"
	StageLoadKnowing   Stage = "load_knowing"
	StageDropMissing   Stage = "drop_missing"
	StageRefill        Stage = "refill"
	StageBalance       Stage = "balance"
	StageMergeShuffle  Stage = "merge_shuffle"
	StageNormalize     Stage = "normalize"
	StageEmit          Stage = "emit"
)

var (
	// ErrInsufficientRows means a class is smaller than dataset.min_class_size
	// after balancing
	ErrInsufficientRows = errors.New("insufficient rows")
	// ErrBadResumePoint means --resume-from names no resumable checkpoint
	ErrBadResumePoint = errors.New("cannot resume from this stage")
)

// Resume points accepted by ParseResumePoint
const (
	ResumeSampled  = "sampled"
	ResumeResolved = "resolved"
)

// ParseResumePoint validates a --resume-from value; empty means a fresh run
func ParseResumePoint(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case ResumeSampled, string(StageSample):
		return ResumeSampled, nil
	case ResumeResolved, string(StageResolve):
		return ResumeResolved, nil
	default:
		return "", fmt.Errorf("%w: %q (use %s or %s)", ErrBadResumePoint, s, ResumeSampled, ResumeResolved)
	}
}

// StageError is a fatal build failure. Counts holds the rows produced by
// every stage that completed before Stage failed.
type StageError struct {
	Stage  Stage
	Counts []model.StageCount
	Err    error
}

func (e *StageError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "stage %s: %v", e.Stage, e.Err)
	if len(e.Counts) > 0 {
		parts := make([]string, len(e.Counts))
		for i, c := range e.Counts {
			parts[i] = fmt.Sprintf("%s=%d", c.Stage, c.Rows)
		}
		fmt.Fprintf(&b, " (rows: %s)", strings.Join(parts, ", "))
	}
	return b.String()
}

func (e *StageError) Unwrap() error {
	return e.Err
}
