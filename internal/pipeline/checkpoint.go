package pipeline

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/ppiankov/retracite/internal/corpus"
	"github.com/ppiankov/retracite/internal/model"
)

// Checkpoint file names
const (
	checkpointSampled           = "sampled.csv"
	checkpointResolved          = "resolved.csv"
	checkpointBalancedUnknowing = "balanced_unknowing.csv"
	checkpointBalancedKnowing   = "balanced_knowing.csv"
)

// Checkpoints persists intermediate tables so a run can be inspected or
// resumed. An empty directory disables writing.
type Checkpoints struct {
	dir string
}

// NewCheckpoints stores checkpoints under dir
func NewCheckpoints(dir string) *Checkpoints {
	return &Checkpoints{dir: dir}
}

// Enabled reports whether checkpoints are written
func (c *Checkpoints) Enabled() bool {
	return c.dir != ""
}

// Path returns the location of a checkpoint file
func (c *Checkpoints) Path(name string) string {
	return filepath.Join(c.dir, name)
}

// SampledPath returns the sampled checkpoint location
func (c *Checkpoints) SampledPath() string {
	return c.Path(checkpointSampled)
}

// WriteSampled writes the sampled records. It returns the written path, or
// "" when checkpoints are disabled.
func (c *Checkpoints) WriteSampled(records []model.CitationRecord) (string, error) {
	return c.write(checkpointSampled, func(w io.Writer) error {
		return corpus.WriteRecords(w, records)
	})
}

// ReadSampled reads the sampled checkpoint
func (c *Checkpoints) ReadSampled() ([]model.CitationRecord, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("%w: checkpoints are disabled", ErrBadResumePoint)
	}
	table, err := corpus.ReadFile(c.Path(checkpointSampled), corpus.CanonicalColumns())
	if err != nil {
		return nil, err
	}
	if len(table.Skipped) > 0 {
		first := table.Skipped[0]
		return nil, fmt.Errorf("%s: line %d: %s", c.Path(checkpointSampled), first.Line, first.Reason)
	}
	return table.Records, nil
}

// WriteResolved writes the resolved sample
func (c *Checkpoints) WriteResolved(rows []model.ResolvedCitation) (string, error) {
	return c.write(checkpointResolved, func(w io.Writer) error {
		return corpus.WriteResolved(w, rows)
	})
}

// ReadResolved reads the resolved checkpoint
func (c *Checkpoints) ReadResolved() ([]model.ResolvedCitation, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("%w: checkpoints are disabled", ErrBadResumePoint)
	}
	return corpus.ReadResolvedFile(c.Path(checkpointResolved))
}

// WriteBalanced writes both balanced classes
func (c *Checkpoints) WriteBalanced(unknowing []model.ResolvedCitation, knowing []model.CitationRecord) ([]string, error) {
	var paths []string

	path, err := c.write(checkpointBalancedUnknowing, func(w io.Writer) error {
		return corpus.WriteResolved(w, unknowing)
	})
	if err != nil {
		return nil, err
	}
	if path != "" {
		paths = append(paths, path)
	}

	path, err = c.write(checkpointBalancedKnowing, func(w io.Writer) error {
		return corpus.WriteRecords(w, knowing)
	})
	if err != nil {
		return nil, err
	}
	if path != "" {
		paths = append(paths, path)
	}

	return paths, nil
}

func (c *Checkpoints) write(name string, fn func(io.Writer) error) (string, error) {
	if !c.Enabled() {
		return "", nil
	}
	path := c.Path(name)
	if err := corpus.WriteFileAtomic(path, fn); err != nil {
		return "", fmt.Errorf("write checkpoint %s: %w", name, err)
	}
	return path, nil
}
