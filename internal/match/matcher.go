// Package match locates the paragraph a citation sentence came from.
//
// The policy is greedy: paragraphs are scanned in document order, each split
// into candidate sentences, and the first candidate whose similarity to the
// target is strictly above the threshold returns its whole paragraph. A
// near-duplicate sentence earlier in the document wins over the true one;
// the threshold is the only knob for that trade-off.
package match

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/retracite/internal/extract"
	"github.com/ppiankov/retracite/internal/model"
)

var (
	ErrEmptySentence    = errors.New("empty target sentence")
	ErrInvalidThreshold = errors.New("confidence threshold must be in [0,100]")
	ErrUnknownSegmenter = errors.New("unknown segmenter")

	// Document errors surfaced by Match, re-exported for callers that only
	// import this package
	ErrDocumentNotFound  = extract.ErrNotFound
	ErrMalformedDocument = extract.ErrMalformed
)

// Document exposes the ordered body paragraphs of a source document
type Document interface {
	Paragraphs() ([]string, error)
}

// StaticDocument is a Document whose paragraphs are already extracted
type StaticDocument []string

// Paragraphs returns the paragraphs unchanged
func (d StaticDocument) Paragraphs() ([]string, error) {
	return d, nil
}

// Segmenter splits a paragraph into candidate sentences
type Segmenter func(paragraph string) []string

// Segmenter names accepted by SegmenterByName
const (
	SegmenterPeriod     = "period"
	SegmenterTerminator = "terminator"
)

// SegmenterByName resolves a configured segmenter; empty means period
func SegmenterByName(name string) (Segmenter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", SegmenterPeriod:
		return extract.SplitPeriods, nil
	case SegmenterTerminator:
		return extract.SplitTerminators, nil
	default:
		return nil, fmt.Errorf("%w: %q (supported: %s, %s)", ErrUnknownSegmenter, name, SegmenterPeriod, SegmenterTerminator)
	}
}

// Matcher finds the paragraph of origin for citation sentences
type Matcher struct {
	threshold int
	segment   Segmenter
	score     Scorer
}

// Option customizes a Matcher
type Option func(*Matcher)

// WithSegmenter replaces the default period segmenter
func WithSegmenter(s Segmenter) Option {
	return func(m *Matcher) {
		if s != nil {
			m.segment = s
		}
	}
}

// WithScorer replaces the default Ratio scorer
func WithScorer(s Scorer) Option {
	return func(m *Matcher) {
		if s != nil {
			m.score = s
		}
	}
}

// NewMatcher creates a matcher that accepts candidates scoring above threshold
func NewMatcher(threshold int, opts ...Option) (*Matcher, error) {
	if threshold < 0 || threshold > 100 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidThreshold, threshold)
	}

	m := &Matcher{
		threshold: threshold,
		segment:   extract.SplitPeriods,
		score:     Ratio,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Threshold returns the configured confidence threshold
func (m *Matcher) Threshold() int {
	return m.threshold
}

// Match reads the document's paragraphs and matches sentence against them.
// Document errors are returned wrapped; an exhausted scan is a NoMatch
// result with a nil error.
func (m *Matcher) Match(doc Document, sentence string) (model.MatchResult, error) {
	target, err := normalizeTarget(sentence)
	if err != nil {
		return model.MatchResult{}, err
	}

	paragraphs, err := doc.Paragraphs()
	if err != nil {
		return model.MatchResult{}, fmt.Errorf("read paragraphs: %w", err)
	}

	return m.scan(paragraphs, target), nil
}

// MatchParagraphs matches sentence against already extracted paragraphs
func (m *Matcher) MatchParagraphs(paragraphs []string, sentence string) (model.MatchResult, error) {
	target, err := normalizeTarget(sentence)
	if err != nil {
		return model.MatchResult{}, err
	}
	return m.scan(paragraphs, target), nil
}

// scan applies the greedy first-match policy
func (m *Matcher) scan(paragraphs []string, target string) model.MatchResult {
	best := 0
	for pi, paragraph := range paragraphs {
		for si, candidate := range m.segment(paragraph) {
			score := m.score(target, strings.TrimSpace(candidate))
			if score > m.threshold {
				return model.MatchResult{
					Found:     true,
					Paragraph: paragraph,
					Score:     score,
					Index:     pi,
					Sentence:  si,
					Scanned:   pi + 1,
				}
			}
			if score > best {
				best = score
			}
		}
	}
	return model.NoMatch(best, len(paragraphs))
}

// normalizeTarget strips CSV extraction noise: surrounding whitespace and
// trailing periods, which the period segmenter never leaves on a candidate
func normalizeTarget(sentence string) (string, error) {
	target := strings.TrimSpace(sentence)
	target = strings.TrimSpace(strings.TrimRight(target, "."))
	if target == "" {
		return "", ErrEmptySentence
	}
	return target, nil
}

// Match is the one-shot form of Matcher.Match with the default segmenter and scorer
func Match(doc Document, sentence string, threshold int) (model.MatchResult, error) {
	m, err := NewMatcher(threshold)
	if err != nil {
		return model.MatchResult{}, err
	}
	return m.Match(doc, sentence)
}
