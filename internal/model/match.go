package model

// MatchResult is the outcome of locating a citation sentence in a document.
// Found == false is the NO_MATCH outcome; Paragraph is empty then.
type MatchResult struct {
	Found     bool   `json:"found"`
	Paragraph string `json:"paragraph,omitempty"`
	Score     int    `json:"score"`              // Similarity (0-100) of the winning candidate, or best seen when not found
	Index     int    `json:"paragraph_index"`    // Paragraph position in document order, -1 when not found
	Sentence  int    `json:"sentence_index"`     // Candidate position within the paragraph, -1 when not found
	Scanned   int    `json:"paragraphs_scanned"` // Paragraphs examined before returning
}

// NoMatch returns the absence-of-match result
func NoMatch(bestScore, scanned int) MatchResult {
	return MatchResult{
		Found:    false,
		Score:    bestScore,
		Index:    -1,
		Sentence: -1,
		Scanned:  scanned,
	}
}

// ResolveStatus classifies what happened when resolving a row's paragraph
type ResolveStatus string

const (
	StatusMatched    ResolveStatus = "matched"
	StatusNoMatch    ResolveStatus = "no_match"
	StatusNotFound   ResolveStatus = "not_found"   // Document missing from the store
	StatusParseError ResolveStatus = "parse_error" // Document present but malformed
	StatusInvalid    ResolveStatus = "invalid"     // Row unusable (e.g. empty sentence)
)

// ResolvedCitation pairs a record with its paragraph resolution
type ResolvedCitation struct {
	Record CitationRecord `json:"record"`
	Status ResolveStatus  `json:"status"`
	Match  MatchResult    `json:"match"`
	Error  string         `json:"error,omitempty"`
}

// HasContext reports whether the row carries usable paragraph context
func (r ResolvedCitation) HasContext() bool {
	return r.Status == StatusMatched && r.Match.Paragraph != ""
}
