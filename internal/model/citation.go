package model

// Label is the class a post-retraction citation belongs to
type Label string

const (
	LabelKnowing   Label = "knowing"   // Citation acknowledges the retraction
	LabelUnknowing Label = "unknowing" // Citation does not (presumed)
)

// Valid reports whether l is one of the two dataset classes
func (l Label) Valid() bool {
	return l == LabelKnowing || l == LabelUnknowing
}

// CitationRecord is one row of a source corpus, in canonical form
type CitationRecord struct {
	CitingPMID     string `json:"citing_pmid,omitempty"` // PubMed ID of the citing document
	CitingPMCID    string `json:"citing_pmcid"`          // PMC ID, keys the document store
	CitedPMID      string `json:"cited_pmid,omitempty"`  // PubMed ID of the retracted document
	Sentence       string `json:"sentence"`              // Citation sentence (ground truth span)
	Section        string `json:"section,omitempty"`     // IMRaD section label
	PublishedYear  int    `json:"published_year"`        // Year the citing document was published
	RetractedYear  int    `json:"retracted_year"`        // Year the cited document was retracted
	PostRetraction bool   `json:"post_retraction"`       // Citation made after the retraction notice
	Context        string `json:"context,omitempty"`     // Authoritative longer context (knowing corpus only)
	Label          Label  `json:"label,omitempty"`
}

// YearsBetween returns published minus retracted year.
// Non-positive values are kept as signal.
func (r CitationRecord) YearsBetween() int {
	return r.PublishedYear - r.RetractedYear
}
