package extract

import "strings"

// SplitPeriods splits text on every literal '.' and drops the final segment,
// which is the (usually empty) tail after the last period. Text without a
// period yields no sentences. Abbreviations and decimals mis-split; that is
// accepted.
func SplitPeriods(text string) []string {
	parts := strings.Split(text, ".")
	return parts[:len(parts)-1]
}

// SplitTerminators splits text into sentences at '.', '!' or '?' followed by
// whitespace, keeping the terminator and the trailing fragment. It avoids the
// worst abbreviation splits ("e.g.") of SplitPeriods at the cost of diverging
// from how the original dataset was built.
func SplitTerminators(text string) []string {
	text = strings.ReplaceAll(text, "\n", " ")

	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)

		if r == '.' || r == '!' || r == '?' {
			if i+1 < len(text) && (text[i+1] == ' ' || text[i+1] == '\t') {
				if sentence := strings.TrimSpace(current.String()); sentence != "" {
					sentences = append(sentences, sentence)
				}
				current.Reset()
			}
		}
	}

	if sentence := strings.TrimSpace(current.String()); sentence != "" {
		sentences = append(sentences, sentence)
	}

	return sentences
}
