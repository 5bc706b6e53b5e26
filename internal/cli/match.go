package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/retracite/internal/extract"
	"github.com/ppiankov/retracite/internal/match"
	"github.com/ppiankov/retracite/internal/model"
)

var (
	matchThreshold int
	matchSegmenter string
	matchJSON      bool
)

// matchCmd represents the match command
var matchCmd = &cobra.Command{
	Use:   "match <nxml> <sentence>",
	Short: "Locate a citation sentence in one NXML document",
	Long: `Match runs the paragraph matcher against a single document and prints
the first paragraph holding a sentence that scores above the threshold.

Example:
  retracite match nxmls/PMC3412345.nxml "Smith et al. reported a 40% reduction"
  retracite match article.nxml "..." --threshold 70 --json`,
	Args: cobra.ExactArgs(2),
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	defaults := model.DefaultConfig()
	matchCmd.Flags().IntVar(&matchThreshold, "threshold", defaults.Match.Threshold, "confidence threshold (0-100, strictly greater wins)")
	matchCmd.Flags().StringVar(&matchSegmenter, "segmenter", defaults.Match.Segmenter, "sentence segmenter: period or terminator")
	matchCmd.Flags().BoolVar(&matchJSON, "json", false, "print the result as JSON")
}

func runMatch(cmd *cobra.Command, args []string) error {
	path, sentence := args[0], args[1]

	segment, err := match.SegmenterByName(matchSegmenter)
	if err != nil {
		return err
	}
	matcher, err := match.NewMatcher(matchThreshold, match.WithSegmenter(segment))
	if err != nil {
		return err
	}

	paragraphs, err := extract.ParagraphsFromFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	result, err := matcher.MatchParagraphs(paragraphs, sentence)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if matchJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	if !result.Found {
		fmt.Fprintf(out, "✗ No match above %d in %d paragraphs (best score %d)\n", matchThreshold, result.Scanned, result.Score)
		return nil
	}
	fmt.Fprintf(out, "✓ Paragraph %d, sentence %d, score %d\n\n", result.Index, result.Sentence, result.Score)
	fmt.Fprintln(out, result.Paragraph)
	return nil
}
