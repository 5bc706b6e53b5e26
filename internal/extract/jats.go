package extract

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/net/html/charset"
)

var (
	// ErrNotFound means the document file does not exist
	ErrNotFound = errors.New("document not found")
	// ErrMalformed means the document exists but cannot be parsed as JATS XML
	ErrMalformed = errors.New("malformed document")
	// ErrNoBody means the XML parsed but has no <body>, which is what PMC
	// serves for articles whose publisher forbids full-text XML download
	ErrNoBody = fmt.Errorf("%w: no body element", ErrMalformed)
)

// element kinds tracked on the open-element stack
const (
	kindOther = iota
	kindBody
	kindParagraph
)

// ParagraphsFromFile extracts body paragraphs from an NXML file on disk
func ParagraphsFromFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	paragraphs, err := Paragraphs(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return paragraphs, nil
}

// Paragraphs returns the text of every <p> under a <body>, in document order
// (start-tag order, so a nested paragraph follows the one containing it).
// Text includes all descendant text with whitespace runs collapsed.
func Paragraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel
	dec.Entity = xml.HTMLEntity

	var (
		stack     []int
		open      []*strings.Builder
		collected []*strings.Builder
		bodyDepth int
		sawBody   bool
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			kind := kindOther
			switch {
			case t.Name.Local == "body":
				kind = kindBody
				bodyDepth++
				sawBody = true
			case t.Name.Local == "p" && bodyDepth > 0:
				kind = kindParagraph
				b := &strings.Builder{}
				open = append(open, b)
				collected = append(collected, b)
			}
			stack = append(stack, kind)

		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: unbalanced end element %s", ErrMalformed, t.Name.Local)
			}
			kind := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			switch kind {
			case kindBody:
				bodyDepth--
			case kindParagraph:
				open = open[:len(open)-1]
			}

		case xml.CharData:
			for _, b := range open {
				b.Write(t)
			}
		}
	}

	if !sawBody {
		return nil, ErrNoBody
	}

	paragraphs := make([]string, len(collected))
	for i, b := range collected {
		paragraphs[i] = collapseSpace(b.String())
	}
	return paragraphs, nil
}

// collapseSpace trims s and replaces internal whitespace runs with one space
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
