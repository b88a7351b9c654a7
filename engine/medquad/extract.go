// Package medquad ingests the MedQuAD dataset: a directory tree of XML files
// holding question/answer pairs about medical conditions.
package medquad

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Secantwave/Health-Advisor/engine/domain"
)

// QAPair is one extracted question/answer pair.
type QAPair struct {
	Question string
	Answer   string
}

// ExtractQA parses XML content and returns every QAPair element whose
// Question and Answer children are both present with non-empty trimmed text.
// Pairs missing either field are dropped silently. Unparseable XML returns
// domain.ErrMalformedInput.
func ExtractQA(content []byte) ([]QAPair, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))
	var pairs []QAPair
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedInput, err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "QAPair" {
			continue
		}
		var pair struct {
			Question string `xml:"Question"`
			Answer   string `xml:"Answer"`
		}
		if err := dec.DecodeElement(&pair, &se); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedInput, err)
		}
		q := strings.TrimSpace(pair.Question)
		a := strings.TrimSpace(pair.Answer)
		if q == "" || a == "" {
			continue
		}
		pairs = append(pairs, QAPair{Question: q, Answer: a})
	}
	return pairs, nil
}

// BuildDocuments assigns stable ids to extracted pairs from one file. The
// ordinal is the 1-based position among extracted pairs, so re-running over
// unchanged sources reproduces identical ids.
func BuildDocuments(sourceFile string, pairs []QAPair) []domain.Document {
	docs := make([]domain.Document, len(pairs))
	for i, qa := range pairs {
		docs[i] = domain.Document{
			ID:   fmt.Sprintf("%s_qa_%d", sourceFile, i+1),
			Text: fmt.Sprintf("Question: %s\nAnswer: %s", qa.Question, qa.Answer),
			Metadata: map[string]string{
				"question":    qa.Question,
				"answer":      qa.Answer,
				"source_file": sourceFile,
			},
		}
	}
	return docs
}
