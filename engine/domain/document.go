// Package domain defines the Document model shared by both ingestion paths
// and the validation and error taxonomy for the knowledge base.
package domain

import "fmt"

// Document is the unit of storage in the vector collection. Text is the body
// indexed for similarity search; Metadata carries flat string provenance
// fields from which the document is fully reconstructible.
type Document struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// Validate checks a Document before it is submitted to the store.
func Validate(doc Document) error {
	if doc.ID == "" {
		return fmt.Errorf("validate: id is empty")
	}
	if doc.Text == "" {
		return fmt.Errorf("validate: text is empty for %s", doc.ID)
	}
	return nil
}
