package semantic

// Result is one retrieved document with its distance from the query.
// Distance is cosine distance: 0 is identical, smaller is closer.
type Result struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Distance float32           `json:"distance"`
	Metadata map[string]string `json:"metadata,omitempty"`
}
