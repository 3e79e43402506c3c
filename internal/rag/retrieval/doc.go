// Package retrieval implements hybrid document retrieval: a dense
// vector leg and a lexical full-text leg fused with reciprocal rank
// fusion, with an optional cross-encoder rerank on top.
package retrieval

// Doc is a retrieval hit. Score is leg-native (cosine similarity for
// the dense leg, ts_rank for the lexical leg) until fusion replaces it
// with an RRF score.
type Doc struct {
	ID       string
	Content  string
	Metadata map[string]any
	Score    float64
}

// Category reads the category tag from the hit metadata.
func (d Doc) Category() string {
	if d.Metadata == nil {
		return ""
	}
	if v, ok := d.Metadata["category"].(string); ok {
		return v
	}
	return ""
}
