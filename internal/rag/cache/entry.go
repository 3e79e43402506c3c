package cache

import "time"

// Entry is one exact-tier cache record, serialized as JSON under
// faq_cache:<normalized>.
type Entry struct {
	QueryNormalized string    `json:"query_normalized"`
	QueryOriginal   string    `json:"query_original"`
	Answer          string    `json:"answer"`
	DocIDs          []string  `json:"doc_ids"`
	Confidence      float64   `json:"confidence"`
	Timestamp       time.Time `json:"timestamp"`
	HitCount        int       `json:"hit_count"`
	UserRating      *int      `json:"user_rating,omitempty"`
}
