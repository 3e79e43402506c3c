package retrieval

import (
	"sort"
	"strings"
)

const rrfK = 60

// Fused is the result of reciprocal rank fusion. Docs and Scores run
// in parallel, scores non-increasing. Confidence is the top fused
// score, zero when nothing matched.
type Fused struct {
	Docs       []Doc
	Scores     []float64
	Confidence float64
}

// Fuse merges ranked lists with reciprocal rank fusion: each doc earns
// 1/(k+rank) per list it appears in, rank counted from 1. Duplicate
// content contributes its rank credit to the first doc that carried it.
func Fuse(lists [][]Doc, topK int) Fused {
	if topK <= 0 {
		topK = 5
	}

	type fusedDoc struct {
		doc   Doc
		score float64
		order int
	}
	byKey := map[string]*fusedDoc{}
	next := 0
	for _, list := range lists {
		for rank, doc := range list {
			key := fuseKey(doc)
			f, ok := byKey[key]
			if !ok {
				f = &fusedDoc{doc: doc, order: next}
				next++
				byKey[key] = f
			}
			f.score += 1.0 / float64(rrfK+rank+1)
		}
	}
	if len(byKey) == 0 {
		return Fused{}
	}

	all := make([]*fusedDoc, 0, len(byKey))
	for _, f := range byKey {
		all = append(all, f)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].score == all[j].score {
			return all[i].order < all[j].order
		}
		return all[i].score > all[j].score
	})
	if len(all) > topK {
		all = all[:topK]
	}

	out := Fused{
		Docs:   make([]Doc, 0, len(all)),
		Scores: make([]float64, 0, len(all)),
	}
	for _, f := range all {
		doc := f.doc
		doc.Score = f.score
		out.Docs = append(out.Docs, doc)
		out.Scores = append(out.Scores, f.score)
	}
	out.Confidence = out.Scores[0]
	return out
}

// fuseKey dedupes by content so the same answer surfacing under two
// ids, one per leg, is counted once.
func fuseKey(doc Doc) string {
	content := strings.TrimSpace(doc.Content)
	if content != "" {
		return content
	}
	return "id:" + doc.ID
}
