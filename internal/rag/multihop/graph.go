package multihop

import (
	"sort"

	"github.com/faqbridge/faqbridge-backend/internal/domain/kb"
)

// maxNeighbors caps the fan-out per node so a large shared category
// does not flood the traversal.
const maxNeighbors = 4

// relationGraph is an adjacency map over document ids. Two documents
// are related when they share a category, an intent, or a clarifying
// topic tag.
type relationGraph struct {
	adjacency map[int64][]int64
}

func buildRelationGraph(docs []*kb.Document) *relationGraph {
	byCategory := map[string][]int64{}
	byIntent := map[string][]int64{}
	byTopic := map[string][]int64{}

	for _, doc := range docs {
		if doc == nil {
			continue
		}
		if category := doc.Category(); category != "" {
			byCategory[category] = append(byCategory[category], doc.ID)
		}
		if intent := doc.Intent(); intent != "" {
			byIntent[intent] = append(byIntent[intent], doc.ID)
		}
		for _, topic := range clarifyingTopics(doc) {
			byTopic[topic] = append(byTopic[topic], doc.ID)
		}
	}

	g := &relationGraph{adjacency: map[int64][]int64{}}
	for _, group := range []map[string][]int64{byCategory, byIntent, byTopic} {
		for _, ids := range group {
			g.connectAll(ids)
		}
	}
	for id := range g.adjacency {
		sort.Slice(g.adjacency[id], func(i, j int) bool {
			return g.adjacency[id][i] < g.adjacency[id][j]
		})
	}
	return g
}

func (g *relationGraph) connectAll(ids []int64) {
	for _, a := range ids {
		for _, b := range ids {
			if a == b || g.connected(a, b) {
				continue
			}
			g.adjacency[a] = append(g.adjacency[a], b)
		}
	}
}

func (g *relationGraph) connected(a, b int64) bool {
	for _, id := range g.adjacency[a] {
		if id == b {
			return true
		}
	}
	return false
}

// walk runs a breadth-first traversal from start, hops levels deep,
// and returns related ids in visit order, start excluded.
func (g *relationGraph) walk(start int64, hops int) []int64 {
	if hops <= 1 {
		return nil
	}
	visited := map[int64]bool{start: true}
	frontier := []int64{start}
	var out []int64

	for depth := 1; depth < hops; depth++ {
		var next []int64
		for _, id := range frontier {
			taken := 0
			for _, neighbor := range g.adjacency[id] {
				if visited[neighbor] {
					continue
				}
				if taken >= maxNeighbors {
					break
				}
				visited[neighbor] = true
				out = append(out, neighbor)
				next = append(next, neighbor)
				taken++
			}
		}
		if len(next) == 0 {
			break
		}
		frontier = next
	}
	return out
}

func clarifyingTopics(doc *kb.Document) []string {
	raw, ok := doc.Meta()["clarifying_topics"]
	if !ok {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
