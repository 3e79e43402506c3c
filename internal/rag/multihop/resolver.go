package multihop

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/faqbridge/faqbridge-backend/internal/data/repos/documents"
	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
	"github.com/faqbridge/faqbridge-backend/internal/rag/retrieval"
)

const defaultTokenBudget = 5000

// Result is the merged context for generation. DocIDs covers both the
// retrieved documents and any related ones pulled in by the traversal.
type Result struct {
	Context    string
	DocIDs     []string
	Complexity Complexity
	Hops       int
	Truncated  bool
}

// Resolver merges retrieved documents, and for compound questions
// their graph neighbors, into one budgeted context string. The
// relation graph is built from document metadata on first use and
// reused until Invalidate.
type Resolver struct {
	log  *logger.Logger
	docs documents.DocumentRepo

	tokenBudget int

	mu    sync.Mutex
	graph *relationGraph
}

func NewResolver(log *logger.Logger, docs documents.DocumentRepo, tokenBudget int) *Resolver {
	if tokenBudget <= 0 {
		tokenBudget = defaultTokenBudget
	}
	return &Resolver{
		log:         log.With("component", "MultiHopResolver"),
		docs:        docs,
		tokenBudget: tokenBudget,
	}
}

// Invalidate drops the cached relation graph. Call after document
// upserts.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.graph = nil
	r.mu.Unlock()
}

// Resolve builds the generation context. Traversal failures degrade to
// the retrieved documents alone.
func (r *Resolver) Resolve(ctx context.Context, question string, docs []retrieval.Doc) Result {
	complexity := ClassifyComplexity(question)
	out := Result{Complexity: complexity, Hops: complexity.Hops()}
	if len(docs) == 0 {
		return out
	}

	sections := make([]string, 0, len(docs))
	ids := make([]string, 0, len(docs))
	seen := map[string]bool{}
	for _, doc := range docs {
		sections = append(sections, doc.Content)
		ids = append(ids, doc.ID)
		seen[doc.ID] = true
	}

	if complexity != ComplexitySimple {
		for _, related := range r.relatedDocs(ctx, docs[0].ID, out.Hops) {
			id := strconv.FormatInt(related.ID, 10)
			if seen[id] {
				continue
			}
			seen[id] = true
			sections = append(sections, related.Content)
			ids = append(ids, id)
		}
	}

	out.Context, out.Truncated = mergeWithBudget(sections, r.tokenBudget)
	out.DocIDs = ids
	return out
}

func (r *Resolver) relatedDocs(ctx context.Context, topDocID string, hops int) []*relatedDoc {
	start, err := strconv.ParseInt(topDocID, 10, 64)
	if err != nil {
		return nil
	}
	graph, err := r.relationGraph(ctx)
	if err != nil {
		r.log.Warn("relation graph unavailable, skipping traversal", "error", err)
		return nil
	}

	relatedIDs := graph.walk(start, hops)
	if len(relatedIDs) == 0 {
		return nil
	}
	rows, err := r.docs.GetByIDs(ctx, relatedIDs)
	if err != nil {
		r.log.Warn("related document fetch failed", "error", err)
		return nil
	}
	out := make([]*relatedDoc, 0, len(rows))
	for _, row := range rows {
		out = append(out, &relatedDoc{ID: row.ID, Content: row.Content})
	}
	return out
}

type relatedDoc struct {
	ID      int64
	Content string
}

func (r *Resolver) relationGraph(ctx context.Context) (*relationGraph, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.graph != nil {
		return r.graph, nil
	}
	rows, err := r.docs.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	r.graph = buildRelationGraph(rows)
	r.log.Info("relation graph built", "documents", len(rows))
	return r.graph, nil
}

// mergeWithBudget joins sections with blank lines while the estimated
// token count (runes over four) stays inside the budget. The section
// that crosses the budget is cut to the remainder.
func mergeWithBudget(sections []string, tokenBudget int) (string, bool) {
	budgetRunes := tokenBudget * 4
	var b strings.Builder
	used := 0
	truncated := false

	for _, section := range sections {
		if section == "" {
			continue
		}
		sep := 0
		if b.Len() > 0 {
			sep = 2
		}
		runes := []rune(section)
		if used+sep+len(runes) > budgetRunes {
			remaining := budgetRunes - used - sep
			if remaining > 0 {
				if sep > 0 {
					b.WriteString("\n\n")
				}
				b.WriteString(string(runes[:remaining]))
			}
			truncated = true
			break
		}
		if sep > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(section)
		used += sep + len(runes)
	}
	return b.String(), truncated
}
