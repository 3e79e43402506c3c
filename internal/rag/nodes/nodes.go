// Package nodes contains the concrete pipeline stages and the default
// graph that wires them together.
package nodes

import (
	"strconv"

	"github.com/faqbridge/faqbridge-backend/internal/data/repos"
	"github.com/faqbridge/faqbridge-backend/internal/observability"
	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
	"github.com/faqbridge/faqbridge-backend/internal/platform/models"
	"github.com/faqbridge/faqbridge-backend/internal/rag/cache"
	"github.com/faqbridge/faqbridge-backend/internal/rag/clarify"
	"github.com/faqbridge/faqbridge-backend/internal/rag/classify"
	"github.com/faqbridge/faqbridge-backend/internal/rag/dialog"
	"github.com/faqbridge/faqbridge-backend/internal/rag/generate"
	"github.com/faqbridge/faqbridge-backend/internal/rag/guardrails"
	"github.com/faqbridge/faqbridge-backend/internal/rag/multihop"
	"github.com/faqbridge/faqbridge-backend/internal/rag/retrieval"
	"github.com/faqbridge/faqbridge-backend/internal/rag/session"
	"github.com/faqbridge/faqbridge-backend/internal/rag/state"
	"github.com/faqbridge/faqbridge-backend/internal/rag/transform"
)

// Bag keys internal to the graph, never exposed on the API surface.
const (
	// KeySession carries the loaded *session.UserSession between nodes.
	KeySession = "session"
	// KeyClarificationHandled marks a turn consumed by the clarifying
	// sub-dialogue so routing can skip retrieval and generation.
	KeyClarificationHandled = "clarification_handled"
)

// Deps bundles every component the node set needs. All fields are
// required unless noted.
type Deps struct {
	Log     *logger.Logger
	Metrics *observability.Metrics

	Sessions   *session.Store
	Guardrails *guardrails.Engine
	Cache      *cache.Manager
	Aggregator *transform.Aggregator
	Translator models.Translator
	Classifier *classify.Classifier
	Retrieval  *retrieval.Pipeline
	Resolver   *multihop.Resolver
	Clarify    *clarify.Manager
	Loops      *dialog.LoopDetector
	Machine    *dialog.Machine
	Generator  *generate.Generator

	Messages    repos.MessageRepo
	Escalations repos.EscalationRepo
	Archives    repos.SessionArchiveRepo
	Profiles    repos.UserProfileRepo

	// DocLanguage is the canonical knowledge-base language queries are
	// translated into before retrieval.
	DocLanguage string
}

func sessionFrom(bag state.Bag) *session.UserSession {
	if sess, ok := bag[KeySession].(*session.UserSession); ok {
		return sess
	}
	return nil
}

// docsFrom rebuilds the retrieved documents from the parallel
// sources/docs sequences retrieval produced.
func docsFrom(bag state.Bag) []retrieval.Doc {
	ids := bag.Strings(state.KeySources)
	contents := bag.Strings(state.KeyDocs)
	scores := bag.Floats(state.KeyScores)
	out := make([]retrieval.Doc, 0, len(contents))
	for i, content := range contents {
		doc := retrieval.Doc{Content: content}
		if i < len(ids) {
			doc.ID = ids[i]
		}
		if i < len(scores) {
			doc.Score = scores[i]
		}
		if i == 0 {
			doc.Metadata = bag.Map(state.KeyBestDocMetadata)
		}
		out = append(out, doc)
	}
	return out
}

func formatDocID(id int64) string { return strconv.FormatInt(id, 10) }
