package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/faqbridge/faqbridge-backend/internal/http/response"
	"github.com/faqbridge/faqbridge-backend/internal/platform/apierr"
	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
	"github.com/faqbridge/faqbridge-backend/internal/rag/generate"
	"github.com/faqbridge/faqbridge-backend/internal/rag/retrieval"
)

var errEmptyQuery = errors.New("query parameter q is required")

type SearchResult struct {
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type SearchResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
}

// SearchHandler exposes the retrieval stage directly, without the
// dialog pipeline around it. /search returns ranked documents, /ask
// additionally runs generation over them.
type SearchHandler struct {
	log       *logger.Logger
	retrieval *retrieval.Pipeline
	generator *generate.Generator
}

func NewSearchHandler(log *logger.Logger, pipeline *retrieval.Pipeline, generator *generate.Generator) *SearchHandler {
	return &SearchHandler{
		log:       log.With("handler", "Search"),
		retrieval: pipeline,
		generator: generator,
	}
}

func (h *SearchHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		response.RespondAPIError(c, apierr.BadRequest("empty_query", errEmptyQuery))
		return
	}

	result, err := h.retrieval.Retrieve(c.Request.Context(), query, nil, retrieval.SearchOptions{Hybrid: true})
	if err != nil {
		h.log.Error("search failed", "query", query, "error", err)
		response.RespondAPIError(c, apierr.Internal("search_failed", err))
		return
	}

	results := make([]SearchResult, 0, len(result.Docs))
	for i, doc := range result.Docs {
		results = append(results, SearchResult{
			Content:  doc.Content,
			Score:    result.Scores[i],
			Metadata: doc.Metadata,
		})
	}
	response.RespondOK(c, SearchResponse{Query: query, Results: results})
}

func (h *SearchHandler) Ask(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		response.RespondAPIError(c, apierr.BadRequest("empty_query", errEmptyQuery))
		return
	}
	hybrid := true
	if raw := c.Query("hybrid"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			hybrid = v
		}
	}

	ctx := c.Request.Context()
	result, err := h.retrieval.Retrieve(ctx, query, nil, retrieval.SearchOptions{Hybrid: hybrid})
	if err != nil {
		h.log.Warn("retrieval failed, generating without documents", "query", query, "error", err)
		result = retrieval.Result{}
	}

	docs := make([]string, 0, len(result.Docs))
	for _, doc := range result.Docs {
		docs = append(docs, doc.Content)
	}
	generated := h.generator.Generate(ctx, generate.Input{Query: query, Docs: docs})
	response.RespondOK(c, gin.H{"answer": generated.Answer})
}
