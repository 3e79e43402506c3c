package handlers

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/faqbridge/faqbridge-backend/internal/http/response"
	"github.com/faqbridge/faqbridge-backend/internal/platform/apierr"
	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
	"github.com/faqbridge/faqbridge-backend/internal/rag/graph"
	"github.com/faqbridge/faqbridge-backend/internal/rag/state"
)

type HistoryTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type QueryRequest struct {
	Question            string        `json:"question"`
	ConversationHistory []HistoryTurn `json:"conversation_history"`
	UserID              string        `json:"user_id"`
	SessionID           string        `json:"session_id"`
}

type QueryResponse struct {
	Answer     string         `json:"answer"`
	Sources    []string       `json:"sources"`
	Confidence float64        `json:"confidence"`
	QueryID    string         `json:"query_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// RAGHandler drives one request through the pipeline graph.
type RAGHandler struct {
	log   *logger.Logger
	graph *graph.Graph
}

func NewRAGHandler(log *logger.Logger, g *graph.Graph) *RAGHandler {
	return &RAGHandler{
		log:   log.With("handler", "RAG"),
		graph: g,
	}
}

func (h *RAGHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAPIError(c, apierr.Unprocessable("malformed_body", err))
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		response.RespondAPIError(c, apierr.BadRequest("empty_question", errors.New("question is required")))
		return
	}

	bag := state.Bag{state.KeyQuestion: req.Question}
	if req.UserID != "" {
		bag[state.KeyUserID] = req.UserID
	}
	if req.SessionID != "" {
		bag[state.KeySessionID] = req.SessionID
	}
	if len(req.ConversationHistory) > 0 {
		history := make([]state.Turn, 0, len(req.ConversationHistory))
		for _, turn := range req.ConversationHistory {
			history = append(history, state.Turn{Role: turn.Role, Content: turn.Content})
		}
		bag[state.KeyConversationHistory] = history
	}

	if err := h.graph.Run(c.Request.Context(), bag); err != nil {
		h.log.Error("pipeline failed", "error", err, "session_id", req.SessionID)
		response.RespondAPIError(c, apierr.Internal("pipeline_failed", err))
		return
	}

	response.RespondOK(c, QueryResponse{
		Answer:     bag.String(state.KeyAnswer),
		Sources:    bag.Strings(state.KeySources),
		Confidence: bag.Float(state.KeyConfidence),
		QueryID:    bag.String(state.KeyQueryID),
		Metadata:   queryMetadata(bag),
	})
}

// queryMetadata surfaces the pipeline facts the bot frontend renders in
// debug mode. Absent keys stay absent rather than zero-valued.
func queryMetadata(bag state.Bag) map[string]any {
	meta := map[string]any{}
	copyKeys := []string{
		state.KeyCacheHit,
		state.KeyCacheReason,
		state.KeyDialogState,
		state.KeyDetectedLanguage,
		state.KeyMatchedCategory,
		state.KeyMatchedIntent,
		state.KeyFallbackTriggered,
		state.KeyGuardrailsBlocked,
		state.KeyTopicLoopDetected,
		state.KeyContextTruncated,
	}
	for _, key := range copyKeys {
		if bag.Has(key) {
			meta[key] = bag[key]
		}
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}
