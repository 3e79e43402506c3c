// Package models declares the model-serving interfaces the pipeline
// consumes. Implementations live in platform packages; the pipeline
// never talks to a model vendor directly.
package models

import "context"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ChatMessage struct {
	Role    Role
	Content string
}

type ChatOptions struct {
	Temperature *float64
	JSONMode    bool
}

type ChatOption func(*ChatOptions)

func WithTemperature(t float64) ChatOption {
	return func(o *ChatOptions) { o.Temperature = &t }
}

func WithJSONMode() ChatOption {
	return func(o *ChatOptions) { o.JSONMode = true }
}

// LLM is a chat-completion model.
type LLM interface {
	Chat(ctx context.Context, messages []ChatMessage, opts ...ChatOption) (string, error)
}

// Embedder produces fixed-dimension vectors. IsQuery distinguishes
// query-side from passage-side encoding for asymmetric models.
type Embedder interface {
	Dim() int
	Embed(ctx context.Context, text string, isQuery bool) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string, isQuery bool) ([][]float32, error)
}

type RankedDoc struct {
	Index int
	Score float64
	Doc   string
}

// Reranker scores (query, doc) pairs with a cross-encoder and returns
// docs sorted by descending score.
type Reranker interface {
	Rank(ctx context.Context, query string, docs []string) ([]RankedDoc, error)
}

// Translator converts text into the target language code.
type Translator interface {
	Translate(ctx context.Context, text, target string) (string, error)
}
