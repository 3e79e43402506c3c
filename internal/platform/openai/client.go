package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/faqbridge/faqbridge-backend/internal/platform/envutil"
	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
	"github.com/faqbridge/faqbridge-backend/internal/platform/models"
)

type Config struct {
	APIKey     string
	BaseURL    string
	ChatModel  string
	EmbedModel string
	EmbedDim   int
	// Prefixes for asymmetric embedding models (e5 family).
	QueryPrefix   string
	PassagePrefix string
	Temperature   float64
	MaxRetries    int
}

func ResolveConfigFromEnv() (Config, error) {
	cfg := Config{
		APIKey:        envutil.Str("LLM_API_KEY", ""),
		BaseURL:       envutil.Str("LLM_BASE_URL", "https://api.openai.com/v1"),
		ChatModel:     envutil.Str("LLM_MODEL", "gpt-4o-mini"),
		EmbedModel:    envutil.Str("EMBEDDING_MODEL", "intfloat/multilingual-e5-small"),
		EmbedDim:      envutil.Int("EMBEDDING_DIM", 384),
		QueryPrefix:   envutil.Str("EMBEDDING_QUERY_PREFIX", "query: "),
		PassagePrefix: envutil.Str("EMBEDDING_PASSAGE_PREFIX", "passage: "),
		Temperature:   envutil.Float("LLM_TEMPERATURE", 0.2),
		MaxRetries:    envutil.Int("LLM_MAX_RETRIES", 2),
	}
	if cfg.APIKey == "" {
		return Config{}, fmt.Errorf("missing LLM_API_KEY")
	}
	if cfg.EmbedDim <= 0 {
		return Config{}, fmt.Errorf("invalid EMBEDDING_DIM=%d", cfg.EmbedDim)
	}
	return cfg, nil
}

// Client implements models.LLM and models.Embedder over any
// OpenAI-compatible endpoint (the embedding model is served by a local
// TEI/vLLM gateway speaking the same protocol).
type Client struct {
	log  *logger.Logger
	api  *goopenai.Client
	cfg  Config
	pool *Pool
}

var (
	_ models.LLM      = (*Client)(nil)
	_ models.Embedder = (*Client)(nil)
)

func NewClient(log *logger.Logger, cfg Config, pool *Pool) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiCfg := goopenai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimRight(cfg.BaseURL, "/"); base != "" {
		apiCfg.BaseURL = base
	}
	return &Client{
		log:  log.With("service", "ModelClient"),
		api:  goopenai.NewClientWithConfig(apiCfg),
		cfg:  cfg,
		pool: pool,
	}, nil
}

func (c *Client) Chat(ctx context.Context, messages []models.ChatMessage, opts ...models.ChatOption) (string, error) {
	options := models.ChatOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	req := goopenai.ChatCompletionRequest{
		Model:    c.cfg.ChatModel,
		Messages: make([]goopenai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, goopenai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	if options.Temperature != nil {
		req.Temperature = float32(*options.Temperature)
	} else {
		req.Temperature = float32(c.cfg.Temperature)
	}
	if options.JSONMode {
		req.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	var content string
	err := c.withRetries(ctx, "chat", func(ctx context.Context) error {
		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("chat completion returned no choices")
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}
	return content, nil
}

func (c *Client) Dim() int { return c.cfg.EmbedDim }

func (c *Client) Embed(ctx context.Context, text string, isQuery bool) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text}, isQuery)
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed returned %d vectors for one input", len(vecs))
	}
	return vecs[0], nil
}

func (c *Client) EmbedBatch(ctx context.Context, texts []string, isQuery bool) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	prefix := c.cfg.PassagePrefix
	if isQuery {
		prefix = c.cfg.QueryPrefix
	}
	inputs := make([]string, 0, len(texts))
	for _, t := range texts {
		inputs = append(inputs, prefix+t)
	}

	var out [][]float32
	err := c.pool.Do(ctx, func(ctx context.Context) error {
		return c.withRetries(ctx, "embed", func(ctx context.Context) error {
			resp, err := c.api.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
				Model: goopenai.EmbeddingModel(c.cfg.EmbedModel),
				Input: inputs,
			})
			if err != nil {
				return err
			}
			if len(resp.Data) != len(inputs) {
				return fmt.Errorf("embed returned %d vectors for %d inputs", len(resp.Data), len(inputs))
			}
			out = make([][]float32, len(resp.Data))
			for i, d := range resp.Data {
				if c.cfg.EmbedDim > 0 && len(d.Embedding) != c.cfg.EmbedDim {
					return fmt.Errorf("embedding dim mismatch: expected=%d got=%d", c.cfg.EmbedDim, len(d.Embedding))
				}
				out[i] = d.Embedding
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Warmup issues dummy calls so the first real request does not pay
// model cold-start latency.
func (c *Client) Warmup(ctx context.Context) {
	start := time.Now()
	if _, err := c.Embed(ctx, "warmup", true); err != nil {
		c.log.Warn("embedder warmup failed", "error", err)
	}
	if _, err := c.Chat(ctx, []models.ChatMessage{{Role: models.RoleUser, Content: "ping"}}); err != nil {
		c.log.Warn("llm warmup failed", "error", err)
	}
	c.log.Info("model warmup done", "duration_ms", time.Since(start).Milliseconds())
}

func (c *Client) withRetries(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error
	attempts := c.cfg.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) {
			return lastErr
		}
		c.log.Warn("model call retrying", "op", op, "attempt", attempt+1, "error", lastErr)
	}
	return lastErr
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, kw := range []string{"timeout", "deadline", "connection", "reset", "temporarily", "429", "502", "503"} {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}
