package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/faqbridge/faqbridge-backend/internal/platform/envutil"
	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
	"github.com/faqbridge/faqbridge-backend/internal/platform/models"
)

// Reranker calls a cross-encoder served behind a TEI-style /rerank
// endpoint. Scoring every (query, doc) pair is CPU-bound on the model
// side, so calls go through the shared pool.
type Reranker struct {
	log     *logger.Logger
	baseURL string
	model   string
	http    *http.Client
	pool    *Pool
}

var _ models.Reranker = (*Reranker)(nil)

// NewRerankerFromEnv returns nil (reranking disabled) when RERANKER_URL
// is unset.
func NewRerankerFromEnv(log *logger.Logger, pool *Pool) (*Reranker, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	baseURL := envutil.Str("RERANKER_URL", "")
	if baseURL == "" {
		return nil, nil
	}
	return &Reranker{
		log:     log.With("service", "Reranker"),
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   envutil.Str("RERANKER_MODEL", "BAAI/bge-reranker-v2-m3"),
		http:    &http.Client{Timeout: envutil.Duration("RERANKER_TIMEOUT", 10*time.Second)},
		pool:    pool,
	}, nil
}

type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Texts     []string `json:"texts"`
	RawScores bool     `json:"raw_scores"`
}

type rerankResponseItem struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

func (r *Reranker) Rank(ctx context.Context, query string, docs []string) ([]models.RankedDoc, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	var items []rerankResponseItem
	err := r.pool.Do(ctx, func(ctx context.Context) error {
		body, err := json.Marshal(rerankRequest{Model: r.model, Query: query, Texts: docs})
		if err != nil {
			return fmt.Errorf("encode rerank request: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/rerank", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build rerank request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := r.http.Do(req)
		if err != nil {
			return fmt.Errorf("rerank call: %w", err)
		}
		defer resp.Body.Close()
		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return fmt.Errorf("read rerank response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("rerank status=%d body=%q", resp.StatusCode, truncate(raw, 256))
		}
		if err := json.Unmarshal(raw, &items); err != nil {
			return fmt.Errorf("decode rerank response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.RankedDoc, 0, len(items))
	for _, item := range items {
		if item.Index < 0 || item.Index >= len(docs) {
			continue
		}
		out = append(out, models.RankedDoc{Index: item.Index, Score: item.Score, Doc: docs[item.Index]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func truncate(raw []byte, n int) string {
	if len(raw) <= n {
		return string(raw)
	}
	return string(raw[:n]) + "..."
}
