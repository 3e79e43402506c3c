package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
)

type rerankRoundTrip func(r *http.Request) (*http.Response, error)

func (f rerankRoundTrip) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func newTestReranker(rt rerankRoundTrip) *Reranker {
	return &Reranker{
		log:     logger.NewNop(),
		baseURL: "http://reranker:8080",
		model:   "test-reranker",
		http:    &http.Client{Transport: rt},
		pool:    NewPool(1),
	}
}

func TestRankSortsByScoreDescending(t *testing.T) {
	r := newTestReranker(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/rerank" {
			t.Fatalf("path: got=%q", req.URL.Path)
		}
		var body rerankRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Query != "reset password" || len(body.Texts) != 3 {
			t.Fatalf("request: %+v", body)
		}
		raw, _ := json.Marshal([]rerankResponseItem{
			{Index: 0, Score: 0.2},
			{Index: 1, Score: 0.9},
			{Index: 2, Score: 0.5},
		})
		return &http.Response{StatusCode: 200, Body: io.NopCloser(bytes.NewReader(raw))}, nil
	})

	ranked, err := r.Rank(context.Background(), "reset password", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(ranked) != 3 {
		t.Fatalf("ranked: want=3 got=%d", len(ranked))
	}
	if ranked[0].Doc != "b" || ranked[1].Doc != "c" || ranked[2].Doc != "a" {
		t.Fatalf("order: got=%v %v %v", ranked[0].Doc, ranked[1].Doc, ranked[2].Doc)
	}
}

func TestRankDropsOutOfRangeIndexes(t *testing.T) {
	r := newTestReranker(func(req *http.Request) (*http.Response, error) {
		raw, _ := json.Marshal([]rerankResponseItem{
			{Index: 7, Score: 0.9},
			{Index: 0, Score: 0.4},
		})
		return &http.Response{StatusCode: 200, Body: io.NopCloser(bytes.NewReader(raw))}, nil
	})
	ranked, err := r.Rank(context.Background(), "q", []string{"only"})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(ranked) != 1 || ranked[0].Doc != "only" {
		t.Fatalf("ranked: got=%+v", ranked)
	}
}

func TestRankEmptyDocsSkipsCall(t *testing.T) {
	r := newTestReranker(func(req *http.Request) (*http.Response, error) {
		t.Fatalf("no request expected")
		return nil, nil
	})
	ranked, err := r.Rank(context.Background(), "q", nil)
	if err != nil || ranked != nil {
		t.Fatalf("want nil, nil; got %v, %v", ranked, err)
	}
}
