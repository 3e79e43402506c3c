package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/faqbridge/faqbridge-backend/internal/platform/qdrant"
	"github.com/faqbridge/faqbridge-backend/internal/platform/rediskv"
)

type fakeKV struct {
	mu    sync.Mutex
	data  map[string][]byte
	ttls  map[string]time.Duration
	fail  bool
	reads int
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeKV) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.fail {
		return nil, errors.New("kv down")
	}
	raw, ok := f.data[key]
	if !ok {
		return nil, rediskv.ErrNotFound
	}
	return raw, nil
}

func (f *fakeKV) SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("kv down")
	}
	f.data[key] = value
	f.ttls[key] = ttl
	return nil
}

func (f *fakeKV) Delete(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeKV) Scan(ctx context.Context, pattern string, limit int) ([]string, error) {
	return nil, nil
}

func (f *fakeKV) Expire(ctx context.Context, key string, ttl time.Duration) error { return nil }

func (f *fakeKV) Ping(ctx context.Context) error {
	if f.fail {
		return errors.New("kv down")
	}
	return nil
}

type storedPoint struct {
	point qdrant.Point
	score float64
}

type fakeVectorStore struct {
	mu      sync.Mutex
	points  map[string]storedPoint
	ensured map[string]int
	deleted []map[string]any
	// nextScore is the similarity the next Search reports for every
	// stored point.
	nextScore float64
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{points: map[string]storedPoint{}, ensured: map[string]int{}}
}

func (f *fakeVectorStore) EnsureCollection(ctx context.Context, collection string, dim int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured[collection]++
	return nil
}

func (f *fakeVectorStore) Upsert(ctx context.Context, collection string, points []qdrant.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range points {
		f.points[p.ID] = storedPoint{point: p, score: f.nextScore}
	}
	return nil
}

// Search honors the timestamp range filter and the score threshold the
// way the semantic tier relies on.
func (f *fakeVectorStore) Search(ctx context.Context, collection string, q qdrant.Query) ([]qdrant.ScoredPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var cutoff int64
	if rangeFilter, ok := q.Filter["timestamp"].(map[string]any); ok {
		if gte, ok := rangeFilter["$gte"].(int64); ok {
			cutoff = gte
		}
	}
	var out []qdrant.ScoredPoint
	for _, sp := range f.points {
		if sp.score < q.ScoreThreshold {
			continue
		}
		if ts, ok := sp.point.Payload["timestamp"].(int64); ok && cutoff > 0 && ts < cutoff {
			continue
		}
		out = append(out, qdrant.ScoredPoint{ID: sp.point.ID, Score: sp.score, Payload: sp.point.Payload})
		if q.TopK > 0 && len(out) >= q.TopK {
			break
		}
	}
	return out, nil
}

func (f *fakeVectorStore) DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, filter)
	return nil
}

func (f *fakeVectorStore) Collections(ctx context.Context) ([]string, error) { return nil, nil }
func (f *fakeVectorStore) Ping(ctx context.Context) error                    { return nil }

type fakeEmbedder struct {
	dim   int
	calls int
	err   error
}

func (f *fakeEmbedder) Dim() int { return f.dim }

func (f *fakeEmbedder) Embed(ctx context.Context, text string, isQuery bool) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	v := make([]float32, f.dim)
	for i := range v {
		v[i] = 0.1
	}
	return v, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string, isQuery bool) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v, err := f.Embed(ctx, texts[i], isQuery)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
