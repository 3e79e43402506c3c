package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
)

const (
	payloadPointIDKey = "_fb_point_id"
	maxErrorBodyBytes = 1024
)

var pointIDNamespaceUUID = uuid.MustParse("6f7b31a4-9c2e-4f1d-8a53-b0c4d1e2f3a4")

// Point is a vector with an application-level ID and a JSON payload.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// ScoredPoint is a search hit. Score is cosine similarity (higher is better).
type ScoredPoint struct {
	ID      string
	Score   float64
	Payload map[string]any
}

type Query struct {
	Vector         []float32
	TopK           int
	Filter         map[string]any
	ScoreThreshold float64
}

// Store is the vector-store surface the retrieval and cache layers consume.
type Store interface {
	EnsureCollection(ctx context.Context, collection string, dim int) error
	Upsert(ctx context.Context, collection string, points []Point) error
	Search(ctx context.Context, collection string, q Query) ([]ScoredPoint, error)
	DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error
	Collections(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
}

type store struct {
	log     *logger.Logger
	cfg     Config
	baseURL string

	mu      sync.Mutex
	http    *http.Client
	ensured map[string]struct{}
}

type envelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

type searchResultItem struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

func NewStore(log *logger.Logger, cfg Config) (Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	s := &store{
		log:     log.With("service", "QdrantStore"),
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		ensured: map[string]struct{}{},
	}
	log.Info("Qdrant store configured",
		"url", s.baseURL,
		"vector_dim", cfg.VectorDim,
		"timeout", cfg.Timeout.String(),
	)
	return s, nil
}

func (s *store) EnsureCollection(ctx context.Context, collection string, dim int) error {
	const op = "ensure_collection"
	collection = strings.TrimSpace(collection)
	if collection == "" {
		return opErr(op, OperationErrorValidation, "collection name required", nil)
	}
	if dim <= 0 {
		dim = s.cfg.VectorDim
	}

	s.mu.Lock()
	_, ok := s.ensured[collection]
	s.mu.Unlock()
	if ok {
		return nil
	}

	err := s.doJSON(ctx, op, http.MethodGet, "/collections/"+collection, nil, nil)
	if err != nil {
		var oe *OperationError
		if !errors.As(err, &oe) || oe.StatusCode != http.StatusNotFound {
			return err
		}
		req := map[string]any{
			"vectors": map[string]any{"size": dim, "distance": "Cosine"},
		}
		if createErr := s.doJSON(ctx, op, http.MethodPut, "/collections/"+collection, req, nil); createErr != nil {
			// Lost a create race; the collection existing is the goal.
			var ce *OperationError
			if !errors.As(createErr, &ce) || ce.StatusCode != http.StatusConflict {
				return createErr
			}
		}
		s.log.Info("created vector collection", "collection", collection, "dim", dim)
	}

	s.mu.Lock()
	s.ensured[collection] = struct{}{}
	s.mu.Unlock()
	return nil
}

func (s *store) Upsert(ctx context.Context, collection string, points []Point) error {
	const op = "upsert"
	if len(points) == 0 {
		return nil
	}
	body := make([]map[string]any, 0, len(points))
	for _, p := range points {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return opErr(op, OperationErrorValidation, "point id is required", nil)
		}
		if len(p.Vector) == 0 {
			return opErr(op, OperationErrorValidation, fmt.Sprintf("point %q has empty vector", id), nil)
		}
		if s.cfg.VectorDim > 0 && len(p.Vector) != s.cfg.VectorDim {
			return opErr(op, OperationErrorValidation,
				fmt.Sprintf("point %q dimension mismatch: expected=%d got=%d", id, s.cfg.VectorDim, len(p.Vector)), nil)
		}
		payload := clonePayload(p.Payload)
		payload[payloadPointIDKey] = id
		body = append(body, map[string]any{
			"id":      s.pointID(collection, id),
			"vector":  p.Vector,
			"payload": payload,
		})
	}
	req := map[string]any{"points": body}
	return s.doJSON(ctx, op, http.MethodPut, "/collections/"+collection+"/points?wait=true", req, nil)
}

func (s *store) Search(ctx context.Context, collection string, q Query) ([]ScoredPoint, error) {
	const op = "search"
	if len(q.Vector) == 0 {
		return nil, opErr(op, OperationErrorValidation, "query vector required", nil)
	}
	if s.cfg.VectorDim > 0 && len(q.Vector) != s.cfg.VectorDim {
		return nil, opErr(op, OperationErrorValidation,
			fmt.Sprintf("query vector dimension mismatch: expected=%d got=%d", s.cfg.VectorDim, len(q.Vector)), nil)
	}
	topK := q.TopK
	if topK <= 0 {
		topK = 10
	}

	req := map[string]any{
		"vector":       q.Vector,
		"limit":        topK,
		"with_payload": true,
		"with_vector":  false,
	}
	if len(q.Filter) > 0 {
		translated, err := translateFilterMap(q.Filter)
		if err != nil {
			var oe *OperationError
			if errors.As(err, &oe) && oe.Code == OperationErrorUnsupportedFilter {
				s.log.Warn("unsupported qdrant filter", "collection", collection, "error", err)
			}
			return nil, err
		}
		req["filter"] = translated.asMap()
	}
	if q.ScoreThreshold > 0 {
		req["score_threshold"] = q.ScoreThreshold
	}

	var raw []searchResultItem
	if err := s.doJSON(ctx, op, http.MethodPost, "/collections/"+collection+"/points/search", req, &raw); err != nil {
		return nil, err
	}

	out := make([]ScoredPoint, 0, len(raw))
	for _, item := range raw {
		id := extractPointID(item)
		if id == "" {
			continue
		}
		payload := item.Payload
		if payload != nil {
			delete(payload, payloadPointIDKey)
		}
		out = append(out, ScoredPoint{ID: id, Score: item.Score, Payload: payload})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ID < out[j].ID
		}
		return out[i].Score > out[j].Score
	})
	return out, nil
}

func (s *store) DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error {
	const op = "delete"
	if len(filter) == 0 {
		return opErr(op, OperationErrorValidation, "delete filter required", nil)
	}
	translated, err := translateFilterMap(filter)
	if err != nil {
		return err
	}
	req := map[string]any{"filter": translated.asMap()}
	return s.doJSON(ctx, op, http.MethodPost, "/collections/"+collection+"/points/delete?wait=true", req, nil)
}

func (s *store) Collections(ctx context.Context) ([]string, error) {
	const op = "collections"
	var result struct {
		Collections []struct {
			Name string `json:"name"`
		} `json:"collections"`
	}
	if err := s.doJSON(ctx, op, http.MethodGet, "/collections", nil, &result); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(result.Collections))
	for _, c := range result.Collections {
		if name := strings.TrimSpace(c.Name); name != "" {
			out = append(out, name)
		}
	}
	return out, nil
}

func (s *store) Ping(ctx context.Context) error {
	const op = "ping"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/readyz", nil)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build ready request failed", err)
	}
	resp, err := s.client().Do(req)
	if err != nil {
		return s.classify(op, "qdrant ready check failed", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant ready check returned status=%d", resp.StatusCode),
		}
	}
	return nil
}

func (s *store) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client().Do(req)
	if err != nil {
		return s.classify(op, "qdrant request failed", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 10*maxErrorBodyBytes))
	if readErr != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant envelope failed", err)
	}
	if statusErr := parseEnvelopeStatus(env.Status); statusErr != "" {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    statusErr,
		}
	}

	if out == nil || len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant result failed", err)
	}
	return nil
}

func (s *store) client() *http.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.http
}

// classify maps an HTTP call error to a typed operation error. Transport
// failures drop the pooled connections so the next call reconnects.
func (s *store) classify(op, message string, err error) error {
	if err == nil {
		return nil
	}
	defer s.reset()
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	return opErr(op, OperationErrorTransportFailed, message, err)
}

func (s *store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.http.CloseIdleConnections()
	s.http = &http.Client{Timeout: s.cfg.Timeout}
}

func parseEnvelopeStatus(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}
	var statusString string
	if err := json.Unmarshal(raw, &statusString); err == nil {
		if strings.EqualFold(statusString, "ok") || strings.EqualFold(statusString, "acknowledged") || strings.EqualFold(statusString, "completed") {
			return ""
		}
		return fmt.Sprintf("qdrant status=%q", statusString)
	}
	var statusObject struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &statusObject); err == nil {
		if strings.TrimSpace(statusObject.Error) != "" {
			return strings.TrimSpace(statusObject.Error)
		}
		return ""
	}
	return fmt.Sprintf("qdrant status=%s", status)
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}

func clonePayload(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s *store) pointID(collection, id string) string {
	return uuid.NewSHA1(pointIDNamespaceUUID, []byte(collection+"|"+id)).String()
}

func extractPointID(item searchResultItem) string {
	if payloadID, ok := item.Payload[payloadPointIDKey].(string); ok {
		if id := strings.TrimSpace(payloadID); id != "" {
			return id
		}
	}
	return decodePointID(item.ID)
}

func decodePointID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var idString string
	if err := json.Unmarshal(raw, &idString); err == nil {
		return strings.TrimSpace(idString)
	}
	var idNumber int64
	if err := json.Unmarshal(raw, &idNumber); err == nil {
		return fmt.Sprintf("%d", idNumber)
	}
	return strings.TrimSpace(string(raw))
}
