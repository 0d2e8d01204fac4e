package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"ragqa/internal/domain"
	"ragqa/internal/port"
)

const (
	DefaultURL = "http://localhost:6333"

	// payloadChunkID keeps the caller's entry ID; Qdrant point IDs must be
	// UUIDs or integers.
	payloadChunkID = "chunk_id"
)

var _ port.VectorIndex = (*Index)(nil)

type Config struct {
	URL    string
	APIKey string
	Client *http.Client
}

// Index is a minimal REST client for Qdrant collections using cosine
// distance.
type Index struct {
	url    string
	apiKey string
	client *http.Client
}

func New(cfg Config) *Index {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}
	return &Index{
		url:    strings.TrimRight(cfg.URL, "/"),
		apiKey: cfg.APIKey,
		client: cfg.Client,
	}
}

// PointID maps an entry ID to the deterministic UUID stored in Qdrant, so
// re-ingesting a chunk overwrites its previous point.
func PointID(id string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(id)).String()
}

func (q *Index) CollectionExists(ctx context.Context, collection string) (bool, error) {
	status, _, err := q.do(ctx, http.MethodGet, q.collectionURL(collection), nil)
	if err != nil {
		return false, err
	}
	switch {
	case status == http.StatusNotFound:
		return false, nil
	case status < 300:
		return true, nil
	default:
		return false, domain.Transient("qdrant get collection", fmt.Errorf("status %d", status))
	}
}

func (q *Index) CreateCollection(ctx context.Context, collection string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return q.expectOK(ctx, http.MethodPut, q.collectionURL(collection), body, nil, "qdrant create collection")
}

func (q *Index) DeleteCollection(ctx context.Context, collection string) error {
	status, _, err := q.do(ctx, http.MethodDelete, q.collectionURL(collection), nil)
	if err != nil {
		return err
	}
	if status >= 300 && status != http.StatusNotFound {
		return domain.Transient("qdrant delete collection", fmt.Errorf("status %d", status))
	}
	return nil
}

// Upsert sends every entry in one request and waits for it to be applied.
func (q *Index) Upsert(ctx context.Context, collection string, entries []port.IndexEntry) error {
	points := make([]map[string]any, len(entries))
	for i, e := range entries {
		payload := make(map[string]any, len(e.Payload)+1)
		for k, v := range e.Payload {
			payload[k] = v
		}
		payload[payloadChunkID] = e.ID
		points[i] = map[string]any{
			"id":      PointID(e.ID),
			"vector":  e.Vector,
			"payload": payload,
		}
	}
	body := map[string]any{"points": points}
	return q.expectOK(ctx, http.MethodPut, q.collectionURL(collection)+"/points?wait=true", body, nil, "qdrant upsert")
}

func (q *Index) Search(ctx context.Context, collection string, vector []float32, k int) ([]port.SearchHit, error) {
	if k <= 0 {
		return nil, nil
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := q.expectOK(ctx, http.MethodPost, q.collectionURL(collection)+"/points/search", req, &resp, "qdrant search"); err != nil {
		return nil, err
	}

	hits := make([]port.SearchHit, 0, len(resp.Result))
	for _, r := range resp.Result {
		payload := make(map[string]string, len(r.Payload))
		for k, v := range r.Payload {
			switch val := v.(type) {
			case string:
				payload[k] = val
			default:
				payload[k] = fmt.Sprint(val)
			}
		}
		id := payload[payloadChunkID]
		if id == "" {
			id = fmt.Sprint(r.ID)
		}
		delete(payload, payloadChunkID)
		hits = append(hits, port.SearchHit{ID: id, Score: r.Score, Payload: payload})
	}
	return hits, nil
}

func (q *Index) collectionURL(collection string) string {
	return q.url + "/collections/" + url.PathEscape(collection)
}

func (q *Index) expectOK(ctx context.Context, method, u string, body, out any, op string) error {
	status, data, err := q.do(ctx, method, u, body)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, domain.ErrCollectionNotFound)
	}
	if status >= 300 {
		err := fmt.Errorf("status %d: %s", status, preview(data))
		if status == http.StatusTooManyRequests || status >= 500 {
			return domain.Transient(op, err)
		}
		// Other 4xx are bad requests or credentials; retrying cannot help.
		return fmt.Errorf("%s: %w", op, err)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return domain.Transient(op, fmt.Errorf("failed to decode response: %w", err))
		}
	}
	return nil
}

func (q *Index) do(ctx context.Context, method, u string, body any) (int, []byte, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return 0, nil, domain.Transient("qdrant "+strings.ToLower(method), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, domain.Transient("qdrant read response", err)
	}
	return resp.StatusCode, data, nil
}

func preview(b []byte) string {
	if len(b) > 200 {
		return string(b[:200])
	}
	return string(b)
}
