package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bloomweaver/backend/internal/common"
)

// Vector is one indexed item with its metadata payload.
type Vector struct {
	ID       string            `json:"id"`
	Values   []float32         `json:"values"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Match is a query hit with its similarity score.
type Match struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Index is a vector store supporting upsert and filtered similarity search.
type Index interface {
	Upsert(ctx context.Context, vectors []Vector) error
	Query(ctx context.Context, vector []float32, topK int, filter map[string]string) ([]Match, error)
}

// PineconeIndex talks to a Pinecone-compatible index over its REST data
// plane.
type PineconeIndex struct {
	apiKey     string
	host       string
	httpClient *http.Client
}

func NewPineconeIndex(apiKey, host string) *PineconeIndex {
	return &PineconeIndex{
		apiKey:     apiKey,
		host:       strings.TrimRight(host, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *PineconeIndex) Upsert(ctx context.Context, vectors []Vector) error {
	var out struct{}
	return p.post(ctx, "/vectors/upsert", map[string]any{"vectors": vectors}, &out)
}

func (p *PineconeIndex) Query(ctx context.Context, vector []float32, topK int, filter map[string]string) ([]Match, error) {
	body := map[string]any{
		"vector":          vector,
		"topK":            topK,
		"includeMetadata": true,
	}
	if len(filter) > 0 {
		// Pinecone equality filters take the field value directly.
		f := make(map[string]any, len(filter))
		for k, v := range filter {
			f[k] = v
		}
		body["filter"] = f
	}

	var out struct {
		Matches []Match `json:"matches"`
	}
	if err := p.post(ctx, "/query", body, &out); err != nil {
		return nil, err
	}
	return out.Matches, nil
}

func (p *PineconeIndex) post(ctx context.Context, path string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Api-Key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrorUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: index %s status %d: %s", common.ErrorUpstream, path, resp.StatusCode, msg)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
