package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Ollama is an embedding client for Ollama's /api/embed endpoint.
type Ollama struct {
	baseURL string
	model   string
	dim     int
	client  *http.Client
}

func NewOllama(baseURL, model string, dim int) *Ollama {
	return &Ollama{
		baseURL: baseURL,
		model:   model,
		dim:     dim,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

func (o *Ollama) Embed(ctx context.Context, text string) ([]float64, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	body, err := json.Marshal(embedRequest{Model: o.model, Input: []string{text}})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, msg)
	}

	var embedResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(embedResp.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}

	vec := embedResp.Embeddings[0]
	if len(vec) != o.dim {
		return nil, fmt.Errorf("embedding dimension mismatch: model %s returned %d, configured %d", o.model, len(vec), o.dim)
	}
	return vec, nil
}

func (o *Ollama) Dim() int {
	return o.dim
}

// Probe verifies at startup that the model is reachable and produces vectors
// of the configured width. A mismatch is a configuration error, not something
// to retry per chunk.
func (o *Ollama) Probe(ctx context.Context) error {
	if _, err := o.Embed(ctx, "ping"); err != nil {
		return fmt.Errorf("embedding probe: %w", err)
	}
	return nil
}
