package providers

import (
	"context"
	"encoding/json"
	"fmt"
)

// embedRespBody is the subset of the embeddings response we care about.
type embedRespBody struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed implements schema.Embedder. Vectors come back in input order even
// when the endpoint returns them shuffled.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body := map[string]any{
		"model": c.embedModel,
		"input": texts,
	}
	raw, err := c.post(ctx, "/embeddings", body)
	if err != nil {
		return nil, err
	}

	var parsed embedRespBody
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse embeddings response: %w", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings count mismatch: sent %d texts, got %d vectors", len(texts), len(parsed.Data))
	}

	out := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embeddings index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
