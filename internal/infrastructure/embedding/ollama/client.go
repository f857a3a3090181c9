package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lexhub/legal-retrieval/internal/infrastructure/resilience"
)

// Client is the sentence-embedding encoder, backed by an Ollama server.
// Queries and snapshot builds must go through the same model version or
// dense distances stop meaning anything.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	exec       *resilience.Executor
}

func New(baseURL, model string, exec *resilience.Executor) *Client {
	if exec == nil {
		exec = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		exec:       exec,
	}
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": c.model,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	err := c.exec.Execute(ctx, "embed", func(ctx context.Context) error {
		return c.postJSON(ctx, "/api/embed", request, &response, "embed")
	}, classifyEmbedError)
	if err != nil {
		return nil, err
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed: got %d embeddings for %d inputs", len(response.Embeddings), len(texts))
	}
	return response.Embeddings, nil
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

// Probe embeds a warmup string and reports the model's output
// dimension. Bootstrap calls it once: a failure here means the encoder
// cannot serve the critical path and the process must not start.
func (c *Client) Probe(ctx context.Context) (int, error) {
	vector, err := c.EmbedQuery(ctx, "warmup")
	if err != nil {
		return 0, fmt.Errorf("probe embedding model %q: %w", c.model, err)
	}
	return len(vector), nil
}

func (c *Client) Model() string { return c.model }

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(operation, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func statusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &HTTPStatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(body)),
	}
}
