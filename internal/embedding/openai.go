package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultOpenAIEndpoint = "https://api.openai.com/v1/embeddings"
	defaultOpenAIModel    = "text-embedding-3-small"
	defaultOpenAIDims     = 1536
)

// OpenAIProvider generates embeddings through OpenAI's embeddings API.
type OpenAIProvider struct {
	apiKey     string
	model      string
	endpoint   string
	dimensions int
	client     *http.Client
}

type openAIRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type openAIResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

// NewOpenAIProvider creates an OpenAI-backed provider. A missing API key is
// a configuration error.
func NewOpenAIProvider(cfg ProviderConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai provider requires an api key")
	}

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultOpenAIEndpoint
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = defaultOpenAIDims
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &OpenAIProvider{
		apiKey:     cfg.APIKey,
		model:      model,
		endpoint:   endpoint,
		dimensions: dims,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

func (p *OpenAIProvider) Name() string  { return ProviderOpenAI }
func (p *OpenAIProvider) Model() string { return p.model }

func (p *OpenAIProvider) Dimensions() int {
	return p.dimensions
}

// Healthy reports whether the provider is usable. It checks construction
// state only; a live probe would spend quota on every statistics call.
func (p *OpenAIProvider) Healthy(ctx context.Context) bool {
	return p.apiKey != ""
}

// Embed generates an embedding for a single text. Empty text yields an
// empty vector without touching the API.
func (p *OpenAIProvider) Embed(ctx context.Context, text string, opts Options) ([]float32, error) {
	if text == "" {
		return []float32{}, nil
	}
	vectors, err := p.EmbedBatch(ctx, []string{text}, opts)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, &EmbeddingError{Provider: ProviderOpenAI, Err: fmt.Errorf("no embedding returned")}
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one API call.
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string, opts Options) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	model := p.model
	if opts.Model != "" {
		model = opts.Model
	}

	reqBody, err := json.Marshal(openAIRequest{Input: texts, Model: model})
	if err != nil {
		return nil, &EmbeddingError{Provider: ProviderOpenAI, Err: fmt.Errorf("marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, &EmbeddingError{Provider: ProviderOpenAI, Err: fmt.Errorf("create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &EmbeddingError{Provider: ProviderOpenAI, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &EmbeddingError{Provider: ProviderOpenAI, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &EmbeddingError{
			Provider: ProviderOpenAI,
			Err:      fmt.Errorf("api returned status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var apiResp openAIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, &EmbeddingError{Provider: ProviderOpenAI, Err: fmt.Errorf("parse response: %w", err)}
	}
	if len(apiResp.Data) != len(texts) {
		return nil, &EmbeddingError{
			Provider: ProviderOpenAI,
			Err:      fmt.Errorf("expected %d embeddings, got %d", len(texts), len(apiResp.Data)),
		}
	}

	vectors := make([][]float32, len(texts))
	for _, data := range apiResp.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			return nil, &EmbeddingError{
				Provider: ProviderOpenAI,
				Err:      fmt.Errorf("invalid embedding index: %d", data.Index),
			}
		}
		vec := data.Embedding
		if opts.Normalize {
			normalizeVector(vec)
		}
		vectors[data.Index] = vec
	}
	return vectors, nil
}
