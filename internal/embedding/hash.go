package embedding

import (
	"context"
	"crypto/sha256"
)

// Provider names for the built-in backends.
const (
	ProviderHash   = "hash"
	ProviderOpenAI = "openai"
)

// DefaultHashDimensions is the vector size of the hash provider.
const DefaultHashDimensions = 64

// HashProvider derives a deterministic pseudo-embedding from the SHA-256
// stream of the input text. It has no semantic power, but it is stable,
// dependency-free and always healthy, which makes it the default backend
// for tests and for installs without remote credentials.
type HashProvider struct {
	model      string
	dimensions int
}

// NewHashProvider creates a hash provider.
func NewHashProvider(cfg ProviderConfig) *HashProvider {
	model := cfg.Model
	if model == "" {
		model = "hash-v1"
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = DefaultHashDimensions
	}
	return &HashProvider{model: model, dimensions: dims}
}

func (p *HashProvider) Name() string  { return ProviderHash }
func (p *HashProvider) Model() string { return p.model }

func (p *HashProvider) Dimensions() int {
	return p.dimensions
}

func (p *HashProvider) Healthy(ctx context.Context) bool {
	return true
}

// Embed expands the text hash into a vector of the configured dimension.
// Empty text yields an empty vector.
func (p *HashProvider) Embed(ctx context.Context, text string, opts Options) ([]float32, error) {
	if text == "" {
		return []float32{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, &EmbeddingError{Provider: ProviderHash, Err: err}
	}

	vec := make([]float32, p.dimensions)
	digest := sha256.Sum256([]byte(text))
	block := digest[:]
	for i := 0; i < p.dimensions; i++ {
		if i > 0 && i%sha256.Size == 0 {
			// Extend the stream by re-hashing the previous block.
			next := sha256.Sum256(block)
			block = next[:]
		}
		// Map each byte into [-1, 1].
		vec[i] = float32(block[i%sha256.Size])/127.5 - 1
	}

	if opts.Normalize {
		normalizeVector(vec)
	}
	return vec, nil
}

// EmbedBatch loops Embed; there is no cheaper batch path for a local hash.
func (p *HashProvider) EmbedBatch(ctx context.Context, texts []string, opts Options) ([][]float32, error) {
	return embedBatchSerial(ctx, p, texts, opts)
}
