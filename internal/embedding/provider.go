package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"
)

// Options tunes a single embed call.
type Options struct {
	Model     string        // override the provider's default model
	Normalize bool          // scale the vector to unit length
	NoCache   bool          // opt out of the provider cache for this call
	Timeout   time.Duration // per-call deadline for remote backends
}

// Provider generates embedding vectors. Vectors are opaque outside
// similarity computation. Implementations must be safe for concurrent use.
type Provider interface {
	Name() string
	Model() string
	Embed(ctx context.Context, text string, opts Options) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string, opts Options) ([][]float32, error)
	Dimensions() int
	Healthy(ctx context.Context) bool
}

// ProviderConfig carries backend construction settings.
type ProviderConfig struct {
	Model      string
	APIKey     string
	Endpoint   string
	Dimensions int
	BatchSize  int
	Timeout    time.Duration
}

// ProviderNotFoundError is returned by Registry.Create for an unregistered
// provider name. It is a configuration error: fatal at construction.
type ProviderNotFoundError struct {
	Name string
}

func (e *ProviderNotFoundError) Error() string {
	return fmt.Sprintf("embedding provider not registered: %s", e.Name)
}

// EmbeddingError wraps any backend failure (model load, network, quota,
// timeout). Callers must treat it as non-fatal and substitute a locally
// derived feature vector instead of aborting ingestion.
type EmbeddingError struct {
	Provider string
	Err      error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding provider %s failed: %v", e.Provider, e.Err)
}

func (e *EmbeddingError) Unwrap() error {
	return e.Err
}

// IsEmbeddingError reports whether err is (or wraps) an EmbeddingError.
func IsEmbeddingError(err error) bool {
	var ee *EmbeddingError
	return errors.As(err, &ee)
}

// maxHashPrefix bounds how much text feeds a cache key.
const maxHashPrefix = 512

// textHash hashes a bounded prefix of text.
func textHash(text string) string {
	if len(text) > maxHashPrefix {
		text = text[:maxHashPrefix]
	}
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:16])
}

// CacheKey builds the cache key for one embed call.
func CacheKey(text, model string, normalize bool) string {
	return fmt.Sprintf("%s:%s:%t", textHash(text), model, normalize)
}

// normalizeVector scales v to unit length in place. A zero vector is left
// untouched.
func normalizeVector(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}

// embedBatchSerial is the default batch implementation: loop Embed.
func embedBatchSerial(ctx context.Context, p Provider, texts []string, opts Options) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := p.Embed(ctx, text, opts)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}
