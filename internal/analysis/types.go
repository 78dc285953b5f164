package analysis

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Kind identifies a processor variant. The set is closed: the pipeline
// builder resolves a Kind to a constructor once at build time, there is no
// per-call string dispatch.
type Kind string

const (
	// KindLexical extracts keywords and named entities from surface tokens.
	KindLexical Kind = "lexical"
	// KindSemantic extracts higher-level concepts via a concept lexicon.
	KindSemantic Kind = "semantic"
)

// Kinds lists every known processor kind.
func Kinds() []Kind {
	return []Kind{KindLexical, KindSemantic}
}

// Valid reports whether k names a known processor kind.
func (k Kind) Valid() bool {
	switch k {
	case KindLexical, KindSemantic:
		return true
	}
	return false
}

// Keyword is a scored term.
type Keyword struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Fragment is one processor's contribution to an analysis. A failed run
// still yields a fragment with Err set; fragments never carry a Go error
// across the pipeline boundary.
type Fragment struct {
	Kind       Kind               `json:"kind"`
	Keywords   []Keyword          `json:"keywords"`
	Entities   []string           `json:"entities"`
	Concepts   []string           `json:"concepts"`
	Complexity map[string]float64 `json:"complexity,omitempty"`
	Fallback   bool               `json:"fallback,omitempty"`
	Err        string             `json:"error,omitempty"`
	Elapsed    time.Duration      `json:"elapsed,omitempty"`
}

// Combined is the deduplicated union of all fragment outputs.
type Combined struct {
	Keywords []Keyword `json:"keywords"`
	Entities []string  `json:"entities"`
	Concepts []string  `json:"concepts"`
}

// FeatureCount is the number of combined analysis features.
func (c Combined) FeatureCount() int {
	return len(c.Keywords) + len(c.Entities) + len(c.Concepts)
}

// Record is the result of running one text through the pipeline. It is
// immutable once cached; a fresh computation on miss or expiry supersedes
// it.
type Record struct {
	SourceHash         string             `json:"source_hash"`
	Fragments          map[Kind]*Fragment `json:"fragments"`
	Combined           Combined           `json:"combined_analysis"`
	Features           []float32          `json:"feature_vector"`
	InformationDensity float64            `json:"information_density"`
	Completeness       float64            `json:"completeness"`
	Quality            float64            `json:"quality"`
	CreatedAt          time.Time          `json:"created_at"`
	Err                string             `json:"error,omitempty"`
}

// Verbosity selects how much of a Record a projection keeps. All three are
// views of one record, not separate computations.
type Verbosity string

const (
	VerbosityMinimal  Verbosity = "minimal"
	VerbositySummary  Verbosity = "summary"
	VerbosityDetailed Verbosity = "detailed"
)

// View projects the record to the requested verbosity. Minimal keeps the
// combined analysis and scores, summary adds the feature vector, detailed
// returns the record as-is.
func (r *Record) View(v Verbosity) *Record {
	switch v {
	case VerbosityMinimal:
		return &Record{
			SourceHash:         r.SourceHash,
			Combined:           r.Combined,
			InformationDensity: r.InformationDensity,
			Completeness:       r.Completeness,
			Quality:            r.Quality,
			CreatedAt:          r.CreatedAt,
			Err:                r.Err,
		}
	case VerbositySummary:
		return &Record{
			SourceHash:         r.SourceHash,
			Combined:           r.Combined,
			Features:           r.Features,
			InformationDensity: r.InformationDensity,
			Completeness:       r.Completeness,
			Quality:            r.Quality,
			CreatedAt:          r.CreatedAt,
			Err:                r.Err,
		}
	default:
		return r
	}
}

// maxCacheKeyPrefix bounds how much text feeds a cache key, so keys stay
// cheap for large inputs.
const maxCacheKeyPrefix = 512

// TextHash hashes a bounded prefix of text for use as a cache key.
func TextHash(text string) string {
	if len(text) > maxCacheKeyPrefix {
		text = text[:maxCacheKeyPrefix]
	}
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:16])
}
