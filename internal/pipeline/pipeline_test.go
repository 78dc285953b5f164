package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/b08x/blueprints-rag/internal/analysis"
	"github.com/b08x/blueprints-rag/internal/cache"
)

// stubProcessor returns a canned fragment, or fails, or stalls.
type stubProcessor struct {
	kind  analysis.Kind
	frag  *analysis.Fragment
	err   error
	panic bool
	delay time.Duration
}

func (s *stubProcessor) Kind() analysis.Kind { return s.kind }

func (s *stubProcessor) Metrics() analysis.Metrics { return analysis.Metrics{} }

func (s *stubProcessor) Process(ctx context.Context, text string) (*analysis.Fragment, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.panic {
		panic("stub exploded")
	}
	if s.err != nil {
		return nil, s.err
	}
	frag := *s.frag
	frag.Kind = s.kind
	return &frag, nil
}

func newTestPipeline(opts Options, procs ...analysis.Processor) *Pipeline {
	return newPipeline(procs, nil, opts.withDefaults(), nil, nil)
}

func TestBuilderRequiresProcessors(t *testing.T) {
	_, err := NewBuilder(nil, nil).Build()
	if err == nil {
		t.Fatal("expected error for empty builder")
	}
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Errorf("error = %v, want ConfigurationError", err)
	}
}

func TestBuilderRejectsUnknownKind(t *testing.T) {
	_, err := NewBuilder(nil, nil).
		With(analysis.Kind("phonetic"), 1, analysis.Config{}).
		Build()
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Errorf("error = %v, want ConfigurationError", err)
	}
}

func TestBuilderOrdersByPriority(t *testing.T) {
	p, err := NewBuilder(nil, nil).
		With(analysis.KindSemantic, 2, analysis.Config{}).
		With(analysis.KindLexical, 1, analysis.Config{}).
		Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	procs := p.Processors()
	if len(procs) != 2 {
		t.Fatalf("len = %d, want 2", len(procs))
	}
	if procs[0].Kind() != analysis.KindLexical || procs[1].Kind() != analysis.KindSemantic {
		t.Errorf("order = [%s %s], want [lexical semantic]", procs[0].Kind(), procs[1].Kind())
	}
}

func TestProcessSingleProcessor(t *testing.T) {
	stub := &stubProcessor{
		kind: analysis.Kind("stub"),
		frag: &analysis.Fragment{
			Keywords: []analysis.Keyword{{Text: "foo", Score: 0.9}},
			Entities: []string{},
			Concepts: []string{},
		},
	}
	p := newTestPipeline(Options{}, stub)

	record := p.Process(context.Background(), "foo bar foo")

	if len(record.Combined.Keywords) != 1 {
		t.Fatalf("merged keywords = %v, want one entry", record.Combined.Keywords)
	}
	kw := record.Combined.Keywords[0]
	if kw.Text != "foo" || kw.Score != 0.9 {
		t.Errorf("keyword = %+v, want {foo 0.9}", kw)
	}
	if record.Completeness != 1.0 {
		t.Errorf("completeness = %v, want 1.0", record.Completeness)
	}
	if record.Err != "" {
		t.Errorf("unexpected record error: %s", record.Err)
	}
}

func TestProcessIdempotentViaCache(t *testing.T) {
	caches := cache.NewManager(cache.ManagerOptions{})
	defer caches.Close()

	p, err := NewBuilder(caches, nil).
		With(analysis.KindLexical, 1, analysis.Config{}).
		Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	text := "parseConfig reads the retry budget from the config file"
	first := p.Process(context.Background(), text)
	second := p.Process(context.Background(), text)

	if first.SourceHash != second.SourceHash {
		t.Error("records disagree on source hash")
	}
	if len(first.Combined.Keywords) != len(second.Combined.Keywords) {
		t.Error("cached record differs from computed record")
	}
	if got := p.Metrics().CacheHits; got != 1 {
		t.Errorf("cache hits = %d, want 1", got)
	}
}

func TestMergeDedupesKeywordsByCanonicalText(t *testing.T) {
	a := &stubProcessor{
		kind: analysis.Kind("a"),
		frag: &analysis.Fragment{Keywords: []analysis.Keyword{
			{Text: "Cache", Score: 0.4},
			{Text: "index", Score: 0.7},
		}},
	}
	b := &stubProcessor{
		kind: analysis.Kind("b"),
		frag: &analysis.Fragment{Keywords: []analysis.Keyword{
			{Text: "cache", Score: 0.8},
			{Text: "Index", Score: 0.2},
		}},
	}
	p := newTestPipeline(Options{}, a, b)

	record := p.Process(context.Background(), "cache index cache index")

	if len(record.Combined.Keywords) != 2 {
		t.Fatalf("keywords = %v, want 2 after dedup", record.Combined.Keywords)
	}
	seen := make(map[string]float64)
	for _, kw := range record.Combined.Keywords {
		seen[canonical(kw.Text)] = kw.Score
	}
	if seen["cache"] != 0.8 {
		t.Errorf("cache score = %v, want max 0.8", seen["cache"])
	}
	if seen["index"] != 0.7 {
		t.Errorf("index score = %v, want max 0.7", seen["index"])
	}
}

func canonical(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		out = append(out, r)
	}
	return string(out)
}

func TestMergeTruncatesKeywords(t *testing.T) {
	frag := &analysis.Fragment{}
	for i := 0; i < 30; i++ {
		frag.Keywords = append(frag.Keywords, analysis.Keyword{
			Text:  string(rune('a' + i)),
			Score: float64(30-i) / 30,
		})
	}
	p := newTestPipeline(Options{}, &stubProcessor{kind: analysis.Kind("wide"), frag: frag})

	record := p.Process(context.Background(), "many keywords")
	if len(record.Combined.Keywords) != DefaultMergedKeywords {
		t.Errorf("keywords = %d, want %d", len(record.Combined.Keywords), DefaultMergedKeywords)
	}
	if record.Combined.Keywords[0].Score != 1.0 {
		t.Errorf("truncation must keep the top-scored entries, got head %+v", record.Combined.Keywords[0])
	}
}

func TestProcessorFailureYieldsPartialRecord(t *testing.T) {
	good := &stubProcessor{
		kind: analysis.Kind("good"),
		frag: &analysis.Fragment{Keywords: []analysis.Keyword{{Text: "alive", Score: 1}}},
	}
	bad := &stubProcessor{kind: analysis.Kind("bad"), err: errors.New("backing store gone")}
	p := newTestPipeline(Options{}, good, bad)

	record := p.Process(context.Background(), "some text")

	if record.Completeness != 0.5 {
		t.Errorf("completeness = %v, want 0.5", record.Completeness)
	}
	frag := record.Fragments[analysis.Kind("bad")]
	if frag == nil || frag.Err == "" {
		t.Errorf("failed processor fragment = %+v, want Err set", frag)
	}
	if len(record.Combined.Keywords) != 1 {
		t.Errorf("surviving keywords = %v, want the good processor's output", record.Combined.Keywords)
	}
}

func TestProcessorPanicIsRecovered(t *testing.T) {
	p := newTestPipeline(Options{}, &stubProcessor{kind: analysis.Kind("boom"), panic: true})

	record := p.Process(context.Background(), "text")

	frag := record.Fragments[analysis.Kind("boom")]
	if frag == nil || frag.Err == "" {
		t.Fatalf("fragment = %+v, want recovered panic in Err", frag)
	}
	if record.Completeness != 0 {
		t.Errorf("completeness = %v, want 0", record.Completeness)
	}
}

func TestParallelModeTimesOutSlowProcessor(t *testing.T) {
	fast := &stubProcessor{
		kind: analysis.Kind("fast"),
		frag: &analysis.Fragment{Keywords: []analysis.Keyword{{Text: "quick", Score: 1}}},
	}
	slow := &stubProcessor{
		kind:  analysis.Kind("slow"),
		frag:  &analysis.Fragment{},
		delay: 2 * time.Second,
	}
	p := newTestPipeline(Options{Mode: ModeParallel, Timeout: 50 * time.Millisecond}, fast, slow)

	start := time.Now()
	record := p.Process(context.Background(), "text")
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("parallel run took %v, should stop at the timeout", elapsed)
	}

	if frag := record.Fragments[analysis.Kind("fast")]; frag == nil || frag.Err != "" {
		t.Errorf("fast fragment = %+v, want success", frag)
	}
	if frag := record.Fragments[analysis.Kind("slow")]; frag == nil || frag.Err == "" {
		t.Errorf("slow fragment = %+v, want timeout error", frag)
	}
	if record.Completeness != 0.5 {
		t.Errorf("completeness = %v, want 0.5", record.Completeness)
	}
}

func TestFeatureVectorShape(t *testing.T) {
	stub := &stubProcessor{
		kind: analysis.Kind("stub"),
		frag: &analysis.Fragment{
			Keywords:   []analysis.Keyword{{Text: "one", Score: 1}, {Text: "two", Score: 0.5}},
			Entities:   []string{"Ent"},
			Concepts:   []string{"search"},
			Complexity: map[string]float64{"lexical_diversity": 0.5, "mean_token_length": 0.3},
		},
	}
	p := newTestPipeline(Options{FeatureDimension: 8}, stub)

	record := p.Process(context.Background(), "one two Ent search")

	if len(record.Features) != 8 {
		t.Fatalf("feature dimension = %d, want 8", len(record.Features))
	}
	if record.Features[0] != float32(2)/float32(DefaultMergedKeywords) {
		t.Errorf("keyword density = %v, want %v", record.Features[0], float32(2)/float32(DefaultMergedKeywords))
	}
	if record.Features[1] != 0.1 {
		t.Errorf("entity density = %v, want 0.1", record.Features[1])
	}
	for _, tail := range record.Features[5:] {
		if tail != 0 {
			t.Errorf("padding = %v, want zeros", record.Features[5:])
			break
		}
	}
	if record.Quality != 1.0 {
		t.Errorf("quality = %v, want 1.0 with all three lists populated", record.Quality)
	}
}

func TestVerbosityProjection(t *testing.T) {
	stub := &stubProcessor{
		kind: analysis.Kind("stub"),
		frag: &analysis.Fragment{Keywords: []analysis.Keyword{{Text: "foo", Score: 0.9}}},
	}
	p := newTestPipeline(Options{Verbosity: analysis.VerbosityMinimal}, stub)

	record := p.Process(context.Background(), "foo")

	if record.Features != nil {
		t.Errorf("minimal view carries a feature vector: %v", record.Features)
	}
	if record.Fragments != nil {
		t.Error("minimal view carries per-processor fragments")
	}
	if len(record.Combined.Keywords) != 1 {
		t.Errorf("minimal view lost the combined analysis: %+v", record.Combined)
	}
}

func TestConfigHashCoversProcessorConfig(t *testing.T) {
	caches := cache.NewManager(cache.ManagerOptions{})
	defer caches.Close()

	build := func(maxKeywords int) *Pipeline {
		p, err := NewBuilder(caches, nil).
			With(analysis.KindLexical, 1, analysis.Config{MaxKeywords: maxKeywords}).
			Build()
		if err != nil {
			t.Fatalf("Build() error: %v", err)
		}
		return p
	}
	wide := build(20)
	narrow := build(2)

	if wide.ConfigHash() == narrow.ConfigHash() {
		t.Fatal("different processor configs must not share a config hash")
	}

	// Both pipelines share one cache manager; the narrow one must not be
	// served the wide one's record.
	text := "parser tokenizer scanner emits tokens parser tokenizer scanner"
	if got := len(wide.Process(context.Background(), text).Combined.Keywords); got <= 2 {
		t.Fatalf("wide pipeline keywords = %d, want more than 2", got)
	}
	record := narrow.Process(context.Background(), text)
	if got := len(record.Combined.Keywords); got > 2 {
		t.Errorf("narrow pipeline keywords = %d over a shared cache, want <= 2", got)
	}
}

func TestConfigHashStableAcrossBuilds(t *testing.T) {
	build := func() *Pipeline {
		p, err := NewBuilder(nil, nil).
			With(analysis.KindLexical, 1, analysis.Config{}).
			With(analysis.KindSemantic, 2, analysis.Config{}).
			Build()
		if err != nil {
			t.Fatalf("Build() error: %v", err)
		}
		return p
	}

	if build().ConfigHash() != build().ConfigHash() {
		t.Error("identical configurations must share a config hash")
	}

	other, err := NewBuilder(nil, nil).
		With(analysis.KindLexical, 1, analysis.Config{}).
		Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if other.ConfigHash() == build().ConfigHash() {
		t.Error("different processor sets must not share a config hash")
	}
}
