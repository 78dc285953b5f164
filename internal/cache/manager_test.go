package cache

import (
	"sync"
	"testing"
	"time"
)

func TestManagerRoutesPerNamespace(t *testing.T) {
	m := NewManager(ManagerOptions{})
	defer m.Close()

	m.Store("analysis:lexical", "k", "lex")
	m.Store("analysis:semantic", "k", "sem")

	got, ok := m.Get("analysis:lexical", "k")
	if !ok || got.(string) != "lex" {
		t.Errorf("Get(analysis:lexical, k) = %v, %v", got, ok)
	}
	got, ok = m.Get("analysis:semantic", "k")
	if !ok || got.(string) != "sem" {
		t.Errorf("Get(analysis:semantic, k) = %v, %v", got, ok)
	}
}

func TestManagerCounters(t *testing.T) {
	m := NewManager(ManagerOptions{})
	defer m.Close()

	m.Store("pipeline:abc", "k1", 1)
	m.Get("pipeline:abc", "k1")   // hit
	m.Get("pipeline:abc", "nope") // miss

	stats := m.Stats()
	ns, ok := stats["pipeline:abc"]
	if !ok {
		t.Fatal("missing stats for pipeline:abc")
	}
	if ns.Stores != 1 || ns.Gets != 2 || ns.Hits != 1 || ns.Misses != 1 {
		t.Errorf("counters = %+v, want stores=1 gets=2 hits=1 misses=1", ns)
	}
	if ns.Entries != 1 {
		t.Errorf("Entries = %d, want 1", ns.Entries)
	}
}

func TestManagerClassTTLs(t *testing.T) {
	m := NewManager(ManagerOptions{})
	defer m.Close()

	tests := []struct {
		namespace string
		want      time.Duration
	}{
		{"analysis:lexical", DefaultAnalysisTTL},
		{"embedding:hash:default", DefaultEmbeddingTTL},
		{"pipeline:cfg123", DefaultPipelineTTL},
		{"other", DefaultTTL},
	}

	for _, tt := range tests {
		t.Run(tt.namespace, func(t *testing.T) {
			if got := m.TTLFor(tt.namespace); got != tt.want {
				t.Errorf("TTLFor(%s) = %v, want %v", tt.namespace, got, tt.want)
			}
		})
	}
}

func TestManagerExplicitTTLWins(t *testing.T) {
	m := NewManager(ManagerOptions{})
	defer m.Close()

	m.StoreTTL("analysis:lexical", "k", "v", time.Nanosecond)
	time.Sleep(5 * time.Millisecond)

	if _, ok := m.Get("analysis:lexical", "k"); ok {
		t.Error("entry with explicit short ttl should have expired")
	}
}

func TestManagerSweepAll(t *testing.T) {
	m := NewManager(ManagerOptions{})
	defer m.Close()

	m.StoreTTL("analysis:lexical", "a", 1, time.Nanosecond)
	m.StoreTTL("embedding:hash:default", "b", 2, time.Nanosecond)
	m.StoreTTL("pipeline:x", "c", 3, time.Hour)

	time.Sleep(5 * time.Millisecond)

	if removed := m.SweepAll(); removed != 2 {
		t.Errorf("SweepAll() = %d, want 2", removed)
	}
}

func TestManagerCloseIdempotent(t *testing.T) {
	m := NewManager(ManagerOptions{SweepInterval: time.Millisecond})
	m.StartSweeper()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Close()
		}()
	}
	wg.Wait()
	m.Close()
}

func TestManagerConcurrentAccess(t *testing.T) {
	m := NewManager(ManagerOptions{MaxEntries: 64})
	defer m.Close()

	namespaces := []string{"analysis:lexical", "embedding:hash:default", "pipeline:x"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				ns := namespaces[j%len(namespaces)]
				key := string(rune('a' + j%26))
				m.Store(ns, key, worker)
				m.Get(ns, key)
				if j%50 == 0 {
					m.SweepAll()
				}
			}
		}(i)
	}
	wg.Wait()

	for _, ns := range namespaces {
		if stats, ok := m.Stats()[ns]; !ok || stats.Gets == 0 {
			t.Errorf("namespace %s saw no gets", ns)
		}
	}
}
