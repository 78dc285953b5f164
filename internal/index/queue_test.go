package index

import (
	"testing"
)

func TestQueuePopOrder(t *testing.T) {
	q := NewRelevanceQueue()
	q.Push(Item{ID: "low", Score: 0.1})
	q.Push(Item{ID: "high", Score: 0.9})
	q.Push(Item{ID: "mid", Score: 0.5})

	wantOrder := []string{"high", "mid", "low"}
	for _, want := range wantOrder {
		item, ok := q.Pop()
		if !ok {
			t.Fatal("queue exhausted early")
		}
		if item.ID != want {
			t.Errorf("Pop() = %s, want %s", item.ID, want)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Error("Pop on empty queue must report not-ok")
	}
}

func TestQueueSnapshotNonDestructive(t *testing.T) {
	q := NewRelevanceQueue()
	q.Push(Item{ID: "a", Score: 0.3})
	q.Push(Item{ID: "b", Score: 0.7})

	snap := q.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("len(snapshot) = %d, want 2", len(snap))
	}
	if snap[0].ID != "b" || snap[1].ID != "a" {
		t.Errorf("snapshot order = [%s %s], want [b a]", snap[0].ID, snap[1].ID)
	}
	if q.Len() != 2 {
		t.Errorf("Len() = %d after snapshot, want 2 (snapshot must not drain)", q.Len())
	}
}

func TestQueueRemove(t *testing.T) {
	q := NewRelevanceQueue()
	q.Push(Item{ID: "a", Score: 0.3})
	q.Push(Item{ID: "b", Score: 0.7})
	q.Push(Item{ID: "a", Score: 0.5}) // stale duplicate

	if !q.Remove("a") {
		t.Fatal("Remove(a) = false, want true")
	}
	if q.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (both copies of a removed)", q.Len())
	}
	if q.Remove("missing") {
		t.Error("Remove of unknown id must report false")
	}

	item, ok := q.Pop()
	if !ok || item.ID != "b" {
		t.Errorf("Pop() = %v, %v; want b", item, ok)
	}
}

func TestQueuePayloadCarried(t *testing.T) {
	q := NewRelevanceQueue()
	q.Push(Item{ID: "a", Score: 1, Payload: "record"})

	item, _ := q.Pop()
	if item.Payload.(string) != "record" {
		t.Errorf("Payload = %v, want record", item.Payload)
	}
}

func TestQueueClear(t *testing.T) {
	q := NewRelevanceQueue()
	q.Push(Item{ID: "a", Score: 1})
	q.Clear()
	if q.Len() != 0 {
		t.Errorf("Len() = %d after Clear, want 0", q.Len())
	}
}
