package index

import (
	"math"
	"sort"
	"sync"
)

// Point is a 2-D projection of an embedding, tagged with its blueprint id.
type Point struct {
	ID string
	X  float64
	Y  float64
}

// Neighbor is a nearest-neighbor result.
type Neighbor struct {
	ID       string
	Distance float64
}

// SpatialIndex answers approximate nearest-neighbor queries over the 2-D
// projection of blueprint embeddings.
//
// The tree is batch-built: Insert does NOT rebuild it. New points land in a
// pending list that Nearest serves by brute-force scan, and Rebuild folds
// them into a fresh balanced kd-tree. Bulk ingestion should finish with a
// Rebuild. Safe for concurrent use.
type SpatialIndex struct {
	mu      sync.RWMutex
	root    *kdNode
	size    int
	pending []Point
}

type kdNode struct {
	point       Point
	left, right *kdNode
}

// NewSpatialIndex creates an empty index.
func NewSpatialIndex() *SpatialIndex {
	return &SpatialIndex{}
}

// Insert adds a point to the pending set. It is served by linear scan until
// the next Rebuild.
func (s *SpatialIndex) Insert(p Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, p)
}

// Build replaces the whole index with points.
func (s *SpatialIndex) Build(points []Point) {
	cloned := make([]Point, len(points))
	copy(cloned, points)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = buildKD(cloned, 0)
	s.size = len(cloned)
	s.pending = nil
}

// Rebuild folds the pending points into a fresh balanced tree.
func (s *SpatialIndex) Rebuild() {
	s.mu.Lock()
	defer s.mu.Unlock()

	points := make([]Point, 0, s.size+len(s.pending))
	collectPoints(s.root, &points)
	points = append(points, s.pending...)
	s.root = buildKD(points, 0)
	s.size = len(points)
	s.pending = nil
}

// Len returns the number of points, pending included.
func (s *SpatialIndex) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size + len(s.pending)
}

// Clear drops every point.
func (s *SpatialIndex) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = nil
	s.size = 0
	s.pending = nil
}

// Nearest returns up to k nearest neighbors of (x, y) by Euclidean
// distance, closest first.
func (s *SpatialIndex) Nearest(x, y float64, k int) []Neighbor {
	if k <= 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	best := &neighborHeap{limit: k}
	searchKD(s.root, x, y, 0, best)
	for _, p := range s.pending {
		best.consider(Neighbor{ID: p.ID, Distance: dist(x, y, p)})
	}

	out := make([]Neighbor, len(best.items))
	copy(out, best.items)
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out
}

func buildKD(points []Point, depth int) *kdNode {
	if len(points) == 0 {
		return nil
	}
	axis := depth % 2
	sort.Slice(points, func(i, j int) bool {
		if axis == 0 {
			return points[i].X < points[j].X
		}
		return points[i].Y < points[j].Y
	})
	mid := len(points) / 2
	return &kdNode{
		point: points[mid],
		left:  buildKD(points[:mid], depth+1),
		right: buildKD(points[mid+1:], depth+1),
	}
}

func searchKD(node *kdNode, x, y float64, depth int, best *neighborHeap) {
	if node == nil {
		return
	}

	best.consider(Neighbor{ID: node.point.ID, Distance: dist(x, y, node.point)})

	axis := depth % 2
	var delta float64
	if axis == 0 {
		delta = x - node.point.X
	} else {
		delta = y - node.point.Y
	}

	near, far := node.left, node.right
	if delta > 0 {
		near, far = node.right, node.left
	}

	searchKD(near, x, y, depth+1, best)
	// Only cross the splitting plane when a closer point could be there.
	if !best.full() || math.Abs(delta) < best.worst() {
		searchKD(far, x, y, depth+1, best)
	}
}

func collectPoints(node *kdNode, out *[]Point) {
	if node == nil {
		return
	}
	*out = append(*out, node.point)
	collectPoints(node.left, out)
	collectPoints(node.right, out)
}

func dist(x, y float64, p Point) float64 {
	dx := x - p.X
	dy := y - p.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// neighborHeap keeps the k best candidates seen so far. Linear replacement
// is fine for the small k this index serves.
type neighborHeap struct {
	limit int
	items []Neighbor
}

func (h *neighborHeap) consider(n Neighbor) {
	if len(h.items) < h.limit {
		h.items = append(h.items, n)
		return
	}
	worstIdx := 0
	for i := 1; i < len(h.items); i++ {
		if h.items[i].Distance > h.items[worstIdx].Distance {
			worstIdx = i
		}
	}
	if n.Distance < h.items[worstIdx].Distance {
		h.items[worstIdx] = n
	}
}

func (h *neighborHeap) full() bool {
	return len(h.items) >= h.limit
}

func (h *neighborHeap) worst() float64 {
	worst := 0.0
	for _, item := range h.items {
		if item.Distance > worst {
			worst = item.Distance
		}
	}
	return worst
}
