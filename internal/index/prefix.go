package index

import (
	"sort"
	"strings"
	"sync"
)

// PrefixIndex maps terms to blueprint ids with exact and prefix lookup.
// The underlying structure is a rune trie; callers only see the narrow
// interface. Safe for concurrent use.
type PrefixIndex struct {
	mu    sync.RWMutex
	root  *trieNode
	terms int
}

type trieNode struct {
	children map[rune]*trieNode
	ids      map[string]bool // ids registered at this exact term
}

func newTrieNode() *trieNode {
	return &trieNode{children: make(map[rune]*trieNode)}
}

// NewPrefixIndex creates an empty index.
func NewPrefixIndex() *PrefixIndex {
	return &PrefixIndex{root: newTrieNode()}
}

// Insert registers id under term. Terms are matched case-insensitively;
// empty terms are ignored.
func (p *PrefixIndex) Insert(term, id string) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" || id == "" {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	node := p.root
	for _, r := range term {
		child, ok := node.children[r]
		if !ok {
			child = newTrieNode()
			node.children[r] = child
		}
		node = child
	}
	if node.ids == nil {
		node.ids = make(map[string]bool)
		p.terms++
	}
	node.ids[id] = true
}

// Lookup returns the ids registered under exactly term.
func (p *PrefixIndex) Lookup(term string) []string {
	term = strings.ToLower(strings.TrimSpace(term))

	p.mu.RLock()
	defer p.mu.RUnlock()

	node := p.walk(term)
	if node == nil || node.ids == nil {
		return nil
	}
	return sortedIDs(node.ids)
}

// WithPrefix returns the ids of every term that starts with prefix,
// including an exact match.
func (p *PrefixIndex) WithPrefix(prefix string) []string {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	node := p.walk(prefix)
	if node == nil {
		return nil
	}

	ids := make(map[string]bool)
	collect(node, ids)
	return sortedIDs(ids)
}

// Terms returns the number of distinct indexed terms.
func (p *PrefixIndex) Terms() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.terms
}

// Clear drops every term.
func (p *PrefixIndex) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.root = newTrieNode()
	p.terms = 0
}

func (p *PrefixIndex) walk(term string) *trieNode {
	node := p.root
	for _, r := range term {
		child, ok := node.children[r]
		if !ok {
			return nil
		}
		node = child
	}
	return node
}

func collect(node *trieNode, out map[string]bool) {
	for id := range node.ids {
		out[id] = true
	}
	for _, child := range node.children {
		collect(child, out)
	}
}

func sortedIDs(set map[string]bool) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
