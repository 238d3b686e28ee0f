package services

import (
	"sort"

	"github.com/sophialabs/stubwire/internal/domain/match"
)

// StubIndex maps METHOD:path-pattern to sorted compiled stubs.
type StubIndex struct {
	entries map[string][]*match.CompiledStub
	paths   []string
}

// NewStubIndex creates an empty index.
func NewStubIndex() *StubIndex {
	return &StubIndex{
		entries: make(map[string][]*match.CompiledStub),
	}
}

// Add inserts a compiled stub into the index.
func (idx *StubIndex) Add(cs *match.CompiledStub) {
	key := cs.PathKey
	idx.entries[key] = append(idx.entries[key], cs)
}

// Build sorts all entries by priority desc then ID asc, and collects unique paths.
func (idx *StubIndex) Build() {
	idx.paths = nil
	seen := make(map[string]bool)

	for key, candidates := range idx.entries {
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].Priority != candidates[j].Priority {
				return candidates[i].Priority > candidates[j].Priority
			}
			// More patterns = more specific = evaluated first.
			ci, cj := len(candidates[i].Patterns), len(candidates[j].Patterns)
			if ci != cj {
				return ci > cj
			}
			return candidates[i].ID < candidates[j].ID
		})
		idx.entries[key] = candidates

		// Extract path (strip METHOD: prefix).
		for _, cs := range candidates {
			path := cs.PathKey[len(cs.Method)+1:]
			if !seen[path] {
				seen[path] = true
				idx.paths = append(idx.paths, path)
			}
		}
	}

	sort.Strings(idx.paths)
}

// Lookup returns the sorted candidates for a given METHOD:path key.
func (idx *StubIndex) Lookup(key string) []*match.CompiledStub {
	return idx.entries[key]
}

// Paths returns all unique paths registered in the index.
func (idx *StubIndex) Paths() []string {
	return idx.paths
}

// All returns all compiled stubs across all keys.
func (idx *StubIndex) All() []*match.CompiledStub {
	size := 0
	for _, candidates := range idx.entries {
		size += len(candidates)
	}
	all := make([]*match.CompiledStub, 0, size)
	for _, candidates := range idx.entries {
		all = append(all, candidates...)
	}
	return all
}

// Keys returns all index keys.
func (idx *StubIndex) Keys() []string {
	keys := make([]string, 0, len(idx.entries))
	for k := range idx.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
