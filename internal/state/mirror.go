// Package state holds the client's local copies of remote entities. One
// entity may appear in several named collections at once (the feed, a
// community page, the all-posts list); a Mirror keeps those copies in step.
package state

import (
	"sort"
	"sync"
)

// Entity is anything with a stable identifier.
type Entity interface {
	EntityID() string
}

// Collection names.
const (
	Feed        = "feed"
	All         = "all"
	Joined      = "joined"
	Communities = "communities"
)

// CommunityPosts names the collection holding one community's posts.
func CommunityPosts(communityID string) string { return "community:" + communityID }

// PostComments names the collection holding one post's comments.
func PostComments(postID string) string { return "comments:" + postID }

// Removal records where an entity sat before Remove took it out.
type Removal[T Entity] struct {
	Collection string
	Index      int
	Item       T
}

// Mirror is a set of named, ordered collections of T. All operations are
// safe for concurrent use, and operations spanning several collections
// happen under one lock.
type Mirror[T Entity] struct {
	mu          sync.RWMutex
	collections map[string][]T
}

// NewMirror returns an empty mirror.
func NewMirror[T Entity]() *Mirror[T] {
	return &Mirror[T]{collections: make(map[string][]T)}
}

// Set replaces a collection's contents.
func (m *Mirror[T]) Set(name string, items []T) {
	cp := make([]T, len(items))
	copy(cp, items)

	m.mu.Lock()
	m.collections[name] = cp
	m.mu.Unlock()
}

// List returns a copy of a collection. Unknown collections are empty.
func (m *Mirror[T]) List(name string) []T {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.collections[name]
	out := make([]T, len(src))
	copy(out, src)
	return out
}

// Names returns the collection names in sorted order.
func (m *Mirror[T]) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedNamesLocked()
}

// Find returns the first copy of id found, searching collections in name
// order.
func (m *Mirror[T]) Find(id string) (T, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, name := range m.sortedNamesLocked() {
		for _, item := range m.collections[name] {
			if item.EntityID() == id {
				return item, true
			}
		}
	}
	var zero T
	return zero, false
}

// Update applies fn to every copy of id and returns how many copies changed.
func (m *Mirror[T]) Update(id string, fn func(T) T) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, items := range m.collections {
		for i := range items {
			if items[i].EntityID() == id {
				items[i] = fn(items[i])
				n++
			}
		}
	}
	return n
}

// Snapshot returns each collection's copy of id, keyed by collection name.
func (m *Mirror[T]) Snapshot(id string) map[string]T {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]T)
	for name, items := range m.collections {
		for _, item := range items {
			if item.EntityID() == id {
				out[name] = item
				break
			}
		}
	}
	return out
}

// UpdateEach is Update with the collection name passed to fn.
func (m *Mirror[T]) UpdateEach(id string, fn func(collection string, item T) T) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for name, items := range m.collections {
		for i := range items {
			if items[i].EntityID() == id {
				items[i] = fn(name, items[i])
				n++
			}
		}
	}
	return n
}

// Remove takes id out of every collection and reports where it was.
func (m *Mirror[T]) Remove(id string) []Removal[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed []Removal[T]
	for name, items := range m.collections {
		kept := items[:0]
		for i, item := range items {
			if item.EntityID() == id {
				removed = append(removed, Removal[T]{Collection: name, Index: i, Item: item})
				continue
			}
			kept = append(kept, item)
		}
		m.collections[name] = kept
	}
	return removed
}

// Restore puts removed entities back at their recorded positions. Positions
// past the end of a collection that has since shrunk append instead.
func (m *Mirror[T]) Restore(removals []Removal[T]) {
	sorted := make([]Removal[T], len(removals))
	copy(sorted, removals)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Collection != sorted[j].Collection {
			return sorted[i].Collection < sorted[j].Collection
		}
		return sorted[i].Index < sorted[j].Index
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range sorted {
		items := m.collections[r.Collection]
		idx := r.Index
		if idx > len(items) {
			idx = len(items)
		}
		items = append(items, r.Item)
		copy(items[idx+1:], items[idx:])
		items[idx] = r.Item
		m.collections[r.Collection] = items
	}
}

// Prepend inserts item at the head of each named collection, replacing any
// existing copy.
func (m *Mirror[T]) Prepend(item T, names ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range names {
		items := without(m.collections[name], item.EntityID())
		m.collections[name] = append([]T{item}, items...)
	}
}

// Append adds item at the tail of each named collection, replacing any
// existing copy.
func (m *Mirror[T]) Append(item T, names ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range names {
		items := without(m.collections[name], item.EntityID())
		m.collections[name] = append(items, item)
	}
}

// Drop removes id from one collection only.
func (m *Mirror[T]) Drop(name, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if items, ok := m.collections[name]; ok {
		m.collections[name] = without(items, id)
	}
}

// Has reports whether a collection has been populated.
func (m *Mirror[T]) Has(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.collections[name]
	return ok
}

func (m *Mirror[T]) sortedNamesLocked() []string {
	names := make([]string, 0, len(m.collections))
	for n := range m.collections {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func without[T Entity](items []T, id string) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if it.EntityID() != id {
			out = append(out, it)
		}
	}
	return out
}
