// Package collection keeps local replicas of server-owned records and merges
// freshly fetched batches into them without duplicating ids.
package collection

import (
	"sort"
	"time"
)

// Record is a server-owned entity. The client never makes up ids.
type Record interface {
	RecordID() string
}

// Timestamped records are kept newest first.
type Timestamped interface {
	SortTime() time.Time
}

// Collection is an ordered set of records keyed by id. It is never mutated in
// place; Merge and Update return new collections.
type Collection[T Record] struct {
	items []T
	index map[string]int
}

func New[T Record](items []T) Collection[T] {
	return Merge(Collection[T]{}, items)
}

func (c Collection[T]) Len() int {
	return len(c.items)
}

// Items returns a copy of the records in order.
func (c Collection[T]) Items() []T {
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

func (c Collection[T]) Get(id string) (T, bool) {
	i, ok := c.index[id]
	if !ok {
		var zero T
		return zero, false
	}
	return c.items[i], true
}

// Update replaces the record with the given id by fn's result.
func (c Collection[T]) Update(id string, fn func(T) T) (Collection[T], bool) {
	i, ok := c.index[id]
	if !ok {
		return c, false
	}
	items := c.Items()
	items[i] = fn(items[i])
	return build(items), true
}

// Merge folds incoming into existing. New ids are placed in front in batch
// order, known ids are replaced by the incoming version, and nothing already
// held is dropped. Timestamped records end up sorted newest first.
func Merge[T Record](existing Collection[T], incoming []T) Collection[T] {
	latest := make(map[string]T, len(incoming))
	var fresh []T
	for _, rec := range incoming {
		id := rec.RecordID()
		if _, seen := latest[id]; !seen {
			if _, known := existing.index[id]; !known {
				fresh = append(fresh, rec)
			}
		}
		latest[id] = rec
	}

	items := make([]T, 0, len(fresh)+len(existing.items))
	for _, rec := range fresh {
		items = append(items, latest[rec.RecordID()])
	}
	for _, rec := range existing.items {
		if updated, ok := latest[rec.RecordID()]; ok {
			items = append(items, updated)
			continue
		}
		items = append(items, rec)
	}

	if isTimestamped[T]() {
		sort.SliceStable(items, func(i, j int) bool {
			return sortTime(items[i]).After(sortTime(items[j]))
		})
	}
	return build(items)
}

func build[T Record](items []T) Collection[T] {
	index := make(map[string]int, len(items))
	for i, rec := range items {
		index[rec.RecordID()] = i
	}
	return Collection[T]{items: items, index: index}
}

func isTimestamped[T Record]() bool {
	var zero T
	_, ok := any(zero).(Timestamped)
	return ok
}

func sortTime(rec any) time.Time {
	if ts, ok := rec.(Timestamped); ok {
		return ts.SortTime()
	}
	return time.Time{}
}
