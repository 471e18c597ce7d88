// Package availability maintains a per-resource, start-ordered projection of
// committed booking intervals. The index is derived state: the booking ledger
// remains the source of truth and the index can be rebuilt from it at any
// time. Readers take per-resource read locks, so queries against one resource
// never contend with commits on another.
package availability

import (
	"sort"
	"sync"
	"time"

	"github.com/example/campus-booking/internal/interval"
)

// Entry is one committed interval in the index, tagged with the booking that
// owns it so conflict reports can identify the offending reservation.
type Entry struct {
	BookingID string
	Interval  interval.Interval
}

// Index holds one ordered interval set per resource.
type Index struct {
	mu        sync.RWMutex
	resources map[string]*resourceSet
}

// resourceSet is the per-resource ordered entry slice. Entries are kept
// sorted by start; since committed entries never overlap, start order is
// also end order.
type resourceSet struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewIndex returns an empty availability index.
func NewIndex() *Index {
	return &Index{resources: make(map[string]*resourceSet)}
}

func (ix *Index) setFor(resourceID string, create bool) *resourceSet {
	ix.mu.RLock()
	set, ok := ix.resources[resourceID]
	ix.mu.RUnlock()
	if ok || !create {
		return set
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if set, ok = ix.resources[resourceID]; ok {
		return set
	}
	set = &resourceSet{}
	ix.resources[resourceID] = set
	return set
}

// Rebuild replaces the entire index content for a resource with the provided
// entries. Used at startup and after any repair.
func (ix *Index) Rebuild(resourceID string, entries []Entry) {
	set := ix.setFor(resourceID, true)

	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Interval.Start.Before(sorted[j].Interval.Start)
	})

	set.mu.Lock()
	set.entries = sorted
	set.mu.Unlock()
}

// Insert adds a committed entry, preserving start order.
func (ix *Index) Insert(resourceID string, entry Entry) {
	set := ix.setFor(resourceID, true)

	set.mu.Lock()
	defer set.mu.Unlock()

	pos := sort.Search(len(set.entries), func(i int) bool {
		return !set.entries[i].Interval.Start.Before(entry.Interval.Start)
	})
	set.entries = append(set.entries, Entry{})
	copy(set.entries[pos+1:], set.entries[pos:])
	set.entries[pos] = entry
}

// Remove drops the entry for a booking. Removing an absent booking is a no-op
// so cancellation stays idempotent at the index level.
func (ix *Index) Remove(resourceID, bookingID string) {
	set := ix.setFor(resourceID, false)
	if set == nil {
		return
	}

	set.mu.Lock()
	defer set.mu.Unlock()
	for i, entry := range set.entries {
		if entry.BookingID == bookingID {
			set.entries = append(set.entries[:i], set.entries[i+1:]...)
			return
		}
	}
}

// Replace swaps the interval recorded for a booking, preserving order. Used
// by extend, where only the end moves.
func (ix *Index) Replace(resourceID, bookingID string, iv interval.Interval) {
	ix.Remove(resourceID, bookingID)
	ix.Insert(resourceID, Entry{BookingID: bookingID, Interval: iv})
}

// HasConflict reports whether any committed interval on the resource overlaps
// the candidate.
func (ix *Index) HasConflict(resourceID string, candidate interval.Interval) bool {
	return len(ix.Conflicts(resourceID, candidate)) > 0
}

// Conflicts returns every committed entry overlapping the candidate, in start
// order. The result identifies the offending bookings so callers can attach
// them to conflict errors.
func (ix *Index) Conflicts(resourceID string, candidate interval.Interval) []Entry {
	set := ix.setFor(resourceID, false)
	if set == nil {
		return nil
	}

	set.mu.RLock()
	defer set.mu.RUnlock()

	// First entry that could overlap is the one preceding the first entry
	// starting at or after the candidate start.
	pos := sort.Search(len(set.entries), func(i int) bool {
		return !set.entries[i].Interval.Start.Before(candidate.Start)
	})
	if pos > 0 {
		pos--
	}

	var conflicts []Entry
	for _, entry := range set.entries[pos:] {
		if !entry.Interval.Start.Before(candidate.End) {
			break
		}
		if entry.Interval.Overlaps(candidate) {
			conflicts = append(conflicts, entry)
		}
	}
	return conflicts
}

// NextFree returns the first gap of at least minDuration starting at or after
// the given instant, or false when no such gap opens before the horizon.
// A zero horizon means the gap after the last committed interval is always
// acceptable.
func (ix *Index) NextFree(resourceID string, after time.Time, minDuration time.Duration, horizon time.Time) (interval.Interval, bool) {
	if minDuration <= 0 {
		return interval.Interval{}, false
	}
	after = after.UTC()

	cursor := after
	set := ix.setFor(resourceID, false)
	if set != nil {
		set.mu.RLock()
		for _, entry := range set.entries {
			if !entry.Interval.End.After(cursor) {
				continue
			}
			if entry.Interval.Start.Sub(cursor) >= minDuration {
				break
			}
			cursor = entry.Interval.End
		}
		set.mu.RUnlock()
	}

	if !horizon.IsZero() && cursor.Add(minDuration).After(horizon) {
		return interval.Interval{}, false
	}
	return interval.Interval{Start: cursor, End: cursor.Add(minDuration)}, true
}

// FreeSlots returns the gaps between committed intervals within the window,
// in start order. The window bounds the result: gaps are clipped to it.
func (ix *Index) FreeSlots(resourceID string, window interval.Interval) []interval.Interval {
	var slots []interval.Interval
	cursor := window.Start

	set := ix.setFor(resourceID, false)
	if set != nil {
		set.mu.RLock()
		for _, entry := range set.entries {
			if !entry.Interval.End.After(window.Start) {
				continue
			}
			if !entry.Interval.Start.Before(window.End) {
				break
			}
			if entry.Interval.Start.After(cursor) {
				slots = append(slots, interval.Interval{Start: cursor, End: entry.Interval.Start})
			}
			if entry.Interval.End.After(cursor) {
				cursor = entry.Interval.End
			}
		}
		set.mu.RUnlock()
	}

	if cursor.Before(window.End) {
		slots = append(slots, interval.Interval{Start: cursor, End: window.End})
	}
	return slots
}

// Entries returns a snapshot of the committed entries for a resource, in
// start order. Used by invariant checks and tests.
func (ix *Index) Entries(resourceID string) []Entry {
	set := ix.setFor(resourceID, false)
	if set == nil {
		return nil
	}
	set.mu.RLock()
	defer set.mu.RUnlock()
	out := make([]Entry, len(set.entries))
	copy(out, set.entries)
	return out
}
