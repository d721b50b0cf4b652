package rules

import (
	"sort"
	"sync/atomic"
)

// Snapshot is one frozen, priority-sorted rule set merged from the
// override and base layers. A run holds a single snapshot for its whole
// duration; newly appended overrides only appear in snapshots built
// afterwards.
type Snapshot struct {
	rules       []Rule
	maxPriority int
}

// NewSnapshot merges base and override rules, tags their origin, and
// sorts by priority descending then id ascending so the scan order is
// fully deterministic regardless of file order.
func NewSnapshot(base, overrides []Rule) *Snapshot {
	merged := make([]Rule, 0, len(base)+len(overrides))
	for _, r := range base {
		if r.Valid() {
			r.Origin = OriginBase
			merged = append(merged, r)
		}
	}
	for _, r := range overrides {
		if r.Valid() {
			r.Origin = OriginOverride
			merged = append(merged, r)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Priority != merged[j].Priority {
			return merged[i].Priority > merged[j].Priority
		}
		return merged[i].ID < merged[j].ID
	})

	maxP := 0
	for _, r := range merged {
		if r.Priority > maxP {
			maxP = r.Priority
		}
	}
	return &Snapshot{rules: merged, maxPriority: maxP}
}

// Rules returns the scan-ordered rule slice. Callers must not mutate it.
func (s *Snapshot) Rules() []Rule { return s.rules }

// MaxPriority is the highest priority currently loaded; generated
// override rules must exceed it.
func (s *Snapshot) MaxPriority() int { return s.maxPriority }

// Len returns the number of rules in the snapshot.
func (s *Snapshot) Len() int { return len(s.rules) }

// Source publishes the current snapshot and swaps in replacements
// atomically, so an in-flight run never observes a half-updated set.
type Source struct {
	ptr atomic.Pointer[Snapshot]
}

func NewSource(snap *Snapshot) *Source {
	src := &Source{}
	if snap == nil {
		snap = NewSnapshot(nil, nil)
	}
	src.ptr.Store(snap)
	return src
}

// Current returns the snapshot for a new run to freeze on.
func (s *Source) Current() *Snapshot { return s.ptr.Load() }

// Swap publishes a new snapshot for future runs.
func (s *Source) Swap(snap *Snapshot) {
	if snap != nil {
		s.ptr.Store(snap)
	}
}
