package appointment

import (
	"sort"
	"time"
)

// Interval is a half-open time range [Start, End). Half-open boundaries mean
// back-to-back bookings never count as overlapping.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether two half-open intervals intersect.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Contains reports whether t lies inside the interval.
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

// Duration returns End - Start.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Merge sorts intervals by start and folds overlapping or touching ones into
// a single interval, extending the end with the max seen so far. Touching
// counts: [9, 10) and [10, 11) merge into [9, 11). The input is not
// modified; the result is ascending and pairwise disjoint.
func Merge(intervals []Interval) []Interval {
	if len(intervals) == 0 {
		return nil
	}
	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// Subtract removes busy time from base and returns the remaining free
// intervals. base must be sorted and disjoint (Merge output qualifies);
// busy may be arbitrary and is merged first. A busy interval fully covering
// a base interval leaves no gap for it; busy time disjoint from base leaves
// base unchanged.
func Subtract(base, busy []Interval) []Interval {
	if len(base) == 0 {
		return nil
	}
	busy = Merge(busy)

	var free []Interval
	for _, b := range base {
		cursor := b.Start
		for _, bz := range busy {
			if !bz.Start.Before(b.End) || !bz.End.After(b.Start) {
				continue
			}
			if bz.Start.After(cursor) {
				free = append(free, Interval{Start: cursor, End: bz.Start})
			}
			if bz.End.After(cursor) {
				cursor = bz.End
			}
		}
		if cursor.Before(b.End) {
			free = append(free, Interval{Start: cursor, End: b.End})
		}
	}
	return free
}
