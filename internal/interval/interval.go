// Package interval implements half-open [start, end) time interval
// arithmetic: overlap tests, clipping, busy-block merging and the
// free/busy partition of a query window.
package interval

import (
	"sort"
	"time"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether the interval has positive length.
func (iv Interval) Valid() bool {
	return iv.End.After(iv.Start)
}

// Overlaps reports whether two intervals share any instant.
// Touching intervals ([a,b) and [b,c)) do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && iv.End.After(other.Start)
}

// Clip restricts the interval to the given bounds. The second return
// value is false when the interval lies entirely outside the bounds.
func (iv Interval) Clip(bounds Interval) (Interval, bool) {
	if !iv.Overlaps(bounds) {
		return Interval{}, false
	}
	out := iv
	if out.Start.Before(bounds.Start) {
		out.Start = bounds.Start
	}
	if out.End.After(bounds.End) {
		out.End = bounds.End
	}
	return out, true
}

// Busy is an occupied interval annotated with the occupancy source,
// e.g. "booked" for an internal reservation or "calendar" for an
// external busy block.
type Busy struct {
	Interval
	Reason string
}

// Span is one segment of a partitioned query window.
type Span struct {
	Interval
	Available bool
	Reason    string
}

// MergeBusy sorts busy blocks by start time and coalesces any that
// touch or overlap. The reason of the earliest block in a run wins.
// The input slice is not modified.
func MergeBusy(blocks []Busy) []Busy {
	if len(blocks) == 0 {
		return nil
	}
	sorted := make([]Busy, len(blocks))
	copy(sorted, blocks)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := []Busy{sorted[0]}
	for _, b := range sorted[1:] {
		last := &merged[len(merged)-1]
		// start <= previous end: touching blocks coalesce too.
		if !b.Start.After(last.End) {
			if b.End.After(last.End) {
				last.End = b.End
			}
			continue
		}
		merged = append(merged, b)
	}
	return merged
}

// Partition splits the query window into an ordered, contiguous,
// non-overlapping sequence of free and busy spans whose union is
// exactly the window. Busy blocks outside the window are discarded,
// blocks straddling a boundary are clipped.
func Partition(window Interval, blocks []Busy) []Span {
	if !window.Valid() {
		return nil
	}

	var clipped []Busy
	for _, b := range blocks {
		if !b.Valid() {
			continue
		}
		iv, ok := b.Clip(window)
		if !ok {
			continue
		}
		clipped = append(clipped, Busy{Interval: iv, Reason: b.Reason})
	}

	var spans []Span
	cursor := window.Start
	for _, b := range MergeBusy(clipped) {
		if b.Start.After(cursor) {
			spans = append(spans, Span{
				Interval:  Interval{Start: cursor, End: b.Start},
				Available: true,
			})
		}
		spans = append(spans, Span{Interval: b.Interval, Reason: b.Reason})
		cursor = b.End
	}
	if cursor.Before(window.End) {
		spans = append(spans, Span{
			Interval:  Interval{Start: cursor, End: window.End},
			Available: true,
		})
	}
	return spans
}
