// Package interval provides the time-interval algebra used to compute which
// parts of a check-in window are not yet covered by previously seen data.
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

// Empty reports whether the interval has no duration.
func (iv Interval) Empty() bool {
	return !iv.Start.Before(iv.End)
}

// Duration returns End - Start, or zero for empty intervals.
func (iv Interval) Duration() time.Duration {
	if iv.Empty() {
		return 0
	}
	return iv.End.Sub(iv.Start)
}

// Overlaps reports whether the two intervals share any non-zero duration.
// Exact boundary touches do not count as overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Intersect returns the overlap of the two intervals. ok is false when the
// overlap is empty.
func (iv Interval) Intersect(other Interval) (Interval, bool) {
	start := iv.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := iv.End
	if other.End.Before(end) {
		end = other.End
	}
	out := Interval{Start: start, End: end}
	return out, !out.Empty()
}

// Subtract returns the sub-intervals of candidate not covered by any
// interval in covering. The covering set need not be sorted or disjoint.
// Zero-duration remainders are discarded and the result is sorted by start.
func Subtract(candidate Interval, covering []Interval) []Interval {
	if candidate.Empty() {
		return nil
	}

	sorted := make([]Interval, len(covering))
	copy(sorted, covering)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	result := []Interval{candidate}
	for _, c := range sorted {
		cut, ok := c.Intersect(candidate)
		if !ok {
			continue
		}
		next := make([]Interval, 0, len(result)+1)
		for _, w := range result {
			if !w.Overlaps(cut) {
				next = append(next, w)
				continue
			}
			// Punch the intersection out of the working interval, keeping
			// whichever of the two remainders is non-empty.
			if w.Start.Before(cut.Start) {
				next = append(next, Interval{Start: w.Start, End: cut.Start})
			}
			if cut.End.Before(w.End) {
				next = append(next, Interval{Start: cut.End, End: w.End})
			}
		}
		result = next
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Start.Before(result[j].Start) })
	return result
}
