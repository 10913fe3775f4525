package backfill

import (
	"sort"
	"time"
)

// Gap is a half-open time interval [Start, End) with no stored coverage.
type Gap struct {
	Start time.Time
	End   time.Time
}

// ComputeGaps returns the sub-intervals of [start, end) not covered by
// the stored timestamps. Records closer together than the threshold are
// treated as contiguous so a single message does not trigger a refetch
// of its whole neighborhood. The stretch before the first record and
// after the last one is always a gap.
func ComputeGaps(start, end time.Time, stamps []time.Time, threshold time.Duration) []Gap {
	if !start.Before(end) {
		return nil
	}

	inRange := make([]time.Time, 0, len(stamps))
	for _, t := range stamps {
		if !t.Before(start) && t.Before(end) {
			inRange = append(inRange, t)
		}
	}
	sort.Slice(inRange, func(i, j int) bool { return inRange[i].Before(inRange[j]) })

	if len(inRange) == 0 {
		return []Gap{{Start: start, End: end}}
	}

	var gaps []Gap
	if first := inRange[0]; first.After(start) {
		gaps = append(gaps, Gap{Start: start, End: first})
	}
	for i := 0; i+1 < len(inRange); i++ {
		if inRange[i+1].Sub(inRange[i]) > threshold {
			gaps = append(gaps, Gap{Start: inRange[i], End: inRange[i+1]})
		}
	}
	if last := inRange[len(inRange)-1]; last.Before(end) {
		gaps = append(gaps, Gap{Start: last, End: end})
	}
	return gaps
}
