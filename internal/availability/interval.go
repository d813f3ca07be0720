// Package availability implements the eight-stage busy/free interval
// pipeline (spec §4.4) and its derived analytics views (deep-work blocks,
// context switches, cognitive load, risk scores, probabilistic
// availability). The merge/complement core is pure interval algebra over
// closed-open intervals; everything upstream of it (raw events, working
// hours, trips, buffers, milestones) is produced by internal/constraintengine
// and fed in as domain.BusyInterval values.
package availability

import (
	"sort"
	"time"

	"tminus/internal/domain"
)

// zeroDurationTolerance absorbs slivers from DST/time-normalization
// boundaries; a "free" gap narrower than this is not surfaced, per spec
// §4.4's "must not emit spurious free slivers ... from pure format
// differences."
const zeroDurationTolerance = 60 * time.Second

// Merge unions all busy intervals by start, coalescing overlapping or
// touching ([a,b] and [b,c] share the boundary b) intervals. The
// coalesced interval's account_ids is the set-union of its inputs'.
func Merge(intervals []domain.BusyInterval) []domain.BusyInterval {
	if len(intervals) == 0 {
		return nil
	}
	sorted := make([]domain.BusyInterval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	merged := []domain.BusyInterval{sorted[0]}
	for _, cur := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !cur.Start.After(last.End) {
			if cur.End.After(last.End) {
				last.End = cur.End
			}
			last.AccountIDs = unionAccounts(last.AccountIDs, cur.AccountIDs)
			continue
		}
		merged = append(merged, cur)
	}
	return merged
}

func unionAccounts(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, id := range append(append([]string{}, a...), b...) {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Complement returns [windowStart, windowEnd] minus the (already merged,
// sorted) busy intervals, dropping any resulting gap narrower than
// zeroDurationTolerance.
func Complement(windowStart, windowEnd time.Time, busy []domain.BusyInterval) []domain.FreeInterval {
	var free []domain.FreeInterval
	cursor := windowStart

	for _, b := range busy {
		s, e := b.Start, b.End
		if e.Before(windowStart) || s.After(windowEnd) {
			continue
		}
		if s.Before(windowStart) {
			s = windowStart
		}
		if e.After(windowEnd) {
			e = windowEnd
		}
		if s.After(cursor) && s.Sub(cursor) >= zeroDurationTolerance {
			free = append(free, domain.FreeInterval{Start: cursor, End: s})
		}
		if e.After(cursor) {
			cursor = e
		}
	}
	if windowEnd.After(cursor) && windowEnd.Sub(cursor) >= zeroDurationTolerance {
		free = append(free, domain.FreeInterval{Start: cursor, End: windowEnd})
	}
	return free
}
