package availability

import (
	"time"

	"tminus/internal/domain"
)

// ProbabilisticSlot reports the likelihood that a nominally busy interval
// will actually turn out free, for tentative events whose attendance is
// uncertain. Hard (confirmed) busy intervals never appear here; they are
// certain and belong in Result.BusyIntervals.
type ProbabilisticSlot struct {
	Start         time.Time
	End           time.Time
	ProbabilityFree float64
	Reason          string
}

// ProbabilisticAvailability scores tentative events by the reliability of
// their participants: an event organized around unreliable participants is
// more likely to fall through and free up the slot. Events with no
// participant reputation on file get a neutral 0.5 probability-of-free.
func ProbabilisticAvailability(tentative []*domain.CanonicalEvent, reputations map[string]domain.ReputationScore) []ProbabilisticSlot {
	var out []ProbabilisticSlot
	for _, e := range tentative {
		if e.Status != domain.EventTentative {
			continue
		}

		probFree := 0.5
		if len(e.ParticipantHashes) > 0 {
			var sum float64
			var n int
			for _, hash := range e.ParticipantHashes {
				if rep, ok := reputations[hash]; ok {
					sum += 1 - rep.ReliabilityScore
					n++
				}
			}
			if n > 0 {
				probFree = sum / float64(n)
			}
		}

		out = append(out, ProbabilisticSlot{
			Start:           e.StartTS,
			End:             e.EndTS,
			ProbabilityFree: probFree,
			Reason:          "tentative_event_participant_reliability",
		})
	}
	return out
}
