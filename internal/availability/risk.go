package availability

import (
	"time"

	"tminus/internal/domain"
)

// EventRisk is the expected-attendance risk for one upcoming event, derived
// from the reputation of its participants.
type EventRisk struct {
	CanonicalEventID string
	StartTS          time.Time
	RiskScore        float64 // 0 (safe) .. 1 (likely to fall through)
	DrivenBy         []string
}

// RiskScores walks events in [now, now+weeks) and scores each one's
// likelihood of falling through from the reliability of its participants.
// A participant with no tracked reputation contributes a neutral 0.5.
func RiskScores(events []*domain.CanonicalEvent, reputations map[string]domain.ReputationScore, now time.Time, weeks int) []EventRisk {
	horizon := now.AddDate(0, 0, weeks*7)

	var out []EventRisk
	for _, e := range events {
		if e.StartTS.Before(now) || !e.StartTS.Before(horizon) {
			continue
		}
		if e.Status == domain.EventCancelled {
			continue
		}
		if len(e.ParticipantHashes) == 0 {
			continue
		}

		var sum float64
		var driven []string
		for _, hash := range e.ParticipantHashes {
			rep, ok := reputations[hash]
			reliability := 0.5
			if ok {
				reliability = rep.ReliabilityScore
			}
			sum += 1 - reliability
			if reliability < 0.5 {
				driven = append(driven, hash)
			}
		}
		avg := sum / float64(len(e.ParticipantHashes))

		out = append(out, EventRisk{
			CanonicalEventID: e.CanonicalEventID,
			StartTS:          e.StartTS,
			RiskScore:        avg,
			DrivenBy:         driven,
		})
	}
	return out
}
