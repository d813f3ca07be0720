package relationshipengine

import (
	"sort"
	"time"

	"tminus/internal/domain"
)

// Drift computes overdue-contact alerts for every relationship that carries
// a frequency target. A relationship with no recorded interaction yet uses
// its created_at as the baseline. Only relationships with days_overdue > 0
// are returned, sorted by urgency descending, per spec §4.5.
func Drift(relationships []*domain.Relationship, now time.Time) []domain.DriftAlert {
	var alerts []domain.DriftAlert
	for _, r := range relationships {
		if r.InteractionFrequencyTarget <= 0 {
			continue
		}

		baseline := r.CreatedAt
		if r.LastInteractionTS != nil {
			baseline = *r.LastInteractionTS
		}
		daysSince := now.Sub(baseline).Hours() / 24
		if daysSince < 0 {
			daysSince = 0
		}

		daysOverdue := daysSince - float64(r.InteractionFrequencyTarget)
		if daysOverdue <= 0 {
			continue
		}

		urgency := daysOverdue * r.ClosenessWeight
		driftRatio := daysSince / float64(r.InteractionFrequencyTarget)

		alerts = append(alerts, domain.DriftAlert{
			ParticipantHash: r.ParticipantHash,
			Urgency:         urgency,
			DriftRatio:      driftRatio,
			DaysOverdue:     int(daysOverdue),
			Category:        r.Category,
			ComputedAt:      now,
		})
	}

	sort.Slice(alerts, func(i, j int) bool { return alerts[i].Urgency > alerts[j].Urgency })
	return alerts
}
