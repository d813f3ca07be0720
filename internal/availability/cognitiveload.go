package availability

import (
	"time"

	"tminus/internal/domain"
)

// CognitiveLoad is a per-day scalar derived from event density and category
// mix. There is no authoritative unit for this figure in spec §4.4 beyond
// "a scalar that rises with density and with category diversity"; this
// implementation scores density on a 0..1 saturating scale and adds the
// per-day context-switch cost computed in ContextSwitches.
type CognitiveLoad struct {
	Date           string
	EventCount     int
	BusyHours      float64
	SwitchCost     float64
	Score          float64
}

// densitySaturationHours is the busy-hours figure at which the density
// component of the score saturates at 1.0.
const densitySaturationHours = 8.0

// CognitiveLoadByDay computes one scalar per calendar day spanned by events.
func CognitiveLoadByDay(events []*domain.CanonicalEvent) []CognitiveLoad {
	switches := ContextSwitches(events)
	switchByDay := make(map[string]float64, len(switches))
	for _, s := range switches {
		switchByDay[s.Date] = s.TotalCost
	}

	byDay := groupByDay(events)
	days := sortedDayKeys(byDay)

	var out []CognitiveLoad
	for _, day := range days {
		dayEvents := byDay[day]
		var busy time.Duration
		for _, e := range dayEvents {
			busy += e.EndTS.Sub(e.StartTS)
		}
		density := busy.Hours() / densitySaturationHours
		if density > 1 {
			density = 1
		}
		switchCost := switchByDay[day]
		out = append(out, CognitiveLoad{
			Date:       day,
			EventCount: len(dayEvents),
			BusyHours:  busy.Hours(),
			SwitchCost: switchCost,
			Score:      density + switchCost,
		})
	}
	return out
}

// WeeklyCognitiveLoad aggregates the per-day scores into one weekly figure
// (mean of the days present).
func WeeklyCognitiveLoad(days []CognitiveLoad) float64 {
	if len(days) == 0 {
		return 0
	}
	var sum float64
	for _, d := range days {
		sum += d.Score
	}
	return sum / float64(len(days))
}
