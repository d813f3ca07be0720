package constraintengine

import (
	"encoding/json"
	"time"

	"tminus/internal/apperrors"
	"tminus/internal/domain"
)

// ExpandWorkingHours generates busy intervals for the complement of working
// hours within [start, end], tagged "working_hours". Each day's local
// HH:MM boundary is resolved independently against cfg.Timezone so the
// offset used is correct even across a DST transition inside the window.
func ExpandWorkingHours(cfg domain.WorkingHoursConfig, start, end time.Time) ([]domain.BusyInterval, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, apperrors.Validation("timezone", "not a recognized IANA timezone: "+cfg.Timezone)
	}
	allowedDays := make(map[int]bool, len(cfg.Days))
	for _, d := range cfg.Days {
		allowedDays[d] = true
	}

	var intervals []domain.BusyInterval
	dayCursor := start.In(loc)
	dayCursor = time.Date(dayCursor.Year(), dayCursor.Month(), dayCursor.Day(), 0, 0, 0, 0, loc)

	for dayCursor.Before(end) {
		dayStart := dayCursor
		dayEnd := dayCursor.AddDate(0, 0, 1)

		if !allowedDays[int(dayStart.Weekday())] {
			intervals = append(intervals, clampedBusy(dayStart, dayEnd, start, end, "working_hours"))
			dayCursor = dayEnd
			continue
		}

		workStart, err := timeOnDay(dayStart, cfg.StartTime, loc)
		if err != nil {
			return nil, err
		}
		workEnd, err := timeOnDay(dayStart, cfg.EndTime, loc)
		if err != nil {
			return nil, err
		}

		if workStart.After(dayStart) {
			intervals = append(intervals, clampedBusy(dayStart, workStart, start, end, "working_hours"))
		}
		if workEnd.Before(dayEnd) {
			intervals = append(intervals, clampedBusy(workEnd, dayEnd, start, end, "working_hours"))
		}

		dayCursor = dayEnd
	}
	return nonEmpty(intervals), nil
}

func timeOnDay(day time.Time, hhmm string, loc *time.Location) (time.Time, error) {
	parsed, err := time.ParseInLocation("15:04", hhmm, loc)
	if err != nil {
		return time.Time{}, apperrors.Internal("parse HH:MM", err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), parsed.Hour(), parsed.Minute(), 0, 0, loc), nil
}

func clampedBusy(s, en, windowStart, windowEnd time.Time, tag string) domain.BusyInterval {
	if s.Before(windowStart) {
		s = windowStart
	}
	if en.After(windowEnd) {
		en = windowEnd
	}
	return domain.BusyInterval{Start: s, End: en, Tag: tag}
}

func nonEmpty(intervals []domain.BusyInterval) []domain.BusyInterval {
	out := make([]domain.BusyInterval, 0, len(intervals))
	for _, iv := range intervals {
		if iv.End.After(iv.Start) {
			out = append(out, iv)
		}
	}
	return out
}

// ExpandTrip clamps a trip constraint's active window to [start, end] and
// emits one busy interval tagged "trip", if the constraint's window
// intersects the requested window at all.
func ExpandTrip(c *domain.Constraint, start, end time.Time) []domain.BusyInterval {
	if c.ActiveFrom == nil || c.ActiveTo == nil {
		return nil
	}
	if c.ActiveTo.Before(start) || c.ActiveFrom.After(end) {
		return nil
	}
	s, e := *c.ActiveFrom, *c.ActiveTo
	if s.Before(start) {
		s = start
	}
	if e.After(end) {
		e = end
	}
	if !e.After(s) {
		return nil
	}
	return []domain.BusyInterval{{Start: s, End: e, Tag: "trip"}}
}

// ExpandNoMeetingsAfter emits, for each date in [start, end], a busy
// interval from the cutoff time that day to the earlier of next-day
// midnight or the window end, tagged "no_meetings_after".
func ExpandNoMeetingsAfter(cfg domain.NoMeetingsAfterConfig, start, end time.Time) ([]domain.BusyInterval, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, apperrors.Validation("timezone", "not a recognized IANA timezone: "+cfg.Timezone)
	}
	var intervals []domain.BusyInterval
	dayCursor := start.In(loc)
	dayCursor = time.Date(dayCursor.Year(), dayCursor.Month(), dayCursor.Day(), 0, 0, 0, 0, loc)

	for dayCursor.Before(end) {
		cutoff, err := timeOnDay(dayCursor, cfg.CutoffTime, loc)
		if err != nil {
			return nil, err
		}
		nextMidnight := dayCursor.AddDate(0, 0, 1)
		busyEnd := nextMidnight
		if busyEnd.After(end) {
			busyEnd = end
		}
		if busyEnd.After(cutoff) {
			s := cutoff
			if s.Before(start) {
				s = start
			}
			if busyEnd.After(s) {
				intervals = append(intervals, domain.BusyInterval{Start: s, End: busyEnd, Tag: "no_meetings_after"})
			}
		}
		dayCursor = nextMidnight
	}
	return intervals, nil
}

// ExpandBuffers emits before- or after-event padding intervals for every
// raw event matching cfg.AppliesTo, tagged "buffer". travel/prep buffers
// pad before the event; cooldown pads after.
func ExpandBuffers(cfg domain.BufferConfig, events []*domain.CanonicalEvent) []domain.BusyInterval {
	duration := time.Duration(cfg.Minutes) * time.Minute
	var intervals []domain.BusyInterval
	for _, e := range events {
		if cfg.AppliesTo == domain.BufferAppliesExternal && e.OriginAccountID == domain.InternalAccountID {
			continue
		}
		if cfg.Type == domain.BufferCooldown {
			intervals = append(intervals, domain.BusyInterval{
				Start: e.EndTS, End: e.EndTS.Add(duration), Tag: "buffer",
			})
		} else {
			intervals = append(intervals, domain.BusyInterval{
				Start: e.StartTS.Add(-duration), End: e.StartTS, Tag: "buffer",
			})
		}
	}
	return intervals
}

// ExpandMilestone emits an all-day busy interval for each occurrence of a
// milestone's date that falls within [start, end]. Annual recurrence is
// applied per year the window spans.
func ExpandMilestone(m *domain.Milestone, start, end time.Time) ([]domain.BusyInterval, error) {
	base, err := time.Parse("2006-01-02", m.Date)
	if err != nil {
		return nil, apperrors.Internal("parse milestone date", err)
	}

	var intervals []domain.BusyInterval
	if !m.RecursAnnually {
		dayStart := time.Date(base.Year(), base.Month(), base.Day(), 0, 0, 0, 0, time.UTC)
		dayEnd := dayStart.AddDate(0, 0, 1)
		if overlaps(dayStart, dayEnd, start, end) {
			intervals = append(intervals, domain.BusyInterval{Start: dayStart, End: dayEnd, Tag: "milestones"})
		}
		return intervals, nil
	}

	for year := start.Year() - 1; year <= end.Year()+1; year++ {
		dayStart := time.Date(year, base.Month(), base.Day(), 0, 0, 0, 0, time.UTC)
		dayEnd := dayStart.AddDate(0, 0, 1)
		if overlaps(dayStart, dayEnd, start, end) {
			intervals = append(intervals, domain.BusyInterval{Start: dayStart, End: dayEnd, Tag: "milestones"})
		}
	}
	return intervals, nil
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// DecodeConfig is a small helper re-exported for callers (the availability
// engine) that already validated a constraint and now need its typed
// config back out of config_json.
func DecodeConfig(kind domain.ConstraintKind, configJSON string, dest interface{}) error {
	if err := json.Unmarshal([]byte(configJSON), dest); err != nil {
		return apperrors.Internal("decode "+string(kind)+" config", err)
	}
	return nil
}
