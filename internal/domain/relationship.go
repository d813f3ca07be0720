package domain

import "time"

// RelationshipCategory is the closed set of relationship categories.
type RelationshipCategory string

const (
	CategoryFamily    RelationshipCategory = "FAMILY"
	CategoryInvestor  RelationshipCategory = "INVESTOR"
	CategoryFriend    RelationshipCategory = "FRIEND"
	CategoryClient    RelationshipCategory = "CLIENT"
	CategoryBoard     RelationshipCategory = "BOARD"
	CategoryColleague RelationshipCategory = "COLLEAGUE"
	CategoryOther     RelationshipCategory = "OTHER"
)

// DefaultClosenessWeight is the default weight for a new relationship.
const DefaultClosenessWeight = 0.5

// Relationship is one tracked contact, keyed by an opaque participant hash
// rather than a raw email address.
type Relationship struct {
	RelationshipID             string
	ParticipantHash            string
	DisplayName                string
	Category                   RelationshipCategory
	ClosenessWeight            float64
	City                       string
	Timezone                   string
	InteractionFrequencyTarget int // days
	LastInteractionTS          *time.Time
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}

// InteractionOutcome is the closed set of ledger outcomes.
type InteractionOutcome string

const (
	OutcomeAttended             InteractionOutcome = "ATTENDED"
	OutcomeCanceledByThem       InteractionOutcome = "CANCELED_BY_THEM"
	OutcomeCanceledByMe         InteractionOutcome = "CANCELED_BY_ME"
	OutcomeNoShowThem           InteractionOutcome = "NO_SHOW_THEM"
	OutcomeNoShowMe             InteractionOutcome = "NO_SHOW_ME"
	OutcomeMovedLastMinuteThem  InteractionOutcome = "MOVED_LAST_MINUTE_THEM"
	OutcomeMovedLastMinuteMe    InteractionOutcome = "MOVED_LAST_MINUTE_ME"
)

// OutcomeWeight is the fixed weight table from spec §3.5. Ledger weights are
// derived, never user-supplied, so the map is fixed package data rather than
// a config knob.
var OutcomeWeight = map[InteractionOutcome]float64{
	OutcomeAttended:            1.0,
	OutcomeCanceledByThem:      -0.5,
	OutcomeCanceledByMe:        0.0,
	OutcomeNoShowThem:          -1.0,
	OutcomeNoShowMe:            0.0,
	OutcomeMovedLastMinuteThem: -0.3,
	OutcomeMovedLastMinuteMe:   0.0,
}

// LedgerEntry is one append-only interaction outcome row.
type LedgerEntry struct {
	LedgerID         string
	ParticipantHash  string
	Outcome          InteractionOutcome
	Weight           float64
	CanonicalEventID *string
	Note             string
	TS               time.Time
}

// MilestoneKind is the closed set of milestone kinds.
type MilestoneKind string

const (
	MilestoneBirthday   MilestoneKind = "birthday"
	MilestoneAnniversary MilestoneKind = "anniversary"
	MilestoneGraduation MilestoneKind = "graduation"
	MilestoneFunding    MilestoneKind = "funding"
	MilestoneRelocation MilestoneKind = "relocation"
	MilestoneCustom     MilestoneKind = "custom"
)

// Milestone is a per-relationship personal date.
type Milestone struct {
	MilestoneID     string
	ParticipantHash string
	Kind            MilestoneKind
	Date            string // YYYY-MM-DD
	RecursAnnually  bool
	Note            string
	CreatedAt       time.Time
}

// DriftAlert is one row of the replaceable drift-alert snapshot.
type DriftAlert struct {
	ParticipantHash string
	Urgency         float64
	DriftRatio      float64
	DaysOverdue     int
	Category        RelationshipCategory
	ComputedAt      time.Time
}

// ReputationScore is the computed, non-persisted decay-weighted view of one
// relationship's ledger.
type ReputationScore struct {
	ParticipantHash  string
	ReliabilityScore float64
	ReciprocityScore float64
}

// ReconnectionSuggestion is a data-only report entry for an overdue
// relationship located in a requested city.
type ReconnectionSuggestion struct {
	ParticipantHash        string
	DisplayName            string
	City                   string
	DaysOverdue            int
	SuggestedDurationMin   int
	SuggestedTimeWindow    *TimeWindow
	TimezoneMeetingWindow  *TimezoneMeetingWindow
}

// TimeWindow is a half-open [Start, End) span.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// TimezoneMeetingWindow reports the UTC working-hour overlap between a user
// and a contact's timezone.
type TimezoneMeetingWindow struct {
	UserTimezone    string
	ContactTimezone string
	OverlapStartUTC string // HH:MM
	OverlapEndUTC   string // HH:MM
	HasOverlap      bool
}
