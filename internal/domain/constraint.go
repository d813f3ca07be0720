package domain

import "time"

// ConstraintKind discriminates the polymorphic constraint variants.
type ConstraintKind string

const (
	ConstraintTrip            ConstraintKind = "trip"
	ConstraintWorkingHours    ConstraintKind = "working_hours"
	ConstraintBuffer          ConstraintKind = "buffer"
	ConstraintNoMeetingsAfter ConstraintKind = "no_meetings_after"
	ConstraintOverride        ConstraintKind = "override"
	ConstraintMilestone       ConstraintKind = "milestone"
)

// BlockPolicy controls the title a projected trip event carries.
type BlockPolicy string

const (
	BlockPolicyBusy  BlockPolicy = "BUSY"
	BlockPolicyTitle BlockPolicy = "TITLE"
)

// BufferType names which side of an event a buffer constraint pads.
type BufferType string

const (
	BufferTravel   BufferType = "travel"
	BufferPrep     BufferType = "prep"
	BufferCooldown BufferType = "cooldown"
)

// BufferAppliesTo narrows which events a buffer constraint expands against.
type BufferAppliesTo string

const (
	BufferAppliesAll      BufferAppliesTo = "all"
	BufferAppliesExternal BufferAppliesTo = "external"
)

// Constraint is the common envelope for every variant; variant-specific
// fields live in ConfigJSON and are validated by the matching config struct
// (TripConfig, WorkingHoursConfig, ...) in internal/constraintengine.
type Constraint struct {
	ConstraintID string
	Kind         ConstraintKind
	ConfigJSON   string
	ActiveFrom   *time.Time
	ActiveTo     *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TripConfig is the config_json payload for a "trip" constraint.
type TripConfig struct {
	Name            string      `json:"name" validate:"required"`
	Timezone        string      `json:"timezone" validate:"required"`
	BlockPolicy     BlockPolicy `json:"block_policy" validate:"required,oneof=BUSY TITLE"`
	DestinationCity string      `json:"destination_city,omitempty"`
}

// WorkingHoursConfig is the config_json payload for a "working_hours"
// constraint.
type WorkingHoursConfig struct {
	Days      []int  `json:"days" validate:"required,min=1,max=7,dive,min=0,max=6"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	Timezone  string `json:"timezone" validate:"required"`
}

// BufferConfig is the config_json payload for a "buffer" constraint.
type BufferConfig struct {
	Type      BufferType      `json:"type" validate:"required,oneof=travel prep cooldown"`
	Minutes   int             `json:"minutes" validate:"required,gt=0"`
	AppliesTo BufferAppliesTo `json:"applies_to" validate:"required,oneof=all external"`
}

// NoMeetingsAfterConfig is the config_json payload for a
// "no_meetings_after" constraint.
type NoMeetingsAfterConfig struct {
	CutoffTime string `json:"cutoff_time" validate:"required"`
	Timezone   string `json:"timezone" validate:"required"`
}

// OverrideConfig is the config_json payload for a free-form "override"
// constraint.
type OverrideConfig struct {
	Reason string `json:"reason" validate:"required"`
}

// MilestoneConstraintConfig links a "milestone" constraint to a relationship
// milestone, enabling it to participate in availability expansion the same
// way the other variants do.
type MilestoneConstraintConfig struct {
	MilestoneID string `json:"milestone_id" validate:"required"`
}

// BusyInterval is one contribution to the availability engine's busy list.
type BusyInterval struct {
	Start      time.Time
	End        time.Time
	AccountIDs []string
	Tag        string
}

// FreeInterval is one gap in the merged busy schedule.
type FreeInterval struct {
	Start time.Time
	End   time.Time
}
