// Package domain holds the plain value types shared by every engine package,
// following the teacher's habit of keeping domain structs free of storage or
// transport concerns (see the teacher's internal/app/domain/oracle/model.go).
package domain

import "time"

// EventStatus is the lifecycle status of a canonical event.
type EventStatus string

const (
	EventConfirmed EventStatus = "confirmed"
	EventTentative EventStatus = "tentative"
	EventCancelled EventStatus = "cancelled"
)

// Transparency marks whether an event occupies calendar time.
type Transparency string

const (
	Opaque      Transparency = "opaque"
	Transparent Transparency = "transparent"
)

// EventSource names where a canonical event originated.
type EventSource string

const (
	SourceProvider EventSource = "provider"
	SourceICSFeed  EventSource = "ics_feed"
	SourceSystem   EventSource = "system"
)

// InternalAccountID is the origin_account_id used for constraint-derived
// events, which have no real provider account.
const InternalAccountID = "internal"

// TrackedFields is the closed, compile-time set of canonical-event fields
// the authority engine tracks provenance for. Kept as a constant slice
// rather than reflecting over the struct, per the spec's "avoid type-erasing
// values through a generic bag" guidance.
var TrackedFields = []string{
	"title", "description", "location", "start_ts", "end_ts", "timezone",
	"status", "visibility", "transparency", "all_day", "recurrence_rule",
}

// CanonicalEvent is the merge-target for every provider source of one event.
type CanonicalEvent struct {
	CanonicalEventID string
	OriginAccountID  string
	OriginEventID    string

	Title           string
	Description     string
	Location        string
	StartTS         time.Time
	EndTS           time.Time
	Timezone        string
	Status          EventStatus
	Visibility      string
	Transparency    Transparency
	AllDay          bool
	RecurrenceRule  string
	Source          EventSource
	Version         int64
	ConstraintID    *string
	ParticipantHashes []string

	// AuthorityMarkers maps a tracked field name to the authority string
	// that last wrote it: "provider:<account>" or "tminus".
	AuthorityMarkers map[string]string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsDerived reports whether e is a constraint-projected event, which is
// owned by its constraint and never directly user-mutable.
func (e *CanonicalEvent) IsDerived() bool {
	return e.ConstraintID != nil && e.OriginAccountID == InternalAccountID
}

// FieldValue returns the current value of one tracked field as an
// interface{}, used by the authority engine's conflict comparison without
// reflecting over the whole struct.
func (e *CanonicalEvent) FieldValue(field string) interface{} {
	switch field {
	case "title":
		return e.Title
	case "description":
		return e.Description
	case "location":
		return e.Location
	case "start_ts":
		return e.StartTS
	case "end_ts":
		return e.EndTS
	case "timezone":
		return e.Timezone
	case "status":
		return e.Status
	case "visibility":
		return e.Visibility
	case "transparency":
		return e.Transparency
	case "all_day":
		return e.AllDay
	case "recurrence_rule":
		return e.RecurrenceRule
	default:
		return nil
	}
}

// MirrorStatus is the lifecycle state of an Event Mirror.
type MirrorStatus string

const (
	MirrorPending  MirrorStatus = "PENDING"
	MirrorSynced   MirrorStatus = "SYNCED"
	MirrorDeleting MirrorStatus = "DELETING"
	MirrorDeleted  MirrorStatus = "DELETED"
	MirrorFailed   MirrorStatus = "FAILED"
)

// EventMirror is a structural reference to a shadow copy of a canonical
// event living on another account's provider calendar. Mirrors are write
// targets only, never a data source.
type EventMirror struct {
	MirrorID         string
	CanonicalEventID string
	TargetAccountID  string
	TargetCalendarID string
	ProviderEventID  string
	Status           MirrorStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// JournalChangeType is the kind of a journal append.
type JournalChangeType string

const (
	ChangeCreated            JournalChangeType = "created"
	ChangeUpdated            JournalChangeType = "updated"
	ChangeDeleted            JournalChangeType = "deleted"
	ChangeAuthorityConflict  JournalChangeType = "authority_conflict"
)

// ConflictType narrows why a journal row carries a resolution.
type ConflictType string

const (
	ConflictNone          ConflictType = "none"
	ConflictFieldOverride ConflictType = "field_override"
)

// JournalEntry is one append-only audit row recording a canonical event
// mutation.
type JournalEntry struct {
	JournalID        string
	CanonicalEventID string
	TS               time.Time
	Actor            string
	ChangeType       JournalChangeType
	Reason           string
	PatchJSON        string
	ConflictType     ConflictType
	Resolution       *string
}

// FieldConflict records one field whose authority was overridden by an
// incoming delta from a different account.
type FieldConflict struct {
	Field             string      `json:"field"`
	CurrentAuthority  string      `json:"current_authority"`
	IncomingAuthority string      `json:"incoming_authority"`
	OldValue          interface{} `json:"old_value"`
	NewValue          interface{} `json:"new_value"`
}

// ConflictResolution is the patch payload for an authority_conflict journal
// row.
type ConflictResolution struct {
	Strategy  string          `json:"strategy"`
	Conflicts []FieldConflict `json:"conflicts"`
}
