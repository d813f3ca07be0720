// Package authority implements the field-level provenance model that
// decides, for every tracked field on a canonical event, who last wrote it
// — a provider account or the local authority "tminus" — and detects when
// an incoming provider delta silently overwrites a value tminus itself
// last touched. It is deliberately pure: no storage, no I/O, so the store
// and the dispatch layer can test it without a database.
package authority

import (
	"encoding/json"
	"fmt"

	"tminus/internal/domain"
)

// LocalAuthority is the marker used for fields tminus itself last wrote
// (constraint projections, manual edits), as opposed to a provider account.
const LocalAuthority = "tminus"

func providerAuthority(accountID string) string {
	return fmt.Sprintf("provider:%s", accountID)
}

// BuildMarkersForInsert marks every tracked, non-null field in fields as
// owned by accountID. Used when a canonical event is first created from a
// provider delta.
func BuildMarkersForInsert(accountID string, fields map[string]interface{}) map[string]string {
	markers := make(map[string]string, len(fields))
	authority := providerAuthority(accountID)
	for _, field := range domain.TrackedFields {
		if v, ok := fields[field]; ok && !isNil(v) {
			markers[field] = authority
		}
	}
	return markers
}

// UpdateMarkers overwrites the marker for every tracked field present and
// non-null in incoming to provider:accountID, retaining all others from
// current unchanged.
func UpdateMarkers(current map[string]string, accountID string, incoming map[string]interface{}) map[string]string {
	next := make(map[string]string, len(current)+len(incoming))
	for k, v := range current {
		next[k] = v
	}
	authority := providerAuthority(accountID)
	for _, field := range domain.TrackedFields {
		if v, ok := incoming[field]; ok && !isNil(v) {
			next[field] = authority
		}
	}
	return next
}

// EffectiveMarkers applies the backward-compatibility rule: an event with
// an empty marker set (legacy data) is treated at read time as if every
// non-null tracked field is owned by its current origin_account_id.
func EffectiveMarkers(e *domain.CanonicalEvent) map[string]string {
	if len(e.AuthorityMarkers) > 0 {
		return e.AuthorityMarkers
	}
	fallback := providerAuthority(e.OriginAccountID)
	markers := make(map[string]string)
	for _, field := range domain.TrackedFields {
		if v := e.FieldValue(field); !isNil(v) {
			markers[field] = fallback
		}
	}
	return markers
}

// DetectConflicts compares the effective markers against an incoming
// provider delta and returns one FieldConflict per tracked field whose
// current authority is not provider:accountID and whose post-write value
// would differ from the pre-write value. The caller still applies the
// write (provider-wins); this only reports what changed hands.
func DetectConflicts(e *domain.CanonicalEvent, accountID string, incoming map[string]interface{}) []domain.FieldConflict {
	current := EffectiveMarkers(e)
	incomingAuthority := providerAuthority(accountID)
	var conflicts []domain.FieldConflict

	for _, field := range domain.TrackedFields {
		newValue, present := incoming[field]
		if !present || isNil(newValue) {
			continue
		}
		currentAuthority, hasMarker := current[field]
		if !hasMarker || currentAuthority == incomingAuthority {
			continue
		}
		oldValue := e.FieldValue(field)
		if valuesEqual(oldValue, newValue) {
			continue
		}
		conflicts = append(conflicts, domain.FieldConflict{
			Field:             field,
			CurrentAuthority:  currentAuthority,
			IncomingAuthority: incomingAuthority,
			OldValue:          oldValue,
			NewValue:          newValue,
		})
	}
	return conflicts
}

// ResolutionJSON marshals the provider-wins resolution payload written into
// an authority_conflict journal row's resolution column.
func ResolutionJSON(conflicts []domain.FieldConflict) (string, error) {
	resolution := domain.ConflictResolution{
		Strategy:  "provider_wins",
		Conflicts: conflicts,
	}
	b, err := json.Marshal(resolution)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	switch t := v.(type) {
	case string:
		return t == ""
	case *string:
		return t == nil
	}
	return false
}

func valuesEqual(a, b interface{}) bool {
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}
