package authority

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tminus/internal/domain"
)

func TestBuildMarkersForInsert_OnlyNonNullTrackedFields(t *testing.T) {
	markers := BuildMarkersForInsert("acct-1", map[string]interface{}{
		"title":    "Standup",
		"location": "",
		"status":   "confirmed",
	})

	assert.Equal(t, "provider:acct-1", markers["title"])
	assert.Equal(t, "provider:acct-1", markers["status"])
	_, hasLocation := markers["location"]
	assert.False(t, hasLocation)
}

func TestUpdateMarkers_RetainsUntouchedFields(t *testing.T) {
	current := map[string]string{
		"title":    "tminus",
		"location": "provider:acct-1",
	}
	next := UpdateMarkers(current, "acct-2", map[string]interface{}{
		"title": "Provider Override Title",
	})

	assert.Equal(t, "provider:acct-2", next["title"])
	assert.Equal(t, "provider:acct-1", next["location"], "untouched fields keep their marker")
}

func TestEffectiveMarkers_LegacyEventFallsBackToOriginAccount(t *testing.T) {
	e := &domain.CanonicalEvent{
		OriginAccountID:  "acct-1",
		Title:            "Standup",
		Status:           domain.EventConfirmed,
		AuthorityMarkers: map[string]string{},
	}

	markers := EffectiveMarkers(e)

	assert.Equal(t, "provider:acct-1", markers["title"])
	assert.Equal(t, "provider:acct-1", markers["status"])
}

func TestDetectConflicts_S1Scenario(t *testing.T) {
	e := &domain.CanonicalEvent{
		OriginAccountID: "A",
		Title:           "Morning Standup",
		StartTS:         time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
		EndTS:           time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC),
		AuthorityMarkers: map[string]string{
			"title": "tminus",
		},
	}

	conflicts := DetectConflicts(e, "A", map[string]interface{}{
		"title": "Provider Override Title",
	})

	require.Len(t, conflicts, 1)
	assert.Equal(t, domain.FieldConflict{
		Field:             "title",
		CurrentAuthority:  "tminus",
		IncomingAuthority: "provider:A",
		OldValue:          "Morning Standup",
		NewValue:          "Provider Override Title",
	}, conflicts[0])
}

func TestDetectConflicts_SameAuthorityNoConflict(t *testing.T) {
	e := &domain.CanonicalEvent{
		OriginAccountID: "A",
		Title:           "Morning Standup",
		AuthorityMarkers: map[string]string{
			"title": "provider:A",
		},
	}

	conflicts := DetectConflicts(e, "A", map[string]interface{}{
		"title": "Updated Standup",
	})

	assert.Empty(t, conflicts)
}

func TestDetectConflicts_SameValueNoConflict(t *testing.T) {
	e := &domain.CanonicalEvent{
		OriginAccountID: "A",
		Title:           "Morning Standup",
		AuthorityMarkers: map[string]string{
			"title": "tminus",
		},
	}

	conflicts := DetectConflicts(e, "A", map[string]interface{}{
		"title": "Morning Standup",
	})

	assert.Empty(t, conflicts, "identical post-write value is not a conflict even if authority differs")
}

func TestResolutionJSON_RoundTripsConflictList(t *testing.T) {
	conflicts := []domain.FieldConflict{{
		Field:             "title",
		CurrentAuthority:  "tminus",
		IncomingAuthority: "provider:A",
		OldValue:          "Morning Standup",
		NewValue:          "Provider Override Title",
	}}

	payload, err := ResolutionJSON(conflicts)

	require.NoError(t, err)
	assert.Contains(t, payload, `"strategy":"provider_wins"`)
	assert.Contains(t, payload, `"field":"title"`)
}
