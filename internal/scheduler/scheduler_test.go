package scheduler

import (
	"testing"
	"time"

	"tminus/internal/domain"
)

func TestNextOccurrence(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		m        *domain.Milestone
		wantOK   bool
		wantDate string
	}{
		{
			name:   "non-recurring in the past never matches",
			m:      &domain.Milestone{Date: "2020-01-01", RecursAnnually: false},
			wantOK: false,
		},
		{
			name:     "non-recurring in the future matches as-is",
			m:        &domain.Milestone{Date: "2026-08-10", RecursAnnually: false},
			wantOK:   true,
			wantDate: "2026-08-10",
		},
		{
			name:     "recurring date later this year rolls to this year",
			m:        &domain.Milestone{Date: "2020-08-15", RecursAnnually: true},
			wantOK:   true,
			wantDate: "2026-08-15",
		},
		{
			name:     "recurring date already passed this year rolls to next year",
			m:        &domain.Milestone{Date: "2020-03-01", RecursAnnually: true},
			wantOK:   true,
			wantDate: "2027-03-01",
		},
		{
			name:   "malformed date never matches",
			m:      &domain.Milestone{Date: "not-a-date", RecursAnnually: true},
			wantOK: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := nextOccurrence(tc.m, now)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if !ok {
				return
			}
			if want, _ := time.Parse("2006-01-02", tc.wantDate); !got.Equal(want) {
				t.Errorf("next occurrence = %v, want %v", got, want)
			}
		})
	}
}
